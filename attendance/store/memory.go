// Package store provides attendance.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/littlepine/timekeeper/attendance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	partitions map[attendance.MonthKey][]attendance.Record
}

func NewMemory() *Memory {
	return &Memory{partitions: make(map[attendance.MonthKey][]attendance.Record)}
}

func (m *Memory) ReadPartition(_ context.Context, month attendance.MonthKey) ([]attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Copy so callers can't mutate stored state.
	result := make([]attendance.Record, len(m.partitions[month]))
	copy(result, m.partitions[month])
	return result, nil
}

func (m *Memory) WritePartition(_ context.Context, month attendance.MonthKey, records []attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeLocked(month, records)
	return nil
}

// UpdatePartition runs fn under the write lock, making read-modify-write
// atomic against concurrent updates.
func (m *Memory) UpdatePartition(_ context.Context, month attendance.MonthKey, fn func([]attendance.Record) ([]attendance.Record, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := make([]attendance.Record, len(m.partitions[month]))
	copy(current, m.partitions[month])

	next, err := fn(current)
	if err != nil {
		return err
	}
	m.writeLocked(month, next)
	return nil
}

func (m *Memory) Partitions(_ context.Context) ([]attendance.MonthKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]attendance.MonthKey, 0, len(m.partitions))
	for k := range m.partitions {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *Memory) writeLocked(month attendance.MonthKey, records []attendance.Record) {
	stored := make([]attendance.Record, len(records))
	copy(stored, records)
	m.partitions[month] = stored
}
