/*
Package jsonfile stores attendance records as one JSON file per month.

PURPOSE:
  A zero-dependency backend for small deployments: the data directory holds
  files named "2025-01.json", each containing the full record list for that
  month. The layout doubles as a human-readable export, and backup is a
  directory copy.

WRITE SAFETY:
  Partition writes go to a temp file in the same directory and are renamed
  into place, so a crash mid-write leaves the previous file intact. A
  per-partition mutex serializes UpdatePartition's read-modify-write.

SEE ALSO:
  - attendance/store.go: the interface this implements
  - store/sqlite:        database-backed alternative
*/
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/littlepine/timekeeper/attendance"
)

// Store implements attendance.Store over a directory of month files.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[attendance.MonthKey]*sync.Mutex
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Store{
		dir:   dir,
		locks: make(map[attendance.MonthKey]*sync.Mutex),
	}, nil
}

func (s *Store) path(month attendance.MonthKey) string {
	return filepath.Join(s.dir, string(month)+".json")
}

func (s *Store) lockFor(month attendance.MonthKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[month]
	if !ok {
		l = &sync.Mutex{}
		s.locks[month] = l
	}
	return l
}

// ReadPartition loads a month file. A missing file is an empty partition.
func (s *Store) ReadPartition(_ context.Context, month attendance.MonthKey) ([]attendance.Record, error) {
	return s.read(month)
}

func (s *Store) read(month attendance.MonthKey) ([]attendance.Record, error) {
	data, err := os.ReadFile(s.path(month))
	if errors.Is(err, os.ErrNotExist) {
		return []attendance.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading partition %s: %w", month, err)
	}

	var records []attendance.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing partition %s: %w", month, err)
	}
	return records, nil
}

// WritePartition replaces the month file via temp file + rename.
func (s *Store) WritePartition(_ context.Context, month attendance.MonthKey, records []attendance.Record) error {
	lock := s.lockFor(month)
	lock.Lock()
	defer lock.Unlock()

	return s.write(month, records)
}

func (s *Store) write(month attendance.MonthKey, records []attendance.Record) error {
	if records == nil {
		records = []attendance.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding partition %s: %w", month, err)
	}

	tmp, err := os.CreateTemp(s.dir, string(month)+".tmp-*")
	if err != nil {
		return fmt.Errorf("writing partition %s: %w", month, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing partition %s: %w", month, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing partition %s: %w", month, err)
	}
	if err := os.Rename(tmp.Name(), s.path(month)); err != nil {
		return fmt.Errorf("replacing partition %s: %w", month, err)
	}
	return nil
}

// UpdatePartition applies fn under the partition lock.
func (s *Store) UpdatePartition(_ context.Context, month attendance.MonthKey, fn func([]attendance.Record) ([]attendance.Record, error)) error {
	lock := s.lockFor(month)
	lock.Lock()
	defer lock.Unlock()

	records, err := s.read(month)
	if err != nil {
		return err
	}
	updated, err := fn(records)
	if err != nil {
		return err
	}
	return s.write(month, updated)
}

// Partitions lists the months that have a file on disk.
func (s *Store) Partitions(_ context.Context) ([]attendance.MonthKey, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing data directory: %w", err)
	}

	var months []attendance.MonthKey
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		months = append(months, attendance.MonthKey(strings.TrimSuffix(name, ".json")))
	}
	return months, nil
}
