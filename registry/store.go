package registry

import (
	"context"
	"sort"
	"sync"
)

// Store persists families and staff. Save operations are upserts keyed by
// entity id.
type Store interface {
	ListFamilies(ctx context.Context) ([]Family, error)
	GetFamily(ctx context.Context, familyID string) (Family, error)
	SaveFamily(ctx context.Context, family Family) error
	DeleteFamily(ctx context.Context, familyID string) error

	ListStaff(ctx context.Context) ([]Staff, error)
	GetStaff(ctx context.Context, staffID string) (Staff, error)
	SaveStaff(ctx context.Context, member Staff) error
	DeleteStaff(ctx context.Context, staffID string) error
}

// =============================================================================
// IN-MEMORY STORE
// =============================================================================

// MemoryStore keeps everything in maps. Used by tests and as the default
// when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	families map[string]Family
	staff    map[string]Staff
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		families: make(map[string]Family),
		staff:    make(map[string]Staff),
	}
}

func (m *MemoryStore) ListFamilies(_ context.Context) ([]Family, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Family, 0, len(m.families))
	for _, f := range m.families {
		out = append(out, copyFamily(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) GetFamily(_ context.Context, familyID string) (Family, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.families[familyID]
	if !ok {
		return Family{}, &FamilyNotFoundError{FamilyID: familyID}
	}
	return copyFamily(f), nil
}

func (m *MemoryStore) SaveFamily(_ context.Context, family Family) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.families[family.ID] = copyFamily(family)
	return nil
}

func (m *MemoryStore) DeleteFamily(_ context.Context, familyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.families[familyID]; !ok {
		return &FamilyNotFoundError{FamilyID: familyID}
	}
	delete(m.families, familyID)
	return nil
}

func (m *MemoryStore) ListStaff(_ context.Context) ([]Staff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Staff, 0, len(m.staff))
	for _, s := range m.staff {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) GetStaff(_ context.Context, staffID string) (Staff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.staff[staffID]
	if !ok {
		return Staff{}, &StaffNotFoundError{StaffID: staffID}
	}
	return s, nil
}

func (m *MemoryStore) SaveStaff(_ context.Context, member Staff) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.staff[member.ID] = member
	return nil
}

func (m *MemoryStore) DeleteStaff(_ context.Context, staffID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.staff[staffID]; !ok {
		return &StaffNotFoundError{StaffID: staffID}
	}
	delete(m.staff, staffID)
	return nil
}

func copyFamily(f Family) Family {
	out := f
	out.Children = make([]Child, len(f.Children))
	copy(out.Children, f.Children)
	return out
}
