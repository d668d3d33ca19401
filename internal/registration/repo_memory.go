package registration

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests. Insert enforces the
// (user_id, workshop_id) unique index like the Postgres table does.
type MemoryRepo struct {
	mu       sync.Mutex
	rows     map[string]Registration
	profiles map[string]struct{}

	// BeforeInsert, when set, runs (unlocked) just before Insert checks the unique index.
	BeforeInsert func(r Registration)
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		rows:     make(map[string]Registration),
		profiles: make(map[string]struct{}),
	}
}

// Seed stores rows as-is, bypassing the unique index.
func (m *MemoryRepo) Seed(rows ...Registration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.rows[r.ID] = r
	}
}

// AddProfile records user ids that resolve to a profile.
func (m *MemoryRepo) AddProfile(userIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range userIDs {
		m.profiles[id] = struct{}{}
	}
}

func (m *MemoryRepo) Get(_ context.Context, id string) (Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return Registration{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryRepo) List(_ context.Context, f Filter) ([]Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked(f), nil
}

func (m *MemoryRepo) Count(_ context.Context, f Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listLocked(f)), nil
}

func (m *MemoryRepo) ListOrphaned(_ context.Context) ([]Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Registration
	for _, r := range m.listLocked(Filter{}) {
		if _, ok := m.profiles[r.UserID]; !ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryRepo) Insert(_ context.Context, r Registration) error {
	if m.BeforeInsert != nil {
		m.BeforeInsert(r)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.UserID == r.UserID && existing.WorkshopID == r.WorkshopID {
			return ErrUniqueViolation
		}
	}
	m.rows[r.ID] = r
	return nil
}

func (m *MemoryRepo) Update(_ context.Context, id string, u Update, now time.Time) (Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return Registration{}, ErrNotFound
	}
	u.apply(&r, now)
	m.rows[id] = r
	return r, nil
}

func (m *MemoryRepo) UpdateWhere(_ context.Context, f Filter, u Update, now time.Time) ([]Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := m.listLocked(f)
	for i := range matched {
		u.apply(&matched[i], now)
		m.rows[matched[i].ID] = matched[i]
	}
	return matched, nil
}

func (m *MemoryRepo) Delete(_ context.Context, ids ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := m.rows[id]; ok {
			delete(m.rows, id)
			n++
		}
	}
	if len(ids) == 1 && n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

func (m *MemoryRepo) listLocked(f Filter) []Registration {
	out := make([]Registration, 0)
	for _, r := range m.rows {
		if f.matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
