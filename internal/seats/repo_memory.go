package seats

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory workshop Repository for tests.
type MemoryRepo struct {
	mu        sync.Mutex
	workshops map[string]Workshop
	writes    int
}

func NewMemoryRepo(ws ...Workshop) *MemoryRepo {
	m := &MemoryRepo{workshops: make(map[string]Workshop)}
	for _, w := range ws {
		m.workshops[w.ID] = w
	}
	return m
}

func (m *MemoryRepo) GetWorkshop(_ context.Context, id string) (Workshop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workshops[id]
	if !ok {
		return Workshop{}, ErrNotFound
	}
	return w, nil
}

func (m *MemoryRepo) SetAvailableSeats(_ context.Context, workshopID string, available int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workshops[workshopID]
	if !ok {
		return ErrNotFound
	}
	w.AvailableSeats = available
	w.UpdatedAt = now
	m.workshops[workshopID] = w
	m.writes++
	return nil
}

// Writes counts SetAvailableSeats calls.
func (m *MemoryRepo) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
