package guard

import (
	"context"
	"sync"

	"github.com/clinicops/trainingdesk/internal/models"
)

// Store persists guard markers. Get returns GuardAbsent for unknown keys.
type Store interface {
	Get(ctx context.Context, key string) (models.GuardState, error)
	Set(ctx context.Context, key string, state models.GuardState) error
	Delete(ctx context.Context, key string) error
	// SetIfAbsent writes state only when key has no marker and reports whether it did.
	SetIfAbsent(ctx context.Context, key string, state models.GuardState) (bool, error)
}

// MemoryStore keeps markers for the lifetime of the process.
type MemoryStore struct {
	mu      sync.Mutex
	markers map[string]models.GuardState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{markers: make(map[string]models.GuardState)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (models.GuardState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markers[key], nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, state models.GuardState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[key] = state
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, key)
	return nil
}

func (s *MemoryStore) SetIfAbsent(ctx context.Context, key string, state models.GuardState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markers[key]; ok {
		return false, nil
	}
	s.markers[key] = state
	return true, nil
}
