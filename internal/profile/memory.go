package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore keeps profile documents in process memory. It backs tests and
// single-binary deployments without a database.
type MemoryStore struct {
	mu       sync.Mutex
	profiles map[string]*Profile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*Profile)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(p)
}

func (s *MemoryStore) Save(_ context.Context, userID string, p *Profile) error {
	copied, err := clone(p)
	if err != nil {
		return err
	}
	if err := copied.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = copied
	return nil
}

func (s *MemoryStore) ApplyPatch(_ context.Context, userID, path string, value any) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}

	next, err := applyPatch(current, path, value)
	if err != nil {
		return nil, err
	}

	s.profiles[userID] = next
	return clone(next)
}

// clone round-trips through JSON so callers never share memory with the store.
func clone(p *Profile) (*Profile, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("clone profile: %w", err)
	}
	copied := &Profile{}
	if err := json.Unmarshal(raw, copied); err != nil {
		return nil, fmt.Errorf("clone profile: %w", err)
	}
	return copied, nil
}
