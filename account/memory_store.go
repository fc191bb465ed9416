package account

import (
	"context"
	"sync"
)

// MemoryStore keeps accounts in process memory. It returns copies, so
// callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Account
	byEmail map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*Account),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryStore) Insert(_ context.Context, acct *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[acct.Email]; taken {
		return ErrDuplicateEmail
	}
	s.byID[acct.ID] = acct.Clone()
	s.byEmail[acct.Email] = acct.ID
	return nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, kind Kind, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	acct := s.byID[id]
	if acct == nil || acct.Kind != kind {
		return nil, ErrNotFound
	}
	return acct.Clone(), nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return acct.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, acct *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[acct.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Revision != acct.Revision {
		return ErrConflict
	}
	acct.Revision++
	s.byID[acct.ID] = acct.Clone()
	return nil
}
