package userstore

import (
	"context"
	"sync"

	"github.com/pulsar-relay/relay/internal/domain"
	"github.com/pulsar-relay/relay/internal/store"
)

// MemoryStore is an in-process Store guarded by a single mutex.
type MemoryStore struct {
	mu            sync.Mutex
	byID          map[string]*domain.User
	usernameIndex map[string]string // username -> user_id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:          make(map[string]*domain.User),
		usernameIndex: make(map[string]string),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usernameIndex[user.Username]; taken {
		return nil, store.ErrAlreadyExists
	}
	s.usernameIndex[user.Username] = user.UserID
	cp := user.Clone()
	s.byID[user.UserID] = cp
	return cp.Clone(), nil
}

func (s *MemoryStore) GetByID(_ context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *MemoryStore) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usernameIndex[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	u, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[user.UserID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if existing.Username != user.Username {
		delete(s.usernameIndex, existing.Username)
		s.usernameIndex[user.Username] = user.UserID
	}
	cp := user.Clone()
	s.byID[user.UserID] = cp
	return cp.Clone(), nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return false, nil
	}
	delete(s.usernameIndex, u.Username)
	delete(s.byID, userID)
	return true, nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, u.Clone())
	}
	return out, nil
}
