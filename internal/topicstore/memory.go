package topicstore

import (
	"context"
	"sync"

	"github.com/pulsar-relay/relay/internal/domain"
	"github.com/pulsar-relay/relay/internal/store"
)

// MemoryStore is an in-process Store guarded by a single mutex.
type MemoryStore struct {
	mu     sync.Mutex
	byName map[string]*domain.Topic
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byName: make(map[string]*domain.Topic)}
}

func (s *MemoryStore) CreateTopic(_ context.Context, topic *domain.Topic) (*domain.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[topic.TopicName]; exists {
		return nil, store.ErrAlreadyExists
	}
	cp := topic.Clone()
	s.byName[topic.TopicName] = cp
	return cp.Clone(), nil
}

func (s *MemoryStore) GetByName(_ context.Context, name string) (*domain.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byName[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryStore) UpdateTopic(_ context.Context, topic *domain.Topic) (*domain.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[topic.TopicName]; !ok {
		return nil, store.ErrNotFound
	}
	cp := topic.Clone()
	s.byName[topic.TopicName] = cp
	return cp.Clone(), nil
}

func (s *MemoryStore) DeleteTopic(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[name]; !ok {
		return false, nil
	}
	delete(s.byName, name)
	return true, nil
}

func (s *MemoryStore) ListTopics(_ context.Context) ([]*domain.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Topic, 0, len(s.byName))
	for _, t := range s.byName {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (s *MemoryStore) GrantAccess(_ context.Context, topicName, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byName[topicName]
	if !ok {
		return false, store.ErrNotFound
	}
	for _, id := range t.AllowedUserIDs {
		if id == userID {
			return false, nil
		}
	}
	t.AllowedUserIDs = append(t.AllowedUserIDs, userID)
	return true, nil
}

func (s *MemoryStore) RevokeAccess(_ context.Context, topicName, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byName[topicName]
	if !ok {
		return false, store.ErrNotFound
	}
	for i, id := range t.AllowedUserIDs {
		if id == userID {
			t.AllowedUserIDs = append(t.AllowedUserIDs[:i], t.AllowedUserIDs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListOwned(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, t := range s.byName {
		if t.OwnerID == userID {
			out = append(out, t.TopicName)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListAccessible(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, t := range s.byName {
		if t.OwnerID == userID {
			out = append(out, t.TopicName)
			continue
		}
		for _, id := range t.AllowedUserIDs {
			if id == userID {
				out = append(out, t.TopicName)
				break
			}
		}
	}
	return out, nil
}
