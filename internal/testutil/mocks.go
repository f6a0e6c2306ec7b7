package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/pulsar-relay/relay/internal/domain"
)

// MockUserStore is a mock.Mock implementation of userstore.Store.
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStore) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStore) UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStore) DeleteUser(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) ListUsers(ctx context.Context) ([]*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

// MockTopicStore is a mock.Mock implementation of topicstore.Store.
type MockTopicStore struct {
	mock.Mock
}

func (m *MockTopicStore) CreateTopic(ctx context.Context, topic *domain.Topic) (*domain.Topic, error) {
	args := m.Called(ctx, topic)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Topic), args.Error(1)
}

func (m *MockTopicStore) GetByName(ctx context.Context, name string) (*domain.Topic, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Topic), args.Error(1)
}

func (m *MockTopicStore) UpdateTopic(ctx context.Context, topic *domain.Topic) (*domain.Topic, error) {
	args := m.Called(ctx, topic)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Topic), args.Error(1)
}

func (m *MockTopicStore) DeleteTopic(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockTopicStore) ListTopics(ctx context.Context) ([]*domain.Topic, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Topic), args.Error(1)
}

func (m *MockTopicStore) GrantAccess(ctx context.Context, topicName, userID string) (bool, error) {
	args := m.Called(ctx, topicName, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTopicStore) RevokeAccess(ctx context.Context, topicName, userID string) (bool, error) {
	args := m.Called(ctx, topicName, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTopicStore) ListOwned(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTopicStore) ListAccessible(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockLog is a mock.Mock implementation of logstore.Log.
type MockLog struct {
	mock.Mock
}

func (m *MockLog) Append(ctx context.Context, topic string, payload map[string]any, ts time.Time, metadata map[string]string) (string, error) {
	args := m.Called(ctx, topic, payload, ts, metadata)
	return args.String(0), args.Error(1)
}

func (m *MockLog) Range(ctx context.Context, topic string, cursor string, limit int, reverse bool) ([]domain.Message, error) {
	args := m.Called(ctx, topic, cursor, limit, reverse)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

func (m *MockLog) Length(ctx context.Context, topic string) (int, error) {
	args := m.Called(ctx, topic)
	return args.Int(0), args.Error(1)
}

func (m *MockLog) Trim(ctx context.Context, topic string, keep int) (int, error) {
	args := m.Called(ctx, topic, keep)
	return args.Int(0), args.Error(1)
}
