package userstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulsar-relay/relay/internal/domain"
	"github.com/pulsar-relay/relay/internal/store"
)

const usernameIndexKey = "user:username_index"

func userKey(userID string) string {
	return "user:" + userID
}

// RedisStore is a Store backed by Redis hashes. Username uniqueness is
// enforced with HSetNX against usernameIndexKey before the user record is
// written; on a write failure after a winning claim, the claim is released.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	claimed, err := s.client.HSetNX(ctx, usernameIndexKey, user.Username, user.UserID).Result()
	if err != nil {
		return nil, fmt.Errorf("userstore: claim username: %w: %v", store.ErrUnavailable, err)
	}
	if !claimed {
		return nil, store.ErrAlreadyExists
	}

	if err := s.writeUser(ctx, user); err != nil {
		s.client.HDel(ctx, usernameIndexKey, user.Username)
		return nil, err
	}
	return user.Clone(), nil
}

func (s *RedisStore) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	fields, err := s.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("userstore: get: %w: %v", store.ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, store.ErrNotFound
	}
	return decodeUser(fields)
}

func (s *RedisStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	userID, err := s.client.HGet(ctx, usernameIndexKey, username).Result()
	if err == redis.Nil {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("userstore: lookup username: %w: %v", store.ErrUnavailable, err)
	}
	return s.GetByID(ctx, userID)
}

func (s *RedisStore) UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	exists, err := s.client.Exists(ctx, userKey(user.UserID)).Result()
	if err != nil {
		return nil, fmt.Errorf("userstore: exists: %w: %v", store.ErrUnavailable, err)
	}
	if exists == 0 {
		return nil, store.ErrNotFound
	}
	if err := s.writeUser(ctx, user); err != nil {
		return nil, err
	}
	return user.Clone(), nil
}

func (s *RedisStore) DeleteUser(ctx context.Context, userID string) (bool, error) {
	existing, err := s.GetByID(ctx, userID)
	if err == store.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, userKey(userID))
	pipe.HDel(ctx, usernameIndexKey, existing.Username)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("userstore: delete: %w: %v", store.ErrUnavailable, err)
	}
	return true, nil
}

func (s *RedisStore) ListUsers(ctx context.Context) ([]*domain.User, error) {
	ids, err := s.client.HGetAll(ctx, usernameIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("userstore: list: %w: %v", store.ErrUnavailable, err)
	}
	out := make([]*domain.User, 0, len(ids))
	for _, userID := range ids {
		u, err := s.GetByID(ctx, userID)
		if err == store.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *RedisStore) writeUser(ctx context.Context, user *domain.User) error {
	perms, err := json.Marshal(user.Permissions)
	if err != nil {
		return fmt.Errorf("userstore: marshal permissions: %w", err)
	}
	owned, err := json.Marshal(user.OwnedTopics)
	if err != nil {
		return fmt.Errorf("userstore: marshal owned_topics: %w", err)
	}

	fields := map[string]interface{}{
		"user_id":         user.UserID,
		"username":        user.Username,
		"email":           user.Email,
		"hashed_password": user.HashedPassword,
		"is_active":       strconv.FormatBool(user.IsActive),
		"created_at":      user.CreatedAt.Format(time.RFC3339Nano),
		"permissions":     string(perms),
		"owned_topics":    string(owned),
	}
	if err := s.client.HSet(ctx, userKey(user.UserID), fields).Err(); err != nil {
		return fmt.Errorf("userstore: write: %w: %v", store.ErrUnavailable, err)
	}
	return nil
}

func decodeUser(fields map[string]string) (*domain.User, error) {
	isActive, _ := strconv.ParseBool(fields["is_active"])
	createdAt, _ := time.Parse(time.RFC3339Nano, fields["created_at"])

	var perms []domain.Permission
	if raw := fields["permissions"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &perms); err != nil {
			return nil, fmt.Errorf("userstore: decode permissions: %w", err)
		}
	}
	var owned []string
	if raw := fields["owned_topics"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &owned); err != nil {
			return nil, fmt.Errorf("userstore: decode owned_topics: %w", err)
		}
	}

	return &domain.User{
		UserID:         fields["user_id"],
		Username:       fields["username"],
		Email:          fields["email"],
		HashedPassword: fields["hashed_password"],
		IsActive:       isActive,
		CreatedAt:      createdAt,
		Permissions:    perms,
		OwnedTopics:    owned,
	}, nil
}
