package topicstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulsar-relay/relay/internal/domain"
	"github.com/pulsar-relay/relay/internal/store"
)

func topicKey(name string) string {
	return "topic:" + name
}

func allowedUsersKey(name string) string {
	return "topic:" + name + ":allowed_users"
}

func ownedTopicsKey(userID string) string {
	return "user:" + userID + ":owned_topics"
}

func accessibleTopicsKey(userID string) string {
	return "user:" + userID + ":topics"
}

// RedisStore is a Store backed by Redis hashes and sets. The topic_name
// claim uses HSetNX against a sentinel field of the topic's own hash key,
// mirroring the username claim in userstore.RedisStore.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) CreateTopic(ctx context.Context, topic *domain.Topic) (*domain.Topic, error) {
	claimed, err := s.client.HSetNX(ctx, topicKey(topic.TopicName), "topic_name", topic.TopicName).Result()
	if err != nil {
		return nil, fmt.Errorf("topicstore: claim name: %w: %v", store.ErrUnavailable, err)
	}
	if !claimed {
		return nil, store.ErrAlreadyExists
	}

	if err := s.writeTopic(ctx, topic); err != nil {
		s.client.Del(ctx, topicKey(topic.TopicName))
		return nil, err
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, ownedTopicsKey(topic.OwnerID), topic.TopicName)
	pipe.SAdd(ctx, accessibleTopicsKey(topic.OwnerID), topic.TopicName)
	for _, uid := range topic.AllowedUserIDs {
		pipe.SAdd(ctx, allowedUsersKey(topic.TopicName), uid)
		pipe.SAdd(ctx, accessibleTopicsKey(uid), topic.TopicName)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("topicstore: index: %w: %v", store.ErrUnavailable, err)
	}
	return topic.Clone(), nil
}

func (s *RedisStore) GetByName(ctx context.Context, name string) (*domain.Topic, error) {
	fields, err := s.client.HGetAll(ctx, topicKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("topicstore: get: %w: %v", store.ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, store.ErrNotFound
	}
	allowed, err := s.client.SMembers(ctx, allowedUsersKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("topicstore: allowed_users: %w: %v", store.ErrUnavailable, err)
	}
	return decodeTopic(fields, allowed), nil
}

func (s *RedisStore) UpdateTopic(ctx context.Context, topic *domain.Topic) (*domain.Topic, error) {
	exists, err := s.client.Exists(ctx, topicKey(topic.TopicName)).Result()
	if err != nil {
		return nil, fmt.Errorf("topicstore: exists: %w: %v", store.ErrUnavailable, err)
	}
	if exists == 0 {
		return nil, store.ErrNotFound
	}
	if err := s.writeTopic(ctx, topic); err != nil {
		return nil, err
	}
	return topic.Clone(), nil
}

func (s *RedisStore) DeleteTopic(ctx context.Context, name string) (bool, error) {
	existing, err := s.GetByName(ctx, name)
	if err == store.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, topicKey(name))
	pipe.Del(ctx, allowedUsersKey(name))
	pipe.SRem(ctx, ownedTopicsKey(existing.OwnerID), name)
	pipe.SRem(ctx, accessibleTopicsKey(existing.OwnerID), name)
	for _, uid := range existing.AllowedUserIDs {
		pipe.SRem(ctx, accessibleTopicsKey(uid), name)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("topicstore: delete: %w: %v", store.ErrUnavailable, err)
	}
	return true, nil
}

func (s *RedisStore) ListTopics(ctx context.Context) ([]*domain.Topic, error) {
	keys, err := s.client.Keys(ctx, "topic:*").Result()
	if err != nil {
		return nil, fmt.Errorf("topicstore: list: %w: %v", store.ErrUnavailable, err)
	}
	out := make([]*domain.Topic, 0, len(keys))
	for _, key := range keys {
		if strings.HasSuffix(key, ":allowed_users") {
			continue
		}
		name := strings.TrimPrefix(key, "topic:")
		t, err := s.GetByName(ctx, name)
		if err == store.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *RedisStore) GrantAccess(ctx context.Context, topicName, userID string) (bool, error) {
	added, err := s.client.SAdd(ctx, allowedUsersKey(topicName), userID).Result()
	if err != nil {
		return false, fmt.Errorf("topicstore: grant: %w: %v", store.ErrUnavailable, err)
	}
	if err := s.client.SAdd(ctx, accessibleTopicsKey(userID), topicName).Err(); err != nil {
		return false, fmt.Errorf("topicstore: grant index: %w: %v", store.ErrUnavailable, err)
	}
	return added > 0, nil
}

func (s *RedisStore) RevokeAccess(ctx context.Context, topicName, userID string) (bool, error) {
	removed, err := s.client.SRem(ctx, allowedUsersKey(topicName), userID).Result()
	if err != nil {
		return false, fmt.Errorf("topicstore: revoke: %w: %v", store.ErrUnavailable, err)
	}
	if err := s.client.SRem(ctx, accessibleTopicsKey(userID), topicName).Err(); err != nil {
		return false, fmt.Errorf("topicstore: revoke index: %w: %v", store.ErrUnavailable, err)
	}
	return removed > 0, nil
}

func (s *RedisStore) ListOwned(ctx context.Context, userID string) ([]string, error) {
	names, err := s.client.SMembers(ctx, ownedTopicsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("topicstore: list owned: %w: %v", store.ErrUnavailable, err)
	}
	return names, nil
}

func (s *RedisStore) ListAccessible(ctx context.Context, userID string) ([]string, error) {
	names, err := s.client.SMembers(ctx, accessibleTopicsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("topicstore: list accessible: %w: %v", store.ErrUnavailable, err)
	}
	return names, nil
}

func (s *RedisStore) writeTopic(ctx context.Context, topic *domain.Topic) error {
	fields := map[string]interface{}{
		"topic_id":    topic.TopicID,
		"topic_name":  topic.TopicName,
		"owner_id":    topic.OwnerID,
		"is_public":   strconv.FormatBool(topic.IsPublic),
		"description": topic.Description,
		"created_at":  topic.CreatedAt.Format(time.RFC3339Nano),
	}
	if err := s.client.HSet(ctx, topicKey(topic.TopicName), fields).Err(); err != nil {
		return fmt.Errorf("topicstore: write: %w: %v", store.ErrUnavailable, err)
	}
	return nil
}

func decodeTopic(fields map[string]string, allowed []string) *domain.Topic {
	isPublic, _ := strconv.ParseBool(fields["is_public"])
	createdAt, _ := time.Parse(time.RFC3339Nano, fields["created_at"])

	return &domain.Topic{
		TopicID:        fields["topic_id"],
		TopicName:      fields["topic_name"],
		OwnerID:        fields["owner_id"],
		IsPublic:       isPublic,
		AllowedUserIDs: allowed,
		Description:    fields["description"],
		CreatedAt:      createdAt,
	}
}
