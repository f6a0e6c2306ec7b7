package topicstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsar-relay/relay/internal/store"
)

func newTestRedisStore(t *testing.T) (*RedisStore, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return NewRedisStore(client), cleanup
}

func TestRedisStore_CreateTopic_RejectsDuplicateName(t *testing.T) {
	s, cleanup := newTestRedisStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.CreateTopic(ctx, newTestTopic("t1", "alerts", "u1"))
	require.NoError(t, err)

	_, err = s.CreateTopic(ctx, newTestTopic("t2", "alerts", "u2"))
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestRedisStore_CreateTopic_IndexesOwnerAndAccessible(t *testing.T) {
	s, cleanup := newTestRedisStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.CreateTopic(ctx, newTestTopic("t1", "alerts", "alice"))
	require.NoError(t, err)

	owned, err := s.ListOwned(ctx, "alice")
	require.NoError(t, err)
	assert.Contains(t, owned, "alerts")

	accessible, err := s.ListAccessible(ctx, "alice")
	require.NoError(t, err)
	assert.Contains(t, accessible, "alerts")
}

func TestRedisStore_GrantAndRevokeAccess(t *testing.T) {
	s, cleanup := newTestRedisStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.CreateTopic(ctx, newTestTopic("t1", "alerts", "alice"))
	require.NoError(t, err)

	added, err := s.GrantAccess(ctx, "alerts", "bob")
	require.NoError(t, err)
	assert.True(t, added)

	topic, err := s.GetByName(ctx, "alerts")
	require.NoError(t, err)
	assert.Contains(t, topic.AllowedUserIDs, "bob")

	removed, err := s.RevokeAccess(ctx, "alerts", "bob")
	require.NoError(t, err)
	assert.True(t, removed)

	topic, err = s.GetByName(ctx, "alerts")
	require.NoError(t, err)
	assert.NotContains(t, topic.AllowedUserIDs, "bob")
}

func TestRedisStore_DeleteTopic_CleansIndexes(t *testing.T) {
	s, cleanup := newTestRedisStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.CreateTopic(ctx, newTestTopic("t1", "alerts", "alice"))
	require.NoError(t, err)

	ok, err := s.DeleteTopic(ctx, "alerts")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.GetByName(ctx, "alerts")
	assert.ErrorIs(t, err, store.ErrNotFound)

	owned, err := s.ListOwned(ctx, "alice")
	require.NoError(t, err)
	assert.NotContains(t, owned, "alerts")
}

func TestRedisStore_UpdateTopic_NotFound(t *testing.T) {
	s, cleanup := newTestRedisStore(t)
	defer cleanup()

	_, err := s.UpdateTopic(context.Background(), newTestTopic("t1", "ghost", "alice"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}
