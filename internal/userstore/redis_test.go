package userstore

import (
	"context"
	"sync"
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

func TestRedisStore_CreateUser_RejectsDuplicateUsername(t *testing.T) {
	s, cleanup := newTestRedisStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.CreateUser(ctx, newTestUser("u1", "alice"))
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, newTestUser("u2", "alice"))
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestRedisStore_CreateUser_ConcurrentSameUsername_ExactlyOneWins(t *testing.T) {
	s, cleanup := newTestRedisStore(t)
	defer cleanup()
	ctx := context.Background()
	const n = 10

	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.CreateUser(ctx, newTestUser(idFor(i), "contested"))
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range results {
		if err == nil {
			won++
		}
	}
	assert.Equal(t, 1, won)

	got, err := s.GetByUsername(ctx, "contested")
	require.NoError(t, err)
	assert.Equal(t, "contested", got.Username)
}

func idFor(i int) string {
	return "id-" + string(rune('a'+i))
}

func TestRedisStore_GetByID_RoundTrip(t *testing.T) {
	s, cleanup := newTestRedisStore(t)
	defer cleanup()
	ctx := context.Background()

	u := newTestUser("u1", "alice")
	u.Email = "alice@example.com"
	_, err := s.CreateUser(ctx, u)
	require.NoError(t, err)

	got, err := s.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.True(t, got.IsActive)
}

func TestRedisStore_DeleteUser_ReleasesUsername(t *testing.T) {
	s, cleanup := newTestRedisStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.CreateUser(ctx, newTestUser("u1", "alice"))
	require.NoError(t, err)

	ok, err := s.DeleteUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.CreateUser(ctx, newTestUser("u2", "alice"))
	require.NoError(t, err)
}

func TestRedisStore_UpdateUser_NotFound(t *testing.T) {
	s, cleanup := newTestRedisStore(t)
	defer cleanup()

	_, err := s.UpdateUser(context.Background(), newTestUser("ghost", "nobody"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRedisStore_ListUsers(t *testing.T) {
	s, cleanup := newTestRedisStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.CreateUser(ctx, newTestUser("u1", "alice"))
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, newTestUser("u2", "bob"))
	require.NoError(t, err)

	all, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
