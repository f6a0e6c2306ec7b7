package authz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pulsar-relay/relay/internal/domain"
)

func TestUserCache_PutThenGet(t *testing.T) {
	c := NewUserCache(10, time.Minute)
	u := &domain.User{UserID: "u1", Username: "alice", IsActive: true}
	c.Put(u)

	got, ok := c.Get("u1")
	assert.True(t, ok)
	assert.Equal(t, "alice", got.Username)
}

func TestUserCache_Miss(t *testing.T) {
	c := NewUserCache(10, time.Minute)
	_, ok := c.Get("ghost")
	assert.False(t, ok)
}

func TestUserCache_Invalidate(t *testing.T) {
	c := NewUserCache(10, time.Minute)
	c.Put(&domain.User{UserID: "u1", Username: "alice"})
	c.Invalidate("u1")

	_, ok := c.Get("u1")
	assert.False(t, ok)
}

func TestUserCache_TTLExpiry(t *testing.T) {
	c := NewUserCache(10, 10*time.Millisecond)
	c.Put(&domain.User{UserID: "u1", Username: "alice"})

	time.Sleep(50 * time.Millisecond)

	_, ok := c.Get("u1")
	assert.False(t, ok, "entry should have expired")
}

func TestUserCache_StaleIsActiveSurvivesOnHit(t *testing.T) {
	// The cache itself does not revalidate is_active; callers must check
	// the returned value. This documents that a hit can carry a stale
	// (now-inactive) snapshot until invalidated.
	c := NewUserCache(10, time.Minute)
	c.Put(&domain.User{UserID: "u1", Username: "alice", IsActive: true})

	got, ok := c.Get("u1")
	assert.True(t, ok)
	assert.True(t, got.IsActive)
}
