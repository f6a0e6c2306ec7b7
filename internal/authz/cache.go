package authz

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/pulsar-relay/relay/internal/domain"
)

// UserCache is a per-process TTL+LRU cache of users keyed by user_id,
// consulted after a successful token verify. A hit still carries whatever
// is_active value was cached, so callers must check it themselves; the
// cache does not assume a hit means the user is still active.
type UserCache struct {
	lru *expirable.LRU[string, *domain.User]
}

// NewUserCache returns a cache holding at most size entries, each expiring
// after ttl.
func NewUserCache(size int, ttl time.Duration) *UserCache {
	return &UserCache{lru: expirable.NewLRU[string, *domain.User](size, nil, ttl)}
}

func (c *UserCache) Get(userID string) (*domain.User, bool) {
	u, ok := c.lru.Get(userID)
	if !ok {
		return nil, false
	}
	return u.Clone(), true
}

func (c *UserCache) Put(user *domain.User) {
	c.lru.Add(user.UserID, user.Clone())
}

// Invalidate drops userID's entry. Callers invoke this after any mutation
// they perform to that user (update, deactivate, delete).
func (c *UserCache) Invalidate(userID string) {
	c.lru.Remove(userID)
}
