// Package domain holds the core entities of the relay: users, topics, and
// messages. These types are shared between the stores, AuthZ, the hubs, and
// the HTTP layer.
package domain

import (
	"time"
)

// Permission is a capability granted to a User.
type Permission string

const (
	PermAdmin Permission = "admin"
	PermRead  Permission = "read"
	PermWrite Permission = "write"
)

// User is an authenticated principal. HashedPassword is never serialized to
// clients; handlers must always convert to UserPublic before responding.
type User struct {
	UserID         string       `json:"user_id"`
	Username       string       `json:"username"`
	Email          string       `json:"email,omitempty"`
	HashedPassword string       `json:"-"`
	IsActive       bool         `json:"is_active"`
	CreatedAt      time.Time    `json:"created_at"`
	Permissions    []Permission `json:"permissions"`
	OwnedTopics    []string     `json:"owned_topics"`
}

// HasPermission reports whether the user holds permission p.
func (u *User) HasPermission(p Permission) bool {
	for _, have := range u.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without racing the
// original (used by the cache and the stores' in-memory implementations).
func (u *User) Clone() *User {
	cp := *u
	cp.Permissions = append([]Permission(nil), u.Permissions...)
	cp.OwnedTopics = append([]string(nil), u.OwnedTopics...)
	return &cp
}

// UserPublic is the client-facing projection of User.
type UserPublic struct {
	UserID      string       `json:"user_id"`
	Username    string       `json:"username"`
	Email       string       `json:"email,omitempty"`
	IsActive    bool         `json:"is_active"`
	CreatedAt   time.Time    `json:"created_at"`
	Permissions []Permission `json:"permissions"`
	OwnedTopics []string     `json:"owned_topics"`
}

// ToPublic strips sensitive fields for API responses.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		UserID:      u.UserID,
		Username:    u.Username,
		Email:       u.Email,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
		Permissions: u.Permissions,
		OwnedTopics: u.OwnedTopics,
	}
}

// UserCreate is the request body for creating a user.
type UserCreate struct {
	Username    string       `json:"username"`
	Password    string       `json:"password"`
	Email       string       `json:"email,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// UserUpdate is a partial update to a user; nil fields are left unchanged.
type UserUpdate struct {
	Email       *string      `json:"email,omitempty"`
	IsActive    *bool        `json:"is_active,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// Topic is a named channel. Auto-created topics get Description set to
// "Auto-created topic by <owner username>".
type Topic struct {
	TopicID        string    `json:"topic_id"`
	TopicName      string    `json:"topic_name"`
	OwnerID        string    `json:"owner_id"`
	IsPublic       bool      `json:"is_public"`
	AllowedUserIDs []string  `json:"allowed_user_ids"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Clone returns a deep copy.
func (t *Topic) Clone() *Topic {
	cp := *t
	cp.AllowedUserIDs = append([]string(nil), t.AllowedUserIDs...)
	return &cp
}

// TopicPublic is the client-facing projection of Topic.
type TopicPublic struct {
	TopicID        string    `json:"topic_id"`
	TopicName      string    `json:"topic_name"`
	OwnerID        string    `json:"owner_id"`
	IsPublic       bool      `json:"is_public"`
	AllowedUserIDs []string  `json:"allowed_user_ids"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (t *Topic) ToPublic() TopicPublic {
	return TopicPublic{
		TopicID:        t.TopicID,
		TopicName:      t.TopicName,
		OwnerID:        t.OwnerID,
		IsPublic:       t.IsPublic,
		AllowedUserIDs: t.AllowedUserIDs,
		Description:    t.Description,
		CreatedAt:      t.CreatedAt,
	}
}

// TopicCreate is the request body for POST /api/v1/topics.
type TopicCreate struct {
	TopicName   string `json:"topic_name"`
	IsPublic    bool   `json:"is_public,omitempty"`
	Description string `json:"description,omitempty"`
}

// TopicUpdate is a partial update to a topic.
type TopicUpdate struct {
	IsPublic    *bool   `json:"is_public,omitempty"`
	Description *string `json:"description,omitempty"`
}

// TopicPermission describes a grant of access to a single user.
type TopicPermission struct {
	TopicName string `json:"topic_name"`
	UserID    string `json:"user_id"`
}

// AccessKind distinguishes read access from write access in CanAccess.
type AccessKind string

const (
	AccessRead  AccessKind = "read"
	AccessWrite AccessKind = "write"
)

// Message is a single immutable event appended to a topic's Log.
type Message struct {
	MessageID string            `json:"message_id"`
	Topic     string            `json:"topic"`
	Payload   map[string]any    `json:"payload"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// TokenPayload is the decoded claim set of an auth token.
type TokenPayload struct {
	Subject     string       `json:"sub"`
	Username    string       `json:"username"`
	Permissions []Permission `json:"permissions"`
	IssuedAt    int64        `json:"iat"`
	ExpiresAt   int64        `json:"exp"`
}
