// Package topicstore implements topic persistence with an atomic
// topic_name claim and the CanAccess authorization algorithm (spec
// component "TopicStore").
package topicstore

import (
	"context"

	"github.com/pulsar-relay/relay/internal/domain"
)

// Store persists topics, their access grants, and the per-user
// owned/accessible topic-name indexes.
//
// CreateTopic must atomically claim topic.TopicName: on conflict no record
// is created and store.ErrAlreadyExists is returned.
type Store interface {
	CreateTopic(ctx context.Context, topic *domain.Topic) (*domain.Topic, error)
	GetByName(ctx context.Context, name string) (*domain.Topic, error)
	UpdateTopic(ctx context.Context, topic *domain.Topic) (*domain.Topic, error)
	DeleteTopic(ctx context.Context, name string) (bool, error)
	ListTopics(ctx context.Context) ([]*domain.Topic, error)

	// GrantAccess adds userID to topic's allowed_user_ids. Returns
	// (false, nil) if userID already had access.
	GrantAccess(ctx context.Context, topicName, userID string) (bool, error)
	// RevokeAccess removes userID from topic's allowed_user_ids.
	RevokeAccess(ctx context.Context, topicName, userID string) (bool, error)

	// ListOwned returns the topic names owned by userID.
	ListOwned(ctx context.Context, userID string) ([]string, error)
	// ListAccessible returns topic names owned by userID or granted to
	// userID via allowed_user_ids.
	ListAccessible(ctx context.Context, userID string) ([]string, error)
}

// CanAccess implements the shared authorization algorithm. topic is nil
// when the named topic does not yet exist.
func CanAccess(topic *domain.Topic, userID string, kind domain.AccessKind, userPermissions []domain.Permission) bool {
	for _, p := range userPermissions {
		if p == domain.PermAdmin {
			return true
		}
	}
	if topic == nil {
		// The write path auto-creates; the read path checks existence
		// separately before calling CanAccess.
		return true
	}
	if topic.OwnerID == userID {
		return true
	}
	for _, id := range topic.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	if kind == domain.AccessRead && topic.IsPublic {
		return true
	}
	return false
}
