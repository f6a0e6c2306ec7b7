package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pulsar-relay/relay/internal/domain"
	"github.com/pulsar-relay/relay/internal/store"
	"github.com/pulsar-relay/relay/internal/topicstore"
	"github.com/pulsar-relay/relay/internal/userstore"
)

// Service is the AuthZ component: password verification, token mint/verify,
// permission checks, the ensure_topic auto-create primitive, and cached
// user resolution.
type Service struct {
	Users  userstore.Store
	Topics topicstore.Store
	Tokens *TokenIssuer
	Cache  *UserCache
}

func NewService(users userstore.Store, topics topicstore.Store, tokens *TokenIssuer, cache *UserCache) *Service {
	return &Service{Users: users, Topics: topics, Tokens: tokens, Cache: cache}
}

// Authenticate verifies username/password and mints a token on success.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*domain.User, string, time.Time, error) {
	user, err := s.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", time.Time{}, ErrInvalidToken
		}
		return nil, "", time.Time{}, err
	}
	if !user.IsActive || !VerifyPassword(user.HashedPassword, password) {
		return nil, "", time.Time{}, ErrInvalidToken
	}

	token, expiresAt, err := s.Tokens.Mint(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	s.Cache.Put(user)
	return user, token, expiresAt, nil
}

// ResolveUser verifies the token and looks up the corresponding user
// through the cache, revalidating is_active on every call regardless of
// whether the lookup was a cache hit or miss.
func (s *Service) ResolveUser(ctx context.Context, tokenString string) (*domain.User, error) {
	payload, err := s.Tokens.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	user, ok := s.Cache.Get(payload.Subject)
	if !ok {
		user, err = s.Users.GetByID(ctx, payload.Subject)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrInvalidToken
			}
			return nil, err
		}
		s.Cache.Put(user)
	}

	if !user.IsActive {
		return nil, ErrForbidden
	}
	return user, nil
}

// RequirePermission succeeds iff perm is among user's permissions.
func RequirePermission(user *domain.User, perm domain.Permission) error {
	if user.HasPermission(perm) {
		return nil
	}
	return ErrForbidden
}

// EnsureTopic is the only code path that creates topics implicitly. It
// returns the existing topic if name is already taken, otherwise races to
// create it and defers to the winner on a lost race.
func (s *Service) EnsureTopic(ctx context.Context, name string, actor *domain.User) (*domain.Topic, error) {
	existing, err := s.Topics.GetByName(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	topic := &domain.Topic{
		TopicID:     uuid.NewString(),
		TopicName:   name,
		OwnerID:     actor.UserID,
		IsPublic:    false,
		Description: fmt.Sprintf("Auto-created topic by %s", actor.Username),
		CreatedAt:   time.Now().UTC(),
	}
	created, err := s.Topics.CreateTopic(ctx, topic)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return s.Topics.GetByName(ctx, name)
		}
		return nil, err
	}

	actor.OwnedTopics = append(actor.OwnedTopics, name)
	if _, err := s.Users.UpdateUser(ctx, actor); err != nil {
		return nil, err
	}
	s.Cache.Invalidate(actor.UserID)

	return created, nil
}
