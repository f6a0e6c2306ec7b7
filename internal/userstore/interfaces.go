// Package userstore implements user persistence with an atomic
// username→user_id claim (spec component "UserStore").
package userstore

import (
	"context"

	"github.com/pulsar-relay/relay/internal/domain"
)

// Store persists users and enforces username uniqueness.
//
// CreateUser must atomically claim user.Username: on a claim conflict no
// user record is created and store.ErrAlreadyExists is returned. All other
// lookups return store.ErrNotFound when the target does not exist, and
// store.ErrUnavailable on transport failure.
type Store interface {
	// CreateUser claims user.Username and persists user. The caller is
	// expected to have already populated UserID, HashedPassword, and
	// Permissions.
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)

	GetByID(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// UpdateUser overwrites the whole record identified by user.UserID.
	UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error)

	// DeleteUser removes the user record and releases the username claim.
	DeleteUser(ctx context.Context, userID string) (bool, error)

	ListUsers(ctx context.Context) ([]*domain.User, error)
}
