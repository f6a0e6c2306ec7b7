// Package authz implements password hashing, token mint/verify, permission
// checks, the auto-create-on-write ensure_topic primitive, and the
// per-process user cache (spec component "AuthZ").
package authz

import "errors"

var (
	// ErrInvalidToken covers tampered, expired, or malformed tokens.
	ErrInvalidToken = errors.New("authz: invalid token")
	// ErrForbidden is returned by RequirePermission when the actor lacks
	// the required permission, and by Service.ResolveUser when the user is
	// inactive.
	ErrForbidden = errors.New("authz: forbidden")
)
