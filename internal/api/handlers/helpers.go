// Package handlers implements the HTTP surface described in the relay's
// external interface: auth, topics, messages, long-poll, the WS upgrade,
// and health/readiness.
package handlers

import (
	"errors"
	"net/http"

	"github.com/pulsar-relay/relay/internal/api"
	"github.com/pulsar-relay/relay/internal/authz"
	"github.com/pulsar-relay/relay/internal/store"
)

// writeStoreError maps a store/authz sentinel error to the HTTP status and
// error code the error handling design assigns it. Anything unrecognized
// is treated as Internal.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		api.Error(w, http.StatusNotFound, api.ErrCodeNotFound, "not found")
	case errors.Is(err, store.ErrAlreadyExists):
		api.Error(w, http.StatusBadRequest, api.ErrCodeConflict, "already exists")
	case errors.Is(err, store.ErrUnavailable):
		api.Error(w, http.StatusServiceUnavailable, api.ErrCodeServiceUnavail, "storage backend unavailable")
	case errors.Is(err, authz.ErrForbidden):
		api.Error(w, http.StatusForbidden, api.ErrCodeForbidden, "access denied")
	case errors.Is(err, authz.ErrInvalidToken):
		api.Error(w, http.StatusUnauthorized, api.ErrCodeUnauthorized, "invalid or expired token")
	default:
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "internal error")
	}
}
