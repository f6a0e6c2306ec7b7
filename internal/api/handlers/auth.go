package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/google/uuid"

	"github.com/pulsar-relay/relay/internal/api"
	"github.com/pulsar-relay/relay/internal/api/middleware"
	"github.com/pulsar-relay/relay/internal/authz"
	"github.com/pulsar-relay/relay/internal/domain"
	"github.com/pulsar-relay/relay/internal/store"
	"github.com/pulsar-relay/relay/internal/userstore"
)

// AuthHandler implements the /auth/* endpoints: login, the current-user
// profile, and admin user management.
type AuthHandler struct {
	authz *authz.Service
	users userstore.Store
}

func NewAuthHandler(az *authz.Service, users userstore.Store) *AuthHandler {
	return &AuthHandler{authz: az, users: users}
}

// tokenResponse is the body returned by POST /auth/login.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Login handles POST /auth/login. Credentials arrive as an HTML form
// (username, password), matching the bearer-token handshake the WS and
// REST clients both expect.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "malformed form body")
		return
	}
	username := r.FormValue("username")
	password := r.FormValue("password")
	if username == "" || password == "" {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "username and password are required")
		return
	}

	_, token, expiresAt, err := h.authz.Authenticate(r.Context(), username, password)
	if err != nil {
		api.Error(w, http.StatusUnauthorized, api.ErrCodeUnauthorized, "incorrect username or password")
		return
	}

	api.JSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(time.Until(expiresAt).Seconds()),
	})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	public := user.ToPublic()
	api.JSON(w, http.StatusOK, public)
}

// Register handles POST /auth/register (admin only).
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body domain.UserCreate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "malformed request body")
		return
	}
	if err := api.ValidateUsername(body.Username); err != nil {
		api.Error(w, http.StatusUnprocessableEntity, api.ErrCodeUnprocessable, err.Error())
		return
	}
	if err := api.ValidatePassword(body.Password); err != nil {
		api.Error(w, http.StatusUnprocessableEntity, api.ErrCodeUnprocessable, err.Error())
		return
	}

	hashed, err := authz.HashPassword(body.Password)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "failed to hash password")
		return
	}

	user := &domain.User{
		UserID:         "usr_" + uuid.NewString(),
		Username:       body.Username,
		Email:          body.Email,
		HashedPassword: hashed,
		IsActive:       true,
		Permissions:    body.Permissions,
	}

	created, err := h.users.CreateUser(r.Context(), user)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			api.Error(w, http.StatusBadRequest, api.ErrCodeConflict, "username already exists")
			return
		}
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "failed to create user")
		return
	}

	public := created.ToPublic()
	api.JSON(w, http.StatusCreated, public)
}

// ListUsers handles GET /auth/users (admin only).
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	public := make([]domain.UserPublic, 0, len(users))
	for _, u := range users {
		public = append(public, u.ToPublic())
	}
	api.JSON(w, http.StatusOK, public)
}

// UpdateUser handles PATCH /auth/users/{id} (admin only).
func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	var body domain.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "malformed request body")
		return
	}

	existing, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if body.Email != nil {
		existing.Email = *body.Email
	}
	if body.IsActive != nil {
		existing.IsActive = *body.IsActive
	}
	if body.Permissions != nil {
		existing.Permissions = body.Permissions
	}

	updated, err := h.users.UpdateUser(r.Context(), existing)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	h.authz.Cache.Invalidate(userID)

	api.JSON(w, http.StatusOK, updated.ToPublic())
}

// DeleteUser handles DELETE /auth/users/{id} (admin only). Self-deletion is
// rejected so an admin can never lock themselves out.
func (h *AuthHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	actor := middleware.GetUser(r.Context())

	if actor.UserID == userID {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "cannot delete your own account")
		return
	}

	deleted, err := h.users.DeleteUser(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !deleted {
		api.Error(w, http.StatusNotFound, api.ErrCodeNotFound, "user not found")
		return
	}
	h.authz.Cache.Invalidate(userID)

	w.WriteHeader(http.StatusNoContent)
}

// userStats is the response body for GET /auth/users/stats.
type userStats struct {
	TotalUsers  int `json:"total_users"`
	ActiveUsers int `json:"active_users"`
}

// Stats handles GET /auth/users/stats (admin only).
func (h *AuthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	stats := userStats{TotalUsers: len(users)}
	for _, u := range users {
		if u.IsActive {
			stats.ActiveUsers++
		}
	}
	api.JSON(w, http.StatusOK, stats)
}
