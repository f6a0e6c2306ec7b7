package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pulsar-relay/relay/internal/api/handlers"
	"github.com/pulsar-relay/relay/internal/api/middleware"
)

// RouterConfig holds all dependencies required to build the relay's HTTP
// router.
type RouterConfig struct {
	// AllowedOrigins for CORS and the WS upgrade's Origin check. Use ["*"]
	// during development.
	AllowedOrigins []string

	AuthMW *middleware.AuthMiddleware

	AuthHandler     *handlers.AuthHandler
	TopicsHandler   *handlers.TopicsHandler
	MessagesHandler *handlers.MessagesHandler
	PollHandler     *handlers.PollHandler
	StreamHandler   *handlers.StreamHandler
	ReadyHandler    *handlers.ReadyHandler
}

// NewRouter builds a fully-configured *mux.Router with every route in the
// relay's HTTP surface and the middleware chain applied.
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	// ---- Global middleware (applied to every route) -----------------------
	// Order matters: outermost runs first.
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.BodyLimitMiddleware)

	// ---- Public routes (no auth) --------------------------------------------
	r.HandleFunc("/health", handlers.Health).Methods(http.MethodGet, http.MethodOptions)
	r.Handle("/ready", cfg.ReadyHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/auth/login", cfg.AuthHandler.Login).Methods(http.MethodPost, http.MethodOptions)

	// ---- Authenticated routes ------------------------------------------------
	auth := r.NewRoute().Subrouter()
	auth.Use(cfg.AuthMW.Authenticate)

	auth.HandleFunc("/auth/me", cfg.AuthHandler.Me).Methods(http.MethodGet, http.MethodOptions)

	// ---- Admin-only user management -------------------------------------------
	admin := auth.NewRoute().Subrouter()
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/auth/register", cfg.AuthHandler.Register).Methods(http.MethodPost, http.MethodOptions)
	admin.HandleFunc("/auth/users/stats", cfg.AuthHandler.Stats).Methods(http.MethodGet, http.MethodOptions)
	admin.HandleFunc("/auth/users", cfg.AuthHandler.ListUsers).Methods(http.MethodGet, http.MethodOptions)
	admin.HandleFunc("/auth/users/{id}", cfg.AuthHandler.UpdateUser).Methods(http.MethodPatch, http.MethodOptions)
	admin.HandleFunc("/auth/users/{id}", cfg.AuthHandler.DeleteUser).Methods(http.MethodDelete, http.MethodOptions)

	// ---- Topics ----------------------------------------------------------------
	v1 := auth.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/topics", cfg.TopicsHandler.Create).Methods(http.MethodPost, http.MethodOptions)
	v1.HandleFunc("/topics", cfg.TopicsHandler.List).Methods(http.MethodGet, http.MethodOptions)
	v1.HandleFunc("/topics/{name}", cfg.TopicsHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	v1.HandleFunc("/topics/{name}", cfg.TopicsHandler.Update).Methods(http.MethodPut, http.MethodOptions)
	v1.HandleFunc("/topics/{name}", cfg.TopicsHandler.Delete).Methods(http.MethodDelete, http.MethodOptions)
	v1.HandleFunc("/topics/{name}/messages", cfg.TopicsHandler.Messages).Methods(http.MethodGet, http.MethodOptions)
	v1.HandleFunc("/topics/{name}/permissions", cfg.TopicsHandler.GrantAccess).Methods(http.MethodPost, http.MethodOptions)
	v1.HandleFunc("/topics/{name}/permissions/{user_id}", cfg.TopicsHandler.RevokeAccess).Methods(http.MethodDelete, http.MethodOptions)

	// ---- Messages ----------------------------------------------------------------
	v1.HandleFunc("/messages", cfg.MessagesHandler.Create).Methods(http.MethodPost, http.MethodOptions)
	v1.HandleFunc("/messages/bulk", cfg.MessagesHandler.CreateBulk).Methods(http.MethodPost, http.MethodOptions)

	// ---- Long-poll and WebSocket ---------------------------------------------------
	auth.HandleFunc("/messages/poll", cfg.PollHandler.Poll).Methods(http.MethodPost, http.MethodOptions)
	auth.Handle("/ws", cfg.StreamHandler).Methods(http.MethodGet)

	return r
}
