package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pulsar-relay/relay/internal/api/middleware"
	"github.com/pulsar-relay/relay/internal/domain"
	"github.com/pulsar-relay/relay/internal/hub"
)

// newUpgrader creates a websocket.Upgrader that validates the Origin header
// against the provided allowlist. If allowedOrigins contains "*", all
// origins are permitted (development convenience). Otherwise the request's
// Origin header must match one of the listed values exactly.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := false
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
			break
		}
		originSet[o] = struct{}{}
	}

	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return false
			}
			_, ok := originSet[origin]
			return ok
		},
	}
}

// StreamHandler handles GET /ws -- upgrades to WebSocket. The caller has
// already been authenticated by AuthMiddleware (which falls back to the
// `?token=` query parameter when no Authorization header is present, since
// browsers cannot set custom headers on a WS handshake).
type StreamHandler struct {
	localHub *hub.LocalHub
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewStreamHandler(localHub *hub.LocalHub, allowedOrigins []string, log *slog.Logger) *StreamHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StreamHandler{
		localHub: localHub,
		upgrader: newUpgrader(allowedOrigins),
		log:      log,
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !user.HasPermission(domain.PermRead) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	session := hub.NewWSSession(uuid.NewString(), conn, user, h.localHub, h.log)
	go session.Run()
}
