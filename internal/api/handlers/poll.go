package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pulsar-relay/relay/internal/api"
	"github.com/pulsar-relay/relay/internal/api/middleware"
	"github.com/pulsar-relay/relay/internal/authz"
	"github.com/pulsar-relay/relay/internal/domain"
	"github.com/pulsar-relay/relay/internal/hub"
	"github.com/pulsar-relay/relay/internal/logstore"
)

const (
	pollMinTimeout = 1 * time.Second
	pollMaxTimeout = 60 * time.Second
	pollCatchUpCap = 100
)

// PollHandler implements POST /messages/poll, the long-poll fallback to the
// WebSocket stream.
type PollHandler struct {
	PollHub *hub.PollHub
	Log     logstore.Log
}

func NewPollHandler(pollHub *hub.PollHub, log logstore.Log) *PollHandler {
	return &PollHandler{PollHub: pollHub, Log: log}
}

// pollRequest is the request body for POST /messages/poll.
type pollRequest struct {
	Topics  []string          `json:"topics"`
	Since   map[string]string `json:"since,omitempty"`
	Timeout int               `json:"timeout"`
}

// pollResponse is the response body for POST /messages/poll.
type pollResponse struct {
	Messages []any `json:"messages"`
	HasMore  bool  `json:"has_more"`
}

// Poll handles POST /messages/poll, following the lifecycle in the relay's
// poll-waiter design: first drain any backlog named by `since`, and only
// block on a fresh Waiter if that backlog was empty.
func (h *PollHandler) Poll(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUser(r.Context())
	if err := authz.RequirePermission(actor, domain.PermRead); err != nil {
		api.Error(w, http.StatusForbidden, api.ErrCodeForbidden, "read permission required")
		return
	}

	var body pollRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "malformed request body")
		return
	}
	if len(body.Topics) == 0 {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "at least one topic is required")
		return
	}
	if body.Timeout <= 0 {
		body.Timeout = 30
	}
	timeout := time.Duration(body.Timeout) * time.Second
	if timeout < pollMinTimeout || timeout > pollMaxTimeout {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "timeout must be 1..60 seconds")
		return
	}

	var backlog []any
	if body.Since != nil {
		for _, topic := range body.Topics {
			cursor := body.Since[topic]
			msgs, err := h.Log.Range(r.Context(), topic, cursor, pollCatchUpCap, false)
			if err != nil {
				writeStoreError(w, err)
				return
			}
			for _, m := range msgs {
				backlog = append(backlog, catchUpEvent(topic, m))
			}
		}
	}

	if len(backlog) > 0 {
		api.JSON(w, http.StatusOK, pollResponse{Messages: backlog, HasMore: len(backlog) >= pollCatchUpCap})
		return
	}

	waiter := h.PollHub.CreateWaiter(body.Topics)
	defer h.PollHub.RemoveWaiter(waiter.ID())

	events := waiter.WaitForMessages(timeout)
	if events == nil {
		events = []any{}
	}
	api.JSON(w, http.StatusOK, pollResponse{Messages: events, HasMore: false})
}

// catchUpEvent shapes a Log.Range entry to match the frame shape fanned
// out live through the hubs.
func catchUpEvent(topic string, m domain.Message) map[string]any {
	return map[string]any{
		"type":       "message",
		"message_id": m.MessageID,
		"topic":      topic,
		"payload":    m.Payload,
		"timestamp":  m.Timestamp,
		"metadata":   m.Metadata,
	}
}
