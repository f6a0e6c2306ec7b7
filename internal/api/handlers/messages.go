package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pulsar-relay/relay/internal/api"
	"github.com/pulsar-relay/relay/internal/api/middleware"
	"github.com/pulsar-relay/relay/internal/authz"
	"github.com/pulsar-relay/relay/internal/publisher"
)

// MessagesHandler implements /api/v1/messages and /api/v1/messages/bulk.
type MessagesHandler struct {
	Publisher *publisher.Publisher
}

func NewMessagesHandler(pub *publisher.Publisher) *MessagesHandler {
	return &MessagesHandler{Publisher: pub}
}

// messageRequest is the request body for POST /api/v1/messages.
type messageRequest struct {
	Topic    string            `json:"topic"`
	Payload  map[string]any    `json:"payload"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Create handles POST /api/v1/messages.
func (h *MessagesHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUser(r.Context())

	var body messageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "malformed request body")
		return
	}
	if err := api.ValidateTopicName(body.Topic); err != nil {
		api.Error(w, http.StatusUnprocessableEntity, api.ErrCodeUnprocessable, err.Error())
		return
	}

	resp, err := h.Publisher.Publish(r.Context(), actor, body.Topic, body.Payload, body.Metadata)
	if err != nil {
		writePublishError(w, err)
		return
	}

	api.JSON(w, http.StatusCreated, resp)
}

// bulkRequest is the request body for POST /api/v1/messages/bulk.
type bulkRequest struct {
	Messages []messageRequest `json:"messages"`
}

// CreateBulk handles POST /api/v1/messages/bulk.
func (h *MessagesHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUser(r.Context())

	var body bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "malformed request body")
		return
	}
	if err := api.ValidateBulkSize(len(body.Messages)); err != nil {
		api.Error(w, http.StatusUnprocessableEntity, api.ErrCodeUnprocessable, err.Error())
		return
	}

	messages := make([]publisher.BulkMessage, 0, len(body.Messages))
	for _, m := range body.Messages {
		if err := api.ValidateTopicName(m.Topic); err != nil {
			api.Error(w, http.StatusUnprocessableEntity, api.ErrCodeUnprocessable, err.Error())
			return
		}
		messages = append(messages, publisher.BulkMessage{Topic: m.Topic, Payload: m.Payload, Metadata: m.Metadata})
	}

	results, summary, err := h.Publisher.PublishBulk(r.Context(), actor, messages)
	if err != nil {
		writePublishError(w, err)
		return
	}

	api.JSON(w, http.StatusMultiStatus, struct {
		Results []publisher.MessageResult `json:"results"`
		Summary publisher.BulkSummary     `json:"summary"`
	}{Results: results, Summary: summary})
}

// writePublishError maps the error kinds a Publish/PublishBulk call can
// return. A wrapped authz.ErrForbidden (the fail-fast bulk access-denial
// case) still maps to 403.
func writePublishError(w http.ResponseWriter, err error) {
	if errors.Is(err, authz.ErrForbidden) {
		api.Error(w, http.StatusForbidden, api.ErrCodeForbidden, "write permission required")
		return
	}
	writeStoreError(w, err)
}
