package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pulsar-relay/relay/internal/api"
	"github.com/pulsar-relay/relay/internal/api/middleware"
	"github.com/pulsar-relay/relay/internal/authz"
	"github.com/pulsar-relay/relay/internal/domain"
	"github.com/pulsar-relay/relay/internal/logstore"
	"github.com/pulsar-relay/relay/internal/topicstore"
	"github.com/pulsar-relay/relay/internal/userstore"
)

// TopicsHandler implements the /api/v1/topics* endpoints.
type TopicsHandler struct {
	Topics topicstore.Store
	Users  userstore.Store
	Log    logstore.Log
}

func NewTopicsHandler(topics topicstore.Store, users userstore.Store, log logstore.Log) *TopicsHandler {
	return &TopicsHandler{Topics: topics, Users: users, Log: log}
}

// Create handles POST /api/v1/topics. The caller becomes the topic's owner.
func (h *TopicsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUser(r.Context())
	if err := authz.RequirePermission(actor, domain.PermWrite); err != nil {
		api.Error(w, http.StatusForbidden, api.ErrCodeForbidden, "write permission required")
		return
	}

	var body domain.TopicCreate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "malformed request body")
		return
	}
	if err := api.ValidateTopicName(body.TopicName); err != nil {
		api.Error(w, http.StatusUnprocessableEntity, api.ErrCodeUnprocessable, err.Error())
		return
	}

	topic := &domain.Topic{
		TopicID:     uuid.NewString(),
		TopicName:   body.TopicName,
		OwnerID:     actor.UserID,
		IsPublic:    body.IsPublic,
		Description: body.Description,
		CreatedAt:   time.Now().UTC(),
	}

	created, err := h.Topics.CreateTopic(r.Context(), topic)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	actor.OwnedTopics = append(actor.OwnedTopics, created.TopicName)
	if _, err := h.Users.UpdateUser(r.Context(), actor); err != nil {
		writeStoreError(w, err)
		return
	}

	api.JSON(w, http.StatusCreated, created.ToPublic())
}

// List handles GET /api/v1/topics: topics the caller owns, is granted
// access to, or (admins) every topic in the system.
func (h *TopicsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUser(r.Context())

	var names []string
	var err error
	if actor.HasPermission(domain.PermAdmin) {
		var all []*domain.Topic
		all, err = h.Topics.ListTopics(r.Context())
		for _, t := range all {
			names = append(names, t.TopicName)
		}
	} else {
		names, err = h.Topics.ListAccessible(r.Context(), actor.UserID)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}

	public := make([]domain.TopicPublic, 0, len(names))
	for _, name := range names {
		t, err := h.Topics.GetByName(r.Context(), name)
		if err != nil {
			continue
		}
		public = append(public, redactAllowedUsers(t, actor))
	}
	api.JSON(w, http.StatusOK, public)
}

// Get handles GET /api/v1/topics/{name}.
func (h *TopicsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUser(r.Context())
	name := mux.Vars(r)["name"]

	topic, err := h.Topics.GetByName(r.Context(), name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !topicstore.CanAccess(topic, actor.UserID, domain.AccessRead, actor.Permissions) {
		api.Error(w, http.StatusForbidden, api.ErrCodeForbidden, "access denied to this topic")
		return
	}

	api.JSON(w, http.StatusOK, redactAllowedUsers(topic, actor))
}

// Update handles PUT /api/v1/topics/{name} (owner or admin only).
func (h *TopicsHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUser(r.Context())
	name := mux.Vars(r)["name"]

	topic, err := h.Topics.GetByName(r.Context(), name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !isOwnerOrAdmin(topic, actor) {
		api.Error(w, http.StatusForbidden, api.ErrCodeForbidden, "only the topic owner can update it")
		return
	}

	var body domain.TopicUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "malformed request body")
		return
	}
	if body.IsPublic != nil {
		topic.IsPublic = *body.IsPublic
	}
	if body.Description != nil {
		topic.Description = *body.Description
	}

	updated, err := h.Topics.UpdateTopic(r.Context(), topic)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, updated.ToPublic())
}

// Delete handles DELETE /api/v1/topics/{name} (owner or admin only).
func (h *TopicsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUser(r.Context())
	name := mux.Vars(r)["name"]

	topic, err := h.Topics.GetByName(r.Context(), name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !isOwnerOrAdmin(topic, actor) {
		api.Error(w, http.StatusForbidden, api.ErrCodeForbidden, "only the topic owner can delete it")
		return
	}

	if _, err := h.Topics.DeleteTopic(r.Context(), name); err != nil {
		writeStoreError(w, err)
		return
	}

	for i, owned := range actor.OwnedTopics {
		if owned == name {
			actor.OwnedTopics = append(actor.OwnedTopics[:i], actor.OwnedTopics[i+1:]...)
			break
		}
	}
	h.Users.UpdateUser(r.Context(), actor)

	w.WriteHeader(http.StatusNoContent)
}

// messagesPage is the response body for GET /api/v1/topics/{name}/messages.
type messagesPage struct {
	Messages   []domain.Message `json:"messages"`
	Total      int              `json:"total"`
	Limit      int              `json:"limit"`
	Order      string           `json:"order"`
	Cursor     string           `json:"cursor,omitempty"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// Messages handles GET /api/v1/topics/{name}/messages.
func (h *TopicsHandler) Messages(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUser(r.Context())
	name := mux.Vars(r)["name"]

	topic, err := h.Topics.GetByName(r.Context(), name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !topicstore.CanAccess(topic, actor.UserID, domain.AccessRead, actor.Permissions) {
		api.Error(w, http.StatusForbidden, api.ErrCodeForbidden, "access denied to this topic")
		return
	}

	q := r.URL.Query()
	order := q.Get("order")
	if order == "" {
		order = "desc"
	}
	if order != "asc" && order != "desc" {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "order must be \"asc\" or \"desc\"")
		return
	}
	limit := 10
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	limit = api.ClampLimit(limit, 10)
	cursor := q.Get("cursor")

	messages, err := h.Log.Range(r.Context(), name, cursor, limit, order == "desc")
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var nextCursor string
	if len(messages) > 0 {
		nextCursor = messages[len(messages)-1].MessageID
	}

	api.JSON(w, http.StatusOK, messagesPage{
		Messages:   messages,
		Total:      len(messages),
		Limit:      limit,
		Order:      order,
		Cursor:     cursor,
		NextCursor: nextCursor,
	})
}

// grantRequest is the request body for POST /api/v1/topics/{name}/permissions.
type grantRequest struct {
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// GrantAccess handles POST /api/v1/topics/{name}/permissions (owner or
// admin only).
func (h *TopicsHandler) GrantAccess(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUser(r.Context())
	name := mux.Vars(r)["name"]

	topic, err := h.Topics.GetByName(r.Context(), name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !isOwnerOrAdmin(topic, actor) {
		api.Error(w, http.StatusForbidden, api.ErrCodeForbidden, "only the topic owner can grant access")
		return
	}

	var body grantRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "malformed request body")
		return
	}
	if body.UserID == "" && body.Username == "" {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "either user_id or username must be provided")
		return
	}

	target, err := h.resolveTargetUser(r, body)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if _, err := h.Topics.GrantAccess(r.Context(), name, target.UserID); err != nil {
		writeStoreError(w, err)
		return
	}

	api.JSON(w, http.StatusCreated, domain.TopicPermission{TopicName: name, UserID: target.UserID})
}

// RevokeAccess handles DELETE /api/v1/topics/{name}/permissions/{user_id}
// (owner or admin only).
func (h *TopicsHandler) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUser(r.Context())
	vars := mux.Vars(r)
	name := vars["name"]
	userID := vars["user_id"]

	topic, err := h.Topics.GetByName(r.Context(), name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !isOwnerOrAdmin(topic, actor) {
		api.Error(w, http.StatusForbidden, api.ErrCodeForbidden, "only the topic owner can revoke access")
		return
	}

	revoked, err := h.Topics.RevokeAccess(r.Context(), name, userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !revoked {
		api.Error(w, http.StatusNotFound, api.ErrCodeNotFound, "user does not have access to this topic")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TopicsHandler) resolveTargetUser(r *http.Request, body grantRequest) (*domain.User, error) {
	if body.UserID != "" {
		return h.Users.GetByID(r.Context(), body.UserID)
	}
	return h.Users.GetByUsername(r.Context(), body.Username)
}

// isOwnerOrAdmin reports whether actor may perform owner-gated operations
// on topic (update, delete, grant/revoke access).
func isOwnerOrAdmin(topic *domain.Topic, actor *domain.User) bool {
	return topic.OwnerID == actor.UserID || actor.HasPermission(domain.PermAdmin)
}

// redactAllowedUsers mirrors the original API's visibility rule: only a
// topic's owner (or an admin) sees the allowed_user_ids list.
func redactAllowedUsers(topic *domain.Topic, actor *domain.User) domain.TopicPublic {
	public := topic.ToPublic()
	if topic.OwnerID != actor.UserID && !actor.HasPermission(domain.PermAdmin) {
		public.AllowedUserIDs = nil
	}
	return public
}
