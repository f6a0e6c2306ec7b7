// Package publisher implements the Publish and PublishBulk operations that
// tie AuthZ, the Log, the Coordinator, and the two in-process hubs
// together (spec component "Publisher").
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pulsar-relay/relay/internal/authz"
	"github.com/pulsar-relay/relay/internal/coordinator"
	"github.com/pulsar-relay/relay/internal/domain"
	"github.com/pulsar-relay/relay/internal/hub"
	"github.com/pulsar-relay/relay/internal/logstore"
	"github.com/pulsar-relay/relay/internal/store"
	"github.com/pulsar-relay/relay/internal/topicstore"
)

// MessageResponse is the result of a single successful Publish.
type MessageResponse struct {
	MessageID string    `json:"message_id"`
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageResult is one entry of a PublishBulk response.
type MessageResult struct {
	MessageID string `json:"message_id,omitempty"`
	Topic     string `json:"topic"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// BulkSummary accompanies a PublishBulk response.
type BulkSummary struct {
	Total    int `json:"total"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// BulkMessage is one entry of a PublishBulk request.
type BulkMessage struct {
	Topic    string
	Payload  map[string]any
	Metadata map[string]string
}

// Publisher is the relay's single message-publish entry point: every
// message reaches the Log and both hubs only through Publish or
// PublishBulk.
type Publisher struct {
	AuthZ       *authz.Service
	Log         logstore.Log
	LocalHub    *hub.LocalHub
	PollHub     *hub.PollHub
	Coordinator *coordinator.Coordinator
}

func New(az *authz.Service, log logstore.Log, localHub *hub.LocalHub, pollHub *hub.PollHub, coord *coordinator.Coordinator) *Publisher {
	return &Publisher{AuthZ: az, Log: log, LocalHub: localHub, PollHub: pollHub, Coordinator: coord}
}

// Publish appends payload to topic (auto-creating it if necessary) and
// fans the resulting event out to every subscriber, local or remote.
func (p *Publisher) Publish(ctx context.Context, actor *domain.User, topic string, payload map[string]any, metadata map[string]string) (*MessageResponse, error) {
	if err := authz.RequirePermission(actor, domain.PermWrite); err != nil {
		return nil, err
	}

	resolvedTopic, err := p.resolveWritableTopic(ctx, topic, actor)
	if err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	messageID, err := p.Log.Append(ctx, resolvedTopic.TopicName, payload, ts, metadata)
	if err != nil {
		return nil, err
	}

	event := map[string]any{
		"type":       "message",
		"message_id": messageID,
		"topic":      resolvedTopic.TopicName,
		"payload":    payload,
		"timestamp":  ts,
		"metadata":   metadata,
	}
	p.fanOut(ctx, resolvedTopic.TopicName, event)

	return &MessageResponse{MessageID: messageID, Topic: resolvedTopic.TopicName, Timestamp: ts}, nil
}

// resolveWritableTopic returns the topic actor may publish to, auto-creating
// it (via EnsureTopic) when it does not yet exist. When it does exist,
// write access requires admin, ownership, or an explicit grant; unlike read
// access, a public topic alone is not enough.
func (p *Publisher) resolveWritableTopic(ctx context.Context, name string, actor *domain.User) (*domain.Topic, error) {
	existing, err := p.AuthZ.Topics.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return p.AuthZ.EnsureTopic(ctx, name, actor)
		}
		return nil, err
	}
	if !topicstore.CanAccess(existing, actor.UserID, domain.AccessWrite, actor.Permissions) {
		return nil, authz.ErrForbidden
	}
	return existing, nil
}

// fanOut sends event through the Coordinator when it is running (the
// originator receives its own frame back and fans it out through its
// hubs then), otherwise broadcasts directly to the local hubs.
func (p *Publisher) fanOut(ctx context.Context, topic string, event any) {
	if p.Coordinator != nil && p.Coordinator.State() == coordinator.Running {
		if err := p.Coordinator.Publish(ctx, topic, event); err == nil {
			return
		}
		// Publish failed: fall back to local-only fan-out rather than
		// silently dropping delivery to same-process subscribers.
	}
	p.LocalHub.Broadcast(topic, event)
	p.PollHub.Broadcast(topic, event)
}

// PublishBulk enforces the fail-fast access rule: if any distinct topic in
// messages denies access, the whole batch is rejected and nothing is
// appended. Otherwise every message is processed independently and
// per-message append failures are captured in the result rather than
// aborting the batch.
func (p *Publisher) PublishBulk(ctx context.Context, actor *domain.User, messages []BulkMessage) ([]MessageResult, BulkSummary, error) {
	if err := authz.RequirePermission(actor, domain.PermWrite); err != nil {
		return nil, BulkSummary{}, err
	}

	distinctTopics := make(map[string]struct{})
	for _, m := range messages {
		distinctTopics[m.Topic] = struct{}{}
	}

	resolved := make(map[string]*domain.Topic, len(distinctTopics))
	for topic := range distinctTopics {
		t, err := p.resolveWritableTopic(ctx, topic, actor)
		if err != nil {
			return nil, BulkSummary{}, fmt.Errorf("publisher: access denied for topic %q: %w", topic, err)
		}
		resolved[topic] = t
	}

	results := make([]MessageResult, 0, len(messages))
	summary := BulkSummary{Total: len(messages)}

	for _, m := range messages {
		topic := resolved[m.Topic].TopicName
		ts := time.Now().UTC()
		messageID, err := p.Log.Append(ctx, topic, m.Payload, ts, m.Metadata)
		if err != nil {
			results = append(results, MessageResult{Topic: topic, Status: "error", Error: err.Error()})
			summary.Rejected++
			continue
		}

		event := map[string]any{
			"type":       "message",
			"message_id": messageID,
			"topic":      topic,
			"payload":    m.Payload,
			"timestamp":  ts,
			"metadata":   m.Metadata,
		}
		p.fanOut(ctx, topic, event)

		results = append(results, MessageResult{MessageID: messageID, Topic: topic, Status: "accepted"})
		summary.Accepted++
	}

	return results, summary, nil
}
