package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsar-relay/relay/internal/authz"
	"github.com/pulsar-relay/relay/internal/domain"
	"github.com/pulsar-relay/relay/internal/hub"
	"github.com/pulsar-relay/relay/internal/logstore"
	"github.com/pulsar-relay/relay/internal/topicstore"
	"github.com/pulsar-relay/relay/internal/userstore"
)

func newTestPublisher(t *testing.T) (*Publisher, *domain.User) {
	t.Helper()
	users := userstore.NewMemoryStore()
	topics := topicstore.NewMemoryStore()
	tokens := authz.NewTokenIssuer("test-secret", time.Hour)
	cache := authz.NewUserCache(100, time.Minute)
	az := authz.NewService(users, topics, tokens, cache)

	hashed, err := authz.HashPassword("pw123456")
	require.NoError(t, err)
	actor := &domain.User{
		UserID:      "u1",
		Username:    "writer",
		HashedPassword: hashed,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
		Permissions: []domain.Permission{domain.PermWrite},
	}
	_, err = users.CreateUser(context.Background(), actor)
	require.NoError(t, err)

	log := logstore.NewMemoryLog(1000)
	localHub := hub.NewLocalHub()
	pollHub := hub.NewPollHub(100)

	p := New(az, log, localHub, pollHub, nil)
	return p, actor
}

func TestPublisher_Publish_RequiresWritePermission(t *testing.T) {
	p, _ := newTestPublisher(t)
	readOnly := &domain.User{UserID: "u2", Username: "reader", IsActive: true, Permissions: []domain.Permission{domain.PermRead}}

	_, err := p.Publish(context.Background(), readOnly, "alerts", map[string]any{"x": 1.0}, nil)
	assert.ErrorIs(t, err, authz.ErrForbidden)
}

func TestPublisher_Publish_AutoCreatesTopicAndAppends(t *testing.T) {
	p, actor := newTestPublisher(t)

	resp, err := p.Publish(context.Background(), actor, "alerts", map[string]any{"msg": "hi"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "alerts", resp.Topic)
	assert.NotEmpty(t, resp.MessageID)

	msgs, err := p.Log.Range(context.Background(), "alerts", "", 10, false)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, resp.MessageID, msgs[0].MessageID)
}

func TestPublisher_Publish_BroadcastsToLocalAndPollHubs(t *testing.T) {
	p, actor := newTestPublisher(t)

	sub := p.PollHub.CreateWaiter([]string{"alerts"})

	_, err := p.Publish(context.Background(), actor, "alerts", map[string]any{"msg": "hi"}, nil)
	require.NoError(t, err)

	msgs := sub.WaitForMessages(time.Second)
	require.Len(t, msgs, 1)
}

func TestPublisher_PublishBulk_AllTopicsAccessible_AcceptsAll(t *testing.T) {
	p, actor := newTestPublisher(t)

	messages := []BulkMessage{
		{Topic: "a", Payload: map[string]any{"n": 1.0}},
		{Topic: "b", Payload: map[string]any{"n": 2.0}},
		{Topic: "a", Payload: map[string]any{"n": 3.0}},
	}

	results, summary, err := p.PublishBulk(context.Background(), actor, messages)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Accepted)
	assert.Equal(t, 0, summary.Rejected)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, "accepted", r.Status)
		assert.NotEmpty(t, r.MessageID)
	}
}

func TestPublisher_PublishBulk_AnyTopicDenied_FailsFastWithNothingAppended(t *testing.T) {
	p, actor := newTestPublisher(t)

	// Create a private topic owned by someone else so actor cannot write to it.
	other := &domain.User{UserID: "owner2", Username: "owner2", IsActive: true, Permissions: []domain.Permission{domain.PermWrite}}
	_, err := p.AuthZ.Users.CreateUser(context.Background(), other)
	require.NoError(t, err)
	_, err = p.AuthZ.Topics.CreateTopic(context.Background(), &domain.Topic{
		TopicID:   "t-locked",
		TopicName: "locked",
		OwnerID:   other.UserID,
		IsPublic:  false,
	})
	require.NoError(t, err)

	messages := []BulkMessage{
		{Topic: "open", Payload: map[string]any{"n": 1.0}},
		{Topic: "locked", Payload: map[string]any{"n": 2.0}},
	}

	_, _, err = p.PublishBulk(context.Background(), actor, messages)
	require.Error(t, err)

	length, lerr := p.Log.Length(context.Background(), "open")
	require.NoError(t, lerr)
	assert.Equal(t, 0, length, "no message should have been appended once any topic in the batch is denied")
}

func TestPublisher_PublishBulk_RepeatedTopic_AcceptsEachMessage(t *testing.T) {
	p, actor := newTestPublisher(t)

	messages := []BulkMessage{
		{Topic: "a", Payload: map[string]any{"n": 1.0}},
		{Topic: "a", Payload: map[string]any{"n": 2.0}},
	}

	results, summary, err := p.PublishBulk(context.Background(), actor, messages)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Accepted)
	assert.Len(t, results, 2)
}
