package logstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulsar-relay/relay/internal/domain"
	"github.com/pulsar-relay/relay/internal/store"
)

// RedisLog is a Log backed by a Redis stream per topic (key
// "stream:topic:<name>"). The stream entry id assigned by Redis is used
// directly as message_id, which is already monotonic and lexicographically
// comparable within a stream.
type RedisLog struct {
	client *redis.Client
	cap    int64
}

// NewRedisLog returns a Log that trims each topic's stream down to
// maxPerTopic entries on every append.
func NewRedisLog(client *redis.Client, maxPerTopic int) *RedisLog {
	return &RedisLog{client: client, cap: int64(maxPerTopic)}
}

func streamKey(topic string) string {
	return "stream:topic:" + topic
}

func (l *RedisLog) Append(ctx context.Context, topic string, payload map[string]any, ts time.Time, metadata map[string]string) (string, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("logstore: marshal payload: %w", err)
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("logstore: marshal metadata: %w", err)
	}

	id, err := l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(topic),
		MaxLen: l.cap,
		Approx: false, // exact trim: the cap is a hard limit, not a hint
		Values: map[string]interface{}{
			"payload":   string(payloadJSON),
			"timestamp": ts.Format(time.RFC3339Nano),
			"metadata":  string(metadataJSON),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("logstore: xadd: %w: %v", store.ErrUnavailable, err)
	}
	return id, nil
}

func (l *RedisLog) Range(ctx context.Context, topic string, cursor string, limit int, reverse bool) ([]domain.Message, error) {
	key := streamKey(topic)
	var raw []redis.XMessage
	var err error

	if !reverse {
		start := "-"
		if cursor != "" {
			start = "(" + cursor
		}
		raw, err = l.client.XRangeN(ctx, key, start, "+", int64(limit)).Result()
	} else {
		stop := "-"
		start := "+"
		if cursor != "" {
			start = "(" + cursor
		}
		raw, err = l.client.XRevRangeN(ctx, key, start, stop, int64(limit)).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("logstore: range: %w: %v", store.ErrUnavailable, err)
	}

	out := make([]domain.Message, 0, len(raw))
	for _, xm := range raw {
		msg, err := decodeXMessage(topic, xm)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func (l *RedisLog) Length(ctx context.Context, topic string) (int, error) {
	n, err := l.client.XLen(ctx, streamKey(topic)).Result()
	if err != nil {
		return 0, fmt.Errorf("logstore: xlen: %w: %v", store.ErrUnavailable, err)
	}
	return int(n), nil
}

func (l *RedisLog) Trim(ctx context.Context, topic string, keep int) (int, error) {
	removed, err := l.client.XTrimMaxLen(ctx, streamKey(topic), int64(keep)).Result()
	if err != nil {
		return 0, fmt.Errorf("logstore: xtrim: %w: %v", store.ErrUnavailable, err)
	}
	return int(removed), nil
}

func decodeXMessage(topic string, xm redis.XMessage) (domain.Message, error) {
	ts, _ := time.Parse(time.RFC3339Nano, stringField(xm.Values, "timestamp"))

	var payload map[string]any
	if raw := stringField(xm.Values, "payload"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return domain.Message{}, fmt.Errorf("logstore: decode payload: %w", err)
		}
	}
	var metadata map[string]string
	if raw := stringField(xm.Values, "metadata"); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			return domain.Message{}, fmt.Errorf("logstore: decode metadata: %w", err)
		}
	}

	return domain.Message{
		MessageID: xm.ID,
		Topic:     topic,
		Payload:   payload,
		Timestamp: ts,
		Metadata:  metadata,
	}, nil
}

func stringField(values map[string]interface{}, key string) string {
	v, ok := values[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
