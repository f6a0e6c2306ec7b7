// Package logstore implements the per-topic append-only message log (spec
// component "Log"): atomic append with monotonic ids, exclusive-cursor
// range reads, and oldest-first trim to a retention cap.
package logstore

import (
	"context"
	"time"

	"github.com/pulsar-relay/relay/internal/domain"
)

// Log is the per-topic append-only message log.
//
// Range must run in time proportional to the number of entries returned,
// not to the length of the topic. Append's cap-enforcing trim must be
// amortized O(1) per call once the topic is at capacity.
type Log interface {
	// Append generates a fresh message_id, strictly greater (in this log's
	// ordering) than every prior id for topic, and stores the message. If
	// the topic is at or above the configured cap after the append, the
	// oldest entries are trimmed down to the cap.
	Append(ctx context.Context, topic string, payload map[string]any, ts time.Time, metadata map[string]string) (string, error)

	// Range returns at most limit entries (limit is expected to already be
	// clamped to [1,100] by the caller). If cursor is empty: entries are
	// returned oldest-first when reverse is false, newest-first when
	// reverse is true. If cursor is non-empty, it is treated as an
	// exclusive bound: reverse=false returns entries strictly after
	// cursor (oldest-first); reverse=true returns entries strictly before
	// cursor, newest-first.
	Range(ctx context.Context, topic string, cursor string, limit int, reverse bool) ([]domain.Message, error)

	// Length reports the number of entries currently retained for topic.
	Length(ctx context.Context, topic string) (int, error)

	// Trim reduces topic to its most recent keep entries and reports how
	// many were removed. A no-op (returns 0) when length <= keep.
	Trim(ctx context.Context, topic string, keep int) (int, error)
}
