package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// PollHub is the long-poll counterpart to LocalHub: instead of delivering
// directly to a live connection, it enqueues onto each subscribed Waiter's
// bounded queue.
type PollHub struct {
	mu            sync.Mutex
	byWaiter      map[string]*Waiter
	byTopic       map[string]map[string]struct{}
	queueCapacity int
}

func NewPollHub(queueCapacity int) *PollHub {
	return &PollHub{
		byWaiter:      make(map[string]*Waiter),
		byTopic:       make(map[string]map[string]struct{}),
		queueCapacity: queueCapacity,
	}
}

// CreateWaiter allocates a fresh waiter registered under each of topics.
func (h *PollHub) CreateWaiter(topics []string) *Waiter {
	w := newWaiter(uuid.NewString(), topics, h.queueCapacity)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.byWaiter[w.id] = w
	for _, topic := range topics {
		set, ok := h.byTopic[topic]
		if !ok {
			set = make(map[string]struct{})
			h.byTopic[topic] = set
		}
		set[w.id] = struct{}{}
	}
	return w
}

// Broadcast snapshots topic's subscribers under the hub lock, then
// enqueues to each outside the lock so a contended waiter cannot stall
// the hub.
func (h *PollHub) Broadcast(topic string, event any) {
	h.mu.Lock()
	ids := h.byTopic[topic]
	snapshot := make([]*Waiter, 0, len(ids))
	for id := range ids {
		snapshot = append(snapshot, h.byWaiter[id])
	}
	h.mu.Unlock()

	for _, w := range snapshot {
		w.enqueue(event)
	}
}

// RemoveWaiter deregisters id from every topic it was subscribed to.
func (h *PollHub) RemoveWaiter(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(id)
}

func (h *PollHub) removeLocked(id string) {
	w, ok := h.byWaiter[id]
	if !ok {
		return
	}
	for _, topic := range w.topics {
		if set, ok := h.byTopic[topic]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(h.byTopic, topic)
			}
		}
	}
	delete(h.byWaiter, id)
}

// ReapStale removes waiters older than maxAge and reports how many were
// removed. Defensive: the long-poll request path normally removes its own
// waiter unconditionally on exit.
func (h *PollHub) ReapStale(maxAge time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	var stale []string
	for id, w := range h.byWaiter {
		if now.Sub(w.createdAt) > maxAge {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		h.removeLocked(id)
	}
	return len(stale)
}
