// Package hub implements the two in-process fan-out paths for a published
// message — LocalHub for live WebSocket sessions and PollHub for long-poll
// waiters — plus the WS session state machine that sits on top of LocalHub.
package hub

import "sync"

// Session is the subset of a live WebSocket connection LocalHub needs to
// fan a message out to it. The concrete implementation is *WSSession.
type Session interface {
	ID() string
	Deliver(event any) error
}

// LocalHub tracks which sessions are subscribed to which topics within this
// process and fans out published events to them.
//
// Connect/Unsubscribe/Disconnect mutate byTopic and bySession under mu.
// Broadcast snapshots the subscriber set under a read lock, releases it,
// then delivers outside the lock so a slow or dead session cannot stall
// the hub; sessions whose delivery fails are evicted afterward under a
// write lock.
type LocalHub struct {
	mu        sync.RWMutex
	byTopic   map[string]map[string]Session
	bySession map[string]map[string]struct{}
}

func NewLocalHub() *LocalHub {
	return &LocalHub{
		byTopic:   make(map[string]map[string]Session),
		bySession: make(map[string]map[string]struct{}),
	}
}

func (h *LocalHub) Connect(session Session, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := session.ID()
	topicSet, ok := h.bySession[id]
	if !ok {
		topicSet = make(map[string]struct{})
		h.bySession[id] = topicSet
	}
	for _, topic := range topics {
		subs, ok := h.byTopic[topic]
		if !ok {
			subs = make(map[string]Session)
			h.byTopic[topic] = subs
		}
		subs[id] = session
		topicSet[topic] = struct{}{}
	}
}

func (h *LocalHub) Unsubscribe(sessionID string, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(sessionID, topics)
}

func (h *LocalHub) unsubscribeLocked(sessionID string, topics []string) {
	topicSet, ok := h.bySession[sessionID]
	if !ok {
		return
	}
	for _, topic := range topics {
		delete(topicSet, topic)
		if subs, ok := h.byTopic[topic]; ok {
			delete(subs, sessionID)
			if len(subs) == 0 {
				delete(h.byTopic, topic)
			}
		}
	}
}

func (h *LocalHub) Disconnect(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topicSet, ok := h.bySession[sessionID]
	if !ok {
		return
	}
	topics := make([]string, 0, len(topicSet))
	for topic := range topicSet {
		topics = append(topics, topic)
	}
	h.unsubscribeLocked(sessionID, topics)
	delete(h.bySession, sessionID)
}

// Broadcast delivers event to every session currently subscribed to topic
// and reports how many deliveries succeeded. Messages published on a
// single topic by a single caller are delivered to each session in
// Broadcast call order; no ordering is guaranteed across topics or
// concurrent Broadcast calls.
func (h *LocalHub) Broadcast(topic string, event any) int {
	h.mu.RLock()
	subs := h.byTopic[topic]
	snapshot := make([]Session, 0, len(subs))
	for _, s := range subs {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	delivered := 0
	var failed []string
	for _, s := range snapshot {
		if err := s.Deliver(event); err != nil {
			failed = append(failed, s.ID())
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, id := range failed {
			h.unsubscribeLocked(id, topicsOf(h.bySession[id]))
			delete(h.bySession, id)
		}
		h.mu.Unlock()
	}
	return delivered
}

func topicsOf(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	return out
}
