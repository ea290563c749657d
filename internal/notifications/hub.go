package notifications

import (
	"context"
	"sync"
)

const subscriberBuffer = 32

// Hub broadcasts events in-process to per-job subscribers.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[chan Event]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe returns a channel of events for jobID and a cancel func. The
// channel is closed after a terminal event, on cancel, or when the hub closes.
func (h *Hub) Subscribe(jobID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[chan Event]struct{})
	}
	h.subs[jobID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.remove(jobID, ch) })
	}
}

func (h *Hub) remove(jobID string, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[jobID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(h.subs, jobID)
	}
}

// Publish delivers event to subscribers of its job. Slow subscribers miss
// events rather than block the worker. A terminal event closes the job's streams.
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[event.JobID]
	for ch := range set {
		select {
		case ch <- event:
		default:
		}
		if event.Terminal() {
			close(ch)
			delete(set, ch)
		}
	}
	if event.Terminal() {
		delete(h.subs, event.JobID)
	}
	return nil
}

// Subscribers returns the subscriber count for jobID.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}

// Close ends every subscription.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.subs {
		for ch := range set {
			close(ch)
		}
		delete(h.subs, id)
	}
	h.closed = true
	return nil
}
