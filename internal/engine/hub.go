package engine

import (
	"sync"

	"github.com/meridianhq/riskwatch/internal/domain"
)

// Subscriber receives the immutable engine snapshot after every published
// state change. Callbacks run synchronously with the triggering mutation;
// they must not block.
type Subscriber func(snap domain.EngineSnapshot)

// Hub is the observer registry that fans engine snapshots out to in-process
// consumers.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]Subscriber
	next int
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]Subscriber)}
}

// Subscribe registers fn and returns a function that removes the
// subscription. Unsubscribing twice is safe.
func (h *Hub) Subscribe(fn Subscriber) (unsubscribe func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Publish delivers snap to every subscriber, synchronously.
func (h *Hub) Publish(snap domain.EngineSnapshot) {
	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.RUnlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
