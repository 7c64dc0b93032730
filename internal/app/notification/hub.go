// Package notification provides the hub that fans playback notifications
// out to every observer.
package notification

import (
	"sync"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/tonearm/tonearm/internal/app/player"
)

// DefaultBuffer is the per-subscriber channel buffer used when the config
// does not say otherwise.
const DefaultBuffer = 64

// subscription holds one subscriber's delivery channel.
type subscription struct {
	id string
	ch chan player.Notification
}

// Hub manages subscriptions and broadcasts notifications.
//
// Each subscriber gets its own buffered channel. Broadcast sends are
// non-blocking: a subscriber that falls behind loses updates instead of
// applying backpressure to the controller. Order is preserved per
// subscriber because the controller is the only broadcaster.
type Hub struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	buffer        int
	closed        bool
}

// NewHub creates a hub with the given per-subscriber buffer size.
// Sizes below 1 fall back to DefaultBuffer.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subscriptions: make(map[string]*subscription),
		buffer:        buffer,
	}
}

// Subscribe registers a new subscriber and returns its ID and delivery
// channel. The channel is closed on Unsubscribe or when the hub shuts down.
func (h *Hub) Subscribe() (string, <-chan player.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New().String()
	sub := &subscription{id: id, ch: make(chan player.Notification, h.buffer)}
	if h.closed {
		// Late subscriber on a dead hub gets an already-closed channel.
		close(sub.ch)
		return id, sub.ch
	}
	h.subscriptions[id] = sub
	return id, sub.ch
}

// Unsubscribe removes a subscription and closes its channel.
// Unknown IDs are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subscriptions[id]
	if !ok {
		return
	}
	delete(h.subscriptions, id)
	close(sub.ch)
}

// Broadcast delivers a notification to every current subscriber without
// blocking. A full subscriber buffer means that subscriber loses this
// update; that is never an error for the hub. Broadcast after Close is a
// no-op.
func (h *Hub) Broadcast(n player.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	for _, sub := range h.subscriptions {
		select {
		case sub.ch <- n:
		default:
			zlog.Warn().
				Str("subscription", sub.id).
				Str("notification", n.NotificationType()).
				Msg("hub: subscriber lagging, dropping notification")
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions)
}

// Close shuts the hub down, closing every subscriber channel.
// Safe to call more than once.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subscriptions {
		delete(h.subscriptions, id)
		close(sub.ch)
	}
}
