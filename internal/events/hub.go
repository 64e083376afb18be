// Package events fans newly logged call events out to connected dashboard
// observers.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Push event names.
const (
	EventNewEvent = "new_event" // logged by the routing webhook
	EventNewCall  = "new_call"  // logged by the notify webhook
)

// defaultBuffer is the per-subscriber queue depth when none is configured.
const defaultBuffer = 16

// Message is one push notification.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Subscription receives published messages on C until it is unsubscribed or
// the hub is closed, at which point C is closed.
type Subscription struct {
	ID string
	C  <-chan Message

	ch chan Message
}

// Hub is a best-effort publish/subscribe fan-out. There is no replay: a
// subscriber only sees messages published while it is subscribed, and a
// subscriber whose queue is full misses the message.
type Hub struct {
	buffer int

	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub creates a Hub with the given per-subscriber queue depth.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		buffer: buffer,
		subs:   make(map[string]*Subscription),
	}
}

// Subscribe registers a new observer. On a closed hub the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Message, h.buffer)
	sub := &Subscription{ID: uuid.NewString(), C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes the observer and closes its channel. It is safe to
// call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID]; !ok {
		return
	}
	delete(h.subs, sub.ID)
	close(sub.ch)
}

// Publish delivers msg to every current subscriber without blocking and
// returns how many received it.
func (h *Hub) Publish(msg Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.published.Add(1)
	delivered := 0
	for _, sub := range h.subs {
		select {
		case sub.ch <- msg:
			delivered++
		default:
			h.dropped.Add(1)
		}
	}
	return delivered
}

// Close ends every subscription. Later publishes reach nobody.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// SubscriberCount returns the number of connected observers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Published returns the number of Publish calls.
func (h *Hub) Published() uint64 { return h.published.Load() }

// Dropped returns the number of per-subscriber deliveries skipped because
// the subscriber's queue was full.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }
