package transport

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Hub is an in-process broadcast medium linking every joined MemoryTransport
// to every other. Deliveries are queued rather than run inline; Flush drains
// them in order, which gives tests a deterministic single-threaded schedule.
type Hub struct {
	mu      sync.Mutex
	members map[string]*MemoryTransport
	order   []string
	pending []func()
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{members: make(map[string]*MemoryTransport)}
}

// Join creates a transport with a fresh network identity and links it to
// every current member. Peer-up callbacks fire on the next Flush.
func (h *Hub) Join() *MemoryTransport {
	t := &MemoryTransport{
		hub:      h,
		id:       uuid.NewString(),
		handlers: make(map[string]MessageHandler),
		linked:   true,
	}

	h.mu.Lock()
	for _, id := range h.order {
		other := h.members[id]
		if !other.linked {
			continue
		}
		h.enqueuePeerUp(other, t.id)
		h.enqueuePeerUp(t, other.id)
	}
	h.members[t.id] = t
	h.order = append(h.order, t.id)
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Join",
		"peer_id":  t.id,
	}).Debug("Transport joined hub")

	return t
}

// Flush runs queued deliveries, including any queued while flushing, until
// none remain. It returns how many ran.
func (h *Hub) Flush() int {
	count := 0
	for {
		h.mu.Lock()
		if len(h.pending) == 0 {
			h.mu.Unlock()
			return count
		}
		next := h.pending[0]
		h.pending = h.pending[1:]
		h.mu.Unlock()

		next()
		count++
	}
}

// Pending returns the number of queued deliveries.
func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// enqueuePeerUp must be called with h.mu held.
func (h *Hub) enqueuePeerUp(target *MemoryTransport, peerID string) {
	h.pending = append(h.pending, func() { target.firePeer(true, peerID) })
}

// enqueuePeerDown must be called with h.mu held.
func (h *Hub) enqueuePeerDown(target *MemoryTransport, peerID string) {
	h.pending = append(h.pending, func() { target.firePeer(false, peerID) })
}

// unlink drops every link of t, queueing peer-down on both sides.
func (h *Hub) unlink(t *MemoryTransport) {
	for _, id := range h.order {
		other := h.members[id]
		if other == t || !other.linked {
			continue
		}
		h.enqueuePeerDown(other, t.id)
		h.enqueuePeerDown(t, other.id)
	}
}

// MemoryTransport is a Transport attached to a Hub.
type MemoryTransport struct {
	hub        *Hub
	id         string
	handlers   map[string]MessageHandler
	peerUp     []PeerHandler
	peerDown   []PeerHandler
	publishErr error
	linked     bool
	closed     bool
}

// LocalID returns the transport's network identity.
func (t *MemoryTransport) LocalID() string {
	return t.id
}

// RegisterHandler subscribes to a topic.
func (t *MemoryTransport) RegisterHandler(topic string, handler MessageHandler) {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	t.handlers[topic] = handler
}

// OnPeerUp registers a link-up callback.
func (t *MemoryTransport) OnPeerUp(handler PeerHandler) {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	t.peerUp = append(t.peerUp, handler)
}

// OnPeerDown registers a link-down callback.
func (t *MemoryTransport) OnPeerDown(handler PeerHandler) {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	t.peerDown = append(t.peerDown, handler)
}

// SetPublishError makes every later Publish fail with err; nil restores
// normal delivery.
func (t *MemoryTransport) SetPublishError(err error) {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	t.publishErr = err
}

// Publish queues data for every other linked member. The publisher never
// receives its own record.
func (t *MemoryTransport) Publish(topic string, data []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.publishErr != nil {
		return t.publishErr
	}
	if !t.linked {
		return nil
	}

	for _, id := range t.hub.order {
		target := t.hub.members[id]
		if target == t || !target.linked {
			continue
		}
		payload := append([]byte(nil), data...)
		from := t.id
		t.hub.pending = append(t.hub.pending, func() { target.deliver(topic, from, payload) })
	}
	return nil
}

// Disconnect drops every link without closing the transport, as if the
// network went away. Queued deliveries to it are discarded when flushed.
func (t *MemoryTransport) Disconnect() {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	if t.closed || !t.linked {
		return
	}
	t.hub.unlink(t)
	t.linked = false
}

// Reconnect restores the links dropped by Disconnect under the same identity.
func (t *MemoryTransport) Reconnect() {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	if t.closed || t.linked {
		return
	}
	t.linked = true
	for _, id := range t.hub.order {
		other := t.hub.members[id]
		if other == t || !other.linked {
			continue
		}
		t.hub.enqueuePeerUp(other, t.id)
		t.hub.enqueuePeerUp(t, other.id)
	}
}

// Close detaches the transport from the hub; the others see peer-down.
func (t *MemoryTransport) Close() error {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()

	if t.closed {
		return nil
	}
	if t.linked {
		for _, id := range t.hub.order {
			other := t.hub.members[id]
			if other == t || !other.linked {
				continue
			}
			t.hub.enqueuePeerDown(other, t.id)
		}
	}
	t.closed = true
	t.linked = false

	delete(t.hub.members, t.id)
	for i, id := range t.hub.order {
		if id == t.id {
			t.hub.order = append(t.hub.order[:i], t.hub.order[i+1:]...)
			break
		}
	}
	return nil
}

func (t *MemoryTransport) deliver(topic, from string, data []byte) {
	t.hub.mu.Lock()
	handler, ok := t.handlers[topic]
	active := t.linked && !t.closed
	t.hub.mu.Unlock()

	if !active || !ok {
		return
	}
	handler(from, data)
}

func (t *MemoryTransport) firePeer(up bool, peerID string) {
	t.hub.mu.Lock()
	handlers := t.peerDown
	if up {
		handlers = t.peerUp
	}
	handlers = append([]PeerHandler(nil), handlers...)
	closed := t.closed
	t.hub.mu.Unlock()

	if closed {
		return
	}
	for _, handler := range handlers {
		handler(peerID)
	}
}
