/*
Package live is the best-effort push channel from the dispatcher to connected
clients.

MODEL:
  One Subscription per recipient per connection. A subscription only sees
  notifications published after it was created; there is no backlog and no
  replay. Clients hydrate history through the inbox list on connect and again
  after every reconnect.

BACKPRESSURE:
  Each subscription owns a bounded buffer. Publish never blocks: when a
  buffer is full the message is dropped for that subscription and Publish
  reports ErrTransportFailure. The inbox already holds the record.
*/
package live

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warp/resident-payments/notify"
)

// ErrTransportFailure reports that at least one subscriber missed a push.
var ErrTransportFailure = errors.New("live transport failure")

const DefaultBuffer = 16

type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
}

// NewHub creates a hub whose subscriptions buffer up to buffer messages.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscription is one connection's view of a recipient's pushes.
type Subscription struct {
	// C yields notifications in publish order. Closed by Close.
	C <-chan notify.Notification

	ch        chan notify.Notification
	hub       *Hub
	recipient string
	once      sync.Once
}

// Subscribe registers a new subscription for recipient.
func (h *Hub) Subscribe(recipient string) *Subscription {
	ch := make(chan notify.Notification, h.buffer)
	s := &Subscription{C: ch, ch: ch, hub: h, recipient: recipient}

	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[recipient]
	if set == nil {
		set = make(map[*Subscription]struct{})
		h.subs[recipient] = set
	}
	set[s] = struct{}{}
	return s
}

// Recipient returns the recipient this subscription listens for.
func (s *Subscription) Recipient() string { return s.recipient }

// Close releases the subscription slot. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		defer h.mu.Unlock()
		if set := h.subs[s.recipient]; set != nil {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.recipient)
			}
		}
		close(s.ch)
	})
}

// Publish pushes n to every live subscription of recipient without blocking.
// Having no subscribers is not an error.
func (h *Hub) Publish(recipient string, n notify.Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for s := range h.subs[recipient] {
		select {
		case s.ch <- n:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%w: %d subscription(s) of %s full", ErrTransportFailure, dropped, recipient)
	}
	return nil
}

// Connected returns the number of live subscriptions for recipient.
func (h *Hub) Connected(recipient string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[recipient])
}
