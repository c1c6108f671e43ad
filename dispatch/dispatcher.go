/*
Package dispatch turns domain events into inbox notifications and live pushes.

FLOW:

	events.Event ──▶ route (kind) ──▶ recipients ──▶ Inbox.Create ──▶ Hub.Publish
	                                      │              durable        best effort
	                                      └── AudienceResolver for broadcasts

ORDERING:
  For each recipient the inbox write completes before the push is attempted,
  so a pushed notification is always already listable.

DEDUPLICATION:
  The inbox does not deduplicate. The dispatcher remembers (event id,
  recipient) pairs in a bounded LRU, so an event delivered twice (ledger retry,
  reminder tick, replayed webhook) creates one notification per recipient.
  Pairs are only remembered once their write succeeded; a failed write can be
  retried by publishing the same event again.

FAILURES:
  Inbox errors are returned to the caller. Push errors are logged and dropped.
*/
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/warp/resident-payments/events"
	"github.com/warp/resident-payments/notify"
)

const DefaultDedupSize = 4096

var ErrUnknownEvent = errors.New("unknown event kind")

// Creator is the inbox write the dispatcher needs.
type Creator interface {
	Create(ctx context.Context, recipient string, typ notify.Type, title, message string, entityRef *string) (*notify.Notification, error)
}

// Pusher is the live channel.
type Pusher interface {
	Publish(recipient string, n notify.Notification) error
}

// AudienceResolver expands a broadcast audience ("all", "unit:4B",
// "building:north") into recipient refs. Membership lives outside this service.
type AudienceResolver interface {
	Members(ctx context.Context, audience string) ([]string, error)
}

type Dispatcher struct {
	inbox     Creator
	push      Pusher
	audiences AudienceResolver
	seen      *lru.Cache[string, struct{}]
}

// New creates a dispatcher. push may be nil when no live channel is running.
func New(inbox Creator, push Pusher, audiences AudienceResolver, dedupSize int) (*Dispatcher, error) {
	if dedupSize < 1 {
		dedupSize = DefaultDedupSize
	}
	seen, err := lru.New[string, struct{}](dedupSize)
	if err != nil {
		return nil, fmt.Errorf("dedup cache: %w", err)
	}
	if audiences == nil {
		audiences = StaticAudiences{}
	}
	return &Dispatcher{inbox: inbox, push: push, audiences: audiences, seen: seen}, nil
}

// Publish implements events.Publisher.
func (d *Dispatcher) Publish(ctx context.Context, e events.Event) error {
	_, err := d.Deliver(ctx, e)
	return err
}

// Deliver routes e like Publish and reports how many notifications it wrote.
// Recipients already notified of e are skipped and not counted.
func (d *Dispatcher) Deliver(ctx context.Context, e events.Event) (int, error) {
	e = deref(e)
	r, ok := routes[e.Kind()]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownEvent, e.Kind())
	}
	if e.EventID() == "" {
		return 0, fmt.Errorf("dispatch %s: event has no id", e.Kind())
	}

	recipients, err := r.recipients(ctx, d.audiences, e)
	if err != nil {
		return 0, fmt.Errorf("resolve recipients of %s: %w", e.EventID(), err)
	}
	msg := r.render(e)

	written := 0
	var errs []error
	for _, recipient := range unique(recipients) {
		key := e.EventID() + "|" + recipient
		if found, _ := d.seen.ContainsOrAdd(key, struct{}{}); found {
			continue
		}

		n, err := d.inbox.Create(ctx, recipient, r.typ, msg.title, msg.body, msg.entityRef)
		if err != nil {
			d.seen.Remove(key)
			errs = append(errs, fmt.Errorf("notify %s: %w", recipient, err))
			continue
		}
		written++

		if d.push != nil {
			if err := d.push.Publish(recipient, *n); err != nil {
				log.Printf("[dispatch] live push of %s to %s dropped: %v", n.ID, recipient, err)
			}
		}
	}
	return written, errors.Join(errs...)
}

func unique(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// deref accepts events passed by pointer.
func deref(e events.Event) events.Event {
	switch v := e.(type) {
	case *events.TransferReviewed:
		return *v
	case *events.MaintenanceUpdated:
		return *v
	case *events.AnnouncementCreated:
		return *v
	case *events.MeetingScheduled:
		return *v
	case *events.DocumentShared:
		return *v
	case *events.DueReminder:
		return *v
	}
	return e
}

// =============================================================================
// STATIC AUDIENCES
// =============================================================================

// StaticAudiences resolves audiences from a fixed map. Used for dev and tests;
// unknown audiences resolve to nobody.
type StaticAudiences map[string][]string

func (s StaticAudiences) Members(_ context.Context, audience string) ([]string, error) {
	return s[audience], nil
}
