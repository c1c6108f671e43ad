/*
Package events defines the typed domain events that fan out into notifications.

PURPOSE:
  Producers (the ledger, the reminder scheduler, staff-facing endpoints) raise
  events; the dispatcher is the only consumer. Keeping the types in a leaf
  package lets the ledger emit without importing the dispatcher.

EVENT IDS:
  Every event carries an id. The dispatcher deduplicates on it, so producers
  that may re-raise the same fact (retries, scheduler ticks) must derive the
  id deterministically from the fact, e.g. "transfer.reviewed:<transfer id>".
*/
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindTransferReviewed    Kind = "transfer.reviewed"
	KindMaintenanceUpdated  Kind = "maintenance.updated"
	KindAnnouncementCreated Kind = "announcement.created"
	KindMeetingScheduled    Kind = "meeting.scheduled"
	KindDocumentShared      Kind = "document.shared"
	KindDueReminder         Kind = "due.reminder"
)

// Event is implemented by every domain event.
type Event interface {
	EventID() string
	Kind() Kind
}

// Publisher accepts domain events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Event) error { return nil })

// NewID returns a random event id for one-off events.
func NewID(kind Kind) string {
	return fmt.Sprintf("%s:%s", kind, uuid.NewString())
}

// =============================================================================
// EVENT TYPES
// =============================================================================

// TransferReviewed is raised once per transfer, when staff verify or reject it.
type TransferReviewed struct {
	ID            string          `json:"id"`
	TransferID    string          `json:"transfer_id"`
	UserRef       string          `json:"user_ref"`
	UnitRef       string          `json:"unit_ref"`
	Decision      string          `json:"decision"`
	Note          string          `json:"note,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	ReferenceCode string          `json:"reference_code"`
	ReviewedBy    string          `json:"reviewed_by"`
	ReviewedAt    time.Time       `json:"reviewed_at"`
}

func (e TransferReviewed) EventID() string { return e.ID }
func (e TransferReviewed) Kind() Kind      { return KindTransferReviewed }

// TransferReviewedID is the deterministic id for a transfer's review event.
func TransferReviewedID(transferID string) string {
	return fmt.Sprintf("%s:%s", KindTransferReviewed, transferID)
}

// MaintenanceUpdated tells the requester their maintenance ticket moved.
type MaintenanceUpdated struct {
	ID           string `json:"id"`
	RequestRef   string `json:"request_ref"`
	RequesterRef string `json:"requester_ref"`
	Status       string `json:"status"`
	Summary      string `json:"summary"`
}

func (e MaintenanceUpdated) EventID() string { return e.ID }
func (e MaintenanceUpdated) Kind() Kind      { return KindMaintenanceUpdated }

// AnnouncementCreated is broadcast to an audience.
type AnnouncementCreated struct {
	ID              string `json:"id"`
	AnnouncementRef string `json:"announcement_ref"`
	Title           string `json:"title"`
	Body            string `json:"body"`
	Audience        string `json:"audience"`
}

func (e AnnouncementCreated) EventID() string { return e.ID }
func (e AnnouncementCreated) Kind() Kind      { return KindAnnouncementCreated }

// MeetingScheduled is broadcast to an audience.
type MeetingScheduled struct {
	ID         string    `json:"id"`
	MeetingRef string    `json:"meeting_ref"`
	Title      string    `json:"title"`
	Location   string    `json:"location"`
	StartsAt   time.Time `json:"starts_at"`
	Audience   string    `json:"audience"`
}

func (e MeetingScheduled) EventID() string { return e.ID }
func (e MeetingScheduled) Kind() Kind      { return KindMeetingScheduled }

// DocumentShared goes to explicit recipients, an audience, or both.
type DocumentShared struct {
	ID          string   `json:"id"`
	DocumentRef string   `json:"document_ref"`
	Name        string   `json:"name"`
	Recipients  []string `json:"recipients,omitempty"`
	Audience    string   `json:"audience,omitempty"`
}

func (e DocumentShared) EventID() string { return e.ID }
func (e DocumentShared) Kind() Kind      { return KindDocumentShared }

// DueReminder nudges a resident about an unpaid due.
type DueReminder struct {
	ID           string          `json:"id"`
	DueRef       string          `json:"due_ref"`
	UnitRef      string          `json:"unit_ref"`
	RecipientRef string          `json:"recipient_ref"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      time.Time       `json:"due_date"`
	DaysLeft     int             `json:"days_left"`
}

func (e DueReminder) EventID() string { return e.ID }
func (e DueReminder) Kind() Kind      { return KindDueReminder }

// DueReminderID is stable per due, recipient and calendar day.
func DueReminderID(dueRef, recipientRef string, day time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", KindDueReminder, dueRef, recipientRef, day.UTC().Format("2006-01-02"))
}

// =============================================================================
// DECODING
// =============================================================================

// Decode parses a JSON payload of the given kind. A missing id is filled with
// a random one.
func Decode(kind Kind, data []byte) (Event, error) {
	var (
		ev  Event
		err error
	)
	switch kind {
	case KindTransferReviewed:
		var e TransferReviewed
		err = json.Unmarshal(data, &e)
		if e.ID == "" {
			e.ID = TransferReviewedID(e.TransferID)
		}
		ev = e
	case KindMaintenanceUpdated:
		var e MaintenanceUpdated
		err = json.Unmarshal(data, &e)
		if e.ID == "" {
			e.ID = NewID(kind)
		}
		ev = e
	case KindAnnouncementCreated:
		var e AnnouncementCreated
		err = json.Unmarshal(data, &e)
		if e.ID == "" {
			e.ID = NewID(kind)
		}
		ev = e
	case KindMeetingScheduled:
		var e MeetingScheduled
		err = json.Unmarshal(data, &e)
		if e.ID == "" {
			e.ID = NewID(kind)
		}
		ev = e
	case KindDocumentShared:
		var e DocumentShared
		err = json.Unmarshal(data, &e)
		if e.ID == "" {
			e.ID = NewID(kind)
		}
		ev = e
	case KindDueReminder:
		var e DueReminder
		err = json.Unmarshal(data, &e)
		if e.ID == "" {
			e.ID = DueReminderID(e.DueRef, e.RecipientRef, e.DueDate)
		}
		ev = e
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return ev, nil
}
