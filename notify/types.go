/*
Package notify is the durable inbox: one Notification per recipient per domain
event, listed newest first with read/unread tracking.

LIFECYCLE:

	dispatcher ──Create──▶ unread ──MarkRead──▶ read
	                          │                   │
	                          └──────Delete───────┴──▶ gone

  IsRead only moves false → true. A deleted notification is gone for good and
  stops counting toward UnreadCount immediately.

IDEMPOTENCY:
  MarkRead and Delete succeed on ids that are already read or already absent,
  so a client retrying over a flaky connection never sees an error for a
  postcondition that already holds.

ORDERING:
  List orders by CreatedAt descending, then ID descending. IDs are snowflakes,
  so the tie-break also follows creation order.
*/
package notify

import (
	"strconv"
	"time"

	"github.com/warp/resident-payments/page"
)

// ID is a snowflake identifier.
type ID int64

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseID parses the decimal form produced by String.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(n), nil
}

// Type is the closed set of notification categories.
type Type string

const (
	TypePayment      Type = "payment"
	TypeMaintenance  Type = "maintenance"
	TypeAnnouncement Type = "announcement"
	TypeMeeting      Type = "meeting"
	TypeDocument     Type = "document"
)

func (t Type) Valid() bool {
	switch t {
	case TypePayment, TypeMaintenance, TypeAnnouncement, TypeMeeting, TypeDocument:
		return true
	}
	return false
}

type Notification struct {
	ID           ID
	RecipientRef string
	Type         Type
	Title        string
	Message      string
	EntityRef    *string // opaque, never validated
	IsRead       bool
	CreatedAt    time.Time
}

// ListFilter narrows List. Nil fields match everything.
type ListFilter struct {
	Type   *Type
	IsRead *bool
	Page   page.Request
}

// Page is one page of a recipient's inbox.
type Page struct {
	Items      []Notification
	Total      int
	TotalPages int
	Page       int
	PageSize   int
}
