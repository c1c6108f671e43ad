package notify

import "context"

// Store persists notifications. Every mutation is a single conditional write
// on one record or one recipient.
type Store interface {
	Insert(ctx context.Context, n Notification) error

	// Get returns nil, nil when the notification does not exist.
	Get(ctx context.Context, id ID) (*Notification, error)

	// List returns one page for recipient plus the total matching the filter.
	// Out-of-range pages return no items and no error.
	List(ctx context.Context, recipient string, f ListFilter) ([]Notification, int, error)

	// MarkRead sets IsRead. Returns the record as stored afterwards, or nil
	// when it does not exist.
	MarkRead(ctx context.Context, id ID) (*Notification, error)

	// MarkAllRead flips every unread notification of recipient and reports
	// how many changed.
	MarkAllRead(ctx context.Context, recipient string) (int, error)

	// Delete removes the notification. Absent ids are not an error.
	Delete(ctx context.Context, id ID) error

	UnreadCount(ctx context.Context, recipient string) (int, error)
}
