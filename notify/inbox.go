package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/warp/resident-payments/auth"
)

// Inbox applies the capability check and id/clock assignment around a Store.
type Inbox struct {
	store Store
	authz auth.Authorizer
	node  *snowflake.Node

	Now func() time.Time
}

// NewInbox creates an inbox whose ids are generated on snowflake node nodeID
// (0..1023). Run each replica with a distinct node.
func NewInbox(store Store, authz auth.Authorizer, nodeID int64) (*Inbox, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &Inbox{
		store: store,
		authz: authz,
		node:  node,
		Now:   func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}, nil
}

// Create appends an unread notification. No deduplication happens here; the
// dispatcher owns that. Not exposed to actors.
func (in *Inbox) Create(ctx context.Context, recipient string, typ Type, title, message string, entityRef *string) (*Notification, error) {
	if strings.TrimSpace(recipient) == "" {
		return nil, fmt.Errorf("create notification: empty recipient")
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}

	n := Notification{
		ID:           ID(in.node.Generate().Int64()),
		RecipientRef: recipient,
		Type:         typ,
		Title:        title,
		Message:      message,
		EntityRef:    entityRef,
		CreatedAt:    in.Now(),
	}
	if err := in.store.Insert(ctx, n); err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return &n, nil
}

// List returns one page of recipient's inbox, newest first.
func (in *Inbox) List(ctx context.Context, actor auth.Actor, recipient string, f ListFilter) (*Page, error) {
	if err := auth.Require(in.authz.CanViewNotificationsFor(actor, recipient)); err != nil {
		return nil, err
	}
	if f.Type != nil && !f.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, *f.Type)
	}
	f.Page = f.Page.Normalize()

	items, total, err := in.store.List(ctx, recipient, f)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if items == nil {
		items = []Notification{}
	}
	return &Page{
		Items:      items,
		Total:      total,
		TotalPages: f.Page.TotalPages(total),
		Page:       f.Page.Page,
		PageSize:   f.Page.Size,
	}, nil
}

// MarkRead marks one notification read. Returns nil, nil when the id does not
// exist; marking an already read notification is a no-op success.
func (in *Inbox) MarkRead(ctx context.Context, actor auth.Actor, id ID) (*Notification, error) {
	n, err := in.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	if n == nil {
		return nil, nil
	}
	if err := auth.Require(in.authz.CanViewNotificationsFor(actor, n.RecipientRef)); err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}

	updated, err := in.store.MarkRead(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	return updated, nil
}

// MarkAllRead marks everything currently unread for recipient. Notifications
// created while it runs may or may not be included.
func (in *Inbox) MarkAllRead(ctx context.Context, actor auth.Actor, recipient string) (int, error) {
	if err := auth.Require(in.authz.CanViewNotificationsFor(actor, recipient)); err != nil {
		return 0, err
	}
	n, err := in.store.MarkAllRead(ctx, recipient)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return n, nil
}

// Delete removes a notification. Deleting an absent id succeeds.
func (in *Inbox) Delete(ctx context.Context, actor auth.Actor, id ID) error {
	n, err := in.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get notification: %w", err)
	}
	if n == nil {
		return nil
	}
	if err := auth.Require(in.authz.CanViewNotificationsFor(actor, n.RecipientRef)); err != nil {
		return err
	}
	if err := in.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}

func (in *Inbox) UnreadCount(ctx context.Context, actor auth.Actor, recipient string) (int, error) {
	if err := auth.Require(in.authz.CanViewNotificationsFor(actor, recipient)); err != nil {
		return 0, err
	}
	n, err := in.store.UnreadCount(ctx, recipient)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}
