package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/warp/resident-payments/notify"
)

// =============================================================================
// NOTIFICATION STORE (notify.Store interface)
// =============================================================================

const notificationColumns = `id, recipient_ref, type, title, message, entity_ref, is_read, created_at`

func (s *Store) Insert(ctx context.Context, n notify.Notification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, int64(n.ID), n.RecipientRef, string(n.Type), n.Title, n.Message, n.EntityRef, n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id notify.ID) (*notify.Notification, error) {
	n, err := scanNotification(s.pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Store) List(ctx context.Context, recipient string, f notify.ListFilter) ([]notify.Notification, int, error) {
	var w where
	w.add("recipient_ref = ?", recipient)
	if f.Type != nil {
		w.add("type = ?", string(*f.Type))
	}
	if f.IsRead != nil {
		w.add("is_read = ?", *f.IsRead)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	p := f.Page.Normalize()
	cond := w.String()
	limit, offset := w.next(p.Size), w.next(p.Offset())
	rows, err := s.pool.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications`+cond+`
		ORDER BY created_at DESC, id DESC
		LIMIT `+limit+` OFFSET `+offset, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []notify.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// MarkRead returns the row after the update. RETURNING yields nothing when
// the id is unknown, which maps to nil.
func (s *Store) MarkRead(ctx context.Context, id notify.ID) (*notify.Notification, error) {
	n, err := scanNotification(s.pool.QueryRow(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE id = $1
		RETURNING `+notificationColumns, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return &n, nil
}

func (s *Store) MarkAllRead(ctx context.Context, recipient string) (int, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE recipient_ref = $1 AND NOT is_read`, recipient)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) Delete(ctx context.Context, id notify.ID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, int64(id)); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}

func (s *Store) UnreadCount(ctx context.Context, recipient string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient_ref = $1 AND NOT is_read`, recipient).Scan(&count)
	return count, err
}

func scanNotification(row pgx.Row) (notify.Notification, error) {
	var (
		n         notify.Notification
		id        int64
		typ       string
		createdAt time.Time
	)
	if err := row.Scan(&id, &n.RecipientRef, &typ, &n.Title, &n.Message, &n.EntityRef, &n.IsRead, &createdAt); err != nil {
		return n, err
	}
	n.ID = notify.ID(id)
	n.Type = notify.Type(typ)
	n.CreatedAt = createdAt.UTC()
	return n, nil
}
