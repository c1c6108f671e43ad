package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/resident-payments/notify"
)

// =============================================================================
// NOTIFICATION STORE (notify.Store interface)
// =============================================================================

const notificationColumns = `id, recipient_ref, type, title, message, entity_ref, is_read, created_at`

func (s *Store) Insert(ctx context.Context, n notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		int64(n.ID),
		n.RecipientRef,
		string(n.Type),
		n.Title,
		n.Message,
		nullString(n.EntityRef),
		boolInt(n.IsRead),
		formatTime(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id notify.ID) (*notify.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getNotification(ctx, id)
}

func (s *Store) getNotification(ctx context.Context, id notify.ID) (*notify.Notification, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, int64(id))
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Store) List(ctx context.Context, recipient string, f notify.ListFilter) ([]notify.Notification, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var w where
	w.add("recipient_ref = ?", recipient)
	if f.Type != nil {
		w.add("type = ?", string(*f.Type))
	}
	if f.IsRead != nil {
		w.add("is_read = ?", boolInt(*f.IsRead))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	p := f.Page.Normalize()
	args := append(append([]any{}, w.args...), p.Size, p.Offset())
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications`+w.String()+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var result []notify.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, n)
	}
	return result, total, rows.Err()
}

func (s *Store) MarkRead(ctx context.Context, id notify.ID) (*notify.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ? AND is_read = 0`, int64(id)); err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return s.getNotification(ctx, id)
}

func (s *Store) MarkAllRead(ctx context.Context, recipient string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE recipient_ref = ? AND is_read = 0`, recipient)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all read: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) Delete(ctx context.Context, id notify.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, int64(id)); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

func (s *Store) UnreadCount(ctx context.Context, recipient string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_ref = ? AND is_read = 0`,
		recipient,
	).Scan(&count)
	return count, err
}

func scanNotification(row scanner) (notify.Notification, error) {
	var (
		n         notify.Notification
		id        int64
		typ       string
		entityRef sql.NullString
		isRead    bool
		createdAt string
	)
	if err := row.Scan(&id, &n.RecipientRef, &typ, &n.Title, &n.Message, &entityRef, &isRead, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return n, err
		}
		return n, fmt.Errorf("failed to scan notification: %w", err)
	}
	created, err := parseTime(createdAt)
	if err != nil {
		return n, err
	}
	n.ID = notify.ID(id)
	n.Type = notify.Type(typ)
	n.EntityRef = stringPtr(entityRef)
	n.IsRead = isRead
	n.CreatedAt = created
	return n, nil
}
