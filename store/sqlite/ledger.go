package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/resident-payments/ledger"
)

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

func (s *Store) InsertDue(ctx context.Context, d ledger.Due) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledgerQueries{db: s.db}.insertDue(ctx, d)
}

func (s *Store) GetDue(ctx context.Context, id ledger.DueID) (*ledger.Due, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledgerQueries{db: s.db}.getDue(ctx, id)
}

func (s *Store) ListDues(ctx context.Context, f ledger.DueFilter) ([]ledger.Due, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledgerQueries{db: s.db}.listDues(ctx, f)
}

func (s *Store) MarkDuePaid(ctx context.Context, id ledger.DueID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledgerQueries{db: s.db}.markDuePaid(ctx, id)
}

func (s *Store) InsertTransfer(ctx context.Context, t ledger.BankTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledgerQueries{db: s.db}.insertTransfer(ctx, t)
}

func (s *Store) GetTransfer(ctx context.Context, id ledger.TransferID) (*ledger.BankTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledgerQueries{db: s.db}.getTransfer(ctx, id)
}

func (s *Store) ListTransfers(ctx context.Context, f ledger.TransferFilter) ([]ledger.BankTransfer, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledgerQueries{db: s.db}.listTransfers(ctx, f)
}

func (s *Store) ReviewTransfer(ctx context.Context, id ledger.TransferID, r ledger.Review) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledgerQueries{db: s.db}.reviewTransfer(ctx, id, r)
}

func (s *Store) CompleteTransfer(ctx context.Context, id ledger.TransferID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledgerQueries{db: s.db}.completeTransfer(ctx, id)
}

// =============================================================================
// QUERIES
// =============================================================================

// ledgerQueries runs against either the pool or an open transaction.
type ledgerQueries struct {
	db dbtx
}

const dueColumns = `id, unit_ref, amount, description, due_date, paid, created_at`

func (q ledgerQueries) insertDue(ctx context.Context, d ledger.Due) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO dues (`+dueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID,
		d.UnitRef,
		d.Amount.String(),
		d.Description,
		formatTime(d.DueDate),
		boolInt(d.Paid),
		formatTime(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert due: %w", err)
	}
	return nil
}

func (q ledgerQueries) getDue(ctx context.Context, id ledger.DueID) (*ledger.Due, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+dueColumns+` FROM dues WHERE id = ?`, id)
	d, err := scanDue(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (q ledgerQueries) listDues(ctx context.Context, f ledger.DueFilter) ([]ledger.Due, error) {
	var w where
	if f.UnitRef != "" {
		w.add("unit_ref = ?", f.UnitRef)
	}
	if f.Paid != nil {
		w.add("paid = ?", boolInt(*f.Paid))
	}
	if f.DueFrom != nil {
		w.add("due_date >= ?", formatTime(*f.DueFrom))
	}
	if f.DueTo != nil {
		w.add("due_date <= ?", formatTime(*f.DueTo))
	}

	rows, err := q.db.QueryContext(ctx, `SELECT `+dueColumns+` FROM dues`+w.String()+` ORDER BY due_date ASC, id ASC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dues: %w", err)
	}
	defer rows.Close()

	var result []ledger.Due
	for rows.Next() {
		d, err := scanDue(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (q ledgerQueries) markDuePaid(ctx context.Context, id ledger.DueID) (bool, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE dues SET paid = 1 WHERE id = ? AND paid = 0`, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark due paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	var exists int
	err = q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dues WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists == 0 {
		return false, ledger.ErrDueNotFound
	}
	return false, nil
}

const transferColumns = `id, unit_ref, user_ref, bank_account_ref, amount, transfer_date,
	reference_code, sender_name, description, receipt_url, due_ref, status, status_note,
	created_at, verified_at, verified_by_ref`

func (q ledgerQueries) insertTransfer(ctx context.Context, t ledger.BankTransfer) error {
	var dueRef sql.NullString
	if t.DueRef != nil {
		dueRef = sql.NullString{String: string(*t.DueRef), Valid: true}
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO bank_transfers (`+transferColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID,
		t.UnitRef,
		t.UserRef,
		t.BankAccountRef,
		t.Amount.String(),
		formatTime(t.TransferDate),
		t.ReferenceCode,
		t.SenderName,
		t.Description,
		nullString(t.ReceiptURL),
		dueRef,
		t.Status,
		nullString(t.StatusNote),
		formatTime(t.CreatedAt),
		nullTime(t.VerifiedAt),
		nullString(t.VerifiedByRef),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateReference
		}
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	return nil
}

func (q ledgerQueries) getTransfer(ctx context.Context, id ledger.TransferID) (*ledger.BankTransfer, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM bank_transfers WHERE id = ?`, id)
	t, err := scanTransfer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (q ledgerQueries) listTransfers(ctx context.Context, f ledger.TransferFilter) ([]ledger.BankTransfer, int, error) {
	var w where
	if f.Status != nil {
		w.add("status = ?", string(*f.Status))
	}
	if f.UnitRef != "" {
		w.add("unit_ref = ?", f.UnitRef)
	}
	if f.UserRef != "" {
		w.add("user_ref = ?", f.UserRef)
	}
	if f.From != nil {
		w.add("created_at >= ?", formatTime(*f.From))
	}
	if f.To != nil {
		w.add("created_at <= ?", formatTime(*f.To))
	}

	var total int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bank_transfers`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transfers: %w", err)
	}

	p := f.Page.Normalize()
	args := append(append([]any{}, w.args...), p.Size, p.Offset())
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+transferColumns+` FROM bank_transfers`+w.String()+`
		ORDER BY created_at DESC, id ASC
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var result []ledger.BankTransfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, t)
	}
	return result, total, rows.Err()
}

func (q ledgerQueries) reviewTransfer(ctx context.Context, id ledger.TransferID, r ledger.Review) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE bank_transfers
		SET status = ?, status_note = ?, verified_at = ?, verified_by_ref = ?
		WHERE id = ? AND status = 'PENDING'
	`,
		r.Decision,
		nullString(r.Note),
		formatTime(r.ReviewedAt),
		r.ReviewerRef,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to review transfer: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (q ledgerQueries) completeTransfer(ctx context.Context, id ledger.TransferID) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE bank_transfers SET status = 'COMPLETED'
		WHERE id = ? AND status = 'VERIFIED'
	`, id)
	if err != nil {
		return false, fmt.Errorf("failed to complete transfer: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// =============================================================================
// SCANNING
// =============================================================================

func scanDue(row scanner) (ledger.Due, error) {
	var (
		d                          ledger.Due
		amount, dueDate, createdAt string
		paid                       bool
	)
	if err := row.Scan(&d.ID, &d.UnitRef, &amount, &d.Description, &dueDate, &paid, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return d, err
		}
		return d, fmt.Errorf("failed to scan due: %w", err)
	}

	var err error
	if d.Amount, err = decimal.NewFromString(amount); err != nil {
		return d, fmt.Errorf("due %s amount: %w", d.ID, err)
	}
	if d.DueDate, err = parseTime(dueDate); err != nil {
		return d, err
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return d, err
	}
	d.Paid = paid
	return d, nil
}

func scanTransfer(row scanner) (ledger.BankTransfer, error) {
	var (
		t                               ledger.BankTransfer
		amount, transferDate, createdAt string
		receiptURL, dueRef, statusNote  sql.NullString
		verifiedAt, verifiedBy          sql.NullString
	)
	err := row.Scan(
		&t.ID, &t.UnitRef, &t.UserRef, &t.BankAccountRef, &amount, &transferDate,
		&t.ReferenceCode, &t.SenderName, &t.Description, &receiptURL, &dueRef, &t.Status, &statusNote,
		&createdAt, &verifiedAt, &verifiedBy,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return t, err
		}
		return t, fmt.Errorf("failed to scan transfer: %w", err)
	}

	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return t, fmt.Errorf("transfer %s amount: %w", t.ID, err)
	}
	if t.TransferDate, err = parseTime(transferDate); err != nil {
		return t, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return t, err
	}
	if t.VerifiedAt, err = parseNullTime(verifiedAt); err != nil {
		return t, err
	}
	t.ReceiptURL = stringPtr(receiptURL)
	t.StatusNote = stringPtr(statusNote)
	t.VerifiedByRef = stringPtr(verifiedBy)
	if dueRef.Valid {
		id := ledger.DueID(dueRef.String)
		t.DueRef = &id
	}
	return t, nil
}
