package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/resident-payments/ledger"
)

// queries implements ledger.Store on the pool or on an open transaction.
type queries struct {
	db querier
}

const dueColumns = `id, unit_ref, amount::text, description, due_date, paid, created_at`

func (q queries) InsertDue(ctx context.Context, d ledger.Due) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO dues (id, unit_ref, amount, description, due_date, paid, created_at)
		VALUES ($1, $2, $3::text::numeric, $4, $5, $6, $7)
	`, string(d.ID), d.UnitRef, d.Amount.String(), d.Description, d.DueDate, d.Paid, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert due: %w", err)
	}
	return nil
}

func (q queries) GetDue(ctx context.Context, id ledger.DueID) (*ledger.Due, error) {
	d, err := scanDue(q.db.QueryRow(ctx, `SELECT `+dueColumns+` FROM dues WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (q queries) ListDues(ctx context.Context, f ledger.DueFilter) ([]ledger.Due, error) {
	var w where
	if f.UnitRef != "" {
		w.add("unit_ref = ?", f.UnitRef)
	}
	if f.Paid != nil {
		w.add("paid = ?", *f.Paid)
	}
	if f.DueFrom != nil {
		w.add("due_date >= ?", *f.DueFrom)
	}
	if f.DueTo != nil {
		w.add("due_date <= ?", *f.DueTo)
	}

	rows, err := q.db.Query(ctx, `SELECT `+dueColumns+` FROM dues`+w.String()+` ORDER BY due_date ASC, id ASC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query dues: %w", err)
	}
	defer rows.Close()

	var out []ledger.Due
	for rows.Next() {
		d, err := scanDue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (q queries) MarkDuePaid(ctx context.Context, id ledger.DueID) (bool, error) {
	tag, err := q.db.Exec(ctx, `UPDATE dues SET paid = TRUE WHERE id = $1 AND NOT paid`, string(id))
	if err != nil {
		return false, fmt.Errorf("mark due paid: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := q.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM dues WHERE id = $1)`, string(id)).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ledger.ErrDueNotFound
	}
	return false, nil
}

const transferColumns = `id, unit_ref, user_ref, bank_account_ref, amount::text, transfer_date,
	reference_code, sender_name, description, receipt_url, due_ref, status, status_note,
	created_at, verified_at, verified_by_ref`

func (q queries) InsertTransfer(ctx context.Context, t ledger.BankTransfer) error {
	var dueRef *string
	if t.DueRef != nil {
		s := string(*t.DueRef)
		dueRef = &s
	}

	_, err := q.db.Exec(ctx, `
		INSERT INTO bank_transfers (id, unit_ref, user_ref, bank_account_ref, amount, transfer_date,
			reference_code, sender_name, description, receipt_url, due_ref, status, status_note,
			created_at, verified_at, verified_by_ref)
		VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		string(t.ID), t.UnitRef, t.UserRef, t.BankAccountRef, t.Amount.String(), t.TransferDate,
		t.ReferenceCode, t.SenderName, t.Description, t.ReceiptURL, dueRef, string(t.Status), t.StatusNote,
		t.CreatedAt, t.VerifiedAt, t.VerifiedByRef,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicateReference
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

func (q queries) GetTransfer(ctx context.Context, id ledger.TransferID) (*ledger.BankTransfer, error) {
	t, err := scanTransfer(q.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM bank_transfers WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (q queries) ListTransfers(ctx context.Context, f ledger.TransferFilter) ([]ledger.BankTransfer, int, error) {
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
		w.add("created_at >= ?", *f.From)
	}
	if f.To != nil {
		w.add("created_at <= ?", *f.To)
	}

	var total int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM bank_transfers`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transfers: %w", err)
	}

	p := f.Page.Normalize()
	cond := w.String()
	limit, offset := w.next(p.Size), w.next(p.Offset())
	rows, err := q.db.Query(ctx, `
		SELECT `+transferColumns+` FROM bank_transfers`+cond+`
		ORDER BY created_at DESC, id ASC
		LIMIT `+limit+` OFFSET `+offset, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var out []ledger.BankTransfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (q queries) ReviewTransfer(ctx context.Context, id ledger.TransferID, r ledger.Review) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE bank_transfers
		SET status = $1, status_note = $2, verified_at = $3, verified_by_ref = $4
		WHERE id = $5 AND status = 'PENDING'
	`, string(r.Decision), r.Note, r.ReviewedAt, r.ReviewerRef, string(id))
	if err != nil {
		return false, fmt.Errorf("review transfer: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q queries) CompleteTransfer(ctx context.Context, id ledger.TransferID) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE bank_transfers SET status = 'COMPLETED'
		WHERE id = $1 AND status = 'VERIFIED'
	`, string(id))
	if err != nil {
		return false, fmt.Errorf("complete transfer: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// =============================================================================
// SCANNING
// =============================================================================

func scanDue(row pgx.Row) (ledger.Due, error) {
	var (
		d                  ledger.Due
		id, amount         string
		dueDate, createdAt time.Time
	)
	if err := row.Scan(&id, &d.UnitRef, &amount, &d.Description, &dueDate, &d.Paid, &createdAt); err != nil {
		return d, err
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return d, fmt.Errorf("due %s amount: %w", id, err)
	}
	d.ID = ledger.DueID(id)
	d.Amount = dec
	d.DueDate = dueDate.UTC()
	d.CreatedAt = createdAt.UTC()
	return d, nil
}

func scanTransfer(row pgx.Row) (ledger.BankTransfer, error) {
	var (
		t                       ledger.BankTransfer
		id, amount, status      string
		dueRef                  *string
		transferDate, createdAt time.Time
		verifiedAt              *time.Time
	)
	err := row.Scan(
		&id, &t.UnitRef, &t.UserRef, &t.BankAccountRef, &amount, &transferDate,
		&t.ReferenceCode, &t.SenderName, &t.Description, &t.ReceiptURL, &dueRef, &status, &t.StatusNote,
		&createdAt, &verifiedAt, &t.VerifiedByRef,
	)
	if err != nil {
		return t, err
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return t, fmt.Errorf("transfer %s amount: %w", id, err)
	}
	t.ID = ledger.TransferID(id)
	t.Amount = dec
	t.Status = ledger.TransferStatus(status)
	t.TransferDate = transferDate.UTC()
	t.CreatedAt = createdAt.UTC()
	if verifiedAt != nil {
		v := verifiedAt.UTC()
		t.VerifiedAt = &v
	}
	if dueRef != nil {
		ref := ledger.DueID(*dueRef)
		t.DueRef = &ref
	}
	return t, nil
}
