/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements ledger.TxStore and notify.Store on one database file. The
  Postgres store in ../postgres carries the same schema with dialect changes.

INTERFACES IMPLEMENTED:
  ledger.TxStore: dues and bank transfers
  notify.Store:   recipient inboxes

CONDITIONAL WRITES:
  Status changes are single UPDATE statements guarded by the current status:

    UPDATE bank_transfers SET status = ?, ... WHERE id = ? AND status = 'PENDING'

  RowsAffected tells the caller whether it won. No row is read-then-written.

KEY TABLES:
  dues:           obligations per unit
  bank_transfers: transfer reports, never deleted
  notifications:  one row per recipient per event

INDEXES:
  - bank_transfers(reference_code) UNIQUE: one report per bank reference
  - idx_transfers_created: newest-first listing
  - idx_notifications_recipient: inbox listing (hot path)
  - idx_notifications_unread: partial index backing unread counts

ENCODING:
  Timestamps are fixed-width UTC text (nanosecond precision) so that string
  order is time order. Amounts are decimal strings; SQLite REAL would round.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

DRIVERS:
  cgo builds use mattn/go-sqlite3, CGO_ENABLED=0 builds use modernc.org/sqlite
  (driver_cgo.go / driver_nocgo.go). Schema and queries are identical.

USAGE:
  store, err := sqlite.New("./data/respay.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  l := ledger.New(store, authz, dispatcher)
  inbox, _ := notify.NewInbox(store, authz, 1)

SEE ALSO:
  - ledger/store.go, notify/store.go: interface definitions
  - ledger/ledgertest, notify/notifytest: contract suites run in sqlite_test.go
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/warp/resident-payments/ledger"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open(driverName, dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection (health endpoint).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Dues (created by billing, paid by verification)
	CREATE TABLE IF NOT EXISTS dues (
		id TEXT PRIMARY KEY,
		unit_ref TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		due_date TEXT NOT NULL,
		paid INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dues_unit_paid
		ON dues(unit_ref, paid);
	CREATE INDEX IF NOT EXISTS idx_dues_due_date
		ON dues(due_date, id);

	-- Bank transfer reports (never deleted)
	CREATE TABLE IF NOT EXISTS bank_transfers (
		id TEXT PRIMARY KEY,
		unit_ref TEXT NOT NULL,
		user_ref TEXT NOT NULL,
		bank_account_ref TEXT NOT NULL,
		amount TEXT NOT NULL,
		transfer_date TEXT NOT NULL,
		reference_code TEXT NOT NULL UNIQUE,
		sender_name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		receipt_url TEXT,
		due_ref TEXT REFERENCES dues(id),
		status TEXT NOT NULL DEFAULT 'PENDING'
			CHECK (status IN ('PENDING', 'VERIFIED', 'REJECTED', 'COMPLETED')),
		status_note TEXT,
		created_at TEXT NOT NULL,
		verified_at TEXT,
		verified_by_ref TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_created
		ON bank_transfers(created_at DESC, id ASC);
	CREATE INDEX IF NOT EXISTS idx_transfers_user
		ON bank_transfers(user_ref, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transfers_unit
		ON bank_transfers(unit_ref, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transfers_status
		ON bank_transfers(status);

	-- Notifications (one inbox per recipient)
	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY,
		recipient_ref TEXT NOT NULL,
		type TEXT NOT NULL
			CHECK (type IN ('payment', 'maintenance', 'announcement', 'meeting', 'document')),
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		entity_ref TEXT,
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_recipient
		ON notifications(recipient_ref, created_at DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_notifications_unread
		ON notifications(recipient_ref) WHERE is_read = 0;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: ledgerQueries{db: sqlTx}}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs ledger queries on the open transaction. The parent lock is
// already held by WithTx.
type txStore struct {
	q ledgerQueries
}

func (ts *txStore) InsertDue(ctx context.Context, d ledger.Due) error {
	return ts.q.insertDue(ctx, d)
}

func (ts *txStore) GetDue(ctx context.Context, id ledger.DueID) (*ledger.Due, error) {
	return ts.q.getDue(ctx, id)
}

func (ts *txStore) ListDues(ctx context.Context, f ledger.DueFilter) ([]ledger.Due, error) {
	return ts.q.listDues(ctx, f)
}

func (ts *txStore) MarkDuePaid(ctx context.Context, id ledger.DueID) (bool, error) {
	return ts.q.markDuePaid(ctx, id)
}

func (ts *txStore) InsertTransfer(ctx context.Context, t ledger.BankTransfer) error {
	return ts.q.insertTransfer(ctx, t)
}

func (ts *txStore) GetTransfer(ctx context.Context, id ledger.TransferID) (*ledger.BankTransfer, error) {
	return ts.q.getTransfer(ctx, id)
}

func (ts *txStore) ListTransfers(ctx context.Context, f ledger.TransferFilter) ([]ledger.BankTransfer, int, error) {
	return ts.q.listTransfers(ctx, f)
}

func (ts *txStore) ReviewTransfer(ctx context.Context, id ledger.TransferID, r ledger.Review) (bool, error) {
	return ts.q.reviewTransfer(ctx, id, r)
}

func (ts *txStore) CompleteTransfer(ctx context.Context, id ledger.TransferID) (bool, error) {
	return ts.q.completeTransfer(ctx, id)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"notifications", "bank_transfers", "dues"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// tsLayout is fixed width so lexical order matches time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// where accumulates AND-ed conditions with their arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
