/*
store.go - Persistence contract for dues and transfers

PURPOSE:
  Defines the interface between the ledger and the database. The same
  contract is implemented by an in-memory store (tests, dev) and by the SQLite
  and Postgres stores; ledgertest.RunStoreContract checks all of them.

CONDITIONAL WRITES:
  There is no generic Update. Status changes are compare-and-set operations
  guarded by the current status:

    ReviewTransfer:   ... WHERE id = ? AND status = 'PENDING'
    CompleteTransfer: ... WHERE id = ? AND status = 'VERIFIED'

  They return false when the guard did not hold (or the id is unknown); the
  caller reloads the record to tell the two apart. Two concurrent reviews
  therefore produce exactly one winner without any lock outside the record.

ATOMIC REVIEW:
  WithTx runs the status CAS and MarkDuePaid in one transaction. Either both
  are visible or neither is.

SEE ALSO:
  - ledger.go: the only caller of the write methods
  - store/memory.go, ../store/sqlite, ../store/postgres: implementations
*/
package ledger

import "context"

// Store persists dues and transfers. Transfers are never deleted.
type Store interface {
	// InsertDue stores a new due.
	InsertDue(ctx context.Context, d Due) error

	// GetDue returns nil, nil when the due does not exist.
	GetDue(ctx context.Context, id DueID) (*Due, error)

	// ListDues returns dues ordered by DueDate ascending, then ID.
	ListDues(ctx context.Context, f DueFilter) ([]Due, error)

	// MarkDuePaid sets Paid. Returns false if it was already paid, and
	// ErrDueNotFound if the due does not exist.
	MarkDuePaid(ctx context.Context, id DueID) (bool, error)

	// InsertTransfer stores a new PENDING transfer. Returns
	// ErrDuplicateReference if the reference code is taken.
	InsertTransfer(ctx context.Context, t BankTransfer) error

	// GetTransfer returns nil, nil when the transfer does not exist.
	GetTransfer(ctx context.Context, id TransferID) (*BankTransfer, error)

	// ListTransfers returns one page ordered by CreatedAt descending with ID
	// ascending as tie-break, plus the total matching the filter.
	ListTransfers(ctx context.Context, f TransferFilter) ([]BankTransfer, int, error)

	// ReviewTransfer applies r only if the transfer is PENDING.
	ReviewTransfer(ctx context.Context, id TransferID, r Review) (bool, error)

	// CompleteTransfer moves a VERIFIED transfer to COMPLETED.
	CompleteTransfer(ctx context.Context, id TransferID) (bool, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
