/*
Package ledger records dues and resident-submitted bank transfer reports, and
owns the transfer verification state machine.

KEY CONCEPTS IN THIS FILE (types.go):
  - Due:            an amount a unit owes for a period
  - BankTransfer:   a resident's report of an external transfer, awaiting staff
  - TransferStatus: PENDING → VERIFIED | REJECTED, VERIFIED → COMPLETED

STATE MACHINE:

	          ┌──────────┐  review   ┌──────────┐  settlement  ┌───────────┐
	submit ──▶│ PENDING  │──────────▶│ VERIFIED │─────────────▶│ COMPLETED │
	          └──────────┘           └──────────┘              └───────────┘
	                │ review
	                ▼
	          ┌──────────┐
	          │ REJECTED │
	          └──────────┘

  Status only moves forward. VerifiedAt/VerifiedByRef are written exactly once,
  by the transition out of PENDING. Settlement is owned by an outside process;
  the ledger only guards the VERIFIED → COMPLETED compare-and-set.

DESIGN PRINCIPLES:
  1. Precision: amounts are decimal.Decimal, matched with exact equality
  2. Audit trail: transfers are never deleted
  3. Single writer: only the ledger mutates Status and Due.Paid

SEE ALSO:
  - ledger.go:  SubmitTransfer, ReviewTransfer, ListTransfers
  - matcher.go: due auto-linking
  - store.go:   persistence contract
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/resident-payments/page"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type DueID string
type TransferID string

// =============================================================================
// TRANSFER STATUS
// =============================================================================

type TransferStatus string

const (
	StatusPending   TransferStatus = "PENDING"
	StatusVerified  TransferStatus = "VERIFIED"
	StatusRejected  TransferStatus = "REJECTED"
	StatusCompleted TransferStatus = "COMPLETED"
)

var transitions = map[TransferStatus][]TransferStatus{
	StatusPending:  {StatusVerified, StatusRejected},
	StatusVerified: {StatusCompleted},
}

func (s TransferStatus) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// IsDecision reports whether s is an outcome a reviewer may choose.
func (s TransferStatus) IsDecision() bool {
	return s == StatusVerified || s == StatusRejected
}

// CanTransition reports whether from → to is an edge of the state machine.
func CanTransition(from, to TransferStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// =============================================================================
// DUE
// =============================================================================

// Due is an obligation owed by a unit. Paid flips to true only when a transfer
// referencing it is verified.
type Due struct {
	ID          DueID
	UnitRef     string
	Amount      decimal.Decimal
	Description string
	DueDate     time.Time
	Paid        bool
	CreatedAt   time.Time
}

// NewDue is the billing collaborator's input for creating a due.
type NewDue struct {
	UnitRef     string
	Amount      decimal.Decimal
	Description string
	DueDate     time.Time
}

type DueFilter struct {
	UnitRef string
	Paid    *bool
	// DueFrom/DueTo bound DueDate, inclusive.
	DueFrom *time.Time
	DueTo   *time.Time
}

// =============================================================================
// BANK TRANSFER
// =============================================================================

type BankTransfer struct {
	ID             TransferID
	UnitRef        string
	UserRef        string
	BankAccountRef string
	Amount         decimal.Decimal
	TransferDate   time.Time
	ReferenceCode  string
	SenderName     string
	Description    string
	ReceiptURL     *string
	DueRef         *DueID
	Status         TransferStatus
	StatusNote     *string
	CreatedAt      time.Time
	VerifiedAt     *time.Time
	VerifiedByRef  *string
}

// SubmitInput is what a resident reports. UnitRef is honoured only for
// reviewers submitting on someone's behalf; residents always submit for the
// unit bound to their session.
type SubmitInput struct {
	Amount         decimal.Decimal
	TransferDate   time.Time
	ReferenceCode  string
	BankAccountRef string
	SenderName     string
	Description    string
	ReceiptURL     *string
	DueRef         *DueID
	UnitRef        string
}

// Review is the single write that moves a transfer out of PENDING.
type Review struct {
	Decision    TransferStatus
	Note        *string
	ReviewedAt  time.Time
	ReviewerRef string
}

type TransferFilter struct {
	Status  *TransferStatus
	UnitRef string
	UserRef string
	// From/To bound CreatedAt, inclusive.
	From *time.Time
	To   *time.Time
	Page page.Request
}

// TransferPage is one page of ListTransfers, newest first.
type TransferPage struct {
	Items      []BankTransfer
	Total      int
	TotalPages int
	Page       int
	PageSize   int
}
