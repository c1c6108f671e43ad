/*
ledger.go - Transfer submission and review workflow

REQUEST FLOW:
  ┌──────────────────────────────────────────────────────────────────┐
  │                                                                  │
  │  Resident         Validate       Link due         Insert         │
  │  submits   ──▶    input    ──▶   (matcher)  ──▶   PENDING        │
  │                                                                  │
  │  Staff            Capability     CAS out of       Mark due paid  │
  │  reviews   ──▶    check    ──▶   PENDING    ──▶   (if VERIFIED)  │
  │                                  └────── one transaction ──────┘ │
  │                                                     │            │
  │                                                     ▼            │
  │                                          TransferReviewed event  │
  └──────────────────────────────────────────────────────────────────┘

REVIEW RACE:
  Two staff members clicking "verify" at once both reach the store; the
  status compare-and-set lets exactly one through. The other gets an
  InvalidTransitionError carrying the winner's record, and the due is marked
  paid once.

EVENTS:
  The event is published after commit. A failed publish is logged, not
  returned: the review is already durable and the dispatcher's store write is
  what the resident will see. Publishing runs detached from the caller's
  context (bounded by PublishTimeout) so a client that disconnects right
  after commit still gets its resident notified.

SEE ALSO:
  - store.go:   conditional write contract
  - matcher.go: due auto-linking
  - ../dispatch: consumer of TransferReviewed
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/warp/resident-payments/auth"
	"github.com/warp/resident-payments/events"
)

// PublishTimeout bounds post-commit event delivery.
const PublishTimeout = 10 * time.Second

// Ledger is the single writer of transfer status and due payment state.
type Ledger struct {
	store  TxStore
	authz  auth.Authorizer
	events events.Publisher

	// Now is the clock; tests replace it. Microsecond precision keeps values
	// stable across every store.
	Now func() time.Time
}

// New creates a ledger. pub may be nil to drop events.
func New(store TxStore, authz auth.Authorizer, pub events.Publisher) *Ledger {
	if pub == nil {
		pub = events.Discard
	}
	return &Ledger{
		store:  store,
		authz:  authz,
		events: pub,
		Now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// =============================================================================
// TRANSFERS
// =============================================================================

// SubmitTransfer records a resident's transfer report as PENDING.
func (l *Ledger) SubmitTransfer(ctx context.Context, actor auth.Actor, in SubmitInput) (*BankTransfer, error) {
	if actor.ID == "" {
		return nil, auth.ErrUnauthorized
	}

	unitRef := actor.UnitRef
	if in.UnitRef != "" && in.UnitRef != unitRef {
		if !l.authz.CanReviewTransfers(actor) {
			return nil, auth.ErrUnauthorized
		}
		unitRef = in.UnitRef
	}

	now := l.Now()
	if err := validateSubmit(in, unitRef, now); err != nil {
		return nil, err
	}

	dueRef, err := resolveDue(ctx, l.store, unitRef, in.Amount, in.DueRef)
	if err != nil {
		return nil, err
	}

	t := BankTransfer{
		ID:             TransferID("trf-" + uuid.NewString()),
		UnitRef:        unitRef,
		UserRef:        actor.ID,
		BankAccountRef: strings.TrimSpace(in.BankAccountRef),
		Amount:         in.Amount,
		TransferDate:   in.TransferDate.UTC(),
		ReferenceCode:  strings.TrimSpace(in.ReferenceCode),
		SenderName:     strings.TrimSpace(in.SenderName),
		Description:    in.Description,
		ReceiptURL:     in.ReceiptURL,
		DueRef:         dueRef,
		Status:         StatusPending,
		CreatedAt:      now,
	}

	if err := l.store.InsertTransfer(ctx, t); err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			return nil, &ValidationError{Field: "reference_code", Message: "reference code already submitted", Err: err}
		}
		return nil, fmt.Errorf("insert transfer: %w", err)
	}
	return &t, nil
}

func validateSubmit(in SubmitInput, unitRef string, now time.Time) error {
	switch {
	case unitRef == "":
		return invalid("unit_ref", "no unit bound to the submitting user")
	case !in.Amount.IsPositive():
		return invalid("amount", "must be greater than zero")
	case in.TransferDate.IsZero():
		return invalid("transfer_date", "is required")
	case in.TransferDate.After(now):
		return invalid("transfer_date", "must not be in the future")
	case strings.TrimSpace(in.ReferenceCode) == "":
		return invalid("reference_code", "is required")
	case strings.TrimSpace(in.BankAccountRef) == "":
		return invalid("bank_account_ref", "is required")
	case strings.TrimSpace(in.SenderName) == "":
		return invalid("sender_name", "is required")
	}
	return nil
}

// ReviewTransfer verifies or rejects a PENDING transfer. At most one review
// per transfer takes effect, however many arrive concurrently.
func (l *Ledger) ReviewTransfer(ctx context.Context, actor auth.Actor, id TransferID, decision TransferStatus, note *string) (*BankTransfer, error) {
	if err := auth.Require(l.authz.CanReviewTransfers(actor)); err != nil {
		return nil, err
	}
	if !decision.IsDecision() {
		return nil, invalid("decision", fmt.Sprintf("must be %s or %s", StatusVerified, StatusRejected))
	}

	review := Review{
		Decision:    decision,
		Note:        note,
		ReviewedAt:  l.Now(),
		ReviewerRef: actor.ID,
	}

	var reviewed *BankTransfer
	err := l.store.WithTx(ctx, func(s Store) error {
		applied, err := s.ReviewTransfer(ctx, id, review)
		if err != nil {
			return fmt.Errorf("review transfer: %w", err)
		}
		current, err := s.GetTransfer(ctx, id)
		if err != nil {
			return fmt.Errorf("reload transfer: %w", err)
		}
		if current == nil {
			return ErrTransferNotFound
		}
		if !applied {
			return &InvalidTransitionError{TransferID: id, From: current.Status, To: decision, Current: *current}
		}

		if decision == StatusVerified && current.DueRef != nil {
			changed, err := s.MarkDuePaid(ctx, *current.DueRef)
			if err != nil {
				return fmt.Errorf("mark due %s paid: %w", *current.DueRef, err)
			}
			if !changed {
				log.Printf("[ledger] due %s was already paid when transfer %s was verified", *current.DueRef, id)
			}
		}
		reviewed = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, events.TransferReviewed{
		ID:            events.TransferReviewedID(string(reviewed.ID)),
		TransferID:    string(reviewed.ID),
		UserRef:       reviewed.UserRef,
		UnitRef:       reviewed.UnitRef,
		Decision:      string(reviewed.Status),
		Note:          deref(reviewed.StatusNote),
		Amount:        reviewed.Amount,
		ReferenceCode: reviewed.ReferenceCode,
		ReviewedBy:    actor.ID,
		ReviewedAt:    review.ReviewedAt,
	})
	return reviewed, nil
}

// CompleteTransfer records settlement of a VERIFIED transfer. Called by the
// settlement process; review fields are left untouched.
func (l *Ledger) CompleteTransfer(ctx context.Context, actor auth.Actor, id TransferID) (*BankTransfer, error) {
	if err := auth.Require(l.authz.CanReviewTransfers(actor)); err != nil {
		return nil, err
	}

	var completed *BankTransfer
	err := l.store.WithTx(ctx, func(s Store) error {
		applied, err := s.CompleteTransfer(ctx, id)
		if err != nil {
			return fmt.Errorf("complete transfer: %w", err)
		}
		current, err := s.GetTransfer(ctx, id)
		if err != nil {
			return fmt.Errorf("reload transfer: %w", err)
		}
		if current == nil {
			return ErrTransferNotFound
		}
		if !applied {
			return &InvalidTransitionError{TransferID: id, From: current.Status, To: StatusCompleted, Current: *current}
		}
		completed = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// GetTransfer returns one transfer. Residents only see their own reports.
func (l *Ledger) GetTransfer(ctx context.Context, actor auth.Actor, id TransferID) (*BankTransfer, error) {
	t, err := l.store.GetTransfer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	if t == nil {
		return nil, ErrTransferNotFound
	}
	if t.UserRef != actor.ID && !l.authz.CanReviewTransfers(actor) {
		return nil, auth.ErrUnauthorized
	}
	return t, nil
}

// ListTransfers returns transfers newest first. Residents are scoped to the
// reports they submitted.
func (l *Ledger) ListTransfers(ctx context.Context, actor auth.Actor, f TransferFilter) (*TransferPage, error) {
	if actor.ID == "" {
		return nil, auth.ErrUnauthorized
	}
	if !l.authz.CanReviewTransfers(actor) {
		f.UserRef = actor.ID
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, invalid("status", "unknown status")
	}
	f.Page = f.Page.Normalize()

	items, total, err := l.store.ListTransfers(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	if items == nil {
		items = []BankTransfer{}
	}
	return &TransferPage{
		Items:      items,
		Total:      total,
		TotalPages: f.Page.TotalPages(total),
		Page:       f.Page.Page,
		PageSize:   f.Page.Size,
	}, nil
}

// =============================================================================
// DUES
// =============================================================================

// CreateDue is the billing seam. Only reviewers may create dues.
func (l *Ledger) CreateDue(ctx context.Context, actor auth.Actor, in NewDue) (*Due, error) {
	if err := auth.Require(l.authz.CanReviewTransfers(actor)); err != nil {
		return nil, err
	}
	switch {
	case strings.TrimSpace(in.UnitRef) == "":
		return nil, invalid("unit_ref", "is required")
	case !in.Amount.IsPositive():
		return nil, invalid("amount", "must be greater than zero")
	case in.DueDate.IsZero():
		return nil, invalid("due_date", "is required")
	}

	d := Due{
		ID:          DueID("due-" + uuid.NewString()),
		UnitRef:     strings.TrimSpace(in.UnitRef),
		Amount:      in.Amount,
		Description: in.Description,
		DueDate:     in.DueDate.UTC(),
		CreatedAt:   l.Now(),
	}
	if err := l.store.InsertDue(ctx, d); err != nil {
		return nil, fmt.Errorf("insert due: %w", err)
	}
	return &d, nil
}

// GetDue returns one due. Residents only see dues of their unit.
func (l *Ledger) GetDue(ctx context.Context, actor auth.Actor, id DueID) (*Due, error) {
	d, err := l.store.GetDue(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get due: %w", err)
	}
	if d == nil {
		return nil, ErrDueNotFound
	}
	if d.UnitRef != actor.UnitRef && !l.authz.CanReviewTransfers(actor) {
		return nil, auth.ErrUnauthorized
	}
	return d, nil
}

// ListDues lists dues. Residents are scoped to their unit.
func (l *Ledger) ListDues(ctx context.Context, actor auth.Actor, f DueFilter) ([]Due, error) {
	if actor.ID == "" {
		return nil, auth.ErrUnauthorized
	}
	if !l.authz.CanReviewTransfers(actor) {
		if actor.UnitRef == "" {
			return []Due{}, nil
		}
		f.UnitRef = actor.UnitRef
	}
	dues, err := l.store.ListDues(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list dues: %w", err)
	}
	if dues == nil {
		dues = []Due{}
	}
	return dues, nil
}

// CanReview reports whether actor holds the reviewer capability. Outer layers
// use it to gate staff-only surfaces that do not go through the ledger.
func (l *Ledger) CanReview(actor auth.Actor) bool {
	return l.authz.CanReviewTransfers(actor)
}

// =============================================================================
// HELPERS
// =============================================================================

func (l *Ledger) publish(ctx context.Context, e events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PublishTimeout)
	defer cancel()
	if err := l.events.Publish(ctx, e); err != nil {
		log.Printf("[ledger] publish %s failed: %v", e.EventID(), err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
