package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// FindCandidateDue returns the unique unpaid due of unitRef whose amount equals
// amount exactly. Zero or several candidates is "no match": an ambiguous
// match is left for a human to pick.
func FindCandidateDue(dues []Due, unitRef string, amount decimal.Decimal) (Due, bool) {
	var (
		found Due
		n     int
	)
	for _, d := range dues {
		if d.Paid || d.UnitRef != unitRef || !d.Amount.Equal(amount) {
			continue
		}
		found = d
		n++
		if n > 1 {
			return Due{}, false
		}
	}
	return found, n == 1
}

// resolveDue decides the DueRef of a new transfer. An explicit hint must name
// an unpaid due of the same unit; without a hint the matcher may link one.
func resolveDue(ctx context.Context, s Store, unitRef string, amount decimal.Decimal, hint *DueID) (*DueID, error) {
	if hint != nil && *hint != "" {
		due, err := s.GetDue(ctx, *hint)
		if err != nil {
			return nil, fmt.Errorf("load due hint: %w", err)
		}
		if due == nil {
			return nil, &ValidationError{Field: "due_ref", Message: "due does not exist", Err: ErrDueNotFound}
		}
		if due.UnitRef != unitRef {
			return nil, invalid("due_ref", "due belongs to another unit")
		}
		if due.Paid {
			return nil, invalid("due_ref", "due is already paid")
		}
		id := due.ID
		return &id, nil
	}

	unpaid := false
	dues, err := s.ListDues(ctx, DueFilter{UnitRef: unitRef, Paid: &unpaid})
	if err != nil {
		return nil, fmt.Errorf("load unpaid dues: %w", err)
	}
	due, ok := FindCandidateDue(dues, unitRef, amount)
	if !ok {
		return nil, nil
	}
	id := due.ID
	return &id, nil
}
