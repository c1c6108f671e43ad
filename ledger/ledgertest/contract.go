// Package ledgertest holds the behavioural contract every ledger.TxStore must
// satisfy. Store packages run it against their own constructor.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/resident-payments/ledger"
	"github.com/warp/resident-payments/page"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) ledger.TxStore

var base = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

// Due builds a due for fixtures.
func Due(id, unit, amount string, dueDate time.Time) ledger.Due {
	return ledger.Due{
		ID:          ledger.DueID(id),
		UnitRef:     unit,
		Amount:      decimal.RequireFromString(amount),
		Description: "fee " + id,
		DueDate:     dueDate.UTC(),
		CreatedAt:   base,
	}
}

// Transfer builds a PENDING transfer for fixtures.
func Transfer(id, unit, user, amount string, createdAt time.Time) ledger.BankTransfer {
	return ledger.BankTransfer{
		ID:             ledger.TransferID(id),
		UnitRef:        unit,
		UserRef:        user,
		BankAccountRef: "acct-main",
		Amount:         decimal.RequireFromString(amount),
		TransferDate:   createdAt.Add(-24 * time.Hour).UTC(),
		ReferenceCode:  "REF-" + id,
		SenderName:     "Sender " + user,
		Status:         ledger.StatusPending,
		CreatedAt:      createdAt.UTC(),
	}
}

// RunStoreContract runs the full suite.
func RunStoreContract(t *testing.T, newStore Factory) {
	t.Run("DueRoundTrip", func(t *testing.T) { testDueRoundTrip(t, newStore(t)) })
	t.Run("ListDuesFilterAndOrder", func(t *testing.T) { testListDues(t, newStore(t)) })
	t.Run("MarkDuePaidOnce", func(t *testing.T) { testMarkDuePaid(t, newStore(t)) })
	t.Run("TransferRoundTrip", func(t *testing.T) { testTransferRoundTrip(t, newStore(t)) })
	t.Run("DuplicateReference", func(t *testing.T) { testDuplicateReference(t, newStore(t)) })
	t.Run("ListTransfersPagination", func(t *testing.T) { testListTransfers(t, newStore(t)) })
	t.Run("ReviewIsCompareAndSet", func(t *testing.T) { testReviewCAS(t, newStore(t)) })
	t.Run("CompleteRequiresVerified", func(t *testing.T) { testComplete(t, newStore(t)) })
	t.Run("WithTxRollsBack", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("ConcurrentReviewsOneWinner", func(t *testing.T) { testConcurrentReview(t, newStore(t)) })
}

func testDueRoundTrip(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	d := Due("due-1", "unit-1", "150.25", base.AddDate(0, 0, 10))
	require.NoError(t, s.InsertDue(ctx, d))

	got, err := s.GetDue(ctx, "due-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, d.UnitRef, got.UnitRef)
	assert.True(t, d.Amount.Equal(got.Amount), "amount %s != %s", d.Amount, got.Amount)
	assert.True(t, d.DueDate.Equal(got.DueDate))
	assert.False(t, got.Paid)

	missing, err := s.GetDue(ctx, "due-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testListDues(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.InsertDue(ctx, Due("due-b", "unit-1", "10", base.AddDate(0, 0, 5))))
	require.NoError(t, s.InsertDue(ctx, Due("due-a", "unit-1", "10", base.AddDate(0, 0, 5))))
	require.NoError(t, s.InsertDue(ctx, Due("due-c", "unit-1", "10", base.AddDate(0, 0, 1))))
	require.NoError(t, s.InsertDue(ctx, Due("due-x", "unit-2", "10", base.AddDate(0, 0, 1))))
	_, err := s.MarkDuePaid(ctx, "due-b")
	require.NoError(t, err)

	all, err := s.ListDues(ctx, ledger.DueFilter{UnitRef: "unit-1"})
	require.NoError(t, err)
	assert.Equal(t, []ledger.DueID{"due-c", "due-a", "due-b"}, dueIDs(all))

	unpaid := false
	open, err := s.ListDues(ctx, ledger.DueFilter{UnitRef: "unit-1", Paid: &unpaid})
	require.NoError(t, err)
	assert.Equal(t, []ledger.DueID{"due-c", "due-a"}, dueIDs(open))

	from := base.AddDate(0, 0, 2)
	later, err := s.ListDues(ctx, ledger.DueFilter{DueFrom: &from})
	require.NoError(t, err)
	assert.Equal(t, []ledger.DueID{"due-a", "due-b"}, dueIDs(later))
}

func testMarkDuePaid(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.InsertDue(ctx, Due("due-1", "unit-1", "10", base)))

	changed, err := s.MarkDuePaid(ctx, "due-1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.MarkDuePaid(ctx, "due-1")
	require.NoError(t, err)
	assert.False(t, changed, "second mark is a no-op")

	_, err = s.MarkDuePaid(ctx, "due-404")
	assert.ErrorIs(t, err, ledger.ErrDueNotFound)
}

func testTransferRoundTrip(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.InsertDue(ctx, Due("due-1", "unit-1", "99.90", base)))

	tr := Transfer("trf-1", "unit-1", "user-1", "99.90", base)
	receipt := "https://receipts.example/1.pdf"
	due := ledger.DueID("due-1")
	tr.ReceiptURL = &receipt
	tr.DueRef = &due
	tr.Description = "march fee"
	require.NoError(t, s.InsertTransfer(ctx, tr))

	got, err := s.GetTransfer(ctx, "trf-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tr.ReferenceCode, got.ReferenceCode)
	assert.Equal(t, tr.SenderName, got.SenderName)
	assert.Equal(t, tr.BankAccountRef, got.BankAccountRef)
	assert.Equal(t, "march fee", got.Description)
	assert.True(t, tr.Amount.Equal(got.Amount))
	assert.True(t, tr.TransferDate.Equal(got.TransferDate))
	assert.True(t, tr.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, ledger.StatusPending, got.Status)
	require.NotNil(t, got.ReceiptURL)
	assert.Equal(t, receipt, *got.ReceiptURL)
	require.NotNil(t, got.DueRef)
	assert.Equal(t, due, *got.DueRef)
	assert.Nil(t, got.VerifiedAt)
	assert.Nil(t, got.VerifiedByRef)
	assert.Nil(t, got.StatusNote)

	missing, err := s.GetTransfer(ctx, "trf-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testDuplicateReference(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	first := Transfer("trf-1", "unit-1", "user-1", "10", base)
	require.NoError(t, s.InsertTransfer(ctx, first))

	second := Transfer("trf-2", "unit-2", "user-2", "20", base)
	second.ReferenceCode = first.ReferenceCode
	err := s.InsertTransfer(ctx, second)
	assert.ErrorIs(t, err, ledger.ErrDuplicateReference)

	got, err := s.GetTransfer(ctx, "trf-2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testListTransfers(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	// trf-0..trf-4 one minute apart; trf-a and trf-b share a timestamp.
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("trf-%d", i)
		require.NoError(t, s.InsertTransfer(ctx, Transfer(id, "unit-1", "user-1", "10", base.Add(time.Duration(i)*time.Minute))))
	}
	same := base.Add(10 * time.Minute)
	require.NoError(t, s.InsertTransfer(ctx, Transfer("trf-b", "unit-2", "user-2", "10", same)))
	require.NoError(t, s.InsertTransfer(ctx, Transfer("trf-a", "unit-2", "user-2", "10", same)))

	items, total, err := s.ListTransfers(ctx, ledger.TransferFilter{Page: page.Request{Page: 1, Size: 3}})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Equal(t, []ledger.TransferID{"trf-a", "trf-b", "trf-4"}, transferIDs(items))

	items, total, err = s.ListTransfers(ctx, ledger.TransferFilter{Page: page.Request{Page: 3, Size: 3}})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Equal(t, []ledger.TransferID{"trf-0"}, transferIDs(items))

	items, total, err = s.ListTransfers(ctx, ledger.TransferFilter{Page: page.Request{Page: 9, Size: 3}})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Empty(t, items)

	items, total, err = s.ListTransfers(ctx, ledger.TransferFilter{Page: page.Request{Page: 1<<62 + 1, Size: 3}})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Empty(t, items)

	items, total, err = s.ListTransfers(ctx, ledger.TransferFilter{UserRef: "user-2"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)

	_, err = s.ReviewTransfer(ctx, "trf-1", ledger.Review{Decision: ledger.StatusRejected, ReviewedAt: base, ReviewerRef: "staff-1"})
	require.NoError(t, err)
	rejected := ledger.StatusRejected
	items, total, err = s.ListTransfers(ctx, ledger.TransferFilter{Status: &rejected})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, []ledger.TransferID{"trf-1"}, transferIDs(items))

	from, to := base.Add(2*time.Minute), base.Add(3*time.Minute)
	items, total, err = s.ListTransfers(ctx, ledger.TransferFilter{UnitRef: "unit-1", From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []ledger.TransferID{"trf-3", "trf-2"}, transferIDs(items))
}

func testReviewCAS(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.InsertTransfer(ctx, Transfer("trf-1", "unit-1", "user-1", "10", base)))

	note := "matched statement line 14"
	at := base.Add(time.Hour)
	ok, err := s.ReviewTransfer(ctx, "trf-1", ledger.Review{Decision: ledger.StatusVerified, Note: &note, ReviewedAt: at, ReviewerRef: "staff-1"})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetTransfer(ctx, "trf-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusVerified, got.Status)
	require.NotNil(t, got.VerifiedAt)
	assert.True(t, at.Equal(*got.VerifiedAt))
	require.NotNil(t, got.VerifiedByRef)
	assert.Equal(t, "staff-1", *got.VerifiedByRef)
	require.NotNil(t, got.StatusNote)
	assert.Equal(t, note, *got.StatusNote)

	ok, err = s.ReviewTransfer(ctx, "trf-1", ledger.Review{Decision: ledger.StatusRejected, ReviewedAt: at.Add(time.Hour), ReviewerRef: "staff-2"})
	require.NoError(t, err)
	assert.False(t, ok, "a reviewed transfer cannot be reviewed again")

	got, err = s.GetTransfer(ctx, "trf-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusVerified, got.Status)
	assert.Equal(t, "staff-1", *got.VerifiedByRef)

	ok, err = s.ReviewTransfer(ctx, "trf-404", ledger.Review{Decision: ledger.StatusVerified, ReviewedAt: at, ReviewerRef: "staff-1"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func testComplete(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.InsertTransfer(ctx, Transfer("trf-1", "unit-1", "user-1", "10", base)))

	ok, err := s.CompleteTransfer(ctx, "trf-1")
	require.NoError(t, err)
	assert.False(t, ok, "PENDING cannot complete")

	_, err = s.ReviewTransfer(ctx, "trf-1", ledger.Review{Decision: ledger.StatusVerified, ReviewedAt: base, ReviewerRef: "staff-1"})
	require.NoError(t, err)

	ok, err = s.CompleteTransfer(ctx, "trf-1")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetTransfer(ctx, "trf-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, got.Status)
	require.NotNil(t, got.VerifiedByRef, "review fields survive completion")

	ok, err = s.CompleteTransfer(ctx, "trf-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testRollback(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.InsertDue(ctx, Due("due-1", "unit-1", "10", base)))
	require.NoError(t, s.InsertTransfer(ctx, Transfer("trf-1", "unit-1", "user-1", "10", base)))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx ledger.Store) error {
		ok, err := tx.ReviewTransfer(ctx, "trf-1", ledger.Review{Decision: ledger.StatusVerified, ReviewedAt: base, ReviewerRef: "staff-1"})
		require.NoError(t, err)
		require.True(t, ok)
		_, err = tx.MarkDuePaid(ctx, "due-1")
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	tr, err := s.GetTransfer(ctx, "trf-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, tr.Status, "review rolled back")

	d, err := s.GetDue(ctx, "due-1")
	require.NoError(t, err)
	assert.False(t, d.Paid, "due rolled back")

	err = s.WithTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.ReviewTransfer(ctx, "trf-1", ledger.Review{Decision: ledger.StatusVerified, ReviewedAt: base, ReviewerRef: "staff-1"}); err != nil {
			return err
		}
		_, err := tx.MarkDuePaid(ctx, "due-1")
		return err
	})
	require.NoError(t, err)

	d, err = s.GetDue(ctx, "due-1")
	require.NoError(t, err)
	assert.True(t, d.Paid)
}

func testConcurrentReview(t *testing.T, s ledger.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.InsertTransfer(ctx, Transfer("trf-1", "unit-1", "user-1", "10", base)))

	const reviewers = 8
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decision := ledger.StatusVerified
			if i%2 == 1 {
				decision = ledger.StatusRejected
			}
			var ok bool
			err := s.WithTx(ctx, func(tx ledger.Store) error {
				var err error
				ok, err = tx.ReviewTransfer(ctx, "trf-1", ledger.Review{Decision: decision, ReviewedAt: base, ReviewerRef: fmt.Sprintf("staff-%d", i)})
				return err
			})
			if err == nil && ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one review takes effect")
}

func dueIDs(ds []ledger.Due) []ledger.DueID {
	ids := make([]ledger.DueID, 0, len(ds))
	for _, d := range ds {
		ids = append(ids, d.ID)
	}
	return ids
}

func transferIDs(ts []ledger.BankTransfer) []ledger.TransferID {
	ids := make([]ledger.TransferID, 0, len(ts))
	for _, tr := range ts {
		ids = append(ids, tr.ID)
	}
	return ids
}
