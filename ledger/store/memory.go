// Package store provides in-memory ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/resident-payments/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	dues       map[ledger.DueID]ledger.Due
	transfers  map[ledger.TransferID]ledger.BankTransfer
	references map[string]ledger.TransferID
}

func NewMemory() *Memory {
	return &Memory{
		dues:       make(map[ledger.DueID]ledger.Due),
		transfers:  make(map[ledger.TransferID]ledger.BankTransfer),
		references: make(map[string]ledger.TransferID),
	}
}

func (m *Memory) InsertDue(_ context.Context, d ledger.Due) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertDueLocked(d)
	return nil
}

func (m *Memory) insertDueLocked(d ledger.Due) {
	m.dues[d.ID] = d
}

func (m *Memory) GetDue(_ context.Context, id ledger.DueID) (*ledger.Due, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getDueLocked(id), nil
}

func (m *Memory) getDueLocked(id ledger.DueID) *ledger.Due {
	d, ok := m.dues[id]
	if !ok {
		return nil
	}
	return &d
}

func (m *Memory) ListDues(_ context.Context, f ledger.DueFilter) ([]ledger.Due, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listDuesLocked(f), nil
}

func (m *Memory) listDuesLocked(f ledger.DueFilter) []ledger.Due {
	var result []ledger.Due
	for _, d := range m.dues {
		if matchDue(d, f) {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].DueDate.Equal(result[j].DueDate) {
			return result[i].DueDate.Before(result[j].DueDate)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (m *Memory) MarkDuePaid(_ context.Context, id ledger.DueID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markDuePaidLocked(id)
}

func (m *Memory) markDuePaidLocked(id ledger.DueID) (bool, error) {
	d, ok := m.dues[id]
	if !ok {
		return false, ledger.ErrDueNotFound
	}
	if d.Paid {
		return false, nil
	}
	d.Paid = true
	m.dues[id] = d
	return true, nil
}

func (m *Memory) InsertTransfer(_ context.Context, t ledger.BankTransfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertTransferLocked(t)
}

func (m *Memory) insertTransferLocked(t ledger.BankTransfer) error {
	if _, taken := m.references[t.ReferenceCode]; taken {
		return ledger.ErrDuplicateReference
	}
	m.transfers[t.ID] = t
	m.references[t.ReferenceCode] = t.ID
	return nil
}

func (m *Memory) GetTransfer(_ context.Context, id ledger.TransferID) (*ledger.BankTransfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getTransferLocked(id), nil
}

func (m *Memory) getTransferLocked(id ledger.TransferID) *ledger.BankTransfer {
	t, ok := m.transfers[id]
	if !ok {
		return nil
	}
	return &t
}

func (m *Memory) ListTransfers(_ context.Context, f ledger.TransferFilter) ([]ledger.BankTransfer, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items, total := m.listTransfersLocked(f)
	return items, total, nil
}

func (m *Memory) listTransfersLocked(f ledger.TransferFilter) ([]ledger.BankTransfer, int) {
	var matched []ledger.BankTransfer
	for _, t := range m.transfers {
		if matchTransfer(t, f) {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	p := f.Page.Normalize()
	lo, hi := p.Window(len(matched))
	result := make([]ledger.BankTransfer, hi-lo)
	copy(result, matched[lo:hi])
	return result, len(matched)
}

func (m *Memory) ReviewTransfer(_ context.Context, id ledger.TransferID, r ledger.Review) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reviewTransferLocked(id, r), nil
}

// reviewTransferLocked is the compare-and-set out of PENDING.
func (m *Memory) reviewTransferLocked(id ledger.TransferID, r ledger.Review) bool {
	t, ok := m.transfers[id]
	if !ok || t.Status != ledger.StatusPending {
		return false
	}
	at := r.ReviewedAt
	by := r.ReviewerRef
	t.Status = r.Decision
	t.StatusNote = r.Note
	t.VerifiedAt = &at
	t.VerifiedByRef = &by
	m.transfers[id] = t
	return true
}

func (m *Memory) CompleteTransfer(_ context.Context, id ledger.TransferID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completeTransferLocked(id), nil
}

func (m *Memory) completeTransferLocked(id ledger.TransferID) bool {
	t, ok := m.transfers[id]
	if !ok || t.Status != ledger.StatusVerified {
		return false
	}
	t.Status = ledger.StatusCompleted
	m.transfers[id] = t
	return true
}

// =============================================================================
// FILTERS
// =============================================================================

func matchDue(d ledger.Due, f ledger.DueFilter) bool {
	if f.UnitRef != "" && d.UnitRef != f.UnitRef {
		return false
	}
	if f.Paid != nil && d.Paid != *f.Paid {
		return false
	}
	if f.DueFrom != nil && d.DueDate.Before(*f.DueFrom) {
		return false
	}
	if f.DueTo != nil && d.DueDate.After(*f.DueTo) {
		return false
	}
	return true
}

func matchTransfer(t ledger.BankTransfer, f ledger.TransferFilter) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.UnitRef != "" && t.UnitRef != f.UnitRef {
		return false
	}
	if f.UserRef != "" && t.UserRef != f.UserRef {
		return false
	}
	if f.From != nil && t.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && t.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole of fn, so transactions are serialized.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		dues:       make(map[ledger.DueID]ledger.Due, len(tm.dues)),
		transfers:  make(map[ledger.TransferID]ledger.BankTransfer, len(tm.transfers)),
		references: make(map[string]ledger.TransferID, len(tm.references)),
	}
	for k, v := range tm.dues {
		s.dues[k] = v
	}
	for k, v := range tm.transfers {
		s.transfers[k] = v
	}
	for k, v := range tm.references {
		s.references[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.dues = s.dues
	tm.transfers = s.transfers
	tm.references = s.references
}

type memorySnapshot struct {
	dues       map[ledger.DueID]ledger.Due
	transfers  map[ledger.TransferID]ledger.BankTransfer
	references map[string]ledger.TransferID
}

// txMemoryView runs against the parent while WithTx holds its lock.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) InsertDue(_ context.Context, d ledger.Due) error {
	tv.parent.insertDueLocked(d)
	return nil
}

func (tv *txMemoryView) GetDue(_ context.Context, id ledger.DueID) (*ledger.Due, error) {
	return tv.parent.getDueLocked(id), nil
}

func (tv *txMemoryView) ListDues(_ context.Context, f ledger.DueFilter) ([]ledger.Due, error) {
	return tv.parent.listDuesLocked(f), nil
}

func (tv *txMemoryView) MarkDuePaid(_ context.Context, id ledger.DueID) (bool, error) {
	return tv.parent.markDuePaidLocked(id)
}

func (tv *txMemoryView) InsertTransfer(_ context.Context, t ledger.BankTransfer) error {
	return tv.parent.insertTransferLocked(t)
}

func (tv *txMemoryView) GetTransfer(_ context.Context, id ledger.TransferID) (*ledger.BankTransfer, error) {
	return tv.parent.getTransferLocked(id), nil
}

func (tv *txMemoryView) ListTransfers(_ context.Context, f ledger.TransferFilter) ([]ledger.BankTransfer, int, error) {
	items, total := tv.parent.listTransfersLocked(f)
	return items, total, nil
}

func (tv *txMemoryView) ReviewTransfer(_ context.Context, id ledger.TransferID, r ledger.Review) (bool, error) {
	return tv.parent.reviewTransferLocked(id, r), nil
}

func (tv *txMemoryView) CompleteTransfer(_ context.Context, id ledger.TransferID) (bool, error) {
	return tv.parent.completeTransferLocked(id), nil
}
