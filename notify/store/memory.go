// Package store provides an in-memory notify.Store.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/resident-payments/notify"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps notifications per recipient with a running unread counter so
// UnreadCount is O(1). All counter changes happen under the same lock as the
// record change they mirror.
type Memory struct {
	mu          sync.RWMutex
	byID        map[notify.ID]notify.Notification
	byRecipient map[string]map[notify.ID]struct{}
	unread      map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		byID:        make(map[notify.ID]notify.Notification),
		byRecipient: make(map[string]map[notify.ID]struct{}),
		unread:      make(map[string]int),
	}
}

func (m *Memory) Insert(_ context.Context, n notify.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.byID[n.ID]; ok {
		m.removeLocked(old)
	}
	m.byID[n.ID] = n
	ids := m.byRecipient[n.RecipientRef]
	if ids == nil {
		ids = make(map[notify.ID]struct{})
		m.byRecipient[n.RecipientRef] = ids
	}
	ids[n.ID] = struct{}{}
	if !n.IsRead {
		m.unread[n.RecipientRef]++
	}
	return nil
}

func (m *Memory) Get(_ context.Context, id notify.ID) (*notify.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (m *Memory) List(_ context.Context, recipient string, f notify.ListFilter) ([]notify.Notification, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []notify.Notification
	for id := range m.byRecipient[recipient] {
		n := m.byID[id]
		if f.Type != nil && n.Type != *f.Type {
			continue
		}
		if f.IsRead != nil && n.IsRead != *f.IsRead {
			continue
		}
		matched = append(matched, n)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	p := f.Page.Normalize()
	lo, hi := p.Window(len(matched))
	result := make([]notify.Notification, hi-lo)
	copy(result, matched[lo:hi])
	return result, len(matched), nil
}

func (m *Memory) MarkRead(_ context.Context, id notify.ID) (*notify.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	if !n.IsRead {
		n.IsRead = true
		m.byID[id] = n
		m.unread[n.RecipientRef]--
	}
	return &n, nil
}

func (m *Memory) MarkAllRead(_ context.Context, recipient string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := 0
	for id := range m.byRecipient[recipient] {
		n := m.byID[id]
		if n.IsRead {
			continue
		}
		n.IsRead = true
		m.byID[id] = n
		changed++
	}
	m.unread[recipient] = 0
	return changed, nil
}

func (m *Memory) Delete(_ context.Context, id notify.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n, ok := m.byID[id]; ok {
		m.removeLocked(n)
	}
	return nil
}

func (m *Memory) removeLocked(n notify.Notification) {
	delete(m.byID, n.ID)
	delete(m.byRecipient[n.RecipientRef], n.ID)
	if !n.IsRead {
		m.unread[n.RecipientRef]--
	}
}

func (m *Memory) UnreadCount(_ context.Context, recipient string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.unread[recipient], nil
}
