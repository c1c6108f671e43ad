// Package notifytest holds the behavioural contract every notify.Store must
// satisfy.
package notifytest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/resident-payments/notify"
	"github.com/warp/resident-payments/page"
)

type Factory func(t *testing.T) notify.Store

var base = time.Date(2025, time.April, 1, 8, 0, 0, 0, time.UTC)

// Notification builds an unread fixture created `offset` after a fixed base.
func Notification(id int64, recipient string, typ notify.Type, offset time.Duration) notify.Notification {
	return notify.Notification{
		ID:           notify.ID(id),
		RecipientRef: recipient,
		Type:         typ,
		Title:        fmt.Sprintf("title %d", id),
		Message:      fmt.Sprintf("message %d", id),
		CreatedAt:    base.Add(offset),
	}
}

func RunStoreContract(t *testing.T, newStore Factory) {
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newStore(t)) })
	t.Run("ListOrderAndPaging", func(t *testing.T) { testListOrder(t, newStore(t)) })
	t.Run("ListFilters", func(t *testing.T) { testListFilters(t, newStore(t)) })
	t.Run("OutOfRangePage", func(t *testing.T) { testOutOfRange(t, newStore(t)) })
	t.Run("MarkReadIdempotent", func(t *testing.T) { testMarkRead(t, newStore(t)) })
	t.Run("MarkAllRead", func(t *testing.T) { testMarkAllRead(t, newStore(t)) })
	t.Run("DeleteIdempotent", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("UnreadCountMatchesList", func(t *testing.T) { testUnreadCount(t, newStore(t)) })
	t.Run("ConcurrentMarkRead", func(t *testing.T) { testConcurrentMarkRead(t, newStore(t)) })
}

func testRoundTrip(t *testing.T, s notify.Store) {
	ctx := context.Background()
	entity := "trf-123"
	n := Notification(1, "user-1", notify.TypePayment, 0)
	n.EntityRef = &entity
	require.NoError(t, s.Insert(ctx, n))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assertSame(t, n, *got)

	items, total, err := s.List(ctx, "user-1", notify.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assertSame(t, n, items[0])

	missing, err := s.Get(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testListOrder(t *testing.T, s notify.Store) {
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, Notification(1, "user-1", notify.TypePayment, 0)))
	require.NoError(t, s.Insert(ctx, Notification(2, "user-1", notify.TypePayment, time.Minute)))
	// 3 and 4 share a timestamp; higher id first.
	require.NoError(t, s.Insert(ctx, Notification(3, "user-1", notify.TypePayment, 2*time.Minute)))
	require.NoError(t, s.Insert(ctx, Notification(4, "user-1", notify.TypePayment, 2*time.Minute)))
	require.NoError(t, s.Insert(ctx, Notification(5, "user-2", notify.TypePayment, 3*time.Minute)))

	items, total, err := s.List(ctx, "user-1", notify.ListFilter{Page: page.Request{Page: 1, Size: 3}})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, []notify.ID{4, 3, 2}, ids(items))

	items, total, err = s.List(ctx, "user-1", notify.ListFilter{Page: page.Request{Page: 2, Size: 3}})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, []notify.ID{1}, ids(items))
}

func testListFilters(t *testing.T, s notify.Store) {
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, Notification(1, "user-1", notify.TypePayment, 0)))
	require.NoError(t, s.Insert(ctx, Notification(2, "user-1", notify.TypeMeeting, time.Minute)))
	require.NoError(t, s.Insert(ctx, Notification(3, "user-1", notify.TypePayment, 2*time.Minute)))
	_, err := s.MarkRead(ctx, 3)
	require.NoError(t, err)

	payment := notify.TypePayment
	items, total, err := s.List(ctx, "user-1", notify.ListFilter{Type: &payment})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []notify.ID{3, 1}, ids(items))

	unread := false
	items, total, err = s.List(ctx, "user-1", notify.ListFilter{Type: &payment, IsRead: &unread})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, []notify.ID{1}, ids(items))

	read := true
	items, _, err = s.List(ctx, "user-1", notify.ListFilter{IsRead: &read})
	require.NoError(t, err)
	assert.Equal(t, []notify.ID{3}, ids(items))
}

func testOutOfRange(t *testing.T, s notify.Store) {
	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, s.Insert(ctx, Notification(i, "user-1", notify.TypeDocument, time.Duration(i)*time.Second)))
	}

	items, total, err := s.List(ctx, "user-1", notify.ListFilter{Page: page.Request{Page: 5, Size: 20}})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 3, total)

	// A page whose offset would overflow is still just past the end.
	items, total, err = s.List(ctx, "user-1", notify.ListFilter{Page: page.Request{Page: 1<<62 + 1, Size: 20}})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 3, total)
}

func testMarkRead(t *testing.T, s notify.Store) {
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, Notification(1, "user-1", notify.TypePayment, 0)))

	first, err := s.MarkRead(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.True(t, first.IsRead)

	second, err := s.MarkRead(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, second)
	assertSame(t, *first, *second)

	count, err := s.UnreadCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	missing, err := s.MarkRead(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testMarkAllRead(t *testing.T, s notify.Store) {
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, Notification(1, "user-1", notify.TypePayment, 0)))
	require.NoError(t, s.Insert(ctx, Notification(2, "user-1", notify.TypePayment, time.Second)))
	require.NoError(t, s.Insert(ctx, Notification(3, "user-1", notify.TypePayment, 2*time.Second)))
	require.NoError(t, s.Insert(ctx, Notification(4, "user-2", notify.TypePayment, 0)))
	_, err := s.MarkRead(ctx, 2)
	require.NoError(t, err)

	changed, err := s.MarkAllRead(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	count, err := s.UnreadCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	other, err := s.UnreadCount(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, 1, other, "other recipients untouched")

	changed, err = s.MarkAllRead(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
}

func testDelete(t *testing.T, s notify.Store) {
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, Notification(1, "user-1", notify.TypePayment, 0)))
	require.NoError(t, s.Insert(ctx, Notification(2, "user-1", notify.TypePayment, time.Second)))

	require.NoError(t, s.Delete(ctx, 1))
	require.NoError(t, s.Delete(ctx, 1))
	require.NoError(t, s.Delete(ctx, 404))

	items, total, err := s.List(ctx, "user-1", notify.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, []notify.ID{2}, ids(items))

	count, err := s.UnreadCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "deleted unread notification stops counting")

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testUnreadCount(t *testing.T, s notify.Store) {
	ctx := context.Background()
	for i := int64(1); i <= 30; i++ {
		require.NoError(t, s.Insert(ctx, Notification(i, "user-1", notify.TypeAnnouncement, time.Duration(i)*time.Second)))
	}
	for _, id := range []notify.ID{3, 7, 11, 19} {
		_, err := s.MarkRead(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, s.Delete(ctx, 5))
	require.NoError(t, s.Delete(ctx, 7))

	count, err := s.UnreadCount(ctx, "user-1")
	require.NoError(t, err)

	unread := false
	items, total, err := s.List(ctx, "user-1", notify.ListFilter{IsRead: &unread, Page: page.Request{Page: 1, Size: page.MaxSize}})
	require.NoError(t, err)
	assert.Equal(t, total, count)
	assert.Len(t, items, count)
	assert.Equal(t, 25, count)
}

func testConcurrentMarkRead(t *testing.T, s notify.Store) {
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, Notification(1, "user-1", notify.TypePayment, 0)))
	require.NoError(t, s.Insert(ctx, Notification(2, "user-1", notify.TypePayment, time.Second)))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.MarkRead(ctx, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := s.UnreadCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func assertSame(t *testing.T, want, got notify.Notification) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.RecipientRef, got.RecipientRef)
	assert.Equal(t, want.Type, got.Type)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Message, got.Message)
	assert.Equal(t, want.EntityRef, got.EntityRef)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at %s != %s", want.CreatedAt, got.CreatedAt)
}

func ids(ns []notify.Notification) []notify.ID {
	out := make([]notify.ID, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.ID)
	}
	return out
}
