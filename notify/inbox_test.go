package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/resident-payments/auth"
	"github.com/warp/resident-payments/notify"
	"github.com/warp/resident-payments/notify/store"
	"github.com/warp/resident-payments/page"
)

var (
	alice = auth.Actor{ID: "user-1", Role: auth.RoleResident, UnitRef: "unit-1"}
	bob   = auth.Actor{ID: "user-2", Role: auth.RoleResident, UnitRef: "unit-2"}
	admin = auth.Actor{ID: "admin-1", Role: auth.RoleAdmin}
)

func newTestInbox(t *testing.T) *notify.Inbox {
	t.Helper()
	in, err := notify.NewInbox(store.NewMemory(), auth.NewRoleAuthorizer(), 1)
	require.NoError(t, err)
	clock := time.Date(2025, time.April, 1, 8, 0, 0, 0, time.UTC)
	in.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return in
}

func create(t *testing.T, in *notify.Inbox, recipient string, typ notify.Type) *notify.Notification {
	t.Helper()
	n, err := in.Create(context.Background(), recipient, typ, "Payment verified", "Your transfer was verified.", nil)
	require.NoError(t, err)
	return n
}

func TestInbox_CreateThenList_RoundTrip(t *testing.T) {
	in := newTestInbox(t)
	ctx := context.Background()
	entity := "trf-1"

	created, err := in.Create(ctx, "user-1", notify.TypePayment, "Payment verified", "Your transfer REF-1 was verified.", &entity)
	require.NoError(t, err)
	assert.False(t, created.IsRead)
	assert.NotZero(t, created.ID)

	p, err := in.List(ctx, alice, "user-1", notify.ListFilter{})
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, *created, p.Items[0])
}

func TestInbox_Create_RejectsUnknownType(t *testing.T) {
	in := newTestInbox(t)
	_, err := in.Create(context.Background(), "user-1", notify.Type("sms"), "t", "m", nil)
	assert.ErrorIs(t, err, notify.ErrInvalidType)
}

func TestInbox_MarkRead_Idempotent(t *testing.T) {
	// GIVEN: an unread notification
	// WHEN: it is marked read twice
	// THEN: both calls succeed and observe the same state
	in := newTestInbox(t)
	ctx := context.Background()
	n := create(t, in, "user-1", notify.TypePayment)

	first, err := in.MarkRead(ctx, alice, n.ID)
	require.NoError(t, err)
	second, err := in.MarkRead(ctx, alice, n.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, second.IsRead)

	count, err := in.UnreadCount(ctx, alice, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestInbox_MarkRead_AbsentIsNil(t *testing.T) {
	in := newTestInbox(t)
	got, err := in.MarkRead(context.Background(), alice, 12345)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestInbox_Delete_Idempotent(t *testing.T) {
	// GIVEN: a notification
	// WHEN: it is deleted twice
	// THEN: neither call errors and list never returns it again
	in := newTestInbox(t)
	ctx := context.Background()
	n := create(t, in, "user-1", notify.TypePayment)
	keep := create(t, in, "user-1", notify.TypeMeeting)

	require.NoError(t, in.Delete(ctx, alice, n.ID))
	require.NoError(t, in.Delete(ctx, alice, n.ID))

	p, err := in.List(ctx, alice, "user-1", notify.ListFilter{})
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, keep.ID, p.Items[0].ID)
}

func TestInbox_UnreadCount_MatchesUnreadList(t *testing.T) {
	in := newTestInbox(t)
	ctx := context.Background()
	var created []*notify.Notification
	for i := 0; i < 45; i++ {
		created = append(created, create(t, in, "user-1", notify.TypeAnnouncement))
	}
	for i := 0; i < 45; i += 4 {
		_, err := in.MarkRead(ctx, alice, created[i].ID)
		require.NoError(t, err)
	}
	require.NoError(t, in.Delete(ctx, alice, created[1].ID))
	require.NoError(t, in.Delete(ctx, alice, created[4].ID))

	count, err := in.UnreadCount(ctx, alice, "user-1")
	require.NoError(t, err)

	unread := false
	seen := 0
	for pg := 1; ; pg++ {
		p, err := in.List(ctx, alice, "user-1", notify.ListFilter{IsRead: &unread, Page: page.Request{Page: pg, Size: 10}})
		require.NoError(t, err)
		seen += len(p.Items)
		if pg >= p.TotalPages {
			break
		}
	}
	assert.Equal(t, seen, count)
}

func TestInbox_List_OutOfRangePage(t *testing.T) {
	// GIVEN: 3 notifications
	// WHEN: page 5 of size 20 is requested
	// THEN: empty items, totalPages 1, no error
	in := newTestInbox(t)
	for i := 0; i < 3; i++ {
		create(t, in, "user-1", notify.TypeDocument)
	}

	p, err := in.List(context.Background(), alice, "user-1", notify.ListFilter{Page: page.Request{Page: 5, Size: 20}})
	require.NoError(t, err)
	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
	assert.Equal(t, 1, p.TotalPages)
	assert.Equal(t, 3, p.Total)
}

func TestInbox_List_NewestFirst(t *testing.T) {
	in := newTestInbox(t)
	a := create(t, in, "user-1", notify.TypePayment)
	b := create(t, in, "user-1", notify.TypePayment)
	c := create(t, in, "user-1", notify.TypePayment)

	p, err := in.List(context.Background(), alice, "user-1", notify.ListFilter{})
	require.NoError(t, err)
	require.Len(t, p.Items, 3)
	assert.Equal(t, []notify.ID{c.ID, b.ID, a.ID}, []notify.ID{p.Items[0].ID, p.Items[1].ID, p.Items[2].ID})
}

func TestInbox_CapabilityEnforced(t *testing.T) {
	in := newTestInbox(t)
	ctx := context.Background()
	n := create(t, in, "user-1", notify.TypePayment)

	_, err := in.List(ctx, bob, "user-1", notify.ListFilter{})
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
	_, err = in.MarkRead(ctx, bob, n.ID)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
	assert.ErrorIs(t, in.Delete(ctx, bob, n.ID), auth.ErrUnauthorized)
	_, err = in.MarkAllRead(ctx, bob, "user-1")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
	_, err = in.UnreadCount(ctx, bob, "user-1")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	count, err := in.UnreadCount(ctx, admin, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "bob touched nothing")
}

func TestInbox_MarkAllRead(t *testing.T) {
	in := newTestInbox(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		create(t, in, "user-1", notify.TypePayment)
	}
	create(t, in, "user-2", notify.TypePayment)

	changed, err := in.MarkAllRead(ctx, alice, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 4, changed)

	count, err := in.UnreadCount(ctx, bob, "user-2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestParseID(t *testing.T) {
	id, err := notify.ParseID("1780000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "1780000000000000001", id.String())

	_, err = notify.ParseID("abc")
	assert.Error(t, err)
}
