package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/resident-payments/auth"
	"github.com/warp/resident-payments/events"
	"github.com/warp/resident-payments/live"
	"github.com/warp/resident-payments/notify"
	"github.com/warp/resident-payments/notify/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fixture struct {
	d     *Dispatcher
	inbox *notify.Inbox
	hub   *live.Hub
}

func newFixture(t *testing.T, audiences AudienceResolver) fixture {
	t.Helper()
	inbox, err := notify.NewInbox(store.NewMemory(), auth.NewRoleAuthorizer(), 1)
	require.NoError(t, err)
	hub := live.NewHub(4)
	d, err := New(inbox, hub, audiences, 16)
	require.NoError(t, err)
	return fixture{d: d, inbox: inbox, hub: hub}
}

func (f fixture) list(t *testing.T, recipient string) []notify.Notification {
	t.Helper()
	p, err := f.inbox.List(context.Background(), auth.System(), recipient, notify.ListFilter{})
	require.NoError(t, err)
	return p.Items
}

func verified() events.TransferReviewed {
	return events.TransferReviewed{
		ID:            events.TransferReviewedID("trf-1"),
		TransferID:    "trf-1",
		UserRef:       "user-1",
		UnitRef:       "unit-1",
		Decision:      "VERIFIED",
		Amount:        decimal.RequireFromString("500"),
		ReferenceCode: "REF-1",
		ReviewedBy:    "staff-1",
		ReviewedAt:    time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
}

type failingCreator struct{ calls int }

func (f *failingCreator) Create(context.Context, string, notify.Type, string, string, *string) (*notify.Notification, error) {
	f.calls++
	return nil, errors.New("db down")
}

type fullPusher struct{}

func (fullPusher) Publish(string, notify.Notification) error { return live.ErrTransportFailure }

// =============================================================================
// TESTS
// =============================================================================

func TestPublish_TransferReviewed_WritesInboxAndPushes(t *testing.T) {
	// GIVEN: user-1 has a live connection
	// WHEN: their transfer is verified
	// THEN: one payment notification is stored and the same record is pushed
	f := newFixture(t, nil)
	sub := f.hub.Subscribe("user-1")
	defer sub.Close()

	require.NoError(t, f.d.Publish(context.Background(), verified()))

	items := f.list(t, "user-1")
	require.Len(t, items, 1)
	n := items[0]
	assert.Equal(t, notify.TypePayment, n.Type)
	assert.Equal(t, "Payment verified", n.Title)
	assert.Contains(t, n.Message, "500.00")
	assert.Contains(t, n.Message, "REF-1")
	require.NotNil(t, n.EntityRef)
	assert.Equal(t, "trf-1", *n.EntityRef)

	select {
	case pushed := <-sub.C:
		assert.Equal(t, n, pushed)
	case <-time.After(time.Second):
		t.Fatal("no live push")
	}
}

func TestPublish_RejectedCarriesNote(t *testing.T) {
	f := newFixture(t, nil)
	e := verified()
	e.Decision = "REJECTED"
	e.Note = "receipt unreadable"

	require.NoError(t, f.d.Publish(context.Background(), e))

	items := f.list(t, "user-1")
	require.Len(t, items, 1)
	assert.Equal(t, "Payment rejected", items[0].Title)
	assert.Contains(t, items[0].Message, "receipt unreadable")
}

func TestPublish_DuplicateEvent_NotifiesOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.d.Publish(ctx, verified()))
	require.NoError(t, f.d.Publish(ctx, verified()))
	e := verified()
	require.NoError(t, f.d.Publish(ctx, &e))

	assert.Len(t, f.list(t, "user-1"), 1)
}

func TestDeliver_CountsOnlyWrittenNotifications(t *testing.T) {
	f := newFixture(t, StaticAudiences{"building:north": {"user-1", "user-2"}})
	ctx := context.Background()
	e := events.AnnouncementCreated{
		ID:              "announcement.created:2",
		AnnouncementRef: "ann-2",
		Title:           "Lift maintenance",
		Body:            "The lift is off Friday.",
		Audience:        "building:north",
	}

	n, err := f.d.Deliver(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A replay writes nothing.
	n, err = f.d.Deliver(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, f.list(t, "user-1"), 1)
}

func TestPublish_Broadcast_OneNotificationPerMember(t *testing.T) {
	f := newFixture(t, StaticAudiences{"building:north": {"user-1", "user-2", "user-1", "user-3"}})

	err := f.d.Publish(context.Background(), events.AnnouncementCreated{
		ID:              "announcement.created:1",
		AnnouncementRef: "ann-1",
		Title:           "Water shut-off",
		Body:            "Water is off Tuesday 9-12.",
		Audience:        "building:north",
	})
	require.NoError(t, err)

	for _, r := range []string{"user-1", "user-2", "user-3"} {
		items := f.list(t, r)
		require.Len(t, items, 1, r)
		assert.Equal(t, notify.TypeAnnouncement, items[0].Type)
		assert.Equal(t, "Water shut-off", items[0].Title)
	}
}

func TestPublish_DocumentShared_RecipientsAndAudienceMerged(t *testing.T) {
	f := newFixture(t, StaticAudiences{"board": {"user-2", "user-3"}})

	err := f.d.Publish(context.Background(), events.DocumentShared{
		ID:          "document.shared:1",
		DocumentRef: "doc-1",
		Name:        "Minutes.pdf",
		Recipients:  []string{"user-1", "user-2"},
		Audience:    "board",
	})
	require.NoError(t, err)

	assert.Len(t, f.list(t, "user-1"), 1)
	assert.Len(t, f.list(t, "user-2"), 1)
	assert.Len(t, f.list(t, "user-3"), 1)
}

func TestPublish_OtherKinds(t *testing.T) {
	f := newFixture(t, StaticAudiences{"all": {"user-1"}})
	ctx := context.Background()

	require.NoError(t, f.d.Publish(ctx, events.MaintenanceUpdated{ID: "m-1", RequestRef: "req-1", RequesterRef: "user-1", Status: "IN_PROGRESS", Summary: "Plumber booked."}))
	require.NoError(t, f.d.Publish(ctx, events.MeetingScheduled{ID: "mt-1", MeetingRef: "meet-1", Title: "General assembly", Location: "Lobby", StartsAt: time.Date(2025, 5, 2, 18, 0, 0, 0, time.UTC), Audience: "all"}))
	require.NoError(t, f.d.Publish(ctx, events.DueReminder{ID: "r-1", DueRef: "due-1", RecipientRef: "user-1", Description: "May fee", Amount: decimal.RequireFromString("250"), DueDate: time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC), DaysLeft: 1}))

	items := f.list(t, "user-1")
	require.Len(t, items, 3)
	types := map[notify.Type]string{}
	for _, n := range items {
		types[n.Type] = n.Title
	}
	assert.Equal(t, "Maintenance request updated", types[notify.TypeMaintenance])
	assert.Equal(t, "Meeting scheduled", types[notify.TypeMeeting])
	assert.Equal(t, "Payment due tomorrow", types[notify.TypePayment])
}

func TestPublish_PushFailure_Swallowed(t *testing.T) {
	inbox, err := notify.NewInbox(store.NewMemory(), auth.NewRoleAuthorizer(), 1)
	require.NoError(t, err)
	d, err := New(inbox, fullPusher{}, nil, 16)
	require.NoError(t, err)

	require.NoError(t, d.Publish(context.Background(), verified()))

	p, err := inbox.List(context.Background(), auth.System(), "user-1", notify.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, p.Items, 1, "inbox write stands")
}

func TestPublish_StoreFailure_ReturnedAndRetryable(t *testing.T) {
	creator := &failingCreator{}
	d, err := New(creator, nil, nil, 16)
	require.NoError(t, err)

	assert.Error(t, d.Publish(context.Background(), verified()))
	assert.Error(t, d.Publish(context.Background(), verified()))
	assert.Equal(t, 2, creator.calls, "failed writes are not remembered as delivered")
}

func TestPublish_UnknownKind(t *testing.T) {
	f := newFixture(t, nil)
	err := f.d.Publish(context.Background(), unknownEvent{})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

type unknownEvent struct{}

func (unknownEvent) EventID() string   { return "x" }
func (unknownEvent) Kind() events.Kind { return "parcel.arrived" }
