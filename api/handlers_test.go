/*
handlers_test.go - HTTP tests for the transfer, due, event and inbox endpoints

Every test runs the full stack on an in-memory SQLite store: router,
Authenticate, ledger, inbox, dispatcher and hub, with tokens minted for the
demo people.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/resident-payments/auth"
	"github.com/warp/resident-payments/dispatch"
	"github.com/warp/resident-payments/ledger"
	"github.com/warp/resident-payments/live"
	"github.com/warp/resident-payments/notify"
	"github.com/warp/resident-payments/store/sqlite"
)

type testEnv struct {
	h      *Handler
	router http.Handler
	tokens *auth.Tokens
	disp   *dispatch.Dispatcher
}

func setupTestHandler(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	authz := auth.NewRoleAuthorizer()
	hub := live.NewHub(8)
	inbox, err := notify.NewInbox(store, authz, 1)
	require.NoError(t, err)
	disp, err := dispatch.New(inbox, hub, DemoAudiences(), 0)
	require.NoError(t, err)

	l := ledger.New(store, authz, disp)
	h := NewHandler(store, l, inbox, hub, disp)
	tokens := auth.NewTokens("test-secret", "respay-test", time.Hour)

	return &testEnv{
		h:      h,
		router: NewRouter(h, tokens, RouterOptions{Scenarios: true}),
		tokens: tokens,
		disp:   disp,
	}
}

func (e *testEnv) token(t *testing.T, a auth.Actor) string {
	t.Helper()
	tok, err := e.tokens.Issue(a)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, as *auth.Actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(t, *as))
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) createDue(t *testing.T, unit, amount string, dueDate time.Time) ledger.Due {
	t.Helper()
	d, err := e.h.Ledger.CreateDue(context.Background(), demoStaff, ledger.NewDue{
		UnitRef: unit,
		Amount:  decimal.RequireFromString(amount),
		DueDate: dueDate,
	})
	require.NoError(t, err)
	return *d
}

func (e *testEnv) submit(t *testing.T, as auth.Actor, amount, ref string) TransferDTO {
	t.Helper()
	rec := e.do(t, &as, http.MethodPost, "/api/transfers", map[string]any{
		"amount":           amount,
		"transfer_date":    time.Now().UTC().AddDate(0, 0, -1).Format(dateLayout),
		"reference_code":   ref,
		"bank_account_ref": "acct-1",
		"sender_name":      as.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[TransferDTO](t, rec)
}

func review(decision string, note *string) map[string]any {
	return map[string]any{"decision": decision, "note": note}
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func TestAPI_MissingOrInvalidToken_401(t *testing.T) {
	env := setupTestHandler(t)

	rec := env.do(t, nil, http.MethodGet, "/api/transfers", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	other := auth.NewTokens("other-secret", "respay-test", time.Hour)
	forged, err := other.Issue(demoStaff)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHealthz_Public(t *testing.T) {
	env := setupTestHandler(t)

	rec := env.do(t, nil, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

// =============================================================================
// TRANSFERS
// =============================================================================

func TestSubmitTransfer_PendingAndAutoLinked(t *testing.T) {
	// GIVEN: a-101 owes exactly one 150.00 due
	env := setupTestHandler(t)
	due := env.createDue(t, "a-101", "150.00", time.Now().AddDate(0, 0, 10))

	// WHEN: Alice reports a matching transfer
	dto := env.submit(t, demoAlice, "150.00", "REF-1")

	// THEN: it is PENDING, owned by Alice, on her unit, linked to the due
	assert.Equal(t, "PENDING", dto.Status)
	assert.Equal(t, "user-alice", dto.UserRef)
	assert.Equal(t, "a-101", dto.UnitRef)
	require.NotNil(t, dto.DueRef)
	assert.Equal(t, string(due.ID), *dto.DueRef)
	assert.True(t, decimal.RequireFromString("150").Equal(dto.Amount))
	assert.Nil(t, dto.VerifiedAt)
}

func TestSubmitTransfer_ValidationErrors(t *testing.T) {
	env := setupTestHandler(t)

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"zero amount", map[string]any{"amount": "0", "transfer_date": "2024-01-01", "reference_code": "R", "bank_account_ref": "a", "sender_name": "s"}, "amount"},
		{"future date", map[string]any{"amount": "10", "transfer_date": time.Now().AddDate(0, 0, 3).Format(dateLayout), "reference_code": "R", "bank_account_ref": "a", "sender_name": "s"}, "transfer_date"},
		{"missing reference", map[string]any{"amount": "10", "transfer_date": "2024-01-01", "bank_account_ref": "a", "sender_name": "s"}, "reference_code"},
		{"bad date", map[string]any{"amount": "10", "transfer_date": "yesterday", "reference_code": "R", "bank_account_ref": "a", "sender_name": "s"}, "transfer_date"},
		{"unknown due hint", map[string]any{"amount": "10", "transfer_date": "2024-01-01", "reference_code": "R", "bank_account_ref": "a", "sender_name": "s", "due_ref": "due-nope"}, "due_ref"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, &demoAlice, http.MethodPost, "/api/transfers", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tt.field, decode[ErrorResponse](t, rec).Field)
		})
	}
}

func TestSubmitTransfer_DuplicateReference_400(t *testing.T) {
	env := setupTestHandler(t)
	env.submit(t, demoAlice, "10.00", "DUP-1")

	rec := env.do(t, &demoBob, http.MethodPost, "/api/transfers", map[string]any{
		"amount": "20.00", "transfer_date": "2024-01-01", "reference_code": "DUP-1",
		"bank_account_ref": "acct-2", "sender_name": "Bob",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "reference_code", decode[ErrorResponse](t, rec).Field)
}

func TestReviewTransfer_VerifyThenSecondReviewConflicts(t *testing.T) {
	// GIVEN: a pending transfer linked to a due
	env := setupTestHandler(t)
	due := env.createDue(t, "a-101", "150.00", time.Now().AddDate(0, 0, 5))
	dto := env.submit(t, demoAlice, "150.00", "REF-1")

	// WHEN: staff verifies it
	rec := env.do(t, &demoStaff, http.MethodPost, "/api/transfers/"+dto.ID+"/review", review("VERIFIED", nil))

	// THEN: it is VERIFIED with reviewer fields, and the due is paid
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	verified := decode[TransferDTO](t, rec)
	assert.Equal(t, "VERIFIED", verified.Status)
	require.NotNil(t, verified.VerifiedByRef)
	assert.Equal(t, "staff-demo", *verified.VerifiedByRef)
	require.NotNil(t, verified.VerifiedAt)

	rec = env.do(t, &demoStaff, http.MethodGet, "/api/dues/"+string(due.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[DueDTO](t, rec).Paid)

	// WHEN: a second reviewer rejects it
	note := "late"
	rec = env.do(t, &demoStaff, http.MethodPost, "/api/transfers/"+dto.ID+"/review", review("REJECTED", &note))

	// THEN: 409 with the authoritative record, unchanged
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[ErrorResponse](t, rec)
	require.NotNil(t, body.Current)
	assert.Equal(t, "VERIFIED", body.Current.Status)
	assert.Equal(t, *verified.VerifiedAt, *body.Current.VerifiedAt)
	assert.Nil(t, body.Current.StatusNote)
}

func TestReviewTransfer_ResidentForbidden(t *testing.T) {
	env := setupTestHandler(t)
	dto := env.submit(t, demoAlice, "10.00", "REF-1")

	rec := env.do(t, &demoAlice, http.MethodPost, "/api/transfers/"+dto.ID+"/review", review("VERIFIED", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, &demoAlice, http.MethodGet, "/api/transfers/"+dto.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PENDING", decode[TransferDTO](t, rec).Status)
}

func TestReviewTransfer_InvalidDecisionAndUnknownID(t *testing.T) {
	env := setupTestHandler(t)
	dto := env.submit(t, demoAlice, "10.00", "REF-1")

	rec := env.do(t, &demoStaff, http.MethodPost, "/api/transfers/"+dto.ID+"/review", review("COMPLETED", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "decision", decode[ErrorResponse](t, rec).Field)

	rec = env.do(t, &demoStaff, http.MethodPost, "/api/transfers/trf-nope/review", review("VERIFIED", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompleteTransfer(t *testing.T) {
	env := setupTestHandler(t)
	dto := env.submit(t, demoAlice, "10.00", "REF-1")

	// Not yet verified.
	rec := env.do(t, &demoStaff, http.MethodPost, "/api/transfers/"+dto.ID+"/complete", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "PENDING", decode[ErrorResponse](t, rec).Current.Status)

	rec = env.do(t, &demoStaff, http.MethodPost, "/api/transfers/"+dto.ID+"/review", review("VERIFIED", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, &demoStaff, http.MethodPost, "/api/transfers/"+dto.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "COMPLETED", decode[TransferDTO](t, rec).Status)

	rec = env.do(t, &demoAlice, http.MethodPost, "/api/transfers/"+dto.ID+"/complete", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetTransfer_OwnershipAndNotFound(t *testing.T) {
	env := setupTestHandler(t)
	dto := env.submit(t, demoAlice, "10.00", "REF-1")

	assert.Equal(t, http.StatusForbidden, env.do(t, &demoBob, http.MethodGet, "/api/transfers/"+dto.ID, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, &demoStaff, http.MethodGet, "/api/transfers/"+dto.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, &demoStaff, http.MethodGet, "/api/transfers/trf-nope", nil).Code)
}

func TestListTransfers_ScopedFilteredAndPaged(t *testing.T) {
	// GIVEN: three transfers from Alice and one from Bob, one verified
	env := setupTestHandler(t)
	first := env.submit(t, demoAlice, "10.00", "A-1")
	env.submit(t, demoAlice, "11.00", "A-2")
	env.submit(t, demoAlice, "12.00", "A-3")
	env.submit(t, demoBob, "13.00", "B-1")
	require.Equal(t, http.StatusOK, env.do(t, &demoStaff, http.MethodPost, "/api/transfers/"+first.ID+"/review", review("VERIFIED", nil)).Code)

	// WHEN/THEN: Alice sees only her own, newest first
	rec := env.do(t, &demoAlice, http.MethodGet, "/api/transfers?page_size=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[TransferPageDTO](t, rec)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 2, p.TotalPages)
	require.Len(t, p.Items, 2)
	assert.Equal(t, "A-3", p.Items[0].ReferenceCode)

	// Asking for Bob's transfers does not widen her scope.
	p = decode[TransferPageDTO](t, env.do(t, &demoAlice, http.MethodGet, "/api/transfers?user=user-bob", nil))
	assert.Equal(t, 3, p.Total)

	// Staff filter by status.
	p = decode[TransferPageDTO](t, env.do(t, &demoStaff, http.MethodGet, "/api/transfers?status=PENDING", nil))
	assert.Equal(t, 3, p.Total)
	p = decode[TransferPageDTO](t, env.do(t, &demoStaff, http.MethodGet, "/api/transfers?status=VERIFIED&unit=a-101", nil))
	require.Equal(t, 1, p.Total)
	assert.Equal(t, first.ID, p.Items[0].ID)

	// Out-of-range page is empty, totals intact.
	p = decode[TransferPageDTO](t, env.do(t, &demoStaff, http.MethodGet, "/api/transfers?page=5", nil))
	assert.Empty(t, p.Items)
	assert.NotNil(t, p.Items)
	assert.Equal(t, 4, p.Total)
	assert.Equal(t, 5, p.Page)

	// Bad input.
	assert.Equal(t, http.StatusBadRequest, env.do(t, &demoStaff, http.MethodGet, "/api/transfers?status=LOST", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, &demoStaff, http.MethodGet, "/api/transfers?page=x", nil).Code)
}

func TestListTransfers_DateBoundsAreInclusiveDays(t *testing.T) {
	env := setupTestHandler(t)
	env.submit(t, demoAlice, "10.00", "A-1")
	today := time.Now().UTC().Format(dateLayout)

	p := decode[TransferPageDTO](t, env.do(t, &demoStaff, http.MethodGet, "/api/transfers?from="+today+"&to="+today, nil))
	assert.Equal(t, 1, p.Total)

	p = decode[TransferPageDTO](t, env.do(t, &demoStaff, http.MethodGet, "/api/transfers?to=2000-01-01", nil))
	assert.Equal(t, 0, p.Total)
}

// =============================================================================
// DUES
// =============================================================================

func TestDues_CreateIsStaffOnlyAndListIsScoped(t *testing.T) {
	env := setupTestHandler(t)

	body := map[string]any{"unit_ref": "a-101", "amount": "150.00", "description": "Maintenance", "due_date": "2025-03-01"}
	assert.Equal(t, http.StatusForbidden, env.do(t, &demoAlice, http.MethodPost, "/api/dues", body).Code)

	rec := env.do(t, &demoStaff, http.MethodPost, "/api/dues", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[DueDTO](t, rec)
	assert.Equal(t, "2025-03-01", created.DueDate)
	assert.False(t, created.Paid)

	body["unit_ref"] = "b-202"
	require.Equal(t, http.StatusCreated, env.do(t, &demoStaff, http.MethodPost, "/api/dues", body).Code)

	alice := decode[map[string][]DueDTO](t, env.do(t, &demoAlice, http.MethodGet, "/api/dues?unit=b-202", nil))
	require.Len(t, alice["dues"], 1)
	assert.Equal(t, "a-101", alice["dues"][0].UnitRef)

	staff := decode[map[string][]DueDTO](t, env.do(t, &demoStaff, http.MethodGet, "/api/dues?paid=false", nil))
	assert.Len(t, staff["dues"], 2)

	assert.Equal(t, http.StatusForbidden, env.do(t, &demoBob, http.MethodGet, "/api/dues/"+created.ID, nil).Code)

	body["amount"] = "-1"
	rec = env.do(t, &demoStaff, http.MethodPost, "/api/dues", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "amount", decode[ErrorResponse](t, rec).Field)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestReview_NotifiesSubmitterInbox(t *testing.T) {
	// GIVEN: Alice's transfer is rejected with a note
	env := setupTestHandler(t)
	dto := env.submit(t, demoAlice, "10.00", "REF-9")
	note := "Wrong amount"
	require.Equal(t, http.StatusOK, env.do(t, &demoStaff, http.MethodPost, "/api/transfers/"+dto.ID+"/review", review("REJECTED", &note)).Code)

	// WHEN: Alice reads her inbox
	rec := env.do(t, &demoAlice, http.MethodGet, "/api/notifications", nil)

	// THEN: one unread payment notification pointing at the transfer
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[NotificationPageDTO](t, rec)
	require.Len(t, p.Items, 1)
	n := p.Items[0]
	assert.Equal(t, "payment", n.Type)
	assert.Equal(t, "Payment rejected", n.Title)
	assert.Contains(t, n.Message, "Wrong amount")
	require.NotNil(t, n.EntityRef)
	assert.Equal(t, dto.ID, *n.EntityRef)
	assert.False(t, n.IsRead)

	// Bob's inbox is untouched.
	assert.Empty(t, decode[NotificationPageDTO](t, env.do(t, &demoBob, http.MethodGet, "/api/notifications", nil)).Items)
}

func TestNotifications_MarkReadDeleteAndCount(t *testing.T) {
	env := setupTestHandler(t)
	for _, ref := range []string{"R-1", "R-2"} {
		dto := env.submit(t, demoAlice, "10.00", ref)
		require.Equal(t, http.StatusOK, env.do(t, &demoStaff, http.MethodPost, "/api/transfers/"+dto.ID+"/review", review("VERIFIED", nil)).Code)
	}
	items := decode[NotificationPageDTO](t, env.do(t, &demoAlice, http.MethodGet, "/api/notifications", nil)).Items
	require.Len(t, items, 2)
	id := items[0].ID

	count := func() int {
		return decode[map[string]int](t, env.do(t, &demoAlice, http.MethodGet, "/api/notifications/unread-count", nil))["count"]
	}
	assert.Equal(t, 2, count())

	// Mark read twice: same result both times.
	for i := 0; i < 2; i++ {
		rec := env.do(t, &demoAlice, http.MethodPatch, "/api/notifications/"+id, map[string]bool{"is_read": true})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, decode[NotificationDTO](t, rec).IsRead)
		assert.Equal(t, 1, count())
	}

	// Unread filter agrees with the count.
	unread := decode[NotificationPageDTO](t, env.do(t, &demoAlice, http.MethodGet, "/api/notifications?is_read=false", nil))
	assert.Equal(t, 1, unread.Total)

	// Only is_read=true is accepted.
	assert.Equal(t, http.StatusBadRequest, env.do(t, &demoAlice, http.MethodPatch, "/api/notifications/"+id, map[string]bool{"is_read": false}).Code)

	// Another resident cannot touch it.
	assert.Equal(t, http.StatusForbidden, env.do(t, &demoBob, http.MethodPatch, "/api/notifications/"+id, map[string]bool{"is_read": true}).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, &demoBob, http.MethodDelete, "/api/notifications/"+id, nil).Code)

	// Delete twice: 204 both times, then it is gone.
	assert.Equal(t, http.StatusNoContent, env.do(t, &demoAlice, http.MethodDelete, "/api/notifications/"+id, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, &demoAlice, http.MethodDelete, "/api/notifications/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, &demoAlice, http.MethodPatch, "/api/notifications/"+id, map[string]bool{"is_read": true}).Code)

	// Read all.
	rec := env.do(t, &demoAlice, http.MethodPost, "/api/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[map[string]int](t, rec)["updated"])
	assert.Equal(t, 0, count())
}

func TestNotifications_FiltersAndOtherInboxes(t *testing.T) {
	env := setupTestHandler(t)

	assert.Equal(t, http.StatusBadRequest, env.do(t, &demoAlice, http.MethodGet, "/api/notifications?type=parcel", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, &demoAlice, http.MethodGet, "/api/notifications?is_read=maybe", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, &demoAlice, http.MethodGet, "/api/notifications?recipient=user-bob", nil).Code)

	admin := auth.Actor{ID: "admin-1", Role: auth.RoleAdmin}
	assert.Equal(t, http.StatusOK, env.do(t, &admin, http.MethodGet, "/api/notifications?recipient=user-bob", nil).Code)

	p := decode[NotificationPageDTO](t, env.do(t, &demoAlice, http.MethodGet, "/api/notifications?page=3", nil))
	assert.Empty(t, p.Items)
	assert.Equal(t, 0, p.Total)
	assert.Equal(t, 1, p.TotalPages)
}

// =============================================================================
// EVENTS
// =============================================================================

func TestPublishEvent_AnnouncementReachesAudience(t *testing.T) {
	env := setupTestHandler(t)

	rec := env.do(t, &demoStaff, http.MethodPost, "/api/events/announcement.created", map[string]any{
		"id":               "ann-1",
		"announcement_ref": "ann-1",
		"title":            "Water shut-off",
		"body":             "Tuesday 9:00-12:00",
		"audience":         "unit:b-202",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "ann-1", decode[map[string]string](t, rec)["event_id"])

	// Replaying the same event notifies nobody twice.
	require.Equal(t, http.StatusAccepted, env.do(t, &demoStaff, http.MethodPost, "/api/events/announcement.created", map[string]any{
		"id": "ann-1", "title": "Water shut-off", "body": "Tuesday 9:00-12:00", "audience": "unit:b-202",
	}).Code)

	for _, who := range []auth.Actor{demoBob, demoCarol} {
		p := decode[NotificationPageDTO](t, env.do(t, &who, http.MethodGet, "/api/notifications?type=announcement", nil))
		require.Len(t, p.Items, 1, who.ID)
		assert.Equal(t, "Water shut-off", p.Items[0].Title)
	}
	assert.Empty(t, decode[NotificationPageDTO](t, env.do(t, &demoAlice, http.MethodGet, "/api/notifications", nil)).Items)
}

func TestPublishEvent_Refusals(t *testing.T) {
	env := setupTestHandler(t)

	assert.Equal(t, http.StatusForbidden, env.do(t, &demoAlice, http.MethodPost, "/api/events/announcement.created", map[string]any{"title": "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, &demoStaff, http.MethodPost, "/api/events/transfer.reviewed", map[string]any{"transfer_id": "t"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, &demoStaff, http.MethodPost, "/api/events/parcel.arrived", map[string]any{}).Code)
}
