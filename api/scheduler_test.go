package api

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/resident-payments/auth"
	"github.com/warp/resident-payments/ledger"
	"github.com/warp/resident-payments/notify"
)

func newTestScheduler(env *testEnv, now time.Time) *ReminderScheduler {
	rs := NewReminderScheduler(env.h.Ledger, env.disp, DemoAudiences())
	rs.Now = func() time.Time { return now }
	return rs
}

func reminderTitles(t *testing.T, env *testEnv, who auth.Actor) []string {
	t.Helper()
	p, err := env.h.Inbox.List(context.Background(), who, who.ID, notify.ListFilter{})
	require.NoError(t, err)

	var titles []string
	for _, n := range p.Items {
		if strings.HasPrefix(n.Title, "Payment due") {
			titles = append(titles, n.Title)
		}
	}
	return titles
}

func TestReminderScheduler_RunNow_RemindsOnConfiguredDays(t *testing.T) {
	// GIVEN: a-101 has dues 7, 2, 1, 0 and 20 days out, and one yesterday
	env := setupTestHandler(t)
	now := time.Date(2030, 6, 10, 12, 0, 0, 0, time.UTC)
	for _, days := range []int{7, 2, 1, 0, 20, -1} {
		env.createDue(t, "a-101", "150.00", now.AddDate(0, 0, days))
	}

	// WHEN: the scheduler runs
	sent := newTestScheduler(env, now).RunNow(context.Background())

	// THEN: only the 7, 1 and 0 day dues are reminded
	assert.Equal(t, 3, sent)
	assert.ElementsMatch(t,
		[]string{"Payment due in 7 days", "Payment due tomorrow", "Payment due today"},
		reminderTitles(t, env, demoAlice))
	assert.Empty(t, reminderTitles(t, env, demoBob))
}

func TestReminderScheduler_RunNow_RemindsEveryResidentOfTheUnit(t *testing.T) {
	env := setupTestHandler(t)
	now := time.Date(2030, 6, 10, 8, 0, 0, 0, time.UTC)
	env.createDue(t, "b-202", "95.00", now.AddDate(0, 0, 1))

	sent := newTestScheduler(env, now).RunNow(context.Background())

	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"Payment due tomorrow"}, reminderTitles(t, env, demoBob))
	assert.Equal(t, []string{"Payment due tomorrow"}, reminderTitles(t, env, demoCarol))
	assert.Empty(t, reminderTitles(t, env, demoAlice))
}

func TestReminderScheduler_RunNow_SameDayIsDeduplicated(t *testing.T) {
	// GIVEN: a due tomorrow that was already reminded this morning
	env := setupTestHandler(t)
	morning := time.Date(2030, 6, 10, 8, 0, 0, 0, time.UTC)
	env.createDue(t, "a-101", "150.00", morning.AddDate(0, 0, 1))
	require.Equal(t, 1, newTestScheduler(env, morning).RunNow(context.Background()))

	// WHEN: the scheduler ticks again in the afternoon
	sent := newTestScheduler(env, morning.Add(6*time.Hour)).RunNow(context.Background())

	// THEN: nothing new is delivered and Alice still has one reminder
	assert.Equal(t, 0, sent)
	assert.Len(t, reminderTitles(t, env, demoAlice), 1)

	// And the next day brings the "today" reminder.
	newTestScheduler(env, morning.AddDate(0, 0, 1)).RunNow(context.Background())
	assert.ElementsMatch(t, []string{"Payment due tomorrow", "Payment due today"}, reminderTitles(t, env, demoAlice))
}

func TestReminderScheduler_RunNow_SkipsPaidDues(t *testing.T) {
	// GIVEN: Alice's only due is paid by a verified transfer
	env := setupTestHandler(t)
	due := env.createDue(t, "a-101", "150.00", time.Now().UTC().AddDate(0, 0, 1))
	dto := env.submit(t, demoAlice, "150.00", "REF-PAID")
	require.NotNil(t, dto.DueRef)
	require.Equal(t, http.StatusOK, env.do(t, &demoStaff, http.MethodPost, "/api/transfers/"+dto.ID+"/review", review("VERIFIED", nil)).Code)

	paid, err := env.h.Ledger.GetDue(context.Background(), demoStaff, due.ID)
	require.NoError(t, err)
	require.True(t, paid.Paid)

	// WHEN/THEN: nothing is reminded
	assert.Equal(t, 0, NewReminderScheduler(env.h.Ledger, env.disp, DemoAudiences()).RunNow(context.Background()))
	assert.Empty(t, reminderTitles(t, env, demoAlice))
}

func TestReminderScheduler_RunNow_UnknownUnitIsSkipped(t *testing.T) {
	env := setupTestHandler(t)
	now := time.Date(2030, 6, 10, 8, 0, 0, 0, time.UTC)
	_, err := env.h.Ledger.CreateDue(context.Background(), demoStaff, ledger.NewDue{
		UnitRef: "z-999",
		Amount:  decimal.RequireFromString("10.00"),
		DueDate: now,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, newTestScheduler(env, now).RunNow(context.Background()))
}

func TestReminderScheduler_StartStop(t *testing.T) {
	env := setupTestHandler(t)
	env.createDue(t, "a-101", "150.00", time.Now().UTC())

	rs := NewReminderScheduler(env.h.Ledger, env.disp, DemoAudiences())
	rs.CheckInterval = time.Hour
	rs.Start()
	rs.Start() // second start is a no-op

	// Start runs a check immediately.
	assert.Eventually(t, func() bool {
		return len(reminderTitles(t, env, demoAlice)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rs.Stop()
	rs.Stop()
}

func TestReminderScheduler_Disabled(t *testing.T) {
	env := setupTestHandler(t)
	env.createDue(t, "a-101", "150.00", time.Now().UTC())

	rs := NewReminderScheduler(env.h.Ledger, env.disp, DemoAudiences())
	rs.Enabled = false
	rs.Start()
	rs.Stop()

	assert.Empty(t, reminderTitles(t, env, demoAlice))
}
