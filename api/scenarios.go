/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario creates dues, transfer reports and reviews
	through the ledger, so notifications are produced the same way they are
	in production.

AVAILABLE SCENARIOS:

	review-queue: Pending transfers waiting for staff, auto-linked and not
	month-end:    Verified, rejected and settled transfers with paid dues
	reminders:    Unpaid dues falling due in 7, 1 and 0 days

DEMO PEOPLE:

	user-alice  resident of a-101
	user-bob    resident of b-202
	user-carol  resident of b-202
	staff-demo  staff reviewer

	Mint tokens for them with `respay token --user user-alice --role resident
	--unit a-101`. DemoAudiences lists their units for the dispatcher.

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create dues as staff
 3. Submit transfers as residents
 4. Optionally review and settle as staff

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "review-queue"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase
  - scheduler.go: reminders picked up by the "reminders" scenario
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/resident-payments/auth"
	"github.com/warp/resident-payments/dispatch"
	"github.com/warp/resident-payments/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "review-queue",
		Name:        "Review Queue",
		Description: "Pending transfers: one auto-linked to its due, one hinted, one unmatched",
	},
	{
		ID:          "month-end",
		Name:        "Month End",
		Description: "Verified, rejected and settled transfers with their dues marked paid",
	},
	{
		ID:          "reminders",
		Name:        "Due Reminders",
		Description: "Unpaid dues falling due in 7, 1 and 0 days",
	},
}

var (
	demoStaff = auth.Actor{ID: "staff-demo", Role: auth.RoleStaff}
	demoAlice = auth.Actor{ID: "user-alice", Role: auth.RoleResident, UnitRef: "a-101"}
	demoBob   = auth.Actor{ID: "user-bob", Role: auth.RoleResident, UnitRef: "b-202"}
	demoCarol = auth.Actor{ID: "user-carol", Role: auth.RoleResident, UnitRef: "b-202"}
)

// DemoAudiences maps the demo residents to their audiences.
func DemoAudiences() dispatch.StaticAudiences {
	return dispatch.StaticAudiences{
		"all":                  {demoAlice.ID, demoBob.ID, demoCarol.ID},
		UnitAudience("a-101"): {demoAlice.ID},
		UnitAudience("b-202"): {demoBob.ID, demoCarol.ID},
	}
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if !h.Ledger.CanReview(actorFrom(r)) {
		writeError(w, http.StatusForbidden, "Only staff may load scenarios", auth.ErrUnauthorized)
		return
	}

	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		if err == errUnknownScenario {
			writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

var errUnknownScenario = errors.New("unknown scenario")

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	var load func(context.Context, time.Time) error
	switch id {
	case "review-queue":
		load = h.loadReviewQueueScenario
	case "month-end":
		load = h.loadMonthEndScenario
	case "reminders":
		load = h.loadRemindersScenario
	default:
		return errUnknownScenario
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset database: %w", err)
	}
	h.currentScenario = ""

	if err := load(ctx, time.Now().UTC().Truncate(time.Second)); err != nil {
		return err
	}
	h.currentScenario = id
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadReviewQueueScenario(ctx context.Context, now time.Time) error {
	month := now.AddDate(0, 0, 10)

	// Alice's transfer matches her only unpaid due and is linked on submit.
	if _, err := h.createDue(ctx, "a-101", "150.00", "Monthly maintenance", month); err != nil {
		return err
	}
	if _, err := h.submit(ctx, demoAlice, "150.00", "DEMO-A101-001", now.AddDate(0, 0, -1), nil); err != nil {
		return err
	}

	// b-202 has two dues of the same amount: Bob names one explicitly,
	// Carol's report stays unlinked because the match is ambiguous.
	water, err := h.createDue(ctx, "b-202", "80.00", "Water", month)
	if err != nil {
		return err
	}
	if _, err := h.createDue(ctx, "b-202", "80.00", "Elevator repair share", month.AddDate(0, 0, 5)); err != nil {
		return err
	}
	if _, err := h.submit(ctx, demoBob, "80.00", "DEMO-B202-001", now.AddDate(0, 0, -2), &water.ID); err != nil {
		return err
	}
	if _, err := h.submit(ctx, demoCarol, "80.00", "DEMO-B202-002", now.AddDate(0, 0, -1), nil); err != nil {
		return err
	}

	// No due of this amount at all.
	_, err = h.submit(ctx, demoAlice, "42.50", "DEMO-A101-002", now, nil)
	return err
}

func (h *Handler) loadMonthEndScenario(ctx context.Context, now time.Time) error {
	last := now.AddDate(0, -1, 0)

	if _, err := h.createDue(ctx, "a-101", "150.00", "Monthly maintenance (last month)", last); err != nil {
		return err
	}
	if _, err := h.createDue(ctx, "b-202", "95.00", "Monthly maintenance (last month)", last); err != nil {
		return err
	}

	settled, err := h.submit(ctx, demoAlice, "150.00", "DEMO-ME-001", last.AddDate(0, 0, -3), nil)
	if err != nil {
		return err
	}
	if _, err := h.Ledger.ReviewTransfer(ctx, demoStaff, settled.ID, ledger.StatusVerified, nil); err != nil {
		return err
	}
	if _, err := h.Ledger.CompleteTransfer(ctx, demoStaff, settled.ID); err != nil {
		return err
	}

	wrong, err := h.submit(ctx, demoBob, "59.00", "DEMO-ME-002", last.AddDate(0, 0, -2), nil)
	if err != nil {
		return err
	}
	note := "Amount does not match any due, please resubmit"
	if _, err := h.Ledger.ReviewTransfer(ctx, demoStaff, wrong.ID, ledger.StatusRejected, &note); err != nil {
		return err
	}

	verified, err := h.submit(ctx, demoBob, "95.00", "DEMO-ME-003", last.AddDate(0, 0, -1), nil)
	if err != nil {
		return err
	}
	_, err = h.Ledger.ReviewTransfer(ctx, demoStaff, verified.ID, ledger.StatusVerified, nil)
	return err
}

func (h *Handler) loadRemindersScenario(ctx context.Context, now time.Time) error {
	for _, days := range []int{7, 1, 0} {
		desc := fmt.Sprintf("Monthly maintenance (due in %d days)", days)
		if _, err := h.createDue(ctx, "a-101", "150.00", desc, now.AddDate(0, 0, days)); err != nil {
			return err
		}
	}
	// Not reminded: 3 days out.
	_, err := h.createDue(ctx, "b-202", "95.00", "Parking", now.AddDate(0, 0, 3))
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) createDue(ctx context.Context, unit, amount, desc string, dueDate time.Time) (*ledger.Due, error) {
	return h.Ledger.CreateDue(ctx, demoStaff, ledger.NewDue{
		UnitRef:     unit,
		Amount:      decimal.RequireFromString(amount),
		Description: desc,
		DueDate:     dueDate,
	})
}

func (h *Handler) submit(ctx context.Context, who auth.Actor, amount, ref string, date time.Time, hint *ledger.DueID) (*ledger.BankTransfer, error) {
	return h.Ledger.SubmitTransfer(ctx, who, ledger.SubmitInput{
		Amount:         decimal.RequireFromString(amount),
		TransferDate:   date,
		ReferenceCode:  ref,
		BankAccountRef: "acct-" + who.UnitRef,
		SenderName:     who.ID,
		DueRef:         hint,
	})
}
