/*
scheduler.go - Due reminder scheduler

PURPOSE:
  Periodically looks for unpaid dues falling due in a configured number of
  days and raises a DueReminder event for every resident of the unit.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - A due is reminded on each day in DaysBefore (default 7, 1 and 0 days
    before its due date), counted in whole UTC calendar days
  - Reminder event ids are derived from (due, recipient, day), so several
    ticks on the same day produce one notification: the dispatcher drops
    the repeats
  - Residents of a unit come from the audience "unit:<unit ref>"

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - DaysBefore:    Reminder offsets in days (default: 7, 1, 0)
  - Enabled:       Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReminderScheduler(ledger, dispatcher, audiences)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - events/events.go: DueReminder, DueReminderID
  - dispatch/routes.go: reminder rendering
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/resident-payments/auth"
	"github.com/warp/resident-payments/dispatch"
	"github.com/warp/resident-payments/events"
	"github.com/warp/resident-payments/ledger"
)

// UnitAudience is the audience naming every resident of a unit.
func UnitAudience(unitRef string) string {
	return "unit:" + unitRef
}

// deliverer is a publisher that reports how many notifications an event
// produced; the dispatcher is one.
type deliverer interface {
	Deliver(ctx context.Context, e events.Event) (int, error)
}

// ReminderScheduler raises due reminders on a timer.
type ReminderScheduler struct {
	Ledger        *ledger.Ledger
	Events        events.Publisher
	Audiences     dispatch.AudienceResolver
	CheckInterval time.Duration
	DaysBefore    []int
	Enabled       bool
	Now           func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReminderScheduler creates a new scheduler.
func NewReminderScheduler(l *ledger.Ledger, pub events.Publisher, audiences dispatch.AudienceResolver) *ReminderScheduler {
	return &ReminderScheduler{
		Ledger:        l,
		Events:        pub,
		Audiences:     audiences,
		CheckInterval: 1 * time.Hour,
		DaysBefore:    []int{7, 1, 0},
		Enabled:       true,
		Now:           time.Now,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (rs *ReminderScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with check interval: %v, days before: %v", rs.CheckInterval, rs.DaysBefore)
}

// Stop stops the scheduler and waits for an in-flight check to finish.
func (rs *ReminderScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *ReminderScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.RunNow(context.Background())

	for {
		select {
		case <-rs.ticker.C:
			rs.RunNow(context.Background())
		case <-rs.stop:
			return
		}
	}
}

// RunNow performs one check and returns how many reminders were delivered.
// Reminders already sent earlier the same day are not counted.
func (rs *ReminderScheduler) RunNow(ctx context.Context) int {
	if len(rs.DaysBefore) == 0 {
		return 0
	}

	today := startOfDay(rs.Now())
	wanted := make(map[int]bool, len(rs.DaysBefore))
	maxDays := 0
	for _, d := range rs.DaysBefore {
		wanted[d] = true
		if d > maxDays {
			maxDays = d
		}
	}

	unpaid := false
	until := today.AddDate(0, 0, maxDays+1).Add(-time.Nanosecond)
	dues, err := rs.Ledger.ListDues(ctx, auth.System(), ledger.DueFilter{
		Paid:    &unpaid,
		DueFrom: &today,
		DueTo:   &until,
	})
	if err != nil {
		log.Printf("[Scheduler] Error listing dues: %v", err)
		return 0
	}

	sent := 0
	for _, d := range dues {
		daysLeft := int(startOfDay(d.DueDate).Sub(today).Hours() / 24)
		if !wanted[daysLeft] {
			continue
		}

		recipients, err := rs.Audiences.Members(ctx, UnitAudience(d.UnitRef))
		if err != nil {
			log.Printf("[Scheduler] Error resolving residents of %s: %v", d.UnitRef, err)
			continue
		}
		if len(recipients) == 0 {
			log.Printf("[Scheduler] No residents known for unit %s, due %s not reminded", d.UnitRef, d.ID)
			continue
		}

		for _, rec := range recipients {
			n, err := rs.deliver(ctx, events.DueReminder{
				ID:           events.DueReminderID(string(d.ID), rec, today),
				DueRef:       string(d.ID),
				UnitRef:      d.UnitRef,
				RecipientRef: rec,
				Description:  d.Description,
				Amount:       d.Amount,
				DueDate:      d.DueDate,
				DaysLeft:     daysLeft,
			})
			if err != nil {
				log.Printf("[Scheduler] Error reminding %s of due %s: %v", rec, d.ID, err)
				continue
			}
			sent += n
		}
	}

	if sent > 0 {
		log.Printf("[Scheduler] Completed: %d reminders delivered for %d candidate dues", sent, len(dues))
	}
	return sent
}

func (rs *ReminderScheduler) deliver(ctx context.Context, e events.Event) (int, error) {
	if d, ok := rs.Events.(deliverer); ok {
		return d.Deliver(ctx, e)
	}
	if err := rs.Events.Publish(ctx, e); err != nil {
		return 0, err
	}
	return 1, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
