package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/resident-payments/events"
	"github.com/warp/resident-payments/notify"
)

// =============================================================================
// ROUTING TABLE
// =============================================================================
// One entry per event kind. Adding a kind means adding a row here and a type
// in package events; nothing else branches on kind.

type message struct {
	title     string
	body      string
	entityRef *string
}

type route struct {
	typ        notify.Type
	render     func(events.Event) message
	recipients func(ctx context.Context, audiences AudienceResolver, e events.Event) ([]string, error)
}

var routes = map[events.Kind]route{
	events.KindTransferReviewed: {
		typ: notify.TypePayment,
		render: func(ev events.Event) message {
			e := ev.(events.TransferReviewed)
			m := message{entityRef: ref(e.TransferID)}
			switch e.Decision {
			case "VERIFIED":
				m.title = "Payment verified"
				m.body = fmt.Sprintf("Your transfer of %s (reference %s) was verified.", e.Amount.StringFixed(2), e.ReferenceCode)
			case "REJECTED":
				m.title = "Payment rejected"
				m.body = fmt.Sprintf("Your transfer of %s (reference %s) was rejected.", e.Amount.StringFixed(2), e.ReferenceCode)
			default:
				m.title = "Payment updated"
				m.body = fmt.Sprintf("Your transfer (reference %s) is now %s.", e.ReferenceCode, strings.ToLower(e.Decision))
			}
			if e.Note != "" {
				m.body += " Note: " + e.Note
			}
			return m
		},
		recipients: direct(func(e events.Event) []string { return []string{e.(events.TransferReviewed).UserRef} }),
	},
	events.KindMaintenanceUpdated: {
		typ: notify.TypeMaintenance,
		render: func(ev events.Event) message {
			e := ev.(events.MaintenanceUpdated)
			body := fmt.Sprintf("Your maintenance request is now %s.", strings.ToLower(e.Status))
			if e.Summary != "" {
				body += " " + e.Summary
			}
			return message{title: "Maintenance request updated", body: body, entityRef: ref(e.RequestRef)}
		},
		recipients: direct(func(e events.Event) []string { return []string{e.(events.MaintenanceUpdated).RequesterRef} }),
	},
	events.KindAnnouncementCreated: {
		typ: notify.TypeAnnouncement,
		render: func(ev events.Event) message {
			e := ev.(events.AnnouncementCreated)
			return message{title: e.Title, body: e.Body, entityRef: ref(e.AnnouncementRef)}
		},
		recipients: func(ctx context.Context, a AudienceResolver, ev events.Event) ([]string, error) {
			return a.Members(ctx, ev.(events.AnnouncementCreated).Audience)
		},
	},
	events.KindMeetingScheduled: {
		typ: notify.TypeMeeting,
		render: func(ev events.Event) message {
			e := ev.(events.MeetingScheduled)
			body := fmt.Sprintf("%s on %s", e.Title, e.StartsAt.UTC().Format("Mon 2 Jan 2006 15:04 UTC"))
			if e.Location != "" {
				body += " at " + e.Location
			}
			return message{title: "Meeting scheduled", body: body + ".", entityRef: ref(e.MeetingRef)}
		},
		recipients: func(ctx context.Context, a AudienceResolver, ev events.Event) ([]string, error) {
			return a.Members(ctx, ev.(events.MeetingScheduled).Audience)
		},
	},
	events.KindDocumentShared: {
		typ: notify.TypeDocument,
		render: func(ev events.Event) message {
			e := ev.(events.DocumentShared)
			return message{title: "New document", body: fmt.Sprintf("%q was shared with you.", e.Name), entityRef: ref(e.DocumentRef)}
		},
		recipients: func(ctx context.Context, a AudienceResolver, ev events.Event) ([]string, error) {
			e := ev.(events.DocumentShared)
			out := append([]string{}, e.Recipients...)
			if e.Audience != "" {
				members, err := a.Members(ctx, e.Audience)
				if err != nil {
					return nil, err
				}
				out = append(out, members...)
			}
			return out, nil
		},
	},
	events.KindDueReminder: {
		typ: notify.TypePayment,
		render: func(ev events.Event) message {
			e := ev.(events.DueReminder)
			var when string
			switch e.DaysLeft {
			case 0:
				when = "today"
			case 1:
				when = "tomorrow"
			default:
				when = fmt.Sprintf("in %d days", e.DaysLeft)
			}
			return message{
				title:     "Payment due " + when,
				body:      fmt.Sprintf("%s: %s is due on %s.", e.Description, e.Amount.StringFixed(2), e.DueDate.UTC().Format("2006-01-02")),
				entityRef: ref(e.DueRef),
			}
		},
		recipients: direct(func(e events.Event) []string { return []string{e.(events.DueReminder).RecipientRef} }),
	},
}

func direct(fn func(events.Event) []string) func(context.Context, AudienceResolver, events.Event) ([]string, error) {
	return func(_ context.Context, _ AudienceResolver, e events.Event) ([]string, error) {
		return fn(e), nil
	}
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
