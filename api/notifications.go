package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/resident-payments/notify"
)

// =============================================================================
// NOTIFICATION ENDPOINTS
// =============================================================================
//
// The recipient is the authenticated actor. Supervisors may pass
// ?recipient= to act on another inbox; the inbox checks the capability.

// ListNotifications returns one page of the inbox, newest first.
// GET /api/notifications?type=payment&is_read=false&page=1&page_size=20
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	p, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paging parameters", err)
		return
	}
	f := notify.ListFilter{Page: p}
	if s := q.Get("type"); s != "" {
		typ := notify.Type(s)
		f.Type = &typ
	}
	if s := q.Get("is_read"); s != "" {
		read, err := strconv.ParseBool(s)
		if err != nil {
			writeFieldError(w, "is_read", "Must be true or false")
			return
		}
		f.IsRead = &read
	}

	result, err := h.Inbox.List(r.Context(), actorFrom(r), recipientFor(r), f)
	if err != nil {
		writeDomainError(w, "Failed to list notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, toNotificationPageDTO(result))
}

// UnreadCount returns the number of unread notifications.
// GET /api/notifications/unread-count
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.Inbox.UnreadCount(r.Context(), actorFrom(r), recipientFor(r))
	if err != nil {
		writeDomainError(w, "Failed to count notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// MarkNotificationRead marks one notification read. Repeating it is a no-op.
// PATCH /api/notifications/{id}  {"is_read": true}
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := notify.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Notification not found", err)
		return
	}

	var req MarkReadRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.IsRead == nil || !*req.IsRead {
		writeFieldError(w, "is_read", "Only is_read=true is supported")
		return
	}

	n, err := h.Inbox.MarkRead(r.Context(), actorFrom(r), id)
	if err != nil {
		writeDomainError(w, "Failed to mark notification read", err)
		return
	}
	if n == nil {
		writeError(w, http.StatusNotFound, "Notification not found", notify.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toNotificationDTO(*n))
}

// MarkAllRead marks the whole inbox read.
// POST /api/notifications/read-all
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.Inbox.MarkAllRead(r.Context(), actorFrom(r), recipientFor(r))
	if err != nil {
		writeDomainError(w, "Failed to mark notifications read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

// DeleteNotification removes one notification. Unknown ids succeed too.
// DELETE /api/notifications/{id}
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	id, err := notify.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.Inbox.Delete(r.Context(), actorFrom(r), id); err != nil {
		writeDomainError(w, "Failed to delete notification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func recipientFor(r *http.Request) string {
	if rec := r.URL.Query().Get("recipient"); rec != "" {
		return rec
	}
	return actorFrom(r).ID
}

// =============================================================================
// LIVE STREAM (SSE)
// =============================================================================

// StreamNotifications pushes new notifications as server-sent events:
//
//	id: <notification id>
//	event: notification
//	data: {...NotificationDTO}
//
// Only notifications created after the connection opened are sent. Clients
// hydrate from ListNotifications on connect and after every reconnect.
// GET /api/notifications/stream
func (h *Handler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if actor.ID == "" {
		writeError(w, http.StatusUnauthorized, "Missing actor", nil)
		return
	}

	rc := http.NewResponseController(w)
	// The server's write timeout would cut the stream.
	_ = rc.SetWriteDeadline(time.Time{})

	sub := h.Hub.Subscribe(actor.ID)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		log.Printf("[live] streaming unsupported for %s: %v", actor.ID, err)
		return
	}

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(toNotificationDTO(n))
			if err != nil {
				log.Printf("[live] encode notification %s: %v", n.ID, err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", n.ID, data)
			if err := rc.Flush(); err != nil {
				return
			}
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
