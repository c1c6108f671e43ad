/*
handlers.go - HTTP API handlers for resident payments

PURPOSE:
  Exposes the transfer ledger, the notification inbox and the live channel
  via REST. Handles HTTP request/response and JSON serialization, and
  delegates to the ledger and inbox, which own validation and authorization.

ENDPOINTS:
  Transfers:
    POST   /api/transfers                Submit a transfer report
    GET    /api/transfers                List (status, unit, user, from, to, page, page_size)
    GET    /api/transfers/{id}           Get one transfer
    POST   /api/transfers/{id}/review    Verify or reject (staff)
    POST   /api/transfers/{id}/complete  Record settlement (staff)

  Dues:
    GET    /api/dues                     List (unit, paid, from, to)
    POST   /api/dues                     Create (staff)
    GET    /api/dues/{id}                Get one due

  Events:
    POST   /api/events/{kind}            Publish a staff-originated event

  Notifications: see notifications.go

ACTOR:
  Every /api route runs behind Authenticate; handlers read the actor from
  the request context. Recipients are never taken from the request body.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing or invalid bearer token
  - 403: Actor lacks the capability
  - 404: Resource not found
  - 409: Transfer not in the required status (body carries the current record)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - notifications.go: Inbox endpoints and the SSE stream
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/resident-payments/auth"
	"github.com/warp/resident-payments/events"
	"github.com/warp/resident-payments/ledger"
	"github.com/warp/resident-payments/live"
	"github.com/warp/resident-payments/notify"
	"github.com/warp/resident-payments/page"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Backend is the storage surface the handler needs beyond the ledger and
// inbox: liveness and the demo reset.
type Backend interface {
	Ping(ctx context.Context) error
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  Backend
	Ledger *ledger.Ledger
	Inbox  *notify.Inbox
	Hub    *live.Hub
	Events events.Publisher

	// KeepAlive is the interval between SSE comment frames.
	KeepAlive time.Duration

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler. pub receives staff-originated events; it is
// normally the dispatcher.
func NewHandler(store Backend, l *ledger.Ledger, inbox *notify.Inbox, hub *live.Hub, pub events.Publisher) *Handler {
	if pub == nil {
		pub = events.Discard
	}
	return &Handler{
		Store:     store,
		Ledger:    l,
		Inbox:     inbox,
		Hub:       hub,
		Events:    pub,
		KeepAlive: 25 * time.Second,
	}
}

// =============================================================================
// TRANSFER ENDPOINTS
// =============================================================================

// SubmitTransfer records a transfer report as PENDING.
// POST /api/transfers
func (h *Handler) SubmitTransfer(w http.ResponseWriter, r *http.Request) {
	var req SubmitTransferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := ledger.SubmitInput{
		Amount:         req.Amount,
		ReferenceCode:  req.ReferenceCode,
		BankAccountRef: req.BankAccountRef,
		SenderName:     req.SenderName,
		Description:    req.Description,
		ReceiptURL:     req.ReceiptURL,
		UnitRef:        req.UnitRef,
	}
	if req.TransferDate != "" {
		date, err := parseDate(req.TransferDate)
		if err != nil {
			writeFieldError(w, "transfer_date", "Invalid date format (use YYYY-MM-DD)")
			return
		}
		in.TransferDate = date
	}
	if req.DueRef != nil {
		ref := ledger.DueID(*req.DueRef)
		in.DueRef = &ref
	}

	t, err := h.Ledger.SubmitTransfer(r.Context(), actorFrom(r), in)
	if err != nil {
		writeDomainError(w, "Failed to submit transfer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransferDTO(*t))
}

// ListTransfers returns transfers newest first.
// GET /api/transfers?status=PENDING&unit=4B&user=u-1&from=...&to=...&page=1&page_size=20
func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	p, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paging parameters", err)
		return
	}
	f := ledger.TransferFilter{
		UnitRef: q.Get("unit"),
		UserRef: q.Get("user"),
		Page:    p,
	}
	if s := q.Get("status"); s != "" {
		status := ledger.TransferStatus(s)
		f.Status = &status
	}
	if f.From, err = parseTimeParam(q.Get("from")); err != nil {
		writeFieldError(w, "from", "Invalid date format")
		return
	}
	if f.To, err = parseUntilParam(q.Get("to")); err != nil {
		writeFieldError(w, "to", "Invalid date format")
		return
	}

	result, err := h.Ledger.ListTransfers(r.Context(), actorFrom(r), f)
	if err != nil {
		writeDomainError(w, "Failed to list transfers", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransferPageDTO(result))
}

// GetTransfer returns one transfer.
// GET /api/transfers/{id}
func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransferID(chi.URLParam(r, "id"))

	t, err := h.Ledger.GetTransfer(r.Context(), actorFrom(r), id)
	if err != nil {
		writeDomainError(w, "Failed to get transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransferDTO(*t))
}

// ReviewTransfer verifies or rejects a pending transfer.
// POST /api/transfers/{id}/review
func (h *Handler) ReviewTransfer(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransferID(chi.URLParam(r, "id"))

	var req ReviewTransferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	t, err := h.Ledger.ReviewTransfer(r.Context(), actorFrom(r), id, ledger.TransferStatus(req.Decision), req.Note)
	if err != nil {
		writeDomainError(w, "Failed to review transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransferDTO(*t))
}

// CompleteTransfer records settlement of a verified transfer.
// POST /api/transfers/{id}/complete
func (h *Handler) CompleteTransfer(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransferID(chi.URLParam(r, "id"))

	t, err := h.Ledger.CompleteTransfer(r.Context(), actorFrom(r), id)
	if err != nil {
		writeDomainError(w, "Failed to complete transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransferDTO(*t))
}

// =============================================================================
// DUE ENDPOINTS
// =============================================================================

// ListDues lists dues ordered by due date.
// GET /api/dues?unit=4B&paid=false&from=2025-01-01&to=2025-12-31
func (h *Handler) ListDues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.DueFilter{UnitRef: q.Get("unit")}

	if s := q.Get("paid"); s != "" {
		paid, err := strconv.ParseBool(s)
		if err != nil {
			writeFieldError(w, "paid", "Must be true or false")
			return
		}
		f.Paid = &paid
	}
	var err error
	if f.DueFrom, err = parseTimeParam(q.Get("from")); err != nil {
		writeFieldError(w, "from", "Invalid date format")
		return
	}
	if f.DueTo, err = parseUntilParam(q.Get("to")); err != nil {
		writeFieldError(w, "to", "Invalid date format")
		return
	}

	dues, err := h.Ledger.ListDues(r.Context(), actorFrom(r), f)
	if err != nil {
		writeDomainError(w, "Failed to list dues", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dues": toDueDTOs(dues)})
}

// CreateDue creates a due for a unit.
// POST /api/dues
func (h *Handler) CreateDue(w http.ResponseWriter, r *http.Request) {
	var req CreateDueRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := ledger.NewDue{
		UnitRef:     req.UnitRef,
		Amount:      req.Amount,
		Description: req.Description,
	}
	if req.DueDate != "" {
		date, err := parseDate(req.DueDate)
		if err != nil {
			writeFieldError(w, "due_date", "Invalid date format (use YYYY-MM-DD)")
			return
		}
		in.DueDate = date
	}

	d, err := h.Ledger.CreateDue(r.Context(), actorFrom(r), in)
	if err != nil {
		writeDomainError(w, "Failed to create due", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDueDTO(*d))
}

// GetDue returns one due.
// GET /api/dues/{id}
func (h *Handler) GetDue(w http.ResponseWriter, r *http.Request) {
	d, err := h.Ledger.GetDue(r.Context(), actorFrom(r), ledger.DueID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get due", err)
		return
	}
	writeJSON(w, http.StatusOK, toDueDTO(*d))
}

// =============================================================================
// EVENT ENDPOINTS
// =============================================================================

// PublishEvent lets staff raise maintenance, announcement, meeting, document
// and reminder events. Transfer reviews are only raised by the ledger.
// POST /api/events/{kind}
func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if !h.Ledger.CanReview(actor) {
		writeError(w, http.StatusForbidden, "Only staff may publish events", auth.ErrUnauthorized)
		return
	}

	kind := events.Kind(chi.URLParam(r, "kind"))
	if kind == events.KindTransferReviewed {
		writeError(w, http.StatusBadRequest, "Transfer reviews are raised by the ledger", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ev, err := events.Decode(kind, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event", err)
		return
	}

	if err := h.Events.Publish(r.Context(), ev); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to publish event", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"event_id": ev.EventID(), "kind": string(kind)})
}

// =============================================================================
// HEALTH
// =============================================================================

// Healthz reports whether the database answers.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.Store.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ResetDatabase clears all data (dev only).
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if !h.Ledger.CanReview(actorFrom(r)) {
		writeError(w, http.StatusForbidden, "Only staff may reset the database", auth.ErrUnauthorized)
		return
	}
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeFieldError(w http.ResponseWriter, field, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Field: field})
}

// writeDomainError maps ledger, inbox and auth errors to a status.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	var (
		te *ledger.InvalidTransitionError
		ve *ledger.ValidationError
	)
	switch {
	case errors.As(err, &te):
		current := toTransferDTO(te.Current)
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   fmt.Sprintf("Transfer is %s", te.Current.Status),
			Details: err.Error(),
			Current: &current,
		})
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Details: ve.Message, Field: ve.Field})
	case errors.Is(err, notify.ErrInvalidType):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "Forbidden", err)
	case ledger.IsNotFound(err), errors.Is(err, notify.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}

func parsePage(r *http.Request) (page.Request, error) {
	var (
		p   page.Request
		err error
	)
	q := r.URL.Query()
	if s := q.Get("page"); s != "" {
		if p.Page, err = strconv.Atoi(s); err != nil {
			return p, fmt.Errorf("page: %w", err)
		}
	}
	if s := q.Get("page_size"); s != "" {
		if p.Size, err = strconv.Atoi(s); err != nil {
			return p, fmt.Errorf("page_size: %w", err)
		}
	}
	return p, nil
}

func parseTimeParam(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseUntilParam is parseTimeParam for inclusive upper bounds: a bare date
// covers the whole day.
func parseUntilParam(s string) (*time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		end := t.Add(24*time.Hour - time.Nanosecond)
		return &end, nil
	}
	return parseTimeParam(s)
}

func strPtr(s string) *string {
	return &s
}
