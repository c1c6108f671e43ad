/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger and inbox models from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

FORMATS:
  - Amounts are decimal strings ("150.00"); numbers are accepted on input
  - transfer_date and due_date are calendar dates (2006-01-02); RFC 3339 is
    accepted on input
  - Timestamps are RFC 3339 with fractional seconds, UTC
  - Notification ids are strings: snowflake ids exceed JavaScript's safe
    integer range

VALIDATION:
  Validation is done by the ledger, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/resident-payments/ledger"
	"github.com/warp/resident-payments/notify"
)

const dateLayout = "2006-01-02"

// =============================================================================
// TRANSFERS
// =============================================================================

// TransferDTO represents a bank transfer in API responses.
type TransferDTO struct {
	ID             string          `json:"id"`
	UnitRef        string          `json:"unit_ref"`
	UserRef        string          `json:"user_ref"`
	BankAccountRef string          `json:"bank_account_ref"`
	Amount         decimal.Decimal `json:"amount"`
	TransferDate   string          `json:"transfer_date"`
	ReferenceCode  string          `json:"reference_code"`
	SenderName     string          `json:"sender_name"`
	Description    string          `json:"description,omitempty"`
	ReceiptURL     *string         `json:"receipt_url,omitempty"`
	DueRef         *string         `json:"due_ref,omitempty"`
	Status         string          `json:"status"`
	StatusNote     *string         `json:"status_note,omitempty"`
	CreatedAt      string          `json:"created_at"`
	VerifiedAt     *string         `json:"verified_at,omitempty"`
	VerifiedByRef  *string         `json:"verified_by_ref,omitempty"`
}

// SubmitTransferRequest is the resident's transfer report.
type SubmitTransferRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	TransferDate   string          `json:"transfer_date"`
	ReferenceCode  string          `json:"reference_code"`
	BankAccountRef string          `json:"bank_account_ref"`
	SenderName     string          `json:"sender_name"`
	Description    string          `json:"description"`
	ReceiptURL     *string         `json:"receipt_url"`
	DueRef         *string         `json:"due_ref"`
	// UnitRef lets staff submit on behalf of a unit.
	UnitRef string `json:"unit_ref"`
}

// ReviewTransferRequest carries a reviewer's decision: VERIFIED or REJECTED.
type ReviewTransferRequest struct {
	Decision string  `json:"decision"`
	Note     *string `json:"note"`
}

// TransferPageDTO is one page of transfers, newest first.
type TransferPageDTO struct {
	Items      []TransferDTO `json:"items"`
	Total      int           `json:"total"`
	TotalPages int           `json:"total_pages"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
}

// =============================================================================
// DUES
// =============================================================================

type DueDTO struct {
	ID          string          `json:"id"`
	UnitRef     string          `json:"unit_ref"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	DueDate     string          `json:"due_date"`
	Paid        bool            `json:"paid"`
	CreatedAt   string          `json:"created_at"`
}

type CreateDueRequest struct {
	UnitRef     string          `json:"unit_ref"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	DueDate     string          `json:"due_date"`
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

type NotificationDTO struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	EntityRef *string `json:"entity_ref,omitempty"`
	IsRead    bool    `json:"is_read"`
	CreatedAt string  `json:"created_at"`
}

type NotificationPageDTO struct {
	Items      []NotificationDTO `json:"items"`
	Total      int               `json:"total"`
	TotalPages int               `json:"total_pages"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
}

// MarkReadRequest is the PATCH body. Only is_read=true is accepted; read is
// a one-way flag.
type MarkReadRequest struct {
	IsRead *bool `json:"is_read"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	// Field names the offending input on validation errors.
	Field string `json:"field,omitempty"`
	// Current is the authoritative transfer on a 409, so the caller can
	// reconcile its view.
	Current *TransferDTO `json:"current,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toTransferDTO(t ledger.BankTransfer) TransferDTO {
	dto := TransferDTO{
		ID:             string(t.ID),
		UnitRef:        t.UnitRef,
		UserRef:        t.UserRef,
		BankAccountRef: t.BankAccountRef,
		Amount:         t.Amount,
		TransferDate:   t.TransferDate.Format(dateLayout),
		ReferenceCode:  t.ReferenceCode,
		SenderName:     t.SenderName,
		Description:    t.Description,
		ReceiptURL:     t.ReceiptURL,
		Status:         string(t.Status),
		StatusNote:     t.StatusNote,
		CreatedAt:      formatTimestamp(t.CreatedAt),
		VerifiedByRef:  t.VerifiedByRef,
	}
	if t.DueRef != nil {
		dto.DueRef = strPtr(string(*t.DueRef))
	}
	if t.VerifiedAt != nil {
		dto.VerifiedAt = strPtr(formatTimestamp(*t.VerifiedAt))
	}
	return dto
}

func toTransferPageDTO(p *ledger.TransferPage) TransferPageDTO {
	items := make([]TransferDTO, 0, len(p.Items))
	for _, t := range p.Items {
		items = append(items, toTransferDTO(t))
	}
	return TransferPageDTO{
		Items:      items,
		Total:      p.Total,
		TotalPages: p.TotalPages,
		Page:       p.Page,
		PageSize:   p.PageSize,
	}
}

func toDueDTO(d ledger.Due) DueDTO {
	return DueDTO{
		ID:          string(d.ID),
		UnitRef:     d.UnitRef,
		Amount:      d.Amount,
		Description: d.Description,
		DueDate:     d.DueDate.Format(dateLayout),
		Paid:        d.Paid,
		CreatedAt:   formatTimestamp(d.CreatedAt),
	}
}

func toDueDTOs(dues []ledger.Due) []DueDTO {
	out := make([]DueDTO, 0, len(dues))
	for _, d := range dues {
		out = append(out, toDueDTO(d))
	}
	return out
}

func toNotificationDTO(n notify.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        n.ID.String(),
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		EntityRef: n.EntityRef,
		IsRead:    n.IsRead,
		CreatedAt: formatTimestamp(n.CreatedAt),
	}
}

func toNotificationPageDTO(p *notify.Page) NotificationPageDTO {
	items := make([]NotificationDTO, 0, len(p.Items))
	for _, n := range p.Items {
		items = append(items, toNotificationDTO(n))
	}
	return NotificationPageDTO{
		Items:      items,
		Total:      p.Total,
		TotalPages: p.TotalPages,
		Page:       p.Page,
		PageSize:   p.PageSize,
	}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
