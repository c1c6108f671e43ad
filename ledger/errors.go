/*
errors.go - Error taxonomy for the ledger

ERROR CATEGORIES:
  1. Validation   - malformed input, never retried (ValidationError)
  2. State        - review of a non-PENDING transfer (InvalidTransitionError)
  3. Not found    - unknown transfer or due id
  Authorization failures are auth.ErrUnauthorized.

USAGE:
  if errors.Is(err, ledger.ErrInvalidStateTransition) {
      var te *ledger.InvalidTransitionError
      errors.As(err, &te) // te.Current is the authoritative record
  }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation wraps every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidStateTransition is returned when a transfer is not in the
	// status the operation requires.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	ErrTransferNotFound = errors.New("transfer not found")
	ErrDueNotFound      = errors.New("due not found")

	// ErrDuplicateReference is returned by stores when a reference code was
	// already submitted. The ledger surfaces it inside a ValidationError.
	ErrDuplicateReference = errors.New("duplicate reference code")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
	Err     error // optional cause, e.g. ErrDuplicateReference
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InvalidTransitionError carries the current record so the caller can
// reconcile its view.
type InvalidTransitionError struct {
	TransferID TransferID
	From       TransferStatus
	To         TransferStatus
	Current    BankTransfer
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition for %s: %s -> %s", e.TransferID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to caller input or state.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidStateTransition)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTransferNotFound) ||
		errors.Is(err, ErrDueNotFound)
}
