package notify

import "errors"

var (
	// ErrNotFound is returned by the HTTP layer for a PATCH on an absent
	// notification. Idempotent operations never return it.
	ErrNotFound = errors.New("notification not found")

	// ErrInvalidType rejects types outside the closed set.
	ErrInvalidType = errors.New("invalid notification type")
)
