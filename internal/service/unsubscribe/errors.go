package unsubscribe

import "errors"

// Sentinel errors for the unsubscribe service layer.
var (
	ErrNotFound      = errors.New("unsubscribe token not found")
	ErrEmailRequired = errors.New("email is required")
	ErrReasonTooLong = errors.New("reason must be at most 500 characters")
)
