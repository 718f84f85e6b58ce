package compliance

import "errors"

var (
	ErrEmailRequired = errors.New("email is required")
	ErrInvalidDays   = errors.New("days must be between 1 and 365")
)
