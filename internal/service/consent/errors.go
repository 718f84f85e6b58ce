package consent

import "errors"

// Sentinel errors for the consent service layer.
var (
	ErrNotFound        = errors.New("consent record not found")
	ErrEmailRequired   = errors.New("email is required")
	ErrInvalidType     = errors.New("invalid consent type")
	ErrInvalidMethod   = errors.New("invalid consent method")
	ErrNotDoubleOptIn  = errors.New("consent is not double opt-in")
	ErrAlreadyVerified = errors.New("consent already verified")
)
