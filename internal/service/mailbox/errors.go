package mailbox

import "errors"

var (
	ErrNotFound         = errors.New("mailbox not found")
	ErrDuplicate        = errors.New("mailbox already exists")
	ErrInvalidLocalPart = errors.New("invalid local part")
	ErrWeakPassword     = errors.New("password must be at least 8 characters")
	ErrDomainInactive   = errors.New("domain is not active")
	ErrQuotaTooLarge    = errors.New("quota exceeds maximum")
	ErrLimitReached     = errors.New("daily send limit reached")
)
