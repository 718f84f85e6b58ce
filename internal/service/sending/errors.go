package sending

import "errors"

var (
	ErrInvalidSender     = errors.New("invalid sender mailbox")
	ErrMailboxCannotSend = errors.New("mailbox cannot send emails (inactive, disabled or daily limit reached)")
	ErrDomainNotVerified = errors.New("sending domain is not fully verified")
	ErrComplianceBlocked = errors.New("email blocked by compliance check")
	ErrSpamRejected      = errors.New("email rejected by spam filter")
	ErrIPBlocked         = errors.New("sending IP is blocked due to poor reputation")
	ErrContentBlocked    = errors.New("email content failed compliance validation")
	ErrDailyLimit        = errors.New("daily send limit reached")
	ErrHandoff           = errors.New("failed to hand message to MTA")
	ErrInternal          = errors.New("internal error")
)
