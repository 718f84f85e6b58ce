package warmup

import "errors"

var (
	ErrNotFound      = errors.New("warmup schedule not found")
	ErrAlreadyActive = errors.New("mailbox already has an active warmup schedule")
	ErrNotActive     = errors.New("warmup schedule is not active")
	ErrNotPaused     = errors.New("warmup schedule is not paused")
	ErrNoRecipients  = errors.New("no warmup recipients configured")
)
