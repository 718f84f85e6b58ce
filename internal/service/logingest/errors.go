package logingest

import "errors"

var (
	ErrNoLogPath = errors.New("postfix log path not configured")
)
