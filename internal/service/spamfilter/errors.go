package spamfilter

import "errors"

var (
	ErrEmailRequired   = errors.New("complainant email is required")
	ErrSendLogNotFound = errors.New("send log not found")
)
