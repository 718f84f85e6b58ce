package verification

import "errors"

var (
	ErrNotFound      = errors.New("domain not found")
	ErrDuplicate     = errors.New("domain already exists")
	ErrInvalidDomain = errors.New("invalid domain name")
)
