package reputation

import "errors"

var (
	ErrNotFound   = errors.New("ip reputation not found")
	ErrIPRequired = errors.New("ip address is required")
)
