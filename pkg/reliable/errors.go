package reliable

import "errors"

var (
	ErrMalformed = errors.New("malformed reliability header")
	ErrClosed    = errors.New("reliable engine is closed")
)
