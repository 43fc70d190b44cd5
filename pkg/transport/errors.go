package transport

import (
	"errors"
	"fmt"
)

var (
	ErrClosed       = errors.New("transport is closed")
	ErrUnreachable  = errors.New("destination is unreachable")
	ErrNotSupported = errors.New("operation not supported by transport")
	ErrFrameTooBig  = errors.New("frame exceeds maximum size")
)

type ErrPeerNotFound struct {
	Addr string
}

func (e ErrPeerNotFound) Error() string {
	return fmt.Sprintf("peer %s not found", e.Addr)
}

func (e ErrPeerNotFound) Is(target error) bool {
	return target == ErrUnreachable
}
