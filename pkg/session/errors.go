package session

import "errors"

var (
	ErrNoTransport   = errors.New("no transport configured")
	ErrNoServerAddr  = errors.New("no server address configured")
	ErrDisconnected  = errors.New("peer is disconnected")
	ErrUnknownClient = errors.New("unknown client")
	ErrSessionClosed = errors.New("session is already closed")
)
