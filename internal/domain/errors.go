package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrMalformedEvent = errors.New("malformed event")
	ErrStaleSequence  = errors.New("stale sequence")
	ErrEngineClosed   = errors.New("engine closed")
	ErrWSDisconnect   = errors.New("websocket disconnected")
)
