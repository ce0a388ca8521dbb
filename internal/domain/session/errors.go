package session

import "errors"

// Sentinel kinds for session errors.
var (
	ErrInvalidState = errors.New("invalid session state")
	ErrNotFound     = errors.New("session not found")
	ErrConsumed     = errors.New("session already consumed")
)
