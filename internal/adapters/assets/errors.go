package assets

import "errors"

// Sentinel kinds for snapshot asset errors.
var (
	ErrDecode         = errors.New("snapshot image decode failed")
	ErrRetryExhausted = errors.New("asset name collision retries exhausted")
	ErrBadName        = errors.New("invalid asset filename")
)
