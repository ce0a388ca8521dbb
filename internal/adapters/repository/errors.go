package repository

import "errors"

// Sentinel kinds for result store errors.
var (
	ErrValidation = errors.New("invalid result")
	ErrStorage    = errors.New("result storage failed")
)
