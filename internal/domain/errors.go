package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrQuoteUnavailable = errors.New("quote unavailable")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrLockHeld         = errors.New("lock already held")
)
