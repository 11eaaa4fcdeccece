package domain

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrEditConflict   = errors.New("edit conflict")

	// ErrSeatUnavailable is recoverable: a booking that hits it is waitlisted.
	ErrSeatUnavailable = errors.New("seat(s) are not available")
	// ErrInvalidTransition means a caller sequenced ledger operations wrongly.
	ErrInvalidTransition = errors.New("invalid seat state transition")
	ErrInvalidState      = errors.New("booking is not in a valid state for this operation")
	ErrConfiguration     = errors.New("invalid catalog configuration")
	ErrUnknownSeat       = errors.New("seat does not belong to the show's hall")
)
