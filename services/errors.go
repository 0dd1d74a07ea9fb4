package services

import (
	"errors"
)

// Sentinel errors returned by the booking, calendar and checkout services.
// Handlers map these onto HTTP status codes with errors.Is.
var (
	ErrInvalidStayLength = errors.New("departure must be after arrival")
	ErrDatesUnavailable  = errors.New("selected dates are no longer available")
	ErrTokenInvalid      = errors.New("invalid or expired token")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrBookingNotPayable = errors.New("booking is not ready for payment")
	ErrPropertyNotFound  = errors.New("property not found")
	ErrNotCancellable    = errors.New("booking is already in a terminal state")
	ErrBlockNotFound     = errors.New("calendar block not found")
)
