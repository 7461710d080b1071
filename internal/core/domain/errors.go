package domain

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrVenueNotFound   = errors.New("venue not found")
	ErrBookingNotFound = errors.New("booking not found")

	ErrUserExists  = errors.New("user already exists")
	ErrVenueExists = errors.New("venue already exists")

	ErrInvalidAnchor            = errors.New("invalid recurrence anchor")
	ErrInvalidRole              = errors.New("invalid role")
	ErrInvalidStatusTransition  = errors.New("invalid booking status transition")
	ErrConcurrentUpdateConflict = errors.New("concurrent update conflict")

	ErrVenueClosed        = errors.New("venue is closed")
	ErrPermanentlyBanned  = errors.New("user is permanently banned")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
