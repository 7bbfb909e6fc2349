package model

import "errors"

// Domain error taxonomy. Storage maps driver errors onto these; HTTP handlers
// translate them to status codes. None of them are retried automatically — a
// slot conflict in particular is a business outcome, not a transient fault.
var (
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrValidation             = errors.New("invalid input")
	ErrInvalidWindow          = errors.New("invalid availability window")
	ErrOfferingNotFound       = errors.New("offering not found")
	ErrOfferingInactive       = errors.New("offering is not active")
	ErrOfferingHasBookings    = errors.New("offering still has non-cancelled appointments")
	ErrInsufficientTier       = errors.New("subscription tier does not grant access to this offering")
	ErrSlotConflict           = errors.New("time slot conflicts with an existing appointment")
	ErrInvalidStateTransition = errors.New("invalid appointment state transition")
	ErrOutsideAvailability    = errors.New("requested time is outside provider availability")
	ErrDailyCapReached        = errors.New("offering daily booking limit reached")
)
