package apperr

import (
	"errors"
	"net/http"
)

// Domain errors. Services wrap these with fmt.Errorf("...: %w") so callers
// can branch with errors.Is while still getting a descriptive message.
var (
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrDuplicateBooking     = errors.New("requester already holds an active booking for this event")
	ErrAlreadyWaitlisted    = errors.New("contact already has an active waitlist entry for this event")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrForbidden            = errors.New("actor is not allowed to perform this action")
	ErrIdentityMismatch     = errors.New("contact does not match waitlist entry")
	ErrOfferExpired         = errors.New("offer has expired")
	ErrOfferInvalid         = errors.New("offer is invalid")
	ErrReleaseUnderflow     = errors.New("release would drive held seats below zero")

	ErrNotFound         = errors.New("resource not found")
	ErrValidation       = errors.New("validation failed")
	ErrEventNotBookable = errors.New("event is not accepting bookings")
	ErrSweepInProgress  = errors.New("reconciliation sweep already running")
	ErrUnauthenticated  = errors.New("authentication required")
)

type mapping struct {
	err    error
	status int
	code   string
}

// Ordered so that the first match wins for wrapped chains.
var mappings = []mapping{
	{ErrInsufficientCapacity, http.StatusConflict, "INSUFFICIENT_CAPACITY"},
	{ErrDuplicateBooking, http.StatusConflict, "DUPLICATE_BOOKING"},
	{ErrAlreadyWaitlisted, http.StatusConflict, "ALREADY_WAITLISTED"},
	{ErrInvalidTransition, http.StatusUnprocessableEntity, "INVALID_TRANSITION"},
	{ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{ErrIdentityMismatch, http.StatusForbidden, "IDENTITY_MISMATCH"},
	{ErrOfferExpired, http.StatusGone, "OFFER_EXPIRED"},
	{ErrOfferInvalid, http.StatusBadRequest, "OFFER_INVALID"},
	{ErrReleaseUnderflow, http.StatusInternalServerError, "RELEASE_UNDERFLOW"},
	{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{ErrValidation, http.StatusBadRequest, "VALIDATION_FAILED"},
	{ErrEventNotBookable, http.StatusConflict, "EVENT_NOT_BOOKABLE"},
	{ErrSweepInProgress, http.StatusConflict, "SWEEP_IN_PROGRESS"},
	{ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED"},
}

// HTTPStatus maps an error to the HTTP status code returned by controllers.
func HTTPStatus(err error) int {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// Code returns a stable machine readable code for an error.
func Code(err error) string {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return "INTERNAL_ERROR"
}
