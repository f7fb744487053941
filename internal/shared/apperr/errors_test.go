package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus_WrappedErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("reserve: %w", ErrInsufficientCapacity), http.StatusConflict, "INSUFFICIENT_CAPACITY"},
		{fmt.Errorf("create: %w", ErrDuplicateBooking), http.StatusConflict, "DUPLICATE_BOOKING"},
		{ErrAlreadyWaitlisted, http.StatusConflict, "ALREADY_WAITLISTED"},
		{fmt.Errorf("approve: %w", ErrInvalidTransition), http.StatusUnprocessableEntity, "INVALID_TRANSITION"},
		{ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{ErrIdentityMismatch, http.StatusForbidden, "IDENTITY_MISMATCH"},
		{ErrOfferExpired, http.StatusGone, "OFFER_EXPIRED"},
		{ErrOfferInvalid, http.StatusBadRequest, "OFFER_INVALID"},
		{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.Equal(t, tt.code, Code(tt.err))
		})
	}
}

func TestTaxonomyIsDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range mappings {
		assert.False(t, seen[m.code], "duplicate code %s", m.code)
		seen[m.code] = true
	}
}
