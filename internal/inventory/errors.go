package inventory

import (
	"fmt"

	"hostly/internal/shared/apperr"

	"github.com/google/uuid"
)

// UnderflowError reports a release larger than what the event was holding.
// Held has already been clamped to zero when it is returned.
type UnderflowError struct {
	EventID   uuid.UUID
	Requested int
	Held      int
}

func (e *UnderflowError) Error() string {
	return fmt.Sprintf("release of %d seats on event %s exceeds held %d", e.Requested, e.EventID, e.Held)
}

func (e *UnderflowError) Unwrap() error {
	return apperr.ErrReleaseUnderflow
}
