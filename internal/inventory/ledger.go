package inventory

import (
	"context"
	"errors"
	"fmt"

	"hostly/internal/shared/apperr"
	"hostly/internal/shared/metrics"
	"hostly/pkg/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Ledger is the only path through which held seats change
type Ledger struct {
	repo  Repository
	clock clockwork.Clock
	log   *logger.Logger
}

func NewLedger(repo Repository, clock clockwork.Clock, log *logger.Logger) *Ledger {
	return &Ledger{
		repo:  repo,
		clock: clock,
		log:   log.WithComponent("inventory"),
	}
}

// Reserve holds seatCount seats or fails with ErrInsufficientCapacity
func (l *Ledger) Reserve(ctx context.Context, eventID uuid.UUID, seatCount int) error {
	if seatCount <= 0 {
		return fmt.Errorf("seat count must be positive: %w", apperr.ErrValidation)
	}
	err := l.repo.Reserve(ctx, eventID, seatCount, l.clock.Now().UTC())
	if errors.Is(err, apperr.ErrInsufficientCapacity) {
		metrics.CapacityRejections.Inc()
	}
	return err
}

// Release returns seats to the event. An underflow is clamped, logged and
// counted but never fails the caller's transition.
func (l *Ledger) Release(ctx context.Context, eventID uuid.UUID, seatCount int) error {
	if seatCount <= 0 {
		return nil
	}
	err := l.repo.Release(ctx, eventID, seatCount, l.clock.Now().UTC())

	var underflow *UnderflowError
	if errors.As(err, &underflow) {
		metrics.ReleaseUnderflows.Inc()
		l.log.LogReleaseUnderflow(ctx, eventID.String(), underflow.Requested, underflow.Held)
		return nil
	}
	return err
}

func (l *Ledger) Get(ctx context.Context, eventID uuid.UUID) (*EventInventory, error) {
	return l.repo.Get(ctx, eventID)
}

// Lock takes the inventory row lock for the rest of the transaction
func (l *Ledger) Lock(ctx context.Context, eventID uuid.UUID) (*EventInventory, error) {
	return l.repo.GetForUpdate(ctx, eventID)
}

func (l *Ledger) NextWaitlistPosition(ctx context.Context, eventID uuid.UUID) (int, error) {
	return l.repo.NextWaitlistPosition(ctx, eventID, l.clock.Now().UTC())
}
