package sweeper

import (
	"context"
	"fmt"

	"hostly/internal/shared/apperr"
	"hostly/internal/shared/metrics"
	"hostly/internal/waitlist"
	"hostly/pkg/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const DefaultBatchSize = 100

// WaitlistService is the slice of the waitlist the sweeper drives
type WaitlistService interface {
	ListDueOffers(ctx context.Context, limit int, exclude []uuid.UUID) ([]waitlist.WaitlistEntry, error)
	ExpireOffer(ctx context.Context, entryID uuid.UUID) (*waitlist.ExpiryResult, error)
}

// Result counts what one sweep changed
type Result struct {
	Expired  int `json:"expired_count"`
	Promoted int `json:"promoted_count"`
}

// Sweeper expires lapsed waitlist offers and cascades the freed seats down
// the queue. Each entry is handled in its own transaction so one failure
// does not undo the rest of the sweep.
type Sweeper struct {
	waitlist  WaitlistService
	lock      Locker
	clock     clockwork.Clock
	batchSize int
	log       *logger.Logger
}

func NewSweeper(waitlistService WaitlistService, lock Locker, clock clockwork.Clock, batchSize int, log *logger.Logger) *Sweeper {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if lock == nil {
		lock = NewLocalLock()
	}
	return &Sweeper{
		waitlist:  waitlistService,
		lock:      lock,
		clock:     clock,
		batchSize: batchSize,
		log:       log.WithComponent("sweeper"),
	}
}

// Run performs one sweep. It returns apperr.ErrSweepInProgress when another
// sweep holds the lock. On cancellation the partial result is returned with
// the context error.
func (s *Sweeper) Run(ctx context.Context) (*Result, error) {
	release, ok, err := s.lock.Acquire(ctx)
	if err != nil {
		metrics.SweepRuns.WithLabelValues("failed").Inc()
		return nil, err
	}
	if !ok {
		metrics.SweepRuns.WithLabelValues("skipped").Inc()
		return nil, apperr.ErrSweepInProgress
	}
	defer release()

	start := s.clock.Now()
	result, err := s.sweep(ctx)
	duration := s.clock.Since(start)
	metrics.SweepDuration.Observe(duration.Seconds())

	if err != nil {
		metrics.SweepRuns.WithLabelValues("failed").Inc()
		s.log.Error("Reconciliation sweep aborted", "error", err, "expired_count", result.Expired)
		return result, err
	}

	metrics.SweepRuns.WithLabelValues("completed").Inc()
	s.log.LogSweepCompleted(ctx, result.Expired, result.Promoted, duration)
	return result, nil
}

func (s *Sweeper) sweep(ctx context.Context) (*Result, error) {
	result := &Result{}
	// Entries attempted in this run are excluded from later pages; failures
	// are retried by the next sweep
	var attempted []uuid.UUID
	seen := make(map[uuid.UUID]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		due, err := s.waitlist.ListDueOffers(ctx, s.batchSize, attempted)
		if err != nil {
			return result, fmt.Errorf("failed to load due offers: %w", err)
		}

		fresh := 0
		for _, entry := range due {
			if _, ok := seen[entry.ID]; ok {
				continue
			}
			seen[entry.ID] = struct{}{}
			attempted = append(attempted, entry.ID)
			fresh++

			res, err := s.waitlist.ExpireOffer(ctx, entry.ID)
			if err != nil {
				s.log.Warn("Failed to expire offer", "entry_id", entry.ID.String(), "event_id", entry.EventID.String(), "error", err)
				continue
			}
			if res.Expired {
				result.Expired++
			}
			result.Promoted += len(res.Promoted.Notified)
		}

		if len(due) < s.batchSize || fresh == 0 {
			return result, nil
		}
	}
}
