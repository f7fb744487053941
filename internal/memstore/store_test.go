package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hostly/internal/inventory"
	"hostly/internal/shared/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publish(t *testing.T, s *Store, capacity int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, s.Inventory().Create(context.Background(), &inventory.EventInventory{
		EventID:  id,
		Capacity: capacity,
		Status:   inventory.StatusPublished,
		Mode:     inventory.ModeRequest,
		StartsAt: time.Now().Add(48 * time.Hour),
	}))
	return id
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := New()
	eventID := publish(t, s, 5)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Inventory().Reserve(ctx, eventID, 3, time.Now()))
		_, err := s.Inventory().NextWaitlistPosition(ctx, eventID, time.Now())
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	inv, err := s.Inventory().Get(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 0, inv.Held)
	assert.Equal(t, 0, inv.WaitlistSeq)
}

func TestWithinTx_NestedJoinsOuter(t *testing.T) {
	s := New()
	eventID := publish(t, s, 5)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.WithinTx(ctx, func(ctx context.Context) error {
			return s.Inventory().Reserve(ctx, eventID, 2, time.Now())
		}))
		return errors.New("outer fails")
	})
	require.Error(t, err)

	inv, err := s.Inventory().Get(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 0, inv.Held, "inner work rolls back with the outer unit")
}

func TestReserve_ConcurrentCallersNeverOversell(t *testing.T) {
	s := New()
	eventID := publish(t, s, 10)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Inventory().Reserve(ctx, eventID, 1, time.Now()); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, apperr.ErrInsufficientCapacity)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, successes)
	held, _ := s.Audit(eventID)
	assert.Equal(t, 10, held)
}

func TestRelease_ClampsAndReportsUnderflow(t *testing.T) {
	s := New()
	eventID := publish(t, s, 5)
	ctx := context.Background()

	require.NoError(t, s.Inventory().Reserve(ctx, eventID, 1, time.Now()))
	err := s.Inventory().Release(ctx, eventID, 3, time.Now())

	var underflow *inventory.UnderflowError
	require.ErrorAs(t, err, &underflow)
	assert.Equal(t, 1, underflow.Held)
	assert.ErrorIs(t, err, apperr.ErrReleaseUnderflow)

	inv, err := s.Inventory().Get(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 0, inv.Held)
}

func TestReserve_ClosedEvent(t *testing.T) {
	s := New()
	eventID := publish(t, s, 5)
	ctx := context.Background()

	require.NoError(t, s.Inventory().UpdateStatus(ctx, eventID, inventory.StatusClosed, time.Now()))
	err := s.Inventory().Reserve(ctx, eventID, 1, time.Now())
	assert.ErrorIs(t, err, apperr.ErrEventNotBookable)
}

func TestGetReturnsCopies(t *testing.T) {
	s := New()
	eventID := publish(t, s, 5)
	ctx := context.Background()

	inv, err := s.Inventory().Get(ctx, eventID)
	require.NoError(t, err)
	inv.Held = 99

	again, err := s.Inventory().Get(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Held)
}
