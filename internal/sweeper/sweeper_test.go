package sweeper

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hostly/internal/shared/apperr"
	"hostly/internal/waitlist"
	"hostly/pkg/logger"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWaitlist struct {
	mu       sync.Mutex
	due      []waitlist.WaitlistEntry
	failing  map[uuid.UUID]bool
	cascade  map[uuid.UUID]int
	attempts int
}

func newFakeWaitlist(n int) *fakeWaitlist {
	f := &fakeWaitlist{failing: map[uuid.UUID]bool{}, cascade: map[uuid.UUID]int{}}
	eventID := uuid.New()
	for i := 0; i < n; i++ {
		f.due = append(f.due, waitlist.WaitlistEntry{ID: uuid.New(), EventID: eventID, SeatCount: 1})
	}
	return f
}

func (f *fakeWaitlist) ListDueOffers(_ context.Context, limit int, exclude []uuid.UUID) ([]waitlist.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	skip := make(map[uuid.UUID]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var out []waitlist.WaitlistEntry
	for _, e := range f.due {
		if len(out) == limit {
			break
		}
		if !skip[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeWaitlist) ExpireOffer(_ context.Context, entryID uuid.UUID) (*waitlist.ExpiryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failing[entryID] {
		return nil, errors.New("database unavailable")
	}
	for i, e := range f.due {
		if e.ID == entryID {
			f.due = append(f.due[:i], f.due[i+1:]...)
			break
		}
	}
	notified := make([]waitlist.WaitlistEntry, f.cascade[entryID])
	return &waitlist.ExpiryResult{Expired: true, Promoted: waitlist.PromotionResult{Notified: notified}}, nil
}

func newTestSweeper(wl WaitlistService, lock Locker, batch int) *Sweeper {
	return NewSweeper(wl, lock, clockwork.NewFakeClock(), batch, logger.Discard())
}

func TestRun_ExpiresAcrossBatches(t *testing.T) {
	wl := newFakeWaitlist(5)
	wl.cascade[wl.due[0].ID] = 2
	wl.cascade[wl.due[3].ID] = 1

	result, err := newTestSweeper(wl, nil, 2).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Expired)
	assert.Equal(t, 3, result.Promoted)
	assert.Empty(t, wl.due)
}

func TestRun_FailingEntryDoesNotSpin(t *testing.T) {
	wl := newFakeWaitlist(3)
	wl.failing[wl.due[0].ID] = true

	result, err := newTestSweeper(wl, nil, 1).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Expired)
	assert.Equal(t, 3, wl.attempts, "each entry is tried once per run")
	assert.Len(t, wl.due, 1)

	result, err = newTestSweeper(wl, nil, 10).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Expired)
	assert.Equal(t, 4, wl.attempts)
	assert.Len(t, wl.due, 1)
}

func TestRun_FailingHeadDoesNotHideLaterOffers(t *testing.T) {
	wl := newFakeWaitlist(3)
	wl.failing[wl.due[0].ID] = true
	wl.failing[wl.due[1].ID] = true
	healthy := wl.due[2].ID

	result, err := newTestSweeper(wl, nil, 2).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Expired)
	assert.Equal(t, 3, wl.attempts)
	require.Len(t, wl.due, 2)
	for _, e := range wl.due {
		assert.NotEqual(t, healthy, e.ID)
	}

	// Failed entries come back on the next run
	result, err = newTestSweeper(wl, nil, 2).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Expired)
	assert.Equal(t, 5, wl.attempts)
}

func TestRun_NothingDue(t *testing.T) {
	result, err := newTestSweeper(newFakeWaitlist(0), nil, 10).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Result{}, result)
}

func TestRun_LockHeld(t *testing.T) {
	lock := NewLocalLock()
	release, ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = newTestSweeper(newFakeWaitlist(1), lock, 10).Run(context.Background())
	assert.ErrorIs(t, err, apperr.ErrSweepInProgress)

	release()
	result, err := newTestSweeper(newFakeWaitlist(1), lock, 10).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Expired)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestSweeper(newFakeWaitlist(2), nil, 10).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 0, result.Expired)
}

func TestRedisLock_AcquireAndRelease(t *testing.T) {
	db, mock := redismock.NewClientMock()
	lock := NewRedisLock(db, "hostly:lock:sweep", time.Minute, logger.Discard())
	lock.newToken = func() string { return "owner-1" }

	mock.ExpectSetNX("hostly:lock:sweep", "owner-1", time.Minute).SetVal(true)
	mock.ExpectEval(luaReleaseLock, []string{"hostly:lock:sweep"}, "owner-1").SetVal(int64(1))

	release, ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	release()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLock_ReleaseFailureIsLogged(t *testing.T) {
	db, mock := redismock.NewClientMock()
	var buf bytes.Buffer
	lock := NewRedisLock(db, "hostly:lock:sweep", time.Minute, logger.NewWithWriter(&buf))
	lock.newToken = func() string { return "owner-4" }

	mock.ExpectSetNX("hostly:lock:sweep", "owner-4", time.Minute).SetVal(true)
	mock.ExpectEval(luaReleaseLock, []string{"hostly:lock:sweep"}, "owner-4").SetErr(errors.New("connection reset"))

	release, ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotPanics(t, release)

	assert.Contains(t, buf.String(), "Failed to release sweep lock")
	assert.Contains(t, buf.String(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLock_ReleaseAfterExpiryIsLogged(t *testing.T) {
	db, mock := redismock.NewClientMock()
	var buf bytes.Buffer
	lock := NewRedisLock(db, "hostly:lock:sweep", time.Minute, logger.NewWithWriter(&buf))
	lock.newToken = func() string { return "owner-5" }

	mock.ExpectSetNX("hostly:lock:sweep", "owner-5", time.Minute).SetVal(true)
	mock.ExpectEval(luaReleaseLock, []string{"hostly:lock:sweep"}, "owner-5").SetVal(int64(0))

	release, ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	release()

	assert.Contains(t, buf.String(), "Sweep lock expired before release")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLock_HeldElsewhere(t *testing.T) {
	db, mock := redismock.NewClientMock()
	lock := NewRedisLock(db, "hostly:lock:sweep", time.Minute, logger.Discard())
	lock.newToken = func() string { return "owner-2" }

	mock.ExpectSetNX("hostly:lock:sweep", "owner-2", time.Minute).SetVal(false)

	release, ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, release)

	_, err = newTestSweeper(newFakeWaitlist(1), lock, 10).Run(context.Background())
	assert.Error(t, err)
}

func TestRedisLock_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	lock := NewRedisLock(db, "hostly:lock:sweep", time.Minute, logger.Discard())
	lock.newToken = func() string { return "owner-3" }

	mock.ExpectSetNX("hostly:lock:sweep", "owner-3", time.Minute).SetErr(errors.New("connection refused"))

	_, ok, err := lock.Acquire(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestJobProcessor_StartAndStop(t *testing.T) {
	wl := newFakeWaitlist(2)
	clock := clockwork.NewFakeClock()
	sw := NewSweeper(wl, nil, clock, 10, logger.Discard())

	jp, err := NewJobProcessor(sw, nil, clock, &JobConfig{
		SweepInterval:    time.Hour,
		ReminderInterval: time.Hour,
	}, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, jp.Start(context.Background()))

	status := jp.GetJobStatus()
	assert.Equal(t, "1h0m0s", status["sweep_interval"])
	jobs, ok := status["jobs"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, jobs, 1)
	assert.Equal(t, sweepJobName, jobs[0]["name"])

	result, err := jp.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Expired)

	assert.NoError(t, jp.Stop())
}
