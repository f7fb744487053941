package reminders_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"hostly/internal/bookings"
	"hostly/internal/inventory"
	"hostly/internal/memstore"
	"hostly/internal/notifications"
	"hostly/internal/reminders"
	"hostly/pkg/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingNotifier struct {
	mu   sync.Mutex
	msgs []notifications.Message
}

func (n *capturingNotifier) Dispatch(_ context.Context, msgs ...notifications.Message) {
	n.mu.Lock()
	n.msgs = append(n.msgs, msgs...)
	n.mu.Unlock()
}

func (n *capturingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

var now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func seedEvent(t *testing.T, store *memstore.Store, startsIn time.Duration) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, store.Inventory().Create(context.Background(), &inventory.EventInventory{
		EventID:   id,
		HostID:    uuid.New(),
		HostEmail: "host@example.com",
		Title:     "Supper Club",
		StartsAt:  now.Add(startsIn),
		Capacity:  10,
		Mode:      inventory.ModeRequest,
		Status:    inventory.StatusPublished,
	}))
	return id
}

func seedBooking(t *testing.T, store *memstore.Store, eventID uuid.UUID, status bookings.Status) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, store.Bookings().Create(context.Background(), &bookings.Booking{
		ID:             id,
		EventID:        eventID,
		RequesterID:    uuid.New(),
		RequesterEmail: "guest-" + id.String()[:8] + "@example.com",
		SeatCount:      2,
		Status:         status,
		BookingRef:     "HST-20260601-ABC123",
	}))
	return id
}

func TestRun_SendsEachReminderOnce(t *testing.T) {
	store := memstore.New()
	clock := clockwork.NewFakeClockAt(now)
	notifier := &capturingNotifier{}
	svc := reminders.NewService(store.Inventory(), store.Bookings(), notifier, clock, logger.Discard())

	tomorrow := seedEvent(t, store, 20*time.Hour)
	soon := seedEvent(t, store, 2*time.Hour)
	later := seedEvent(t, store, 72*time.Hour)

	seedBooking(t, store, tomorrow, bookings.StatusApproved)
	seedBooking(t, store, tomorrow, bookings.StatusPending)
	seedBooking(t, store, soon, bookings.StatusApproved)
	seedBooking(t, store, later, bookings.StatusApproved)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent24h)
	assert.Equal(t, 1, result.Sent3h)
	assert.Equal(t, 2, notifier.count())

	again, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Total())
	assert.Equal(t, 2, notifier.count())
}

func TestRun_ThreeHourReminderFollowsDayBefore(t *testing.T) {
	store := memstore.New()
	clock := clockwork.NewFakeClockAt(now)
	notifier := &capturingNotifier{}
	svc := reminders.NewService(store.Inventory(), store.Bookings(), notifier, clock, logger.Discard())

	eventID := seedEvent(t, store, 23*time.Hour)
	bookingID := seedBooking(t, store, eventID, bookings.StatusApproved)

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent24h)

	clock.Advance(21 * time.Hour)
	result, err = svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Sent24h)
	assert.Equal(t, 1, result.Sent3h)

	booking, err := store.Bookings().GetByID(context.Background(), bookingID)
	require.NoError(t, err)
	require.NotNil(t, booking.Reminder24hSentAt)
	require.NotNil(t, booking.Reminder3hSentAt)
	assert.True(t, booking.Reminder3hSentAt.After(*booking.Reminder24hSentAt))
}
