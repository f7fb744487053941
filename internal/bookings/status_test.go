package bookings

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusDeclined, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusApproved, StatusCompleted, true},
		{StatusApproved, StatusCancelled, true},
		{StatusApproved, StatusDeclined, false},
		{StatusApproved, StatusPending, false},
		{StatusDeclined, StatusApproved, false},
		{StatusCancelled, StatusApproved, false},
		{StatusCompleted, StatusCancelled, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStatusSeatAccounting(t *testing.T) {
	assert.True(t, StatusPending.HoldsSeats())
	assert.True(t, StatusApproved.HoldsSeats())
	assert.True(t, StatusCompleted.HoldsSeats())
	assert.False(t, StatusDeclined.HoldsSeats())
	assert.False(t, StatusCancelled.HoldsSeats())

	assert.False(t, StatusDeclined.Reopenable())
	assert.True(t, StatusCancelled.Reopenable())
	assert.False(t, StatusCompleted.Reopenable())
	assert.False(t, Status("BOGUS").IsValid())
}

func TestCalculateQuote(t *testing.T) {
	q := CalculateQuote(decimal.RequireFromString("19.99"), 3, decimal.NewFromInt(10))
	assert.Equal(t, "59.97", q.Subtotal.StringFixed(2))
	assert.Equal(t, "6.00", q.PlatformFee.StringFixed(2))
	assert.Equal(t, "65.97", q.Total.StringFixed(2))

	free := CalculateQuote(decimal.Zero, 4, decimal.NewFromInt(10))
	assert.True(t, free.Total.IsZero())
}

func TestGenerateBookingReference(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	a, err := generateBookingReference(now)
	require.NoError(t, err)
	b, err := generateBookingReference(now)
	require.NoError(t, err)
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
