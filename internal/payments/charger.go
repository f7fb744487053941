// Package payments simulates charges for approved bookings. No money moves;
// every charge and refund succeeds and is recorded for the booking history.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hostly/internal/shared/apperr"
	"hostly/pkg/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

type MockCharger struct {
	repo  Repository
	clock clockwork.Clock
	log   *logger.Logger
}

func NewMockCharger(repo Repository, clock clockwork.Clock, log *logger.Logger) *MockCharger {
	return &MockCharger{
		repo:  repo,
		clock: clock,
		log:   log.WithComponent("payments"),
	}
}

// Charge records a completed payment for the booking
func (m *MockCharger) Charge(ctx context.Context, bookingID uuid.UUID, amount decimal.Decimal, currency string) (*Payment, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("charge amount %s is negative: %w", amount, apperr.ErrValidation)
	}

	now := m.clock.Now().UTC()
	payment := &Payment{
		ID:            uuid.New(),
		BookingID:     bookingID,
		Amount:        amount.Round(2),
		Currency:      currency,
		Status:        StatusCompleted,
		TransactionID: m.transactionID(),
		ProcessedAt:   &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.repo.Create(ctx, payment); err != nil {
		return nil, err
	}

	m.log.Info("Mock charge recorded",
		"booking_id", bookingID.String(),
		"amount", payment.Amount.StringFixed(2),
		"currency", currency,
		"transaction_id", payment.TransactionID,
	)
	return payment, nil
}

// Refund marks the latest completed charge for the booking as refunded. A
// booking that was never charged has nothing to refund.
func (m *MockCharger) Refund(ctx context.Context, bookingID uuid.UUID) (*Payment, error) {
	payment, err := m.repo.GetLatestByBooking(ctx, bookingID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !payment.IsCompleted() {
		return payment, nil
	}

	now := m.clock.Now().UTC()
	ok, err := m.repo.MarkRefunded(ctx, payment.ID, now)
	if err != nil {
		return nil, err
	}
	if ok {
		payment.Status = StatusRefunded
		payment.RefundedAt = &now
		payment.UpdatedAt = now
		m.log.Info("Mock refund recorded",
			"booking_id", bookingID.String(),
			"amount", payment.Amount.StringFixed(2),
			"transaction_id", payment.TransactionID,
		)
	}
	return payment, nil
}

// transactionID generates a mock transaction ID
func (m *MockCharger) transactionID() string {
	shortUUID := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("TXN_%d_%s", m.clock.Now().Unix(), strings.ToUpper(shortUUID))
}
