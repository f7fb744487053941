package payments

import (
	"context"
	"regexp"
	"testing"
	"time"

	"hostly/internal/shared/apperr"
	"hostly/internal/shared/database/dbtest"
	"hostly/pkg/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	payments []*Payment
}

func (f *fakeRepo) Create(_ context.Context, p *Payment) error {
	cp := *p
	f.payments = append(f.payments, &cp)
	return nil
}

func (f *fakeRepo) GetLatestByBooking(_ context.Context, bookingID uuid.UUID) (*Payment, error) {
	for i := len(f.payments) - 1; i >= 0; i-- {
		if f.payments[i].BookingID == bookingID {
			cp := *f.payments[i]
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeRepo) MarkRefunded(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	for _, p := range f.payments {
		if p.ID == id && p.Status == StatusCompleted {
			p.Status = StatusRefunded
			p.RefundedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func TestMockCharger_ChargeAndRefund(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	repo := &fakeRepo{}
	charger := NewMockCharger(repo, clock, logger.Discard())
	bookingID := uuid.New()

	payment, err := charger.Charge(context.Background(), bookingID, decimal.RequireFromString("55.005"), "USD")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, payment.Status)
	assert.Equal(t, "55.01", payment.Amount.StringFixed(2))
	assert.Regexp(t, regexp.MustCompile(`^TXN_\d+_[0-9A-F]{8}$`), payment.TransactionID)
	assert.Contains(t, payment.TransactionID, "TXN_1780304400_")

	refunded, err := charger.Refund(context.Background(), bookingID)
	require.NoError(t, err)
	require.NotNil(t, refunded)
	assert.True(t, refunded.IsRefunded())

	// Refunding twice leaves the record as it is
	again, err := charger.Refund(context.Background(), bookingID)
	require.NoError(t, err)
	assert.True(t, again.IsRefunded())
}

func TestMockCharger_RefundWithoutCharge(t *testing.T) {
	charger := NewMockCharger(&fakeRepo{}, clockwork.NewFakeClock(), logger.Discard())

	payment, err := charger.Refund(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, payment)
}

func TestMockCharger_RejectsNegativeAmount(t *testing.T) {
	charger := NewMockCharger(&fakeRepo{}, clockwork.NewFakeClock(), logger.Discard())

	_, err := charger.Charge(context.Background(), uuid.New(), decimal.NewFromInt(-1), "USD")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRepositoryMarkRefunded(t *testing.T) {
	db, mock := dbtest.NewMockDB(t)
	repo := NewRepository(db)

	mock.ExpectExec(`UPDATE "payments" SET .+ WHERE id = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.MarkRefunded(context.Background(), uuid.New(), time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
}
