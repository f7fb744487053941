package memstore

import (
	"context"
	"fmt"
	"time"

	"hostly/internal/payments"
	"hostly/internal/shared/apperr"

	"github.com/google/uuid"
)

type paymentRepo struct {
	s *Store
}

func (r *paymentRepo) Create(ctx context.Context, p *payments.Payment) error {
	return r.s.do(ctx, func() error {
		r.s.payments[p.ID] = *p
		r.s.paymentOrder = append(r.s.paymentOrder, p.ID)
		return nil
	})
}

func (r *paymentRepo) GetLatestByBooking(ctx context.Context, bookingID uuid.UUID) (*payments.Payment, error) {
	var out *payments.Payment
	err := r.s.do(ctx, func() error {
		for i := len(r.s.paymentOrder) - 1; i >= 0; i-- {
			p := r.s.payments[r.s.paymentOrder[i]]
			if p.BookingID == bookingID {
				out = &p
				return nil
			}
		}
		return fmt.Errorf("payment for booking %s: %w", bookingID, apperr.ErrNotFound)
	})
	return out, err
}

func (r *paymentRepo) MarkRefunded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	changed := false
	err := r.s.do(ctx, func() error {
		p, ok := r.s.payments[id]
		if !ok || !p.IsCompleted() {
			return nil
		}
		p.Status = payments.StatusRefunded
		p.RefundedAt = &at
		p.UpdatedAt = at
		r.s.payments[id] = p
		changed = true
		return nil
	})
	return changed, err
}
