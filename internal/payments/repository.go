package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hostly/internal/shared/apperr"
	"hostly/internal/shared/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	GetLatestByBooking(ctx context.Context, bookingID uuid.UUID) (*Payment, error)
	MarkRefunded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, payment *Payment) error {
	if err := database.Conn(ctx, r.db).Create(payment).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *repository) GetLatestByBooking(ctx context.Context, bookingID uuid.UUID) (*Payment, error) {
	var payment Payment
	err := database.Conn(ctx, r.db).
		Where("booking_id = ?", bookingID).
		Order("created_at DESC").
		Take(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("payment for booking %s: %w", bookingID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkRefunded flips a completed payment to refunded and reports whether it did
func (r *repository) MarkRefunded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := database.Conn(ctx, r.db).
		Model(&Payment{}).
		Where("id = ? AND status = ?", id, StatusCompleted).
		Updates(map[string]interface{}{
			"status":      StatusRefunded,
			"refunded_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to refund payment %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}
