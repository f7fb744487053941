package bookings

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
	// Core booking operations
	Create(ctx context.Context, booking *Booking) error
	Save(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByEventAndRequester(ctx context.Context, eventID, requesterID uuid.UUID) (*Booking, error)

	// Transition applies updates only while the booking is still in from
	Transition(ctx context.Context, id uuid.UUID, from Status, updates map[string]interface{}) (bool, error)

	// Listing
	ListByRequester(ctx context.Context, requesterID uuid.UUID, query BookingListQuery) ([]Booking, int64, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID, query BookingListQuery) ([]Booking, int64, error)

	// Reminders
	ListAwaitingReminder(ctx context.Context, eventIDs []uuid.UUID, kind ReminderKind) ([]Booking, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, kind ReminderKind, at time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, booking *Booking) error {
	err := database.Conn(ctx, r.db).Create(booking).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("booking for event %s: %w", booking.EventID, apperr.ErrDuplicateBooking)
	}
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *repository) Save(ctx context.Context, booking *Booking) error {
	if err := database.Conn(ctx, r.db).Save(booking).Error; err != nil {
		return fmt.Errorf("failed to save booking %s: %w", booking.ID, err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := database.Conn(ctx, r.db).Where("id = ?", id).Take(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("booking %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) GetByEventAndRequester(ctx context.Context, eventID, requesterID uuid.UUID) (*Booking, error) {
	var booking Booking
	err := database.Conn(ctx, r.db).
		Where("event_id = ? AND requester_id = ?", eventID, requesterID).
		Take(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("booking for event %s: %w", eventID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, from Status, updates map[string]interface{}) (bool, error) {
	res := database.Conn(ctx, r.db).
		Model(&Booking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update booking %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByRequester(ctx context.Context, requesterID uuid.UUID, query BookingListQuery) ([]Booking, int64, error) {
	return r.list(ctx, query, "requester_id = ?", requesterID)
}

func (r *repository) ListByEvent(ctx context.Context, eventID uuid.UUID, query BookingListQuery) ([]Booking, int64, error) {
	return r.list(ctx, query, "event_id = ?", eventID)
}

func (r *repository) list(ctx context.Context, query BookingListQuery, cond string, arg interface{}) ([]Booking, int64, error) {
	var bookings []Booking
	var totalCount int64

	query.Normalize()

	// Build base query
	baseQuery := database.Conn(ctx, r.db).
		Model(&Booking{}).
		Where(cond, arg)

	// Apply filters
	if query.Status != "" {
		baseQuery = baseQuery.Where("status = ?", query.Status)
	}

	// Get total count
	if err := baseQuery.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	offset := (query.Page - 1) * query.Limit
	err := baseQuery.
		Order("created_at DESC").
		Offset(offset).
		Limit(query.Limit).
		Find(&bookings).Error

	return bookings, totalCount, err
}

func (r *repository) ListAwaitingReminder(ctx context.Context, eventIDs []uuid.UUID, kind ReminderKind) ([]Booking, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	var bookings []Booking
	err := database.Conn(ctx, r.db).
		Where("event_id IN ? AND status = ?", eventIDs, StatusApproved).
		Where(kind.Column() + " IS NULL").
		Order("created_at ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings awaiting %s reminder: %w", kind, err)
	}
	return bookings, nil
}

// MarkReminderSent stamps the reminder once; a false result means another
// worker already sent it
func (r *repository) MarkReminderSent(ctx context.Context, id uuid.UUID, kind ReminderKind, at time.Time) (bool, error) {
	res := database.Conn(ctx, r.db).
		Model(&Booking{}).
		Where("id = ?", id).
		Where(kind.Column()+" IS NULL").
		Update(kind.Column(), at)
	if res.Error != nil {
		return false, fmt.Errorf("failed to stamp %s reminder on booking %s: %w", kind, id, res.Error)
	}
	return res.RowsAffected == 1, nil
}
