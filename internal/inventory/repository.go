package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hostly/internal/shared/apperr"
	"hostly/internal/shared/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Create(ctx context.Context, inv *EventInventory) error
	Get(ctx context.Context, eventID uuid.UUID) (*EventInventory, error)
	// GetForUpdate locks the row until the surrounding transaction ends
	GetForUpdate(ctx context.Context, eventID uuid.UUID) (*EventInventory, error)
	Reserve(ctx context.Context, eventID uuid.UUID, seats int, at time.Time) error
	Release(ctx context.Context, eventID uuid.UUID, seats int, at time.Time) error
	NextWaitlistPosition(ctx context.Context, eventID uuid.UUID, at time.Time) (int, error)
	UpdateStatus(ctx context.Context, eventID uuid.UUID, status Status, at time.Time) error
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]EventInventory, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, inv *EventInventory) error {
	err := database.Conn(ctx, r.db).Create(inv).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("event %s already published: %w", inv.EventID, apperr.ErrValidation)
	}
	return err
}

func (r *repository) Get(ctx context.Context, eventID uuid.UUID) (*EventInventory, error) {
	var inv EventInventory
	err := database.Conn(ctx, r.db).Where("event_id = ?", eventID).Take(&inv).Error
	if err != nil {
		return nil, notFound(err, eventID)
	}
	return &inv, nil
}

func (r *repository) GetForUpdate(ctx context.Context, eventID uuid.UUID) (*EventInventory, error) {
	var inv EventInventory
	err := database.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("event_id = ?", eventID).
		Take(&inv).Error
	if err != nil {
		return nil, notFound(err, eventID)
	}
	return &inv, nil
}

// Reserve is a single conditional update; the row is only touched when the
// seats fit, so concurrent reservations can never oversell.
func (r *repository) Reserve(ctx context.Context, eventID uuid.UUID, seats int, at time.Time) error {
	db := database.Conn(ctx, r.db)
	res := db.Exec(
		"UPDATE event_inventories SET held = held + ?, updated_at = ? WHERE event_id = ? AND status = ? AND capacity - held >= ?",
		seats, at, eventID, StatusPublished, seats,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	inv, err := r.Get(ctx, eventID)
	if err != nil {
		return err
	}
	if !inv.IsBookable() {
		return fmt.Errorf("event %s is %s: %w", eventID, inv.Status, apperr.ErrEventNotBookable)
	}
	return fmt.Errorf("requested %d seats, %d available: %w", seats, inv.Available(), apperr.ErrInsufficientCapacity)
}

func (r *repository) Release(ctx context.Context, eventID uuid.UUID, seats int, at time.Time) error {
	db := database.Conn(ctx, r.db)
	res := db.Exec(
		"UPDATE event_inventories SET held = held - ?, updated_at = ? WHERE event_id = ? AND held >= ?",
		seats, at, eventID, seats,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var underflow *UnderflowError
	err := database.RunInTx(ctx, r.db, func(ctx context.Context) error {
		inv, err := r.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		db := database.Conn(ctx, r.db)
		if inv.Held >= seats {
			return db.Exec(
				"UPDATE event_inventories SET held = held - ?, updated_at = ? WHERE event_id = ?",
				seats, at, eventID,
			).Error
		}
		underflow = &UnderflowError{EventID: eventID, Requested: seats, Held: inv.Held}
		return db.Exec(
			"UPDATE event_inventories SET held = 0, updated_at = ? WHERE event_id = ?",
			at, eventID,
		).Error
	})
	if err != nil {
		return err
	}
	if underflow != nil {
		return underflow
	}
	return nil
}

// NextWaitlistPosition bumps the per event counter, which also serializes
// concurrent joins on the inventory row.
func (r *repository) NextWaitlistPosition(ctx context.Context, eventID uuid.UUID, at time.Time) (int, error) {
	var seq int
	res := database.Conn(ctx, r.db).Raw(
		"UPDATE event_inventories SET waitlist_seq = waitlist_seq + 1, updated_at = ? WHERE event_id = ? RETURNING waitlist_seq",
		at, eventID,
	).Scan(&seq)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("event %s: %w", eventID, apperr.ErrNotFound)
	}
	return seq, nil
}

func (r *repository) UpdateStatus(ctx context.Context, eventID uuid.UUID, status Status, at time.Time) error {
	res := database.Conn(ctx, r.db).Exec(
		"UPDATE event_inventories SET status = ?, updated_at = ? WHERE event_id = ?",
		status, at, eventID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("event %s: %w", eventID, apperr.ErrNotFound)
	}
	return nil
}

func (r *repository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]EventInventory, error) {
	var events []EventInventory
	err := database.Conn(ctx, r.db).
		Where("starts_at > ? AND starts_at <= ?", from, to).
		Order("starts_at ASC").
		Find(&events).Error
	return events, err
}

func notFound(err error, eventID uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("event %s: %w", eventID, apperr.ErrNotFound)
	}
	return err
}
