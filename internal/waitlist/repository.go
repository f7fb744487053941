package waitlist

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

// Repository persists waitlist entries. The Mark* methods are conditional
// updates on the current status and report whether a row changed, which is
// what keeps conversion, expiry and cancellation single shot.
type Repository interface {
	Create(ctx context.Context, entry *WaitlistEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*WaitlistEntry, error)
	FindActiveByEmail(ctx context.Context, eventID uuid.UUID, email string) (*WaitlistEntry, error)
	ListWaiting(ctx context.Context, eventID uuid.UUID) ([]WaitlistEntry, error)
	CountWaitingAhead(ctx context.Context, eventID uuid.UUID, position int) (int, error)
	CountActive(ctx context.Context, eventID uuid.UUID) (int, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID, status WaitlistStatus) ([]WaitlistEntry, error)

	MarkNotified(ctx context.Context, id uuid.UUID, tokenHash string, issuedAt, expiresAt time.Time) (bool, error)
	MarkConverted(ctx context.Context, id, bookingID uuid.UUID, at time.Time) (bool, error)
	MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, from WaitlistStatus, at time.Time) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error

	ListDueOffers(ctx context.Context, now time.Time, limit int, exclude []uuid.UUID) ([]WaitlistEntry, error)
	Stats(ctx context.Context, eventID uuid.UUID) (*WaitlistStatsResponse, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, entry *WaitlistEntry) error {
	err := database.Conn(ctx, r.db).Create(entry).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s is already on the waitlist: %w", entry.Email, apperr.ErrAlreadyWaitlisted)
	}
	if err != nil {
		return fmt.Errorf("failed to create waitlist entry: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*WaitlistEntry, error) {
	var entry WaitlistEntry
	err := database.Conn(ctx, r.db).Where("id = ?", id).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("waitlist entry %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindActiveByEmail(ctx context.Context, eventID uuid.UUID, email string) (*WaitlistEntry, error) {
	var entry WaitlistEntry
	err := database.Conn(ctx, r.db).
		Where("event_id = ? AND email = ? AND status IN ?", eventID, NormalizeEmail(email), ActiveStatuses).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("no active entry for %s: %w", email, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListWaiting(ctx context.Context, eventID uuid.UUID) ([]WaitlistEntry, error) {
	var entries []WaitlistEntry
	err := database.Conn(ctx, r.db).
		Where("event_id = ? AND status = ?", eventID, WaitlistStatusWaiting).
		Order("position ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list waiting entries: %w", err)
	}
	return entries, nil
}

func (r *repository) CountWaitingAhead(ctx context.Context, eventID uuid.UUID, position int) (int, error) {
	var count int64
	err := database.Conn(ctx, r.db).
		Model(&WaitlistEntry{}).
		Where("event_id = ? AND status = ? AND position < ?", eventID, WaitlistStatusWaiting, position).
		Count(&count).Error
	return int(count), err
}

func (r *repository) CountActive(ctx context.Context, eventID uuid.UUID) (int, error) {
	var count int64
	err := database.Conn(ctx, r.db).
		Model(&WaitlistEntry{}).
		Where("event_id = ? AND status IN ?", eventID, ActiveStatuses).
		Count(&count).Error
	return int(count), err
}

func (r *repository) ListByEvent(ctx context.Context, eventID uuid.UUID, status WaitlistStatus) ([]WaitlistEntry, error) {
	var entries []WaitlistEntry
	query := database.Conn(ctx, r.db).Where("event_id = ?", eventID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("position ASC").Find(&entries).Error
	return entries, err
}

func (r *repository) MarkNotified(ctx context.Context, id uuid.UUID, tokenHash string, issuedAt, expiresAt time.Time) (bool, error) {
	return r.transition(ctx, id, WaitlistStatusWaiting, map[string]interface{}{
		"status":           WaitlistStatusNotified,
		"offer_token_hash": tokenHash,
		"offer_issued_at":  issuedAt,
		"offer_expires_at": expiresAt,
		"updated_at":       issuedAt,
	}, "")
}

func (r *repository) MarkConverted(ctx context.Context, id, bookingID uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, id, WaitlistStatusNotified, map[string]interface{}{
		"status":           WaitlistStatusConverted,
		"booking_id":       bookingID,
		"offer_token_hash": "",
		"converted_at":     at,
		"updated_at":       at,
	}, "offer_expires_at > ?", at)
}

func (r *repository) MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, id, WaitlistStatusNotified, map[string]interface{}{
		"status":           WaitlistStatusExpired,
		"offer_token_hash": "",
		"expired_at":       at,
		"updated_at":       at,
	}, "offer_expires_at <= ?", at)
}

func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID, from WaitlistStatus, at time.Time) (bool, error) {
	return r.transition(ctx, id, from, map[string]interface{}{
		"status":           WaitlistStatusCancelled,
		"offer_token_hash": "",
		"cancelled_at":     at,
		"updated_at":       at,
	}, "")
}

func (r *repository) transition(ctx context.Context, id uuid.UUID, from WaitlistStatus, updates map[string]interface{}, extra string, args ...interface{}) (bool, error) {
	query := database.Conn(ctx, r.db).
		Model(&WaitlistEntry{}).
		Where("id = ? AND status = ?", id, from)
	if extra != "" {
		query = query.Where(extra, args...)
	}
	res := query.Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update waitlist entry %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := database.Conn(ctx, r.db).Where("id = ?", id).Delete(&WaitlistEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("waitlist entry %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// ListDueOffers returns lapsed offers oldest first, skipping the given ids
func (r *repository) ListDueOffers(ctx context.Context, now time.Time, limit int, exclude []uuid.UUID) ([]WaitlistEntry, error) {
	var entries []WaitlistEntry
	query := database.Conn(ctx, r.db).
		Where("status = ? AND offer_expires_at <= ?", WaitlistStatusNotified, now)
	if len(exclude) > 0 {
		query = query.Where("id NOT IN ?", exclude)
	}
	err := query.
		Order("offer_expires_at ASC, id ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get expired offers: %w", err)
	}
	return entries, nil
}

// Stats gets statistics for a waitlist
func (r *repository) Stats(ctx context.Context, eventID uuid.UUID) (*WaitlistStatsResponse, error) {
	type statusCount struct {
		Status WaitlistStatus
		Count  int
		Seats  int
	}

	var counts []statusCount
	err := database.Conn(ctx, r.db).
		Model(&WaitlistEntry{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(seat_count), 0) AS seats").
		Where("event_id = ?", eventID).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get waitlist stats: %w", err)
	}

	stats := &WaitlistStatsResponse{EventID: eventID}
	for _, sc := range counts {
		stats.Tally(sc.Status, sc.Count, sc.Seats)
	}
	return stats, nil
}

// Tally folds one status bucket into the totals
func (s *WaitlistStatsResponse) Tally(status WaitlistStatus, count, seats int) {
	switch status {
	case WaitlistStatusWaiting:
		s.WaitingCount += count
		s.WaitingSeats += seats
	case WaitlistStatusNotified:
		s.NotifiedCount += count
		s.OfferedSeats += seats
	case WaitlistStatusConverted:
		s.ConvertedCount += count
	case WaitlistStatusExpired:
		s.ExpiredCount += count
	case WaitlistStatusCancelled:
		s.CancelledCount += count
	}
	s.TotalEntries += count
}
