package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"hostly/internal/bookings"
	"hostly/internal/shared/apperr"

	"github.com/google/uuid"
)

type bookingRepo struct {
	s *Store
}

func (r *bookingRepo) Create(ctx context.Context, b *bookings.Booking) error {
	return r.s.do(ctx, func() error {
		for _, existing := range r.s.bookings {
			if existing.EventID == b.EventID && existing.RequesterID == b.RequesterID {
				return fmt.Errorf("booking for event %s: %w", b.EventID, apperr.ErrDuplicateBooking)
			}
		}
		r.s.bookings[b.ID] = *b
		return nil
	})
}

func (r *bookingRepo) Save(ctx context.Context, b *bookings.Booking) error {
	return r.s.do(ctx, func() error {
		r.s.bookings[b.ID] = *b
		return nil
	})
}

func (r *bookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*bookings.Booking, error) {
	var out *bookings.Booking
	err := r.s.do(ctx, func() error {
		b, ok := r.s.bookings[id]
		if !ok {
			return fmt.Errorf("booking %s: %w", id, apperr.ErrNotFound)
		}
		out = &b
		return nil
	})
	return out, err
}

func (r *bookingRepo) GetByEventAndRequester(ctx context.Context, eventID, requesterID uuid.UUID) (*bookings.Booking, error) {
	var out *bookings.Booking
	err := r.s.do(ctx, func() error {
		for _, b := range r.s.bookings {
			if b.EventID == eventID && b.RequesterID == requesterID {
				out = &b
				return nil
			}
		}
		return fmt.Errorf("booking for event %s: %w", eventID, apperr.ErrNotFound)
	})
	return out, err
}

func (r *bookingRepo) Transition(ctx context.Context, id uuid.UUID, from bookings.Status, updates map[string]interface{}) (bool, error) {
	changed := false
	err := r.s.do(ctx, func() error {
		b, ok := r.s.bookings[id]
		if !ok || b.Status != from {
			return nil
		}
		if err := applyBookingUpdates(&b, updates); err != nil {
			return err
		}
		r.s.bookings[id] = b
		changed = true
		return nil
	})
	return changed, err
}

func applyBookingUpdates(b *bookings.Booking, updates map[string]interface{}) error {
	for column, value := range updates {
		switch column {
		case "status":
			b.Status = value.(bookings.Status)
		case "updated_at":
			b.UpdatedAt = value.(time.Time)
		case "approved_at":
			at := value.(time.Time)
			b.ApprovedAt = &at
		case "cancelled_at":
			at := value.(time.Time)
			b.CancelledAt = &at
		case "completed_at":
			at := value.(time.Time)
			b.CompletedAt = &at
		case "cancelled_by":
			b.CancelledBy = value.(string)
		case "cancellation_reason":
			b.CancellationReason = value.(string)
		default:
			return fmt.Errorf("memstore: unsupported booking column %q", column)
		}
	}
	return nil
}

func (r *bookingRepo) ListByRequester(ctx context.Context, requesterID uuid.UUID, query bookings.BookingListQuery) ([]bookings.Booking, int64, error) {
	return r.list(ctx, query, func(b *bookings.Booking) bool { return b.RequesterID == requesterID })
}

func (r *bookingRepo) ListByEvent(ctx context.Context, eventID uuid.UUID, query bookings.BookingListQuery) ([]bookings.Booking, int64, error) {
	return r.list(ctx, query, func(b *bookings.Booking) bool { return b.EventID == eventID })
}

func (r *bookingRepo) list(ctx context.Context, query bookings.BookingListQuery, match func(*bookings.Booking) bool) ([]bookings.Booking, int64, error) {
	query.Normalize()
	var matched []bookings.Booking
	err := r.s.do(ctx, func() error {
		for _, b := range r.s.bookings {
			if match(&b) && (query.Status == "" || string(b.Status) == query.Status) {
				matched = append(matched, b)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := int64(len(matched))
	offset := (query.Page - 1) * query.Limit
	if offset >= len(matched) {
		return []bookings.Booking{}, total, nil
	}
	end := offset + query.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (r *bookingRepo) ListAwaitingReminder(ctx context.Context, eventIDs []uuid.UUID, kind bookings.ReminderKind) ([]bookings.Booking, error) {
	wanted := make(map[uuid.UUID]bool, len(eventIDs))
	for _, id := range eventIDs {
		wanted[id] = true
	}
	var out []bookings.Booking
	err := r.s.do(ctx, func() error {
		for _, b := range r.s.bookings {
			if wanted[b.EventID] && b.IsApproved() && b.SentAt(kind) == nil {
				out = append(out, b)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		return nil
	})
	return out, err
}

func (r *bookingRepo) MarkReminderSent(ctx context.Context, id uuid.UUID, kind bookings.ReminderKind, at time.Time) (bool, error) {
	changed := false
	err := r.s.do(ctx, func() error {
		b, ok := r.s.bookings[id]
		if !ok || b.SentAt(kind) != nil {
			return nil
		}
		if kind == bookings.Reminder3h {
			b.Reminder3hSentAt = &at
		} else {
			b.Reminder24hSentAt = &at
		}
		r.s.bookings[id] = b
		changed = true
		return nil
	})
	return changed, err
}
