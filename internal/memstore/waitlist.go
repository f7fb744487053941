package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"hostly/internal/shared/apperr"
	"hostly/internal/waitlist"

	"github.com/google/uuid"
)

type waitlistRepo struct {
	s *Store
}

func (r *waitlistRepo) Create(ctx context.Context, entry *waitlist.WaitlistEntry) error {
	return r.s.do(ctx, func() error {
		for _, e := range r.s.entries {
			if e.EventID != entry.EventID {
				continue
			}
			if e.Position == entry.Position || (e.Email == entry.Email && !e.Status.IsTerminal()) {
				return fmt.Errorf("%s is already on the waitlist: %w", entry.Email, apperr.ErrAlreadyWaitlisted)
			}
		}
		r.s.entries[entry.ID] = *entry
		return nil
	})
}

func (r *waitlistRepo) GetByID(ctx context.Context, id uuid.UUID) (*waitlist.WaitlistEntry, error) {
	var out *waitlist.WaitlistEntry
	err := r.s.do(ctx, func() error {
		e, ok := r.s.entries[id]
		if !ok {
			return fmt.Errorf("waitlist entry %s: %w", id, apperr.ErrNotFound)
		}
		out = &e
		return nil
	})
	return out, err
}

func (r *waitlistRepo) FindActiveByEmail(ctx context.Context, eventID uuid.UUID, email string) (*waitlist.WaitlistEntry, error) {
	var out *waitlist.WaitlistEntry
	email = waitlist.NormalizeEmail(email)
	err := r.s.do(ctx, func() error {
		for _, e := range r.s.entries {
			if e.EventID == eventID && e.Email == email && (e.IsWaiting() || e.IsNotified()) {
				out = &e
				return nil
			}
		}
		return fmt.Errorf("no active entry for %s: %w", email, apperr.ErrNotFound)
	})
	return out, err
}

func (r *waitlistRepo) ListWaiting(ctx context.Context, eventID uuid.UUID) ([]waitlist.WaitlistEntry, error) {
	return r.ListByEvent(ctx, eventID, waitlist.WaitlistStatusWaiting)
}

func (r *waitlistRepo) CountWaitingAhead(ctx context.Context, eventID uuid.UUID, position int) (int, error) {
	count := 0
	err := r.s.do(ctx, func() error {
		for _, e := range r.s.entries {
			if e.EventID == eventID && e.IsWaiting() && e.Position < position {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *waitlistRepo) CountActive(ctx context.Context, eventID uuid.UUID) (int, error) {
	count := 0
	err := r.s.do(ctx, func() error {
		for _, e := range r.s.entries {
			if e.EventID == eventID && (e.IsWaiting() || e.IsNotified()) {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *waitlistRepo) ListByEvent(ctx context.Context, eventID uuid.UUID, status waitlist.WaitlistStatus) ([]waitlist.WaitlistEntry, error) {
	var out []waitlist.WaitlistEntry
	err := r.s.do(ctx, func() error {
		for _, e := range r.s.entries {
			if e.EventID == eventID && (status == "" || e.Status == status) {
				out = append(out, e)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
		return nil
	})
	return out, err
}

func (r *waitlistRepo) MarkNotified(ctx context.Context, id uuid.UUID, tokenHash string, issuedAt, expiresAt time.Time) (bool, error) {
	return r.transition(ctx, id, waitlist.WaitlistStatusWaiting, nil, func(e *waitlist.WaitlistEntry) {
		e.Status = waitlist.WaitlistStatusNotified
		e.OfferTokenHash = tokenHash
		e.OfferIssuedAt = &issuedAt
		e.OfferExpiresAt = &expiresAt
		e.UpdatedAt = issuedAt
	})
}

func (r *waitlistRepo) MarkConverted(ctx context.Context, id, bookingID uuid.UUID, at time.Time) (bool, error) {
	live := func(e *waitlist.WaitlistEntry) bool {
		return e.OfferExpiresAt != nil && e.OfferExpiresAt.After(at)
	}
	return r.transition(ctx, id, waitlist.WaitlistStatusNotified, live, func(e *waitlist.WaitlistEntry) {
		e.Status = waitlist.WaitlistStatusConverted
		e.BookingID = &bookingID
		e.OfferTokenHash = ""
		e.ConvertedAt = &at
		e.UpdatedAt = at
	})
}

func (r *waitlistRepo) MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	lapsed := func(e *waitlist.WaitlistEntry) bool {
		return e.OfferExpiresAt != nil && !e.OfferExpiresAt.After(at)
	}
	return r.transition(ctx, id, waitlist.WaitlistStatusNotified, lapsed, func(e *waitlist.WaitlistEntry) {
		e.Status = waitlist.WaitlistStatusExpired
		e.OfferTokenHash = ""
		e.ExpiredAt = &at
		e.UpdatedAt = at
	})
}

func (r *waitlistRepo) MarkCancelled(ctx context.Context, id uuid.UUID, from waitlist.WaitlistStatus, at time.Time) (bool, error) {
	return r.transition(ctx, id, from, nil, func(e *waitlist.WaitlistEntry) {
		e.Status = waitlist.WaitlistStatusCancelled
		e.OfferTokenHash = ""
		e.CancelledAt = &at
		e.UpdatedAt = at
	})
}

func (r *waitlistRepo) transition(ctx context.Context, id uuid.UUID, from waitlist.WaitlistStatus, cond func(*waitlist.WaitlistEntry) bool, apply func(*waitlist.WaitlistEntry)) (bool, error) {
	changed := false
	err := r.s.do(ctx, func() error {
		e, ok := r.s.entries[id]
		if !ok || e.Status != from || (cond != nil && !cond(&e)) {
			return nil
		}
		apply(&e)
		r.s.entries[id] = e
		changed = true
		return nil
	})
	return changed, err
}

func (r *waitlistRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.s.do(ctx, func() error {
		if _, ok := r.s.entries[id]; !ok {
			return fmt.Errorf("waitlist entry %s: %w", id, apperr.ErrNotFound)
		}
		delete(r.s.entries, id)
		return nil
	})
}

func (r *waitlistRepo) ListDueOffers(ctx context.Context, now time.Time, limit int, exclude []uuid.UUID) ([]waitlist.WaitlistEntry, error) {
	skip := make(map[uuid.UUID]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	var out []waitlist.WaitlistEntry
	err := r.s.do(ctx, func() error {
		for _, e := range r.s.entries {
			if _, ok := skip[e.ID]; ok {
				continue
			}
			if e.IsNotified() && e.OfferExpiresAt != nil && !e.OfferExpiresAt.After(now) {
				out = append(out, e)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].OfferExpiresAt.Equal(*out[j].OfferExpiresAt) {
				return out[i].OfferExpiresAt.Before(*out[j].OfferExpiresAt)
			}
			return out[i].ID.String() < out[j].ID.String()
		})
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (r *waitlistRepo) Stats(ctx context.Context, eventID uuid.UUID) (*waitlist.WaitlistStatsResponse, error) {
	stats := &waitlist.WaitlistStatsResponse{EventID: eventID}
	err := r.s.do(ctx, func() error {
		for _, e := range r.s.entries {
			if e.EventID == eventID {
				stats.Tally(e.Status, 1, e.SeatCount)
			}
		}
		return nil
	})
	return stats, err
}
