package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"hostly/internal/inventory"
	"hostly/internal/shared/apperr"

	"github.com/google/uuid"
)

type inventoryRepo struct {
	s *Store
}

func (r *inventoryRepo) Create(ctx context.Context, inv *inventory.EventInventory) error {
	return r.s.do(ctx, func() error {
		if _, ok := r.s.events[inv.EventID]; ok {
			return fmt.Errorf("event %s already published: %w", inv.EventID, apperr.ErrValidation)
		}
		r.s.events[inv.EventID] = *inv
		return nil
	})
}

func (r *inventoryRepo) Get(ctx context.Context, eventID uuid.UUID) (*inventory.EventInventory, error) {
	var out *inventory.EventInventory
	err := r.s.do(ctx, func() error {
		inv, ok := r.s.events[eventID]
		if !ok {
			return fmt.Errorf("event %s: %w", eventID, apperr.ErrNotFound)
		}
		out = &inv
		return nil
	})
	return out, err
}

// GetForUpdate is Get; the transaction already owns the store
func (r *inventoryRepo) GetForUpdate(ctx context.Context, eventID uuid.UUID) (*inventory.EventInventory, error) {
	return r.Get(ctx, eventID)
}

func (r *inventoryRepo) Reserve(ctx context.Context, eventID uuid.UUID, seats int, at time.Time) error {
	return r.s.do(ctx, func() error {
		inv, ok := r.s.events[eventID]
		if !ok {
			return fmt.Errorf("event %s: %w", eventID, apperr.ErrNotFound)
		}
		if !inv.IsBookable() {
			return fmt.Errorf("event %s is %s: %w", eventID, inv.Status, apperr.ErrEventNotBookable)
		}
		if inv.Available() < seats {
			return fmt.Errorf("requested %d seats, %d available: %w", seats, inv.Available(), apperr.ErrInsufficientCapacity)
		}
		inv.Held += seats
		inv.UpdatedAt = at
		r.s.events[eventID] = inv
		return nil
	})
}

func (r *inventoryRepo) Release(ctx context.Context, eventID uuid.UUID, seats int, at time.Time) error {
	return r.s.do(ctx, func() error {
		inv, ok := r.s.events[eventID]
		if !ok {
			return fmt.Errorf("event %s: %w", eventID, apperr.ErrNotFound)
		}
		var underflow error
		if inv.Held >= seats {
			inv.Held -= seats
		} else {
			underflow = &inventory.UnderflowError{EventID: eventID, Requested: seats, Held: inv.Held}
			inv.Held = 0
		}
		inv.UpdatedAt = at
		r.s.events[eventID] = inv
		return underflow
	})
}

func (r *inventoryRepo) NextWaitlistPosition(ctx context.Context, eventID uuid.UUID, at time.Time) (int, error) {
	var seq int
	err := r.s.do(ctx, func() error {
		inv, ok := r.s.events[eventID]
		if !ok {
			return fmt.Errorf("event %s: %w", eventID, apperr.ErrNotFound)
		}
		inv.WaitlistSeq++
		inv.UpdatedAt = at
		r.s.events[eventID] = inv
		seq = inv.WaitlistSeq
		return nil
	})
	return seq, err
}

func (r *inventoryRepo) UpdateStatus(ctx context.Context, eventID uuid.UUID, status inventory.Status, at time.Time) error {
	return r.s.do(ctx, func() error {
		inv, ok := r.s.events[eventID]
		if !ok {
			return fmt.Errorf("event %s: %w", eventID, apperr.ErrNotFound)
		}
		inv.Status = status
		inv.UpdatedAt = at
		r.s.events[eventID] = inv
		return nil
	})
}

func (r *inventoryRepo) ListStartingBetween(ctx context.Context, from, to time.Time) ([]inventory.EventInventory, error) {
	var out []inventory.EventInventory
	err := r.s.do(ctx, func() error {
		for _, inv := range r.s.events {
			if inv.StartsAt.After(from) && !inv.StartsAt.After(to) {
				out = append(out, inv)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
		return nil
	})
	return out, err
}
