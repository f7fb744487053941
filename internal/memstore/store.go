// Package memstore keeps every repository in process memory behind one
// mutex. A transaction holds the mutex for its whole duration and restores a
// snapshot when it fails, which gives the same all or nothing units of work
// as the Postgres store for single process deployments and tests.
package memstore

import (
	"context"
	"sync"

	"hostly/internal/bookings"
	"hostly/internal/inventory"
	"hostly/internal/payments"
	"hostly/internal/waitlist"

	"github.com/google/uuid"
)

type txKey struct{}

type state struct {
	events   map[uuid.UUID]inventory.EventInventory
	entries  map[uuid.UUID]waitlist.WaitlistEntry
	bookings map[uuid.UUID]bookings.Booking
	payments map[uuid.UUID]payments.Payment
	// payment insertion order, newest last
	paymentOrder []uuid.UUID
}

type Store struct {
	mu sync.Mutex
	state
}

func New() *Store {
	return &Store{state: state{
		events:   make(map[uuid.UUID]inventory.EventInventory),
		entries:  make(map[uuid.UUID]waitlist.WaitlistEntry),
		bookings: make(map[uuid.UUID]bookings.Booking),
		payments: make(map[uuid.UUID]payments.Payment),
	}}
}

// WithinTx implements database.Transactor
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if r := recover(); r != nil {
			s.state = snap
			panic(r)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.state = snap
	}
	return err
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// do runs fn under the store mutex unless ctx already holds it
func (s *Store) do(ctx context.Context, fn func() error) error {
	if s.inTx(ctx) {
		return fn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *Store) snapshot() state {
	snap := state{
		events:       make(map[uuid.UUID]inventory.EventInventory, len(s.events)),
		entries:      make(map[uuid.UUID]waitlist.WaitlistEntry, len(s.entries)),
		bookings:     make(map[uuid.UUID]bookings.Booking, len(s.bookings)),
		payments:     make(map[uuid.UUID]payments.Payment, len(s.payments)),
		paymentOrder: append([]uuid.UUID(nil), s.paymentOrder...),
	}
	for k, v := range s.events {
		snap.events[k] = v
	}
	for k, v := range s.entries {
		snap.entries[k] = v
	}
	for k, v := range s.bookings {
		snap.bookings[k] = v
	}
	for k, v := range s.payments {
		snap.payments[k] = v
	}
	return snap
}

// Audit reports an event's held counter next to the seats its bookings and
// outstanding offers account for. The two are equal when the ledger is
// consistent.
func (s *Store) Audit(eventID uuid.UUID) (held, accounted int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held = s.events[eventID].Held
	for _, b := range s.bookings {
		if b.EventID == eventID && b.Status.HoldsSeats() {
			accounted += b.SeatCount
		}
	}
	for _, e := range s.entries {
		if e.EventID == eventID && e.IsNotified() {
			accounted += e.SeatCount
		}
	}
	return held, accounted
}

// Inventory returns the inventory repository view
func (s *Store) Inventory() inventory.Repository { return &inventoryRepo{s} }

// Waitlist returns the waitlist repository view
func (s *Store) Waitlist() waitlist.Repository { return &waitlistRepo{s} }

// Bookings returns the booking repository view
func (s *Store) Bookings() bookings.Repository { return &bookingRepo{s} }

// Payments returns the payment repository view
func (s *Store) Payments() payments.Repository { return &paymentRepo{s} }
