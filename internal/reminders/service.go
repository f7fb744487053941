package reminders

import (
	"context"
	"fmt"
	"time"

	"hostly/internal/bookings"
	"hostly/internal/inventory"
	"hostly/internal/notifications"
	"hostly/internal/shared/metrics"
	"hostly/pkg/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type EventFinder interface {
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]inventory.EventInventory, error)
}

type BookingStore interface {
	ListAwaitingReminder(ctx context.Context, eventIDs []uuid.UUID, kind bookings.ReminderKind) ([]bookings.Booking, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, kind bookings.ReminderKind, at time.Time) (bool, error)
}

// Result counts reminders sent in one pass
type Result struct {
	Sent24h int `json:"sent_24h"`
	Sent3h  int `json:"sent_3h"`
}

func (r *Result) Total() int {
	return r.Sent24h + r.Sent3h
}

// Service sends day-before and hours-before reminders for approved bookings
type Service struct {
	events   EventFinder
	bookings BookingStore
	notifier notifications.Notifier
	clock    clockwork.Clock
	log      *logger.Logger
}

func NewService(events EventFinder, bookingStore BookingStore, notifier notifications.Notifier, clock clockwork.Clock, log *logger.Logger) *Service {
	return &Service{
		events:   events,
		bookings: bookingStore,
		notifier: notifier,
		clock:    clock,
		log:      log.WithComponent("reminders"),
	}
}

type window struct {
	kind     bookings.ReminderKind
	from, to time.Time
}

// windows splits the next 24h so an event inside the 3h window only gets
// the 3h reminder
func windows(now time.Time) []window {
	short := now.Add(bookings.Reminder3h.LeadTime())
	return []window{
		{kind: bookings.Reminder24h, from: short, to: now.Add(bookings.Reminder24h.LeadTime())},
		{kind: bookings.Reminder3h, from: now, to: short},
	}
}

// Run sends every reminder that is due. The stamp is written before the
// message is dispatched, so a reminder goes out at most once even when
// several instances run concurrently.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	now := s.clock.Now()
	result := &Result{}

	for _, w := range windows(now) {
		sent, err := s.send(ctx, w, now)
		if err != nil {
			return result, err
		}
		if w.kind == bookings.Reminder3h {
			result.Sent3h = sent
		} else {
			result.Sent24h = sent
		}
	}

	if result.Total() > 0 {
		s.log.Info("Event reminders sent", "sent_24h", result.Sent24h, "sent_3h", result.Sent3h)
	}
	return result, nil
}

func (s *Service) send(ctx context.Context, w window, now time.Time) (int, error) {
	events, err := s.events.ListStartingBetween(ctx, w.from, w.to)
	if err != nil {
		return 0, fmt.Errorf("failed to list events starting soon: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	byID := make(map[uuid.UUID]*inventory.EventInventory, len(events))
	ids := make([]uuid.UUID, 0, len(events))
	for i := range events {
		byID[events[i].EventID] = &events[i]
		ids = append(ids, events[i].EventID)
	}

	pending, err := s.bookings.ListAwaitingReminder(ctx, ids, w.kind)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range pending {
		booking := &pending[i]
		inv, ok := byID[booking.EventID]
		if !ok {
			continue
		}

		stamped, err := s.bookings.MarkReminderSent(ctx, booking.ID, w.kind, now)
		if err != nil {
			s.log.Warn("Failed to stamp reminder", "booking_id", booking.ID.String(), "kind", string(w.kind), "error", err)
			continue
		}
		if !stamped {
			continue
		}

		msg, err := reminderMessage(booking, inv, w.kind, now)
		if err != nil {
			s.log.ErrorWithContext(ctx, "Failed to build reminder", err, map[string]interface{}{
				"booking_id": booking.ID.String(),
			})
			continue
		}
		s.notifier.Dispatch(ctx, msg)
		metrics.RemindersSent.WithLabelValues(string(w.kind)).Inc()
		sent++
	}
	return sent, nil
}

func reminderMessage(booking *bookings.Booking, inv *inventory.EventInventory, kind bookings.ReminderKind, now time.Time) (notifications.Message, error) {
	return notifications.NewNotificationBuilder().
		WithType(notifications.NotificationTypeEventReminder).
		WithRecipient(booking.RequesterEmail, "").
		WithEventContext(booking.EventID).
		WithBookingContext(booking.ID).
		WithCreatedAt(now).
		WithExpiration(inv.StartsAt).
		WithTemplateData(map[string]interface{}{
			"event_title": inv.Title,
			"starts_at":   inv.StartsAt.Format(time.RFC1123),
			"seat_count":  booking.SeatCount,
			"booking_id":  booking.BookingRef,
			"lead_time":   string(kind),
		}).
		Build()
}
