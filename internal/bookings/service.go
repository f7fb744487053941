package bookings

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"hostly/internal/inventory"
	"hostly/internal/notifications"
	"hostly/internal/payments"
	"hostly/internal/shared/apperr"
	"hostly/internal/shared/database"
	"hostly/internal/shared/identity"
	"hostly/internal/shared/metrics"
	"hostly/internal/waitlist"
	"hostly/pkg/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

// Ledger is the slice of the inventory ledger bookings need
type Ledger interface {
	Reserve(ctx context.Context, eventID uuid.UUID, seatCount int) error
	Release(ctx context.Context, eventID uuid.UUID, seatCount int) error
	Lock(ctx context.Context, eventID uuid.UUID) (*inventory.EventInventory, error)
	Get(ctx context.Context, eventID uuid.UUID) (*inventory.EventInventory, error)
}

// WaitlistService interface for waitlist operations triggered by bookings
type WaitlistService interface {
	Promote(ctx context.Context, eventID uuid.UUID, freedSeats int) (*waitlist.PromotionResult, error)
	RedeemOffer(ctx context.Context, entryID uuid.UUID, token string) (*waitlist.OfferAuthorization, error)
	ClaimOffer(ctx context.Context, entryID uuid.UUID, token string) (*waitlist.WaitlistEntry, error)
	Convert(ctx context.Context, entryID, bookingID uuid.UUID) (*waitlist.WaitlistEntry, error)
	ExpireOffer(ctx context.Context, entryID uuid.UUID) (*waitlist.ExpiryResult, error)
}

// PaymentService records charges for approved bookings
type PaymentService interface {
	Charge(ctx context.Context, bookingID uuid.UUID, amount decimal.Decimal, currency string) (*payments.Payment, error)
	Refund(ctx context.Context, bookingID uuid.UUID) (*payments.Payment, error)
}

// Service interface defines the contract for booking business logic
type Service interface {
	// CreateBooking returns a redirect alongside an ErrInsufficientCapacity
	// error when the event cannot seat the request
	CreateBooking(ctx context.Context, actor identity.Actor, req CreateBookingRequest) (*BookingResponse, *WaitlistRedirect, error)
	ApproveBooking(ctx context.Context, actor identity.Actor, bookingID uuid.UUID) (*BookingResponse, error)
	DeclineBooking(ctx context.Context, actor identity.Actor, bookingID uuid.UUID, reason string) (*Booking, error)
	CancelBooking(ctx context.Context, actor identity.Actor, bookingID uuid.UUID, reason string) (*Booking, error)
	CompleteBooking(ctx context.Context, actor identity.Actor, bookingID uuid.UUID) (*Booking, error)

	GetBooking(ctx context.Context, actor identity.Actor, bookingID uuid.UUID) (*Booking, error)
	ListMyBookings(ctx context.Context, actor identity.Actor, query BookingListQuery) (*BookingListResponse, error)
	ListEventBookings(ctx context.Context, actor identity.Actor, eventID uuid.UUID, query BookingListQuery) (*BookingListResponse, error)
}

// ServiceConfig contains configuration for the booking service
type ServiceConfig struct {
	PlatformFeePercent decimal.Decimal
	MaxSeatsPerRequest int
}

type service struct {
	repo     Repository
	ledger   Ledger
	waitlist WaitlistService
	payments PaymentService
	tx       database.Transactor
	notifier notifications.Notifier
	clock    clockwork.Clock
	config   ServiceConfig
	log      *logger.Logger
}

func NewService(repo Repository, ledger Ledger, waitlistService WaitlistService, paymentService PaymentService, tx database.Transactor, notifier notifications.Notifier, clock clockwork.Clock, config ServiceConfig, log *logger.Logger) Service {
	if config.MaxSeatsPerRequest <= 0 {
		config.MaxSeatsPerRequest = waitlist.DefaultMaxSeatsPerRequest
	}
	return &service{
		repo:     repo,
		ledger:   ledger,
		waitlist: waitlistService,
		payments: paymentService,
		tx:       tx,
		notifier: notifier,
		clock:    clock,
		config:   config,
		log:      log.WithComponent("bookings"),
	}
}

func (s *service) CreateBooking(ctx context.Context, actor identity.Actor, req CreateBookingRequest) (*BookingResponse, *WaitlistRedirect, error) {
	if actor.IsZero() {
		return nil, nil, apperr.ErrUnauthenticated
	}
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid event id: %w", apperr.ErrValidation)
	}
	if req.Offer != nil {
		resp, err := s.createFromOffer(ctx, actor, eventID, req)
		return resp, nil, err
	}
	if req.SeatCount <= 0 || req.SeatCount > s.config.MaxSeatsPerRequest {
		return nil, nil, fmt.Errorf("seat count must be between 1 and %d: %w", s.config.MaxSeatsPerRequest, apperr.ErrValidation)
	}

	var resp *BookingResponse
	err = notifications.Transactional(ctx, s.tx, s.notifier, func(ctx context.Context) error {
		inv, err := s.ledger.Lock(ctx, eventID)
		if err != nil {
			return err
		}
		existing, err := s.checkBookable(ctx, actor, inv)
		if err != nil {
			return err
		}

		if err := s.ledger.Reserve(ctx, eventID, req.SeatCount); err != nil {
			return err
		}

		resp, err = s.open(ctx, actor, inv, existing, req.SeatCount, nil)
		return err
	})
	if errors.Is(err, apperr.ErrInsufficientCapacity) {
		return nil, s.redirect(ctx, eventID, req.SeatCount), err
	}
	if err != nil {
		return nil, nil, err
	}

	s.log.LogBookingCreated(ctx, resp.ID.String(), eventID.String(), actor.UserID.String(), resp.Status.String())
	return resp, nil, nil
}

// createFromOffer turns a waitlist hold into a booking. The seats were
// reserved when the offer was issued, so no second reserve happens here.
func (s *service) createFromOffer(ctx context.Context, actor identity.Actor, eventID uuid.UUID, req CreateBookingRequest) (*BookingResponse, error) {
	entryID, err := uuid.Parse(req.Offer.EntryID)
	if err != nil {
		return nil, fmt.Errorf("invalid waitlist entry id: %w", apperr.ErrValidation)
	}

	// Expires a lapsed offer and runs its cascade before reporting
	auth, err := s.waitlist.RedeemOffer(ctx, entryID, req.Offer.Token)
	if err != nil {
		return nil, err
	}
	if auth.EventID != eventID {
		return nil, fmt.Errorf("offer is for a different event: %w", apperr.ErrOfferInvalid)
	}
	if req.SeatCount != 0 && req.SeatCount != auth.SeatCount {
		return nil, fmt.Errorf("offer holds %d seats, requested %d: %w", auth.SeatCount, req.SeatCount, apperr.ErrValidation)
	}

	var resp *BookingResponse
	err = notifications.Transactional(ctx, s.tx, s.notifier, func(ctx context.Context) error {
		inv, err := s.ledger.Lock(ctx, eventID)
		if err != nil {
			return err
		}
		// Re-validate under the inventory lock
		entry, err := s.waitlist.ClaimOffer(ctx, entryID, req.Offer.Token)
		if err != nil {
			return err
		}
		existing, err := s.checkBookable(ctx, actor, inv)
		if err != nil {
			return err
		}

		resp, err = s.open(ctx, actor, inv, existing, entry.SeatCount, &entry.ID)
		if err != nil {
			return err
		}
		_, err = s.waitlist.Convert(ctx, entry.ID, resp.ID)
		return err
	})
	if errors.Is(err, apperr.ErrOfferExpired) {
		if _, expireErr := s.waitlist.ExpireOffer(ctx, entryID); expireErr != nil {
			s.log.ErrorWithContext(ctx, "Failed to expire lapsed offer", expireErr, map[string]interface{}{
				"entry_id": entryID.String(),
			})
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.log.LogBookingCreated(ctx, resp.ID.String(), eventID.String(), actor.UserID.String(), resp.Status.String())
	return resp, nil
}

// checkBookable returns the requester's reusable booking record, if any
func (s *service) checkBookable(ctx context.Context, actor identity.Actor, inv *inventory.EventInventory) (*Booking, error) {
	if !inv.IsBookable() {
		return nil, fmt.Errorf("event %s is %s: %w", inv.EventID, inv.Status, apperr.ErrEventNotBookable)
	}
	if inv.HostID == actor.UserID {
		return nil, fmt.Errorf("hosts cannot book their own event: %w", apperr.ErrForbidden)
	}

	existing, err := s.repo.GetByEventAndRequester(ctx, inv.EventID, actor.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !existing.Status.Reopenable() {
		return nil, fmt.Errorf("booking %s is %s: %w", existing.ID, existing.Status, apperr.ErrDuplicateBooking)
	}
	return existing, nil
}

// open writes the booking at its initial status, reusing a cancelled record
// when there is one. Seats must already be held.
func (s *service) open(ctx context.Context, actor identity.Actor, inv *inventory.EventInventory, existing *Booking, seatCount int, entryID *uuid.UUID) (*BookingResponse, error) {
	now := s.clock.Now().UTC()
	quote := CalculateQuote(inv.UnitPrice, seatCount, s.config.PlatformFeePercent)

	booking := existing
	if booking == nil {
		ref, err := generateBookingReference(now)
		if err != nil {
			return nil, fmt.Errorf("failed to generate booking reference: %w", err)
		}
		booking = &Booking{
			ID:          uuid.New(),
			EventID:     inv.EventID,
			RequesterID: actor.UserID,
			BookingRef:  ref,
			CreatedAt:   now,
		}
	}

	booking.RequesterEmail = actor.Email
	booking.HostID = inv.HostID
	booking.SeatCount = seatCount
	booking.Currency = inv.Currency
	booking.WaitlistEntryID = entryID
	booking.CancelledBy = ""
	booking.CancellationReason = ""
	booking.ApprovedAt = nil
	booking.CancelledAt = nil
	booking.CompletedAt = nil
	booking.Reminder24hSentAt = nil
	booking.Reminder3hSentAt = nil
	booking.UpdatedAt = now
	quote.apply(booking)

	booking.Status = StatusPending
	if inv.IsInstant() {
		booking.Status = StatusApproved
		booking.ApprovedAt = &now
	}

	var err error
	if existing == nil {
		err = s.repo.Create(ctx, booking)
	} else {
		err = s.repo.Save(ctx, booking)
	}
	if err != nil {
		return nil, err
	}

	resp := &BookingResponse{Booking: *booking}
	if booking.IsApproved() {
		payment, err := s.payments.Charge(ctx, booking.ID, booking.TotalPrice, booking.Currency)
		if err != nil {
			return nil, err
		}
		info := payment.ToPaymentInfo()
		resp.Payment = &info
		s.notifyRequester(ctx, notifications.NotificationTypeBookingConfirmed, booking, inv, map[string]interface{}{
			"total_amount": booking.TotalPrice.StringFixed(2),
		})
	} else {
		s.notifyRequester(ctx, notifications.NotificationTypeBookingPending, booking, inv, nil)
		s.notifyHost(ctx, notifications.NotificationTypeBookingRequested, booking, inv, nil)
	}

	metrics.BookingTransitions.WithLabelValues(booking.Status.String()).Inc()
	return resp, nil
}

func (s *service) redirect(ctx context.Context, eventID uuid.UUID, seatCount int) *WaitlistRedirect {
	redirect := &WaitlistRedirect{
		EventID:        eventID,
		RequestedSeats: seatCount,
		JoinPath:       "/api/v1/waitlist",
		Message:        "Not enough seats are available. Join the waitlist to be offered seats when they free up.",
	}
	if inv, err := s.ledger.Get(ctx, eventID); err == nil {
		redirect.AvailableSeats = inv.Available()
	}
	return redirect
}

func (s *service) ApproveBooking(ctx context.Context, actor identity.Actor, bookingID uuid.UUID) (*BookingResponse, error) {
	var resp *BookingResponse
	err := notifications.Transactional(ctx, s.tx, s.notifier, func(ctx context.Context) error {
		booking, inv, err := s.load(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := requireHost(actor, inv); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		if err := s.transition(ctx, booking, StatusApproved, map[string]interface{}{
			"approved_at": now,
		}, now); err != nil {
			return err
		}
		booking.ApprovedAt = &now

		payment, err := s.payments.Charge(ctx, booking.ID, booking.TotalPrice, booking.Currency)
		if err != nil {
			return err
		}
		info := payment.ToPaymentInfo()
		resp = &BookingResponse{Booking: *booking, Payment: &info}

		s.notifyRequester(ctx, notifications.NotificationTypeBookingConfirmed, booking, inv, map[string]interface{}{
			"total_amount": booking.TotalPrice.StringFixed(2),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.LogBookingTransition(ctx, bookingID.String(), StatusPending.String(), StatusApproved.String(), actor.UserID.String())
	return resp, nil
}

func (s *service) DeclineBooking(ctx context.Context, actor identity.Actor, bookingID uuid.UUID, reason string) (*Booking, error) {
	var booking *Booking
	err := notifications.Transactional(ctx, s.tx, s.notifier, func(ctx context.Context) error {
		var inv *inventory.EventInventory
		var err error
		booking, inv, err = s.load(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := requireHost(actor, inv); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		if err := s.transition(ctx, booking, StatusDeclined, map[string]interface{}{
			"cancelled_at":        now,
			"cancelled_by":        CancelledByHost,
			"cancellation_reason": reason,
		}, now); err != nil {
			return err
		}
		booking.CancelledAt = &now
		booking.CancelledBy = CancelledByHost
		booking.CancellationReason = reason

		if err := s.freeSeats(ctx, booking); err != nil {
			return err
		}

		s.notifyRequester(ctx, notifications.NotificationTypeBookingDeclined, booking, inv, map[string]interface{}{
			"reason": reason,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.LogBookingTransition(ctx, bookingID.String(), StatusPending.String(), StatusDeclined.String(), actor.UserID.String())
	return booking, nil
}

func (s *service) CancelBooking(ctx context.Context, actor identity.Actor, bookingID uuid.UUID, reason string) (*Booking, error) {
	var booking *Booking
	var from Status
	err := notifications.Transactional(ctx, s.tx, s.notifier, func(ctx context.Context) error {
		var inv *inventory.EventInventory
		var err error
		booking, inv, err = s.load(ctx, bookingID)
		if err != nil {
			return err
		}

		cancelledBy := ""
		switch {
		case booking.RequesterID == actor.UserID:
			cancelledBy = CancelledByRequester
		case inv.HostID == actor.UserID || actor.IsAdmin():
			cancelledBy = CancelledByHost
		default:
			return fmt.Errorf("only the requester or host can cancel booking %s: %w", bookingID, apperr.ErrForbidden)
		}

		from = booking.Status
		now := s.clock.Now().UTC()
		if err := s.transition(ctx, booking, StatusCancelled, map[string]interface{}{
			"cancelled_at":        now,
			"cancelled_by":        cancelledBy,
			"cancellation_reason": reason,
		}, now); err != nil {
			return err
		}
		booking.CancelledAt = &now
		booking.CancelledBy = cancelledBy
		booking.CancellationReason = reason

		data := map[string]interface{}{
			"reason":       reason,
			"cancelled_by": cancelledBy,
		}
		if from == StatusApproved {
			refund, err := s.payments.Refund(ctx, booking.ID)
			if err != nil {
				return err
			}
			if refund != nil && refund.IsRefunded() {
				data["refund_amount"] = refund.Amount.StringFixed(2)
			}
		}

		if err := s.freeSeats(ctx, booking); err != nil {
			return err
		}

		// Tell the other party
		if cancelledBy == CancelledByRequester {
			s.notifyHost(ctx, notifications.NotificationTypeBookingCancelled, booking, inv, data)
		} else {
			s.notifyRequester(ctx, notifications.NotificationTypeBookingCancelled, booking, inv, data)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.LogBookingTransition(ctx, bookingID.String(), from.String(), StatusCancelled.String(), actor.UserID.String())
	return booking, nil
}

func (s *service) CompleteBooking(ctx context.Context, actor identity.Actor, bookingID uuid.UUID) (*Booking, error) {
	var booking *Booking
	err := notifications.Transactional(ctx, s.tx, s.notifier, func(ctx context.Context) error {
		var inv *inventory.EventInventory
		var err error
		booking, inv, err = s.load(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := requireHost(actor, inv); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		if err := s.transition(ctx, booking, StatusCompleted, map[string]interface{}{
			"completed_at": now,
		}, now); err != nil {
			return err
		}
		booking.CompletedAt = &now

		s.notifyRequester(ctx, notifications.NotificationTypeBookingCompleted, booking, inv, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.LogBookingTransition(ctx, bookingID.String(), StatusApproved.String(), StatusCompleted.String(), actor.UserID.String())
	return booking, nil
}

func (s *service) GetBooking(ctx context.Context, actor identity.Actor, bookingID uuid.UUID) (*Booking, error) {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.RequesterID != actor.UserID && booking.HostID != actor.UserID && !actor.IsAdmin() {
		return nil, fmt.Errorf("booking %s belongs to another user: %w", bookingID, apperr.ErrForbidden)
	}
	return booking, nil
}

func (s *service) ListMyBookings(ctx context.Context, actor identity.Actor, query BookingListQuery) (*BookingListResponse, error) {
	bookings, total, err := s.repo.ListByRequester(ctx, actor.UserID, query)
	if err != nil {
		return nil, err
	}
	return listResponse(bookings, total, query), nil
}

func (s *service) ListEventBookings(ctx context.Context, actor identity.Actor, eventID uuid.UUID, query BookingListQuery) (*BookingListResponse, error) {
	inv, err := s.ledger.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireHost(actor, inv); err != nil {
		return nil, err
	}
	bookings, total, err := s.repo.ListByEvent(ctx, eventID, query)
	if err != nil {
		return nil, err
	}
	return listResponse(bookings, total, query), nil
}

// load reads the booking and locks its event inventory row. The inventory
// is always locked before booking and waitlist rows.
func (s *service) load(ctx context.Context, bookingID uuid.UUID) (*Booking, *inventory.EventInventory, error) {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	inv, err := s.ledger.Lock(ctx, booking.EventID)
	if err != nil {
		return nil, nil, err
	}
	return booking, inv, nil
}

func (s *service) transition(ctx context.Context, booking *Booking, to Status, updates map[string]interface{}, now time.Time) error {
	from := booking.Status
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("cannot move booking from %s to %s: %w", from, to, apperr.ErrInvalidTransition)
	}

	updates["status"] = to
	updates["updated_at"] = now
	ok, err := s.repo.Transition(ctx, booking.ID, from, updates)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("booking %s changed concurrently: %w", booking.ID, apperr.ErrInvalidTransition)
	}

	booking.Status = to
	booking.UpdatedAt = now
	metrics.BookingTransitions.WithLabelValues(to.String()).Inc()
	return nil
}

// freeSeats returns the booking's seats and offers them to the waitlist in
// the same unit of work
func (s *service) freeSeats(ctx context.Context, booking *Booking) error {
	if err := s.ledger.Release(ctx, booking.EventID, booking.SeatCount); err != nil {
		return err
	}
	if _, err := s.waitlist.Promote(ctx, booking.EventID, booking.SeatCount); err != nil {
		return fmt.Errorf("promotion after releasing booking %s: %w", booking.ID, err)
	}
	return nil
}

func requireHost(actor identity.Actor, inv *inventory.EventInventory) error {
	if inv.HostID != actor.UserID && !actor.IsAdmin() {
		return fmt.Errorf("only the host of event %s can do this: %w", inv.EventID, apperr.ErrForbidden)
	}
	return nil
}

func listResponse(bookings []Booking, total int64, query BookingListQuery) *BookingListResponse {
	query.Normalize()
	if bookings == nil {
		bookings = []Booking{}
	}
	return &BookingListResponse{
		Bookings:   bookings,
		TotalCount: total,
		Page:       query.Page,
		Limit:      query.Limit,
		TotalPages: CalculateTotalPages(total, query.Limit),
	}
}

func (s *service) notifyRequester(ctx context.Context, notType notifications.NotificationType, booking *Booking, inv *inventory.EventInventory, data map[string]interface{}) {
	s.notify(ctx, notType, booking.RequesterEmail, booking, inv, data)
}

func (s *service) notifyHost(ctx context.Context, notType notifications.NotificationType, booking *Booking, inv *inventory.EventInventory, data map[string]interface{}) {
	s.notify(ctx, notType, inv.HostEmail, booking, inv, data)
}

func (s *service) notify(ctx context.Context, notType notifications.NotificationType, to string, booking *Booking, inv *inventory.EventInventory, data map[string]interface{}) {
	msg, err := notifications.NewNotificationBuilder().
		WithType(notType).
		WithRecipient(to, "").
		WithEventContext(booking.EventID).
		WithBookingContext(booking.ID).
		WithCreatedAt(s.clock.Now()).
		WithTemplateData(map[string]interface{}{
			"event_title":     inv.Title,
			"seat_count":      booking.SeatCount,
			"booking_id":      booking.BookingRef,
			"requester_email": booking.RequesterEmail,
			"starts_at":       inv.StartsAt.Format(time.RFC1123),
			"currency":        booking.Currency,
		}).
		WithTemplateData(data).
		Build()
	if err != nil {
		s.log.ErrorWithContext(ctx, "Failed to build booking notification", err, map[string]interface{}{
			"type":       string(notType),
			"booking_id": booking.ID.String(),
		})
		return
	}
	notifications.Enqueue(ctx, msg)
}

// generateBookingReference generates a unique booking reference
func generateBookingReference(now time.Time) (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	randomPart := make([]byte, 6)

	for i := range randomPart {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		randomPart[i] = letters[num.Int64()]
	}

	return fmt.Sprintf("HST-%s-%s", now.Format("20060102"), string(randomPart)), nil
}
