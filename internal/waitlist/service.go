package waitlist

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"hostly/internal/inventory"
	"hostly/internal/notifications"
	"hostly/internal/offers"
	"hostly/internal/shared/apperr"
	"hostly/internal/shared/database"
	"hostly/internal/shared/identity"
	"hostly/internal/shared/metrics"
	"hostly/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Ledger is the slice of the inventory ledger the waitlist needs
type Ledger interface {
	Reserve(ctx context.Context, eventID uuid.UUID, seatCount int) error
	Release(ctx context.Context, eventID uuid.UUID, seatCount int) error
	Lock(ctx context.Context, eventID uuid.UUID) (*inventory.EventInventory, error)
	Get(ctx context.Context, eventID uuid.UUID) (*inventory.EventInventory, error)
	NextWaitlistPosition(ctx context.Context, eventID uuid.UUID) (int, error)
}

// Service interface defines the contract for waitlist business operations
type Service interface {
	// Guest operations
	Join(ctx context.Context, req JoinWaitlistRequest, userID *uuid.UUID) (*WaitlistEntry, error)
	Cancel(ctx context.Context, entryID uuid.UUID, contact Contact) (*WaitlistEntry, error)
	Remove(ctx context.Context, entryID uuid.UUID, contact Contact) error
	GetEntry(ctx context.Context, entryID uuid.UUID, contact Contact) (*EntryResponse, error)
	RedeemOffer(ctx context.Context, entryID uuid.UUID, token string) (*OfferAuthorization, error)

	// Seat driven operations
	Promote(ctx context.Context, eventID uuid.UUID, freedSeats int) (*PromotionResult, error)
	ClaimOffer(ctx context.Context, entryID uuid.UUID, token string) (*WaitlistEntry, error)
	Convert(ctx context.Context, entryID, bookingID uuid.UUID) (*WaitlistEntry, error)

	// Reconciliation
	ExpireOffer(ctx context.Context, entryID uuid.UUID) (*ExpiryResult, error)
	ListDueOffers(ctx context.Context, limit int, exclude []uuid.UUID) ([]WaitlistEntry, error)

	// Host operations
	Stats(ctx context.Context, actor identity.Actor, eventID uuid.UUID) (*WaitlistStatsResponse, error)
}

// ServiceConfig contains configuration for the waitlist service
type ServiceConfig struct {
	MaxSeatsPerRequest int
	MaxWaitlistSize    int
	PublicBaseURL      string
}

// DefaultServiceConfig returns default service configuration
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxSeatsPerRequest: DefaultMaxSeatsPerRequest,
		MaxWaitlistSize:    MaxWaitlistSize,
		PublicBaseURL:      "http://localhost:8080",
	}
}

type service struct {
	repo     Repository
	ledger   Ledger
	issuer   *offers.Issuer
	tx       database.Transactor
	notifier notifications.Notifier
	config   ServiceConfig
	validate *validator.Validate
	log      *logger.Logger
}

func NewService(repo Repository, ledger Ledger, issuer *offers.Issuer, tx database.Transactor, notifier notifications.Notifier, config ServiceConfig, log *logger.Logger) Service {
	if config.MaxSeatsPerRequest <= 0 {
		config.MaxSeatsPerRequest = DefaultMaxSeatsPerRequest
	}
	if config.MaxWaitlistSize <= 0 {
		config.MaxWaitlistSize = MaxWaitlistSize
	}
	return &service{
		repo:     repo,
		ledger:   ledger,
		issuer:   issuer,
		tx:       tx,
		notifier: notifier,
		config:   config,
		validate: validator.New(),
		log:      log.WithComponent("waitlist"),
	}
}

func (s *service) Join(ctx context.Context, req JoinWaitlistRequest, userID *uuid.UUID) (*WaitlistEntry, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), apperr.ErrValidation)
	}
	if req.SeatCount > s.config.MaxSeatsPerRequest {
		return nil, fmt.Errorf("at most %d seats per request: %w", s.config.MaxSeatsPerRequest, apperr.ErrValidation)
	}
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return nil, fmt.Errorf("invalid event id: %w", apperr.ErrValidation)
	}

	var entry *WaitlistEntry
	err = notifications.Transactional(ctx, s.tx, s.notifier, func(ctx context.Context) error {
		// The inventory row lock serializes joins per event
		inv, err := s.ledger.Lock(ctx, eventID)
		if err != nil {
			return err
		}
		if !inv.IsBookable() {
			return fmt.Errorf("event %s is %s: %w", eventID, inv.Status, apperr.ErrEventNotBookable)
		}

		email := NormalizeEmail(req.Email)
		if _, err := s.repo.FindActiveByEmail(ctx, eventID, email); err == nil {
			return fmt.Errorf("%s is already on the waitlist for event %s: %w", email, eventID, apperr.ErrAlreadyWaitlisted)
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		active, err := s.repo.CountActive(ctx, eventID)
		if err != nil {
			return err
		}
		if active >= s.config.MaxWaitlistSize {
			return fmt.Errorf("waitlist for event %s is full: %w", eventID, apperr.ErrValidation)
		}

		position, err := s.ledger.NextWaitlistPosition(ctx, eventID)
		if err != nil {
			return err
		}

		now := s.issuer.Now()
		entry = &WaitlistEntry{
			ID:        uuid.New(),
			EventID:   eventID,
			UserID:    userID,
			Email:     email,
			Name:      strings.TrimSpace(req.Name),
			Phone:     strings.TrimSpace(req.Phone),
			SeatCount: req.SeatCount,
			Position:  position,
			Status:    WaitlistStatusWaiting,
			JoinedAt:  now,
			UpdatedAt: now,
		}
		if err := s.repo.Create(ctx, entry); err != nil {
			return err
		}

		s.enqueue(ctx, notifications.NotificationTypeWaitlistJoined, entry, inv, map[string]interface{}{
			"position": entry.Position,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.WaitlistEntries.WithLabelValues(string(WaitlistStatusWaiting)).Inc()
	s.log.LogWaitlistJoined(ctx, entry.ID.String(), eventID.String(), entry.Position)
	return entry, nil
}

// Promote offers freed seats to waiting entries in position order. An entry
// asking for more seats than remain is skipped and keeps its place, so a
// later smaller request can be served first: best fit within FIFO, not
// strict FIFO. Each offered entry holds its seats in the ledger until the
// offer is converted, expires or is cancelled.
func (s *service) Promote(ctx context.Context, eventID uuid.UUID, freedSeats int) (*PromotionResult, error) {
	var result *PromotionResult
	err := notifications.Transactional(ctx, s.tx, s.notifier, func(ctx context.Context) error {
		var err error
		result, err = s.promote(ctx, eventID, freedSeats)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) promote(ctx context.Context, eventID uuid.UUID, freedSeats int) (*PromotionResult, error) {
	result := &PromotionResult{Notified: []WaitlistEntry{}}
	if freedSeats <= 0 {
		return result, nil
	}

	inv, err := s.ledger.Lock(ctx, eventID)
	if err != nil {
		return nil, err
	}

	budget := freedSeats
	if inv.Available() < budget {
		budget = inv.Available()
	}
	if budget <= 0 || !inv.IsBookable() {
		result.Unallocated = budget
		if result.Unallocated < 0 {
			result.Unallocated = 0
		}
		return result, nil
	}

	waiting, err := s.repo.ListWaiting(ctx, eventID)
	if err != nil {
		return nil, err
	}

	for i := range waiting {
		if budget == 0 {
			break
		}
		entry := waiting[i]
		if entry.SeatCount > budget {
			continue
		}

		offer, err := s.issuer.Issue()
		if err != nil {
			return nil, err
		}
		if err := s.ledger.Reserve(ctx, eventID, entry.SeatCount); err != nil {
			return nil, fmt.Errorf("failed to hold seats for entry %s: %w", entry.ID, err)
		}
		ok, err := s.repo.MarkNotified(ctx, entry.ID, offer.TokenHash, offer.IssuedAt, offer.ExpiresAt)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Cancelled between the scan and the update; give the hold back
			if err := s.ledger.Release(ctx, eventID, entry.SeatCount); err != nil {
				return nil, err
			}
			continue
		}

		entry.Status = WaitlistStatusNotified
		entry.OfferTokenHash = offer.TokenHash
		entry.OfferIssuedAt = &offer.IssuedAt
		entry.OfferExpiresAt = &offer.ExpiresAt
		entry.UpdatedAt = offer.IssuedAt
		budget -= entry.SeatCount
		result.Notified = append(result.Notified, entry)

		metrics.WaitlistEntries.WithLabelValues(string(WaitlistStatusNotified)).Inc()
		s.log.LogOfferIssued(ctx, entry.ID.String(), eventID.String(), entry.SeatCount, offer.ExpiresAt)
		s.enqueueOffer(ctx, &entry, inv, offer)
	}

	result.Unallocated = budget
	return result, nil
}

func (s *service) Cancel(ctx context.Context, entryID uuid.UUID, contact Contact) (*WaitlistEntry, error) {
	var entry *WaitlistEntry
	err := notifications.Transactional(ctx, s.tx, s.notifier, func(ctx context.Context) error {
		var err error
		entry, err = s.cancel(ctx, entryID, contact)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) cancel(ctx context.Context, entryID uuid.UUID, contact Contact) (*WaitlistEntry, error) {
	entry, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !entry.ContactMatches(contact) {
		return nil, fmt.Errorf("contact does not match entry %s: %w", entryID, apperr.ErrIdentityMismatch)
	}
	if !entry.Status.CanTransitionTo(WaitlistStatusCancelled) {
		return nil, fmt.Errorf("cannot cancel %s entry: %w", entry.Status, apperr.ErrInvalidTransition)
	}

	inv, err := s.ledger.Lock(ctx, entry.EventID)
	if err != nil {
		return nil, err
	}

	from := entry.Status
	now := s.issuer.Now()
	ok, err := s.repo.MarkCancelled(ctx, entry.ID, from, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("entry %s changed concurrently: %w", entryID, apperr.ErrInvalidTransition)
	}

	entry.Status = WaitlistStatusCancelled
	entry.OfferTokenHash = ""
	entry.CancelledAt = &now
	entry.UpdatedAt = now

	if from == WaitlistStatusNotified {
		if err := s.ledger.Release(ctx, entry.EventID, entry.SeatCount); err != nil {
			return nil, err
		}
		if _, err := s.promote(ctx, entry.EventID, entry.SeatCount); err != nil {
			return nil, err
		}
	}

	metrics.WaitlistEntries.WithLabelValues(string(WaitlistStatusCancelled)).Inc()
	s.enqueue(ctx, notifications.NotificationTypeWaitlistCancelled, entry, inv, nil)
	return entry, nil
}

// Remove deletes the entry at the guest's request. A live offer is
// cancelled first so its seats cascade to the next guest.
func (s *service) Remove(ctx context.Context, entryID uuid.UUID, contact Contact) error {
	return notifications.Transactional(ctx, s.tx, s.notifier, func(ctx context.Context) error {
		entry, err := s.repo.GetByID(ctx, entryID)
		if err != nil {
			return err
		}
		if !entry.ContactMatches(contact) {
			return fmt.Errorf("contact does not match entry %s: %w", entryID, apperr.ErrIdentityMismatch)
		}
		if entry.IsNotified() || entry.IsWaiting() {
			if _, err := s.cancel(ctx, entryID, contact); err != nil {
				return err
			}
		}
		return s.repo.Delete(ctx, entryID)
	})
}

func (s *service) GetEntry(ctx context.Context, entryID uuid.UUID, contact Contact) (*EntryResponse, error) {
	entry, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !entry.ContactMatches(contact) {
		return nil, fmt.Errorf("contact does not match entry %s: %w", entryID, apperr.ErrIdentityMismatch)
	}

	resp := &EntryResponse{
		ID:             entry.ID,
		EventID:        entry.EventID,
		Position:       entry.Position,
		SeatCount:      entry.SeatCount,
		Status:         entry.Status,
		JoinedAt:       entry.JoinedAt,
		OfferExpiresAt: entry.OfferExpiresAt,
		BookingID:      entry.BookingID,
	}
	if entry.IsWaiting() {
		ahead, err := s.repo.CountWaitingAhead(ctx, entry.EventID, entry.Position)
		if err != nil {
			return nil, err
		}
		resp.AheadCount = &ahead
	}
	if entry.IsNotified() && entry.OfferExpiresAt != nil {
		remaining := int64(s.issuer.RemainingTime(*entry.OfferExpiresAt) / time.Second)
		resp.RemainingSeconds = &remaining
	}
	return resp, nil
}

// RedeemOffer validates a token and returns the authorization a booking
// needs. A lapsed offer is expired on the spot and the cascade runs before
// ErrOfferExpired is returned.
func (s *service) RedeemOffer(ctx context.Context, entryID uuid.UUID, token string) (*OfferAuthorization, error) {
	entry, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	err = s.issuer.Validate(entry.OfferState(), token)
	if errors.Is(err, apperr.ErrOfferExpired) {
		if _, expireErr := s.ExpireOffer(ctx, entryID); expireErr != nil {
			s.log.ErrorWithContext(ctx, "Failed to expire lapsed offer", expireErr, map[string]interface{}{
				"entry_id": entryID.String(),
			})
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	return &OfferAuthorization{
		EntryID:          entry.ID,
		EventID:          entry.EventID,
		SeatCount:        entry.SeatCount,
		Email:            entry.Email,
		ExpiresAt:        *entry.OfferExpiresAt,
		RemainingSeconds: int64(s.issuer.RemainingTime(*entry.OfferExpiresAt) / time.Second),
	}, nil
}

// ClaimOffer validates the token inside the caller's unit of work. The
// held seats transfer to the booking the caller creates, followed by Convert.
func (s *service) ClaimOffer(ctx context.Context, entryID uuid.UUID, token string) (*WaitlistEntry, error) {
	entry, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if err := s.issuer.Validate(entry.OfferState(), token); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) Convert(ctx context.Context, entryID, bookingID uuid.UUID) (*WaitlistEntry, error) {
	var entry *WaitlistEntry
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByID(ctx, entryID)
		if err != nil {
			return err
		}
		switch {
		case current.Status != WaitlistStatusNotified:
			return fmt.Errorf("cannot convert %s entry: %w", current.Status, apperr.ErrInvalidTransition)
		case current.OfferExpiresAt == nil:
			return fmt.Errorf("entry %s has no offer: %w", entryID, apperr.ErrOfferInvalid)
		case s.issuer.IsExpired(*current.OfferExpiresAt):
			return fmt.Errorf("offer for entry %s expired: %w", entryID, apperr.ErrOfferExpired)
		}

		now := s.issuer.Now()
		ok, err := s.repo.MarkConverted(ctx, entryID, bookingID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("entry %s already redeemed: %w", entryID, apperr.ErrInvalidTransition)
		}

		current.Status = WaitlistStatusConverted
		current.BookingID = &bookingID
		current.OfferTokenHash = ""
		current.ConvertedAt = &now
		current.UpdatedAt = now
		entry = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.WaitlistEntries.WithLabelValues(string(WaitlistStatusConverted)).Inc()
	return entry, nil
}

// ExpireOffer moves a lapsed offer to expired, returns its seats and runs
// the promotion cascade. It is a no-op for entries that are no longer
// notified or whose offer is still live, so repeated sweeps are harmless.
func (s *service) ExpireOffer(ctx context.Context, entryID uuid.UUID) (*ExpiryResult, error) {
	result := &ExpiryResult{Promoted: PromotionResult{Notified: []WaitlistEntry{}}}
	err := notifications.Transactional(ctx, s.tx, s.notifier, func(ctx context.Context) error {
		entry, err := s.repo.GetByID(ctx, entryID)
		if err != nil {
			return err
		}
		result.Entry = entry
		if !entry.IsNotified() || entry.OfferExpiresAt == nil || !s.issuer.IsExpired(*entry.OfferExpiresAt) {
			return nil
		}

		inv, err := s.ledger.Lock(ctx, entry.EventID)
		if err != nil {
			return err
		}

		now := s.issuer.Now()
		ok, err := s.repo.MarkExpired(ctx, entryID, now)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		entry.Status = WaitlistStatusExpired
		entry.OfferTokenHash = ""
		entry.ExpiredAt = &now
		entry.UpdatedAt = now
		result.Expired = true

		if err := s.ledger.Release(ctx, entry.EventID, entry.SeatCount); err != nil {
			return err
		}
		promoted, err := s.promote(ctx, entry.EventID, entry.SeatCount)
		if err != nil {
			return err
		}
		result.Promoted = *promoted

		s.enqueue(ctx, notifications.NotificationTypeWaitlistOfferExpired, entry, inv, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Expired {
		metrics.WaitlistEntries.WithLabelValues(string(WaitlistStatusExpired)).Inc()
		s.log.LogOfferExpired(ctx, entryID.String(), result.Entry.EventID.String(), result.Entry.SeatCount)
	}
	return result, nil
}

func (s *service) ListDueOffers(ctx context.Context, limit int, exclude []uuid.UUID) ([]WaitlistEntry, error) {
	return s.repo.ListDueOffers(ctx, s.issuer.Now(), limit, exclude)
}

func (s *service) Stats(ctx context.Context, actor identity.Actor, eventID uuid.UUID) (*WaitlistStatsResponse, error) {
	inv, err := s.ledger.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if inv.HostID != actor.UserID && !actor.IsAdmin() {
		return nil, fmt.Errorf("only the host can view waitlist stats: %w", apperr.ErrForbidden)
	}
	return s.repo.Stats(ctx, eventID)
}

func (s *service) offerURL(entryID uuid.UUID, token string) string {
	base := strings.TrimRight(s.config.PublicBaseURL, "/")
	return fmt.Sprintf("%s/waitlist/%s/redeem?token=%s", base, entryID, url.QueryEscape(token))
}

func (s *service) enqueueOffer(ctx context.Context, entry *WaitlistEntry, inv *inventory.EventInventory, offer offers.Offer) {
	msg, err := s.builder(notifications.NotificationTypeWaitlistSpotAvailable, entry, inv, map[string]interface{}{
		"offer_url":  s.offerURL(entry.ID, offer.Token),
		"expires_at": offer.ExpiresAt.Format(time.RFC1123),
	}).WithExpiration(offer.ExpiresAt).Build()
	if err != nil {
		s.log.ErrorWithContext(ctx, "Failed to build offer notification", err, nil)
		return
	}
	notifications.Enqueue(ctx, msg)
}

func (s *service) enqueue(ctx context.Context, notType notifications.NotificationType, entry *WaitlistEntry, inv *inventory.EventInventory, data map[string]interface{}) {
	msg, err := s.builder(notType, entry, inv, data).Build()
	if err != nil {
		s.log.ErrorWithContext(ctx, "Failed to build waitlist notification", err, map[string]interface{}{
			"type": string(notType),
		})
		return
	}
	notifications.Enqueue(ctx, msg)
}

func (s *service) builder(notType notifications.NotificationType, entry *WaitlistEntry, inv *inventory.EventInventory, data map[string]interface{}) *notifications.NotificationBuilder {
	return notifications.NewNotificationBuilder().
		WithType(notType).
		WithRecipient(entry.Email, entry.Name).
		WithEventContext(entry.EventID).
		WithWaitlistContext(entry.ID).
		WithCreatedAt(s.issuer.Now()).
		WithTemplateData(map[string]interface{}{
			"event_title": inv.Title,
			"seat_count":  entry.SeatCount,
			"entry_id":    entry.ID.String(),
		}).
		WithTemplateData(data)
}
