package inventory

import (
	"context"
	"fmt"
	"strings"

	"hostly/internal/shared/apperr"
	"hostly/internal/shared/identity"
	"hostly/pkg/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type Service interface {
	Publish(ctx context.Context, actor identity.Actor, req PublishEventRequest) (*EventInventory, error)
	Get(ctx context.Context, eventID uuid.UUID) (*EventInventory, error)
	Availability(ctx context.Context, eventID uuid.UUID) (*Availability, error)
	Close(ctx context.Context, actor identity.Actor, eventID uuid.UUID) (*EventInventory, error)
}

type service struct {
	repo            Repository
	clock           clockwork.Clock
	log             *logger.Logger
	defaultCurrency string
}

func NewService(repo Repository, clock clockwork.Clock, log *logger.Logger, defaultCurrency string) Service {
	return &service{
		repo:            repo,
		clock:           clock,
		log:             log.WithComponent("inventory"),
		defaultCurrency: defaultCurrency,
	}
}

func (s *service) Publish(ctx context.Context, actor identity.Actor, req PublishEventRequest) (*EventInventory, error) {
	if actor.Role != identity.RoleHost && !actor.IsAdmin() {
		return nil, fmt.Errorf("only hosts can publish events: %w", apperr.ErrForbidden)
	}
	if req.Capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive: %w", apperr.ErrValidation)
	}
	if req.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("unit price cannot be negative: %w", apperr.ErrValidation)
	}

	eventID := uuid.New()
	if req.EventID != "" {
		parsed, err := uuid.Parse(req.EventID)
		if err != nil {
			return nil, fmt.Errorf("invalid event id: %w", apperr.ErrValidation)
		}
		eventID = parsed
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeRequest
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}

	now := s.clock.Now().UTC()
	inv := &EventInventory{
		EventID:   eventID,
		HostID:    actor.UserID,
		HostEmail: actor.Email,
		Title:     strings.TrimSpace(req.Title),
		StartsAt:  req.StartsAt.UTC(),
		Capacity:  req.Capacity,
		UnitPrice: req.UnitPrice.Round(2),
		Currency:  currency,
		Mode:      mode,
		Status:    StatusPublished,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to publish event: %w", err)
	}

	s.log.LogEventPublished(ctx, inv.EventID.String(), inv.HostID.String(), inv.Capacity)
	return inv, nil
}

func (s *service) Get(ctx context.Context, eventID uuid.UUID) (*EventInventory, error) {
	return s.repo.Get(ctx, eventID)
}

func (s *service) Availability(ctx context.Context, eventID uuid.UUID) (*Availability, error) {
	inv, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	av := inv.ToAvailability()
	return &av, nil
}

// Close stops new bookings; existing bookings and offers are untouched
func (s *service) Close(ctx context.Context, actor identity.Actor, eventID uuid.UUID) (*EventInventory, error) {
	inv, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if inv.HostID != actor.UserID && !actor.IsAdmin() {
		return nil, fmt.Errorf("only the host can close event %s: %w", eventID, apperr.ErrForbidden)
	}
	if inv.Status == StatusClosed {
		return inv, nil
	}

	now := s.clock.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, eventID, StatusClosed, now); err != nil {
		return nil, err
	}
	inv.Status = StatusClosed
	inv.UpdatedAt = now
	return inv, nil
}
