package waitlist

import (
	"time"

	"github.com/google/uuid"
)

// EntryResponse is the guest facing view of an entry
type EntryResponse struct {
	ID               uuid.UUID      `json:"id"`
	EventID          uuid.UUID      `json:"event_id"`
	Position         int            `json:"position"`
	SeatCount        int            `json:"seat_count"`
	Status           WaitlistStatus `json:"status"`
	AheadCount       *int           `json:"ahead_count,omitempty"`
	JoinedAt         time.Time      `json:"joined_at"`
	OfferExpiresAt   *time.Time     `json:"offer_expires_at,omitempty"`
	RemainingSeconds *int64         `json:"remaining_seconds,omitempty"`
	BookingID        *uuid.UUID     `json:"booking_id,omitempty"`
}

// OfferAuthorization lets the holder of a valid token book the held seats
type OfferAuthorization struct {
	EntryID          uuid.UUID `json:"entry_id"`
	EventID          uuid.UUID `json:"event_id"`
	SeatCount        int       `json:"seat_count"`
	Email            string    `json:"email"`
	ExpiresAt        time.Time `json:"expires_at"`
	RemainingSeconds int64     `json:"remaining_seconds"`
}

// WaitlistStatsResponse represents waitlist statistics for an event
type WaitlistStatsResponse struct {
	EventID        uuid.UUID `json:"event_id"`
	TotalEntries   int       `json:"total_entries"`
	WaitingCount   int       `json:"waiting_count"`
	NotifiedCount  int       `json:"notified_count"`
	ConvertedCount int       `json:"converted_count"`
	ExpiredCount   int       `json:"expired_count"`
	CancelledCount int       `json:"cancelled_count"`
	WaitingSeats   int       `json:"waiting_seats"`
	OfferedSeats   int       `json:"offered_seats"`
}
