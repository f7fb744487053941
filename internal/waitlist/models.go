package waitlist

import (
	"strings"
	"time"

	"hostly/internal/offers"

	"github.com/google/uuid"
)

// WaitlistStatus represents the status of a waitlist entry
type WaitlistStatus string

const (
	WaitlistStatusWaiting   WaitlistStatus = "WAITING"
	WaitlistStatusNotified  WaitlistStatus = "NOTIFIED"
	WaitlistStatusConverted WaitlistStatus = "CONVERTED"
	WaitlistStatusExpired   WaitlistStatus = "EXPIRED"
	WaitlistStatusCancelled WaitlistStatus = "CANCELLED"
)

// ActiveStatuses are the statuses that block a second join by the same contact
var ActiveStatuses = []WaitlistStatus{WaitlistStatusWaiting, WaitlistStatusNotified}

// IsValid checks if the waitlist status is valid
func (ws WaitlistStatus) IsValid() bool {
	switch ws {
	case WaitlistStatusWaiting, WaitlistStatusNotified, WaitlistStatusConverted, WaitlistStatusExpired, WaitlistStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if the status can transition to the target status
func (ws WaitlistStatus) CanTransitionTo(target WaitlistStatus) bool {
	validTransitions := map[WaitlistStatus][]WaitlistStatus{
		WaitlistStatusWaiting:   {WaitlistStatusNotified, WaitlistStatusCancelled},
		WaitlistStatusNotified:  {WaitlistStatusConverted, WaitlistStatusExpired, WaitlistStatusCancelled},
		WaitlistStatusConverted: {}, // Terminal state
		WaitlistStatusExpired:   {}, // Terminal state
		WaitlistStatusCancelled: {}, // Terminal state
	}

	for _, allowed := range validTransitions[ws] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (ws WaitlistStatus) IsTerminal() bool {
	return ws == WaitlistStatusConverted || ws == WaitlistStatusExpired || ws == WaitlistStatusCancelled
}

// Contact identifies a guest on the waitlist. Email is the identity; name
// and phone are informational.
type Contact struct {
	Email string `json:"email" validate:"required,email,max=255"`
	Name  string `json:"name,omitempty" validate:"omitempty,max=100"`
	Phone string `json:"phone,omitempty" validate:"omitempty,e164"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// WaitlistEntry represents one guest's place in an event waitlist
type WaitlistEntry struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	EventID   uuid.UUID      `json:"event_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_waitlist_event_position,priority:1"`
	UserID    *uuid.UUID     `json:"user_id,omitempty" gorm:"type:uuid;index"`
	Email     string         `json:"email" gorm:"type:varchar(255);not null;index"`
	Name      string         `json:"name,omitempty" gorm:"type:varchar(100)"`
	Phone     string         `json:"phone,omitempty" gorm:"type:varchar(20)"`
	SeatCount int            `json:"seat_count" gorm:"not null;check:seat_count > 0"`
	Position  int            `json:"position" gorm:"not null;uniqueIndex:idx_waitlist_event_position,priority:2"`
	Status    WaitlistStatus `json:"status" gorm:"type:varchar(20);not null;index"`

	// Only the digest of the offer token is stored
	OfferTokenHash string     `json:"-" gorm:"type:varchar(64)"`
	OfferIssuedAt  *time.Time `json:"offer_issued_at,omitempty"`
	OfferExpiresAt *time.Time `json:"offer_expires_at,omitempty" gorm:"index"`
	BookingID      *uuid.UUID `json:"booking_id,omitempty" gorm:"type:uuid"`

	JoinedAt    time.Time  `json:"joined_at" gorm:"not null"`
	ConvertedAt *time.Time `json:"converted_at,omitempty"`
	ExpiredAt   *time.Time `json:"expired_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (WaitlistEntry) TableName() string {
	return "waitlist_entries"
}

func (we *WaitlistEntry) IsWaiting() bool {
	return we.Status == WaitlistStatusWaiting
}

func (we *WaitlistEntry) IsNotified() bool {
	return we.Status == WaitlistStatusNotified
}

// ContactMatches compares emails case insensitively
func (we *WaitlistEntry) ContactMatches(c Contact) bool {
	return NormalizeEmail(c.Email) != "" && NormalizeEmail(c.Email) == NormalizeEmail(we.Email)
}

func (we *WaitlistEntry) OfferState() offers.State {
	return offers.State{
		Notified:  we.IsNotified(),
		TokenHash: we.OfferTokenHash,
		ExpiresAt: we.OfferExpiresAt,
	}
}

func (we *WaitlistEntry) Contact() Contact {
	return Contact{Email: we.Email, Name: we.Name, Phone: we.Phone}
}

// PromotionResult is the outcome of one promotion scan
type PromotionResult struct {
	Notified []WaitlistEntry `json:"notified"`
	// Freed seats no waiting entry could use; they stay generally available
	Unallocated int `json:"unallocated"`
}

// ExpiryResult is the outcome of expiring one offer
type ExpiryResult struct {
	Expired  bool            `json:"expired"`
	Entry    *WaitlistEntry  `json:"entry,omitempty"`
	Promoted PromotionResult `json:"promoted"`
}

// Configuration Constants

const (
	// MaxWaitlistSize is the maximum number of active entries in a single waitlist
	MaxWaitlistSize = 10000

	// DefaultMaxSeatsPerRequest caps a single join
	DefaultMaxSeatsPerRequest = 10
)
