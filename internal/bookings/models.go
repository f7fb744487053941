package bookings

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Booking is one requester's seat request for one event. The record is
// reused when the requester books the same event again after a cancellation.
type Booking struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EventID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_booking_event_requester,priority:1" json:"event_id"`
	RequesterID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_booking_event_requester,priority:2" json:"requester_id"`
	RequesterEmail string    `gorm:"type:varchar(255);not null" json:"requester_email"`
	HostID         uuid.UUID `gorm:"type:uuid;not null;index" json:"host_id"`
	SeatCount      int       `gorm:"not null;check:seat_count > 0" json:"seat_count"`

	// Price snapshot taken when the booking was (re)opened
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Subtotal    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	PlatformFee decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"platform_fee"`
	TotalPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	Currency    string          `gorm:"type:varchar(3);not null" json:"currency"`

	Status          Status     `gorm:"type:varchar(20);not null;index;check:status IN ('PENDING', 'APPROVED', 'DECLINED', 'CANCELLED', 'COMPLETED')" json:"status"`
	BookingRef      string     `gorm:"unique;not null" json:"booking_ref"`
	WaitlistEntryID *uuid.UUID `gorm:"type:uuid" json:"waitlist_entry_id,omitempty"`

	CancelledBy        string `gorm:"type:varchar(20)" json:"cancelled_by,omitempty"`
	CancellationReason string `gorm:"type:text" json:"cancellation_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Reminder24hSentAt *time.Time `json:"-"`
	Reminder3hSentAt  *time.Time `json:"-"`
}

// TableName sets the table name for Booking
func (Booking) TableName() string {
	return "bookings"
}

func (b *Booking) IsPending() bool {
	return b.Status == StatusPending
}

func (b *Booking) IsApproved() bool {
	return b.Status == StatusApproved
}

func (b *Booking) IsCancelled() bool {
	return b.Status == StatusCancelled
}

// Who cancelled a booking
const (
	CancelledByRequester = "requester"
	CancelledByHost      = "host"
)

// ReminderKind selects which reminder stamp a booking carries
type ReminderKind string

const (
	Reminder24h ReminderKind = "24h"
	Reminder3h  ReminderKind = "3h"
)

func (k ReminderKind) Column() string {
	if k == Reminder3h {
		return "reminder_3h_sent_at"
	}
	return "reminder_24h_sent_at"
}

// LeadTime is how long before the event start the reminder goes out
func (k ReminderKind) LeadTime() time.Duration {
	if k == Reminder3h {
		return 3 * time.Hour
	}
	return 24 * time.Hour
}

// SentAt returns the stamp for the reminder kind
func (b *Booking) SentAt(kind ReminderKind) *time.Time {
	if kind == Reminder3h {
		return b.Reminder3hSentAt
	}
	return b.Reminder24hSentAt
}
