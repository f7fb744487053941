package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingMode string

const (
	// ModeInstant bookings are approved on creation
	ModeInstant BookingMode = "instant"
	// ModeRequest bookings wait for the host
	ModeRequest BookingMode = "request"
)

func (m BookingMode) IsValid() bool {
	return m == ModeInstant || m == ModeRequest
}

type Status string

const (
	StatusPublished Status = "published"
	StatusClosed    Status = "closed"
)

// EventInventory is the seat ledger for one bookable event. Held only
// changes through Reserve and Release.
type EventInventory struct {
	EventID   uuid.UUID       `gorm:"type:uuid;primaryKey" json:"event_id"`
	HostID    uuid.UUID       `gorm:"type:uuid;index;not null" json:"host_id"`
	HostEmail string          `gorm:"type:varchar(255);not null" json:"host_email"`
	Title     string          `gorm:"type:varchar(200);not null" json:"title"`
	StartsAt  time.Time       `gorm:"index;not null" json:"starts_at"`
	Capacity  int             `gorm:"not null;check:capacity > 0" json:"capacity"`
	Held      int             `gorm:"not null;default:0" json:"held"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Currency  string          `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	Mode      BookingMode     `gorm:"type:varchar(10);not null;default:'request'" json:"mode"`
	Status    Status          `gorm:"type:varchar(10);not null;default:'published'" json:"status"`

	// Last waitlist position handed out for this event
	WaitlistSeq int `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (EventInventory) TableName() string {
	return "event_inventories"
}

func (e *EventInventory) Available() int {
	return e.Capacity - e.Held
}

func (e *EventInventory) IsBookable() bool {
	return e.Status == StatusPublished
}

func (e *EventInventory) IsInstant() bool {
	return e.Mode == ModeInstant
}

// Availability is the public view of an event's ledger
type Availability struct {
	EventID   uuid.UUID   `json:"event_id"`
	Title     string      `json:"title"`
	StartsAt  time.Time   `json:"starts_at"`
	Capacity  int         `json:"capacity"`
	Held      int         `json:"held"`
	Available int         `json:"available"`
	Mode      BookingMode `json:"mode"`
	Status    Status      `json:"status"`
	SoldOut   bool        `json:"sold_out"`
}

func (e *EventInventory) ToAvailability() Availability {
	return Availability{
		EventID:   e.EventID,
		Title:     e.Title,
		StartsAt:  e.StartsAt,
		Capacity:  e.Capacity,
		Held:      e.Held,
		Available: e.Available(),
		Mode:      e.Mode,
		Status:    e.Status,
		SoldOut:   e.Available() <= 0,
	}
}
