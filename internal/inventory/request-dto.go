package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

type PublishEventRequest struct {
	// Optional id of the catalogue event this inventory belongs to
	EventID   string          `json:"event_id" binding:"omitempty,uuid"`
	Title     string          `json:"title" binding:"required,min=3,max=200"`
	StartsAt  time.Time       `json:"starts_at" binding:"required"`
	Capacity  int             `json:"capacity" binding:"required,min=1,max=100000"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Currency  string          `json:"currency" binding:"omitempty,len=3"`
	Mode      BookingMode     `json:"mode" binding:"omitempty,oneof=instant request"`
}
