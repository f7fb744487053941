package bookings

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Quote is the price breakdown for a booking
type Quote struct {
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	Total       decimal.Decimal `json:"total"`
}

// CalculateQuote prices seatCount seats. The platform fee is a percentage of
// the subtotal rounded to cents and is added on top.
func CalculateQuote(unitPrice decimal.Decimal, seatCount int, feePercent decimal.Decimal) Quote {
	subtotal := unitPrice.Mul(decimal.NewFromInt(int64(seatCount))).Round(2)
	fee := subtotal.Mul(feePercent).Div(hundred).Round(2)
	return Quote{
		UnitPrice:   unitPrice,
		Subtotal:    subtotal,
		PlatformFee: fee,
		Total:       subtotal.Add(fee),
	}
}

func (q Quote) apply(b *Booking) {
	b.UnitPrice = q.UnitPrice
	b.Subtotal = q.Subtotal
	b.PlatformFee = q.PlatformFee
	b.TotalPrice = q.Total
}
