package bookings

import (
	"math"

	"hostly/internal/payments"

	"github.com/google/uuid"
)

// WaitlistRedirect is returned instead of a booking when the event cannot
// seat the request
type WaitlistRedirect struct {
	EventID        uuid.UUID `json:"event_id"`
	RequestedSeats int       `json:"requested_seats"`
	AvailableSeats int       `json:"available_seats"`
	JoinPath       string    `json:"join_path"`
	Message        string    `json:"message"`
}

type BookingResponse struct {
	Booking
	Payment *payments.PaymentInfo `json:"payment,omitempty"`
}

type BookingListResponse struct {
	Bookings   []Booking `json:"bookings"`
	TotalCount int64     `json:"total_count"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	TotalPages int       `json:"total_pages"`
}

// CalculateTotalPages is a helper function to calculate total pages
func CalculateTotalPages(totalCount int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(totalCount) / float64(limit)))
}
