package bookings

type CreateBookingRequest struct {
	EventID   string      `json:"event_id" binding:"required,uuid"`
	SeatCount int         `json:"seat_count" binding:"omitempty,min=1"`
	Offer     *OfferClaim `json:"offer,omitempty"`
}

// OfferClaim redeems a waitlist offer as part of booking creation
type OfferClaim struct {
	EntryID string `json:"entry_id" binding:"required,uuid"`
	Token   string `json:"token" binding:"required"`
}

type TransitionRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

type BookingListQuery struct {
	Status string `form:"status"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
}

// Normalize applies paging defaults
func (q *BookingListQuery) Normalize() {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 10
	}
}
