package waitlist

type JoinWaitlistRequest struct {
	EventID   string `json:"event_id" binding:"required,uuid" validate:"required,uuid"`
	Email     string `json:"email" binding:"required,email" validate:"required,email,max=255"`
	Name      string `json:"name" binding:"omitempty,max=100" validate:"omitempty,max=100"`
	Phone     string `json:"phone" binding:"omitempty,e164" validate:"omitempty,e164"`
	SeatCount int    `json:"seat_count" binding:"required,min=1" validate:"required,min=1"`
}

func (r JoinWaitlistRequest) Contact() Contact {
	return Contact{Email: r.Email, Name: r.Name, Phone: r.Phone}
}

type ContactRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type RedeemOfferRequest struct {
	Token string `json:"token" binding:"required"`
}
