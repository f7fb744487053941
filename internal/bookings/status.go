package bookings

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusDeclined  Status = "DECLINED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

var validTransitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusDeclined, StatusCancelled},
	StatusApproved:  {StatusCancelled, StatusCompleted},
	StatusDeclined:  {}, // Terminal state
	StatusCancelled: {}, // Terminal state
	StatusCompleted: {}, // Terminal state
}

// IsValid checks if the booking status is valid
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusDeclined || s == StatusCancelled || s == StatusCompleted
}

// HoldsSeats reports whether a booking in this status counts against
// capacity. Completed seats stay consumed.
func (s Status) HoldsSeats() bool {
	return s == StatusPending || s == StatusApproved || s == StatusCompleted
}

// Reopenable reports whether a new request may reuse a booking record in
// this status instead of being rejected as a duplicate
func (s Status) Reopenable() bool {
	return s == StatusCancelled
}
