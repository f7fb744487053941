package identity

import "github.com/google/uuid"

// Role values carried in access token claims.
const (
	RoleUser  = "USER"
	RoleHost  = "HOST"
	RoleAdmin = "ADMIN"
)

// Actor is the request-scoped caller identity resolved from the access token.
type Actor struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) IsZero() bool {
	return a.UserID == uuid.Nil
}
