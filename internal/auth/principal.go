package auth

import "github.com/google/uuid"

// Principal is the authenticated caller of a request.
type Principal struct {
	ID    uuid.UUID
	Name  string
	Email string
	Image string
}

// IsZero reports whether no principal is authenticated.
func (p Principal) IsZero() bool {
	return p.ID == uuid.Nil
}
