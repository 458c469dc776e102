package models

import (
	"time"

	"github.com/google/uuid"
)

// GuestSession is an active dining session bound to one restaurant.
// Cart recommendations are only served while the session is open.
type GuestSession struct {
	ID           uuid.UUID  `json:"id"`
	RestaurantID uuid.UUID  `json:"restaurant_id"`
	SessionToken string     `json:"-"`
	TableLabel   string     `json:"table_label,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`

	// Restaurant is populated by lookups that join the owning restaurant.
	Restaurant *Restaurant `json:"restaurant,omitempty"`
}

// IsActive reports whether the session is still open.
func (s *GuestSession) IsActive() bool {
	return s != nil && s.ClosedAt == nil
}
