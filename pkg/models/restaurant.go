// Package models contains domain types for dineflow-engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Restaurant represents a restaurant tenant on the platform.
type Restaurant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
