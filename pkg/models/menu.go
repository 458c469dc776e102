package models

import (
	"time"

	"github.com/google/uuid"
)

// MenuCategory groups menu items for display and for category-biased
// synthetic transaction sampling.
type MenuCategory struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MenuItem is a single orderable item on a restaurant's menu.
type MenuItem struct {
	ID           uuid.UUID  `json:"id"`
	RestaurantID uuid.UUID  `json:"restaurant_id"`
	CategoryID   *uuid.UUID `json:"category_id,omitempty"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	PriceCents   int64      `json:"price_cents"`
	ImageURL     string     `json:"image_url,omitempty"`
	IsAvailable  bool       `json:"is_available"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// MenuItemRef is the compact item payload embedded in recommendation
// responses (cart upsell and analytics rows).
type MenuItemRef struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	PriceCents  int64            `json:"price_cents"`
	ImageURL    string           `json:"image_url,omitempty"`
	Category    *MenuCategoryRef `json:"category,omitempty"`
}

// MenuCategoryRef is the compact category payload embedded in responses.
type MenuCategoryRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
