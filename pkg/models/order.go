package models

import (
	"time"

	"github.com/google/uuid"
)

// Order status values.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusPreparing = "PREPARING"
	OrderStatusServed    = "SERVED"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

// Order represents a customer order. Only the fields the recommendation
// engine reads are modelled; the ordering flow itself lives elsewhere.
type Order struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Status       string    `json:"status"`
	TotalCents   int64     `json:"total_cents"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OrderItem is a single line on an order.
type OrderItem struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Quantity   int       `json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`
}

// OrderBasket is an order reduced to its distinct menu item ids, the unit
// the transaction loader feeds to the miner.
type OrderBasket struct {
	OrderID uuid.UUID   `json:"order_id"`
	ItemIDs []uuid.UUID `json:"item_ids"`
}
