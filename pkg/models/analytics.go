package models

import (
	"time"

	"github.com/google/uuid"
)

// RestaurantRef is the compact restaurant payload embedded in responses.
type RestaurantRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// RecommendationRecord is a current rule joined with restaurant and item
// metadata, as read paths consume it.
type RecommendationRecord struct {
	MenuRecommendation
	Restaurant      *RestaurantRef `json:"restaurant,omitempty"`
	BaseItem        *MenuItemRef   `json:"base_item,omitempty"`
	RecommendedItem *MenuItemRef   `json:"recommended_item,omitempty"`
}

// AnalyticsRow is one row of the recommendation analytics listing,
// enriched with derived revenue estimates and trend data.
type AnalyticsRow struct {
	ID                               string         `json:"id"`
	Rank                             int            `json:"rank"`
	Restaurant                       *RestaurantRef `json:"restaurant,omitempty"`
	BaseItem                         *MenuItemRef   `json:"base_item,omitempty"`
	CompanionItem                    *MenuItemRef   `json:"companion_item,omitempty"`
	AttachRate                       float64        `json:"attach_rate"`
	Confidence                       float64        `json:"confidence"`
	Lift                             float64        `json:"lift"`
	Support                          float64        `json:"support"`
	SupportCount                     int            `json:"support_count"`
	EstimatedIncrementalRevenueCents int64          `json:"estimated_incremental_revenue_cents"`
	ProjectedPairRevenueCents        int64          `json:"projected_pair_revenue_cents"`
	Trend                            *RuleTrend     `json:"trend,omitempty"`
	Metadata                         *RuleMetadata  `json:"metadata,omitempty"`
	UpdatedAt                        time.Time      `json:"updated_at"`
}

// AnalyticsSummary aggregates the rows returned on the current page.
type AnalyticsSummary struct {
	TotalPairs        int        `json:"total_pairs"`
	AverageAttachRate float64    `json:"average_attach_rate"`
	AverageConfidence float64    `json:"average_confidence"`
	AverageLift       float64    `json:"average_lift"`
	LastUpdatedAt     *time.Time `json:"last_updated_at,omitempty"`
}

// Pagination describes the page of analytics rows returned.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalRows  int `json:"total_rows"`
	TotalPages int `json:"total_pages"`
}

// AnalyticsResult is the full analytics listing payload.
type AnalyticsResult struct {
	Summary     AnalyticsSummary `json:"summary"`
	Restaurants []*RestaurantRef `json:"restaurants"`
	Rows        []*AnalyticsRow  `json:"rows"`
	Pagination  Pagination       `json:"pagination"`
}

// CartRecommendation is one upsell suggestion for the active cart.
type CartRecommendation struct {
	BaseItemID        uuid.UUID    `json:"base_item_id"`
	RecommendedItemID uuid.UUID    `json:"recommended_item_id"`
	Score             float64      `json:"score"`
	AttachRate        float64      `json:"attach_rate"`
	Confidence        float64      `json:"confidence"`
	Support           float64      `json:"support"`
	SupportCount      int          `json:"support_count"`
	MenuItem          *MenuItemRef `json:"menu_item"`
}

// CartRecommendationResult is the cart upsell payload.
type CartRecommendationResult struct {
	Restaurant      *RestaurantRef        `json:"restaurant,omitempty"`
	CartItems       []uuid.UUID           `json:"cart_items"`
	Recommendations []*CartRecommendation `json:"recommendations"`
}
