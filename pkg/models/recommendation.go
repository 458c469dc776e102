package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionSource tags where a basket came from.
type TransactionSource string

const (
	SourceHistorical TransactionSource = "historical"
	SourceSynthetic  TransactionSource = "synthetic"
)

// Transaction is an in-memory basket of distinct item ids consumed by the
// miner. Transactions are never persisted.
type Transaction struct {
	Items  []uuid.UUID
	Source TransactionSource
	// GeneratedAt is stamped on synthetic baskets; zero for historical ones.
	GeneratedAt time.Time
}

// SourceBreakdown counts occurrences split by transaction source.
type SourceBreakdown struct {
	Total      int `json:"total"`
	Historical int `json:"historical"`
	Synthetic  int `json:"synthetic"`
}

// Add increments the breakdown for one occurrence from the given source.
func (b *SourceBreakdown) Add(source TransactionSource) {
	b.Total++
	switch source {
	case SourceSynthetic:
		b.Synthetic++
	default:
		b.Historical++
	}
}

// RuleMetadata is the structured metadata blob attached to every rule and
// history row. It is stored as opaque JSONB and never queried by column.
type RuleMetadata struct {
	Algorithm              string          `json:"algorithm"`
	RunID                  uuid.UUID       `json:"run_id"`
	GeneratedAt            time.Time       `json:"generated_at"`
	Sources                SourceBreakdown `json:"sources"`
	BaseSupport            SourceBreakdown `json:"base_support"`
	RecommendedSupport     SourceBreakdown `json:"recommended_support"`
	TotalTransactions      int             `json:"total_transactions"`
	HistoricalTransactions int             `json:"historical_transactions"`
	SyntheticTransactions  int             `json:"synthetic_transactions"`
}

// MenuRecommendation is one directed association rule in the current set.
// Exactly one row exists per (restaurant, base item, recommended item);
// the whole set for a restaurant is replaced on every rebuild.
type MenuRecommendation struct {
	ID                uuid.UUID     `json:"id"`
	RestaurantID      uuid.UUID     `json:"restaurant_id"`
	BaseItemID        uuid.UUID     `json:"base_item_id"`
	RecommendedItemID uuid.UUID     `json:"recommended_item_id"`
	Support           float64       `json:"support"`
	Confidence        float64       `json:"confidence"`
	AttachRate        float64       `json:"attach_rate"`
	Lift              float64       `json:"lift"`
	SupportCount      int           `json:"support_count"`
	Metadata          *RuleMetadata `json:"metadata,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// RecommendationHistoryEntry is the append-only time-series record written
// alongside every rebuild. Entries are inserted once and never mutated.
type RecommendationHistoryEntry struct {
	ID                uuid.UUID     `json:"id"`
	RestaurantID      uuid.UUID     `json:"restaurant_id"`
	BaseItemID        uuid.UUID     `json:"base_item_id"`
	RecommendedItemID uuid.UUID     `json:"recommended_item_id"`
	Support           float64       `json:"support"`
	Confidence        float64       `json:"confidence"`
	AttachRate        float64       `json:"attach_rate"`
	Lift              float64       `json:"lift"`
	SupportCount      int           `json:"support_count"`
	RunID             uuid.UUID     `json:"run_id"`
	GeneratedAt       time.Time     `json:"generated_at"`
	Metadata          *RuleMetadata `json:"metadata,omitempty"`
}

// RuleKey identifies one directed rule across the current set and history.
type RuleKey struct {
	RestaurantID      uuid.UUID `json:"restaurant_id"`
	BaseItemID        uuid.UUID `json:"base_item_id"`
	RecommendedItemID uuid.UUID `json:"recommended_item_id"`
}

// Key returns the rule's identity triple.
func (r *MenuRecommendation) Key() RuleKey {
	return RuleKey{
		RestaurantID:      r.RestaurantID,
		BaseItemID:        r.BaseItemID,
		RecommendedItemID: r.RecommendedItemID,
	}
}

// TrendDirection classifies how a rule's attach rate moved over the window.
type TrendDirection string

const (
	TrendUp   TrendDirection = "UP"
	TrendDown TrendDirection = "DOWN"
	TrendFlat TrendDirection = "FLAT"
)

// TrendPoint is one historical sample of a rule's attach rate.
type TrendPoint struct {
	AttachRate  float64   `json:"attach_rate"`
	Lift        float64   `json:"lift"`
	GeneratedAt time.Time `json:"generated_at"`
}

// RuleTrend summarizes the movement of one rule over a trailing window.
// A key with no history yields an empty point list and a FLAT direction.
type RuleTrend struct {
	Points     []TrendPoint   `json:"points"`
	Delta      float64        `json:"delta"`
	Direction  TrendDirection `json:"direction"`
	SampleSize int            `json:"sample_size"`
}
