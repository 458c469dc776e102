package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dineflow/dineflow-engine/pkg/database"
	"github.com/dineflow/dineflow-engine/pkg/models"
)

// AnalyticsFilter narrows the analytics listing query.
type AnalyticsFilter struct {
	// RestaurantIDs is the caller's authorized scope. Empty means unrestricted.
	RestaurantIDs []uuid.UUID
	// RestaurantID optionally narrows the listing to one restaurant.
	RestaurantID *uuid.UUID
	// ExcludeRestaurantIDs removes specific restaurants from the listing.
	ExcludeRestaurantIDs []uuid.UUID
	// MinAttachRate filters out weaker rules.
	MinAttachRate float64
	Limit         int
	Offset        int
}

// RecommendationRepository persists and queries association rules and their
// append-only history.
type RecommendationRepository interface {
	// ReplaceForRestaurant deletes the restaurant's current rule set and
	// bulk-inserts the new one. Statistics are rounded to 6 decimals before
	// persisting. Returns the number of rules written.
	ReplaceForRestaurant(ctx context.Context, restaurantID uuid.UUID, rules []*models.MenuRecommendation) (int, error)

	// InsertHistory bulk-inserts history entries. An empty slice inserts
	// nothing and returns 0.
	InsertHistory(ctx context.Context, entries []*models.RecommendationHistoryEntry) (int, error)

	// ListByBaseItems returns current rules whose base item is in the cart,
	// restricted to available recommended items and excluding the given ids,
	// ordered best-first.
	ListByBaseItems(ctx context.Context, restaurantID uuid.UUID, baseItemIDs, excludeItemIDs []uuid.UUID, limit int) ([]*models.RecommendationRecord, error)

	// ListForAnalytics returns one page of joined rules plus the total count
	// matching the filter.
	ListForAnalytics(ctx context.Context, filter AnalyticsFilter) ([]*models.RecommendationRecord, int, error)

	// ListHistorySince returns history entries for the given rule keys with
	// generated_at on or after the cutoff, oldest first.
	ListHistorySince(ctx context.Context, keys []models.RuleKey, since time.Time) ([]*models.RecommendationHistoryEntry, error)
}

type recommendationRepository struct{}

// NewRecommendationRepository creates a new RecommendationRepository.
func NewRecommendationRepository() RecommendationRepository {
	return &recommendationRepository{}
}

var _ RecommendationRepository = (*recommendationRepository)(nil)

// ============================================================================
// Write Path
// ============================================================================

func (r *recommendationRepository) ReplaceForRestaurant(ctx context.Context, restaurantID uuid.UUID, rules []*models.MenuRecommendation) (int, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return 0, fmt.Errorf("no querier in context")
	}

	_, err := q.Exec(ctx, `DELETE FROM menu_recommendations WHERE restaurant_id = $1`, restaurantID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear current recommendations: %w", err)
	}

	if len(rules) == 0 {
		return 0, nil
	}

	now := time.Now()
	copyRows := make([][]any, 0, len(rules))
	for _, rule := range rules {
		metadata, err := metadataValue(rule.Metadata)
		if err != nil {
			return 0, err
		}
		copyRows = append(copyRows, []any{
			uuid.New(),
			restaurantID,
			rule.BaseItemID,
			rule.RecommendedItemID,
			roundStat(rule.Support),
			roundStat(rule.Confidence),
			roundStat(rule.AttachRate),
			roundStat(rule.Lift),
			rule.SupportCount,
			metadata,
			now,
			now,
		})
	}

	copied, err := q.CopyFrom(ctx,
		pgx.Identifier{"menu_recommendations"},
		[]string{
			"id", "restaurant_id", "base_item_id", "recommended_item_id",
			"support", "confidence", "attach_rate", "lift",
			"support_count", "metadata", "created_at", "updated_at",
		},
		pgx.CopyFromRows(copyRows),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert recommendations: %w", err)
	}

	return int(copied), nil
}

func (r *recommendationRepository) InsertHistory(ctx context.Context, entries []*models.RecommendationHistoryEntry) (int, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return 0, fmt.Errorf("no querier in context")
	}

	if len(entries) == 0 {
		return 0, nil
	}

	copyRows := make([][]any, 0, len(entries))
	for _, entry := range entries {
		metadata, err := metadataValue(entry.Metadata)
		if err != nil {
			return 0, err
		}
		copyRows = append(copyRows, []any{
			uuid.New(),
			entry.RestaurantID,
			entry.BaseItemID,
			entry.RecommendedItemID,
			roundStat(entry.Support),
			roundStat(entry.Confidence),
			roundStat(entry.AttachRate),
			roundStat(entry.Lift),
			entry.SupportCount,
			entry.RunID,
			entry.GeneratedAt,
			metadata,
		})
	}

	copied, err := q.CopyFrom(ctx,
		pgx.Identifier{"menu_recommendation_history"},
		[]string{
			"id", "restaurant_id", "base_item_id", "recommended_item_id",
			"support", "confidence", "attach_rate", "lift",
			"support_count", "run_id", "generated_at", "metadata",
		},
		pgx.CopyFromRows(copyRows),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert recommendation history: %w", err)
	}

	return int(copied), nil
}

// ============================================================================
// Read Path
// ============================================================================

func (r *recommendationRepository) ListByBaseItems(ctx context.Context, restaurantID uuid.UUID, baseItemIDs, excludeItemIDs []uuid.UUID, limit int) ([]*models.RecommendationRecord, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no querier in context")
	}
	if len(baseItemIDs) == 0 {
		return nil, nil
	}
	if excludeItemIDs == nil {
		excludeItemIDs = []uuid.UUID{}
	}

	query := `
		SELECT mr.restaurant_id, mr.base_item_id, mr.recommended_item_id,
		       mr.support, mr.confidence, mr.attach_rate, mr.lift,
		       mr.support_count, mr.metadata, mr.updated_at,
		       mi.id, mi.name, mi.description, mi.price_cents, mi.image_url,
		       mc.id, mc.name
		FROM menu_recommendations mr
		JOIN menu_items mi ON mi.id = mr.recommended_item_id AND mi.is_available = true
		LEFT JOIN menu_categories mc ON mc.id = mi.category_id
		WHERE mr.restaurant_id = $1
		  AND mr.base_item_id = ANY($2)
		  AND mr.recommended_item_id <> ALL($3)
		ORDER BY mr.lift DESC, mr.confidence DESC, mr.support_count DESC
		LIMIT $4`

	rows, err := q.Query(ctx, query, restaurantID, baseItemIDs, excludeItemIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart recommendations: %w", err)
	}
	defer rows.Close()

	var records []*models.RecommendationRecord
	for rows.Next() {
		var rec models.RecommendationRecord
		var item models.MenuItemRef
		var metadataRaw []byte
		var categoryID *uuid.UUID
		var categoryName *string

		err := rows.Scan(
			&rec.RestaurantID,
			&rec.BaseItemID,
			&rec.RecommendedItemID,
			&rec.Support,
			&rec.Confidence,
			&rec.AttachRate,
			&rec.Lift,
			&rec.SupportCount,
			&metadataRaw,
			&rec.UpdatedAt,
			&item.ID,
			&item.Name,
			&item.Description,
			&item.PriceCents,
			&item.ImageURL,
			&categoryID,
			&categoryName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart recommendation: %w", err)
		}

		if categoryID != nil && categoryName != nil {
			item.Category = &models.MenuCategoryRef{ID: *categoryID, Name: *categoryName}
		}
		rec.RecommendedItem = &item
		if rec.Metadata, err = metadataFromBytes(metadataRaw); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart recommendations: %w", err)
	}

	return records, nil
}

func (r *recommendationRepository) ListForAnalytics(ctx context.Context, filter AnalyticsFilter) ([]*models.RecommendationRecord, int, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no querier in context")
	}

	where, args := buildAnalyticsWhere(filter)

	countQuery := `SELECT COUNT(*) FROM menu_recommendations mr ` + where
	var total int
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count analytics rows: %w", err)
	}

	listQuery := `
		SELECT mr.id, mr.restaurant_id, mr.base_item_id, mr.recommended_item_id,
		       mr.support, mr.confidence, mr.attach_rate, mr.lift,
		       mr.support_count, mr.metadata, mr.updated_at,
		       rst.id, rst.name,
		       bi.id, bi.name, bi.price_cents,
		       bc.id, bc.name,
		       ri.id, ri.name, ri.price_cents,
		       rc.id, rc.name
		FROM menu_recommendations mr
		JOIN restaurants rst ON rst.id = mr.restaurant_id
		JOIN menu_items bi ON bi.id = mr.base_item_id
		LEFT JOIN menu_categories bc ON bc.id = bi.category_id
		JOIN menu_items ri ON ri.id = mr.recommended_item_id
		LEFT JOIN menu_categories rc ON rc.id = ri.category_id
		` + where + `
		ORDER BY mr.lift DESC, mr.confidence DESC, mr.support_count DESC
		LIMIT ` + fmt.Sprintf("$%d", len(args)+1) + ` OFFSET ` + fmt.Sprintf("$%d", len(args)+2)

	listArgs := append(append([]any{}, args...), filter.Limit, filter.Offset)

	rows, err := q.Query(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query analytics rows: %w", err)
	}
	defer rows.Close()

	var records []*models.RecommendationRecord
	for rows.Next() {
		rec, err := scanAnalyticsRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating analytics rows: %w", err)
	}

	return records, total, nil
}

func (r *recommendationRepository) ListHistorySince(ctx context.Context, keys []models.RuleKey, since time.Time) ([]*models.RecommendationHistoryEntry, error) {
	q, ok := database.GetQuerier(ctx)
	if !ok {
		return nil, fmt.Errorf("no querier in context")
	}
	if len(keys) == 0 {
		return nil, nil
	}

	restaurantIDs := make([]uuid.UUID, 0, len(keys))
	baseItemIDs := make([]uuid.UUID, 0, len(keys))
	recommendedItemIDs := make([]uuid.UUID, 0, len(keys))
	wanted := make(map[models.RuleKey]struct{}, len(keys))
	for _, key := range keys {
		restaurantIDs = append(restaurantIDs, key.RestaurantID)
		baseItemIDs = append(baseItemIDs, key.BaseItemID)
		recommendedItemIDs = append(recommendedItemIDs, key.RecommendedItemID)
		wanted[key] = struct{}{}
	}

	// The ANY filters over-select (they match the cross product of key
	// columns); exact keys are re-checked after scanning.
	query := `
		SELECT restaurant_id, base_item_id, recommended_item_id,
		       support, confidence, attach_rate, lift, support_count,
		       run_id, generated_at
		FROM menu_recommendation_history
		WHERE restaurant_id = ANY($1)
		  AND base_item_id = ANY($2)
		  AND recommended_item_id = ANY($3)
		  AND generated_at >= $4
		ORDER BY generated_at`

	rows, err := q.Query(ctx, query, restaurantIDs, baseItemIDs, recommendedItemIDs, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendation history: %w", err)
	}
	defer rows.Close()

	var entries []*models.RecommendationHistoryEntry
	for rows.Next() {
		var entry models.RecommendationHistoryEntry
		err := rows.Scan(
			&entry.RestaurantID,
			&entry.BaseItemID,
			&entry.RecommendedItemID,
			&entry.Support,
			&entry.Confidence,
			&entry.AttachRate,
			&entry.Lift,
			&entry.SupportCount,
			&entry.RunID,
			&entry.GeneratedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		key := models.RuleKey{
			RestaurantID:      entry.RestaurantID,
			BaseItemID:        entry.BaseItemID,
			RecommendedItemID: entry.RecommendedItemID,
		}
		if _, ok := wanted[key]; !ok {
			continue
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history entries: %w", err)
	}

	return entries, nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func buildAnalyticsWhere(filter AnalyticsFilter) (string, []any) {
	var clauses []string
	var args []any

	if len(filter.RestaurantIDs) > 0 {
		args = append(args, filter.RestaurantIDs)
		clauses = append(clauses, fmt.Sprintf("mr.restaurant_id = ANY($%d)", len(args)))
	}
	if filter.RestaurantID != nil {
		args = append(args, *filter.RestaurantID)
		clauses = append(clauses, fmt.Sprintf("mr.restaurant_id = $%d", len(args)))
	}
	if len(filter.ExcludeRestaurantIDs) > 0 {
		args = append(args, filter.ExcludeRestaurantIDs)
		clauses = append(clauses, fmt.Sprintf("mr.restaurant_id <> ALL($%d)", len(args)))
	}
	if filter.MinAttachRate > 0 {
		args = append(args, filter.MinAttachRate)
		clauses = append(clauses, fmt.Sprintf("mr.attach_rate >= $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func scanAnalyticsRecord(row pgx.Row) (*models.RecommendationRecord, error) {
	var rec models.RecommendationRecord
	var restaurant models.RestaurantRef
	var baseItem, recommendedItem models.MenuItemRef
	var metadataRaw []byte
	var baseCatID, recCatID *uuid.UUID
	var baseCatName, recCatName *string

	err := row.Scan(
		&rec.ID,
		&rec.RestaurantID,
		&rec.BaseItemID,
		&rec.RecommendedItemID,
		&rec.Support,
		&rec.Confidence,
		&rec.AttachRate,
		&rec.Lift,
		&rec.SupportCount,
		&metadataRaw,
		&rec.UpdatedAt,
		&restaurant.ID,
		&restaurant.Name,
		&baseItem.ID,
		&baseItem.Name,
		&baseItem.PriceCents,
		&baseCatID,
		&baseCatName,
		&recommendedItem.ID,
		&recommendedItem.Name,
		&recommendedItem.PriceCents,
		&recCatID,
		&recCatName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan analytics record: %w", err)
	}

	if baseCatID != nil && baseCatName != nil {
		baseItem.Category = &models.MenuCategoryRef{ID: *baseCatID, Name: *baseCatName}
	}
	if recCatID != nil && recCatName != nil {
		recommendedItem.Category = &models.MenuCategoryRef{ID: *recCatID, Name: *recCatName}
	}

	rec.Restaurant = &restaurant
	rec.BaseItem = &baseItem
	rec.RecommendedItem = &recommendedItem
	if rec.Metadata, err = metadataFromBytes(metadataRaw); err != nil {
		return nil, err
	}

	return &rec, nil
}

// roundStat rounds a persisted statistic to 6 decimal places so repeated
// rebuilds do not accumulate floating noise. Non-finite values persist as 0.
func roundStat(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*1e6) / 1e6
}

// metadataValue serializes rule metadata for JSONB insertion.
// Nil metadata stores NULL.
func metadataValue(m *models.RuleMetadata) (any, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rule metadata: %w", err)
	}
	return data, nil
}

// metadataFromBytes deserializes JSONB rule metadata.
func metadataFromBytes(data []byte) (*models.RuleMetadata, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var m models.RuleMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule metadata: %w", err)
	}
	return &m, nil
}
