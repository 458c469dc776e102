package services

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dineflow/dineflow-engine/pkg/config"
	"github.com/dineflow/dineflow-engine/pkg/models"
	"github.com/dineflow/dineflow-engine/pkg/repositories"
)

const (
	defaultAnalyticsPageSize = 50
	maxAnalyticsPageSize     = 200
)

// AnalyticsOptions filters and pages the recommendation analytics listing.
type AnalyticsOptions struct {
	// RestaurantID narrows the listing to one restaurant.
	RestaurantID *uuid.UUID
	// ExcludeRestaurantIDs removes restaurants from the listing even when
	// they fall inside the caller's scope.
	ExcludeRestaurantIDs []uuid.UUID
	// MinAttachRate filters out weaker rules; nil means no floor.
	MinAttachRate *float64
	// TrendWindowDays sizes the trailing trend window; 0 uses the default.
	TrendWindowDays int
	Page            int
	PageSize        int
}

// AnalyticsService assembles the paginated recommendation analytics view.
type AnalyticsService interface {
	// ListRecommendationAnalytics returns one page of rules within the
	// caller's restaurant scope, enriched with item metadata, revenue
	// estimates and attach-rate trends. An empty scope means unrestricted.
	ListRecommendationAnalytics(ctx context.Context, scope []uuid.UUID, opts AnalyticsOptions) (*models.AnalyticsResult, error)
}

type analyticsService struct {
	recRepo  repositories.RecommendationRepository
	trends   TrendService
	defaults config.RecommenderConfig
	logger   *zap.Logger
}

var _ AnalyticsService = (*analyticsService)(nil)

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(recRepo repositories.RecommendationRepository, trends TrendService, defaults config.RecommenderConfig, logger *zap.Logger) AnalyticsService {
	return &analyticsService{
		recRepo:  recRepo,
		trends:   trends,
		defaults: defaults,
		logger:   logger,
	}
}

func (s *analyticsService) ListRecommendationAnalytics(ctx context.Context, scope []uuid.UUID, opts AnalyticsOptions) (*models.AnalyticsResult, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize < 1 {
		pageSize = defaultAnalyticsPageSize
	}
	if pageSize > maxAnalyticsPageSize {
		pageSize = maxAnalyticsPageSize
	}

	filter := repositories.AnalyticsFilter{
		RestaurantIDs:        scope,
		RestaurantID:         opts.RestaurantID,
		ExcludeRestaurantIDs: opts.ExcludeRestaurantIDs,
		Limit:                pageSize,
		Offset:               (page - 1) * pageSize,
	}
	if opts.MinAttachRate != nil {
		filter.MinAttachRate = *opts.MinAttachRate
	}

	records, total, err := s.recRepo.ListForAnalytics(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}

	windowDays := opts.TrendWindowDays
	if windowDays <= 0 {
		windowDays = s.defaults.TrendWindowDays
	}

	keys := make([]models.RuleKey, 0, len(records))
	for _, record := range records {
		keys = append(keys, record.Key())
	}
	trendByKey := s.trends.GetTrends(ctx, keys, windowDays, s.defaults.TrendMaxPoints)

	result := &models.AnalyticsResult{
		Restaurants: []*models.RestaurantRef{},
		Rows:        make([]*models.AnalyticsRow, 0, len(records)),
		Pagination: models.Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalRows:  total,
			TotalPages: totalPages(total, pageSize),
		},
	}

	var sumAttachRate, sumConfidence, sumLift float64
	seenRestaurants := make(map[uuid.UUID]struct{})

	for i, record := range records {
		row := analyticsRow(record)
		row.Rank = filter.Offset + i + 1
		row.Trend = trendByKey[record.Key()]
		result.Rows = append(result.Rows, row)

		sumAttachRate += record.AttachRate
		sumConfidence += record.Confidence
		sumLift += record.Lift

		if record.Restaurant != nil {
			if _, ok := seenRestaurants[record.Restaurant.ID]; !ok {
				seenRestaurants[record.Restaurant.ID] = struct{}{}
				result.Restaurants = append(result.Restaurants, record.Restaurant)
			}
		}

		if result.Summary.LastUpdatedAt == nil || record.UpdatedAt.After(*result.Summary.LastUpdatedAt) {
			updatedAt := record.UpdatedAt
			result.Summary.LastUpdatedAt = &updatedAt
		}
	}

	result.Summary.TotalPairs = total
	if n := float64(len(records)); n > 0 {
		result.Summary.AverageAttachRate = clampDecimal(sumAttachRate / n)
		result.Summary.AverageConfidence = clampDecimal(sumConfidence / n)
		result.Summary.AverageLift = clampDecimal(sumLift / n)
	}

	return result, nil
}

// analyticsRow converts one joined record into a listing row. Revenue
// estimates derive from the companion item's price: the incremental figure
// weights it by attach rate, the projected figure assumes every observed
// pair converts.
func analyticsRow(record *models.RecommendationRecord) *models.AnalyticsRow {
	row := &models.AnalyticsRow{
		ID:            record.ID.String(),
		Restaurant:    record.Restaurant,
		BaseItem:      record.BaseItem,
		CompanionItem: record.RecommendedItem,
		AttachRate:    record.AttachRate,
		Confidence:    record.Confidence,
		Lift:          record.Lift,
		Support:       record.Support,
		SupportCount:  record.SupportCount,
		Metadata:      record.Metadata,
		UpdatedAt:     record.UpdatedAt,
	}
	if record.RecommendedItem != nil {
		price := record.RecommendedItem.PriceCents
		row.EstimatedIncrementalRevenueCents = int64(math.Round(float64(price) * record.AttachRate))
		row.ProjectedPairRevenueCents = price * int64(record.SupportCount)
	}
	return row
}

func totalPages(total, pageSize int) int {
	if total == 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// clampDecimal rounds to 6 decimal places and zeroes non-finite values,
// matching the precision persisted for rule statistics.
func clampDecimal(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*1e6) / 1e6
}
