package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dineflow/dineflow-engine/pkg/models"
	"github.com/dineflow/dineflow-engine/pkg/repositories"
)

const (
	minTrendWindowDays = 7
	maxTrendWindowDays = 120
	minTrendPoints     = 4
	maxTrendPoints     = 24

	// trendDeltaThreshold is the attach-rate movement below which a rule is
	// considered FLAT.
	trendDeltaThreshold = 0.01
)

// TrendService derives attach-rate movement for rules from the append-only
// history.
type TrendService interface {
	// GetTrends returns a trend per requested key. Keys with no history in
	// the window map to an empty FLAT trend; history problems degrade to
	// empty trends rather than failing the caller.
	GetTrends(ctx context.Context, keys []models.RuleKey, windowDays, maxPoints int) map[models.RuleKey]*models.RuleTrend
}

type trendService struct {
	recRepo repositories.RecommendationRepository
	logger  *zap.Logger
}

var _ TrendService = (*trendService)(nil)

// NewTrendService creates a new TrendService.
func NewTrendService(recRepo repositories.RecommendationRepository, logger *zap.Logger) TrendService {
	return &trendService{recRepo: recRepo, logger: logger}
}

func (s *trendService) GetTrends(ctx context.Context, keys []models.RuleKey, windowDays, maxPoints int) map[models.RuleKey]*models.RuleTrend {
	trends := make(map[models.RuleKey]*models.RuleTrend, len(keys))
	for _, key := range keys {
		trends[key] = emptyTrend()
	}
	if len(keys) == 0 {
		return trends
	}

	windowDays = clampInt(windowDays, minTrendWindowDays, maxTrendWindowDays)
	maxPoints = clampInt(maxPoints, minTrendPoints, maxTrendPoints)

	since := time.Now().UTC().AddDate(0, 0, -windowDays)

	entries, err := s.recRepo.ListHistorySince(ctx, keys, since)
	if err != nil {
		// Trends are decoration on the analytics listing; a history read
		// failure must not take the listing down.
		s.logger.Warn("trend history lookup failed", zap.Error(err))
		return trends
	}

	grouped := make(map[models.RuleKey][]*models.RecommendationHistoryEntry)
	for _, entry := range entries {
		key := models.RuleKey{
			RestaurantID:      entry.RestaurantID,
			BaseItemID:        entry.BaseItemID,
			RecommendedItemID: entry.RecommendedItemID,
		}
		grouped[key] = append(grouped[key], entry)
	}

	for key, group := range grouped {
		// Entries arrive oldest first; keep the most recent maxPoints in
		// chronological order.
		if len(group) > maxPoints {
			group = group[len(group)-maxPoints:]
		}

		points := make([]models.TrendPoint, 0, len(group))
		for _, entry := range group {
			points = append(points, models.TrendPoint{
				AttachRate:  entry.AttachRate,
				Lift:        entry.Lift,
				GeneratedAt: entry.GeneratedAt,
			})
		}

		delta := points[len(points)-1].AttachRate - points[0].AttachRate

		trends[key] = &models.RuleTrend{
			Points:     points,
			Delta:      delta,
			Direction:  directionOf(delta),
			SampleSize: len(points),
		}
	}

	return trends
}

func emptyTrend() *models.RuleTrend {
	return &models.RuleTrend{
		Points:    []models.TrendPoint{},
		Direction: models.TrendFlat,
	}
}

func directionOf(delta float64) models.TrendDirection {
	switch {
	case delta > trendDeltaThreshold:
		return models.TrendUp
	case delta < -trendDeltaThreshold:
		return models.TrendDown
	default:
		return models.TrendFlat
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
