package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dineflow/dineflow-engine/pkg/apperrors"
	"github.com/dineflow/dineflow-engine/pkg/config"
	"github.com/dineflow/dineflow-engine/pkg/models"
	"github.com/dineflow/dineflow-engine/pkg/repositories"
)

// SkipReason explains why a restaurant was left untouched by a rebuild.
type SkipReason string

const (
	SkipNotEnoughMenuItems SkipReason = "NOT_ENOUGH_MENU_ITEMS"
	SkipNoTransactions     SkipReason = "NO_TRANSACTIONS"
)

// RebuildOptions overrides the configured defaults for one rebuild run.
// Nil fields fall back to the configured value.
type RebuildOptions struct {
	RunID                        *uuid.UUID `json:"run_id,omitempty"`
	MinSupport                   *float64   `json:"min_support,omitempty" validate:"omitempty,gte=0,lte=1"`
	MinConfidence                *float64   `json:"min_confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	MinAttachRate                *float64   `json:"min_attach_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
	TopRecommendationsPerItem    *int       `json:"top_recommendations_per_item,omitempty" validate:"omitempty,min=1,max=50"`
	SyntheticTransactionsPerItem *int       `json:"synthetic_transactions_per_item,omitempty" validate:"omitempty,min=0,max=1000"`
	SyntheticComboWeight         *float64   `json:"synthetic_combo_weight,omitempty" validate:"omitempty,gte=0,lte=1"`
	IncludeHistoricalOrders      *bool      `json:"include_historical_orders,omitempty"`
}

// RestaurantRebuildSummary reports the per-restaurant outcome of a rebuild.
type RestaurantRebuildSummary struct {
	RestaurantID           uuid.UUID  `json:"restaurant_id"`
	RestaurantName         string     `json:"restaurant_name"`
	Recommendations        int        `json:"recommendations"`
	HistoryEntries         int        `json:"history_entries"`
	TotalTransactions      int        `json:"total_transactions"`
	HistoricalTransactions int        `json:"historical_transactions"`
	SyntheticTransactions  int        `json:"synthetic_transactions"`
	Skipped                bool       `json:"skipped,omitempty"`
	SkipReason             SkipReason `json:"skip_reason,omitempty"`
	Error                  string     `json:"error,omitempty"`
}

// RebuildResult is the outcome of one full rebuild run.
type RebuildResult struct {
	RunID       uuid.UUID                   `json:"run_id"`
	GeneratedAt time.Time                   `json:"generated_at"`
	Restaurants []*RestaurantRebuildSummary `json:"restaurants"`
}

// Database is the transactional surface the rebuild needs from the
// database layer.
type Database interface {
	WithPool(ctx context.Context) context.Context
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RecommendationService rebuilds the association rule sets for every
// restaurant. At most one rebuild runs at a time.
type RecommendationService interface {
	// Rebuild regenerates rules for all restaurants. A second call while a
	// run is in flight fails fast with apperrors.ErrRebuildInProgress.
	Rebuild(ctx context.Context, opts *RebuildOptions) (*RebuildResult, error)

	// IsRebuildRunning reports whether a rebuild is currently in flight.
	IsRebuildRunning() bool
}

type recommendationService struct {
	db        Database
	menuRepo  repositories.MenuRepository
	orderRepo repositories.OrderRepository
	recRepo   repositories.RecommendationRepository
	defaults  config.RecommenderConfig
	newRand   func() *rand.Rand
	logger    *zap.Logger

	mu      sync.Mutex
	running bool
}

var _ RecommendationService = (*recommendationService)(nil)

// RecommendationServiceOption customizes the service at construction time.
type RecommendationServiceOption func(*recommendationService)

// WithRandSource injects the random source factory used by the synthetic
// generator. Tests use a seeded source for reproducible output.
func WithRandSource(newRand func() *rand.Rand) RecommendationServiceOption {
	return func(s *recommendationService) {
		s.newRand = newRand
	}
}

// NewRecommendationService creates a new RecommendationService.
func NewRecommendationService(
	db Database,
	menuRepo repositories.MenuRepository,
	orderRepo repositories.OrderRepository,
	recRepo repositories.RecommendationRepository,
	defaults config.RecommenderConfig,
	logger *zap.Logger,
	opts ...RecommendationServiceOption,
) RecommendationService {
	s := &recommendationService{
		db:        db,
		menuRepo:  menuRepo,
		orderRepo: orderRepo,
		recRepo:   recRepo,
		defaults:  defaults,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// rebuildSettings is RebuildOptions with every default resolved.
type rebuildSettings struct {
	minSupport                   float64
	minConfidence                float64
	minAttachRate                float64
	topRecommendationsPerItem    int
	syntheticTransactionsPerItem int
	syntheticComboWeight         float64
	includeHistoricalOrders      bool
}

func (s *recommendationService) resolveSettings(opts *RebuildOptions) rebuildSettings {
	settings := rebuildSettings{
		minSupport:                   s.defaults.MinSupport,
		minConfidence:                s.defaults.MinConfidence,
		minAttachRate:                s.defaults.MinAttachRate,
		topRecommendationsPerItem:    s.defaults.TopRecommendationsPerItem,
		syntheticTransactionsPerItem: s.defaults.SyntheticTransactionsPerItem,
		syntheticComboWeight:         s.defaults.SyntheticComboWeight,
		includeHistoricalOrders:      s.defaults.IncludeHistoricalOrders,
	}
	if opts == nil {
		return settings
	}
	if opts.MinSupport != nil {
		settings.minSupport = *opts.MinSupport
	}
	if opts.MinConfidence != nil {
		settings.minConfidence = *opts.MinConfidence
	}
	if opts.MinAttachRate != nil {
		settings.minAttachRate = *opts.MinAttachRate
	}
	if opts.TopRecommendationsPerItem != nil {
		settings.topRecommendationsPerItem = *opts.TopRecommendationsPerItem
	}
	if opts.SyntheticTransactionsPerItem != nil {
		settings.syntheticTransactionsPerItem = *opts.SyntheticTransactionsPerItem
	}
	if opts.SyntheticComboWeight != nil {
		settings.syntheticComboWeight = *opts.SyntheticComboWeight
	}
	if opts.IncludeHistoricalOrders != nil {
		settings.includeHistoricalOrders = *opts.IncludeHistoricalOrders
	}
	return settings
}

func (s *recommendationService) IsRebuildRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *recommendationService) tryStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return apperrors.ErrRebuildInProgress
	}
	s.running = true
	return nil
}

func (s *recommendationService) finish() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *recommendationService) Rebuild(ctx context.Context, opts *RebuildOptions) (*RebuildResult, error) {
	if err := s.tryStart(); err != nil {
		return nil, err
	}
	defer s.finish()

	settings := s.resolveSettings(opts)
	runID := uuid.New()
	if opts != nil && opts.RunID != nil && *opts.RunID != uuid.Nil {
		runID = *opts.RunID
	}
	generatedAt := time.Now().UTC()

	ctx = s.db.WithPool(ctx)

	restaurants, err := s.menuRepo.ListRestaurants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}

	s.logger.Info("recommendation rebuild started",
		zap.String("run_id", runID.String()),
		zap.Int("restaurants", len(restaurants)),
		zap.Float64("min_support", settings.minSupport),
		zap.Float64("min_confidence", settings.minConfidence),
		zap.Bool("include_historical", settings.includeHistoricalOrders))

	result := &RebuildResult{
		RunID:       runID,
		GeneratedAt: generatedAt,
		Restaurants: make([]*RestaurantRebuildSummary, 0, len(restaurants)),
	}

	for _, restaurant := range restaurants {
		summary := s.rebuildRestaurant(ctx, restaurant, settings, runID, generatedAt)
		if summary.Error != "" {
			s.logger.Error("restaurant rebuild failed",
				zap.String("run_id", runID.String()),
				zap.String("restaurant_id", restaurant.ID.String()),
				zap.String("error", summary.Error))
		}
		result.Restaurants = append(result.Restaurants, summary)
	}

	s.logger.Info("recommendation rebuild finished",
		zap.String("run_id", runID.String()),
		zap.Duration("elapsed", time.Since(generatedAt)))

	return result, nil
}

// rebuildRestaurant regenerates one restaurant's rule set. Failures are
// captured on the summary so one restaurant cannot abort the whole run.
func (s *recommendationService) rebuildRestaurant(ctx context.Context, restaurant *models.Restaurant, settings rebuildSettings, runID uuid.UUID, generatedAt time.Time) *RestaurantRebuildSummary {
	summary := &RestaurantRebuildSummary{
		RestaurantID:   restaurant.ID,
		RestaurantName: restaurant.Name,
	}

	menuItems, err := s.menuRepo.ListMenuItems(ctx, restaurant.ID)
	if err != nil {
		summary.Error = fmt.Sprintf("failed to list menu items: %v", err)
		return summary
	}
	if len(menuItems) < 2 {
		summary.Skipped = true
		summary.SkipReason = SkipNotEnoughMenuItems
		return summary
	}

	var transactions []models.Transaction

	if settings.includeHistoricalOrders {
		baskets, err := s.orderRepo.ListCompletedOrderBaskets(ctx, restaurant.ID)
		if err != nil {
			summary.Error = fmt.Sprintf("failed to load order history: %v", err)
			return summary
		}
		historical := historicalTransactions(baskets)
		summary.HistoricalTransactions = len(historical)
		transactions = append(transactions, historical...)
	}

	if settings.syntheticTransactionsPerItem > 0 {
		generator := newSyntheticGenerator(s.newRand())
		synthetic := generator.Generate(menuItems, syntheticOptions{
			transactionsPerItem: settings.syntheticTransactionsPerItem,
			comboWeight:         settings.syntheticComboWeight,
			generatedAt:         generatedAt,
		})
		summary.SyntheticTransactions = len(synthetic)
		transactions = append(transactions, synthetic...)
	}

	summary.TotalTransactions = len(transactions)
	if len(transactions) == 0 {
		summary.Skipped = true
		summary.SkipReason = SkipNoTransactions
		return summary
	}

	rules := mineAssociationRules(transactions, settings.minSupport, settings.minConfidence, generatedAt)
	curated := curateRules(rules, settings.minAttachRate, settings.topRecommendationsPerItem)

	for _, rule := range curated {
		rule.RestaurantID = restaurant.ID
		if rule.Metadata != nil {
			rule.Metadata.RunID = runID
			rule.Metadata.HistoricalTransactions = summary.HistoricalTransactions
			rule.Metadata.SyntheticTransactions = summary.SyntheticTransactions
		}
	}

	// Current set replacement and history append commit together or not
	// at all.
	err = s.db.InTx(ctx, func(txCtx context.Context) error {
		written, err := s.recRepo.ReplaceForRestaurant(txCtx, restaurant.ID, curated)
		if err != nil {
			return fmt.Errorf("failed to replace recommendations: %w", err)
		}
		summary.Recommendations = written

		history, err := s.recRepo.InsertHistory(txCtx, historyEntries(curated, runID, generatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert history: %w", err)
		}
		summary.HistoryEntries = history
		return nil
	})
	if err != nil {
		summary.Recommendations = 0
		summary.HistoryEntries = 0
		summary.Error = err.Error()
		return summary
	}

	s.logger.Debug("restaurant rebuild complete",
		zap.String("restaurant_id", restaurant.ID.String()),
		zap.Int("recommendations", summary.Recommendations),
		zap.Int("transactions", summary.TotalTransactions))

	return summary
}

func historyEntries(rules []*models.MenuRecommendation, runID uuid.UUID, generatedAt time.Time) []*models.RecommendationHistoryEntry {
	entries := make([]*models.RecommendationHistoryEntry, 0, len(rules))
	for _, rule := range rules {
		entries = append(entries, &models.RecommendationHistoryEntry{
			RestaurantID:      rule.RestaurantID,
			BaseItemID:        rule.BaseItemID,
			RecommendedItemID: rule.RecommendedItemID,
			Support:           rule.Support,
			Confidence:        rule.Confidence,
			AttachRate:        rule.AttachRate,
			Lift:              rule.Lift,
			SupportCount:      rule.SupportCount,
			RunID:             runID,
			GeneratedAt:       generatedAt,
			Metadata:          rule.Metadata,
		})
	}
	return entries
}
