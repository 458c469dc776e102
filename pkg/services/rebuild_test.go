package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dineflow/dineflow-engine/pkg/apperrors"
	"github.com/dineflow/dineflow-engine/pkg/config"
	"github.com/dineflow/dineflow-engine/pkg/models"
	"github.com/dineflow/dineflow-engine/pkg/repositories"
)

type mockDatabase struct {
	inTxErr error
	txCalls int
}

func (m *mockDatabase) WithPool(ctx context.Context) context.Context { return ctx }

func (m *mockDatabase) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txCalls++
	if m.inTxErr != nil {
		return m.inTxErr
	}
	return fn(ctx)
}

type mockMenuRepo struct {
	restaurants       []*models.Restaurant
	restaurantsErr    error
	itemsByRestaurant map[uuid.UUID][]*models.MenuItem
	itemsErr          error
	blockList         chan struct{} // when set, ListRestaurants waits on it
}

func (m *mockMenuRepo) ListRestaurants(ctx context.Context) ([]*models.Restaurant, error) {
	if m.blockList != nil {
		<-m.blockList
	}
	if m.restaurantsErr != nil {
		return nil, m.restaurantsErr
	}
	return m.restaurants, nil
}

func (m *mockMenuRepo) GetRestaurant(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error) {
	for _, r := range m.restaurants {
		if r.ID == restaurantID {
			return r, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockMenuRepo) ListMenuItems(ctx context.Context, restaurantID uuid.UUID) ([]*models.MenuItem, error) {
	if m.itemsErr != nil {
		return nil, m.itemsErr
	}
	return m.itemsByRestaurant[restaurantID], nil
}

type mockOrderRepo struct {
	basketsByRestaurant map[uuid.UUID][]models.OrderBasket
	err                 error
	errForRestaurant    uuid.UUID
}

func (m *mockOrderRepo) ListCompletedOrderBaskets(ctx context.Context, restaurantID uuid.UUID) ([]models.OrderBasket, error) {
	if m.err != nil && (m.errForRestaurant == uuid.Nil || m.errForRestaurant == restaurantID) {
		return nil, m.err
	}
	return m.basketsByRestaurant[restaurantID], nil
}

type mockRecommendationRepo struct {
	replaceErr error
	replaced   map[uuid.UUID][]*models.MenuRecommendation

	insertHistoryErr error
	insertedHistory  []*models.RecommendationHistoryEntry

	byBaseItems        []*models.RecommendationRecord
	byBaseItemsErr     error
	capturedBaseItems  []uuid.UUID
	capturedExclusions []uuid.UUID
	capturedLimit      int

	analyticsRecords []*models.RecommendationRecord
	analyticsTotal   int
	analyticsErr     error
	capturedFilter   repositories.AnalyticsFilter

	historyEntries  []*models.RecommendationHistoryEntry
	historySinceErr error
	capturedKeys    []models.RuleKey
	capturedSince   time.Time
}

func (m *mockRecommendationRepo) ReplaceForRestaurant(ctx context.Context, restaurantID uuid.UUID, rules []*models.MenuRecommendation) (int, error) {
	if m.replaceErr != nil {
		return 0, m.replaceErr
	}
	if m.replaced == nil {
		m.replaced = make(map[uuid.UUID][]*models.MenuRecommendation)
	}
	m.replaced[restaurantID] = rules
	return len(rules), nil
}

func (m *mockRecommendationRepo) InsertHistory(ctx context.Context, entries []*models.RecommendationHistoryEntry) (int, error) {
	if m.insertHistoryErr != nil {
		return 0, m.insertHistoryErr
	}
	m.insertedHistory = append(m.insertedHistory, entries...)
	return len(entries), nil
}

func (m *mockRecommendationRepo) ListByBaseItems(ctx context.Context, restaurantID uuid.UUID, baseItemIDs, excludeItemIDs []uuid.UUID, limit int) ([]*models.RecommendationRecord, error) {
	m.capturedBaseItems = baseItemIDs
	m.capturedExclusions = excludeItemIDs
	m.capturedLimit = limit
	if m.byBaseItemsErr != nil {
		return nil, m.byBaseItemsErr
	}
	return m.byBaseItems, nil
}

func (m *mockRecommendationRepo) ListForAnalytics(ctx context.Context, filter repositories.AnalyticsFilter) ([]*models.RecommendationRecord, int, error) {
	m.capturedFilter = filter
	if m.analyticsErr != nil {
		return nil, 0, m.analyticsErr
	}
	return m.analyticsRecords, m.analyticsTotal, nil
}

func (m *mockRecommendationRepo) ListHistorySince(ctx context.Context, keys []models.RuleKey, since time.Time) ([]*models.RecommendationHistoryEntry, error) {
	m.capturedKeys = keys
	m.capturedSince = since
	if m.historySinceErr != nil {
		return nil, m.historySinceErr
	}
	return m.historyEntries, nil
}

func testRecommenderConfig() config.RecommenderConfig {
	return config.RecommenderConfig{
		MinSupport:                   0.01,
		MinConfidence:                0.1,
		MinAttachRate:                0.1,
		TopRecommendationsPerItem:    5,
		SyntheticTransactionsPerItem: 35,
		SyntheticComboWeight:         0.65,
		IncludeHistoricalOrders:      true,
		TrendWindowDays:              30,
		TrendMaxPoints:               12,
	}
}

func newTestRebuildService(db *mockDatabase, menuRepo *mockMenuRepo, orderRepo *mockOrderRepo, recRepo *mockRecommendationRepo, defaults config.RecommenderConfig) RecommendationService {
	return NewRecommendationService(db, menuRepo, orderRepo, recRepo, defaults, zap.NewNop())
}

func TestRebuild_ReplacesRulesAndWritesHistory(t *testing.T) {
	restaurant := &models.Restaurant{ID: uuid.New(), Name: "Trattoria"}
	itemA := menuItem(nil)
	itemB := menuItem(nil)
	itemC := menuItem(nil)

	menuRepo := &mockMenuRepo{
		restaurants: []*models.Restaurant{restaurant},
		itemsByRestaurant: map[uuid.UUID][]*models.MenuItem{
			restaurant.ID: {itemA, itemB, itemC},
		},
	}
	orderRepo := &mockOrderRepo{
		basketsByRestaurant: map[uuid.UUID][]models.OrderBasket{
			restaurant.ID: {
				{OrderID: uuid.New(), ItemIDs: []uuid.UUID{itemA.ID, itemB.ID}},
				{OrderID: uuid.New(), ItemIDs: []uuid.UUID{itemA.ID, itemB.ID}},
				{OrderID: uuid.New(), ItemIDs: []uuid.UUID{itemA.ID, itemC.ID}},
			},
		},
	}
	recRepo := &mockRecommendationRepo{}
	db := &mockDatabase{}

	defaults := testRecommenderConfig()
	defaults.SyntheticTransactionsPerItem = 0 // historical only, deterministic

	service := newTestRebuildService(db, menuRepo, orderRepo, recRepo, defaults)

	runID := uuid.New()
	result, err := service.Rebuild(context.Background(), &RebuildOptions{RunID: &runID})

	require.NoError(t, err)
	assert.Equal(t, runID, result.RunID)
	require.Len(t, result.Restaurants, 1)

	summary := result.Restaurants[0]
	assert.Equal(t, restaurant.ID, summary.RestaurantID)
	assert.Empty(t, summary.Error)
	assert.False(t, summary.Skipped)
	assert.Equal(t, 3, summary.HistoricalTransactions)
	assert.Equal(t, 0, summary.SyntheticTransactions)
	assert.Equal(t, 3, summary.TotalTransactions)
	assert.Greater(t, summary.Recommendations, 0)
	assert.Equal(t, summary.Recommendations, summary.HistoryEntries)

	assert.Equal(t, 1, db.txCalls)

	rules := recRepo.replaced[restaurant.ID]
	require.NotEmpty(t, rules)
	for _, r := range rules {
		assert.Equal(t, restaurant.ID, r.RestaurantID)
		require.NotNil(t, r.Metadata)
		assert.Equal(t, runID, r.Metadata.RunID)
		assert.Equal(t, 3, r.Metadata.HistoricalTransactions)
	}

	require.Len(t, recRepo.insertedHistory, len(rules))
	for _, entry := range recRepo.insertedHistory {
		assert.Equal(t, runID, entry.RunID)
		assert.Equal(t, result.GeneratedAt, entry.GeneratedAt)
		assert.Equal(t, restaurant.ID, entry.RestaurantID)
	}
}

func TestRebuild_SkipsRestaurantWithTooFewItems(t *testing.T) {
	restaurant := &models.Restaurant{ID: uuid.New(), Name: "One Dish Wonder"}

	menuRepo := &mockMenuRepo{
		restaurants: []*models.Restaurant{restaurant},
		itemsByRestaurant: map[uuid.UUID][]*models.MenuItem{
			restaurant.ID: {menuItem(nil)},
		},
	}
	recRepo := &mockRecommendationRepo{}
	db := &mockDatabase{}

	service := newTestRebuildService(db, menuRepo, &mockOrderRepo{}, recRepo, testRecommenderConfig())

	result, err := service.Rebuild(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, result.Restaurants, 1)
	assert.True(t, result.Restaurants[0].Skipped)
	assert.Equal(t, SkipNotEnoughMenuItems, result.Restaurants[0].SkipReason)
	assert.Equal(t, 0, db.txCalls)
}

func TestRebuild_SkipsRestaurantWithNoTransactions(t *testing.T) {
	restaurant := &models.Restaurant{ID: uuid.New(), Name: "Ghost Kitchen"}

	menuRepo := &mockMenuRepo{
		restaurants: []*models.Restaurant{restaurant},
		itemsByRestaurant: map[uuid.UUID][]*models.MenuItem{
			restaurant.ID: {menuItem(nil), menuItem(nil)},
		},
	}
	db := &mockDatabase{}

	defaults := testRecommenderConfig()
	defaults.IncludeHistoricalOrders = false
	defaults.SyntheticTransactionsPerItem = 0

	service := newTestRebuildService(db, menuRepo, &mockOrderRepo{}, &mockRecommendationRepo{}, defaults)

	result, err := service.Rebuild(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, result.Restaurants, 1)
	assert.True(t, result.Restaurants[0].Skipped)
	assert.Equal(t, SkipNoTransactions, result.Restaurants[0].SkipReason)
	assert.Equal(t, 0, db.txCalls)
}

func TestRebuild_OneRestaurantFailureDoesNotAbortRun(t *testing.T) {
	broken := &models.Restaurant{ID: uuid.New(), Name: "Broken"}
	healthy := &models.Restaurant{ID: uuid.New(), Name: "Healthy"}
	itemA := menuItem(nil)
	itemB := menuItem(nil)

	menuRepo := &mockMenuRepo{
		restaurants: []*models.Restaurant{broken, healthy},
		itemsByRestaurant: map[uuid.UUID][]*models.MenuItem{
			broken.ID:  {menuItem(nil), menuItem(nil)},
			healthy.ID: {itemA, itemB},
		},
	}
	orderRepo := &mockOrderRepo{
		err:              errors.New("connection reset"),
		errForRestaurant: broken.ID,
		basketsByRestaurant: map[uuid.UUID][]models.OrderBasket{
			healthy.ID: {
				{OrderID: uuid.New(), ItemIDs: []uuid.UUID{itemA.ID, itemB.ID}},
			},
		},
	}
	recRepo := &mockRecommendationRepo{}

	defaults := testRecommenderConfig()
	defaults.SyntheticTransactionsPerItem = 0

	service := newTestRebuildService(&mockDatabase{}, menuRepo, orderRepo, recRepo, defaults)

	result, err := service.Rebuild(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, result.Restaurants, 2)
	assert.Contains(t, result.Restaurants[0].Error, "connection reset")
	assert.Empty(t, result.Restaurants[1].Error)
	assert.NotEmpty(t, recRepo.replaced[healthy.ID])
}

func TestRebuild_StorageFailureZeroesCounts(t *testing.T) {
	restaurant := &models.Restaurant{ID: uuid.New(), Name: "Trattoria"}
	itemA := menuItem(nil)
	itemB := menuItem(nil)

	menuRepo := &mockMenuRepo{
		restaurants: []*models.Restaurant{restaurant},
		itemsByRestaurant: map[uuid.UUID][]*models.MenuItem{
			restaurant.ID: {itemA, itemB},
		},
	}
	orderRepo := &mockOrderRepo{
		basketsByRestaurant: map[uuid.UUID][]models.OrderBasket{
			restaurant.ID: {{OrderID: uuid.New(), ItemIDs: []uuid.UUID{itemA.ID, itemB.ID}}},
		},
	}
	recRepo := &mockRecommendationRepo{replaceErr: errors.New("disk full")}

	defaults := testRecommenderConfig()
	defaults.SyntheticTransactionsPerItem = 0

	service := newTestRebuildService(&mockDatabase{}, menuRepo, orderRepo, recRepo, defaults)

	result, err := service.Rebuild(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, result.Restaurants, 1)
	summary := result.Restaurants[0]
	assert.Contains(t, summary.Error, "disk full")
	assert.Equal(t, 0, summary.Recommendations)
	assert.Equal(t, 0, summary.HistoryEntries)
}

func TestRebuild_ListRestaurantsFailure(t *testing.T) {
	menuRepo := &mockMenuRepo{restaurantsErr: errors.New("database unavailable")}
	service := newTestRebuildService(&mockDatabase{}, menuRepo, &mockOrderRepo{}, &mockRecommendationRepo{}, testRecommenderConfig())

	_, err := service.Rebuild(context.Background(), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable")
	assert.False(t, service.IsRebuildRunning())
}

func TestRebuild_ConcurrentRunsRejected(t *testing.T) {
	release := make(chan struct{})
	menuRepo := &mockMenuRepo{blockList: release}

	service := newTestRebuildService(&mockDatabase{}, menuRepo, &mockOrderRepo{}, &mockRecommendationRepo{}, testRecommenderConfig())

	firstDone := make(chan error, 1)
	go func() {
		_, err := service.Rebuild(context.Background(), nil)
		firstDone <- err
	}()

	// Wait for the first run to take the in-flight slot.
	require.Eventually(t, service.IsRebuildRunning, time.Second, time.Millisecond)

	_, err := service.Rebuild(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrRebuildInProgress)

	close(release)
	require.NoError(t, <-firstDone)
	assert.False(t, service.IsRebuildRunning())
}

func TestRebuild_OptionOverrides(t *testing.T) {
	service := &recommendationService{defaults: testRecommenderConfig()}

	settings := service.resolveSettings(nil)
	assert.InDelta(t, 0.01, settings.minSupport, 1e-9)
	assert.True(t, settings.includeHistoricalOrders)

	minSupport := 0.2
	topN := 3
	include := false
	settings = service.resolveSettings(&RebuildOptions{
		MinSupport:                &minSupport,
		TopRecommendationsPerItem: &topN,
		IncludeHistoricalOrders:   &include,
	})
	assert.InDelta(t, 0.2, settings.minSupport, 1e-9)
	assert.Equal(t, 3, settings.topRecommendationsPerItem)
	assert.False(t, settings.includeHistoricalOrders)
	// Untouched fields keep their defaults.
	assert.InDelta(t, 0.1, settings.minConfidence, 1e-9)
	assert.Equal(t, 35, settings.syntheticTransactionsPerItem)
}
