package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dineflow/dineflow-engine/pkg/models"
)

func rule(base, recommended uuid.UUID, lift, confidence float64, supportCount int) *models.MenuRecommendation {
	return &models.MenuRecommendation{
		BaseItemID:        base,
		RecommendedItemID: recommended,
		Confidence:        confidence,
		AttachRate:        confidence,
		Lift:              lift,
		SupportCount:      supportCount,
	}
}

func TestCurateRules_AttachRateFloor(t *testing.T) {
	base := uuid.New()

	rules := []*models.MenuRecommendation{
		rule(base, uuid.New(), 2.0, 0.30, 10),
		rule(base, uuid.New(), 3.0, 0.05, 10), // below floor despite best lift
	}

	curated := curateRules(rules, 0.1, 5)

	require.Len(t, curated, 1)
	assert.InDelta(t, 0.30, curated[0].AttachRate, 1e-9)
}

func TestCurateRules_TopNPerBaseItem(t *testing.T) {
	base := uuid.New()
	other := uuid.New()

	rules := []*models.MenuRecommendation{
		rule(base, uuid.New(), 1.0, 0.5, 1),
		rule(base, uuid.New(), 2.0, 0.5, 1),
		rule(base, uuid.New(), 3.0, 0.5, 1),
		rule(base, uuid.New(), 4.0, 0.5, 1),
		rule(other, uuid.New(), 1.5, 0.5, 1),
	}

	curated := curateRules(rules, 0.0, 2)

	require.Len(t, curated, 3)

	var baseLifts []float64
	for _, r := range curated {
		if r.BaseItemID == base {
			baseLifts = append(baseLifts, r.Lift)
		}
	}
	assert.Equal(t, []float64{4.0, 3.0}, baseLifts)
}

func TestCurateRules_Ordering(t *testing.T) {
	base := uuid.New()

	first := rule(base, uuid.New(), 2.0, 0.6, 5)
	second := rule(base, uuid.New(), 2.0, 0.6, 3) // same lift+confidence, fewer observations
	third := rule(base, uuid.New(), 2.0, 0.4, 9)  // same lift, lower confidence
	fourth := rule(base, uuid.New(), 1.5, 0.9, 9) // lower lift loses regardless

	curated := curateRules([]*models.MenuRecommendation{fourth, third, second, first}, 0.0, 10)

	require.Len(t, curated, 4)
	assert.Equal(t, first, curated[0])
	assert.Equal(t, second, curated[1])
	assert.Equal(t, third, curated[2])
	assert.Equal(t, fourth, curated[3])
}

func TestCurateRules_Empty(t *testing.T) {
	assert.Nil(t, curateRules(nil, 0.1, 5))
	assert.Nil(t, curateRules([]*models.MenuRecommendation{}, 0.1, 5))
}

func TestHistoricalTransactions(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	baskets := []models.OrderBasket{
		{OrderID: uuid.New(), ItemIDs: []uuid.UUID{a, b}},
		{OrderID: uuid.New(), ItemIDs: []uuid.UUID{a}},          // single item dropped
		{OrderID: uuid.New(), ItemIDs: []uuid.UUID{a, a, a}},    // duplicates collapse, dropped
		{OrderID: uuid.New(), ItemIDs: []uuid.UUID{a, b, a, b}}, // duplicates collapse to pair
	}

	transactions := historicalTransactions(baskets)

	require.Len(t, transactions, 2)
	for _, transaction := range transactions {
		assert.Equal(t, models.SourceHistorical, transaction.Source)
		assert.Equal(t, []uuid.UUID{a, b}, transaction.Items)
	}
}
