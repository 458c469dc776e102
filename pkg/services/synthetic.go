package services

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/dineflow/dineflow-engine/pkg/models"
)

// companionPoolFraction is the share of the menu sampled as focus-pair
// companions for each item.
const companionPoolFraction = 0.15

// minSyntheticTransactions is the floor on the synthetic basket target so
// tiny menus still produce a workable signal.
const minSyntheticTransactions = 100

type syntheticOptions struct {
	transactionsPerItem int
	comboWeight         float64
	generatedAt         time.Time
}

// syntheticGenerator produces plausible synthetic baskets for restaurants
// with little or no order history. The random source is injected so tests
// can seed it.
type syntheticGenerator struct {
	rng *rand.Rand
}

func newSyntheticGenerator(rng *rand.Rand) *syntheticGenerator {
	return &syntheticGenerator{rng: rng}
}

// Generate builds synthetic transactions for the menu. Generation mixes two
// strategies: focus pairs bias the output toward a spread of cross-sells,
// and category sampling keeps the remainder within plausible same-category
// combinations. Baskets with fewer than 2 distinct items are discarded.
func (g *syntheticGenerator) Generate(menuItems []*models.MenuItem, opts syntheticOptions) []models.Transaction {
	if len(menuItems) < 2 {
		return nil
	}

	target := opts.transactionsPerItem * len(menuItems)
	if target < minSyntheticTransactions {
		target = minSyntheticTransactions
	}

	categories := groupByCategory(menuItems)
	focusPairs := g.buildFocusPairs(menuItems)

	transactions := make([]models.Transaction, 0, target)

	for i := 0; i < target; i++ {
		var items []uuid.UUID

		if g.rng.Float64() < opts.comboWeight && len(focusPairs) > 0 {
			pair := focusPairs[g.rng.Intn(len(focusPairs))]
			items = []uuid.UUID{pair[0], pair[1]}

			if g.rng.Float64() < 0.5 {
				extra := menuItems[g.rng.Intn(len(menuItems))].ID
				if extra != items[0] && extra != items[1] {
					items = append(items, extra)
				}
			}
		}

		if len(items) < 2 {
			pool := categories[g.rng.Intn(len(categories))]
			if len(pool) < 2 {
				pool = menuItems
			}
			size := 2 + g.rng.Intn(3)
			for _, item := range g.pickN(pool, size) {
				items = append(items, item.ID)
			}
		}

		if len(items) >= 2 {
			transactions = append(transactions, models.Transaction{
				Items:       items,
				Source:      models.SourceSynthetic,
				GeneratedAt: opts.generatedAt,
			})
		}
	}

	return transactions
}

// buildFocusPairs samples a companion pool (at least 2, roughly 15% of the
// rest of the menu) for every item. Pairs, not single items, are the unit of
// bias so that combo-driven baskets spread across the whole menu.
func (g *syntheticGenerator) buildFocusPairs(menuItems []*models.MenuItem) [][2]uuid.UUID {
	var pairs [][2]uuid.UUID

	for _, item := range menuItems {
		pool := make([]*models.MenuItem, 0, len(menuItems)-1)
		for _, candidate := range menuItems {
			if candidate.ID != item.ID {
				pool = append(pool, candidate)
			}
		}

		count := int(float64(len(pool)) * companionPoolFraction)
		if count < 2 {
			count = 2
		}

		for _, companion := range g.pickN(pool, count) {
			pairs = append(pairs, [2]uuid.UUID{item.ID, companion.ID})
		}
	}

	return pairs
}

// pickN returns n distinct items sampled without replacement.
func (g *syntheticGenerator) pickN(items []*models.MenuItem, n int) []*models.MenuItem {
	if n <= 0 || len(items) == 0 {
		return nil
	}
	if n >= len(items) {
		picked := make([]*models.MenuItem, len(items))
		copy(picked, items)
		return picked
	}

	pool := make([]*models.MenuItem, len(items))
	copy(pool, items)

	picked := make([]*models.MenuItem, 0, n)
	for len(picked) < n {
		idx := g.rng.Intn(len(pool))
		picked = append(picked, pool[idx])
		pool[idx] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}
	return picked
}

// groupByCategory buckets items per category; items without a category
// share one bucket.
func groupByCategory(menuItems []*models.MenuItem) [][]*models.MenuItem {
	buckets := make(map[uuid.UUID][]*models.MenuItem)
	var order []uuid.UUID

	for _, item := range menuItems {
		categoryID := uuid.Nil
		if item.CategoryID != nil {
			categoryID = *item.CategoryID
		}
		if _, ok := buckets[categoryID]; !ok {
			order = append(order, categoryID)
		}
		buckets[categoryID] = append(buckets[categoryID], item)
	}

	grouped := make([][]*models.MenuItem, 0, len(order))
	for _, categoryID := range order {
		grouped = append(grouped, buckets[categoryID])
	}
	return grouped
}
