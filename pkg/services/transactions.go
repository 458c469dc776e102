package services

import (
	"github.com/dineflow/dineflow-engine/pkg/models"
)

// historicalTransactions converts order baskets into miner transactions.
// Baskets with fewer than 2 distinct items cannot contribute a pair and no
// persisted metric consumes single-item exposure, so they are dropped here.
func historicalTransactions(baskets []models.OrderBasket) []models.Transaction {
	transactions := make([]models.Transaction, 0, len(baskets))
	for _, basket := range baskets {
		items := dedupeItems(basket.ItemIDs)
		if len(items) < 2 {
			continue
		}
		transactions = append(transactions, models.Transaction{
			Items:  items,
			Source: models.SourceHistorical,
		})
	}
	return transactions
}
