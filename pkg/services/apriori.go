// Package services contains the recommendation engine: transaction loading,
// synthetic basket generation, association rule mining, curation, rebuild
// coordination and the read paths built on top of the mined rules.
package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/dineflow/dineflow-engine/pkg/models"
)

// algorithmName is recorded in rule metadata for auditability.
const algorithmName = "apriori"

// probEpsilon floors marginal probabilities so lift never divides by zero.
const probEpsilon = 2.220446049250313e-16

// pairKey identifies an unordered item pair. Construction through
// canonicalPair guarantees (A,B) and (B,A) share one counter.
type pairKey struct {
	a, b uuid.UUID
}

func canonicalPair(x, y uuid.UUID) pairKey {
	if x.String() < y.String() {
		return pairKey{a: x, b: y}
	}
	return pairKey{a: y, b: x}
}

// mineAssociationRules runs a 2-itemset Apriori pass over the combined
// transaction set and emits directed rules that clear both minSupport and
// minConfidence. The output carries no ranking; the curator orders it.
func mineAssociationRules(transactions []models.Transaction, minSupport, minConfidence float64, generatedAt time.Time) []*models.MenuRecommendation {
	totalTransactions := len(transactions)
	if totalTransactions == 0 {
		return nil
	}

	itemCounts := make(map[uuid.UUID]*models.SourceBreakdown)
	pairCounts := make(map[pairKey]*models.SourceBreakdown)

	countItem := func(itemID uuid.UUID, source models.TransactionSource) {
		entry, ok := itemCounts[itemID]
		if !ok {
			entry = &models.SourceBreakdown{}
			itemCounts[itemID] = entry
		}
		entry.Add(source)
	}

	for _, txn := range transactions {
		unique := dedupeItems(txn.Items)

		for _, itemID := range unique {
			countItem(itemID, txn.Source)
		}

		// Baskets with a single distinct item contribute to item totals
		// only; they cannot form a pair.
		if len(unique) < 2 {
			continue
		}

		for i := 0; i < len(unique)-1; i++ {
			for j := i + 1; j < len(unique); j++ {
				key := canonicalPair(unique[i], unique[j])
				entry, ok := pairCounts[key]
				if !ok {
					entry = &models.SourceBreakdown{}
					pairCounts[key] = entry
				}
				entry.Add(txn.Source)
			}
		}
	}

	var rules []*models.MenuRecommendation

	for key, pairEntry := range pairCounts {
		pairSupportCount := pairEntry.Total
		support := float64(pairSupportCount) / float64(totalTransactions)
		if support < minSupport {
			continue
		}

		infoA := itemCounts[key.a]
		infoB := itemCounts[key.b]
		if infoA == nil || infoB == nil || infoA.Total == 0 || infoB.Total == 0 {
			continue
		}

		probA := float64(infoA.Total) / float64(totalTransactions)
		probB := float64(infoB.Total) / float64(totalTransactions)

		// Directed rules are evaluated independently: confidence(A→B) and
		// confidence(B→A) share a pair count but divide by different
		// marginals.
		if confidence := float64(pairSupportCount) / float64(infoA.Total); confidence >= minConfidence {
			rules = append(rules, directedRule(key.a, key.b, support, confidence, liftOf(confidence, probB), pairSupportCount,
				newRuleMetadata(generatedAt, pairEntry, infoA, infoB, totalTransactions)))
		}

		if confidence := float64(pairSupportCount) / float64(infoB.Total); confidence >= minConfidence {
			rules = append(rules, directedRule(key.b, key.a, support, confidence, liftOf(confidence, probA), pairSupportCount,
				newRuleMetadata(generatedAt, pairEntry, infoB, infoA, totalTransactions)))
		}
	}

	return rules
}

func directedRule(base, recommended uuid.UUID, support, confidence, lift float64, supportCount int, metadata *models.RuleMetadata) *models.MenuRecommendation {
	return &models.MenuRecommendation{
		BaseItemID:        base,
		RecommendedItemID: recommended,
		Support:           support,
		Confidence:        confidence,
		AttachRate:        confidence,
		Lift:              lift,
		SupportCount:      supportCount,
		Metadata:          metadata,
	}
}

func liftOf(confidence, marginal float64) float64 {
	if marginal <= 0 {
		marginal = probEpsilon
	}
	return confidence / marginal
}

func newRuleMetadata(generatedAt time.Time, pair, base, recommended *models.SourceBreakdown, totalTransactions int) *models.RuleMetadata {
	return &models.RuleMetadata{
		Algorithm:          algorithmName,
		GeneratedAt:        generatedAt,
		Sources:            *pair,
		BaseSupport:        *base,
		RecommendedSupport: *recommended,
		TotalTransactions:  totalTransactions,
	}
}

// dedupeItems returns the distinct non-nil item ids in first-seen order.
func dedupeItems(items []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	unique := make([]uuid.UUID, 0, len(items))
	for _, itemID := range items {
		if itemID == uuid.Nil {
			continue
		}
		if _, ok := seen[itemID]; ok {
			continue
		}
		seen[itemID] = struct{}{}
		unique = append(unique, itemID)
	}
	return unique
}
