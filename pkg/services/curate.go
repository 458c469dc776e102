package services

import (
	"sort"

	"github.com/google/uuid"

	"github.com/dineflow/dineflow-engine/pkg/models"
)

// curateRules filters mined rules by the attach-rate floor and keeps the
// best topPerItem rules for each base item. Ranking is lift first, then
// confidence, then support count: pure confidence ranking would overweight
// globally popular items.
func curateRules(rules []*models.MenuRecommendation, minAttachRate float64, topPerItem int) []*models.MenuRecommendation {
	if len(rules) == 0 {
		return nil
	}

	grouped := make(map[uuid.UUID][]*models.MenuRecommendation)
	var baseOrder []uuid.UUID

	for _, rule := range rules {
		if rule.AttachRate < minAttachRate {
			continue
		}
		if _, ok := grouped[rule.BaseItemID]; !ok {
			baseOrder = append(baseOrder, rule.BaseItemID)
		}
		grouped[rule.BaseItemID] = append(grouped[rule.BaseItemID], rule)
	}

	// Deterministic group order keeps rebuild output stable run to run.
	sort.Slice(baseOrder, func(i, j int) bool {
		return baseOrder[i].String() < baseOrder[j].String()
	})

	var curated []*models.MenuRecommendation

	for _, baseItemID := range baseOrder {
		group := grouped[baseItemID]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Lift != group[j].Lift {
				return group[i].Lift > group[j].Lift
			}
			if group[i].Confidence != group[j].Confidence {
				return group[i].Confidence > group[j].Confidence
			}
			return group[i].SupportCount > group[j].SupportCount
		})

		limit := topPerItem
		if limit > len(group) {
			limit = len(group)
		}
		curated = append(curated, group[:limit]...)
	}

	return curated
}
