package engine

import (
	"math"
	"slices"

	"github.com/flipflow/flipflow/pkg/api"
)

// conditionMultipliers discount the median comparable price by the
// item's graded condition
var conditionMultipliers = map[api.Condition]float64{
	api.ConditionNew:       1.0,
	api.ConditionLikeNew:   0.90,
	api.ConditionExcellent: 0.80,
	api.ConditionGood:      0.70,
	api.ConditionFair:      0.55,
	api.ConditionPoor:      0.35,
}

const defaultConditionMultiplier = 0.70

func conditionMultiplier(c api.Condition) float64 {
	if m, ok := conditionMultipliers[c]; ok {
		return m
	}
	return defaultConditionMultiplier
}

// suggestPrice anchors the asking price at the median of comparable
// sold prices, discounted by condition. Reports false when there are no
// comparables to anchor on
func suggestPrice(
	comps []*api.Comparable, condition api.Condition,
) (float64, bool) {
	median, ok := medianSoldPrice(comps)
	if !ok {
		return 0, false
	}
	return round2(median * conditionMultiplier(condition)), true
}

func medianSoldPrice(comps []*api.Comparable) (float64, bool) {
	var prices []float64
	for _, c := range comps {
		if c.SoldPrice > 0 {
			prices = append(prices, c.SoldPrice)
		}
	}
	if len(prices) == 0 {
		return 0, false
	}

	slices.Sort(prices)
	mid := len(prices) / 2
	if len(prices)%2 == 1 {
		return prices[mid], true
	}
	return (prices[mid-1] + prices[mid]) / 2, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
