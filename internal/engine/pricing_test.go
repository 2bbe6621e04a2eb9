package engine

import (
	"testing"

	"github.com/flipflow/flipflow/internal/assert"
	"github.com/flipflow/flipflow/pkg/api"
)

func comps(prices ...float64) []*api.Comparable {
	res := make([]*api.Comparable, len(prices))
	for i, p := range prices {
		res[i] = &api.Comparable{
			Platform:  api.PlatformEbay,
			Title:     "comp",
			SoldPrice: p,
		}
	}
	return res
}

func TestMedianOdd(t *testing.T) {
	as := assert.New(t)
	median, ok := medianSoldPrice(comps(50, 30, 40))
	as.True(ok)
	as.Equal(40.0, median)
}

func TestMedianEven(t *testing.T) {
	as := assert.New(t)
	median, ok := medianSoldPrice(comps(10, 20, 30, 40))
	as.True(ok)
	as.Equal(25.0, median)
}

func TestMedianIgnoresNonPositive(t *testing.T) {
	as := assert.New(t)
	cs := comps(0, -5, 30)
	median, ok := medianSoldPrice(cs)
	as.True(ok)
	as.Equal(30.0, median)
}

func TestMedianEmpty(t *testing.T) {
	as := assert.New(t)
	_, ok := medianSoldPrice(nil)
	as.False(ok)
}

func TestSuggestPriceByCondition(t *testing.T) {
	scenarios := []struct {
		condition api.Condition
		expect    float64
	}{
		{api.ConditionNew, 40.0},
		{api.ConditionLikeNew, 36.0},
		{api.ConditionExcellent, 32.0},
		{api.ConditionGood, 28.0},
		{api.ConditionFair, 22.0},
		{api.ConditionPoor, 14.0},
		{api.Condition("unknown"), 28.0},
	}

	for _, s := range scenarios {
		t.Run(string(s.condition), func(t *testing.T) {
			as := assert.New(t)
			price, ok := suggestPrice(comps(30, 40, 50), s.condition)
			as.True(ok)
			as.Equal(s.expect, price)
		})
	}
}

func TestSuggestPriceRounds(t *testing.T) {
	as := assert.New(t)
	price, ok := suggestPrice(comps(33.33), api.ConditionGood)
	as.True(ok)
	as.Equal(23.33, price)
}

func TestSuggestPriceNoComparables(t *testing.T) {
	as := assert.New(t)
	_, ok := suggestPrice(nil, api.ConditionGood)
	as.False(ok)
}
