package knapsack

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func regressionGroups(scale int64) [][]Variant {
	return [][]Variant{
		{{Score: 5.0, Cost: 9 * scale}},
		{{Score: 1.23, Cost: 10 * scale}},
		{{Score: 2.23, Cost: 10 * scale}},
	}
}

func TestSolve_Regression(t *testing.T) {
	// GIVEN three single-variant groups and a budget of 20
	sel := Solve(regressionGroups(1), 20)

	// THEN the 5.0 and 2.23 items are chosen for 7.23 at cost 19
	assert.Equal(t, []Choice{{Group: 0, Variant: 0}, {Group: 2, Variant: 0}}, sel.Choices)
	assert.InDelta(t, 7.23, sel.Score, 1e-12)
	assert.Equal(t, int64(19), sel.Cost)
}

func TestSolve_ScalingIsIdempotent(t *testing.T) {
	base := Solve(regressionGroups(1), 20)
	for _, k := range []int64{2, 7, 1000} {
		sel := Solve(regressionGroups(k), 20*k)
		assert.Equal(t, base.Choices, sel.Choices, "scale %d", k)
		assert.Equal(t, base.Score, sel.Score, "scale %d", k)
		assert.Equal(t, base.Cost*k, sel.Cost, "scale %d", k)
	}
}

func TestSolve_NonPositiveBudgetIsEmpty(t *testing.T) {
	for _, budget := range []int64{0, -5} {
		sel := Solve(regressionGroups(1), budget)
		assert.Empty(t, sel.Choices)
		assert.Equal(t, 0.0, sel.Score)
		assert.Equal(t, int64(0), sel.Cost)
	}
}

func TestSolve_NoGroups(t *testing.T) {
	sel := Solve(nil, 100)
	assert.Empty(t, sel.Choices)
	assert.Equal(t, 0.0, sel.Score)
}

func TestSolve_AtMostOneVariantPerGroup(t *testing.T) {
	// GIVEN one customer with three variants that would all fit together
	groups := [][]Variant{{
		{Score: 1, Cost: 1},
		{Score: 3, Cost: 2},
		{Score: 4, Cost: 5},
	}}

	sel := Solve(groups, 10)

	// THEN only the single best variant is taken
	require.Len(t, sel.Choices, 1)
	assert.Equal(t, Choice{Group: 0, Variant: 2}, sel.Choices[0])
	assert.Equal(t, 4.0, sel.Score)
}

func TestSolve_MultiChoiceTradeoff(t *testing.T) {
	// GIVEN two customers whose expensive variants cannot both fit
	groups := [][]Variant{
		{{Score: 10, Cost: 60}, {Score: 6, Cost: 30}},
		{{Score: 8, Cost: 60}, {Score: 5, Cost: 20}},
	}

	sel := Solve(groups, 90)

	// THEN the best combination within budget is 10 + 5
	assert.Equal(t, []Choice{{Group: 0, Variant: 0}, {Group: 1, Variant: 1}}, sel.Choices)
	assert.Equal(t, 15.0, sel.Score)
	assert.Equal(t, int64(80), sel.Cost)
}

func TestSolve_ExcludesUnprofitableAndUnusable(t *testing.T) {
	groups := [][]Variant{
		{{Score: -3, Cost: 1}},
		{{Score: 50, Cost: 1000}},
		{{Score: math.NaN(), Cost: 1}},
		{},
		{{Score: 2, Cost: 4}},
	}

	sel := Solve(groups, 10)

	assert.Equal(t, []Choice{{Group: 4, Variant: 0}}, sel.Choices)
	assert.Equal(t, 2.0, sel.Score)
	assert.Equal(t, int64(4), sel.Cost)
}

func TestSolve_TiesKeepFirstVariant(t *testing.T) {
	groups := [][]Variant{{{Score: 3, Cost: 2}, {Score: 3, Cost: 2}}}

	sel := Solve(groups, 2)

	assert.Equal(t, []Choice{{Group: 0, Variant: 0}}, sel.Choices)
}

func TestSolve_NeverOverCommits(t *testing.T) {
	groups := make([][]Variant, 0, 12)
	for i := int64(1); i <= 12; i++ {
		groups = append(groups, []Variant{
			{Score: float64(i), Cost: 7 * i},
			{Score: float64(i) / 2, Cost: 3 * i},
		})
	}

	for _, budget := range []int64{1, 17, 50, 123, 400} {
		sel := Solve(groups, budget)
		var cost int64
		var score float64
		for _, ch := range sel.Choices {
			v := groups[ch.Group][ch.Variant]
			cost += v.Cost
			score += v.Score
		}
		assert.LessOrEqual(t, cost, budget)
		assert.Equal(t, cost, sel.Cost)
		assert.InDelta(t, score, sel.Score, 1e-9)
	}
}

func TestCeilCost(t *testing.T) {
	tests := []struct {
		cost    float64
		quantum int64
		want    int64
	}{
		{cost: 1000, quantum: 1, want: 1000},
		{cost: 1000.01, quantum: 1, want: 1001},
		{cost: 1000.01, quantum: 100, want: 1100},
		{cost: 1100, quantum: 100, want: 1100},
		{cost: 5, quantum: 0, want: 5},
		{cost: -3, quantum: 10, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CeilCost(tt.cost, tt.quantum), "cost %v quantum %d", tt.cost, tt.quantum)
	}
}

func TestFloorBudget(t *testing.T) {
	assert.Equal(t, int64(1999), FloorBudget(1999.9, 1))
	assert.Equal(t, int64(1900), FloorBudget(1999.9, 100))
	assert.Equal(t, int64(0), FloorBudget(-10, 100))
}
