// Package knapsack combines per-customer plan variants into one submission
// that fits a shared budget.
//
// It solves a multiple-choice knapsack: each group contributes at most one
// variant, and leaving a group out is always allowed. Costs are integers;
// the table is shrunk by the greatest common divisor of every usable cost and
// the budget before the dynamic program runs.
package knapsack

import (
	"cmp"
	"math"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/loke-sim/loke/sim"
)

// Variant is one (score, cost) option of a group.
type Variant struct {
	Score float64
	Cost  int64
}

// Choice names the variant picked for one group.
type Choice struct {
	Group   int
	Variant int
}

// Selection is the allocator's answer. Choices are ordered by group index.
type Selection struct {
	Choices []Choice
	Score   float64
	Cost    int64
}

type cell struct {
	score   float64
	last    int32 // group whose variant was taken last, -1 for none
	variant int32
}

// Solve returns the best-scoring selection whose total cost stays within
// budget. A non-positive budget yields an empty selection. Variants with a
// negative or over-budget cost, or a NaN score, are never chosen.
func Solve(groups [][]Variant, budget int64) Selection {
	if budget <= 0 || len(groups) == 0 {
		return Selection{}
	}

	g := budget
	for _, grp := range groups {
		for _, v := range grp {
			if usable(v, budget) {
				g = gcd(g, v.Cost)
			}
		}
	}
	width := int(budget/g) + 1
	logrus.Debugf("knapsack: %d groups, budget %d, gcd %d, %d columns", len(groups), budget, g, width)

	cells := make([]cell, (len(groups)+1)*width)
	row := func(i int) []cell { return cells[i*width : (i+1)*width] }
	for b := range row(0) {
		row(0)[b].last = -1
	}

	for i, grp := range groups {
		prev, cur := row(i), row(i+1)
		copy(cur, prev)
		for vi, v := range grp {
			if !usable(v, budget) {
				continue
			}
			c := int(v.Cost / g)
			for b := c; b < width; b++ {
				if s := prev[b-c].score + v.Score; s > cur[b].score {
					cur[b] = cell{score: s, last: int32(i), variant: int32(vi)}
				}
			}
		}
	}

	sel := Selection{Score: row(len(groups))[width-1].score}
	b := width - 1
	for at := row(len(groups))[b]; at.last >= 0; at = row(int(at.last))[b] {
		v := groups[at.last][at.variant]
		sel.Choices = append(sel.Choices, Choice{Group: int(at.last), Variant: int(at.variant)})
		sel.Cost += v.Cost
		b -= int(v.Cost / g)
	}
	slices.SortFunc(sel.Choices, func(a, b Choice) int { return cmp.Compare(a.Group, b.Group) })
	return sel
}

func usable(v Variant, budget int64) bool {
	return v.Cost >= 0 && v.Cost <= budget && sim.ValidScore(v.Score)
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// CeilCost converts a monetary requirement into a knapsack cost: rounded up
// to a whole unit, then up to a multiple of quantum.
func CeilCost(cost float64, quantum int64) int64 {
	quantum = max(quantum, 1)
	c := int64(math.Ceil(cost))
	if c <= 0 {
		return 0
	}
	return (c + quantum - 1) / quantum * quantum
}

// FloorBudget converts the available budget into a knapsack capacity:
// rounded down to a multiple of quantum.
func FloorBudget(budget float64, quantum int64) int64 {
	quantum = max(quantum, 1)
	b := int64(math.Floor(budget))
	if b <= 0 {
		return 0
	}
	return b / quantum * quantum
}
