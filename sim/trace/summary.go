package trace

import "fmt"

// TraceSummary aggregates statistics from an OptimizationTrace.
type TraceSummary struct {
	Customers     int
	IncludedCount int
	ExcludedCount int
	ExpectedScore float64
	BudgetUsed    int64
	Budget        int64
	Evaluations   int
	Refreshes     int
	// AwardLimitDistribution maps the award limit of chosen variants to a count.
	AwardLimitDistribution map[int]int
}

// Summarize computes aggregate statistics from an OptimizationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(ot *OptimizationTrace) *TraceSummary {
	summary := &TraceSummary{
		AwardLimitDistribution: make(map[int]int),
	}
	if ot == nil {
		return summary
	}

	summary.Budget = ot.Budget
	summary.Customers = len(ot.Searches)
	for _, s := range ot.Searches {
		summary.Evaluations += s.Evaluations
		summary.Refreshes += s.Refreshes
	}

	for _, a := range ot.Allocations {
		if !a.Included {
			summary.ExcludedCount++
			continue
		}
		summary.IncludedCount++
		summary.ExpectedScore += a.Score
		summary.BudgetUsed += a.Cost
		summary.AwardLimitDistribution[a.MaxAwards]++
	}

	return summary
}

// String renders the summary for CLI output.
func (s *TraceSummary) String() string {
	return fmt.Sprintf("customers=%d included=%d excluded=%d expected_score=%.2f budget=%d/%d evaluations=%d refreshes=%d",
		s.Customers, s.IncludedCount, s.ExcludedCount, s.ExpectedScore, s.BudgetUsed, s.Budget,
		s.Evaluations, s.Refreshes)
}
