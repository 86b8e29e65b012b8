// Package trace records the decisions of one optimization run.
// This package has no dependencies on sim/ or its sub-packages; it stores pure data types.
package trace

// SearchRecord captures the outcome of one customer's parameter search.
type SearchRecord struct {
	Customer    string
	Rate        float64
	Duration    int
	Score       float64 // best swarm score, -Inf when nothing valid was found
	Evaluations int
	Refreshes   int // award-scheduler runs triggered by the calendar cache
	Variants    int // plan variants handed to the allocator
}

// VariantScore is one plan variant offered to the allocator.
type VariantScore struct {
	MaxAwards int
	Score     float64
	Cost      int64
}

// AllocationRecord captures the allocator's decision for one customer.
type AllocationRecord struct {
	Customer   string
	Included   bool
	MaxAwards  int // award limit of the chosen variant, -1 if excluded
	Score      float64
	Cost       int64
	Reason     string
	Candidates []VariantScore // every variant offered, in generation order
}
