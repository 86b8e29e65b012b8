package sim

// SearchConfig groups particle-swarm parameters for the per-customer search.
type SearchConfig struct {
	Particles  int // swarm size (must be > 0)
	Iterations int // fixed iteration budget, no early stop (must be > 0)
	// ScheduleTTL is how many cost evaluations a particle reuses its cached
	// award calendar before the scheduler recomputes it. 0 scores every
	// position against an award-free calendar.
	ScheduleTTL int
}

// ScheduleConfig groups award-scheduler parameters.
type ScheduleConfig struct {
	MaxSkyline int // cap on the pareto list kept per DP key (must be > 0)
}

// AllocatorConfig groups budget-allocator parameters.
type AllocatorConfig struct {
	// CostQuantum is the monetary resolution of the knapsack table. Costs are
	// rounded up and the budget down to a multiple of it (must be >= 1).
	CostQuantum int64
}

// NewSearchConfig creates a SearchConfig. Zero values are kept as given.
func NewSearchConfig(particles, iterations, scheduleTTL int) SearchConfig {
	return SearchConfig{
		Particles:   particles,
		Iterations:  iterations,
		ScheduleTTL: scheduleTTL,
	}
}

// NewScheduleConfig creates a ScheduleConfig.
func NewScheduleConfig(maxSkyline int) ScheduleConfig {
	return ScheduleConfig{MaxSkyline: maxSkyline}
}

// NewAllocatorConfig creates an AllocatorConfig.
func NewAllocatorConfig(costQuantum int64) AllocatorConfig {
	return AllocatorConfig{CostQuantum: costQuantum}
}

// DefaultSearchConfig returns a small swarm with a long fixed iteration budget.
func DefaultSearchConfig() SearchConfig {
	return NewSearchConfig(10, 10_000, 0)
}

// DefaultScheduleConfig returns the default scheduler configuration.
func DefaultScheduleConfig() ScheduleConfig {
	return NewScheduleConfig(32)
}

// DefaultAllocatorConfig keeps the knapsack table to budget/100 columns.
func DefaultAllocatorConfig() AllocatorConfig {
	return NewAllocatorConfig(100)
}
