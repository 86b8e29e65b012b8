package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every search and allocation decision.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// OptimizationTrace collects decision records during an optimization run.
// It is filled after fan-in and is not safe for concurrent recording.
type OptimizationTrace struct {
	Config      TraceConfig
	Budget      int64
	Searches    []SearchRecord
	Allocations []AllocationRecord
}

// NewOptimizationTrace creates an OptimizationTrace ready for recording.
func NewOptimizationTrace(config TraceConfig) *OptimizationTrace {
	return &OptimizationTrace{
		Config:      config,
		Searches:    make([]SearchRecord, 0),
		Allocations: make([]AllocationRecord, 0),
	}
}

// RecordSearch appends a search record.
func (ot *OptimizationTrace) RecordSearch(record SearchRecord) {
	ot.Searches = append(ot.Searches, record)
}

// RecordAllocation appends an allocation record.
func (ot *OptimizationTrace) RecordAllocation(record AllocationRecord) {
	ot.Allocations = append(ot.Allocations, record)
}
