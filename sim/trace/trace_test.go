package trace

import (
	"testing"
)

func TestOptimizationTrace_RecordSearch_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	ot := NewOptimizationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN a search record is recorded
	ot.RecordSearch(SearchRecord{
		Customer:    "Glenn",
		Rate:        0.12,
		Duration:    24,
		Score:       310.5,
		Evaluations: 1000,
	})

	// THEN the trace contains one search record with correct data
	if len(ot.Searches) != 1 {
		t.Fatalf("expected 1 search, got %d", len(ot.Searches))
	}
	if ot.Searches[0].Customer != "Glenn" {
		t.Errorf("expected customer Glenn, got %s", ot.Searches[0].Customer)
	}
	if ot.Searches[0].Duration != 24 {
		t.Errorf("expected duration 24, got %d", ot.Searches[0].Duration)
	}
}

func TestOptimizationTrace_RecordAllocation_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	ot := NewOptimizationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN an allocation record with candidates is recorded
	ot.RecordAllocation(AllocationRecord{
		Customer:  "Glenn",
		Included:  true,
		MaxAwards: 2,
		Score:     90,
		Cost:      5000,
		Candidates: []VariantScore{
			{MaxAwards: 0, Score: 40, Cost: 4000},
			{MaxAwards: 2, Score: 90, Cost: 5000},
		},
	})

	// THEN the trace contains one allocation record with its candidates
	if len(ot.Allocations) != 1 {
		t.Fatalf("expected 1 allocation, got %d", len(ot.Allocations))
	}
	if len(ot.Allocations[0].Candidates) != 2 {
		t.Errorf("expected 2 candidates, got %d", len(ot.Allocations[0].Candidates))
	}
}

func TestIsValidTraceLevel(t *testing.T) {
	tests := []struct {
		level string
		want  bool
	}{
		{"none", true},
		{"decisions", true},
		{"", true},
		{"verbose", false},
	}
	for _, tt := range tests {
		if got := IsValidTraceLevel(tt.level); got != tt.want {
			t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
