// Package testutil provides shared test infrastructure for the loke engine.
// It consolidates the golden kernel dataset and assertion helpers used across
// sim/ and its sub-packages.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/loke-sim/loke/sim"
)

// GoldenDataset represents the structure of testdata/kernel_golden.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenAward is one award of a golden case; ids follow list order from 1.
type GoldenAward struct {
	Name          string  `json:"name"`
	Cost          float64 `json:"cost"`
	BaseHappiness float64 `json:"base_happiness"`
}

// GoldenTestCase represents a single kernel regression case.
type GoldenTestCase struct {
	Name                     string        `json:"name"`
	Capital                  float64       `json:"capital"`
	Income                   float64       `json:"income"`
	MonthlyExpenses          float64       `json:"monthly_expenses"`
	NumberOfKids             float64       `json:"number_of_kids"`
	HomeMortgage             float64       `json:"home_mortgage"`
	LoanAmount               float64       `json:"loan_amount"`
	EnvironmentalImpact      float64       `json:"environmental_impact"`
	HappinessMultiplier      float64       `json:"happiness_multiplier"`
	AcceptedMinInterest      float64       `json:"accepted_min_interest"`
	AcceptedMaxInterest      float64       `json:"accepted_max_interest"`
	LivingStandardMultiplier float64       `json:"living_standard_multiplier"`
	MonthsLimitMultiplier    int           `json:"months_limit_multiplier"`
	Awards                   []GoldenAward `json:"awards"`
	Rate                     float64       `json:"rate"`
	Duration                 int           `json:"duration"`
	Calendar                 []int         `json:"calendar"`
	Expected                 GoldenOutcome `json:"expected"`
}

// GoldenOutcome is the stored kernel result of a case.
type GoldenOutcome struct {
	Score          float64 `json:"score"`
	BudgetRequired float64 `json:"budget_required"`
	BankruptMonth  int     `json:"bankrupt_month"`
}

// Customer builds the sim.Customer of the case.
func (tc *GoldenTestCase) Customer() sim.Customer {
	return sim.Customer{
		Name:            tc.Name,
		Loan:            sim.Loan{Product: "golden", EnvironmentalImpact: tc.EnvironmentalImpact, Amount: tc.LoanAmount},
		Personality:     "golden",
		Capital:         tc.Capital,
		Income:          tc.Income,
		MonthlyExpenses: tc.MonthlyExpenses,
		NumberOfKids:    tc.NumberOfKids,
		HomeMortgage:    tc.HomeMortgage,
	}
}

// Personality builds the sim.Personality of the case.
func (tc *GoldenTestCase) Personality() sim.Personality {
	return sim.Personality{
		HappinessMultiplier:      tc.HappinessMultiplier,
		AcceptedMinInterest:      tc.AcceptedMinInterest,
		AcceptedMaxInterest:      tc.AcceptedMaxInterest,
		LivingStandardMultiplier: tc.LivingStandardMultiplier,
		MonthsLimitMultiplier:    tc.MonthsLimitMultiplier,
	}
}

// Catalog builds the award catalog of the case.
func (tc *GoldenTestCase) Catalog(t *testing.T) *sim.AwardCatalog {
	t.Helper()
	awards := make([]sim.Award, len(tc.Awards))
	for i, a := range tc.Awards {
		awards[i] = sim.Award{
			ID:             sim.AwardID(i + 1),
			Name:           a.Name,
			Cost:           a.Cost,
			BaseHappiness:  a.BaseHappiness,
			RebateFraction: sim.RebateFractionFor(a.Name),
		}
	}
	catalog, err := sim.NewAwardCatalog(awards)
	if err != nil {
		t.Fatalf("golden case %s: %v", tc.Name, err)
	}
	return catalog
}

// Terms returns the proposed terms of the case.
func (tc *GoldenTestCase) Terms() sim.Terms {
	return sim.Terms{Rate: tc.Rate, Duration: tc.Duration}
}

// AwardCalendar converts the stored calendar.
func (tc *GoldenTestCase) AwardCalendar() sim.Calendar {
	cal := make(sim.Calendar, len(tc.Calendar))
	for i, id := range tc.Calendar {
		cal[i] = sim.AwardID(id)
	}
	return cal
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(RepoRoot(thisFile), "testdata", "kernel_golden.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}

	return &dataset
}

// TestdataDir returns the absolute path of the repository testdata directory.
func TestdataDir(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Join(RepoRoot(thisFile), "testdata")
}

// RepoRoot navigates from sim/internal/testutil/<file> to the repository root.
func RepoRoot(thisFile string) string {
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "..")
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
