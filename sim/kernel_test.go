package sim_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loke-sim/loke/sim"
	"github.com/loke-sim/loke/sim/internal/testutil"
)

func TestSimulate_GoldenDataset(t *testing.T) {
	dataset := testutil.LoadGoldenDataset(t)
	require.NotEmpty(t, dataset.Tests)

	for _, tc := range dataset.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			c := tc.Customer()
			p := tc.Personality()

			out, err := sim.Simulate(&c, &p, tc.Catalog(t), tc.Terms(), tc.AwardCalendar())
			require.NoError(t, err)

			testutil.AssertFloat64Equal(t, "score", tc.Expected.Score, out.Score, 1e-9)
			testutil.AssertFloat64Equal(t, "budget_required", tc.Expected.BudgetRequired, out.BudgetRequired, 1e-9)
			assert.Equal(t, tc.Expected.BankruptMonth, out.BankruptMonth)
		})
	}
}

func steadyCustomer() (sim.Customer, sim.Personality) {
	c := sim.Customer{
		Name:            "Steady",
		Loan:            sim.Loan{Product: "solar", EnvironmentalImpact: 100, Amount: 12000},
		Personality:     "practical",
		Capital:         10000,
		Income:          5000,
		MonthlyExpenses: 1000,
	}
	p := sim.Personality{
		HappinessMultiplier:      1.0,
		AcceptedMinInterest:      0.01,
		AcceptedMaxInterest:      0.2,
		LivingStandardMultiplier: 1.0,
		MonthsLimitMultiplier:    1,
	}
	return c, p
}

func reliefCatalog(t *testing.T) *sim.AwardCatalog {
	t.Helper()
	catalog, err := sim.NewAwardCatalog([]sim.Award{
		{ID: 1, Name: "GiftCard", Cost: 50, BaseHappiness: 40},
		{ID: 2, Name: sim.AwardHalfInterestRate, Cost: 5, BaseHappiness: 150, RebateFraction: 0.5},
		{ID: 3, Name: sim.AwardNoInterestRate, Cost: 7, BaseHappiness: 500, RebateFraction: 1.0},
	})
	require.NoError(t, err)
	return catalog
}

func TestSimulate_EndToEndFixture(t *testing.T) {
	// GIVEN a solvent customer, rate 0.05, 12 months, no awards
	c, p := steadyCustomer()

	// WHEN the kernel runs
	out, err := sim.Simulate(&c, &p, reliefCatalog(t), sim.Terms{Rate: 0.05, Duration: 12}, sim.NewCalendar(12))
	require.NoError(t, err)

	// THEN the cross-implementation regression value is reproduced:
	// 100 env + 325 interest - 36000 award-free penalty
	assert.InDelta(t, -35575.0, out.Score, 1e-6)
	assert.InDelta(t, 325.0, out.Interest, 1e-6)
	assert.InDelta(t, -36000.0, out.Happiness, 1e-9)
	assert.Equal(t, 12000.0, out.BudgetRequired)
	assert.False(t, out.Bankrupt())
}

func TestSimulate_IsPure(t *testing.T) {
	c, p := steadyCustomer()
	catalog := reliefCatalog(t)
	cal := sim.Calendar{1, 0, 2, 3, 0, 1, 1, 1, 0, 0, 0, 0}
	terms := sim.Terms{Rate: 0.13, Duration: 9}

	first, err := sim.Simulate(&c, &p, catalog, terms, cal)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := sim.Simulate(&c, &p, catalog, terms, cal)
		require.NoError(t, err)
		assert.Equal(t, first, again, "run %d differs", i)
	}
	assert.Equal(t, sim.Calendar{1, 0, 2, 3, 0, 1, 1, 1, 0, 0, 0, 0}, cal, "calendar must not be mutated")
}

func TestSimulate_ConcurrentReuse(t *testing.T) {
	c, p := steadyCustomer()
	catalog := reliefCatalog(t)
	cal := sim.Calendar{3, 2, 1, 0, 0, 0, 0, 1, 2, 3, 0, 0}
	want, err := sim.Simulate(&c, &p, catalog, sim.Terms{Rate: 0.1, Duration: 12}, cal)
	require.NoError(t, err)

	results := make(chan sim.Outcome, 16)
	for i := 0; i < 16; i++ {
		go func() {
			out, _ := sim.Simulate(&c, &p, catalog, sim.Terms{Rate: 0.1, Duration: 12}, cal)
			results <- out
		}()
	}
	for i := 0; i < 16; i++ {
		assert.Equal(t, want, <-results)
	}
}

func TestSimulate_PeakBudgetNeverBelowLoan(t *testing.T) {
	c, p := steadyCustomer()
	catalog := reliefCatalog(t)
	calendars := []sim.Calendar{
		sim.NewCalendar(12),
		{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		{3, 0, 3, 0, 3, 0, 3, 0, 3, 0, 3, 0},
	}
	for _, rate := range []float64{0.01, 0.07, 0.2} {
		for _, cal := range calendars {
			out, err := sim.Simulate(&c, &p, catalog, sim.Terms{Rate: rate, Duration: 10}, cal)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, out.BudgetRequired, c.Loan.Amount)
		}
	}
}

func TestSimulate_PeakTracksShortfallEveryMonth(t *testing.T) {
	// GIVEN a ledger and a calendar stepped month by month
	c, p := steadyCustomer()
	catalog := reliefCatalog(t)
	cal := sim.Calendar{1, 1, 0, 3, 3, 0, 2, 0, 0, 1, 0, 0}
	l, err := sim.NewLedger(&c, &p, sim.Terms{Rate: 0.15, Duration: 12}, len(cal))
	require.NoError(t, err)

	s := l.Start()
	shortfall := c.Loan.Amount
	for month, lm := range l.Months {
		a := catalog.Get(cal[month])
		s.Step(lm, a, l.HappinessMultiplier)
		shortfall -= lm.Interest
		if a != nil {
			shortfall += a.Cost + a.RebateFraction*lm.InterestDue
		}
		// THEN the peak is at least the shortfall of every simulated month
		assert.GreaterOrEqual(t, s.Peak(), shortfall-1e-9, "month %d", month)
	}
}

func TestSimulate_ZeroIncomeGoesBankruptAfterThreeMarks(t *testing.T) {
	// GIVEN a customer with no income and no capital, and an award in month 0
	c := sim.Customer{
		Name:            "Broke",
		Loan:            sim.Loan{Amount: 6000, EnvironmentalImpact: 50},
		MonthlyExpenses: 100,
	}
	p := sim.Personality{HappinessMultiplier: 1, AcceptedMaxInterest: 1, LivingStandardMultiplier: 1, MonthsLimitMultiplier: 1}
	catalog := reliefCatalog(t)
	cal := sim.Calendar{1, 0, 1, 1, 1, 1}

	// WHEN the kernel runs
	out, err := sim.Simulate(&c, &p, catalog, sim.Terms{Rate: 0.1, Duration: 6}, cal)
	require.NoError(t, err)

	// THEN the third missed payment (month 2) is terminal: -500 on top of
	// the two -50 marks and the month-0 award, and later awards are ignored
	assert.Equal(t, 2, out.BankruptMonth)
	assert.InDelta(t, -50+40-50-500, out.Happiness, 1e-9)
	assert.InDelta(t, 50.0, out.AwardCost, 1e-9)
	assert.InDelta(t, 0.0, out.Interest, 1e-9)

	l, err := sim.NewLedger(&c, &p, sim.Terms{Rate: 0.1, Duration: 6}, 6)
	require.NoError(t, err)
	assert.Len(t, l.Months, 3, "no month is simulated after bankruptcy")
}

func TestSimulate_RateReliefAwardsChargeInterestRebate(t *testing.T) {
	// GIVEN a solvent customer and the two relief awards in consecutive months
	c := sim.Customer{
		Name:    "Relief",
		Loan:    sim.Loan{Amount: 2400},
		Capital: 10000,
	}
	p := sim.Personality{HappinessMultiplier: 1, AcceptedMaxInterest: 1, LivingStandardMultiplier: 1, MonthsLimitMultiplier: 1}
	catalog := reliefCatalog(t)

	tests := []struct {
		name     string
		calendar sim.Calendar
		wantCost float64
	}{
		// month-0 interest due is 2400*0.12/12 = 24, month-1 is 1200*0.12/12 = 12
		{"no interest then half", sim.Calendar{3, 2}, 7 + 24 + 5 + 6},
		{"half then no interest", sim.Calendar{2, 3}, 5 + 12 + 7 + 12},
		{"ordinary award is flat", sim.Calendar{1, 1}, 50 + 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := sim.Simulate(&c, &p, catalog, sim.Terms{Rate: 0.12, Duration: 2}, tt.calendar)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantCost, out.AwardCost, 1e-9)
			assert.InDelta(t, 36.0, out.Interest, 1e-9)
		})
	}
}

func TestSimulate_AwardFreeGraceAndRepeatAcrossGaps(t *testing.T) {
	c, p := steadyCustomer()
	catalog := reliefCatalog(t)

	// GIVEN an award every fourth month, the streak never exceeds 3
	withAwards, err := sim.Simulate(&c, &p, catalog, sim.Terms{Rate: 0.05, Duration: 12},
		sim.Calendar{0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1})
	require.NoError(t, err)

	// THEN no award-free penalty is charged; the third GiftCard in a row
	// (gaps do not break the repeat check) flips to -40
	assert.InDelta(t, 40.0+40.0-40.0, withAwards.Happiness, 1e-9)
}

func TestSimulate_InvalidParameters(t *testing.T) {
	c, p := steadyCustomer()
	catalog := reliefCatalog(t)

	tests := []struct {
		name     string
		terms    sim.Terms
		calendar sim.Calendar
	}{
		{"rate below bounds", sim.Terms{Rate: 0.001, Duration: 12}, sim.NewCalendar(12)},
		{"rate above bounds", sim.Terms{Rate: 0.5, Duration: 12}, sim.NewCalendar(12)},
		{"NaN rate", sim.Terms{Rate: math.NaN(), Duration: 12}, sim.NewCalendar(12)},
		{"negative duration", sim.Terms{Rate: 0.05, Duration: -1}, sim.NewCalendar(12)},
		{"duration over limit", sim.Terms{Rate: 0.05, Duration: 13}, sim.NewCalendar(12)},
		{"unknown award id", sim.Terms{Rate: 0.05, Duration: 12}, sim.Calendar{9, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"empty calendar", sim.Terms{Rate: 0.05, Duration: 0}, sim.Calendar{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sim.Simulate(&c, &p, catalog, tt.terms, tt.calendar)
			require.Error(t, err)
			assert.True(t, errors.Is(err, sim.ErrInvalidParameter))
		})
	}
}

func TestSimulate_ZeroDurationIsLegal(t *testing.T) {
	c, p := steadyCustomer()
	out, err := sim.Simulate(&c, &p, reliefCatalog(t), sim.Terms{Rate: 0.05, Duration: 0}, sim.NewCalendar(3))
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.Interest)
	assert.Equal(t, 100.0, out.Score)
}

func TestAwardCatalog_RejectsSparseIDs(t *testing.T) {
	_, err := sim.NewAwardCatalog([]sim.Award{{ID: 2, Name: "A"}})
	assert.Error(t, err)

	_, err = sim.NewAwardCatalog([]sim.Award{{ID: 1, Name: "A"}, {ID: 2, Name: "A"}})
	assert.Error(t, err)
}

func TestAwardCatalog_Lookup(t *testing.T) {
	catalog := reliefCatalog(t)
	id, ok := catalog.Lookup(sim.AwardNoInterestRate)
	require.True(t, ok)
	assert.Equal(t, sim.AwardID(3), id)
	assert.Nil(t, catalog.Get(sim.NoAward))
	assert.Nil(t, catalog.Get(4))
	assert.Equal(t, 3, catalog.Len())
}
