package sim

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParameter is returned when proposed terms or a calendar violate
// the kernel preconditions. It is always raised before the month loop starts.
var ErrInvalidParameter = errors.New("invalid parameter")

// Judge constants of the pinned scoring revision.
const (
	marksLimit       = 3
	markPenalty      = -50.0
	bankruptPenalty  = -500.0
	kidMonthlyCost   = 2000.0
	mortgageRate     = 0.001
	awardFreeGrace   = 3     // award-free months tolerated before the penalty starts
	awardFreePenalty = 500.0 // per month of the current award-free streak
	maxAwardsInRow   = 5
	streakDecay      = 0.2
	repeatMultiplier = -1.0
	monthsPerYear    = 12.0
)

// NoBankruptcy is the BankruptMonth of a customer who stayed solvent.
const NoBankruptcy = -1

// Outcome is the result of one kernel run.
type Outcome struct {
	Score          float64
	BudgetRequired float64 // peak running shortfall, never below the loan amount
	BankruptMonth  int     // NoBankruptcy when the customer stayed solvent

	EnvironmentalImpact float64
	Interest            float64
	Happiness           float64
	AwardCost           float64
}

// Bankrupt reports whether the customer went bankrupt during the run.
func (o Outcome) Bankrupt() bool { return o.BankruptMonth != NoBankruptcy }

// LedgerMonth is the award-independent outcome of one simulated month.
type LedgerMonth struct {
	Interest    float64 // interest credited to the bank, 0 if unpaid or not due
	InterestDue float64 // interest on the opening balance, the base of rate-relief rebates
	MarkPenalty float64 // happiness change caused by a missed payment
	Bankrupt    bool    // the third mark fell in this month; the run stops here
}

// Ledger is the payment track of a customer under fixed terms. Awards never
// touch the customer's capital, so the track is shared by every calendar.
type Ledger struct {
	Months              []LedgerMonth // truncated after the bankruptcy month
	BankruptMonth       int
	Interest            float64
	EnvironmentalImpact float64
	LoanAmount          float64
	HappinessMultiplier float64
}

// ValidateTerms checks the kernel preconditions on rate and duration.
func ValidateTerms(p *Personality, terms Terms, gameLength int) error {
	if math.IsNaN(terms.Rate) || math.IsInf(terms.Rate, 0) {
		return fmt.Errorf("%w: rate %v is not finite", ErrInvalidParameter, terms.Rate)
	}
	if !p.AcceptsRate(terms.Rate) {
		return fmt.Errorf("%w: rate %v outside [%v, %v]", ErrInvalidParameter,
			terms.Rate, p.AcceptedMinInterest, p.AcceptedMaxInterest)
	}
	if terms.Duration < 0 || terms.Duration > p.MaxDuration(gameLength) {
		return fmt.Errorf("%w: duration %d outside [0, %d]", ErrInvalidParameter,
			terms.Duration, p.MaxDuration(gameLength))
	}
	return nil
}

// NewLedger runs the payment part of the month loop.
func NewLedger(c *Customer, p *Personality, terms Terms, gameLength int) (*Ledger, error) {
	if gameLength <= 0 {
		return nil, fmt.Errorf("%w: game length %d", ErrInvalidParameter, gameLength)
	}
	if err := ValidateTerms(p, terms, gameLength); err != nil {
		return nil, err
	}
	l := &Ledger{
		Months:              make([]LedgerMonth, 0, gameLength),
		BankruptMonth:       NoBankruptcy,
		EnvironmentalImpact: c.Loan.EnvironmentalImpact,
		LoanAmount:          c.Loan.Amount,
		HappinessMultiplier: p.HappinessMultiplier,
	}

	// The judge subtracts kids and mortgage with the wrong sign; this
	// revision is pinned, so the defect is reproduced.
	expenses := c.MonthlyExpenses*p.LivingStandardMultiplier -
		c.NumberOfKids*kidMonthlyCost - c.HomeMortgage*mortgageRate

	capital := c.Capital
	balance := c.Loan.Amount
	marks := 0
	for month := 0; month < gameLength; month++ {
		capital += c.Income
		capital -= expenses

		lm := LedgerMonth{InterestDue: balance * terms.Rate / monthsPerYear}
		if month < terms.Duration {
			amortization := c.Loan.Amount / float64(terms.Duration)
			interest := lm.InterestDue
			if capital >= interest+amortization {
				capital -= interest + amortization
				balance -= amortization
				lm.Interest = interest
				l.Interest += interest
			} else {
				marks++
				if marks >= marksLimit {
					lm.Bankrupt = true
					lm.MarkPenalty = bankruptPenalty
					l.Months = append(l.Months, lm)
					l.BankruptMonth = month
					break
				}
				lm.MarkPenalty = markPenalty
			}
		}
		l.Months = append(l.Months, lm)
	}
	return l, nil
}

// Start returns the award state before month 0.
func (l *Ledger) Start() AwardState {
	return AwardState{shortfall: l.LoanAmount, peak: l.LoanAmount}
}

// Outcome folds a finished award state into the kernel result.
func (l *Ledger) Outcome(s *AwardState) Outcome {
	return Outcome{
		Score:               l.EnvironmentalImpact + l.Interest + s.happiness - s.awardCost,
		BudgetRequired:      s.peak,
		BankruptMonth:       l.BankruptMonth,
		EnvironmentalImpact: l.EnvironmentalImpact,
		Interest:            l.Interest,
		Happiness:           s.happiness,
		AwardCost:           s.awardCost,
	}
}

// AwardState is the calendar-dependent part of a kernel run. It is a value
// type: copying it forks the simulation.
type AwardState struct {
	happiness  float64
	awardCost  float64
	shortfall  float64
	peak       float64
	inRow      int
	recent     [2]AwardID // recent[0] is the latest award
	nRecent    int
	freeStreak int
	awards     int
}

// Step applies one month: the ledger's payment effects, then the award step
// (skipped in the bankruptcy month), then the peak budget update.
// award is nil for a month without an award.
func (s *AwardState) Step(lm LedgerMonth, award *Award, happinessMultiplier float64) {
	s.happiness += lm.MarkPenalty
	s.shortfall -= lm.Interest

	if !lm.Bankrupt {
		if award != nil {
			s.grant(lm, award, happinessMultiplier)
		} else {
			s.skip()
		}
	}
	s.peak = max(s.peak, s.shortfall)
}

func (s *AwardState) grant(lm LedgerMonth, a *Award, happinessMultiplier float64) {
	multiplier := 1 - streakDecay*float64(min(s.inRow, maxAwardsInRow))
	if s.nRecent == 2 && s.recent[0] == a.ID && s.recent[1] == a.ID {
		multiplier = repeatMultiplier
	}
	s.happiness += a.BaseHappiness * happinessMultiplier * multiplier

	cost := a.Cost + a.RebateFraction*lm.InterestDue
	s.awardCost += cost
	s.shortfall += cost

	s.recent[1] = s.recent[0]
	s.recent[0] = a.ID
	s.nRecent = min(s.nRecent+1, 2)
	s.inRow = min(s.inRow+1, maxAwardsInRow)
	s.freeStreak = 0
	s.awards++
}

func (s *AwardState) skip() {
	s.freeStreak++
	if s.freeStreak > awardFreeGrace {
		s.happiness -= awardFreePenalty * float64(s.freeStreak)
	}
	s.inRow = max(s.inRow-1, 0)
}

// Score returns the partial score accumulated so far, given the ledger.
func (s *AwardState) Score(l *Ledger) float64 {
	return l.EnvironmentalImpact + l.Interest + s.happiness - s.awardCost
}

// Peak returns the peak budget required so far.
func (s *AwardState) Peak() float64 { return s.peak }

// InRow returns the awards-in-a-row counter (0..5).
func (s *AwardState) InRow() int { return s.inRow }

// LastTwoEqual reports whether the two most recent awards share an id.
func (s *AwardState) LastTwoEqual() bool {
	return s.nRecent == 2 && s.recent[0] == s.recent[1]
}

// FreeStreak returns the current award-free month streak.
func (s *AwardState) FreeStreak() int { return s.freeStreak }

// Awards returns the number of awards granted so far.
func (s *AwardState) Awards() int { return s.awards }

// Simulate runs the kernel for one customer. It is pure and safe for
// concurrent use. The game length is the calendar length.
func Simulate(c *Customer, p *Personality, catalog *AwardCatalog, terms Terms, calendar Calendar) (Outcome, error) {
	for month, id := range calendar {
		if id != NoAward && catalog.Get(id) == nil {
			return Outcome{}, fmt.Errorf("%w: month %d: unknown award id %d", ErrInvalidParameter, month, id)
		}
	}
	l, err := NewLedger(c, p, terms, len(calendar))
	if err != nil {
		return Outcome{}, err
	}
	s := l.Start()
	for month, lm := range l.Months {
		s.Step(lm, catalog.Get(calendar[month]), l.HappinessMultiplier)
	}
	return l.Outcome(&s), nil
}
