package sim

import "fmt"

// Loan is the product offered to a customer.
type Loan struct {
	Product             string
	EnvironmentalImpact float64
	Amount              float64
}

// Customer is an immutable entry of a game map.
type Customer struct {
	Name            string
	Loan            Loan
	Personality     string // key into GameData.Personalities (lower-case)
	Capital         float64
	Income          float64
	MonthlyExpenses float64
	NumberOfKids    float64
	HomeMortgage    float64
	// HasStudentLoan is carried for completeness; the judge never charges it.
	HasStudentLoan bool
}

// Personality bounds the terms a customer accepts and scales their reactions.
type Personality struct {
	HappinessMultiplier      float64
	AcceptedMinInterest      float64
	AcceptedMaxInterest      float64
	LivingStandardMultiplier float64
	// MonthsLimitMultiplier caps the repayment duration as a multiple of the game length.
	MonthsLimitMultiplier int
}

// MaxDuration returns the longest repayment duration this personality accepts.
func (p *Personality) MaxDuration(gameLength int) int {
	return p.MonthsLimitMultiplier * gameLength
}

// AcceptsRate reports whether rate lies within the accepted interest bounds.
func (p *Personality) AcceptsRate(rate float64) bool {
	return p.AcceptedMinInterest <= rate && rate <= p.AcceptedMaxInterest
}

// AwardID is a dense ordinal in 1..N. The zero value means "no award".
type AwardID uint8

// NoAward marks a calendar month without an award.
const NoAward AwardID = 0

// Award is a one-time monthly benefit.
type Award struct {
	ID            AwardID
	Name          string
	Cost          float64
	BaseHappiness float64
	// RebateFraction is the share of the month's interest the bank waives
	// (0 for ordinary awards, 0.5 or 1.0 for the rate-relief awards).
	RebateFraction float64
}

// Names of the two rate-relief awards.
const (
	AwardNoInterestRate   = "NoInterestRate"
	AwardHalfInterestRate = "HalfInterestRate"
)

// RebateFractionFor returns the interest rebate fraction of the named award.
func RebateFractionFor(name string) float64 {
	switch name {
	case AwardNoInterestRate:
		return 1.0
	case AwardHalfInterestRate:
		return 0.5
	default:
		return 0
	}
}

// AwardCatalog is the read-only, id-indexed award table of one game.
// It is built once at load time and shared by every customer's optimization.
type AwardCatalog struct {
	awards []Award // awards[i].ID == i+1
	byName map[string]AwardID
}

// NewAwardCatalog builds a catalog from awards already sorted in id order.
// Ids must be dense, starting at 1.
func NewAwardCatalog(awards []Award) (*AwardCatalog, error) {
	c := &AwardCatalog{
		awards: make([]Award, len(awards)),
		byName: make(map[string]AwardID, len(awards)),
	}
	for i, a := range awards {
		if int(a.ID) != i+1 {
			return nil, fmt.Errorf("award %q: id %d is not dense (want %d)", a.Name, a.ID, i+1)
		}
		if _, dup := c.byName[a.Name]; dup {
			return nil, fmt.Errorf("award %q: duplicate name", a.Name)
		}
		c.awards[i] = a
		c.byName[a.Name] = a.ID
	}
	return c, nil
}

// Len returns the number of awards N.
func (c *AwardCatalog) Len() int { return len(c.awards) }

// Get returns the award with the given id, or nil for NoAward or an unknown id.
func (c *AwardCatalog) Get(id AwardID) *Award {
	if id == NoAward || int(id) > len(c.awards) {
		return nil
	}
	return &c.awards[id-1]
}

// Lookup resolves an award name to its id.
func (c *AwardCatalog) Lookup(name string) (AwardID, bool) {
	id, ok := c.byName[name]
	return id, ok
}

// All returns the awards in id order. Callers must not modify the result.
func (c *AwardCatalog) All() []Award { return c.awards }

// Calendar holds one entry per game month; NoAward means skip.
type Calendar []AwardID

// NewCalendar returns an award-free calendar of the given length.
func NewCalendar(months int) Calendar {
	return make(Calendar, months)
}

// Count returns the number of months with an award.
func (c Calendar) Count() int {
	n := 0
	for _, id := range c {
		if id != NoAward {
			n++
		}
	}
	return n
}

// Terms are the repayment parameters proposed to a customer.
type Terms struct {
	Rate     float64 // yearly interest rate
	Duration int     // months to pay back the loan
}

// GameData is the read-only reference data of one game.
type GameData struct {
	Name          string
	Budget        float64
	GameLength    int
	Customers     []Customer
	Personalities map[string]Personality
	Awards        *AwardCatalog
}

// PersonalityOf returns the personality of the customer.
func (g *GameData) PersonalityOf(c *Customer) (*Personality, error) {
	p, ok := g.Personalities[c.Personality]
	if !ok {
		return nil, fmt.Errorf("customer %q: unknown personality %q", c.Name, c.Personality)
	}
	return &p, nil
}

// CustomerByName returns the named customer, or nil.
func (g *GameData) CustomerByName(name string) *Customer {
	for i := range g.Customers {
		if g.Customers[i].Name == name {
			return &g.Customers[i]
		}
	}
	return nil
}

// Proposal is one customer's entry of a Submission.
type Proposal struct {
	Customer string
	Terms    Terms
	Calendar Calendar
}

// Submission is the externally visible artifact sent to the judge.
type Submission struct {
	Game      string
	Proposals []Proposal
}
