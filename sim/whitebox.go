package sim

import (
	"errors"
	"fmt"
)

// Score mirrors the judge's scoreboard for a whole submission.
type Score struct {
	MapName             string  `json:"mapName"`
	EnvironmentalImpact float64 `json:"environmentalImpact"`
	HappinessScore      float64 `json:"happinessScore"`
	TotalProfit         float64 `json:"totalProfit"`
	TotalScore          float64 `json:"totalScore"` // sum of the three sub-scores
}

// String renders the scoreboard on one line.
func (s Score) String() string {
	return fmt.Sprintf("%s: env=%.2f hap=%.2f pro=%.2f tot=%.2f",
		s.MapName, s.EnvironmentalImpact, s.HappinessScore, s.TotalProfit, s.TotalScore)
}

// Evaluate scores a submission locally the way the remote judge does.
// Proposals whose rate falls outside the customer's accepted bounds are
// dropped silently, as the judge does; structural problems are errors.
func Evaluate(g *GameData, sub *Submission) (Score, error) {
	if len(sub.Proposals) == 0 {
		return Score{}, errors.New("submission has no proposals")
	}
	score := Score{MapName: g.Name}
	for _, prop := range sub.Proposals {
		c := g.CustomerByName(prop.Customer)
		if c == nil {
			return Score{}, fmt.Errorf("customer %q does not exist on map %q", prop.Customer, g.Name)
		}
		if len(prop.Calendar) != g.GameLength {
			return Score{}, fmt.Errorf("customer %q: %d actions, want one per month (%d)",
				prop.Customer, len(prop.Calendar), g.GameLength)
		}
		p, err := g.PersonalityOf(c)
		if err != nil {
			return Score{}, err
		}
		if !p.AcceptsRate(prop.Terms.Rate) {
			continue
		}
		out, err := Simulate(c, p, g.Awards, prop.Terms, prop.Calendar)
		if err != nil {
			return Score{}, fmt.Errorf("customer %q: %w", prop.Customer, err)
		}
		score.EnvironmentalImpact += out.EnvironmentalImpact
		score.HappinessScore += out.Happiness
		score.TotalProfit += out.Interest - out.AwardCost
	}
	score.TotalScore = score.EnvironmentalImpact + score.HappinessScore + score.TotalProfit
	return score, nil
}
