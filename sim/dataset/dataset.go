// Package dataset loads the reference data of one game from JSON files:
// Map-<game>.json, Personalities-<game>.json and Awards-<game>.json.
package dataset

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/loke-sim/loke/sim"
)

// ErrUnknownPersonality is returned for a personality without a months limit.
var ErrUnknownPersonality = errors.New("unknown personality")

// monthsLimit caps repayment duration per personality, as a multiple of
// the game length.
var monthsLimit = map[string]int{
	"conservative": 1,
	"risktaker":    2,
	"innovative":   3,
	"practical":    4,
	"spontaneous":  5,
}

// Load reads and validates the three files of game from dir.
func Load(dir, game string) (*sim.GameData, error) {
	read := func(kind string) (string, error) {
		path := filepath.Join(dir, fmt.Sprintf("%s-%s.json", kind, game))
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", kind, err)
		}
		if !gjson.ValidBytes(data) {
			return "", fmt.Errorf("%s: invalid JSON", path)
		}
		return string(data), nil
	}

	mapJSON, err := read("Map")
	if err != nil {
		return nil, err
	}
	personalitiesJSON, err := read("Personalities")
	if err != nil {
		return nil, err
	}
	awardsJSON, err := read("Awards")
	if err != nil {
		return nil, err
	}

	personalities, err := ParsePersonalities(personalitiesJSON)
	if err != nil {
		return nil, err
	}
	catalog, err := ParseAwards(awardsJSON)
	if err != nil {
		return nil, err
	}
	g, err := ParseMap(mapJSON)
	if err != nil {
		return nil, err
	}
	g.Personalities = personalities
	g.Awards = catalog

	for i := range g.Customers {
		if _, err := g.PersonalityOf(&g.Customers[i]); err != nil {
			return nil, err
		}
	}
	logrus.Infof("Loaded game %s: %d customers, %d personalities, %d awards, %d months, budget %.0f",
		g.Name, len(g.Customers), len(personalities), catalog.Len(), g.GameLength, g.Budget)
	return g, nil
}

// ParseMap decodes a map document. Personality names are lower-cased and
// the legacy keys mortgage and hasStudentLoans are accepted.
func ParseMap(doc string) (*sim.GameData, error) {
	root := gjson.Parse(doc)
	for _, key := range []string{"name", "budget", "gameLengthInMonths", "customers"} {
		if !root.Get(key).Exists() {
			return nil, fmt.Errorf("map: missing %q", key)
		}
	}
	g := &sim.GameData{
		Name:       root.Get("name").String(),
		Budget:     root.Get("budget").Float(),
		GameLength: int(root.Get("gameLengthInMonths").Int()),
	}
	if g.GameLength <= 0 {
		return nil, fmt.Errorf("map %s: game length %d", g.Name, g.GameLength)
	}

	var parseErr error
	root.Get("customers").ForEach(func(_, v gjson.Result) bool {
		c := sim.Customer{
			Name: v.Get("name").String(),
			Loan: sim.Loan{
				Product:             v.Get("loan.product").String(),
				EnvironmentalImpact: v.Get("loan.environmentalImpact").Float(),
				Amount:              v.Get("loan.amount").Float(),
			},
			Personality:     strings.ToLower(v.Get("personality").String()),
			Capital:         v.Get("capital").Float(),
			Income:          v.Get("income").Float(),
			MonthlyExpenses: v.Get("monthlyExpenses").Float(),
			NumberOfKids:    v.Get("numberOfKids").Float(),
			HomeMortgage:    firstOf(v, "homeMortgage", "mortgage").Float(),
			HasStudentLoan:  firstOf(v, "hasStudentLoan", "hasStudentLoans").Bool(),
		}
		if c.Name == "" {
			parseErr = fmt.Errorf("map %s: customer without a name", g.Name)
			return false
		}
		g.Customers = append(g.Customers, c)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return g, nil
}

// ParsePersonalities decodes a personalities document keyed by name.
func ParsePersonalities(doc string) (map[string]sim.Personality, error) {
	out := make(map[string]sim.Personality)
	var parseErr error
	gjson.Get(doc, "Personalities").ForEach(func(k, v gjson.Result) bool {
		name := strings.ToLower(k.String())
		limit, ok := monthsLimit[name]
		if !ok {
			parseErr = fmt.Errorf("%w: %q", ErrUnknownPersonality, k.String())
			return false
		}
		out[name] = sim.Personality{
			HappinessMultiplier:      v.Get("happinessMultiplier").Float(),
			AcceptedMinInterest:      v.Get("acceptedMinInterest").Float(),
			AcceptedMaxInterest:      v.Get("acceptedMaxInterest").Float(),
			LivingStandardMultiplier: v.Get("livingStandardMultiplier").Float(),
			MonthsLimitMultiplier:    limit,
		}
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(out) == 0 {
		return nil, errors.New("personalities: none defined")
	}
	return out, nil
}

// ParseAwards decodes an awards document and numbers the awards 1..N by
// ascending base happiness, ties broken by name.
func ParseAwards(doc string) (*sim.AwardCatalog, error) {
	var awards []sim.Award
	gjson.Get(doc, "Awards").ForEach(func(k, v gjson.Result) bool {
		awards = append(awards, sim.Award{
			Name:           k.String(),
			Cost:           v.Get("cost").Float(),
			BaseHappiness:  v.Get("baseHappiness").Float(),
			RebateFraction: sim.RebateFractionFor(k.String()),
		})
		return true
	})
	if len(awards) > math.MaxUint8 {
		return nil, fmt.Errorf("awards: %d defined, at most %d supported", len(awards), math.MaxUint8)
	}
	slices.SortFunc(awards, func(a, b sim.Award) int {
		if c := cmp.Compare(a.BaseHappiness, b.BaseHappiness); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	for i := range awards {
		awards[i].ID = sim.AwardID(i + 1)
	}
	return sim.NewAwardCatalog(awards)
}

func firstOf(v gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if r := v.Get(k); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}
