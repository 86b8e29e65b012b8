// Package schedule finds award calendars for fixed repayment terms.
//
// The search is a dynamic program over months. Awards never change the
// customer's payments, so the kernel's payment ledger is computed once and
// only the award-dependent state (happiness, cost, streak counters) is
// expanded. States sharing a key keep a pareto skyline of
// (score, peak budget, award-free streak) instead of a single best value.
package schedule

import (
	"cmp"
	"slices"

	"github.com/loke-sim/loke/sim"
)

// NoAwardLimit lets a plan use an award in every month.
const NoAwardLimit = -1

// inRowBuckets covers the awards-in-a-row counter capped at 6.
const inRowBuckets = 7

// Plan is one candidate calendar with its kernel result.
type Plan struct {
	Score          float64
	BudgetRequired float64
	Calendar       sim.Calendar
}

// Problem describes one scheduling request.
type Problem struct {
	Customer    *sim.Customer
	Personality *sim.Personality
	Awards      *sim.AwardCatalog
	Terms       sim.Terms
	GameLength  int
	MaxAwards   int // NoAwardLimit, or the most awards a calendar may hold
}

// Scheduler runs the award-calendar dynamic program. It holds no per-run
// state and is safe for concurrent use.
type Scheduler struct {
	maxSkyline int
}

// New creates a Scheduler.
func New(cfg sim.ScheduleConfig) *Scheduler {
	return &Scheduler{maxSkyline: max(cfg.MaxSkyline, 1)}
}

// stateKey is the compressed DP key. Month and the forced-bankruptcy flag are
// constant within one layer of one pass, so a layer only indexes the rest.
type stateKey struct {
	month        int
	inRow        int
	lastTwoEqual bool
	forced       bool
}

func (k stateKey) bucket() int {
	b := min(k.inRow, inRowBuckets-1) * 2
	if k.lastTwoEqual {
		b++
	}
	return b
}

type node struct {
	state  sim.AwardState
	parent *node
	award  sim.AwardID
}

type layer [inRowBuckets * 2][]*node

// Schedule returns the skyline of plans for the problem: sorted by
// descending score, with strictly decreasing budget as the score decreases.
// Only plans with a positive score are returned; an empty result is valid.
func (s *Scheduler) Schedule(p Problem) ([]Plan, error) {
	l, err := sim.NewLedger(p.Customer, p.Personality, p.Terms, p.GameLength)
	if err != nil {
		return nil, err
	}

	var finals []*node
	for _, forced := range []bool{true, false} {
		finals = append(finals, s.pass(l, p, forced)...)
	}

	plans := make([]Plan, 0, len(finals))
	for _, n := range finals {
		out := l.Outcome(&n.state)
		if !sim.ValidScore(out.Score) || out.Score <= 0 {
			continue
		}
		plans = append(plans, Plan{
			Score:          out.Score,
			BudgetRequired: out.BudgetRequired,
			Calendar:       n.calendar(p.GameLength, len(l.Months)),
		})
	}
	return skyline(plans), nil
}

// Best returns the highest-scoring plan, or false when none exists.
func (s *Scheduler) Best(p Problem) (Plan, bool, error) {
	plans, err := s.Schedule(p)
	if err != nil || len(plans) == 0 {
		return Plan{}, false, err
	}
	return plans[0], true, nil
}

// pass runs the DP under one bankruptcy assumption. The ledger decides
// bankruptcy on its own, so a pass whose assumption contradicts it is empty.
func (s *Scheduler) pass(l *sim.Ledger, p Problem, forced bool) []*node {
	if forced != (l.BankruptMonth != sim.NoBankruptcy) {
		return nil
	}
	awards := p.Awards.All()

	var cur layer
	start := &node{state: l.Start()}
	cur[stateKey{forced: forced}.bucket()] = []*node{start}

	for month, lm := range l.Months {
		var next layer
		for _, bucket := range cur {
			for _, n := range bucket {
				s.extend(&next, l, month+1, forced, p.MaxAwards, n, lm, nil)
				if lm.Bankrupt {
					continue
				}
				if p.MaxAwards != NoAwardLimit && n.state.Awards() >= p.MaxAwards {
					continue
				}
				for i := range awards {
					s.extend(&next, l, month+1, forced, p.MaxAwards, n, lm, &awards[i])
				}
			}
		}
		cur = next
	}

	var finals []*node
	for _, bucket := range cur {
		finals = append(finals, bucket...)
	}
	return finals
}

func (s *Scheduler) extend(next *layer, l *sim.Ledger, month int, forced bool, maxAwards int,
	parent *node, lm sim.LedgerMonth, award *sim.Award) {
	child := &node{state: parent.state, parent: parent}
	if award != nil {
		child.award = award.ID
	}
	child.state.Step(lm, award, l.HappinessMultiplier)

	k := stateKey{
		month:        month,
		inRow:        child.state.InRow(),
		lastTwoEqual: child.state.LastTwoEqual(),
		forced:       forced,
	}
	b := k.bucket()
	next[b] = s.insert(next[b], child, l, maxAwards != NoAwardLimit)
}

// insert adds n to a bucket unless an entry already dominates it, evicting
// the entries n dominates. Over the cap, the lowest score is dropped.
func (s *Scheduler) insert(bucket []*node, n *node, l *sim.Ledger, limited bool) []*node {
	for _, o := range bucket {
		if dominates(o, n, l, limited) {
			return bucket
		}
	}
	kept := bucket[:0]
	for _, o := range bucket {
		if !dominates(n, o, l, limited) {
			kept = append(kept, o)
		}
	}
	kept = append(kept, n)
	if len(kept) > s.maxSkyline {
		worst := 0
		for i := 1; i < len(kept); i++ {
			if sim.CompareScores(kept[i].state.Score(l), kept[worst].state.Score(l)) < 0 {
				worst = i
			}
		}
		kept = slices.Delete(kept, worst, worst+1)
	}
	return kept
}

// dominates reports whether a is at least as good as b on score, peak budget
// and award-free streak (and, under an award limit, on awards used).
func dominates(a, b *node, l *sim.Ledger, limited bool) bool {
	if a.state.Score(l) < b.state.Score(l) {
		return false
	}
	if a.state.Peak() > b.state.Peak() {
		return false
	}
	if a.state.FreeStreak() > b.state.FreeStreak() {
		return false
	}
	if limited && a.state.Awards() > b.state.Awards() {
		return false
	}
	return true
}

// calendar rebuilds the award calendar by walking parents back from the
// last simulated month. Months after a bankruptcy stay empty.
func (n *node) calendar(gameLength, simulated int) sim.Calendar {
	cal := sim.NewCalendar(gameLength)
	month := simulated - 1
	for cur := n; cur.parent != nil; cur = cur.parent {
		cal[month] = cur.award
		month--
	}
	return cal
}

// skyline sorts plans by descending score and keeps those whose budget is
// strictly below every higher-scoring plan's.
func skyline(plans []Plan) []Plan {
	slices.SortStableFunc(plans, func(a, b Plan) int {
		if c := sim.CompareScores(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.BudgetRequired, b.BudgetRequired)
	})
	out := plans[:0]
	for _, pl := range plans {
		if len(out) > 0 && pl.BudgetRequired >= out[len(out)-1].BudgetRequired {
			continue
		}
		out = append(out, pl)
	}
	return out
}
