// Package swarm searches a customer's repayment terms with a particle swarm.
//
// A particle lives in the unit-rate by duration box
// [0,1] x [0, monthsLimit*gameLength]. Its cost is the negated kernel score
// of the decoded terms, evaluated against either an award-free calendar or a
// calendar the award scheduler recomputes every ScheduleTTL evaluations of
// the same particle.
package swarm

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/loke-sim/loke/sim"
	"github.com/loke-sim/loke/sim/schedule"
)

const dims = 2

// skewPower concentrates sampling near the low end of very wide rate bounds.
const skewPower = 8

var (
	inertia   = 1 / (2 * math.Ln2)
	cognitive = 0.5 + math.Ln2
	social    = 0.5 + math.Ln2
)

// ErrBadConfig is returned when the search has no particles or iterations.
var ErrBadConfig = errors.New("invalid search configuration")

// Problem is one customer's search input.
type Problem struct {
	Customer    *sim.Customer
	Personality *sim.Personality
	Awards      *sim.AwardCatalog
	GameLength  int
}

// Result is the best point the swarm evaluated.
type Result struct {
	Terms       sim.Terms
	Score       float64      // -Inf when no evaluation produced a valid score
	Calendar    sim.Calendar // calendar the best score was evaluated with
	Evaluations int
	Refreshes   int // scheduler runs triggered by the TTL cache
}

// Searcher runs independent swarms. It is safe for concurrent use as long as
// each Search call gets its own *rand.Rand.
type Searcher struct {
	cfg   sim.SearchConfig
	sched *schedule.Scheduler
}

// New creates a Searcher. sched may be nil when cfg.ScheduleTTL is 0.
func New(cfg sim.SearchConfig, sched *schedule.Scheduler) *Searcher {
	return &Searcher{cfg: cfg, sched: sched}
}

// Decode maps a particle position to valid terms.
func Decode(x []float64, p *sim.Personality, gameLength int) sim.Terms {
	p0 := x[0]
	if p.AcceptedMaxInterest > 1 {
		p0 = math.Pow(p0, skewPower)
	}
	rate := p0*p.AcceptedMaxInterest + (1-p0)*p.AcceptedMinInterest
	rate = min(max(rate, p.AcceptedMinInterest), p.AcceptedMaxInterest)

	duration := int(math.Round(x[1]))
	duration = min(max(duration, 0), p.MaxDuration(gameLength))
	return sim.Terms{Rate: rate, Duration: duration}
}

type particle struct {
	pos, vel  []float64
	best      []float64
	bestCost  float64
	calendar  sim.Calendar // cached calendar, nil until first refresh
	uses      int
	bestUsing sim.Calendar
}

type run struct {
	*Searcher
	p         Problem
	rng       *rand.Rand
	lb, ub    []float64
	awardFree sim.Calendar
	result    Result
}

// Search runs one swarm for the customer and returns its best point.
func (s *Searcher) Search(p Problem, rng *rand.Rand) (Result, error) {
	if s.cfg.Particles <= 0 || s.cfg.Iterations <= 0 || s.cfg.ScheduleTTL < 0 {
		return Result{}, fmt.Errorf("%w: %d particles, %d iterations, ttl %d",
			ErrBadConfig, s.cfg.Particles, s.cfg.Iterations, s.cfg.ScheduleTTL)
	}
	if s.cfg.ScheduleTTL > 0 && s.sched == nil {
		return Result{}, fmt.Errorf("%w: schedule ttl %d without a scheduler", ErrBadConfig, s.cfg.ScheduleTTL)
	}
	if p.GameLength <= 0 {
		return Result{}, fmt.Errorf("%w: game length %d", sim.ErrInvalidParameter, p.GameLength)
	}
	if !(p.Personality.AcceptedMinInterest <= p.Personality.AcceptedMaxInterest) {
		return Result{}, fmt.Errorf("%w: rate bounds [%v, %v]", sim.ErrInvalidParameter,
			p.Personality.AcceptedMinInterest, p.Personality.AcceptedMaxInterest)
	}

	r := &run{
		Searcher:  s,
		p:         p,
		rng:       rng,
		lb:        []float64{0, 0},
		ub:        []float64{1, float64(p.Personality.MaxDuration(p.GameLength))},
		awardFree: sim.NewCalendar(p.GameLength),
	}
	r.result.Score = math.Inf(-1)
	r.solve()

	logrus.Debugf("swarm %s: rate=%.6f duration=%d score=%.2f evaluations=%d refreshes=%d",
		p.Customer.Name, r.result.Terms.Rate, r.result.Terms.Duration, r.result.Score,
		r.result.Evaluations, r.result.Refreshes)
	return r.result, nil
}

func (r *run) solve() {
	swarm := make([]*particle, r.cfg.Particles)
	gbest := make([]float64, dims)
	gbestCost := math.Inf(1)

	for i := range swarm {
		pt := &particle{
			pos: make([]float64, dims),
			vel: make([]float64, dims),
		}
		for d := 0; d < dims; d++ {
			span := r.ub[d] - r.lb[d]
			pt.pos[d] = r.lb[d] + r.rng.Float64()*span
			pt.vel[d] = (2*r.rng.Float64() - 1) * span
		}
		pt.best = append([]float64(nil), pt.pos...)
		pt.bestCost, pt.bestUsing = r.cost(pt, pt.pos)
		swarm[i] = pt
		if pt.bestCost < gbestCost || i == 0 {
			gbestCost = pt.bestCost
			copy(gbest, pt.best)
		}
	}

	diff := make([]float64, dims)
	weights := make([]float64, dims)
	for iter := 0; iter < r.cfg.Iterations; iter++ {
		for _, pt := range swarm {
			floats.Scale(inertia, pt.vel)
			r.attract(pt, pt.best, cognitive, diff, weights)
			r.attract(pt, gbest, social, diff, weights)
			floats.Add(pt.pos, pt.vel)
			for d := 0; d < dims; d++ {
				pt.pos[d] = min(max(pt.pos[d], r.lb[d]), r.ub[d])
			}

			c, cal := r.cost(pt, pt.pos)
			if c < pt.bestCost {
				pt.bestCost = c
				pt.bestUsing = cal
				copy(pt.best, pt.pos)
			}
		}
		for _, pt := range swarm {
			if pt.bestCost < gbestCost {
				gbestCost = pt.bestCost
				copy(gbest, pt.best)
			}
		}
	}

	best := swarm[0]
	for _, pt := range swarm[1:] {
		if pt.bestCost < best.bestCost {
			best = pt
		}
	}
	r.result.Terms = Decode(best.best, r.p.Personality, r.p.GameLength)
	r.result.Calendar = best.bestUsing
	if !math.IsInf(best.bestCost, 1) {
		r.result.Score = -best.bestCost
	}
}

// attract adds coeff * U(0,1) * (target - pos) to the particle's velocity,
// drawing one uniform weight per dimension.
func (r *run) attract(pt *particle, target []float64, coeff float64, diff, weights []float64) {
	for d := range weights {
		weights[d] = r.rng.Float64()
	}
	floats.SubTo(diff, target, pt.pos)
	floats.Mul(diff, weights)
	floats.AddScaled(pt.vel, coeff, diff)
}

// cost evaluates a position and returns the calendar it was scored with.
// Kernel errors and NaN scores cost +Inf.
func (r *run) cost(pt *particle, x []float64) (float64, sim.Calendar) {
	terms := Decode(x, r.p.Personality, r.p.GameLength)
	cal := r.calendarFor(pt, terms)
	r.result.Evaluations++

	out, err := sim.Simulate(r.p.Customer, r.p.Personality, r.p.Awards, terms, cal)
	if err != nil {
		logrus.Debugf("swarm %s: %v", r.p.Customer.Name, err)
		return math.Inf(1), cal
	}
	return sim.CostOrInf(out.Score), cal
}

// calendarFor returns the particle's cached calendar, refreshing it through
// the scheduler once it has served ScheduleTTL evaluations.
func (r *run) calendarFor(pt *particle, terms sim.Terms) sim.Calendar {
	if r.cfg.ScheduleTTL == 0 {
		return r.awardFree
	}
	if pt.calendar == nil || pt.uses >= r.cfg.ScheduleTTL {
		pt.calendar = r.awardFree
		pt.uses = 0
		r.result.Refreshes++
		plan, ok, err := r.sched.Best(schedule.Problem{
			Customer:    r.p.Customer,
			Personality: r.p.Personality,
			Awards:      r.p.Awards,
			Terms:       terms,
			GameLength:  r.p.GameLength,
			MaxAwards:   schedule.NoAwardLimit,
		})
		if err == nil && ok {
			pt.calendar = plan.Calendar
		}
	}
	pt.uses++
	return pt.calendar
}
