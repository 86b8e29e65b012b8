// Package portfolio orchestrates a whole optimization run: one parameter
// search per customer fanned out across workers, then a single budget
// allocation over every customer's plan variants.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/loke-sim/loke/sim"
	"github.com/loke-sim/loke/sim/knapsack"
	"github.com/loke-sim/loke/sim/schedule"
	"github.com/loke-sim/loke/sim/swarm"
	"github.com/loke-sim/loke/sim/trace"
)

// Config groups everything one run needs besides the game data.
type Config struct {
	sim.SearchConfig
	sim.ScheduleConfig
	sim.AllocatorConfig

	Workers    int   // concurrent customer searches; <= 0 uses GOMAXPROCS
	Seed       int64 // master seed of the per-customer random streams
	TraceLevel trace.TraceLevel
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		SearchConfig:    sim.DefaultSearchConfig(),
		ScheduleConfig:  sim.DefaultScheduleConfig(),
		AllocatorConfig: sim.DefaultAllocatorConfig(),
		Seed:            42,
		TraceLevel:      trace.TraceLevelNone,
	}
}

// CandidatePlan is one fully specified proposal variant for a customer.
type CandidatePlan struct {
	Customer       string
	Terms          sim.Terms
	MaxAwards      int
	Calendar       sim.Calendar
	Score          float64
	BudgetRequired float64
	Cost           int64 // BudgetRequired rounded up for the allocator
}

// Result is the outcome of a run.
type Result struct {
	Submission    sim.Submission
	Plans         []CandidatePlan // chosen plans, in map order
	ExpectedScore float64
	BudgetUsed    int64
	Trace         *trace.OptimizationTrace // nil unless tracing is on
}

type customerRun struct {
	search   swarm.Result
	variants []CandidatePlan
}

// Optimizer runs whole-game optimizations.
type Optimizer struct {
	cfg      Config
	sched    *schedule.Scheduler
	searcher *swarm.Searcher
}

// NewOptimizer creates an Optimizer from cfg.
func NewOptimizer(cfg Config) *Optimizer {
	sched := schedule.New(cfg.ScheduleConfig)
	return &Optimizer{
		cfg:      cfg,
		sched:    sched,
		searcher: swarm.New(cfg.SearchConfig, sched),
	}
}

// Run optimizes every customer of g and returns the best submission that
// fits the game budget. Customers without a positive plan are left out.
func (o *Optimizer) Run(ctx context.Context, g *sim.GameData) (*Result, error) {
	if g.GameLength <= 0 {
		return nil, fmt.Errorf("%w: game length %d", sim.ErrInvalidParameter, g.GameLength)
	}
	if g.Awards == nil {
		return nil, errors.New("game has no award catalog")
	}

	personalities := make([]*sim.Personality, len(g.Customers))
	for i := range g.Customers {
		p, err := g.PersonalityOf(&g.Customers[i])
		if err != nil {
			return nil, err
		}
		personalities[i] = p
	}

	// Streams are derived up front: PartitionedRNG is not safe for concurrent use.
	rng := sim.NewPartitionedRNG(sim.NewRunKey(o.cfg.Seed))
	streams := make([]*rand.Rand, len(g.Customers))
	for i := range g.Customers {
		streams[i] = rng.ForSubsystem(sim.SubsystemSearch(g.Customers[i].Name))
	}

	workers := o.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logrus.Infof("Optimizing %d customers of %s with %d workers", len(g.Customers), g.Name, workers)

	runs := make([]customerRun, len(g.Customers))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range g.Customers {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			run, err := o.optimizeCustomer(&g.Customers[i], personalities[i], g, streams[i])
			if err != nil {
				return fmt.Errorf("customer %q: %w", g.Customers[i].Name, err)
			}
			runs[i] = run
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return o.allocate(g, runs), nil
}

func (o *Optimizer) optimizeCustomer(c *sim.Customer, p *sim.Personality, g *sim.GameData,
	rng *rand.Rand) (customerRun, error) {
	res, err := o.searcher.Search(swarm.Problem{
		Customer:    c,
		Personality: p,
		Awards:      g.Awards,
		GameLength:  g.GameLength,
	}, rng)
	if err != nil {
		return customerRun{}, err
	}
	run := customerRun{search: res}
	if math.IsInf(res.Score, -1) {
		logrus.Warnf("Customer %s: no valid terms found, excluding", c.Name)
		return run, nil
	}

	for k := 0; k <= VariantLimit(g.GameLength); k++ {
		plan, ok, err := o.sched.Best(schedule.Problem{
			Customer:    c,
			Personality: p,
			Awards:      g.Awards,
			Terms:       res.Terms,
			GameLength:  g.GameLength,
			MaxAwards:   k,
		})
		if err != nil {
			return customerRun{}, err
		}
		if !ok {
			continue
		}
		run.variants = append(run.variants, CandidatePlan{
			Customer:       c.Name,
			Terms:          res.Terms,
			MaxAwards:      k,
			Calendar:       plan.Calendar,
			Score:          plan.Score,
			BudgetRequired: plan.BudgetRequired,
			Cost:           knapsack.CeilCost(plan.BudgetRequired, o.cfg.CostQuantum),
		})
	}
	logrus.Infof("Customer %s: rate=%.4f duration=%d search_score=%.2f variants=%d",
		c.Name, res.Terms.Rate, res.Terms.Duration, res.Score, len(run.variants))
	return run, nil
}

// VariantLimit is the largest award limit for which plan variants are built.
func VariantLimit(gameLength int) int {
	return min(gameLength, gameLength/2+4)
}

// allocate is the single-threaded fan-in step.
func (o *Optimizer) allocate(g *sim.GameData, runs []customerRun) *Result {
	groups := make([][]knapsack.Variant, len(runs))
	for i, run := range runs {
		groups[i] = make([]knapsack.Variant, len(run.variants))
		for j, v := range run.variants {
			groups[i][j] = knapsack.Variant{Score: v.Score, Cost: v.Cost}
		}
	}
	budget := knapsack.FloorBudget(g.Budget, o.cfg.CostQuantum)
	sel := knapsack.Solve(groups, budget)

	res := &Result{
		Submission:    sim.Submission{Game: g.Name},
		ExpectedScore: sel.Score,
		BudgetUsed:    sel.Cost,
	}
	chosen := make(map[int]int, len(sel.Choices))
	for _, ch := range sel.Choices {
		chosen[ch.Group] = ch.Variant
		plan := runs[ch.Group].variants[ch.Variant]
		res.Plans = append(res.Plans, plan)
		res.Submission.Proposals = append(res.Submission.Proposals, sim.Proposal{
			Customer: plan.Customer,
			Terms:    plan.Terms,
			Calendar: plan.Calendar,
		})
	}
	logrus.Infof("Allocated %d of %d customers: expected score %.2f, budget %d/%d",
		len(sel.Choices), len(runs), sel.Score, sel.Cost, budget)

	if o.cfg.TraceLevel == trace.TraceLevelDecisions {
		res.Trace = buildTrace(g, runs, chosen, budget)
	}
	return res
}

func buildTrace(g *sim.GameData, runs []customerRun, chosen map[int]int, budget int64) *trace.OptimizationTrace {
	ot := trace.NewOptimizationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
	ot.Budget = budget
	for i, run := range runs {
		name := g.Customers[i].Name
		ot.RecordSearch(trace.SearchRecord{
			Customer:    name,
			Rate:        run.search.Terms.Rate,
			Duration:    run.search.Terms.Duration,
			Score:       run.search.Score,
			Evaluations: run.search.Evaluations,
			Refreshes:   run.search.Refreshes,
			Variants:    len(run.variants),
		})

		rec := trace.AllocationRecord{Customer: name, MaxAwards: -1}
		for _, v := range run.variants {
			rec.Candidates = append(rec.Candidates, trace.VariantScore{MaxAwards: v.MaxAwards, Score: v.Score, Cost: v.Cost})
		}
		switch vi, ok := chosen[i]; {
		case ok:
			v := run.variants[vi]
			rec.Included = true
			rec.MaxAwards = v.MaxAwards
			rec.Score = v.Score
			rec.Cost = v.Cost
		case len(run.variants) == 0:
			rec.Reason = "no positive plan"
		default:
			rec.Reason = "outbid for budget"
		}
		ot.RecordAllocation(rec)
	}
	return ot
}
