package cmd

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loke-sim/loke/sim"
	"github.com/loke-sim/loke/sim/portfolio"
	"github.com/loke-sim/loke/sim/trace"
)

// DefaultEndpoint is the remote judge.
const DefaultEndpoint = "https://api.considition.com/game"

// DefaultSpacing is the minimum gap between two verifier calls.
const DefaultSpacing = 100 * time.Millisecond

// RunConfig represents the full --config YAML structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type RunConfig struct {
	Search    SearchSection    `yaml:"search"`
	Schedule  ScheduleSection  `yaml:"schedule"`
	Allocator AllocatorSection `yaml:"allocator"`
	Workers   int              `yaml:"workers"`
	Seed      int64            `yaml:"seed"`
	Verifier  VerifierSection  `yaml:"verifier"`
}

// SearchSection holds the particle-swarm tunables.
type SearchSection struct {
	Particles   int `yaml:"particles"`
	Iterations  int `yaml:"iterations"`
	ScheduleTTL int `yaml:"schedule_ttl"`
}

// ScheduleSection holds the award-scheduler tunables.
type ScheduleSection struct {
	MaxSkyline int `yaml:"max_skyline"`
}

// AllocatorSection holds the knapsack tunables.
type AllocatorSection struct {
	CostQuantum int64 `yaml:"cost_quantum"`
}

// VerifierSection configures the remote judge client.
type VerifierSection struct {
	Endpoint string        `yaml:"endpoint"`
	Spacing  time.Duration `yaml:"spacing"` // e.g. "100ms"
}

// DefaultRunConfig returns the built-in defaults.
func DefaultRunConfig() RunConfig {
	d := portfolio.DefaultConfig()
	return RunConfig{
		Search: SearchSection{
			Particles:   d.Particles,
			Iterations:  d.Iterations,
			ScheduleTTL: d.ScheduleTTL,
		},
		Schedule:  ScheduleSection{MaxSkyline: d.MaxSkyline},
		Allocator: AllocatorSection{CostQuantum: d.CostQuantum},
		Seed:      d.Seed,
		Verifier:  VerifierSection{Endpoint: DefaultEndpoint, Spacing: DefaultSpacing},
	}
}

// LoadRunConfig overlays the YAML file at path on the defaults.
// Uses strict field checking: a misspelled key is an error.
func LoadRunConfig(path string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run.
func (c RunConfig) Validate() error {
	switch {
	case c.Search.Particles <= 0:
		return fmt.Errorf("search.particles must be > 0, got %d", c.Search.Particles)
	case c.Search.Iterations <= 0:
		return fmt.Errorf("search.iterations must be > 0, got %d", c.Search.Iterations)
	case c.Search.ScheduleTTL < 0:
		return fmt.Errorf("search.schedule_ttl must be >= 0, got %d", c.Search.ScheduleTTL)
	case c.Schedule.MaxSkyline <= 0:
		return fmt.Errorf("schedule.max_skyline must be > 0, got %d", c.Schedule.MaxSkyline)
	case c.Allocator.CostQuantum < 1:
		return fmt.Errorf("allocator.cost_quantum must be >= 1, got %d", c.Allocator.CostQuantum)
	case c.Verifier.Spacing < 0:
		return fmt.Errorf("verifier.spacing must be >= 0, got %s", c.Verifier.Spacing)
	}
	return nil
}

// Portfolio converts the file layout into the engine configuration.
func (c RunConfig) Portfolio(traceLevel trace.TraceLevel) portfolio.Config {
	return portfolio.Config{
		SearchConfig:    sim.NewSearchConfig(c.Search.Particles, c.Search.Iterations, c.Search.ScheduleTTL),
		ScheduleConfig:  sim.NewScheduleConfig(c.Schedule.MaxSkyline),
		AllocatorConfig: sim.NewAllocatorConfig(c.Allocator.CostQuantum),
		Workers:         c.Workers,
		Seed:            c.Seed,
		TraceLevel:      traceLevel,
	}
}
