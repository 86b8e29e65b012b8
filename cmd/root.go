package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/loke-sim/loke/sim"
	"github.com/loke-sim/loke/sim/dataset"
	"github.com/loke-sim/loke/sim/portfolio"
	"github.com/loke-sim/loke/sim/trace"
)

var (
	// Shared flags
	logLevel string // Log verbosity level
	dataDir  string // Directory holding Map-/Personalities-/Awards-<game>.json
	gameName string // Game (map) name

	// optimize flags
	configPath  string // Optional YAML run configuration
	submit      bool   // Send the result to the remote judge
	apiKeyFile  string // File holding the judge API key
	seed        int64  // Master seed of the per-customer search streams
	workers     int    // Concurrent customer searches
	traceOn     bool   // Record and print the decision trace
	particles   int    // Swarm size per customer
	iterations  int    // Swarm iterations per customer
	scheduleTTL int    // Evaluations between award-calendar refreshes

	// score flags
	probeRate     float64 // Yearly interest rate offered to every customer
	probeDuration int     // Repayment months; < 0 uses each customer's limit
	probeAward    string  // Award given every month; empty skips
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "loke",
	Short: "Loan portfolio optimizer with a local replica of the game judge",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// optimizeCmd searches terms and award calendars for every customer
var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Optimize a submission for a game and optionally verify it remotely",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := DefaultRunConfig()
		if configPath != "" {
			var err error
			if cfg, err = LoadRunConfig(configPath); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		applyOptimizeFlags(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}

		g, err := dataset.Load(dataDir, gameName)
		if err != nil {
			logrus.Fatalf("Failed to load game: %v", err)
		}

		level := trace.TraceLevelNone
		if traceOn {
			level = trace.TraceLevelDecisions
		}
		logrus.Infof("Starting optimization: particles=%d iterations=%d schedule_ttl=%d seed=%d",
			cfg.Search.Particles, cfg.Search.Iterations, cfg.Search.ScheduleTTL, cfg.Seed)

		startTime := time.Now()
		ctx := context.Background()
		res, err := portfolio.NewOptimizer(cfg.Portfolio(level)).Run(ctx, g)
		if err != nil {
			logrus.Fatalf("Optimization failed: %v", err)
		}
		fmt.Printf("Expected score: %.2f (budget %d of %.0f, %d proposals, %s)\n",
			res.ExpectedScore, res.BudgetUsed, g.Budget, len(res.Submission.Proposals),
			time.Since(startTime).Round(time.Millisecond))
		if res.Trace != nil {
			fmt.Printf("Trace: %s\n", trace.Summarize(res.Trace))
		}
		if len(res.Submission.Proposals) == 0 {
			logrus.Warn("No customer fits the budget; nothing to score.")
			return
		}

		local, err := sim.Evaluate(g, &res.Submission)
		if err != nil {
			logrus.Fatalf("Whitebox evaluation failed: %v", err)
		}
		fmt.Printf("Whitebox: %s\n", local)

		if !submit {
			return
		}
		key, err := ReadAPIKey(apiKeyFile)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		client := NewVerifierClient(cfg.Verifier.Endpoint, key, NewPacer(cfg.Verifier.Spacing))
		remote, err := client.Evaluate(ctx, g, &res.Submission)
		if err != nil {
			logrus.Fatalf("Remote verification failed: %v", err)
		}
		fmt.Printf("Remote:   %s\n", remote)
		if !scoresAgree(local.TotalScore, remote.TotalScore) {
			logrus.Warnf("Whitebox and remote scores disagree: %.4f vs %.4f", local.TotalScore, remote.TotalScore)
		}
		logrus.Infof("Verifier calls: %d", client.Calls())
	},
}

// scoreCmd applies one fixed proposal to every customer and prints the
// whitebox score
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one rate/duration/award probe against the whitebox judge",
	Run: func(cmd *cobra.Command, args []string) {
		g, err := dataset.Load(dataDir, gameName)
		if err != nil {
			logrus.Fatalf("Failed to load game: %v", err)
		}
		sub, err := ProbeSubmission(g, probeRate, probeDuration, probeAward)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		score, err := sim.Evaluate(g, sub)
		if err != nil {
			logrus.Fatalf("Whitebox evaluation failed: %v", err)
		}
		fmt.Println(score)
	},
}

// applyOptimizeFlags overrides file values with flags the user set explicitly.
func applyOptimizeFlags(cmd *cobra.Command, cfg *RunConfig) {
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = workers
	}
	if cmd.Flags().Changed("particles") {
		cfg.Search.Particles = particles
	}
	if cmd.Flags().Changed("iterations") {
		cfg.Search.Iterations = iterations
	}
	if cmd.Flags().Changed("schedule-ttl") {
		cfg.Search.ScheduleTTL = scheduleTTL
	}
}

// ProbeSubmission offers the same terms to every customer. A negative
// duration, or one above a customer's limit, becomes that customer's limit.
func ProbeSubmission(g *sim.GameData, rate float64, duration int, award string) (*sim.Submission, error) {
	id := sim.NoAward
	if award != "" {
		var ok bool
		if id, ok = g.Awards.Lookup(award); !ok {
			return nil, fmt.Errorf("unknown award %q", award)
		}
	}
	sub := &sim.Submission{Game: g.Name}
	for i := range g.Customers {
		c := &g.Customers[i]
		p, err := g.PersonalityOf(c)
		if err != nil {
			return nil, err
		}
		d := duration
		if d < 0 || d > p.MaxDuration(g.GameLength) {
			d = p.MaxDuration(g.GameLength)
		}
		cal := sim.NewCalendar(g.GameLength)
		for m := range cal {
			cal[m] = id
		}
		sub.Proposals = append(sub.Proposals, sim.Proposal{
			Customer: c.Name,
			Terms:    sim.Terms{Rate: rate, Duration: d},
			Calendar: cal,
		})
	}
	return sub, nil
}

func scoresAgree(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "data", "Directory holding the game JSON files")
	rootCmd.PersistentFlags().StringVar(&gameName, "game", "", "Game (map) name")
	_ = rootCmd.MarkPersistentFlagRequired("game")

	optimizeCmd.Flags().StringVar(&configPath, "config", "", "YAML run configuration")
	optimizeCmd.Flags().BoolVar(&submit, "submit", false, "Send the optimized submission to the remote judge")
	optimizeCmd.Flags().StringVar(&apiKeyFile, "api-key-file", ".api-key", "File holding the judge API key")
	optimizeCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for the per-customer search streams")
	optimizeCmd.Flags().IntVar(&workers, "workers", 0, "Concurrent customer searches (0 = GOMAXPROCS)")
	optimizeCmd.Flags().BoolVar(&traceOn, "trace", false, "Record and summarize search and allocation decisions")
	optimizeCmd.Flags().IntVar(&particles, "particles", 10, "Swarm size per customer")
	optimizeCmd.Flags().IntVar(&iterations, "iterations", 10000, "Swarm iterations per customer")
	optimizeCmd.Flags().IntVar(&scheduleTTL, "schedule-ttl", 0, "Evaluations between award-calendar refreshes (0 = award-free search)")

	scoreCmd.Flags().Float64Var(&probeRate, "rate", 0.1, "Yearly interest rate offered to every customer")
	scoreCmd.Flags().IntVar(&probeDuration, "duration", -1, "Repayment months (-1 = each customer's limit)")
	scoreCmd.Flags().StringVar(&probeAward, "award", "", "Award given every month (empty = skip)")

	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(scoreCmd)
}
