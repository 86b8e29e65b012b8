// Package sim provides the loan-game model and the whitebox judge for loke.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - model.go: customers, personalities, the award catalog and submissions
//   - kernel.go: the month-by-month loan simulation (Ledger, AwardState, Simulate)
//   - whitebox.go: local scoring of a whole submission
//
// # Architecture
//
// The sim package holds the shared types and the kernel; the optimizer
// lives in sub-packages:
//   - sim/dataset/: loading Map-, Personalities- and Awards-<game>.json
//   - sim/schedule/: award-calendar dynamic program over the kernel state
//   - sim/swarm/: particle-swarm search over rate and duration
//   - sim/knapsack/: multiple-choice budget allocation across customers
//   - sim/portfolio/: concurrent per-customer search and fan-in allocation
//   - sim/trace/: decision trace recording
//
// The scheduler and the kernel advance the same AwardState, so a calendar
// reconstructed by the dynamic program scores exactly what Simulate reports.
package sim
