// Package solver searches for the trade schedule minimizing the liquidation
// cost model. The concrete global search is differential evolution; a
// pattern-search local solver serves as the polish step and as a comparison
// baseline.
package solver

import (
	"context"
	"runtime"
)

// Solver is the capability of producing an optimized schedule for a
// configured problem. Implementations must be safe to call once per
// instance and must honor ctx between generations.
type Solver interface {
	Solve(ctx context.Context) (Result, error)
}

// Default hyperparameters. These were tuned empirically; override them
// through Config rather than editing here.
const (
	DefaultPopulationFactor  = 15
	DefaultMutationMin       = 0.5
	DefaultMutationMax       = 1.0
	DefaultCrossoverRate     = 0.7
	DefaultMaxGenerations    = 300
	DefaultStagnationLimit   = 80
	DefaultVarianceTolerance = 1e-9
	DefaultVariancePatience  = 20
	DefaultPolishIterations  = 200
	DefaultSeed              = 42
)

// Config exposes every search hyperparameter explicitly so strategies are
// swappable and reproducible; nothing is baked in.
type Config struct {
	PopulationFactor     int     // population size = factor * periods
	MutationMin          float64 // lower bound of the per-generation dithered F
	MutationMax          float64 // upper bound of the per-generation dithered F
	CrossoverRate        float64 // CR, probability of taking a coordinate from the mutant
	MaxGenerations       int
	StagnationLimit      int     // generations without best-ever improvement before stopping
	VarianceTolerance    float64 // relative population cost spread considered converged
	VariancePatience     int     // generations the spread must stay below tolerance
	PenaltyCoefficient   float64 // equality-constraint penalty weight
	FeasibilityTolerance float64 // relative tolerance when flagging the result feasible
	Seed                 int64   // master seed for all stochastic operators
	Workers              int     // parallel fitness evaluations; 0 means GOMAXPROCS
	WarmStart            bool    // seed one population member with the uniform schedule
	Polish               bool    // run the pattern-search refinement on the best member
	PolishIterations     int
}

// DefaultConfig returns the documented defaults with warm start and polish
// enabled.
func DefaultConfig() Config {
	return Config{
		PopulationFactor:  DefaultPopulationFactor,
		MutationMin:       DefaultMutationMin,
		MutationMax:       DefaultMutationMax,
		CrossoverRate:     DefaultCrossoverRate,
		MaxGenerations:    DefaultMaxGenerations,
		StagnationLimit:   DefaultStagnationLimit,
		VarianceTolerance: DefaultVarianceTolerance,
		VariancePatience:  DefaultVariancePatience,
		Seed:              DefaultSeed,
		WarmStart:         true,
		Polish:            true,
		PolishIterations:  DefaultPolishIterations,
	}
}

// withDefaults fills unset fields so a zero-valued Config still produces a
// working solver.
func (c Config) withDefaults() Config {
	if c.PopulationFactor <= 0 {
		c.PopulationFactor = DefaultPopulationFactor
	}
	if c.MutationMin <= 0 {
		c.MutationMin = DefaultMutationMin
	}
	if c.MutationMax <= 0 || c.MutationMax < c.MutationMin {
		c.MutationMax = DefaultMutationMax
	}
	if c.CrossoverRate <= 0 || c.CrossoverRate > 1 {
		c.CrossoverRate = DefaultCrossoverRate
	}
	if c.MaxGenerations <= 0 {
		c.MaxGenerations = DefaultMaxGenerations
	}
	if c.StagnationLimit <= 0 {
		c.StagnationLimit = DefaultStagnationLimit
	}
	if c.VarianceTolerance <= 0 {
		c.VarianceTolerance = DefaultVarianceTolerance
	}
	if c.VariancePatience <= 0 {
		c.VariancePatience = DefaultVariancePatience
	}
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.PolishIterations <= 0 {
		c.PolishIterations = DefaultPolishIterations
	}
	return c
}
