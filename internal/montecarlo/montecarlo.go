// Package montecarlo studies how robust an optimized schedule is to
// parameter uncertainty by re-solving the problem across jittered
// scenarios and aggregating the cost distribution.
package montecarlo

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"optexec/internal/config"
	"optexec/internal/costmodel"
	"optexec/internal/solver"
	"optexec/pkg/mathutil"
)

// ScenarioResult pairs one jittered problem with its solve outcome.
type ScenarioResult struct {
	ID     int                  `json:"id"`
	Seed   int64                `json:"seed"`
	Params costmodel.Parameters `json:"params"`
	Result solver.Result        `json:"result"`
}

// Summary is the aggregate cost distribution across scenarios.
type Summary struct {
	Scenarios       int     `json:"scenarios"`
	MeanCost        float64 `json:"meanCost"`
	StdCost         float64 `json:"stdCost"`
	MinCost         float64 `json:"minCost"`
	MaxCost         float64 `json:"maxCost"`
	MedianCost      float64 `json:"medianCost"`
	CostVariation   float64 `json:"costVariation"`
	MeanImprovement float64 `json:"meanImprovement"`
	FeasibleCount   int     `json:"feasibleCount"`
}

// Experiment is the full outcome of one Monte Carlo run.
type Experiment struct {
	Results []ScenarioResult `json:"results"`
	Summary Summary          `json:"summary"`
}

// Runner drives the scenario loop.
type Runner struct {
	base      costmodel.Parameters
	solverCfg solver.Config
	cfg       config.MonteCarloConfig
	logger    *zap.Logger
}

// NewRunner validates the base problem and builds a runner.
func NewRunner(base costmodel.Parameters, solverCfg solver.Config, cfg config.MonteCarloConfig, logger *zap.Logger) (*Runner, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}
	if cfg.Scenarios <= 0 {
		return nil, fmt.Errorf("montecarlo: scenarios must be positive, got %d", cfg.Scenarios)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{base: base, solverCfg: solverCfg, cfg: cfg, logger: logger}, nil
}

// jitter draws a multiplier in [1-width, 1+width).
func jitter(rng *rand.Rand, width float64) float64 {
	return 1 - width + 2*width*rng.Float64()
}

// scenarios derives every jittered problem up front from the master seed,
// so the draw order never depends on how scenarios are later scheduled.
// Volatility, the impact coefficient, and the price vary; the impact
// exponent is structural and held fixed.
func (r *Runner) scenarios() []ScenarioResult {
	rng := rand.New(rand.NewSource(r.solverCfg.Seed))

	out := make([]ScenarioResult, r.cfg.Scenarios)
	for i := range out {
		params := r.base
		params.Volatility *= jitter(rng, r.cfg.VolatilityJitter)
		params.ImpactCoefficient *= jitter(rng, r.cfg.ImpactJitter)
		params.InitialPrice *= jitter(rng, r.cfg.PriceJitter)

		out[i] = ScenarioResult{
			ID:     i + 1,
			Seed:   r.solverCfg.Seed + int64(i+1)*1000,
			Params: params,
		}
	}
	return out
}

// Run solves every scenario, in parallel up to the configured worker
// count, and aggregates the cost distribution.
func (r *Runner) Run(ctx context.Context) (Experiment, error) {
	results := r.scenarios()

	g, ctx := errgroup.WithContext(ctx)
	workers := r.cfg.Workers
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i := range results {
		g.Go(func() error {
			cfg := r.solverCfg
			cfg.Seed = results[i].Seed

			de, err := solver.NewDifferentialEvolution(results[i].Params, cfg, r.logger)
			if err != nil {
				return fmt.Errorf("montecarlo: scenario %d: %w", results[i].ID, err)
			}
			result, err := de.Solve(ctx)
			if err != nil {
				return fmt.Errorf("montecarlo: scenario %d: %w", results[i].ID, err)
			}
			results[i].Result = result

			r.logger.Debug("scenario solved",
				zap.String("op", "montecarlo.Run"),
				zap.Int("scenario", results[i].ID),
				zap.Float64("totalCost", result.Cost.Total),
				zap.String("status", string(result.Status)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Experiment{}, err
	}

	summary := summarize(results)
	r.logger.Info("monte carlo complete",
		zap.String("op", "montecarlo.Run"),
		zap.Int("scenarios", summary.Scenarios),
		zap.Float64("meanCost", summary.MeanCost),
		zap.Float64("costVariation", summary.CostVariation),
	)

	return Experiment{Results: results, Summary: summary}, nil
}

func summarize(results []ScenarioResult) Summary {
	costs := make([]float64, len(results))
	improvements := make([]float64, len(results))
	feasible := 0
	for i, sr := range results {
		costs[i] = sr.Result.Cost.Total
		improvements[i] = sr.Result.ImprovementVsTWAP
		if sr.Result.Feasible {
			feasible++
		}
	}

	summary := Summary{
		Scenarios:       len(results),
		MeanCost:        mathutil.Mean(costs),
		StdCost:         mathutil.StdDev(costs),
		MedianCost:      mathutil.Median(costs),
		MeanImprovement: mathutil.Mean(improvements),
		FeasibleCount:   feasible,
	}
	if len(costs) > 0 {
		summary.MinCost = costs[0]
		summary.MaxCost = costs[0]
		for _, c := range costs[1:] {
			if c < summary.MinCost {
				summary.MinCost = c
			}
			if c > summary.MaxCost {
				summary.MaxCost = c
			}
		}
	}
	if summary.MeanCost != 0 {
		summary.CostVariation = summary.StdCost / summary.MeanCost
	}
	return summary
}
