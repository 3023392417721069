package solver

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"optexec/internal/constraint"
	"optexec/internal/costmodel"
	"optexec/pkg/mathutil"
)

// DifferentialEvolution is the global stochastic search over trade
// schedules. It evolves a population of candidate vectors inside
// [0, cap]^N with rand/1/bin mutation and greedy selection, using the cost
// model plus the equality penalty as its fitness oracle.
type DifferentialEvolution struct {
	params costmodel.Parameters
	cfg    Config
	proj   constraint.Projector
	logger *zap.Logger
}

// NewDifferentialEvolution validates the problem and builds a solver.
func NewDifferentialEvolution(params costmodel.Parameters, cfg Config, logger *zap.Logger) (*DifferentialEvolution, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	proj := constraint.NewProjector(params.MaxTrade, params.InitialInventory)
	if cfg.PenaltyCoefficient > 0 {
		proj.Rho = cfg.PenaltyCoefficient
	}

	return &DifferentialEvolution{
		params: params,
		cfg:    cfg,
		proj:   proj,
		logger: logger,
	}, nil
}

// penalizedCost is the objective the population is selected on.
func (de *DifferentialEvolution) penalizedCost(v []float64) float64 {
	b, err := de.params.Evaluate(v)
	if err != nil {
		// Population vectors always have the right length; treat anything
		// else as an unusable candidate.
		return math.Inf(1)
	}
	return b.Total + de.proj.Penalty(v)
}

// evalAll evaluates every vector concurrently, synchronizing at the
// generation boundary. Evaluation is deterministic, so the parallel result
// is identical to a sequential pass.
func (de *DifferentialEvolution) evalAll(ctx context.Context, vectors [][]float64, costs []float64) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(de.cfg.Workers)
	for i := range vectors {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			costs[i] = de.penalizedCost(vectors[i])
			return nil
		})
	}
	return g.Wait()
}

// latinHypercube draws n space-filling samples from [0, upper]^dim: each
// dimension is stratified into n cells and the cell order shuffled
// independently.
func latinHypercube(rng *rand.Rand, n, dim int, upper float64) [][]float64 {
	pop := make([][]float64, n)
	for i := range pop {
		pop[i] = make([]float64, dim)
	}
	for d := 0; d < dim; d++ {
		perm := rng.Perm(n)
		for i := 0; i < n; i++ {
			pop[i][d] = (float64(perm[i]) + rng.Float64()) / float64(n) * upper
		}
	}
	return pop
}

// Solve runs the evolution loop until a stop condition fires and returns
// the best schedule found. A well-posed problem never returns an error;
// non-convergence and infeasibility are reported on the Result.
func (de *DifferentialEvolution) Solve(ctx context.Context) (Result, error) {
	n := de.params.Periods
	popSize := de.cfg.PopulationFactor * n
	if popSize < 4 {
		// rand/1 mutation needs three partners distinct from the target.
		popSize = 4
	}
	rng := rand.New(rand.NewSource(de.cfg.Seed))

	pop := latinHypercube(rng, popSize, n, de.params.MaxTrade)
	if de.cfg.WarmStart {
		// Seeding one member with the uniform schedule guarantees the
		// search never finishes worse than the TWAP baseline.
		pop[0] = de.params.TWAP()
	}

	costs := make([]float64, popSize)
	evaluations := 0
	if err := de.evalAll(ctx, pop, costs); err != nil {
		return de.finish(nil, 0, evaluations, StatusCanceled), nil
	}
	evaluations += popSize

	best := append([]float64(nil), pop[0]...)
	bestCost := costs[0]
	for i := 1; i < popSize; i++ {
		if costs[i] < bestCost {
			bestCost = costs[i]
			copy(best, pop[i])
		}
	}

	status := StatusMaxGenerations
	generations := 0
	stagnation := 0
	quietStreak := 0
	trials := make([][]float64, popSize)
	trialCosts := make([]float64, popSize)

	for gen := 1; gen <= de.cfg.MaxGenerations; gen++ {
		select {
		case <-ctx.Done():
			status = StatusCanceled
		default:
		}
		if status == StatusCanceled {
			break
		}

		// Dithered mutation factor, redrawn each generation.
		f := de.cfg.MutationMin + rng.Float64()*(de.cfg.MutationMax-de.cfg.MutationMin)

		for i := range pop {
			r1, r2, r3 := pickPartners(rng, popSize, i)
			trial := make([]float64, n)
			jrand := rng.Intn(n)
			for j := 0; j < n; j++ {
				if j == jrand || rng.Float64() < de.cfg.CrossoverRate {
					trial[j] = pop[r1][j] + f*(pop[r2][j]-pop[r3][j])
				} else {
					trial[j] = pop[i][j]
				}
			}
			de.proj.ClipInPlace(trial)
			trials[i] = trial
		}

		if err := de.evalAll(ctx, trials, trialCosts); err != nil {
			status = StatusCanceled
			break
		}
		evaluations += popSize
		generations = gen

		improved := false
		for i := range pop {
			// Greedy selection; ties keep the incumbent.
			if trialCosts[i] < costs[i] {
				pop[i] = trials[i]
				costs[i] = trialCosts[i]
				trials[i] = nil
			}
			if costs[i] < bestCost {
				bestCost = costs[i]
				copy(best, pop[i])
				improved = true
			}
		}

		if improved {
			stagnation = 0
		} else {
			stagnation++
		}
		if stagnation >= de.cfg.StagnationLimit {
			status = StatusStagnated
			break
		}

		mean := mathutil.Mean(costs)
		spread := 0.0
		if mean != 0 {
			spread = mathutil.StdDev(costs) / math.Abs(mean)
		}
		if spread < de.cfg.VarianceTolerance {
			quietStreak++
		} else {
			quietStreak = 0
		}
		if quietStreak >= de.cfg.VariancePatience {
			status = StatusConverged
			break
		}

		if gen%50 == 0 {
			de.logger.Debug("generation complete",
				zap.String("op", "solver.Solve"),
				zap.Int("generation", gen),
				zap.Float64("bestCost", bestCost),
				zap.Float64("populationSpread", spread),
			)
		}
	}

	if de.cfg.Polish && status != StatusCanceled {
		polished, polishedCost, polishEvals := patternDescent(
			de.penalizedCost, best, de.proj, de.cfg.PolishIterations)
		evaluations += polishEvals
		if polishedCost < bestCost {
			best = polished
			bestCost = polishedCost
		}
	}

	return de.finish(best, generations, evaluations, status), nil
}

// finish assembles the immutable Result, pricing the final schedule with
// the true cost model and the TWAP baseline for the improvement metric.
func (de *DifferentialEvolution) finish(best []float64, generations, evaluations int, status Status) Result {
	if best == nil {
		best = de.params.TWAP()
	}
	trueCost, _ := de.params.Evaluate(best)
	twapCost, _ := de.params.TWAPCost()

	result := Result{
		Schedule:          best,
		Cost:              trueCost,
		PenalizedCost:     trueCost.Total + de.proj.Penalty(best),
		ImprovementVsTWAP: costmodel.Improvement(twapCost.Total, trueCost.Total),
		Converged:         status == StatusConverged || status == StatusStagnated,
		Feasible:          de.proj.Feasible(best, de.cfg.FeasibilityTolerance),
		Status:            status,
		Generations:       generations,
		Evaluations:       evaluations,
		Seed:              de.cfg.Seed,
	}

	de.logger.Info("optimization finished",
		zap.String("op", "solver.Solve"),
		zap.String("status", string(status)),
		zap.Bool("converged", result.Converged),
		zap.Bool("feasible", result.Feasible),
		zap.Int("generations", generations),
		zap.Int("evaluations", evaluations),
		zap.Float64("totalCost", trueCost.Total),
		zap.Float64("improvementVsTwap", result.ImprovementVsTWAP),
	)

	return result
}

// pickPartners draws three distinct population indices, all different from
// the target index.
func pickPartners(rng *rand.Rand, popSize, exclude int) (int, int, int) {
	idx := [3]int{}
	for k := 0; k < 3; {
		candidate := rng.Intn(popSize)
		if candidate == exclude {
			continue
		}
		duplicate := false
		for m := 0; m < k; m++ {
			if idx[m] == candidate {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		idx[k] = candidate
		k++
	}
	return idx[0], idx[1], idx[2]
}

var _ Solver = (*DifferentialEvolution)(nil)

// String describes the solver for logs and reports.
func (de *DifferentialEvolution) String() string {
	return fmt.Sprintf("differential-evolution(pop=%d, cr=%.2f, f=[%.2f,%.2f])",
		de.cfg.PopulationFactor*de.params.Periods, de.cfg.CrossoverRate, de.cfg.MutationMin, de.cfg.MutationMax)
}
