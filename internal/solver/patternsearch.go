package solver

import (
	"context"
	"math"

	"go.uber.org/zap"

	"optexec/internal/constraint"
	"optexec/internal/costmodel"
	"optexec/pkg/mathutil"
)

// patternDescent refines a schedule by derivative-free local search over
// the same penalized objective: single-coordinate moves of a shrinking
// step, plus a rescale candidate that restores the liquidation equality.
// Every candidate is evaluated and accepted only on improvement, so the
// search genuinely visits each point it returns. Returns the refined
// vector, its cost, and the number of objective evaluations spent.
func patternDescent(objective func([]float64) float64, start []float64, proj constraint.Projector, maxIter int) ([]float64, float64, int) {
	current := append([]float64(nil), start...)
	currentCost := objective(current)
	evaluations := 1

	step := proj.Cap / 8
	minStep := proj.Cap * 1e-9
	candidate := make([]float64, len(current))

	tryCandidate := func(build func([]float64)) bool {
		copy(candidate, current)
		build(candidate)
		proj.ClipInPlace(candidate)
		cost := objective(candidate)
		evaluations++
		if cost < currentCost {
			current, candidate = candidate, current
			currentCost = cost
			return true
		}
		return false
	}

	for iter := 0; iter < maxIter && step > minStep; iter++ {
		improved := false

		for j := range current {
			if tryCandidate(func(v []float64) { v[j] += step }) {
				improved = true
				continue
			}
			if tryCandidate(func(v []float64) { v[j] -= step }) {
				improved = true
			}
		}

		// Equality-restoring move: scale onto the liquidation plane.
		if sum := mathutil.Sum(current); sum > 0 {
			scale := proj.Target / sum
			if tryCandidate(func(v []float64) {
				for j := range v {
					v[j] *= scale
				}
			}) {
				improved = true
			}
		}

		if !improved {
			step /= 2
		}
	}

	return current, currentCost, evaluations
}

// PatternSearch is the deterministic local solver used as a comparison
// baseline. It starts from the uniform schedule and descends the same
// penalized objective the global search uses.
type PatternSearch struct {
	params costmodel.Parameters
	cfg    Config
	proj   constraint.Projector
	logger *zap.Logger
}

// NewPatternSearch validates the problem and builds the local solver.
func NewPatternSearch(params costmodel.Parameters, cfg Config, logger *zap.Logger) (*PatternSearch, error) {
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

	return &PatternSearch{params: params, cfg: cfg, proj: proj, logger: logger}, nil
}

// Solve descends from the uniform schedule and reports the refined local
// optimum.
func (ps *PatternSearch) Solve(ctx context.Context) (Result, error) {
	select {
	case <-ctx.Done():
		return ps.buildResult(ps.params.TWAP(), 0, StatusCanceled), nil
	default:
	}

	objective := func(v []float64) float64 {
		b, err := ps.params.Evaluate(v)
		if err != nil {
			return math.Inf(1)
		}
		return b.Total + ps.proj.Penalty(v)
	}

	best, _, evaluations := patternDescent(objective, ps.params.TWAP(), ps.proj, ps.cfg.PolishIterations)
	return ps.buildResult(best, evaluations, StatusConverged), nil
}

func (ps *PatternSearch) buildResult(schedule []float64, evaluations int, status Status) Result {
	trueCost, _ := ps.params.Evaluate(schedule)
	twapCost, _ := ps.params.TWAPCost()

	result := Result{
		Schedule:          schedule,
		Cost:              trueCost,
		PenalizedCost:     trueCost.Total + ps.proj.Penalty(schedule),
		ImprovementVsTWAP: costmodel.Improvement(twapCost.Total, trueCost.Total),
		Converged:         status == StatusConverged,
		Feasible:          ps.proj.Feasible(schedule, ps.cfg.FeasibilityTolerance),
		Status:            status,
		Evaluations:       evaluations,
		Seed:              ps.cfg.Seed,
	}

	ps.logger.Info("local search finished",
		zap.String("op", "solver.PatternSearch"),
		zap.String("status", string(status)),
		zap.Int("evaluations", evaluations),
		zap.Float64("totalCost", trueCost.Total),
	)

	return result
}

var _ Solver = (*PatternSearch)(nil)
