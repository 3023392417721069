// Package constraint handles the operational constraints on a trade
// schedule: the per-period box bound, which is hard-clipped, and the
// total-liquidation equality, which is enforced through a quadratic penalty
// so the optimizer keeps its search direction.
package constraint

import (
	"math"

	"optexec/pkg/constants"
)

// DefaultPenaltyCoefficient dominates typical cost magnitudes so that any
// equality violation overwhelms the objective.
const DefaultPenaltyCoefficient = 1e6

// Projector clips candidate vectors into the box and prices equality
// violations.
type Projector struct {
	Cap    float64 // per-period upper bound, shares
	Target float64 // required total, X0
	Rho    float64 // penalty coefficient; DefaultPenaltyCoefficient when zero
}

// NewProjector builds a projector for the given bounds.
func NewProjector(cap, target float64) Projector {
	return Projector{Cap: cap, Target: target, Rho: DefaultPenaltyCoefficient}
}

// Clip returns a copy of v with every component forced into [0, cap]. The
// input is never modified; optimizer populations share slices freely.
func (pr Projector) Clip(v []float64) []float64 {
	clipped := make([]float64, len(v))
	for i, x := range v {
		switch {
		case x < 0:
			clipped[i] = 0
		case x > pr.Cap:
			clipped[i] = pr.Cap
		default:
			clipped[i] = x
		}
	}
	return clipped
}

// ClipInPlace forces every component of v into [0, cap] without copying.
func (pr Projector) ClipInPlace(v []float64) {
	for i, x := range v {
		if x < 0 {
			v[i] = 0
		} else if x > pr.Cap {
			v[i] = pr.Cap
		}
	}
}

// Penalty returns rho * (sum(v) - target)^2. Zero exactly when the
// schedule liquidates the full inventory.
func (pr Projector) Penalty(v []float64) float64 {
	rho := pr.Rho
	if rho == 0 {
		rho = DefaultPenaltyCoefficient
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	diff := sum - pr.Target
	return rho * diff * diff
}

// Feasible reports whether v respects the box and liquidates the target
// total within the relative tolerance.
func (pr Projector) Feasible(v []float64, relTol float64) bool {
	if relTol <= 0 {
		relTol = constants.FeasibilityRelTolerance
	}
	sum := 0.0
	for _, x := range v {
		if x < -relTol*pr.Target || x > pr.Cap*(1+relTol) {
			return false
		}
		sum += x
	}
	return math.Abs(sum-pr.Target) <= relTol*pr.Target
}
