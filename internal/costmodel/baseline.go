package costmodel

// TWAP returns the uniform (time-weighted) schedule of equal trades each
// period. It is the practical baseline every optimized schedule is compared
// against.
func (p Parameters) TWAP() []float64 {
	schedule := make([]float64, p.Periods)
	size := p.InitialInventory / float64(p.Periods)
	for i := range schedule {
		schedule[i] = size
	}
	return schedule
}

// TWAPCost prices the uniform schedule with the identical cost model, never
// a separate formula, so comparisons are apples-to-apples.
func (p Parameters) TWAPCost() (Breakdown, error) {
	return p.Evaluate(p.TWAP())
}

// Improvement returns the relative cost reduction of optimalCost versus
// twapCost: (twap - optimal) / twap. Zero when the baseline cost is zero.
func Improvement(twapCost, optimalCost float64) float64 {
	if twapCost == 0 {
		return 0
	}
	return (twapCost - optimalCost) / twapCost
}
