// Package costmodel prices a liquidation schedule under a market-impact
// cost model: power-law impact split into a permanent and a decaying
// transient component, bid-ask spread, and inventory risk. Evaluation is a
// pure function of the schedule and parameters and is safe for concurrent
// use.
package costmodel

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/multierr"

	"optexec/pkg/constants"
	"optexec/pkg/mathutil"
)

// ErrScheduleLength indicates the schedule does not have one trade per period.
var ErrScheduleLength = errors.New("schedule length does not match period count")

// Parameters holds the fully-resolved problem parameters for one run.
// The per-period cap is already resolved to shares; translating percentage
// or ADV-based limits into shares is the calibration layer's job.
type Parameters struct {
	InitialInventory  float64 // X0, shares to liquidate
	Horizon           float64 // T, trading horizon in days
	Periods           int     // N, number of trading periods
	ImpactCoefficient float64 // eta
	ImpactExponent    float64 // gamma, in (0,1]
	PermanentFraction float64 // share of impact that persists, in [0,1]
	DecayRate         float64 // rho, exponential decay of transient impact
	SpreadBps         float64 // half-spread cost in basis points
	RiskAversion      float64 // lambda
	Volatility        float64 // sigma, per-day return volatility
	InitialPrice      float64 // S0, dollars
	MaxTrade          float64 // per-period cap, shares
}

// Breakdown holds the cost of a schedule split into its additive components.
type Breakdown struct {
	Impact float64 `json:"impactCost"`
	Spread float64 `json:"spreadCost"`
	Risk   float64 `json:"riskCost"`
	Total  float64 `json:"totalCost"`
}

// ImpactPct returns the impact component as a percentage of the total.
func (b Breakdown) ImpactPct() float64 {
	return mathutil.CalculatePercentage(b.Impact, b.Total)
}

// SpreadPct returns the spread component as a percentage of the total.
func (b Breakdown) SpreadPct() float64 {
	return mathutil.CalculatePercentage(b.Spread, b.Total)
}

// RiskPct returns the risk component as a percentage of the total.
func (b Breakdown) RiskPct() float64 {
	return mathutil.CalculatePercentage(b.Risk, b.Total)
}

// Tau returns the length of a single trading period.
func (p Parameters) Tau() float64 {
	return p.Horizon / float64(p.Periods)
}

// Validate rejects ill-posed parameters before any evaluation begins.
// All violations are reported together.
func (p Parameters) Validate() error {
	var err error

	if p.InitialInventory <= 0 {
		err = multierr.Append(err, fmt.Errorf("initial inventory must be positive, got %v", p.InitialInventory))
	}
	if p.Horizon <= 0 {
		err = multierr.Append(err, fmt.Errorf("horizon must be positive, got %v", p.Horizon))
	}
	if p.Periods < 1 {
		err = multierr.Append(err, fmt.Errorf("period count must be at least 1, got %d", p.Periods))
	}
	if p.ImpactCoefficient < 0 {
		err = multierr.Append(err, fmt.Errorf("impact coefficient must be non-negative, got %v", p.ImpactCoefficient))
	}
	if p.ImpactExponent <= 0 || p.ImpactExponent > 1 {
		err = multierr.Append(err, fmt.Errorf("impact exponent must be in (0,1], got %v", p.ImpactExponent))
	}
	if p.PermanentFraction < 0 || p.PermanentFraction > 1 {
		err = multierr.Append(err, fmt.Errorf("permanent fraction must be in [0,1], got %v", p.PermanentFraction))
	}
	if p.DecayRate < 0 {
		err = multierr.Append(err, fmt.Errorf("decay rate must be non-negative, got %v", p.DecayRate))
	}
	if p.SpreadBps < 0 {
		err = multierr.Append(err, fmt.Errorf("spread must be non-negative, got %v bps", p.SpreadBps))
	}
	if p.RiskAversion < 0 {
		err = multierr.Append(err, fmt.Errorf("risk aversion must be non-negative, got %v", p.RiskAversion))
	}
	if p.Volatility < 0 {
		err = multierr.Append(err, fmt.Errorf("volatility must be non-negative, got %v", p.Volatility))
	}
	if p.InitialPrice <= 0 {
		err = multierr.Append(err, fmt.Errorf("initial price must be positive, got %v", p.InitialPrice))
	}
	if p.MaxTrade <= 0 {
		err = multierr.Append(err, fmt.Errorf("per-period trade cap must be positive, got %v", p.MaxTrade))
	}
	if p.MaxTrade > 0 && p.Periods >= 1 && p.InitialInventory > 0 &&
		p.MaxTrade*float64(p.Periods) < p.InitialInventory {
		err = multierr.Append(err, fmt.Errorf("cap %v over %d periods cannot liquidate inventory %v",
			p.MaxTrade, p.Periods, p.InitialInventory))
	}

	if err != nil {
		return fmt.Errorf("invalid problem parameters: %w", err)
	}
	return nil
}

// Evaluate computes the total cost of a schedule and its component
// breakdown. The loop is path-dependent: transient impact accumulated by
// earlier trades decays across later periods, so periods must be processed
// in order. Infeasible or extreme schedules still produce a finite cost;
// large values are the penalty signal the optimizer relies on.
func (p Parameters) Evaluate(schedule []float64) (Breakdown, error) {
	if len(schedule) != p.Periods {
		return Breakdown{}, fmt.Errorf("%w: got %d trades for %d periods", ErrScheduleLength, len(schedule), p.Periods)
	}

	tau := p.Tau()
	decay := math.Exp(-p.DecayRate * tau)
	etaPermanent := p.PermanentFraction * p.ImpactCoefficient
	etaTransient := (1 - p.PermanentFraction) * p.ImpactCoefficient
	spreadPerShare := p.SpreadBps * constants.BpsToFraction * p.InitialPrice

	var b Breakdown
	displacement := 0.0
	inventory := p.InitialInventory

	for _, trade := range schedule {
		displacement *= decay

		powerTerm := math.Pow(math.Abs(trade), p.ImpactExponent)
		permanent := etaPermanent * powerTerm
		transient := etaTransient * powerTerm

		// The trade size enters twice: once inside the power-law term
		// and once as the quantity-traded factor below.
		priceImpact := displacement + permanent + transient
		b.Impact += trade * priceImpact * p.InitialPrice

		b.Spread += trade * spreadPerShare

		inventory -= trade
		b.Risk += 0.5 * p.RiskAversion * inventory * inventory * p.Volatility * p.Volatility * tau

		displacement += transient
	}

	b.Total = b.Impact + b.Spread + b.Risk
	return b, nil
}
