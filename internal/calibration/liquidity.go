package calibration

import (
	"fmt"

	"go.uber.org/zap"

	"optexec/pkg/mathutil"
)

// LiquidityBand classifies a ticker by average daily volume.
type LiquidityBand string

const (
	BandUltraLiquid LiquidityBand = "ultra_liquid" // >= 50M shares/day
	BandVeryLiquid  LiquidityBand = "very_liquid"  // >= 10M shares/day
	BandModerate    LiquidityBand = "moderate"     // >= 1M shares/day
	BandLow         LiquidityBand = "low"          // >= 100k shares/day
	BandMicro       LiquidityBand = "micro"        // below 100k shares/day
)

// LiquidityProfile is the resolved trading constraint for one order.
type LiquidityProfile struct {
	AverageDailyVolume float64       `json:"adv"`
	Band               LiquidityBand `json:"band"`
	Participation      float64       `json:"participation"`
	MaxTradeFraction   float64       `json:"max_trade_fraction"`
	FeasibilityFloored bool          `json:"feasibility_floored"`
}

// participation limits as a fraction of per-period volume, by band.
var (
	conservativeParticipation = map[LiquidityBand]float64{
		BandUltraLiquid: 0.10,
		BandVeryLiquid:  0.08,
		BandModerate:    0.06,
		BandLow:         0.04,
		BandMicro:       0.02,
	}
	aggressiveParticipation = map[LiquidityBand]float64{
		BandUltraLiquid: 0.15,
		BandVeryLiquid:  0.12,
		BandModerate:    0.10,
		BandLow:         0.08,
		BandMicro:       0.05,
	}
)

// ClassifyLiquidity maps average daily volume to a band.
func ClassifyLiquidity(adv float64) LiquidityBand {
	switch {
	case adv >= 50e6:
		return BandUltraLiquid
	case adv >= 10e6:
		return BandVeryLiquid
	case adv >= 1e6:
		return BandModerate
	case adv >= 100e3:
		return BandLow
	default:
		return BandMicro
	}
}

// ResolveMaxTradeFraction derives the per-period cap, as a fraction of the
// order, from observed liquidity. The allowed shares per period are the
// band's participation limit applied to the per-period slice of ADV. When
// the order is large relative to liquidity the fraction is floored so that
// periods*cap still covers the full order; the profile records that the
// floor was applied.
func ResolveMaxTradeFraction(adv, orderSize float64, periods int, conservative bool, logger *zap.Logger) (LiquidityProfile, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if adv <= 0 {
		return LiquidityProfile{}, fmt.Errorf("average daily volume must be positive, got %v", adv)
	}
	if orderSize <= 0 {
		return LiquidityProfile{}, fmt.Errorf("order size must be positive, got %v", orderSize)
	}
	if periods <= 0 {
		return LiquidityProfile{}, fmt.Errorf("periods must be positive, got %d", periods)
	}

	band := ClassifyLiquidity(adv)
	participation := aggressiveParticipation[band]
	if conservative {
		participation = conservativeParticipation[band]
	}

	allowedPerPeriod := participation * adv / float64(periods)
	fraction := allowedPerPeriod / orderSize

	// The equality constraint needs periods*cap >= order; keep 10% slack
	// above the bare minimum so the search has room to move.
	floor := 1.1 / float64(periods)
	floored := fraction < floor
	fraction = mathutil.Clamp(fraction, floor, 1.0)

	profile := LiquidityProfile{
		AverageDailyVolume: adv,
		Band:               band,
		Participation:      participation,
		MaxTradeFraction:   fraction,
		FeasibilityFloored: floored,
	}

	if floored {
		logger.Warn("order exceeds liquidity-based participation limit",
			zap.String("op", "calibration.ResolveMaxTradeFraction"),
			zap.String("band", string(band)),
			zap.Float64("adv", adv),
			zap.Float64("orderSize", orderSize),
			zap.Float64("maxTradeFraction", fraction),
		)
	} else {
		logger.Info("liquidity constraint resolved",
			zap.String("op", "calibration.ResolveMaxTradeFraction"),
			zap.String("band", string(band)),
			zap.Float64("participation", participation),
			zap.Float64("maxTradeFraction", fraction),
		)
	}

	return profile, nil
}
