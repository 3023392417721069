package calibration

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"
)

// EstimateVolatility computes the per-period volatility of a close series
// as the standard deviation of its log returns. At least three closes are
// required to form two returns.
func EstimateVolatility(closes []float64) (float64, error) {
	if len(closes) < 3 {
		return 0, fmt.Errorf("need at least 3 closes to estimate volatility, got %d", len(closes))
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			return 0, fmt.Errorf("closes must be positive, got %v -> %v at index %d", closes[i-1], closes[i], i)
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}

	// StdDev with the full series as its window yields the whole-sample
	// deviation in the final slot.
	stddev := talib.StdDev(returns, len(returns), 1.0)
	sigma := stddev[len(stddev)-1]
	if math.IsNaN(sigma) || sigma < 0 {
		return 0, fmt.Errorf("volatility estimate is not usable: %v", sigma)
	}
	return sigma, nil
}
