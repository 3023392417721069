// Package calibration turns observed market data into cost-model
// parameters: impact coefficients loaded from prior calibration runs,
// liquidity-based trade caps, and volatility estimated from candles.
package calibration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CalibratedParameters is the persisted output of an impact calibration
// for one ticker.
type CalibratedParameters struct {
	Ticker            string    `json:"ticker"`
	ImpactCoefficient float64   `json:"eta"`
	ImpactExponent    float64   `json:"gamma"`
	Volatility        float64   `json:"sigma"`
	ReferencePrice    float64   `json:"s0"`
	AverageVolume     float64   `json:"adv"`
	SpreadBps         float64   `json:"spread_bps"`
	CalibratedAt      time.Time `json:"calibrated_at"`
}

// calibrationFile returns the per-ticker calibration path inside dir.
func calibrationFile(dir, ticker string) string {
	return filepath.Join(dir, fmt.Sprintf("impact_calibration_%s.json", ticker))
}

// Save writes the calibration as JSON under dir, creating the directory
// if needed.
func (p CalibratedParameters) Save(dir string) error {
	if p.Ticker == "" {
		return fmt.Errorf("calibration has no ticker")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating calibration directory: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding calibration: %w", err)
	}
	if err := os.WriteFile(calibrationFile(dir, p.Ticker), data, 0o644); err != nil {
		return fmt.Errorf("writing calibration: %w", err)
	}
	return nil
}

// Load reads a previously saved calibration for ticker from dir.
func Load(dir, ticker string) (CalibratedParameters, error) {
	data, err := os.ReadFile(calibrationFile(dir, ticker))
	if err != nil {
		return CalibratedParameters{}, fmt.Errorf("reading calibration for %s: %w", ticker, err)
	}

	var p CalibratedParameters
	if err := json.Unmarshal(data, &p); err != nil {
		return CalibratedParameters{}, fmt.Errorf("decoding calibration for %s: %w", ticker, err)
	}
	return p, nil
}
