package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"optexec/internal/marketdata"
	"optexec/pkg/constants"
)

const sampleConfig = `problem:
  ticker: ABEV3
  initial_inventory: 100000
  horizon: 1.0
  periods: 10
  impact_coefficient: 2.0e-7
  impact_exponent: 0.67
  permanent_fraction: 0.4
  decay_rate: 0.5
  spread_bps: 1.0
  risk_aversion: 1.0e-6
  volatility: 0.0348
  initial_price: 7.92
  max_trade_fraction: 0.4
solver:
  seed: 7
  max_generations: 120
database:
  in_memory: true
logging:
  level: debug
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Problem.Ticker != "ABEV3" {
		t.Errorf("Problem.Ticker = %q, want ABEV3", cfg.Problem.Ticker)
	}
	if cfg.Problem.InitialInventory != 100000 {
		t.Errorf("Problem.InitialInventory = %v, want 100000", cfg.Problem.InitialInventory)
	}
	if cfg.Solver.Seed != 7 {
		t.Errorf("Solver.Seed = %d, want 7", cfg.Solver.Seed)
	}
	if cfg.Solver.MaxGenerations != 120 {
		t.Errorf("Solver.MaxGenerations = %d, want 120", cfg.Solver.MaxGenerations)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Solver.PopulationFactor != 15 {
		t.Errorf("Solver.PopulationFactor = %d, want default 15", cfg.Solver.PopulationFactor)
	}
	if cfg.Solver.CrossoverRate != 0.7 {
		t.Errorf("Solver.CrossoverRate = %v, want default 0.7", cfg.Solver.CrossoverRate)
	}
	if !cfg.Solver.WarmStart {
		t.Error("Solver.WarmStart = false, want default true")
	}
	if cfg.Solver.PenaltyCoefficient != 1e6 {
		t.Errorf("Solver.PenaltyCoefficient = %v, want default 1e6", cfg.Solver.PenaltyCoefficient)
	}
	if cfg.Output.Format != constants.OutputFormatPretty {
		t.Errorf("Output.Format = %q, want default %q", cfg.Output.Format, constants.OutputFormatPretty)
	}
	if cfg.Logging.Encoding != "console" {
		t.Errorf("Logging.Encoding = %q, want default console", cfg.Logging.Encoding)
	}
	if cfg.Calibration.RetryAttempts != marketdata.DefaultRetryAttempts {
		t.Errorf("Calibration.RetryAttempts = %d, want default %d",
			cfg.Calibration.RetryAttempts, marketdata.DefaultRetryAttempts)
	}
	if cfg.Calibration.RetryDelay != marketdata.DefaultRetryDelay {
		t.Errorf("Calibration.RetryDelay = %v, want default %v",
			cfg.Calibration.RetryDelay, marketdata.DefaultRetryDelay)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml")); err == nil {
		t.Error("Load() expected error for missing file but got none")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		path := writeTempConfig(t, sampleConfig)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return *cfg
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError string
	}{
		{
			name:   "valid configuration",
			mutate: func(c *Config) {},
		},
		{
			name:      "zero inventory",
			mutate:    func(c *Config) { c.Problem.InitialInventory = 0 },
			wantError: "initial_inventory",
		},
		{
			name:      "trade fraction above one",
			mutate:    func(c *Config) { c.Problem.MaxTradeFraction = 1.5 },
			wantError: "max_trade_fraction",
		},
		{
			name:      "inverted mutation bounds",
			mutate:    func(c *Config) { c.Solver.MutationMin = 0.9; c.Solver.MutationMax = 0.3 },
			wantError: "mutation",
		},
		{
			name:      "bad output format",
			mutate:    func(c *Config) { c.Output.Format = "xml" },
			wantError: "output format",
		},
		{
			name: "calibration without market",
			mutate: func(c *Config) {
				c.Calibration.Enabled = true
				c.Calibration.Market = ""
			},
			wantError: "calibration.market",
		},
		{
			name: "calibration with zero retry attempts",
			mutate: func(c *Config) {
				c.Calibration.Enabled = true
				c.Calibration.Market = "ABEV3/BRL"
				c.Calibration.RetryAttempts = 0
			},
			wantError: "calibration.retry_attempts",
		},
		{
			name: "no database target",
			mutate: func(c *Config) {
				c.Database.InMemory = false
				c.Database.Path = ""
			},
			wantError: "database.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantError == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantError)
			}
		})
	}
}

func TestToParameters(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	params := cfg.ToParameters()
	if params.MaxTrade != 40000 {
		t.Errorf("MaxTrade = %v, want fraction*inventory = 40000", params.MaxTrade)
	}
	if err := params.Validate(); err != nil {
		t.Errorf("resolved parameters invalid: %v", err)
	}
}

func TestToMarketDataConfig(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.Calibration.Market = "ABEV3/BRL"
	cfg.Calibration.RetryAttempts = 5
	cfg.Calibration.RetryDelay = 2 * time.Second

	md := cfg.ToMarketDataConfig()
	if md.Exchange != "binance" || md.Market != "ABEV3/BRL" {
		t.Errorf("market selection = (%q, %q), want (binance, ABEV3/BRL)", md.Exchange, md.Market)
	}
	if md.RetryAttempts != 5 || md.RetryDelay != 2*time.Second {
		t.Errorf("retry policy = (%d, %v), want (5, 2s)", md.RetryAttempts, md.RetryDelay)
	}
}

func TestToSolverConfig(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	sc := cfg.ToSolverConfig()
	if sc.Seed != 7 {
		t.Errorf("Seed = %d, want 7", sc.Seed)
	}
	if sc.MaxGenerations != 120 {
		t.Errorf("MaxGenerations = %d, want 120", sc.MaxGenerations)
	}
	if !sc.Polish {
		t.Error("Polish = false, want default true")
	}
}
