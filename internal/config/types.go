package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"optexec/internal/costmodel"
	"optexec/internal/marketdata"
	"optexec/internal/solver"
	"optexec/pkg/validation"
)

// Config aggregates everything a run needs: the liquidation problem, the
// search hyperparameters, and the ambient concerns around them.
type Config struct {
	Problem     ProblemConfig     `mapstructure:"problem"`
	Solver      SolverConfig      `mapstructure:"solver"`
	Calibration CalibrationConfig `mapstructure:"calibration"`
	MonteCarlo  MonteCarloConfig  `mapstructure:"monte_carlo"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Output      OutputConfig      `mapstructure:"output"`
}

// ProblemConfig describes the liquidation to schedule. MaxTradeFraction is
// the per-period cap as a fraction of the initial inventory; calibration
// may override it from observed liquidity.
type ProblemConfig struct {
	Ticker            string  `mapstructure:"ticker"`
	InitialInventory  float64 `mapstructure:"initial_inventory"`
	Horizon           float64 `mapstructure:"horizon"`
	Periods           int     `mapstructure:"periods"`
	ImpactCoefficient float64 `mapstructure:"impact_coefficient"`
	ImpactExponent    float64 `mapstructure:"impact_exponent"`
	PermanentFraction float64 `mapstructure:"permanent_fraction"`
	DecayRate         float64 `mapstructure:"decay_rate"`
	SpreadBps         float64 `mapstructure:"spread_bps"`
	RiskAversion      float64 `mapstructure:"risk_aversion"`
	Volatility        float64 `mapstructure:"volatility"`
	InitialPrice      float64 `mapstructure:"initial_price"`
	MaxTradeFraction  float64 `mapstructure:"max_trade_fraction"`
}

// SolverConfig mirrors the search hyperparameters one to one.
type SolverConfig struct {
	PopulationFactor     int     `mapstructure:"population_factor"`
	MutationMin          float64 `mapstructure:"mutation_min"`
	MutationMax          float64 `mapstructure:"mutation_max"`
	CrossoverRate        float64 `mapstructure:"crossover_rate"`
	MaxGenerations       int     `mapstructure:"max_generations"`
	StagnationLimit      int     `mapstructure:"stagnation_limit"`
	VarianceTolerance    float64 `mapstructure:"variance_tolerance"`
	VariancePatience     int     `mapstructure:"variance_patience"`
	PenaltyCoefficient   float64 `mapstructure:"penalty_coefficient"`
	FeasibilityTolerance float64 `mapstructure:"feasibility_tolerance"`
	Seed                 int64   `mapstructure:"seed"`
	Workers              int     `mapstructure:"workers"`
	WarmStart            bool    `mapstructure:"warm_start"`
	Polish               bool    `mapstructure:"polish"`
	PolishIterations     int     `mapstructure:"polish_iterations"`
}

// CalibrationConfig controls how model parameters are refreshed from
// market data before solving.
type CalibrationConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Exchange      string        `mapstructure:"exchange"`
	Market        string        `mapstructure:"market"`
	Timeframe     string        `mapstructure:"timeframe"`
	CandleLimit   int           `mapstructure:"candle_limit"`
	Conservative  bool          `mapstructure:"conservative"`
	Directory     string        `mapstructure:"directory"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// MonteCarloConfig controls the robustness study around a solved problem.
type MonteCarloConfig struct {
	Scenarios        int     `mapstructure:"scenarios"`
	VolatilityJitter float64 `mapstructure:"volatility_jitter"`
	ImpactJitter     float64 `mapstructure:"impact_jitter"`
	PriceJitter      float64 `mapstructure:"price_jitter"`
	Workers          int     `mapstructure:"workers"`
}

// DatabaseConfig manages the run store.
type DatabaseConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// OutputConfig holds report format options.
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// Validate performs structural checks on the configuration. Problem
// plausibility checks beyond these live on costmodel.Parameters.
func (c *Config) Validate() error {
	var err error

	if c.Problem.InitialInventory <= 0 {
		err = multierr.Append(err, errors.New("problem.initial_inventory must be positive"))
	}
	if c.Problem.Periods <= 0 {
		err = multierr.Append(err, errors.New("problem.periods must be positive"))
	}
	if c.Problem.MaxTradeFraction <= 0 || c.Problem.MaxTradeFraction > 1 {
		err = multierr.Append(err, errors.New("problem.max_trade_fraction must be in (0,1]"))
	}
	if c.Solver.PopulationFactor <= 0 {
		err = multierr.Append(err, errors.New("solver.population_factor must be positive"))
	}
	if c.Solver.CrossoverRate <= 0 || c.Solver.CrossoverRate > 1 {
		err = multierr.Append(err, errors.New("solver.crossover_rate must be in (0,1]"))
	}
	if c.Solver.MutationMin <= 0 || c.Solver.MutationMax < c.Solver.MutationMin {
		err = multierr.Append(err, errors.New("solver.mutation bounds must satisfy 0 < min <= max"))
	}
	if c.Solver.MaxGenerations <= 0 {
		err = multierr.Append(err, errors.New("solver.max_generations must be positive"))
	}
	if c.Solver.PenaltyCoefficient <= 0 {
		err = multierr.Append(err, errors.New("solver.penalty_coefficient must be positive"))
	}
	if c.Calibration.Enabled {
		if c.Calibration.Exchange == "" {
			err = multierr.Append(err, errors.New("calibration.exchange must be set when calibration is enabled"))
		}
		if c.Calibration.Market == "" {
			err = multierr.Append(err, errors.New("calibration.market must be set when calibration is enabled"))
		}
		if c.Calibration.CandleLimit <= 1 {
			err = multierr.Append(err, errors.New("calibration.candle_limit must exceed 1"))
		}
		if c.Calibration.RetryAttempts < 1 {
			err = multierr.Append(err, errors.New("calibration.retry_attempts must be at least 1"))
		}
		if c.Calibration.RetryDelay < 0 {
			err = multierr.Append(err, errors.New("calibration.retry_delay cannot be negative"))
		}
	}
	if c.MonteCarlo.Scenarios < 0 {
		err = multierr.Append(err, errors.New("monte_carlo.scenarios cannot be negative"))
	}
	if c.MonteCarlo.VolatilityJitter < 0 || c.MonteCarlo.VolatilityJitter >= 1 {
		err = multierr.Append(err, errors.New("monte_carlo.volatility_jitter must be in [0,1)"))
	}
	if c.MonteCarlo.ImpactJitter < 0 || c.MonteCarlo.ImpactJitter >= 1 {
		err = multierr.Append(err, errors.New("monte_carlo.impact_jitter must be in [0,1)"))
	}
	if c.MonteCarlo.PriceJitter < 0 || c.MonteCarlo.PriceJitter >= 1 {
		err = multierr.Append(err, errors.New("monte_carlo.price_jitter must be in [0,1)"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path must be set unless database.in_memory is true"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level must be set"))
	}
	if c.Logging.Encoding != "json" && c.Logging.Encoding != "console" {
		err = multierr.Append(err, errors.New("logging.encoding must be json or console"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths needs at least one target"))
	}
	if verr := validation.ValidateOutputFormat(c.Output.Format); verr != nil {
		err = multierr.Append(err, verr)
	}

	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	return nil
}

// ToParameters resolves the problem section into cost-model parameters.
// The per-period cap comes from the trade fraction applied to the initial
// inventory.
func (c *Config) ToParameters() costmodel.Parameters {
	return costmodel.Parameters{
		InitialInventory:  c.Problem.InitialInventory,
		Horizon:           c.Problem.Horizon,
		Periods:           c.Problem.Periods,
		ImpactCoefficient: c.Problem.ImpactCoefficient,
		ImpactExponent:    c.Problem.ImpactExponent,
		PermanentFraction: c.Problem.PermanentFraction,
		DecayRate:         c.Problem.DecayRate,
		SpreadBps:         c.Problem.SpreadBps,
		RiskAversion:      c.Problem.RiskAversion,
		Volatility:        c.Problem.Volatility,
		InitialPrice:      c.Problem.InitialPrice,
		MaxTrade:          c.Problem.MaxTradeFraction * c.Problem.InitialInventory,
	}
}

// ToMarketDataConfig maps the calibration section onto the candle client
// configuration.
func (c *Config) ToMarketDataConfig() marketdata.Config {
	return marketdata.Config{
		Exchange:      c.Calibration.Exchange,
		Market:        c.Calibration.Market,
		RetryAttempts: c.Calibration.RetryAttempts,
		RetryDelay:    c.Calibration.RetryDelay,
	}
}

// ToSolverConfig maps the solver section onto the search configuration.
func (c *Config) ToSolverConfig() solver.Config {
	return solver.Config{
		PopulationFactor:     c.Solver.PopulationFactor,
		MutationMin:          c.Solver.MutationMin,
		MutationMax:          c.Solver.MutationMax,
		CrossoverRate:        c.Solver.CrossoverRate,
		MaxGenerations:       c.Solver.MaxGenerations,
		StagnationLimit:      c.Solver.StagnationLimit,
		VarianceTolerance:    c.Solver.VarianceTolerance,
		VariancePatience:     c.Solver.VariancePatience,
		PenaltyCoefficient:   c.Solver.PenaltyCoefficient,
		FeasibilityTolerance: c.Solver.FeasibilityTolerance,
		Seed:                 c.Solver.Seed,
		Workers:              c.Solver.Workers,
		WarmStart:            c.Solver.WarmStart,
		Polish:               c.Solver.Polish,
		PolishIterations:     c.Solver.PolishIterations,
	}
}
