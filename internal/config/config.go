// Package config loads and validates the YAML configuration that drives a
// liquidation run.
package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"optexec/internal/marketdata"
	"optexec/internal/solver"
	"optexec/pkg/constants"
)

const (
	defaultConfigPath = constants.DefaultConfigFile
	envPrefix         = "optexec"
)

// Load reads the configuration file, layers environment overrides on top,
// and returns the validated Config.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file %q not found: %w", path, err)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("problem.horizon", 1.0)
	v.SetDefault("problem.periods", 10)
	v.SetDefault("problem.impact_exponent", 0.67)
	v.SetDefault("problem.permanent_fraction", 0.4)
	v.SetDefault("problem.decay_rate", 0.5)
	v.SetDefault("problem.spread_bps", 1.0)
	v.SetDefault("problem.max_trade_fraction", 0.4)

	v.SetDefault("solver.population_factor", solver.DefaultPopulationFactor)
	v.SetDefault("solver.mutation_min", solver.DefaultMutationMin)
	v.SetDefault("solver.mutation_max", solver.DefaultMutationMax)
	v.SetDefault("solver.crossover_rate", solver.DefaultCrossoverRate)
	v.SetDefault("solver.max_generations", solver.DefaultMaxGenerations)
	v.SetDefault("solver.stagnation_limit", solver.DefaultStagnationLimit)
	v.SetDefault("solver.variance_tolerance", solver.DefaultVarianceTolerance)
	v.SetDefault("solver.variance_patience", solver.DefaultVariancePatience)
	v.SetDefault("solver.penalty_coefficient", 1e6)
	v.SetDefault("solver.feasibility_tolerance", constants.FeasibilityRelTolerance)
	v.SetDefault("solver.seed", solver.DefaultSeed)
	v.SetDefault("solver.workers", 0)
	v.SetDefault("solver.warm_start", true)
	v.SetDefault("solver.polish", true)
	v.SetDefault("solver.polish_iterations", solver.DefaultPolishIterations)

	v.SetDefault("calibration.enabled", false)
	v.SetDefault("calibration.exchange", "binance")
	v.SetDefault("calibration.timeframe", "1d")
	v.SetDefault("calibration.candle_limit", 90)
	v.SetDefault("calibration.conservative", true)
	v.SetDefault("calibration.directory", "data")
	v.SetDefault("calibration.retry_attempts", marketdata.DefaultRetryAttempts)
	v.SetDefault("calibration.retry_delay", marketdata.DefaultRetryDelay)

	v.SetDefault("monte_carlo.scenarios", 0)
	v.SetDefault("monte_carlo.volatility_jitter", 0.10)
	v.SetDefault("monte_carlo.impact_jitter", 0.10)
	v.SetDefault("monte_carlo.price_jitter", 0.01)
	v.SetDefault("monte_carlo.workers", 0)

	v.SetDefault("database.path", "data/optexec.db")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("output.format", constants.OutputFormatPretty)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
