package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"optexec/internal/calibration"
	"optexec/internal/config"
	"optexec/internal/costmodel"
	"optexec/internal/marketdata"
	"optexec/internal/montecarlo"
	"optexec/internal/solver"
	"optexec/internal/store"
	"optexec/pkg/constants"
	"optexec/pkg/output"
	"optexec/pkg/validation"
)

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	var zapConfig zap.Config
	if loggingConfig.Development {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	switch loggingConfig.Encoding {
	case "console", "json":
		zapConfig.Encoding = loggingConfig.Encoding
	case "":
	default:
		return nil, fmt.Errorf("invalid log encoding: %s", loggingConfig.Encoding)
	}

	if len(loggingConfig.OutputPaths) > 0 {
		zapConfig.OutputPaths = loggingConfig.OutputPaths
	}
	if len(loggingConfig.ErrorOutputPaths) > 0 {
		zapConfig.ErrorOutputPaths = loggingConfig.ErrorOutputPaths
	}

	return zapConfig.Build()
}

func main() {
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	outputFormatFlag := flag.String("output-format", "", "output format override: pretty, csv, json")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	seedOverride := flag.Int64("seed", 0, "random seed override (0 uses the configured seed)")
	mode := flag.String("mode", constants.ModeSolve, "run mode: solve or montecarlo")
	flag.Parse()

	conf, err := config.Load(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := initializeLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// CLI overrides take precedence over config.
	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		logger.Fatal(err.Error(), zap.String("op", "main"))
	}
	if err := validation.ValidateMode(*mode); err != nil {
		logger.Fatal(err.Error(), zap.String("op", "main"))
	}

	params := conf.ToParameters()
	solverCfg := conf.ToSolverConfig()
	if *seedOverride != 0 {
		solverCfg.Seed = *seedOverride
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Calibration.Enabled {
		params, err = calibrate(ctx, conf, params, logger)
		if err != nil {
			logger.Fatal("failed to calibrate model parameters",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	}

	if err := params.Validate(); err != nil {
		logger.Fatal("problem parameters invalid",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	db, err := store.NewSQLite(conf.Database)
	if err != nil {
		logger.Fatal("failed to open run store",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	defer func() {
		_ = db.Close()
	}()

	runs, err := store.NewRunStore(db.DB(), logger)
	if err != nil {
		logger.Fatal("failed to initialize run store",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	switch *mode {
	case constants.ModeSolve:
		err = runSolve(ctx, conf, params, solverCfg, outputFormat, runs, logger)
	case constants.ModeMonteCarlo:
		err = runMonteCarlo(ctx, conf, params, solverCfg, outputFormat, runs, logger)
	}
	if err != nil {
		logger.Fatal("run failed",
			zap.String("op", "main"),
			zap.String("mode", *mode),
			zap.Error(err),
		)
	}
}

// calibrate refreshes volatility, price, and the per-period cap from
// market data, preferring a persisted impact calibration when one exists.
func calibrate(ctx context.Context, conf *config.Config, params costmodel.Parameters, logger *zap.Logger) (costmodel.Parameters, error) {
	client, err := marketdata.NewClient(conf.ToMarketDataConfig(), logger)
	if err != nil {
		return params, err
	}

	candles, err := client.FetchCandles(ctx, conf.Calibration.Timeframe, int64(conf.Calibration.CandleLimit))
	if err != nil {
		return params, err
	}
	if len(candles) < 3 {
		return params, fmt.Errorf("not enough candles for calibration: %d", len(candles))
	}

	sigma, err := calibration.EstimateVolatility(marketdata.Closes(candles))
	if err != nil {
		return params, err
	}
	params.Volatility = sigma
	params.InitialPrice = marketdata.LatestClose(candles)

	adv := marketdata.AverageDailyVolume(candles)
	profile, err := calibration.ResolveMaxTradeFraction(
		adv, params.InitialInventory, params.Periods, conf.Calibration.Conservative, logger)
	if err != nil {
		return params, err
	}
	params.MaxTrade = profile.MaxTradeFraction * params.InitialInventory

	// A persisted impact calibration overrides the configured coefficients.
	if prior, err := calibration.Load(conf.Calibration.Directory, conf.Problem.Ticker); err == nil {
		params.ImpactCoefficient = prior.ImpactCoefficient
		params.ImpactExponent = prior.ImpactExponent
		logger.Info("loaded impact calibration",
			zap.String("op", "main.calibrate"),
			zap.String("ticker", prior.Ticker),
			zap.Float64("eta", prior.ImpactCoefficient),
			zap.Float64("gamma", prior.ImpactExponent),
		)
	}

	record := calibration.CalibratedParameters{
		Ticker:            conf.Problem.Ticker,
		ImpactCoefficient: params.ImpactCoefficient,
		ImpactExponent:    params.ImpactExponent,
		Volatility:        params.Volatility,
		ReferencePrice:    params.InitialPrice,
		AverageVolume:     adv,
		SpreadBps:         params.SpreadBps,
		CalibratedAt:      time.Now().UTC(),
	}
	if err := record.Save(conf.Calibration.Directory); err != nil {
		logger.Warn("failed to persist calibration",
			zap.String("op", "main.calibrate"),
			zap.Error(err),
		)
	}

	return params, nil
}

func runSolve(ctx context.Context, conf *config.Config, params costmodel.Parameters, solverCfg solver.Config, outputFormat string, runs *store.RunStore, logger *zap.Logger) error {
	de, err := solver.NewDifferentialEvolution(params, solverCfg, logger)
	if err != nil {
		return err
	}

	result, err := de.Solve(ctx)
	if err != nil {
		return err
	}

	switch outputFormat {
	case constants.OutputFormatPretty:
		output.PrettyFormat(os.Stdout, conf.Problem.Ticker, params, result)
	case constants.OutputFormatCSV:
		output.CsvFormat(os.Stdout, params, result)
	case constants.OutputFormatJSON:
		if err := output.JSONFormat(os.Stdout, result); err != nil {
			return err
		}
	}

	if _, err := runs.SaveRun(ctx, conf.Problem.Ticker, params, result); err != nil {
		logger.Warn("failed to persist run",
			zap.String("op", "main.runSolve"),
			zap.Error(err),
		)
	}
	return nil
}

func runMonteCarlo(ctx context.Context, conf *config.Config, params costmodel.Parameters, solverCfg solver.Config, outputFormat string, runs *store.RunStore, logger *zap.Logger) error {
	runner, err := montecarlo.NewRunner(params, solverCfg, conf.MonteCarlo, logger)
	if err != nil {
		return err
	}

	experiment, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	switch outputFormat {
	case constants.OutputFormatPretty:
		output.PrettyFormatExperiment(os.Stdout, conf.Problem.Ticker, experiment)
	case constants.OutputFormatCSV:
		output.CsvFormatExperiment(os.Stdout, experiment)
	case constants.OutputFormatJSON:
		if err := output.JSONFormat(os.Stdout, experiment); err != nil {
			return err
		}
	}

	_, err = runs.SaveExperiment(ctx, store.ExperimentRecord{
		Ticker:          conf.Problem.Ticker,
		Scenarios:       experiment.Summary.Scenarios,
		MeanCost:        experiment.Summary.MeanCost,
		StdCost:         experiment.Summary.StdCost,
		MinCost:         experiment.Summary.MinCost,
		MaxCost:         experiment.Summary.MaxCost,
		MedianCost:      experiment.Summary.MedianCost,
		CostVariation:   experiment.Summary.CostVariation,
		MeanImprovement: experiment.Summary.MeanImprovement,
	})
	if err != nil {
		logger.Warn("failed to persist experiment",
			zap.String("op", "main.runMonteCarlo"),
			zap.Error(err),
		)
	}
	return nil
}
