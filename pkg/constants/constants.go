// Package constants provides shared constants for the optexec application.
package constants

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the machine-readable JSON output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// ExampleConfigFile is the example configuration file name
	ExampleConfigFile = "config.yaml.example"
)

// Run mode constants
const (
	// ModeSolve runs a single optimization of the configured problem
	ModeSolve = "solve"

	// ModeMonteCarlo runs the Monte Carlo experiment across scenarios
	ModeMonteCarlo = "montecarlo"
)

// Numerical constants
const (
	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// FeasibilityRelTolerance is the relative tolerance on the
	// total-liquidation equality constraint when judging feasibility
	FeasibilityRelTolerance = 1e-6

	// BpsToFraction converts basis points to a price fraction
	BpsToFraction = 1e-4
)
