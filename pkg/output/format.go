// Package output provides utilities for formatting and displaying
// optimization results.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"optexec/internal/costmodel"
	"optexec/internal/montecarlo"
	"optexec/internal/solver"
)

// PrettyFormat writes a human-readable rather than machine-readable table.
func PrettyFormat(w io.Writer, ticker string, params costmodel.Parameters, result solver.Result) {
	p := message.NewPrinter(language.English)

	fmt.Fprintf(w, "--- Optimal execution schedule for %s ---\n", ticker)
	_, _ = p.Fprintf(w, "Order: %.0f shares over %d periods (cap %.0f shares/period)\n\n",
		params.InitialInventory, params.Periods, params.MaxTrade)

	fmt.Fprintf(w, "Period | Shares to Trade | %% of Total | Remaining\n")
	fmt.Fprintf(w, "______ | _______________ | __________ | _________\n")
	remaining := params.InitialInventory
	for i, shares := range result.Schedule {
		remaining -= shares
		_, _ = p.Fprintf(w, "%6d | %15.0f | %9.2f%% | %9.0f\n",
			i+1, shares, 100*shares/params.InitialInventory, remaining)
	}

	fmt.Fprintf(w, "\nCost breakdown:\n")
	_, _ = p.Fprintf(w, "  Impact: $%.2f (%.1f%%)\n", result.Cost.Impact, result.Cost.ImpactPct())
	_, _ = p.Fprintf(w, "  Spread: $%.2f (%.1f%%)\n", result.Cost.Spread, result.Cost.SpreadPct())
	_, _ = p.Fprintf(w, "  Risk:   $%.2f (%.1f%%)\n", result.Cost.Risk, result.Cost.RiskPct())
	_, _ = p.Fprintf(w, "  Total:  $%.2f\n", result.Cost.Total)

	// ImprovementVsTWAP is a fraction; render it as a percentage.
	fmt.Fprintf(w, "\nImprovement vs TWAP: %.2f%%\n", 100*result.ImprovementVsTWAP)
	fmt.Fprintf(w, "Status: %s (feasible: %t, generations: %d, evaluations: %d, seed: %d)\n",
		result.Status, result.Feasible, result.Generations, result.Evaluations, result.Seed)
}

// PrettyFormatExperiment writes the Monte Carlo aggregate table.
func PrettyFormatExperiment(w io.Writer, ticker string, exp montecarlo.Experiment) {
	p := message.NewPrinter(language.English)

	fmt.Fprintf(w, "--- Monte Carlo experiment for %s ---\n", ticker)
	fmt.Fprintf(w, "Scenarios: %d (feasible: %d)\n\n", exp.Summary.Scenarios, exp.Summary.FeasibleCount)

	fmt.Fprintf(w, "Scenario | Total Cost | Improvement | Status\n")
	fmt.Fprintf(w, "________ | __________ | ___________ | ______\n")
	for _, sr := range exp.Results {
		_, _ = p.Fprintf(w, "%8d | $%9.2f | %10.2f%% | %s\n",
			sr.ID, sr.Result.Cost.Total, 100*sr.Result.ImprovementVsTWAP, sr.Result.Status)
	}

	fmt.Fprintf(w, "\nCost distribution:\n")
	_, _ = p.Fprintf(w, "  Mean:   $%.2f +/- $%.2f (cv %.3f)\n",
		exp.Summary.MeanCost, exp.Summary.StdCost, exp.Summary.CostVariation)
	_, _ = p.Fprintf(w, "  Median: $%.2f\n", exp.Summary.MedianCost)
	_, _ = p.Fprintf(w, "  Range:  $%.2f - $%.2f\n", exp.Summary.MinCost, exp.Summary.MaxCost)
	fmt.Fprintf(w, "  Mean improvement vs TWAP: %.2f%%\n", 100*exp.Summary.MeanImprovement)
}

// CsvFormat writes the schedule in comma-separated value format.
func CsvFormat(w io.Writer, params costmodel.Parameters, result solver.Result) {
	fmt.Fprintf(w, `"period","shares","pct_of_total","remaining"`)
	fmt.Fprintf(w, "\n")
	remaining := params.InitialInventory
	for i, shares := range result.Schedule {
		remaining -= shares
		fmt.Fprintf(w, `"%d","%.2f","%.4f","%.2f"`,
			i+1, shares, 100*shares/params.InitialInventory, remaining)
		fmt.Fprintf(w, "\n")
	}
}

// CsvFormatExperiment writes per-scenario costs in comma-separated value
// format.
func CsvFormatExperiment(w io.Writer, exp montecarlo.Experiment) {
	fmt.Fprintf(w, `"scenario","total_cost","impact_cost","spread_cost","risk_cost","improvement_vs_twap","status"`)
	fmt.Fprintf(w, "\n")
	for _, sr := range exp.Results {
		fmt.Fprintf(w, `"%d","%.2f","%.2f","%.2f","%.2f","%.2f","%s"`,
			sr.ID, sr.Result.Cost.Total, sr.Result.Cost.Impact, sr.Result.Cost.Spread,
			sr.Result.Cost.Risk, 100*sr.Result.ImprovementVsTWAP, sr.Result.Status)
		fmt.Fprintf(w, "\n")
	}
}

// JSONFormat writes any result as indented JSON.
func JSONFormat(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
