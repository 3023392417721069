package store

import (
	"context"
	"testing"

	"optexec/internal/config"
	"optexec/internal/costmodel"
	"optexec/internal/solver"
)

func openTestStore(t *testing.T) *RunStore {
	t.Helper()

	s, err := NewSQLite(config.DatabaseConfig{InMemory: true})
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	rs, err := NewRunStore(s.DB(), nil)
	if err != nil {
		t.Fatalf("NewRunStore() error = %v", err)
	}
	return rs
}

func testResult() (costmodel.Parameters, solver.Result) {
	params := costmodel.Parameters{
		InitialInventory:  100000,
		Horizon:           1,
		Periods:           4,
		ImpactCoefficient: 2e-7,
		ImpactExponent:    0.67,
		PermanentFraction: 0.4,
		DecayRate:         0.5,
		SpreadBps:         1,
		RiskAversion:      1e-6,
		Volatility:        0.0348,
		InitialPrice:      7.92,
		MaxTrade:          40000,
	}
	result := solver.Result{
		Schedule:          []float64{40000, 30000, 20000, 10000},
		Cost:              costmodel.Breakdown{Impact: 300, Spread: 79.2, Risk: 1.5, Total: 380.7},
		ImprovementVsTWAP: 3.5,
		Feasible:          true,
		Status:            solver.StatusConverged,
		Generations:       120,
		Evaluations:       7260,
		Seed:              42,
	}
	return params, result
}

func TestSaveAndListRuns(t *testing.T) {
	rs := openTestStore(t)
	params, result := testResult()

	id, err := rs.SaveRun(context.Background(), "ABEV3", params, result)
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if id <= 0 {
		t.Errorf("SaveRun() id = %d, want positive", id)
	}

	records, err := rs.ListRuns(context.Background(), "ABEV3", 10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(ListRuns()) = %d, want 1", len(records))
	}

	rec := records[0]
	if rec.Ticker != "ABEV3" {
		t.Errorf("Ticker = %q, want ABEV3", rec.Ticker)
	}
	if rec.Cost.Total != result.Cost.Total {
		t.Errorf("Cost.Total = %v, want %v", rec.Cost.Total, result.Cost.Total)
	}
	if !rec.Feasible {
		t.Error("Feasible = false, want true")
	}
	if rec.Parameters.InitialInventory != params.InitialInventory {
		t.Errorf("Parameters.InitialInventory = %v, want %v",
			rec.Parameters.InitialInventory, params.InitialInventory)
	}
	if len(rec.Schedule) != len(result.Schedule) {
		t.Fatalf("len(Schedule) = %d, want %d", len(rec.Schedule), len(result.Schedule))
	}
	for i := range result.Schedule {
		if rec.Schedule[i] != result.Schedule[i] {
			t.Errorf("Schedule[%d] = %v, want %v", i, rec.Schedule[i], result.Schedule[i])
		}
	}
}

func TestListRunsFiltersAndOrders(t *testing.T) {
	rs := openTestStore(t)
	params, result := testResult()

	if _, err := rs.SaveRun(context.Background(), "ABEV3", params, result); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	result.Seed = 43
	if _, err := rs.SaveRun(context.Background(), "ABEV3", params, result); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if _, err := rs.SaveRun(context.Background(), "PETR4", params, result); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	records, err := rs.ListRuns(context.Background(), "ABEV3", 10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(ListRuns(ABEV3)) = %d, want 2", len(records))
	}
	if records[0].Seed != 43 {
		t.Errorf("newest run seed = %d, want 43", records[0].Seed)
	}

	all, err := rs.ListRuns(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(ListRuns(all)) = %d, want 3", len(all))
	}
}

func TestSaveExperiment(t *testing.T) {
	rs := openTestStore(t)

	id, err := rs.SaveExperiment(context.Background(), ExperimentRecord{
		Ticker:          "ABEV3",
		Scenarios:       20,
		MeanCost:        420.5,
		StdCost:         12.3,
		MinCost:         401.2,
		MaxCost:         455.9,
		MedianCost:      419.0,
		CostVariation:   0.029,
		MeanImprovement: 2.8,
	})
	if err != nil {
		t.Fatalf("SaveExperiment() error = %v", err)
	}
	if id <= 0 {
		t.Errorf("SaveExperiment() id = %d, want positive", id)
	}
}

func TestNewRunStoreRequiresDB(t *testing.T) {
	if _, err := NewRunStore(nil, nil); err == nil {
		t.Error("NewRunStore() accepted nil database handle")
	}
}
