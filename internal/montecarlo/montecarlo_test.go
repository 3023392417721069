package montecarlo

import (
	"context"
	"math"
	"testing"

	"optexec/internal/config"
	"optexec/internal/costmodel"
	"optexec/internal/solver"
)

func baseParams() costmodel.Parameters {
	return costmodel.Parameters{
		InitialInventory:  100000,
		Horizon:           1,
		Periods:           5,
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
}

func quickSolverConfig() solver.Config {
	cfg := solver.DefaultConfig()
	cfg.MaxGenerations = 25
	cfg.StagnationLimit = 15
	cfg.PolishIterations = 20
	return cfg
}

func mcConfig(scenarios int) config.MonteCarloConfig {
	return config.MonteCarloConfig{
		Scenarios:        scenarios,
		VolatilityJitter: 0.10,
		ImpactJitter:     0.10,
		PriceJitter:      0.01,
		Workers:          2,
	}
}

func TestRunDeterministic(t *testing.T) {
	newRunner := func() *Runner {
		r, err := NewRunner(baseParams(), quickSolverConfig(), mcConfig(4), nil)
		if err != nil {
			t.Fatalf("NewRunner() error = %v", err)
		}
		return r
	}

	expA, err := newRunner().Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	expB, err := newRunner().Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if expA.Summary != expB.Summary {
		t.Errorf("identical runs produced different summaries:\n%+v\n%+v", expA.Summary, expB.Summary)
	}
	for i := range expA.Results {
		if expA.Results[i].Result.Cost.Total != expB.Results[i].Result.Cost.Total {
			t.Errorf("scenario %d cost differs between identical runs", expA.Results[i].ID)
		}
	}
}

func TestScenariosStayWithinJitterBounds(t *testing.T) {
	base := baseParams()
	r, err := NewRunner(base, quickSolverConfig(), mcConfig(16), nil)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	seeds := map[int64]bool{}
	for _, sc := range r.scenarios() {
		if sc.Params.ImpactExponent != base.ImpactExponent {
			t.Errorf("scenario %d varied the impact exponent: %v", sc.ID, sc.Params.ImpactExponent)
		}
		if ratio := sc.Params.Volatility / base.Volatility; ratio < 0.9 || ratio > 1.1 {
			t.Errorf("scenario %d volatility ratio %v outside [0.9, 1.1]", sc.ID, ratio)
		}
		if ratio := sc.Params.ImpactCoefficient / base.ImpactCoefficient; ratio < 0.9 || ratio > 1.1 {
			t.Errorf("scenario %d impact ratio %v outside [0.9, 1.1]", sc.ID, ratio)
		}
		if ratio := sc.Params.InitialPrice / base.InitialPrice; ratio < 0.99 || ratio > 1.01 {
			t.Errorf("scenario %d price ratio %v outside [0.99, 1.01]", sc.ID, ratio)
		}
		if seeds[sc.Seed] {
			t.Errorf("scenario %d reuses seed %d", sc.ID, sc.Seed)
		}
		seeds[sc.Seed] = true
	}
}

func TestRunAllScenariosFeasible(t *testing.T) {
	r, err := NewRunner(baseParams(), quickSolverConfig(), mcConfig(4), nil)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	exp, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if exp.Summary.FeasibleCount != exp.Summary.Scenarios {
		t.Errorf("FeasibleCount = %d, want %d", exp.Summary.FeasibleCount, exp.Summary.Scenarios)
	}
	if exp.Summary.MeanImprovement < 0 {
		t.Errorf("MeanImprovement = %v, want >= 0", exp.Summary.MeanImprovement)
	}
}

func TestSummarize(t *testing.T) {
	results := []ScenarioResult{
		{Result: solver.Result{Cost: costmodel.Breakdown{Total: 100}, ImprovementVsTWAP: 1, Feasible: true}},
		{Result: solver.Result{Cost: costmodel.Breakdown{Total: 200}, ImprovementVsTWAP: 2, Feasible: true}},
		{Result: solver.Result{Cost: costmodel.Breakdown{Total: 300}, ImprovementVsTWAP: 3, Feasible: false}},
	}

	s := summarize(results)
	if s.Scenarios != 3 {
		t.Errorf("Scenarios = %d, want 3", s.Scenarios)
	}
	if s.MeanCost != 200 {
		t.Errorf("MeanCost = %v, want 200", s.MeanCost)
	}
	if s.MedianCost != 200 {
		t.Errorf("MedianCost = %v, want 200", s.MedianCost)
	}
	if s.MinCost != 100 || s.MaxCost != 300 {
		t.Errorf("cost range = [%v, %v], want [100, 300]", s.MinCost, s.MaxCost)
	}
	wantStd := math.Sqrt(20000.0 / 3.0)
	if math.Abs(s.StdCost-wantStd) > 1e-9 {
		t.Errorf("StdCost = %v, want %v", s.StdCost, wantStd)
	}
	if math.Abs(s.CostVariation-wantStd/200) > 1e-12 {
		t.Errorf("CostVariation = %v, want %v", s.CostVariation, wantStd/200)
	}
	if s.MeanImprovement != 2 {
		t.Errorf("MeanImprovement = %v, want 2", s.MeanImprovement)
	}
	if s.FeasibleCount != 2 {
		t.Errorf("FeasibleCount = %d, want 2", s.FeasibleCount)
	}
}

func TestNewRunnerValidation(t *testing.T) {
	if _, err := NewRunner(baseParams(), quickSolverConfig(), mcConfig(0), nil); err == nil {
		t.Error("NewRunner() accepted zero scenarios")
	}

	bad := baseParams()
	bad.Periods = 0
	if _, err := NewRunner(bad, quickSolverConfig(), mcConfig(4), nil); err == nil {
		t.Error("NewRunner() accepted invalid problem")
	}
}
