package constraint

import (
	"math"
	"testing"
)

func TestClip(t *testing.T) {
	pr := NewProjector(40000, 100000)

	tests := []struct {
		name     string
		input    []float64
		expected []float64
	}{
		{"Inside box untouched", []float64{10000, 40000, 0}, []float64{10000, 40000, 0}},
		{"Negative clipped to zero", []float64{-5000, 10000}, []float64{0, 10000}},
		{"Above cap clipped", []float64{50000, 10000}, []float64{40000, 10000}},
		{"Mixed violations", []float64{-1, 40001, 20000}, []float64{0, 40000, 20000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := make([]float64, len(tt.input))
			copy(original, tt.input)

			got := pr.Clip(tt.input)
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Clip()[%d] = %v, expected %v", i, got[i], tt.expected[i])
				}
			}
			// Clip must not mutate its input.
			for i := range tt.input {
				if tt.input[i] != original[i] {
					t.Errorf("Clip mutated input at %d: %v -> %v", i, original[i], tt.input[i])
				}
			}
		})
	}
}

func TestClipInPlace(t *testing.T) {
	pr := NewProjector(40000, 100000)
	v := []float64{-1, 50000, 20000}
	pr.ClipInPlace(v)
	expected := []float64{0, 40000, 20000}
	for i := range v {
		if v[i] != expected[i] {
			t.Errorf("ClipInPlace()[%d] = %v, expected %v", i, v[i], expected[i])
		}
	}
}

func TestPenalty(t *testing.T) {
	pr := NewProjector(40000, 100000)

	if got := pr.Penalty([]float64{40000, 40000, 20000}); got != 0 {
		t.Errorf("penalty of exact liquidation = %v, expected 0", got)
	}

	// 10000 shares short: rho * 10000^2 = 1e6 * 1e8 = 1e14.
	got := pr.Penalty([]float64{40000, 40000, 10000})
	if math.Abs(got-1e14) > 1 {
		t.Errorf("penalty of 10000-share shortfall = %v, expected 1e14", got)
	}

	// Overshooting is penalized identically to undershooting.
	over := pr.Penalty([]float64{40000, 40000, 30000})
	if math.Abs(over-got) > 1 {
		t.Errorf("overshoot penalty %v differs from shortfall penalty %v", over, got)
	}
}

func TestPenaltyDominatesCostScale(t *testing.T) {
	// A one-percent equality violation must dwarf a typical cost magnitude
	// of a few thousand dollars.
	pr := NewProjector(40000, 100000)
	violation := pr.Penalty([]float64{40000, 40000, 19000}) // 1000 shares short
	if violation < 1e6 {
		t.Errorf("penalty %v is too small to dominate the objective", violation)
	}
}

func TestFeasible(t *testing.T) {
	pr := NewProjector(40000, 100000)

	tests := []struct {
		name     string
		schedule []float64
		expected bool
	}{
		{"Exact liquidation", []float64{40000, 40000, 20000}, true},
		{"Within tolerance", []float64{40000, 40000, 20000.05}, true},
		{"Shortfall", []float64{40000, 40000, 10000}, false},
		{"Cap violation", []float64{50000, 40000, 10000}, false},
		{"Negative trade", []float64{-10000, 40000, 40000, 30000}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pr.Feasible(tt.schedule, 1e-6); got != tt.expected {
				t.Errorf("Feasible(%v) = %v, expected %v", tt.schedule, got, tt.expected)
			}
		})
	}
}
