package importance

import (
	"math"
	"testing"

	"github.com/QuantTune-Labs/optimizer-core/internal/space"
	"github.com/QuantTune-Labs/optimizer-core/internal/study"
	"github.com/QuantTune-Labs/optimizer-core/pkg/utils"
)

func makeTrials(n int, f func(i int) (study.Assignment, float64)) []*study.Trial {
	out := make([]*study.Trial, n)
	for i := range out {
		a, v := f(i)
		value := v
		out[i] = &study.Trial{Number: i, Assignment: a, Value: &value, State: study.StateComplete}
	}
	return out
}

func TestEstimateRanksDominantParameterFirst(t *testing.T) {
	sp, err := space.Normalize(map[string]any{
		"x": map[string]any{"kind": "float", "low": 0.0, "high": 10.0},
		"y": map[string]any{"kind": "float", "low": 0.0, "high": 10.0},
	})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	rng := utils.NewRandSource(42)
	trials := makeTrials(100, func(i int) (study.Assignment, float64) {
		x := rng.UniformFloat64(0, 10)
		y := rng.UniformFloat64(0, 10)
		// The objective depends on x almost exclusively
		return study.Assignment{"x": x, "y": y}, 10*x + 0.01*y
	})

	report := NewEstimator().Estimate(sp, trials)
	if len(report) != 2 {
		t.Fatalf("Report has %d entries, want 2", len(report))
	}
	if report["x"] <= report["y"] {
		t.Errorf("x (%f) should dominate y (%f)", report["x"], report["y"])
	}

	ranked := report.Ranked()
	if ranked[0].Name != "x" {
		t.Errorf("Top-ranked parameter = %s, want x", ranked[0].Name)
	}

	sum := 0.0
	for _, score := range report {
		sum += score
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("Scores sum to %f, want 1", sum)
	}
}

func TestEstimateCategoricalParameter(t *testing.T) {
	sp, err := space.Normalize(map[string]any{
		"ma_type": []any{"sma", "ema"},
		"noise":   map[string]any{"kind": "float", "low": 0.0, "high": 1.0},
	})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	rng := utils.NewRandSource(7)
	choices := []string{"sma", "ema"}
	trials := makeTrials(80, func(i int) (study.Assignment, float64) {
		c := choices[i%2]
		base := 0.0
		if c == "ema" {
			base = 100.0
		}
		return study.Assignment{"ma_type": c, "noise": rng.Float64()}, base + rng.Float64()
	})

	report := NewEstimator().Estimate(sp, trials)
	if report["ma_type"] <= report["noise"] {
		t.Errorf("ma_type (%f) should dominate noise (%f)", report["ma_type"], report["noise"])
	}
}

func TestEstimateDegradesGracefully(t *testing.T) {
	sp, err := space.Normalize(map[string]any{
		"x": map[string]any{"kind": "float", "low": 0.0, "high": 10.0},
	})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	tests := []struct {
		name   string
		trials []*study.Trial
	}{
		{"No trials", nil},
		{
			"Single completed trial",
			makeTrials(1, func(int) (study.Assignment, float64) {
				return study.Assignment{"x": 1.0}, 5
			}),
		},
		{
			"Constant objective",
			makeTrials(20, func(i int) (study.Assignment, float64) {
				return study.Assignment{"x": float64(i % 10)}, 3.14
			}),
		},
		{
			"Only failed trials",
			[]*study.Trial{
				{Number: 0, Assignment: study.Assignment{"x": 1.0}, State: study.StateFailed},
				{Number: 1, Assignment: study.Assignment{"x": 2.0}, State: study.StateFailed},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := NewEstimator().Estimate(sp, tt.trials)
			if len(report) != 0 {
				t.Errorf("Expected empty report, got %v", report)
			}
		})
	}
}

func TestEstimateConstantParameterScoresZero(t *testing.T) {
	sp, err := space.Normalize(map[string]any{
		"frozen": map[string]any{"kind": "float", "low": 0.0, "high": 10.0},
		"live":   map[string]any{"kind": "float", "low": 0.0, "high": 10.0},
	})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	trials := makeTrials(40, func(i int) (study.Assignment, float64) {
		live := float64(i % 10)
		return study.Assignment{"frozen": 5.0, "live": live}, live * live
	})

	report := NewEstimator().Estimate(sp, trials)
	if report["frozen"] != 0 {
		t.Errorf("Constant parameter scored %f, want 0", report["frozen"])
	}
	if report["live"] == 0 {
		t.Error("Varying parameter should carry the signal")
	}
}
