package sampler

import (
	"math"
	"testing"

	"github.com/QuantTune-Labs/optimizer-core/internal/space"
	"github.com/QuantTune-Labs/optimizer-core/internal/study"
)

func testSpace(t *testing.T) *space.Space {
	t.Helper()
	s, err := space.Normalize(map[string]any{
		"x":       map[string]any{"kind": "float", "low": 0.0, "high": 10.0},
		"period":  map[string]any{"kind": "int", "low": 10, "high": 103, "step": 7},
		"ma_type": []any{"sma", "ema", "wma"},
	})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	return s
}

func assertInDomain(t *testing.T, sp *space.Space, a study.Assignment) {
	t.Helper()
	for _, name := range sp.Names() {
		v, ok := a[name]
		if !ok {
			t.Fatalf("Assignment missing parameter %s", name)
		}
		dist, _ := sp.Distribution(name)
		switch dist.Kind {
		case space.KindCategorical:
			found := false
			for _, c := range dist.Choices {
				if space.ValuesEqual(c, v) {
					found = true
				}
			}
			if !found {
				t.Fatalf("%s = %v outside declared choices", name, v)
			}
		case space.KindInt:
			iv, ok := v.(int64)
			if !ok {
				t.Fatalf("%s = %v (%T), want int64", name, v, v)
			}
			if iv < int64(dist.Low) || iv > int64(dist.High) {
				t.Fatalf("%s = %d out of [%v, %v]", name, iv, dist.Low, dist.High)
			}
			if dist.Step > 0 && (iv-int64(dist.Low))%int64(dist.Step) != 0 {
				t.Fatalf("%s = %d off the step grid", name, iv)
			}
		case space.KindFloat:
			fv, ok := v.(float64)
			if !ok {
				t.Fatalf("%s = %v (%T), want float64", name, v, v)
			}
			if fv < dist.Low || fv > dist.High {
				t.Fatalf("%s = %f out of [%v, %v]", name, fv, dist.Low, dist.High)
			}
		}
	}
}

func TestRandomStaysInDomain(t *testing.T) {
	sp := testSpace(t)
	r := NewRandom(42)

	for i := 0; i < 200; i++ {
		a, err := r.Suggest(sp, study.Maximize, nil)
		if err != nil {
			t.Fatalf("Suggest failed: %v", err)
		}
		assertInDomain(t, sp, a)
	}
}

func TestTPEStartupIsRandom(t *testing.T) {
	sp := testSpace(t)
	tpe := NewTPE(TPEOptions{Seed: 42, StartupTrials: 10})

	// Below the startup count every proposal must still be valid
	history := makeHistory(5, func(i int) float64 { return float64(i) })
	for i := 0; i < 50; i++ {
		a, err := tpe.Suggest(sp, study.Maximize, history)
		if err != nil {
			t.Fatalf("Suggest failed: %v", err)
		}
		assertInDomain(t, sp, a)
	}
}

func TestTPEModeledSuggestionsStayInDomain(t *testing.T) {
	sp := testSpace(t)
	tpe := NewTPE(TPEOptions{Seed: 42, StartupTrials: 5})

	history := makeHistory(30, func(i int) float64 { return float64(i % 7) })
	for i := 0; i < 100; i++ {
		a, err := tpe.Suggest(sp, study.Maximize, history)
		if err != nil {
			t.Fatalf("Suggest failed: %v", err)
		}
		assertInDomain(t, sp, a)
	}
}

func TestTPEIgnoresFailedTrials(t *testing.T) {
	sp := testSpace(t)
	tpe := NewTPE(TPEOptions{Seed: 42, StartupTrials: 5})

	// A history of failures only must behave like the startup phase
	history := make([]*study.Trial, 20)
	for i := range history {
		history[i] = &study.Trial{
			Number:     i,
			Assignment: study.Assignment{"x": 5.0, "period": int64(10), "ma_type": "sma"},
			State:      study.StateFailed,
			Error:      "boom",
		}
	}
	a, err := tpe.Suggest(sp, study.Maximize, history)
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	assertInDomain(t, sp, a)
}

func TestTPEConcentratesNearOptimum(t *testing.T) {
	sp, err := space.Normalize(map[string]any{
		"x": map[string]any{"kind": "float", "low": 0.0, "high": 10.0},
		"y": map[string]any{"kind": "float", "low": 0.0, "high": 10.0},
	})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	// Maximize -(x-5)^2 - (y-3)^2; within 30 trials (10 random, 20 modeled)
	// the best assignment should land within 1 of the optimum at (5, 3).
	// Sampling is stochastic, so the bound must hold across a set of seeds
	// rather than for every individual one.
	score := func(a study.Assignment) float64 {
		x := a["x"].(float64)
		y := a["y"].(float64)
		return -(x-5)*(x-5) - (y-3)*(y-3)
	}

	converged := 0
	for _, seed := range []int64{1, 7, 42} {
		tpe := NewTPE(TPEOptions{Seed: seed, StartupTrials: 10})
		var history []*study.Trial
		for i := 0; i < 30; i++ {
			a, err := tpe.Suggest(sp, study.Maximize, history)
			if err != nil {
				t.Fatalf("Suggest failed: %v", err)
			}
			v := score(a)
			history = append(history, &study.Trial{
				Number:     i,
				Assignment: a,
				Value:      &v,
				State:      study.StateComplete,
			})
		}

		best := history[0]
		for _, tr := range history {
			if *tr.Value > *best.Value {
				best = tr
			}
		}
		bx := best.Assignment["x"].(float64)
		by := best.Assignment["y"].(float64)
		if math.Abs(bx-5) <= 1 && math.Abs(by-3) <= 1 {
			converged++
		} else {
			t.Logf("Seed %d: best (%f, %f) outside the unit box around (5, 3)", seed, bx, by)
		}
	}
	if converged == 0 {
		t.Error("No seed located the optimum within 30 trials")
	}
}

func TestFactoryFallsBackToTPE(t *testing.T) {
	tests := []struct {
		name     string
		arg      string
		wantName string
	}{
		{"Random", "random", "random"},
		{"TPE", "tpe", "tpe"},
		{"Empty defaults to TPE", "", "tpe"},
		{"Unknown falls back to TPE", "simulated-annealing", "tpe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.arg, 42, 0)
			if s.Name() != tt.wantName {
				t.Errorf("New(%q).Name() = %s, want %s", tt.arg, s.Name(), tt.wantName)
			}
		})
	}
}

func TestFactoryThreadsStartupTrials(t *testing.T) {
	tpe, ok := New("tpe", 42, 3).(*TPE)
	if !ok {
		t.Fatal("Expected a *TPE from the factory")
	}
	if tpe.startup != 3 {
		t.Errorf("startup = %d, want 3", tpe.startup)
	}

	// Zero keeps the default
	tpe = New("tpe", 42, 0).(*TPE)
	if tpe.startup != defaultStartupTrials {
		t.Errorf("startup = %d, want the default %d", tpe.startup, defaultStartupTrials)
	}
}

// makeHistory builds n COMPLETE trials over the test space with values
// produced by f
func makeHistory(n int, f func(i int) float64) []*study.Trial {
	out := make([]*study.Trial, n)
	for i := range out {
		v := f(i)
		out[i] = &study.Trial{
			Number: i,
			Assignment: study.Assignment{
				"x":       float64(i%10) + 0.5,
				"period":  int64(10 + 7*(i%13)),
				"ma_type": []string{"sma", "ema", "wma"}[i%3],
			},
			Value: &v,
			State: study.StateComplete,
		}
	}
	return out
}
