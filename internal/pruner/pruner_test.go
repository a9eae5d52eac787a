package pruner

import (
	"testing"

	"github.com/QuantTune-Labs/optimizer-core/internal/study"
)

func TestNopNeverPrunes(t *testing.T) {
	p := Nop{}
	obs := study.PruneObservation{
		Direction:      study.Maximize,
		Step:           100,
		Value:          -1e9,
		PeersAtStep:    []float64{1, 2, 3},
		CompletedCount: 100,
	}
	if p.ShouldPrune(obs) {
		t.Error("Nop pruner must never prune")
	}
}

func TestMedianPruner(t *testing.T) {
	p := NewMedian(10, 5, 1)

	tests := []struct {
		name string
		obs  study.PruneObservation
		want bool
	}{
		{
			name: "Inactive below startup trials",
			obs: study.PruneObservation{
				Direction: study.Maximize, Step: 6, Value: -100,
				PeersAtStep: []float64{1, 2, 3}, CompletedCount: 9,
			},
			want: false,
		},
		{
			name: "Inactive during warmup steps",
			obs: study.PruneObservation{
				Direction: study.Maximize, Step: 4, Value: -100,
				PeersAtStep: []float64{1, 2, 3}, CompletedCount: 20,
			},
			want: false,
		},
		{
			name: "No peers at step",
			obs: study.PruneObservation{
				Direction: study.Maximize, Step: 6, Value: -100,
				PeersAtStep: nil, CompletedCount: 20,
			},
			want: false,
		},
		{
			name: "Worse than median under maximize",
			obs: study.PruneObservation{
				Direction: study.Maximize, Step: 6, Value: 1.5,
				PeersAtStep: []float64{1, 2, 3}, CompletedCount: 20,
			},
			want: true,
		},
		{
			name: "At median survives",
			obs: study.PruneObservation{
				Direction: study.Maximize, Step: 6, Value: 2,
				PeersAtStep: []float64{1, 2, 3}, CompletedCount: 20,
			},
			want: false,
		},
		{
			name: "Worse than median under minimize",
			obs: study.PruneObservation{
				Direction: study.Minimize, Step: 6, Value: 2.5,
				PeersAtStep: []float64{1, 2, 3}, CompletedCount: 20,
			},
			want: true,
		},
		{
			name: "Better than median under minimize",
			obs: study.PruneObservation{
				Direction: study.Minimize, Step: 6, Value: 1.5,
				PeersAtStep: []float64{1, 2, 3}, CompletedCount: 20,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ShouldPrune(tt.obs); got != tt.want {
				t.Errorf("ShouldPrune = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMedianPrunerInterval(t *testing.T) {
	p := NewMedian(1, 5, 3)
	base := study.PruneObservation{
		Direction: study.Maximize, Value: -100,
		PeersAtStep: []float64{1, 2, 3}, CompletedCount: 20,
	}

	// Only steps 5, 8, 11, ... are eligible
	for step, want := range map[int]bool{5: true, 6: false, 7: false, 8: true, 11: true} {
		obs := base
		obs.Step = step
		if got := p.ShouldPrune(obs); got != want {
			t.Errorf("Step %d: ShouldPrune = %v, want %v", step, got, want)
		}
	}
}

func TestSuccessiveHalving(t *testing.T) {
	p := NewSuccessiveHalving(1, 4)

	tests := []struct {
		name string
		obs  study.PruneObservation
		want bool
	}{
		{
			name: "Off-rung step never prunes",
			obs: study.PruneObservation{
				Direction: study.Maximize, Step: 2, Value: -100,
				PeersAtStep: []float64{1, 2, 3, 4, 5, 6, 7},
			},
			want: false,
		},
		{
			name: "Cohort smaller than reduction factor survives",
			obs: study.PruneObservation{
				Direction: study.Maximize, Step: 0, Value: -100,
				PeersAtStep: []float64{1, 2},
			},
			want: false,
		},
		{
			name: "Bottom of cohort pruned at rung",
			obs: study.PruneObservation{
				Direction: study.Maximize, Step: 3, Value: 1,
				PeersAtStep: []float64{2, 3, 4, 5, 6, 7, 8},
			},
			want: true,
		},
		{
			name: "Top of cohort survives at rung",
			obs: study.PruneObservation{
				Direction: study.Maximize, Step: 3, Value: 9,
				PeersAtStep: []float64{2, 3, 4, 5, 6, 7, 8},
			},
			want: false,
		},
		{
			name: "Minimize keeps the smallest values",
			obs: study.PruneObservation{
				Direction: study.Minimize, Step: 3, Value: 1,
				PeersAtStep: []float64{2, 3, 4, 5, 6, 7, 8},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ShouldPrune(tt.obs); got != tt.want {
				t.Errorf("ShouldPrune = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSuccessiveHalvingRungAlignment(t *testing.T) {
	p := NewSuccessiveHalving(1, 4)

	// Rungs at resource 1, 4, 16 map to steps 0, 3, 15
	for step, want := range map[int]bool{0: true, 1: false, 3: true, 4: false, 15: true} {
		if got := p.atRung(step + 1); got != want {
			t.Errorf("Step %d: atRung = %v, want %v", step, got, want)
		}
	}
}

func TestFactoryFallsBackToMedian(t *testing.T) {
	tests := []struct {
		name     string
		arg      string
		wantName string
	}{
		{"Nop", "nop", "nop"},
		{"None alias", "none", "nop"},
		{"Median", "median", "median"},
		{"Empty defaults to median", "", "median"},
		{"Halving", "halving", "successive_halving"},
		{"Unknown falls back to median", "hyperband", "median"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.arg, Options{})
			if p.Name() != tt.wantName {
				t.Errorf("New(%q).Name() = %s, want %s", tt.arg, p.Name(), tt.wantName)
			}
		})
	}
}

func TestFactoryThreadsTuning(t *testing.T) {
	// With a two-trial startup and one warm-up step the pruner fires on
	// evidence the defaults (10 trials, 5 steps) would still ignore
	p := New("median", Options{StartupTrials: 2, WarmupSteps: 1, IntervalSteps: 1})
	obs := study.PruneObservation{
		Direction: study.Maximize, Step: 1, Value: -100,
		PeersAtStep: []float64{1, 2, 3}, CompletedCount: 2,
	}
	if !p.ShouldPrune(obs) {
		t.Error("Tuned median pruner should fire below the default thresholds")
	}
	if New("median", Options{}).ShouldPrune(obs) {
		t.Error("Default median pruner must stay inactive below 10 completed trials")
	}

	h := New("halving", Options{MinResource: 2, ReductionFactor: 2}).(*SuccessiveHalving)
	if h.minResource != 2 || h.reductionFactor != 2 {
		t.Errorf("Halving tuning not threaded: %+v", h)
	}
}
