package utils

import (
	"math"
	"testing"
)

func TestMinMax(t *testing.T) {
	if got := Min(3, 5); got != 3 {
		t.Errorf("Min(3, 5) = %d, want 3", got)
	}
	if got := Max(3, 5); got != 5 {
		t.Errorf("Max(3, 5) = %d, want 5", got)
	}
	if got := Min(2.5, 1.5); got != 1.5 {
		t.Errorf("Min(2.5, 1.5) = %f, want 1.5", got)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name            string
		value, min, max float64
		want            float64
	}{
		{"Below range", -1, 0, 10, 0},
		{"Above range", 11, 0, 10, 10},
		{"In range", 5, 0, 10, 5},
		{"At lower bound", 0, 0, 10, 0},
		{"At upper bound", 10, 0, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.value, tt.min, tt.max); got != tt.want {
				t.Errorf("Clamp(%f, %f, %f) = %f, want %f", tt.value, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"Empty slice", nil, 0},
		{"Single value", []float64{4}, 4},
		{"Multiple values", []float64{1, 2, 3, 4}, 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mean(tt.values); got != tt.want {
				t.Errorf("Mean(%v) = %f, want %f", tt.values, got, tt.want)
			}
		})
	}
}

func TestVarianceAndStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := Variance(values); math.Abs(got-4.0) > 1e-9 {
		t.Errorf("Variance = %f, want 4.0", got)
	}
	if got := StdDev(values); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("StdDev = %f, want 2.0", got)
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	tests := []struct {
		name       string
		percentile float64
		want       float64
	}{
		{"Median", 50, 3},
		{"Minimum", 0, 1},
		{"Maximum", 100, 5},
		{"Interpolated", 25, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percentile(values, tt.percentile); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Percentile(%v, %f) = %f, want %f", values, tt.percentile, got, tt.want)
			}
		})
	}

	if got := Percentile(nil, 50); got != 0 {
		t.Errorf("Percentile(nil, 50) = %f, want 0", got)
	}
}

func TestMedian(t *testing.T) {
	if got := Median([]float64{3, 1, 2}); got != 2 {
		t.Errorf("Median = %f, want 2", got)
	}
	if got := Median([]float64{1, 2, 3, 4}); got != 2.5 {
		t.Errorf("Median = %f, want 2.5", got)
	}
}
