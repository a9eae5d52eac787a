package space

import (
	"fmt"
	"math"
	"reflect"

	"github.com/QuantTune-Labs/optimizer-core/pkg/utils"
)

// Kind identifies the type of a parameter distribution
type Kind string

const (
	// KindCategorical is an ordered sequence of admissible discrete values
	KindCategorical Kind = "categorical"
	// KindInt is an integer range with an optional step
	KindInt Kind = "int"
	// KindFloat is a float range with an optional step
	KindFloat Kind = "float"
)

// Distribution describes the admissible domain of a single parameter.
// For KindCategorical only Choices is set; for ranges, Low/High/Step/Log.
type Distribution struct {
	Kind    Kind    `json:"kind"`
	Low     float64 `json:"low,omitempty"`
	High    float64 `json:"high,omitempty"`
	Step    float64 `json:"step,omitempty"`
	Log     bool    `json:"log,omitempty"`
	Choices []any   `json:"choices,omitempty"`
}

// IsNumeric reports whether the distribution is an int or float range
func (d Distribution) IsNumeric() bool {
	return d.Kind == KindInt || d.Kind == KindFloat
}

// validate checks the internal consistency of a distribution
func (d Distribution) validate(name string) error {
	switch d.Kind {
	case KindCategorical:
		if len(d.Choices) == 0 {
			return fmt.Errorf("parameter %q: categorical choices cannot be empty: %w", name, ErrInvalidParameterSpec)
		}
		return nil
	case KindInt, KindFloat:
		if d.Low > d.High {
			return fmt.Errorf("parameter %q: low (%v) must not exceed high (%v): %w",
				name, d.Low, d.High, ErrInvalidParameterSpec)
		}
		if d.Step < 0 {
			return fmt.Errorf("parameter %q: step cannot be negative: %w", name, ErrInvalidParameterSpec)
		}
		if d.Kind == KindInt && d.Step < 1 {
			return fmt.Errorf("parameter %q: int step must be at least 1: %w", name, ErrInvalidParameterSpec)
		}
		if d.Log && d.Low <= 0 {
			return fmt.Errorf("parameter %q: log range requires low > 0: %w", name, ErrInvalidParameterSpec)
		}
		return nil
	default:
		return fmt.Errorf("parameter %q: unknown distribution kind %q: %w", name, d.Kind, ErrInvalidParameterSpec)
	}
}

// Sample draws one value from the distribution
func (d Distribution) Sample(rng *utils.RandSource) any {
	switch d.Kind {
	case KindCategorical:
		return d.Choices[rng.Intn(len(d.Choices))]
	default:
		var v float64
		if d.Low == d.High {
			v = d.Low
		} else if d.Log {
			v = rng.LogUniformFloat64(d.Low, d.High)
		} else {
			v = rng.UniformFloat64(d.Low, d.High)
		}
		return d.quantize(v)
	}
}

// ToUnit maps a numeric parameter value onto [0, 1] using the declared
// scale (linear or log). Categorical distributions are not unit-mapped.
func (d Distribution) ToUnit(value any) (float64, bool) {
	if !d.IsNumeric() {
		return 0, false
	}
	v, ok := toFloat(value)
	if !ok {
		return 0, false
	}
	if d.High == d.Low {
		return 0.5, true
	}
	if d.Log {
		u := (math.Log(v) - math.Log(d.Low)) / (math.Log(d.High) - math.Log(d.Low))
		return utils.Clamp(u, 0, 1), true
	}
	u := (v - d.Low) / (d.High - d.Low)
	return utils.Clamp(u, 0, 1), true
}

// FromUnit maps a unit-interval coordinate back into the parameter domain,
// snapping to the declared step and clamping to [low, high]
func (d Distribution) FromUnit(u float64) any {
	u = utils.Clamp(u, 0, 1)
	var v float64
	if d.High == d.Low {
		v = d.Low
	} else if d.Log {
		v = math.Exp(math.Log(d.Low) + u*(math.Log(d.High)-math.Log(d.Low)))
	} else {
		v = d.Low + u*(d.High-d.Low)
	}
	return d.quantize(v)
}

// quantize snaps a raw draw onto the declared step grid and returns the
// concretely typed value (int64 for int ranges)
func (d Distribution) quantize(v float64) any {
	if d.Step > 0 {
		// Snap to low + k*step, keeping the result inside [low, high]
		k := math.Round((v - d.Low) / d.Step)
		maxK := math.Floor((d.High - d.Low) / d.Step)
		k = utils.Clamp(k, 0, maxK)
		v = d.Low + k*d.Step
	}
	v = utils.Clamp(v, d.Low, d.High)
	if d.Kind == KindInt {
		return int64(math.Round(v))
	}
	return v
}

// coerce restores the declared concrete type for a value that round-tripped
// through a generic decoder
func (d Distribution) coerce(value any) any {
	switch d.Kind {
	case KindInt:
		if f, ok := toFloat(value); ok {
			return int64(math.Round(f))
		}
		return value
	case KindFloat:
		if f, ok := toFloat(value); ok {
			return f
		}
		return value
	default:
		// Match the stored value back to a declared choice so that e.g.
		// a JSON 5.0 compares equal to the int choice 5
		for _, choice := range d.Choices {
			if ValuesEqual(choice, value) {
				return choice
			}
		}
		return value
	}
}

// ValuesEqual compares two values, treating numeric types as equivalent
func ValuesEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	return okA && okB && fa == fb
}
