// Package space normalizes heterogeneous parameter declarations into a
// uniform, immutable set of sampling distributions.
package space

import (
	"errors"
	"fmt"
	"sort"

	"github.com/QuantTune-Labs/optimizer-core/pkg/logger"
)

// ErrInvalidParameterSpec indicates a malformed parameter declaration.
// It is fatal at normalization time: a study must not start with it.
var ErrInvalidParameterSpec = errors.New("invalid parameter spec")

// Param is a named raw parameter declaration, used when declaration order matters
type Param struct {
	Name  string
	Value any
}

// Space is an immutable mapping from parameter name to its distribution.
// Declaration order is preserved for deterministic reporting.
type Space struct {
	names []string
	dists map[string]Distribution
}

// Normalize converts a raw declaration mapping into a Space. Values are
// either a plain sequence (categorical), a range descriptor map with
// kind/low/high/step/log keys, or an already-normalized Distribution
// (passed through unchanged, making normalization idempotent).
// Names are sorted for determinism; use NormalizeOrdered to keep a
// caller-defined order.
func Normalize(raw map[string]any) (*Space, error) {
	params := make([]Param, 0, len(raw))
	for name, value := range raw {
		params = append(params, Param{Name: name, Value: value})
	}
	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })
	return NormalizeOrdered(params)
}

// NormalizeOrdered converts an ordered raw declaration list into a Space
func NormalizeOrdered(params []Param) (*Space, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("parameter space is empty: %w", ErrInvalidParameterSpec)
	}

	s := &Space{
		names: make([]string, 0, len(params)),
		dists: make(map[string]Distribution, len(params)),
	}

	for _, p := range params {
		if p.Name == "" {
			return nil, fmt.Errorf("parameter name cannot be empty: %w", ErrInvalidParameterSpec)
		}
		if _, exists := s.dists[p.Name]; exists {
			return nil, fmt.Errorf("duplicate parameter %q: %w", p.Name, ErrInvalidParameterSpec)
		}

		dist, err := normalizeDeclaration(p.Name, p.Value)
		if err != nil {
			return nil, err
		}

		s.names = append(s.names, p.Name)
		s.dists[p.Name] = dist
	}

	return s, nil
}

// normalizeDeclaration converts one raw declaration into a Distribution
func normalizeDeclaration(name string, value any) (Distribution, error) {
	switch v := value.(type) {
	case Distribution:
		// Already normalized
		if err := v.validate(name); err != nil {
			return Distribution{}, err
		}
		return v, nil
	case []any:
		return normalizeCategorical(name, v)
	case map[string]any:
		return normalizeRange(name, v)
	default:
		return Distribution{}, fmt.Errorf(
			"parameter %q: expected a sequence or a range descriptor, got %T: %w",
			name, value, ErrInvalidParameterSpec)
	}
}

func normalizeCategorical(name string, choices []any) (Distribution, error) {
	if len(choices) == 0 {
		return Distribution{}, fmt.Errorf(
			"parameter %q: categorical choices cannot be empty: %w", name, ErrInvalidParameterSpec)
	}
	out := make([]any, len(choices))
	copy(out, choices)
	return Distribution{Kind: KindCategorical, Choices: out}, nil
}

func normalizeRange(name string, desc map[string]any) (Distribution, error) {
	kind, _ := stringField(desc, "kind")
	if kind == "" {
		kind, _ = stringField(desc, "type")
	}
	if kind == "" {
		kind = string(KindFloat)
	}

	// Explicit categorical descriptor: {kind: categorical, choices: [...]}
	if kind == string(KindCategorical) {
		choices, ok := desc["choices"].([]any)
		if !ok {
			return Distribution{}, fmt.Errorf(
				"parameter %q: categorical descriptor requires 'choices': %w", name, ErrInvalidParameterSpec)
		}
		return normalizeCategorical(name, choices)
	}

	low, okLow := floatField(desc, "low")
	high, okHigh := floatField(desc, "high")
	if !okLow || !okHigh {
		return Distribution{}, fmt.Errorf(
			"parameter %q: range descriptor requires 'low' and 'high': %w", name, ErrInvalidParameterSpec)
	}

	step, hasStep := floatField(desc, "step")
	log, _ := desc["log"].(bool)

	switch kind {
	case string(KindInt):
		dist := Distribution{
			Kind: KindInt,
			// int bounds and step are coerced to integers
			Low:  float64(int64(low)),
			High: float64(int64(high)),
			Step: 1,
			Log:  log,
		}
		if hasStep {
			dist.Step = float64(int64(step))
		}
		if err := dist.validate(name); err != nil {
			return Distribution{}, err
		}
		return dist, nil
	case string(KindFloat):
		dist := Distribution{Kind: KindFloat, Low: low, High: high, Log: log}
		if hasStep {
			dist.Step = step
		}
		if err := dist.validate(name); err != nil {
			return Distribution{}, err
		}
		return dist, nil
	default:
		// Unknown kind degrades to a float range over the declared bounds.
		// This mirrors the original engine; the warning is the only trace.
		logger.Warn("unknown parameter kind, falling back to float",
			"parameter", name, "kind", kind)
		dist := Distribution{Kind: KindFloat, Low: low, High: high}
		if err := dist.validate(name); err != nil {
			return Distribution{}, err
		}
		return dist, nil
	}
}

// Names returns the parameter names in declaration order
func (s *Space) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of parameters in the space
func (s *Space) Len() int {
	return len(s.names)
}

// Distribution returns the distribution for the named parameter
func (s *Space) Distribution(name string) (Distribution, bool) {
	d, ok := s.dists[name]
	return d, ok
}

// Raw returns the space as a raw declaration mapping of normalized
// distributions. Normalize(s.Raw()) reproduces an equivalent space.
func (s *Space) Raw() map[string]any {
	out := make(map[string]any, len(s.dists))
	for name, d := range s.dists {
		out[name] = d
	}
	return out
}

// CoerceAssignment converts parameter values that lost their concrete type
// in transit (JSON numbers decode as float64) back to the declared kind.
// Unknown parameter names are dropped.
func (s *Space) CoerceAssignment(assignment map[string]any) map[string]any {
	out := make(map[string]any, len(assignment))
	for name, value := range assignment {
		dist, ok := s.dists[name]
		if !ok {
			continue
		}
		out[name] = dist.coerce(value)
	}
	return out
}

// stringField reads a string-valued key from a descriptor map
func stringField(desc map[string]any, key string) (string, bool) {
	v, ok := desc[key]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// floatField reads a numeric key from a descriptor map, accepting the
// integer and float types YAML and JSON decoders produce
func floatField(desc map[string]any, key string) (float64, bool) {
	v, ok := desc[key]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
