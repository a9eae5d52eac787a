package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/QuantTune-Labs/optimizer-core/internal/space"
)

// Config represents the daemon configuration
type Config struct {
	LogLevel string   `yaml:"log_level"`
	Listen   string   `yaml:"listen"`
	DataDir  string   `yaml:"data_dir"`
	Defaults Defaults `yaml:"defaults"`
	Webhook  *Webhook `yaml:"webhook,omitempty"`
}

// Defaults holds the fallback settings applied to study specs that leave
// them unset
type Defaults struct {
	Sampler     string `yaml:"sampler"`
	Pruner      string `yaml:"pruner"`
	Concurrency int    `yaml:"concurrency"`
}

// Webhook configures the completion-notification endpoint
type Webhook struct {
	URL        string `yaml:"url"`
	Timeout    string `yaml:"timeout"`     // e.g., "5s"
	MaxRetries int    `yaml:"max_retries"`
}

// GetTimeout parses the webhook timeout string to time.Duration
func (w *Webhook) GetTimeout() (time.Duration, error) {
	if w.Timeout == "" {
		return 5 * time.Second, nil
	}
	return time.ParseDuration(w.Timeout)
}

// StudySpec represents one search job: the parameter space, the objective,
// and the budget and strategy settings
type StudySpec struct {
	Name        string      `yaml:"name"`
	Direction   string      `yaml:"direction"`
	Sampler     SamplerSpec `yaml:"sampler"`
	Pruner      PrunerSpec  `yaml:"pruner"`
	NTrials     int         `yaml:"n_trials"`
	Timeout     string      `yaml:"timeout,omitempty"` // e.g., "10m"
	Concurrency int         `yaml:"concurrency"`
	Seed        int64       `yaml:"seed"`
	Objective   Objective   `yaml:"objective"`
	Params      ParamList   `yaml:"params"`
}

// SamplerSpec selects and tunes the sampling strategy. It decodes from either
// a bare name ("random") or a mapping with tuning fields.
type SamplerSpec struct {
	Type          string `yaml:"type"`
	Seed          int64  `yaml:"seed"`           // overrides the study seed when set
	StartupTrials int    `yaml:"startup_trials"` // random trials before the model engages
}

// UnmarshalYAML accepts the scalar shorthand form
func (s *SamplerSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&s.Type)
	}
	type plain SamplerSpec
	return node.Decode((*plain)(s))
}

// PrunerSpec selects and tunes the early-stopping policy. It decodes from
// either a bare name ("median") or a mapping with tuning fields. Zero-valued
// fields fall back to the policy's defaults.
type PrunerSpec struct {
	Type            string `yaml:"type"`
	StartupTrials   int    `yaml:"startup_trials"`
	WarmupSteps     int    `yaml:"warmup_steps"`
	IntervalSteps   int    `yaml:"interval_steps"`
	MinResource     int    `yaml:"min_resource"`
	ReductionFactor int    `yaml:"reduction_factor"`
}

// UnmarshalYAML accepts the scalar shorthand form
func (p *PrunerSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&p.Type)
	}
	type plain PrunerSpec
	return node.Decode((*plain)(p))
}

// Objective selects the scoring backend for a study
type Objective struct {
	Kind    string `yaml:"kind"`              // remote, sphere, or noisy_quadratic
	URL     string `yaml:"url,omitempty"`     // remote evaluator endpoint
	Timeout string `yaml:"timeout,omitempty"` // per-call timeout, e.g., "30s"
}

// GetTimeout parses the study timeout string to time.Duration.
// An empty string means no timeout.
func (s *StudySpec) GetTimeout() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(s.Timeout)
}

// GetObjectiveTimeout parses the per-call objective timeout
func (o *Objective) GetTimeout() (time.Duration, error) {
	if o.Timeout == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(o.Timeout)
}

// ParamList preserves the declaration order of the params mapping, which a
// plain map would lose
type ParamList []space.Param

// UnmarshalYAML decodes the params mapping pairwise so declaration order
// survives
func (p *ParamList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("params must be a mapping of name to declaration")
	}
	out := make([]space.Param, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var name string
		if err := node.Content[i].Decode(&name); err != nil {
			return fmt.Errorf("invalid parameter name: %w", err)
		}
		var value any
		if err := node.Content[i+1].Decode(&value); err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
		out = append(out, space.Param{Name: name, Value: value})
	}
	*p = out
	return nil
}

// MarshalYAML renders the params back as a mapping
func (p ParamList) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, param := range p {
		var key, value yaml.Node
		if err := key.Encode(param.Name); err != nil {
			return nil, err
		}
		if err := value.Encode(param.Value); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &key, &value)
	}
	return node, nil
}
