// Package config defines the YAML configuration surface of the optimizer:
// the daemon config and the study spec submitted per search job.
package config

import (
	"fmt"
	"os"
)

// LoadConfig loads and parses a daemon configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadStudySpec loads and parses a study spec file
func LoadStudySpec(path string) (*StudySpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read study spec file %s: %w", path, err)
	}
	spec, err := ParseStudySpecYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse study spec file %s: %w", path, err)
	}
	return spec, nil
}

// validateConfig performs validation on the daemon configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}

	if cfg.Webhook != nil {
		if cfg.Webhook.URL == "" {
			return fmt.Errorf("webhook url cannot be empty when webhook is configured")
		}
		if _, err := cfg.Webhook.GetTimeout(); err != nil {
			return fmt.Errorf("invalid webhook timeout %s: %w", cfg.Webhook.Timeout, err)
		}
	}

	return nil
}

// validateStudySpec performs validation on a study spec
func validateStudySpec(spec *StudySpec) error {
	if spec.Direction != "" && spec.Direction != "maximize" && spec.Direction != "minimize" {
		return fmt.Errorf("invalid direction: %s (must be maximize or minimize)", spec.Direction)
	}

	if spec.NTrials < 0 {
		return fmt.Errorf("n_trials cannot be negative, got %d", spec.NTrials)
	}
	if spec.Concurrency < 0 {
		return fmt.Errorf("concurrency cannot be negative, got %d", spec.Concurrency)
	}
	if _, err := spec.GetTimeout(); err != nil {
		return fmt.Errorf("invalid timeout %s: %w", spec.Timeout, err)
	}
	if spec.Sampler.StartupTrials < 0 {
		return fmt.Errorf("sampler startup_trials cannot be negative, got %d", spec.Sampler.StartupTrials)
	}
	if spec.Pruner.StartupTrials < 0 || spec.Pruner.WarmupSteps < 0 || spec.Pruner.IntervalSteps < 0 ||
		spec.Pruner.MinResource < 0 || spec.Pruner.ReductionFactor < 0 {
		return fmt.Errorf("pruner tuning fields cannot be negative: %+v", spec.Pruner)
	}

	if len(spec.Params) == 0 {
		return fmt.Errorf("at least one parameter must be declared")
	}
	names := make(map[string]bool)
	for _, p := range spec.Params {
		if p.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if names[p.Name] {
			return fmt.Errorf("duplicate parameter name: %s", p.Name)
		}
		names[p.Name] = true
	}

	switch spec.Objective.Kind {
	case "remote":
		if spec.Objective.URL == "" {
			return fmt.Errorf("remote objective requires a url")
		}
		if _, err := spec.Objective.GetTimeout(); err != nil {
			return fmt.Errorf("invalid objective timeout %s: %w", spec.Objective.Timeout, err)
		}
	case "sphere", "noisy_quadratic":
	case "":
		return fmt.Errorf("objective kind cannot be empty")
	default:
		return fmt.Errorf("unknown objective kind: %s (must be remote, sphere, or noisy_quadratic)", spec.Objective.Kind)
	}

	return nil
}
