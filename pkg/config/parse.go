package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseConfigYAML parses a Config from YAML bytes, applies defaults, and
// validates it. This is used when the config arrives as payload rather than
// via the filesystem.
func ParseConfigYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	applyConfigDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ParseStudySpecYAML parses a StudySpec from YAML bytes and validates it.
// This is the entry point for specs submitted over the API.
func ParseStudySpecYAML(data []byte) (*StudySpec, error) {
	var spec StudySpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse study spec yaml: %w", err)
	}

	if err := validateStudySpec(&spec); err != nil {
		return nil, fmt.Errorf("invalid study spec: %w", err)
	}

	return &spec, nil
}

// ParseStudySpecYAMLString parses a StudySpec from a YAML string
func ParseStudySpecYAMLString(yamlText string) (*StudySpec, error) {
	return ParseStudySpecYAML([]byte(yamlText))
}

// applyConfigDefaults fills the zero-valued fields of a daemon config
func applyConfigDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./studies"
	}
	if cfg.Defaults.Sampler == "" {
		cfg.Defaults.Sampler = "tpe"
	}
	if cfg.Defaults.Pruner == "" {
		cfg.Defaults.Pruner = "median"
	}
	if cfg.Defaults.Concurrency <= 0 {
		cfg.Defaults.Concurrency = 4
	}
	if cfg.Webhook != nil && cfg.Webhook.MaxRetries <= 0 {
		cfg.Webhook.MaxRetries = 3
	}
}
