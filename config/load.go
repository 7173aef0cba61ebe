package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AltairaLabs/PoseKit/errors"
)

const component = "config"

// Load reads, validates and decodes the configuration file at path, then
// applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(component, "load", fmt.Errorf("failed to read config file: %w", err))
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.New(component, "load", err).WithDetails(map[string]any{"path": path})
	}
	return cfg, nil
}

// Parse validates and decodes YAML configuration data.
func Parse(data []byte) (*Config, error) {
	if err := Validate(data); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}
