// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file at path. If path is empty it
// searches the default locations ("opentune.yaml", "config.yaml"); when no
// file exists the built-in defaults are used. Environment overrides apply
// after the file, flag overrides are the caller's job.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		for _, candidate := range []string{"opentune.yaml", "config.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments adjust settings without
// touching the config file. OPENTUNE_* variables win over the file.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("OPENTUNE_DEBUG"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Debug = b
		}
	}
	if val, ok := os.LookupEnv("OPENTUNE_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("OPENTUNE_METER_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Meter.Enabled = b
		}
	}
	if val, ok := os.LookupEnv("OPENTUNE_METER_ADDR"); ok {
		c.Meter.Addr = val
	}
	if val, ok := os.LookupEnv("OPENTUNE_METER_TRANSPORT"); ok {
		c.Meter.Transport = val
	}
	if val, ok := os.LookupEnv("OPENTUNE_PROJECT_DIR"); ok {
		c.Project.Dir = val
	}
}
