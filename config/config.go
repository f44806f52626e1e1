// Package config provides configuration types and utilities for the agent gateway.
// This file contains the main unified configuration entry point.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// MAIN UNIFIED CONFIGURATION
// ============================================================================

// Config represents the complete gateway configuration.
// A single YAML file is the entry point for all configuration.
type Config struct {
	// Version and metadata
	Version     string `yaml:"version,omitempty"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`

	// Provider HTTP server
	Server ServerConfig `yaml:"server,omitempty"`

	// Upstream execution engine
	Engine EngineConfig `yaml:"engine,omitempty"`

	// Shared SQL storage (credentials + conversation history)
	Storage StorageConfig `yaml:"storage,omitempty"`

	// Wrapper cache behavior
	Cache CacheConfig `yaml:"cache,omitempty"`

	// Agents enabled on this gateway; empty means all registered agents
	Agents []string `yaml:"agents,omitempty"`
}

// SetDefaults sets defaults on all sections
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Engine.SetDefaults()
	c.Storage.SetDefaults()
	c.Cache.SetDefaults()
}

// Validate validates all sections
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine validation failed: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage validation failed: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache validation failed: %w", err)
	}
	return nil
}

// ============================================================================
// LOADING
// ============================================================================

// Load reads a YAML config file, expands environment variables in every
// string value, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses raw YAML config bytes with env expansion
func Parse(data []byte) (*Config, error) {
	// Unmarshal into a generic structure first so env expansion can run
	// over every string value while preserving types.
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expanded := ExpandEnvVarsInData(raw)

	normalized, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(normalized, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a config with all defaults applied and no agents enabled
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}
