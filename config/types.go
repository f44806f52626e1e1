// Package config provides configuration types and utilities for the agent gateway.
// This file contains the component configuration structures.
package config

import (
	"fmt"
)

// ============================================================================
// SERVER CONFIGURATION
// ============================================================================

// ServerConfig contains configuration for the provider HTTP server
type ServerConfig struct {
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port"`
	BaseURL string `yaml:"base_url" json:"base_url"` // Public URL advertised to clients
}

// SetDefaults sets default values for ServerConfig
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.BaseURL == "" {
		c.BaseURL = fmt.Sprintf("http://%s:%d", c.Host, c.Port)
	}
}

// Validate validates ServerConfig
func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// ============================================================================
// ENGINE CONFIGURATION
// ============================================================================

// EngineConfig describes the upstream execution engine (LLM backend)
type EngineConfig struct {
	Type        string  `yaml:"type" json:"type"`   // "openai" (OpenAI-compatible API)
	Model       string  `yaml:"model" json:"model"` // Default model identifier
	APIKey      string  `yaml:"api_key" json:"api_key"`
	Host        string  `yaml:"host" json:"host"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	Timeout     int     `yaml:"timeout" json:"timeout"` // Seconds
}

// SetDefaults sets default values for EngineConfig
func (c *EngineConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "openai"
	}
	if c.Host == "" {
		c.Host = "https://api.openai.com/v1"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 120
	}
}

// Validate validates EngineConfig
func (c *EngineConfig) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("engine type cannot be empty")
	}
	if c.Model == "" {
		return fmt.Errorf("engine model cannot be empty")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", c.Temperature)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	return nil
}

// ============================================================================
// STORAGE CONFIGURATION
// ============================================================================

// StorageConfig describes the shared SQL database used for credentials
// and conversation history
type StorageConfig struct {
	Driver string `yaml:"driver" json:"driver"` // "sqlite3", "postgres", or "mysql"
	DSN    string `yaml:"dsn" json:"dsn"`
}

// SetDefaults sets default values for StorageConfig
func (c *StorageConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite3"
	}
	if c.DSN == "" && c.Driver == "sqlite3" {
		c.DSN = "agentllm.db"
	}
}

// Validate validates StorageConfig
func (c *StorageConfig) Validate() error {
	switch c.Driver {
	case "sqlite3", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("storage dsn cannot be empty")
	}
	return nil
}

// ============================================================================
// CACHE CONFIGURATION
// ============================================================================

// CacheConfig controls the per-user wrapper cache
type CacheConfig struct {
	// MaxWrappers bounds the wrapper cache (LRU eviction).
	// -1 disables eviction entirely.
	MaxWrappers int `yaml:"max_wrappers" json:"max_wrappers"`
}

// SetDefaults sets default values for CacheConfig
func (c *CacheConfig) SetDefaults() {
	if c.MaxWrappers == 0 {
		c.MaxWrappers = 1024
	}
}

// Validate validates CacheConfig
func (c *CacheConfig) Validate() error {
	if c.MaxWrappers < -1 {
		return fmt.Errorf("max_wrappers must be -1, or a positive bound")
	}
	return nil
}
