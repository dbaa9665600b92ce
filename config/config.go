// Package config handles gateway configuration loading and validation.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all realtime gateway configuration.
type Config struct {
	// Server configuration
	Addr string `envconfig:"GATEWAY_ADDR" default:":8080"`

	// Token verification
	JWTSecret   string `envconfig:"JWT_SECRET"`
	JWTIssuer   string `envconfig:"JWT_ISSUER" default:"sirsinexus"`
	JWTAudience string `envconfig:"JWT_AUDIENCE" default:"realtime"`

	// WebSocket tuning
	ReadBufferSize  int `envconfig:"WS_READ_BUFFER" default:"1024"`
	WriteBufferSize int `envconfig:"WS_WRITE_BUFFER" default:"1024"`
	SendQueueSize   int `envconfig:"WS_SEND_QUEUE" default:"256"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks that required settings are present and sane.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.SendQueueSize < 1 {
		return fmt.Errorf("WS_SEND_QUEUE must be positive")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
	return nil
}
