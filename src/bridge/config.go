package bridge

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// RedisConfig holds connection settings for the Redis pub/sub bridge.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	Prefix   string `envconfig:"REDIS_WS_PREFIX" default:"sirsi:realtime:"`
}

// DefaultRedisConfig returns a RedisConfig with default values.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "sirsi:realtime:",
	}
}

// RedisConfigFromEnv loads Redis configuration from environment
// variables, falling back to defaults for missing values.
func RedisConfigFromEnv() (*RedisConfig, error) {
	cfg := &RedisConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing redis config: %w", err)
	}
	return cfg, nil
}
