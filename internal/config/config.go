// Package config loads and validates process startup settings (§6).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"

	"chordring/internal/logging"
)

// Config is every environment-driven knob a chord node reads once at
// startup (§6 "Configuration").
type Config struct {
	NodeIP    string `env:"NODE_IP" env-default:"127.0.0.1" validate:"required"`
	NodePort  int    `env:"NODE_PORT" env-default:"5000" validate:"min=1,max=65535"`
	MBits     uint   `env:"M_BITS" env-default:"8" validate:"min=3,max=62"`
	Bootstrap string `env:"BOOTSTRAP_ADDR" env-default:""`

	DebugMode bool   `env:"DEBUG_MODE" env-default:"false"`
	DebugAddr string `env:"DEBUG_ADDR" env-default:"127.0.0.1:6060"`

	StabilizeInterval        time.Duration `env:"STABILIZE_INTERVAL" env-default:"1s"`
	FixFingersInterval       time.Duration `env:"FIX_FINGERS_INTERVAL" env-default:"1s"`
	CheckPredecessorInterval time.Duration `env:"CHECK_PREDECESSOR_INTERVAL" env-default:"3s"`

	FastRPCTimeout time.Duration `env:"FAST_RPC_TIMEOUT" env-default:"5s" validate:"required"`
	SlowRPCTimeout time.Duration `env:"SLOW_RPC_TIMEOUT" env-default:"300s" validate:"required"`
	RetryMax       int           `env:"RETRY_MAX" env-default:"1" validate:"min=0,max=10"`

	Logging logging.Config
}

// Load reads configuration from a .env file when present, falling back
// to process environment variables, then validates the result.
func Load() (Config, error) {
	var cfg Config

	if err := cleanenv.ReadConfig(".env", &cfg); err != nil {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
