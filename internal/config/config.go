// Package config loads the application configuration: defaults first, then
// an optional yaml overlay, then validation. A config that fails validation
// never reaches the engine.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quantfuse/quantfuse/internal/backtest"
	"github.com/quantfuse/quantfuse/internal/predict"
	"github.com/quantfuse/quantfuse/internal/regime"
	"github.com/quantfuse/quantfuse/internal/signal"
)

// Config aggregates every tunable surface of the decision core.
type Config struct {
	Regime    regime.Config   `yaml:"regime"`
	Predictor predict.Config  `yaml:"predictor"`
	Signal    signal.Config   `yaml:"signal"`
	Backtest  backtest.Config `yaml:"backtest"`

	// Listen is the metrics/health bind address; empty disables the server.
	Listen string `yaml:"listen"`
	// SnapshotDir holds model snapshots; empty disables snapshotting.
	SnapshotDir string `yaml:"snapshot_dir"`
	// RedisAddr optionally mirrors snapshots to redis.
	RedisAddr string `yaml:"redis_addr"`
	// PostgresDSN optionally persists comparisons.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Default returns the complete default configuration.
func Default() Config {
	return Config{
		Regime:    regime.DefaultConfig(),
		Predictor: predict.DefaultConfig(),
		Signal:    signal.DefaultConfig(),
		Backtest:  backtest.DefaultConfig(),
	}
}

// Load reads a yaml file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Regime.Validate(); err != nil {
		return fmt.Errorf("regime: %w", err)
	}
	if err := c.Predictor.Validate(); err != nil {
		return fmt.Errorf("predictor: %w", err)
	}
	if err := c.Signal.Validate(); err != nil {
		return fmt.Errorf("signal: %w", err)
	}
	if err := c.Backtest.Validate(); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	return nil
}
