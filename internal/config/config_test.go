package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfuse/quantfuse/internal/regime"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Backtest.Symbol, cfg.Backtest.Symbol)
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quantfuse.yaml")
	yaml := `
backtest:
  symbol: BTC-USD
  seed: 99
signal:
  dead_zone: 0.2
listen: "127.0.0.1:9090"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "BTC-USD", cfg.Backtest.Symbol)
	assert.Equal(t, int64(99), cfg.Backtest.Seed)
	assert.Equal(t, 0.2, cfg.Signal.DeadZone)
	assert.Equal(t, "127.0.0.1:9090", cfg.Listen)

	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Backtest.Horizon, cfg.Backtest.Horizon)
	assert.Len(t, cfg.Regime.States, len(regime.DefaultConfig().States))
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")

	t.Run("invalid values", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("backtest:\n  horizon: -1\n"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("unparseable yaml", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("::: not yaml"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
