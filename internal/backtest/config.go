// Package backtest drives the expanding-window walk-forward simulation:
// periodic no-lookahead retraining of the predictor, bar-by-bar decisions
// through the signal combiner, and comparison against static baselines.
package backtest

import "fmt"

// Config holds walk-forward scheduler configuration. All horizons are in
// bars, matching the input series resolution.
type Config struct {
	Symbol        string  `yaml:"symbol" json:"symbol"`
	InitialEquity float64 `yaml:"initial_equity" json:"initial_equity"`

	// MinHistory: bars required before the simulation may start. Runs with
	// fewer bars fail outright rather than producing a partial result.
	MinHistory int `yaml:"min_history" json:"min_history"`
	// RetrainInterval: bar gap between predictor retrains.
	RetrainInterval int `yaml:"retrain_interval" json:"retrain_interval"`
	// Horizon: forward bars used to label a training sample. The retrain at
	// bar T uses only samples from bars strictly before T - Horizon.
	Horizon int `yaml:"horizon" json:"horizon"`
	// ReturnThreshold: forward-return dead zone separating buy/sell labels
	// from hold.
	ReturnThreshold float64 `yaml:"return_threshold" json:"return_threshold"`
	// MinTrainSamples: retrains with fewer samples keep the last model.
	MinTrainSamples int `yaml:"min_train_samples" json:"min_train_samples"`

	// Two-phase retrain schedule: PhaseOneRate for Epochs, then
	// PhaseTwoRate for PhaseTwoEpochs, then the base rate is restored.
	Epochs         int     `yaml:"epochs" json:"epochs"`
	PhaseOneRate   float64 `yaml:"phase_one_rate" json:"phase_one_rate"`
	PhaseTwoRate   float64 `yaml:"phase_two_rate" json:"phase_two_rate"`
	PhaseTwoEpochs int     `yaml:"phase_two_epochs" json:"phase_two_epochs"`

	// VolWindow: trailing bars for realized-volatility observations.
	VolWindow int `yaml:"vol_window" json:"vol_window"`
	// ObsWindow: trailing bars fed to the regime detector per decision.
	ObsWindow int `yaml:"obs_window" json:"obs_window"`

	// TrailingStopPct: exit when drawdown from the position peak exceeds
	// this fraction.
	TrailingStopPct float64 `yaml:"trailing_stop_pct" json:"trailing_stop_pct"`
	// TakeProfitPct: liquidate half the position past this gain, once.
	TakeProfitPct float64 `yaml:"take_profit_pct" json:"take_profit_pct"`

	// Seed drives the balanced-training resampler; per-retrain seeds are
	// derived from it so runs reproduce exactly.
	Seed int64 `yaml:"seed" json:"seed"`
}

// DefaultConfig returns the default walk-forward parameters.
func DefaultConfig() Config {
	return Config{
		Symbol:          "SIM",
		InitialEquity:   100_000,
		MinHistory:      120,
		RetrainInterval: 40,
		Horizon:         5,
		ReturnThreshold: 0.002,
		MinTrainSamples: 30,
		Epochs:          30,
		PhaseOneRate:    0.10,
		PhaseTwoRate:    0.02,
		PhaseTwoEpochs:  10,
		VolWindow:       20,
		ObsWindow:       80,
		TrailingStopPct: 0.05,
		TakeProfitPct:   0.10,
		Seed:            1,
	}
}

// Validate rejects configurations that cannot run.
func (c Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is empty")
	}
	if c.InitialEquity <= 0 {
		return fmt.Errorf("initial_equity must be > 0, got %g", c.InitialEquity)
	}
	if c.MinHistory < 2*c.VolWindow {
		return fmt.Errorf("min_history %d must be >= 2x vol_window (%d)", c.MinHistory, 2*c.VolWindow)
	}
	if c.RetrainInterval <= 0 {
		return fmt.Errorf("retrain_interval must be > 0, got %d", c.RetrainInterval)
	}
	if c.Horizon <= 0 {
		return fmt.Errorf("horizon must be > 0, got %d", c.Horizon)
	}
	if c.ReturnThreshold < 0 {
		return fmt.Errorf("return_threshold must be >= 0, got %g", c.ReturnThreshold)
	}
	if c.MinTrainSamples <= 0 {
		return fmt.Errorf("min_train_samples must be > 0, got %d", c.MinTrainSamples)
	}
	if c.Epochs <= 0 || c.PhaseTwoEpochs < 0 {
		return fmt.Errorf("epochs must be > 0 and phase_two_epochs >= 0")
	}
	if c.PhaseOneRate <= 0 || c.PhaseTwoRate <= 0 {
		return fmt.Errorf("learning rates must be > 0")
	}
	if c.VolWindow < 2 {
		return fmt.Errorf("vol_window must be >= 2, got %d", c.VolWindow)
	}
	if c.ObsWindow < 2*c.VolWindow {
		return fmt.Errorf("obs_window %d must be >= 2x vol_window (%d)", c.ObsWindow, 2*c.VolWindow)
	}
	if c.TrailingStopPct <= 0 || c.TrailingStopPct >= 1 {
		return fmt.Errorf("trailing_stop_pct %.3f outside (0,1)", c.TrailingStopPct)
	}
	if c.TakeProfitPct <= 0 {
		return fmt.Errorf("take_profit_pct must be > 0, got %g", c.TakeProfitPct)
	}
	return nil
}
