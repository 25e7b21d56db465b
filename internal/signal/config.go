// Package signal fuses trend, mean-reversion and predictor evidence into a
// single auditable trading decision, weighted by the inferred market regime.
package signal

import (
	"fmt"
	"math"

	"github.com/quantfuse/quantfuse/internal/regime"
)

// WeightRow is the rule weighting for one regime: how much the trend rule
// and the mean-reversion rule each count toward the rule consensus.
type WeightRow struct {
	Trend     float64 `yaml:"trend" json:"trend"`
	Reversion float64 `yaml:"reversion" json:"reversion"`
}

// Config holds every combiner tunable. The boost/damp multipliers are
// empirical defaults, not correctness constants; override them in yaml.
type Config struct {
	// Weights maps a regime to its rule weighting. Regimes without a row
	// fall back to the Unknown row.
	Weights map[regime.Type]WeightRow `yaml:"weights" json:"weights"`

	// MLBaseWeight is the predictor's share of the final blend before
	// agreement adjustment.
	MLBaseWeight float64 `yaml:"ml_base_weight" json:"ml_base_weight"`
	// ConfidenceThreshold separates confident predictions from noise.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`
	// AgreementBoost multiplies the predictor weight when a confident
	// prediction agrees with the rule consensus.
	AgreementBoost float64 `yaml:"agreement_boost" json:"agreement_boost"`
	// MLWeightCap bounds the boosted predictor weight.
	MLWeightCap float64 `yaml:"ml_weight_cap" json:"ml_weight_cap"`
	// DisagreementDamp multiplies the predictor weight when a confident
	// prediction contradicts the rules: a caution flag, not a vote.
	DisagreementDamp float64 `yaml:"disagreement_damp" json:"disagreement_damp"`
	// MinMLWeight is the floor weight applied to unconfident predictions
	// regardless of direction.
	MinMLWeight float64 `yaml:"min_ml_weight" json:"min_ml_weight"`

	// DeadZone is the action threshold: |strength| must exceed it for a
	// BUY or SELL, otherwise HOLD.
	DeadZone float64 `yaml:"dead_zone" json:"dead_zone"`

	// Heuristic configures the fallback regime classifier.
	Heuristic regime.HeuristicConfig `yaml:"heuristic" json:"heuristic"`
}

// DefaultConfig returns the default weight table and blend parameters.
func DefaultConfig() Config {
	return Config{
		Weights: map[regime.Type]WeightRow{
			regime.Bull:            {Trend: 0.65, Reversion: 0.35},
			regime.Bear:            {Trend: 0.60, Reversion: 0.40},
			regime.RangeBound:      {Trend: 0.30, Reversion: 0.70},
			regime.HighVol:         {Trend: 0.40, Reversion: 0.60},
			regime.Trending:        {Trend: 0.70, Reversion: 0.30},
			regime.HighVolTrending: {Trend: 0.60, Reversion: 0.40},
			regime.LowVolRange:     {Trend: 0.25, Reversion: 0.75},
			regime.Unknown:         {Trend: 0.50, Reversion: 0.50},
		},
		MLBaseWeight:        0.30,
		ConfidenceThreshold: 0.55,
		AgreementBoost:      1.5,
		MLWeightCap:         0.50,
		DisagreementDamp:    0.7,
		MinMLWeight:         0.05,
		DeadZone:            0.15,
		Heuristic:           regime.DefaultHeuristicConfig(),
	}
}

// Validate enforces sanity ranges without pinning the empirical multipliers
// to specific values.
func (c Config) Validate() error {
	if len(c.Weights) == 0 {
		return fmt.Errorf("weight table is empty")
	}
	if _, ok := c.Weights[regime.Unknown]; !ok {
		return fmt.Errorf("weight table needs an %q fallback row", regime.Unknown)
	}
	for r, row := range c.Weights {
		if row.Trend < 0 || row.Reversion < 0 {
			return fmt.Errorf("regime %q: negative weight", r)
		}
		if math.Abs(row.Trend+row.Reversion-1.0) > 1e-3 {
			return fmt.Errorf("regime %q: weights sum to %.4f, want 1.0", r, row.Trend+row.Reversion)
		}
	}
	if c.MLBaseWeight < 0 || c.MLBaseWeight > 1 {
		return fmt.Errorf("ml_base_weight %.3f outside [0,1]", c.MLBaseWeight)
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold >= 1 {
		return fmt.Errorf("confidence_threshold %.3f outside (0,1)", c.ConfidenceThreshold)
	}
	if c.AgreementBoost < 1 {
		return fmt.Errorf("agreement_boost %.3f must be >= 1", c.AgreementBoost)
	}
	if c.MLWeightCap <= 0 || c.MLWeightCap > 1 {
		return fmt.Errorf("ml_weight_cap %.3f outside (0,1]", c.MLWeightCap)
	}
	if c.DisagreementDamp <= 0 || c.DisagreementDamp > 1 {
		return fmt.Errorf("disagreement_damp %.3f outside (0,1]", c.DisagreementDamp)
	}
	if c.MinMLWeight < 0 || c.MinMLWeight > c.MLBaseWeight {
		return fmt.Errorf("min_ml_weight %.3f outside [0, ml_base_weight]", c.MinMLWeight)
	}
	if c.DeadZone <= 0 || c.DeadZone >= 1 {
		return fmt.Errorf("dead_zone %.3f outside (0,1)", c.DeadZone)
	}
	return nil
}
