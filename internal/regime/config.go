package regime

import (
	"fmt"

	"github.com/quantfuse/quantfuse/internal/market"
)

// StatePrior seeds one hidden state with a name and per-dimension Gaussian
// moments. The dimension order matches market.Observation.Vector():
// return, realized volatility, volume ratio.
type StatePrior struct {
	Name      Type      `yaml:"name" json:"name"`
	Means     []float64 `yaml:"means" json:"means"`
	Variances []float64 `yaml:"variances" json:"variances"`
}

// Config holds HMM detector configuration.
type Config struct {
	States        []StatePrior `yaml:"states" json:"states"`
	MaxIter       int          `yaml:"max_iter" json:"max_iter"`
	Tolerance     float64      `yaml:"tolerance" json:"tolerance"`
	VarianceFloor float64      `yaml:"variance_floor" json:"variance_floor"`
	MinObs        int          `yaml:"min_observations" json:"min_observations"`
}

// DefaultConfig returns the four-regime default with regime-informed priors.
func DefaultConfig() Config {
	return Config{
		States: []StatePrior{
			{Name: Bull, Means: []float64{0.003, 0.010, 1.1}, Variances: []float64{1e-4, 5e-5, 0.10}},
			{Name: Bear, Means: []float64{-0.003, 0.015, 1.2}, Variances: []float64{1e-4, 5e-5, 0.15}},
			{Name: RangeBound, Means: []float64{0.0, 0.006, 1.0}, Variances: []float64{5e-5, 2e-5, 0.05}},
			{Name: HighVol, Means: []float64{0.0, 0.030, 1.4}, Variances: []float64{4e-4, 2e-4, 0.30}},
		},
		MaxIter:       50,
		Tolerance:     1e-4,
		VarianceFloor: 1e-8,
		MinObs:        10,
	}
}

// Validate checks the configuration for shape and range errors. These are
// caller bugs and fail loudly.
func (c Config) Validate() error {
	if len(c.States) < 2 {
		return fmt.Errorf("need at least 2 regime states, got %d", len(c.States))
	}
	seen := map[Type]bool{}
	for i, s := range c.States {
		if s.Name == "" {
			return fmt.Errorf("state %d: empty name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("state %d: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
		if len(s.Means) != market.ObservationDim || len(s.Variances) != market.ObservationDim {
			return fmt.Errorf("state %q: priors must have %d dimensions, got means=%d variances=%d",
				s.Name, market.ObservationDim, len(s.Means), len(s.Variances))
		}
		for d, v := range s.Variances {
			if v <= 0 {
				return fmt.Errorf("state %q: variance prior dim %d must be > 0, got %g", s.Name, d, v)
			}
		}
	}
	if c.MaxIter <= 0 {
		return fmt.Errorf("max_iter must be > 0, got %d", c.MaxIter)
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be > 0, got %g", c.Tolerance)
	}
	if c.VarianceFloor <= 0 {
		return fmt.Errorf("variance_floor must be > 0, got %g", c.VarianceFloor)
	}
	if c.MinObs < 2 {
		return fmt.Errorf("min_observations must be >= 2, got %d", c.MinObs)
	}
	return nil
}
