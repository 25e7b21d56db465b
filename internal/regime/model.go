package regime

import (
	"fmt"

	"github.com/quantfuse/quantfuse/internal/market"
)

// Model is the plain-data HMM parameter set. It serializes losslessly and a
// restored model reproduces the original inference output exactly.
type Model struct {
	States     []Type      `json:"states"`
	Prior      []float64   `json:"prior"`      // length N, sums to 1
	Transition [][]float64 `json:"transition"` // N x N, rows sum to 1
	Means      [][]float64 `json:"means"`      // N x ObservationDim
	Variances  [][]float64 `json:"variances"`  // N x ObservationDim, floored > 0
	Trained    bool        `json:"trained"`
}

// newModel builds the initial model from regime-informed priors: uniform
// initial distribution, sticky transitions, configured Gaussian moments.
func newModel(cfg Config) *Model {
	n := len(cfg.States)
	m := &Model{
		States:     make([]Type, n),
		Prior:      make([]float64, n),
		Transition: make([][]float64, n),
		Means:      make([][]float64, n),
		Variances:  make([][]float64, n),
	}
	const stay = 0.8
	for i, s := range cfg.States {
		m.States[i] = s.Name
		m.Prior[i] = 1.0 / float64(n)
		m.Transition[i] = make([]float64, n)
		for j := range m.Transition[i] {
			if i == j {
				m.Transition[i][j] = stay
			} else {
				m.Transition[i][j] = (1 - stay) / float64(n-1)
			}
		}
		m.Means[i] = append([]float64(nil), s.Means...)
		m.Variances[i] = append([]float64(nil), s.Variances...)
	}
	return m
}

// Clone returns a deep copy of the model.
func (m *Model) Clone() *Model {
	c := &Model{
		States:     append([]Type(nil), m.States...),
		Prior:      append([]float64(nil), m.Prior...),
		Transition: make([][]float64, len(m.Transition)),
		Means:      make([][]float64, len(m.Means)),
		Variances:  make([][]float64, len(m.Variances)),
		Trained:    m.Trained,
	}
	for i := range m.Transition {
		c.Transition[i] = append([]float64(nil), m.Transition[i]...)
	}
	for i := range m.Means {
		c.Means[i] = append([]float64(nil), m.Means[i]...)
		c.Variances[i] = append([]float64(nil), m.Variances[i]...)
	}
	return c
}

// Validate checks structural invariants of a (possibly restored) model.
func (m *Model) Validate() error {
	n := len(m.States)
	if n < 2 {
		return fmt.Errorf("model needs >= 2 states, got %d", n)
	}
	if len(m.Prior) != n || len(m.Transition) != n || len(m.Means) != n || len(m.Variances) != n {
		return fmt.Errorf("model shape mismatch: states=%d prior=%d transition=%d means=%d variances=%d",
			n, len(m.Prior), len(m.Transition), len(m.Means), len(m.Variances))
	}
	for i := 0; i < n; i++ {
		if len(m.Transition[i]) != n {
			return fmt.Errorf("transition row %d: length %d, want %d", i, len(m.Transition[i]), n)
		}
		if len(m.Means[i]) != market.ObservationDim || len(m.Variances[i]) != market.ObservationDim {
			return fmt.Errorf("state %d: emission dims means=%d variances=%d, want %d",
				i, len(m.Means[i]), len(m.Variances[i]), market.ObservationDim)
		}
		for d, v := range m.Variances[i] {
			if v <= 0 {
				return fmt.Errorf("state %d dim %d: variance %g must be > 0", i, d, v)
			}
		}
	}
	return nil
}
