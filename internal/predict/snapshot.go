package predict

import "fmt"

// Snapshot is the plain-data parameter set of a network. A restored
// snapshot reproduces the original Predict output exactly.
type Snapshot struct {
	Layers       []int         `json:"layers"`
	Classes      []string      `json:"classes"`
	NeutralClass int           `json:"neutral_class"`
	Weights      [][][]float64 `json:"weights"` // [layer][out][in]
	Biases       [][]float64   `json:"biases"`
	LearningRate float64       `json:"learning_rate"`
	Trained      bool          `json:"trained"`
}

// Snapshot returns a deep copy of the network parameters.
func (n *Network) Snapshot() *Snapshot {
	s := &Snapshot{
		Layers:       append([]int(nil), n.cfg.Layers...),
		Classes:      append([]string(nil), n.cfg.Classes...),
		NeutralClass: n.cfg.NeutralClass,
		LearningRate: n.lr,
		Trained:      n.trained,
	}
	for l := range n.weights {
		w := make([][]float64, len(n.weights[l]))
		for j := range w {
			w[j] = append([]float64(nil), n.weights[l][j]...)
		}
		s.Weights = append(s.Weights, w)
		s.Biases = append(s.Biases, append([]float64(nil), n.biases[l]...))
	}
	return s
}

// Validate checks the structural invariants of a snapshot: weight matrix l
// must be layers[l+1] x layers[l].
func (s *Snapshot) Validate() error {
	if len(s.Layers) < 2 {
		return fmt.Errorf("snapshot needs >= 2 layers, got %d", len(s.Layers))
	}
	if len(s.Classes) != s.Layers[len(s.Layers)-1] {
		return fmt.Errorf("snapshot classes=%d, output layer=%d", len(s.Classes), s.Layers[len(s.Layers)-1])
	}
	if len(s.Weights) != len(s.Layers)-1 || len(s.Biases) != len(s.Layers)-1 {
		return fmt.Errorf("snapshot has %d weight and %d bias layers, want %d",
			len(s.Weights), len(s.Biases), len(s.Layers)-1)
	}
	for l := range s.Weights {
		in, out := s.Layers[l], s.Layers[l+1]
		if len(s.Weights[l]) != out || len(s.Biases[l]) != out {
			return fmt.Errorf("layer %d: %d weight rows, %d biases, want %d",
				l, len(s.Weights[l]), len(s.Biases[l]), out)
		}
		for j := range s.Weights[l] {
			if len(s.Weights[l][j]) != in {
				return fmt.Errorf("layer %d row %d: %d columns, want %d", l, j, len(s.Weights[l][j]), in)
			}
		}
	}
	if s.LearningRate <= 0 {
		return fmt.Errorf("snapshot learning rate %g must be > 0", s.LearningRate)
	}
	return nil
}

// Restore replaces the network parameters with a snapshot. Shape errors
// fail loudly; the network is untouched on error.
func (n *Network) Restore(s *Snapshot) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("restore predictor: %w", err)
	}

	cfg := Config{
		Layers:       append([]int(nil), s.Layers...),
		Classes:      append([]string(nil), s.Classes...),
		NeutralClass: s.NeutralClass,
		LearningRate: s.LearningRate,
		Seed:         n.cfg.Seed,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("restore predictor: %w", err)
	}

	weights := make([][][]float64, 0, len(s.Weights))
	biases := make([][]float64, 0, len(s.Biases))
	for l := range s.Weights {
		w := make([][]float64, len(s.Weights[l]))
		for j := range w {
			w[j] = append([]float64(nil), s.Weights[l][j]...)
		}
		weights = append(weights, w)
		biases = append(biases, append([]float64(nil), s.Biases[l]...))
	}

	n.cfg = cfg
	n.weights = weights
	n.biases = biases
	n.lr = s.LearningRate
	n.trained = s.Trained
	return nil
}
