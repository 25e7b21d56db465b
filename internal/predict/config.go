// Package predict implements the trainable short-horizon signal predictor:
// a small fully connected network with sigmoid hidden layers and a softmax
// output over a fixed action class set.
package predict

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch indicates a feature or target vector that does not
	// match the network topology. This is a caller bug and fails loudly.
	ErrShapeMismatch = errors.New("input shape does not match network")
	// ErrInsufficientData indicates an empty or unusable training set.
	ErrInsufficientData = errors.New("insufficient training samples")
)

// Config holds network topology and training configuration.
type Config struct {
	// Layers lists unit counts from input to output. The final layer must
	// equal len(Classes).
	Layers []int `yaml:"layers" json:"layers"`
	// Classes names the output distribution, e.g. [buy hold sell].
	Classes []string `yaml:"classes" json:"classes"`
	// NeutralClass is the index excluded from directional accuracy, or -1
	// when every class is actionable.
	NeutralClass int     `yaml:"neutral_class" json:"neutral_class"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	// Seed drives Xavier initialization; fixed seeds give reproducible nets.
	Seed int64 `yaml:"seed" json:"seed"`
}

// DefaultConfig returns the 3-class BUY/HOLD/SELL default topology.
func DefaultConfig() Config {
	return Config{
		Layers:       []int{5, 8, 3},
		Classes:      []string{"buy", "hold", "sell"},
		NeutralClass: 1,
		LearningRate: 0.05,
		Seed:         1,
	}
}

// Validate checks topology and range errors.
func (c Config) Validate() error {
	if len(c.Layers) < 2 {
		return fmt.Errorf("need at least input and output layers, got %d", len(c.Layers))
	}
	for i, n := range c.Layers {
		if n <= 0 {
			return fmt.Errorf("layer %d: size must be > 0, got %d", i, n)
		}
	}
	if len(c.Classes) < 2 {
		return fmt.Errorf("need at least 2 classes, got %d", len(c.Classes))
	}
	if c.Layers[len(c.Layers)-1] != len(c.Classes) {
		return fmt.Errorf("output layer size %d must equal class count %d",
			c.Layers[len(c.Layers)-1], len(c.Classes))
	}
	if c.NeutralClass < -1 || c.NeutralClass >= len(c.Classes) {
		return fmt.Errorf("neutral_class %d out of range for %d classes", c.NeutralClass, len(c.Classes))
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0, got %g", c.LearningRate)
	}
	return nil
}
