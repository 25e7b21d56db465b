package predict

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog/log"
)

// preActivationClamp bounds pre-activations so sigmoid/softmax never see
// values that overflow exp.
const preActivationClamp = 30.0

// probFloor keeps every probability strictly positive before logs.
const probFloor = 1e-12

// Sample pairs a feature vector with its class label.
type Sample struct {
	Features []float64
	Class    int
}

// Prediction is the labeled output of a single inference call.
type Prediction struct {
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// Network is a fully connected feed-forward classifier: sigmoid hidden
// activations and a softmax output layer. Weight matrix l has shape
// layers[l+1] x layers[l].
//
// A Network owns its parameters exclusively; training calls are the only
// mutators. For concurrent serving, train a Clone and publish it with an
// atomic swap.
type Network struct {
	cfg     Config
	weights [][][]float64 // [layer][out][in]
	biases  [][]float64   // [layer][out]
	lr      float64
	trained bool
}

// NewNetwork creates a Xavier-initialized network from the configuration.
func NewNetwork(cfg Config) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("predictor config: %w", err)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	n := &Network{cfg: cfg, lr: cfg.LearningRate}
	for l := 0; l < len(cfg.Layers)-1; l++ {
		in, out := cfg.Layers[l], cfg.Layers[l+1]
		scale := math.Sqrt(6.0 / float64(in+out))
		w := make([][]float64, out)
		for j := range w {
			w[j] = make([]float64, in)
			for i := range w[j] {
				w[j][i] = (rng.Float64()*2 - 1) * scale
			}
		}
		n.weights = append(n.weights, w)
		n.biases = append(n.biases, make([]float64, out))
	}
	return n, nil
}

// Trained reports whether at least one training pass has completed.
func (n *Network) Trained() bool { return n.trained }

// Classes returns the output labels in distribution order.
func (n *Network) Classes() []string { return append([]string(nil), n.cfg.Classes...) }

// InputDim returns the expected feature vector length.
func (n *Network) InputDim() int { return n.cfg.Layers[0] }

// NeutralClass returns the index excluded from directional accuracy, or -1.
func (n *Network) NeutralClass() int { return n.cfg.NeutralClass }

// LearningRate returns the current step size.
func (n *Network) LearningRate() float64 { return n.lr }

// SetLearningRate changes the step size for subsequent training calls. The
// walk-forward scheduler uses this for its two-phase retrain schedule.
func (n *Network) SetLearningRate(lr float64) error {
	if lr <= 0 {
		return fmt.Errorf("learning rate must be > 0, got %g", lr)
	}
	n.lr = lr
	return nil
}

// Clone returns an independent network with deep-copied parameters.
func (n *Network) Clone() *Network {
	c := &Network{cfg: n.cfg, lr: n.lr, trained: n.trained}
	for l := range n.weights {
		w := make([][]float64, len(n.weights[l]))
		for j := range w {
			w[j] = append([]float64(nil), n.weights[l][j]...)
		}
		c.weights = append(c.weights, w)
		c.biases = append(c.biases, append([]float64(nil), n.biases[l]...))
	}
	return c
}

// Predict runs one forward pass and returns the class probability vector,
// which sums to 1 with every entry in (0,1).
func (n *Network) Predict(features []float64) ([]float64, error) {
	if len(features) != n.cfg.Layers[0] {
		return nil, fmt.Errorf("%w: got %d features, input layer is %d",
			ErrShapeMismatch, len(features), n.cfg.Layers[0])
	}
	activations := n.forward(features)
	out := activations[len(activations)-1]
	return append([]float64(nil), out...), nil
}

// PredictSignal returns the arg-max label with its probability as
// confidence plus the full labeled distribution.
func (n *Network) PredictSignal(features []float64) (Prediction, error) {
	probs, err := n.Predict(features)
	if err != nil {
		return Prediction{}, err
	}

	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}

	labeled := make(map[string]float64, len(probs))
	for i, p := range probs {
		labeled[n.cfg.Classes[i]] = p
	}
	return Prediction{
		Label:         n.cfg.Classes[best],
		Confidence:    probs[best],
		Probabilities: labeled,
	}, nil
}

// TrainSample performs one backpropagation step and returns the
// cross-entropy loss for the sample. The softmax + cross-entropy output
// error reduces to output minus target.
func (n *Network) TrainSample(features []float64, target []float64) (float64, error) {
	if len(features) != n.cfg.Layers[0] {
		return 0, fmt.Errorf("%w: got %d features, input layer is %d",
			ErrShapeMismatch, len(features), n.cfg.Layers[0])
	}
	outDim := n.cfg.Layers[len(n.cfg.Layers)-1]
	if len(target) != outDim {
		return 0, fmt.Errorf("%w: got %d targets, output layer is %d",
			ErrShapeMismatch, len(target), outDim)
	}

	activations := n.forward(features)
	output := activations[len(activations)-1]

	loss := 0.0
	for i, t := range target {
		if t > 0 {
			loss -= t * math.Log(math.Max(output[i], probFloor))
		}
	}

	// Output delta: softmax + cross-entropy closed form.
	deltas := make([][]float64, len(n.weights))
	last := len(n.weights) - 1
	deltas[last] = make([]float64, outDim)
	for i := range deltas[last] {
		deltas[last][i] = output[i] - target[i]
	}

	// Hidden deltas propagate through the sigmoid derivative a(1-a).
	for l := last - 1; l >= 0; l-- {
		a := activations[l+1]
		deltas[l] = make([]float64, len(a))
		for i := range a {
			sum := 0.0
			for j := range deltas[l+1] {
				sum += n.weights[l+1][j][i] * deltas[l+1][j]
			}
			deltas[l][i] = sum * a[i] * (1 - a[i])
		}
	}

	// Gradient step on every parameter.
	for l := range n.weights {
		in := activations[l]
		for j := range n.weights[l] {
			for i := range n.weights[l][j] {
				n.weights[l][j][i] -= n.lr * deltas[l][j] * in[i]
			}
			n.biases[l][j] -= n.lr * deltas[l][j]
		}
	}

	return loss, nil
}

// Train repeats TrainSample over the set for the given number of epochs and
// returns the final-epoch average loss. The context is checked between
// epochs.
func (n *Network) Train(ctx context.Context, samples []Sample, epochs int) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrInsufficientData
	}
	if epochs <= 0 {
		return 0, fmt.Errorf("epochs must be > 0, got %d", epochs)
	}

	avgLoss := 0.0
	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("training cancelled at epoch %d: %w", epoch, err)
		}
		total := 0.0
		for _, s := range samples {
			loss, err := n.TrainSample(s.Features, n.oneHot(s.Class))
			if err != nil {
				return 0, err
			}
			total += loss
		}
		avgLoss = total / float64(len(samples))
	}

	n.trained = true
	log.Debug().
		Int("samples", len(samples)).
		Int("epochs", epochs).
		Float64("final_loss", avgLoss).
		Msg("predictor trained")
	return avgLoss, nil
}

// TrainBalanced trains on a class-rebalanced resample of the set each
// epoch, countering the label imbalance of directional market data.
func (n *Network) TrainBalanced(ctx context.Context, samples []Sample, epochs int, rs *Resampler) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrInsufficientData
	}
	if epochs <= 0 {
		return 0, fmt.Errorf("epochs must be > 0, got %d", epochs)
	}

	avgLoss := 0.0
	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("training cancelled at epoch %d: %w", epoch, err)
		}
		balanced := rs.Rebalance(samples)
		total := 0.0
		for _, s := range balanced {
			loss, err := n.TrainSample(s.Features, n.oneHot(s.Class))
			if err != nil {
				return 0, err
			}
			total += loss
		}
		avgLoss = total / float64(len(balanced))
	}

	n.trained = true
	return avgLoss, nil
}

// forward computes activations for every layer, input included. Hidden
// layers apply a clamped sigmoid; the output layer applies softmax with a
// probability floor.
func (n *Network) forward(features []float64) [][]float64 {
	activations := make([][]float64, len(n.cfg.Layers))
	activations[0] = features

	for l := range n.weights {
		in := activations[l]
		out := make([]float64, len(n.weights[l]))
		for j := range out {
			z := n.biases[l][j]
			for i, a := range in {
				z += n.weights[l][j][i] * a
			}
			out[j] = clampPre(z)
		}
		if l == len(n.weights)-1 {
			softmaxInPlace(out)
		} else {
			for j := range out {
				out[j] = 1 / (1 + math.Exp(-out[j]))
			}
		}
		activations[l+1] = out
	}
	return activations
}

func (n *Network) oneHot(class int) []float64 {
	t := make([]float64, len(n.cfg.Classes))
	if class >= 0 && class < len(t) {
		t[class] = 1
	}
	return t
}

func clampPre(z float64) float64 {
	if z > preActivationClamp {
		return preActivationClamp
	}
	if z < -preActivationClamp {
		return -preActivationClamp
	}
	return z
}

// softmaxInPlace applies a max-shifted softmax and floors each probability
// so downstream logs stay finite.
func softmaxInPlace(z []float64) {
	max := z[0]
	for _, v := range z[1:] {
		if v > max {
			max = v
		}
	}
	sum := 0.0
	for i := range z {
		z[i] = math.Exp(z[i] - max)
		sum += z[i]
	}
	for i := range z {
		z[i] /= sum
		if z[i] < probFloor {
			z[i] = probFloor
		}
	}
}
