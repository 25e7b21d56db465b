package predict

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Layers = []int{2, 6, 3}
	return cfg
}

// separableSamples emits a linearly separable three-class set: class by the
// sign of the first feature, hold in the middle band.
func separableSamples(seed int64, n int) []Sample {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		x := rng.Float64()*2 - 1
		y := rng.Float64()*2 - 1
		class := 1
		if x > 0.3 {
			class = 0 // buy
		} else if x < -0.3 {
			class = 2 // sell
		}
		samples = append(samples, Sample{Features: []float64{x, y}, Class: class})
	}
	return samples
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"too few layers", func(c *Config) { c.Layers = []int{3} }, true},
		{"zero width layer", func(c *Config) { c.Layers = []int{3, 0, 2} }, true},
		{"classes mismatch output", func(c *Config) { c.Classes = []string{"a", "b"} }, true},
		{"neutral out of range", func(c *Config) { c.NeutralClass = 7 }, true},
		{"bad learning rate", func(c *Config) { c.LearningRate = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPredictDistribution(t *testing.T) {
	net, err := NewNetwork(testConfig())
	require.NoError(t, err)

	probs, err := net.Predict([]float64{0.5, -0.2})
	require.NoError(t, err)
	require.Len(t, probs, 3)

	sum := 0.0
	for i, p := range probs {
		assert.Greater(t, p, 0.0, "class %d", i)
		assert.Less(t, p, 1.0, "class %d", i)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	t.Run("shape mismatch", func(t *testing.T) {
		_, err := net.Predict([]float64{0.5})
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})
}

func TestTrainReducesLoss(t *testing.T) {
	net, err := NewNetwork(testConfig())
	require.NoError(t, err)
	samples := separableSamples(3, 200)

	first, err := net.Train(context.Background(), samples, 1)
	require.NoError(t, err)
	last, err := net.Train(context.Background(), samples, 40)
	require.NoError(t, err)

	assert.Less(t, last, first, "loss should fall over training")
	assert.True(t, net.Trained())
}

func TestTrainBalancedLearnsDirection(t *testing.T) {
	net, err := NewNetwork(testConfig())
	require.NoError(t, err)

	// Heavily imbalanced toward hold; balanced training must still learn
	// the directional classes.
	samples := separableSamples(5, 400)
	train, test := samples[:320], samples[320:]

	_, err = net.TrainBalanced(context.Background(), train, 60, NewResampler(7))
	require.NoError(t, err)

	eval, err := net.Evaluate(test)
	require.NoError(t, err)
	assert.Greater(t, eval.Accuracy, 0.5)
	if eval.DirectionalCalls > 0 {
		assert.Greater(t, eval.DirectionalAccuracy, 0.5,
			"directional calls should beat coin-flip on separable data")
	}
}

func TestTrainBalancedTwoClassImbalance(t *testing.T) {
	cfg := Config{
		Layers:       []int{2, 6, 2},
		Classes:      []string{"up", "down"},
		NeutralClass: -1,
		LearningRate: 0.05,
		Seed:         1,
	}
	net, err := NewNetwork(cfg)
	require.NoError(t, err)

	// 80 up / 20 down with separable features.
	rng := rand.New(rand.NewSource(17))
	var train, test []Sample
	make2 := func(n, class int, lo, hi float64) []Sample {
		out := make([]Sample, n)
		for i := range out {
			x := lo + rng.Float64()*(hi-lo)
			out[i] = Sample{Features: []float64{x, rng.Float64()*2 - 1}, Class: class}
		}
		return out
	}
	train = append(train, make2(80, 0, 0.1, 1)...)
	train = append(train, make2(20, 1, -1, -0.1)...)
	test = append(test, make2(20, 0, 0.1, 1)...)
	test = append(test, make2(20, 1, -1, -0.1)...)

	_, err = net.TrainBalanced(context.Background(), train, 50, NewResampler(3))
	require.NoError(t, err)

	eval, err := net.Evaluate(test)
	require.NoError(t, err)
	assert.Greater(t, eval.DirectionalAccuracy, 0.5,
		"balanced training must not degenerate to always-up")

	downRecalled := eval.Confusion[1][1]
	assert.Greater(t, downRecalled, 0, "the minority class must still be called")
}

func TestTrainErrors(t *testing.T) {
	net, err := NewNetwork(testConfig())
	require.NoError(t, err)

	t.Run("no samples", func(t *testing.T) {
		_, err := net.Train(context.Background(), nil, 5)
		assert.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("bad epochs", func(t *testing.T) {
		_, err := net.Train(context.Background(), separableSamples(1, 10), 0)
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := net.Train(ctx, separableSamples(1, 10), 5)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("feature shape mismatch", func(t *testing.T) {
		bad := []Sample{{Features: []float64{1, 2, 3}, Class: 0}}
		_, err := net.Train(context.Background(), bad, 1)
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})
}

func TestPredictSignal(t *testing.T) {
	net, err := NewNetwork(testConfig())
	require.NoError(t, err)
	_, err = net.Train(context.Background(), separableSamples(9, 300), 50)
	require.NoError(t, err)

	pred, err := net.PredictSignal([]float64{0.9, 0.0})
	require.NoError(t, err)
	assert.Equal(t, "buy", pred.Label)
	assert.Greater(t, pred.Confidence, 1.0/3)
	assert.Len(t, pred.Probabilities, 3)

	pred, err = net.PredictSignal([]float64{-0.9, 0.0})
	require.NoError(t, err)
	assert.Equal(t, "sell", pred.Label)
}

func TestCloneIsIndependent(t *testing.T) {
	net, err := NewNetwork(testConfig())
	require.NoError(t, err)

	clone := net.Clone()
	_, err = clone.Train(context.Background(), separableSamples(2, 100), 20)
	require.NoError(t, err)

	a, err := net.Predict([]float64{0.5, 0.5})
	require.NoError(t, err)
	b, err := clone.Predict([]float64{0.5, 0.5})
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "training the clone must not touch the original")
	assert.False(t, net.Trained())
}

func TestNetworkAccessors(t *testing.T) {
	cfg := testConfig()
	net, err := NewNetwork(cfg)
	require.NoError(t, err)

	assert.Equal(t, cfg.Layers[0], net.InputDim())
	assert.Equal(t, cfg.NeutralClass, net.NeutralClass())

	classes := net.Classes()
	require.Equal(t, cfg.Classes, classes)
	classes[0] = "mutated"
	assert.Equal(t, cfg.Classes, net.Classes(), "Classes must return a copy")
}

func TestSetLearningRate(t *testing.T) {
	net, err := NewNetwork(testConfig())
	require.NoError(t, err)

	require.NoError(t, net.SetLearningRate(0.2))
	assert.Equal(t, 0.2, net.LearningRate())
	assert.Error(t, net.SetLearningRate(0))
	assert.Error(t, net.SetLearningRate(-0.1))
}
