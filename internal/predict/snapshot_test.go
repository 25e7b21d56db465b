package predict

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	net, err := NewNetwork(testConfig())
	require.NoError(t, err)
	_, err = net.Train(context.Background(), separableSamples(4, 200), 30)
	require.NoError(t, err)

	snap := net.Snapshot()
	require.NoError(t, snap.Validate())

	// Through JSON, the way the persistence stores carry it.
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored, err := NewNetwork(testConfig())
	require.NoError(t, err)
	require.NoError(t, restored.Restore(&decoded))
	require.True(t, restored.Trained())

	input := []float64{0.4, -0.6}
	want, err := net.Predict(input)
	require.NoError(t, err)
	got, err := restored.Predict(input)
	require.NoError(t, err)
	assert.Equal(t, want, got, "restored network must predict identically")
}

func TestSnapshotIsACopy(t *testing.T) {
	net, err := NewNetwork(testConfig())
	require.NoError(t, err)

	input := []float64{0.1, 0.2}
	want, err := net.Predict(input)
	require.NoError(t, err)

	snap := net.Snapshot()
	snap.Weights[0][0][0] = 99

	got, err := net.Predict(input)
	require.NoError(t, err)
	assert.Equal(t, want, got, "mutating the snapshot must not touch the network")
}

func TestSnapshotValidate(t *testing.T) {
	net, err := NewNetwork(testConfig())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"truncated weight row", func(s *Snapshot) { s.Weights[0][0] = s.Weights[0][0][:1] }},
		{"missing bias layer", func(s *Snapshot) { s.Biases = s.Biases[:1] }},
		{"classes mismatch", func(s *Snapshot) { s.Classes = []string{"only"} }},
		{"bad learning rate", func(s *Snapshot) { s.LearningRate = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := net.Snapshot()
			tt.mutate(snap)
			assert.Error(t, snap.Validate())
		})
	}
}

func TestRestoreLeavesNetworkOnError(t *testing.T) {
	net, err := NewNetwork(testConfig())
	require.NoError(t, err)

	input := []float64{0.3, 0.3}
	want, err := net.Predict(input)
	require.NoError(t, err)

	bad := net.Snapshot()
	bad.Weights[0][0] = bad.Weights[0][0][:1]
	require.Error(t, net.Restore(bad))

	got, err := net.Predict(input)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEvaluateConfusion(t *testing.T) {
	net, err := NewNetwork(testConfig())
	require.NoError(t, err)
	samples := separableSamples(8, 300)
	_, err = net.Train(context.Background(), samples, 40)
	require.NoError(t, err)

	eval, err := net.Evaluate(samples)
	require.NoError(t, err)
	assert.Equal(t, len(samples), eval.Samples)
	require.Len(t, eval.Confusion, 3)

	total := 0
	for _, row := range eval.Confusion {
		for _, n := range row {
			total += n
		}
	}
	assert.Equal(t, len(samples), total, "confusion cells must sum to the sample count")
	assert.Len(t, eval.PerClass, 3)
	assert.Greater(t, eval.Accuracy, 0.5)

	t.Run("empty set", func(t *testing.T) {
		_, err := net.Evaluate(nil)
		assert.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("class out of range", func(t *testing.T) {
		_, err := net.Evaluate([]Sample{{Features: []float64{0, 0}, Class: 9}})
		assert.Error(t, err)
	})
}
