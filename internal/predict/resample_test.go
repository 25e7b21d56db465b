package predict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imbalanced() []Sample {
	samples := make([]Sample, 0, 13)
	for i := 0; i < 10; i++ {
		samples = append(samples, Sample{Features: []float64{float64(i), 0}, Class: 1})
	}
	for i := 0; i < 2; i++ {
		samples = append(samples, Sample{Features: []float64{float64(i), 1}, Class: 0})
	}
	samples = append(samples, Sample{Features: []float64{0, 2}, Class: 2})
	return samples
}

func TestRebalanceEqualizesClasses(t *testing.T) {
	out := NewResampler(1).Rebalance(imbalanced())

	counts := map[int]int{}
	for _, s := range out {
		counts[s.Class]++
	}
	require.Len(t, counts, 3)
	assert.Equal(t, 10, counts[0])
	assert.Equal(t, 10, counts[1])
	assert.Equal(t, 10, counts[2])
}

func TestRebalanceDeterministic(t *testing.T) {
	in := imbalanced()
	a := NewResampler(42).Rebalance(in)
	b := NewResampler(42).Rebalance(in)
	assert.Equal(t, a, b, "same seed must reproduce the same resample")

	c := NewResampler(43).Rebalance(in)
	assert.NotEqual(t, a, c, "different seeds should shuffle differently")
}

func TestRebalanceLeavesInputAlone(t *testing.T) {
	in := imbalanced()
	want := append([]Sample(nil), in...)

	_ = NewResampler(1).Rebalance(in)
	assert.Equal(t, want, in)
}

func TestRebalanceEmpty(t *testing.T) {
	assert.Nil(t, NewResampler(1).Rebalance(nil))
}
