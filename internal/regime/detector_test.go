package regime

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfuse/quantfuse/internal/market"
)

// twoStateConfig separates a calm and a wild regime with well-spread priors
// so EM converges to the intended assignment on synthetic data.
func twoStateConfig() Config {
	cfg := DefaultConfig()
	cfg.States = []StatePrior{
		{Name: RangeBound, Means: []float64{0.0, 0.005, 1.0}, Variances: []float64{5e-5, 1e-5, 0.05}},
		{Name: HighVol, Means: []float64{0.0, 0.04, 1.3}, Variances: []float64{1e-3, 1e-4, 0.2}},
	}
	return cfg
}

// syntheticObs emits count observations per phase: a calm phase followed by
// a wild one.
func syntheticObs(seed int64, count int) []market.Observation {
	rng := rand.New(rand.NewSource(seed))
	obs := make([]market.Observation, 0, 2*count)
	for i := 0; i < count; i++ {
		obs = append(obs, market.Observation{
			Return:      rng.NormFloat64() * 0.004,
			Volatility:  0.005 + rng.Float64()*0.002,
			VolumeRatio: 0.9 + rng.Float64()*0.2,
		})
	}
	for i := 0; i < count; i++ {
		obs = append(obs, market.Observation{
			Return:      rng.NormFloat64() * 0.03,
			Volatility:  0.035 + rng.Float64()*0.01,
			VolumeRatio: 1.2 + rng.Float64()*0.4,
		})
	}
	return obs
}

// driftObs emits count observations per phase with matching volatility and
// volume, so only the mean return distinguishes the phases.
func driftObs(seed int64, count int, meanA, meanB float64) []market.Observation {
	rng := rand.New(rand.NewSource(seed))
	obs := make([]market.Observation, 0, 2*count)
	phase := func(mean float64) {
		for i := 0; i < count; i++ {
			obs = append(obs, market.Observation{
				Return:      mean + rng.NormFloat64()*0.002,
				Volatility:  0.008 + rng.Float64()*0.002,
				VolumeRatio: 0.95 + rng.Float64()*0.1,
			})
		}
	}
	phase(meanA)
	phase(meanB)
	return obs
}

func TestDetectorSeparatesByMeanReturn(t *testing.T) {
	// Identical volatility priors: only the return mean can carry the
	// separation between the two states.
	cfg := DefaultConfig()
	cfg.States = []StatePrior{
		{Name: Bull, Means: []float64{0.005, 0.009, 1.0}, Variances: []float64{1e-5, 1e-5, 0.05}},
		{Name: RangeBound, Means: []float64{0.0, 0.009, 1.0}, Variances: []float64{1e-5, 1e-5, 0.05}},
	}
	det, err := NewDetector(cfg)
	require.NoError(t, err)

	const phase = 80
	obs := driftObs(11, phase, 0.005, 0.0)
	require.NoError(t, det.Fit(context.Background(), obs))
	require.True(t, det.Trained())

	path, err := det.Decode(obs)
	require.NoError(t, err)
	require.Len(t, path, len(obs))

	firstBull, secondBull := 0, 0
	for i, state := range path {
		if state != Bull {
			continue
		}
		if i < phase {
			firstBull++
		} else {
			secondBull++
		}
	}
	assert.Greater(t, firstBull, phase/2,
		"the positive-drift half should decode mostly to the higher-mean state")
	assert.Less(t, secondBull, phase/2,
		"the flat half should decode away from the higher-mean state")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"one state", func(c *Config) { c.States = c.States[:1] }, true},
		{"duplicate names", func(c *Config) { c.States[1].Name = c.States[0].Name }, true},
		{"wrong prior dim", func(c *Config) { c.States[0].Means = []float64{0.1} }, true},
		{"zero variance prior", func(c *Config) { c.States[0].Variances[1] = 0 }, true},
		{"bad max_iter", func(c *Config) { c.MaxIter = 0 }, true},
		{"bad tolerance", func(c *Config) { c.Tolerance = -1 }, true},
		{"bad min_observations", func(c *Config) { c.MinObs = 1 }, true},
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

func TestDetectorFitInsufficientData(t *testing.T) {
	det, err := NewDetector(twoStateConfig())
	require.NoError(t, err)

	err = det.Fit(context.Background(), syntheticObs(1, 2)[:4])
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.False(t, det.Trained(), "failed fit must not mark the detector trained")
}

func TestDetectorUntrained(t *testing.T) {
	det, err := NewDetector(twoStateConfig())
	require.NoError(t, err)
	obs := syntheticObs(1, 30)

	_, err = det.Decode(obs)
	assert.ErrorIs(t, err, ErrNotTrained)

	detection, err := det.CurrentRegime(obs)
	assert.ErrorIs(t, err, ErrNotTrained)
	assert.Equal(t, Unknown, detection.Regime)
}

func TestDetectorSeparatesRegimes(t *testing.T) {
	det, err := NewDetector(twoStateConfig())
	require.NoError(t, err)

	const phase = 80
	obs := syntheticObs(7, phase)
	require.NoError(t, det.Fit(context.Background(), obs))
	require.True(t, det.Trained())

	// Fitted parameters stay proper distributions.
	model := det.Snapshot()
	priorSum := 0.0
	for _, p := range model.Prior {
		assert.GreaterOrEqual(t, p, 0.0)
		priorSum += p
	}
	assert.InDelta(t, 1.0, priorSum, 1e-3)
	for i, row := range model.Transition {
		rowSum := 0.0
		for _, p := range row {
			assert.GreaterOrEqual(t, p, 0.0, "transition row %d", i)
			rowSum += p
		}
		assert.InDelta(t, 1.0, rowSum, 1e-3, "transition row %d", i)
	}

	path, err := det.Decode(obs)
	require.NoError(t, err)
	require.Len(t, path, len(obs))

	calmHits, wildHits := 0, 0
	for i := 0; i < phase; i++ {
		if path[i] == RangeBound {
			calmHits++
		}
	}
	for i := phase; i < 2*phase; i++ {
		if path[i] == HighVol {
			wildHits++
		}
	}
	assert.Greater(t, calmHits, phase*7/10, "calm phase should decode mostly range_bound")
	assert.Greater(t, wildHits, phase*7/10, "wild phase should decode mostly high_vol")
}

func TestDetectorCurrentRegime(t *testing.T) {
	det, err := NewDetector(twoStateConfig())
	require.NoError(t, err)

	obs := syntheticObs(11, 60)
	require.NoError(t, det.Fit(context.Background(), obs))

	detection, err := det.CurrentRegime(obs)
	require.NoError(t, err)

	// Inference is idempotent.
	again, err := det.CurrentRegime(obs)
	require.NoError(t, err)
	assert.Equal(t, detection, again)

	assert.Equal(t, HighVol, detection.Regime, "sequence ends in the wild phase")
	assert.Greater(t, detection.Confidence, 0.0)
	assert.LessOrEqual(t, detection.Confidence, 1.0)

	sum := 0.0
	for _, p := range detection.Posterior {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-6, "posterior must be a distribution")

	t.Run("empty observations", func(t *testing.T) {
		detection, err := det.CurrentRegime(nil)
		require.NoError(t, err)
		assert.Equal(t, Unknown, detection.Regime)
	})
}

func TestDetectorFitCancelled(t *testing.T) {
	det, err := NewDetector(twoStateConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = det.Fit(ctx, syntheticObs(3, 40))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, det.Trained())
}

func TestDetectorSnapshotRestore(t *testing.T) {
	det, err := NewDetector(twoStateConfig())
	require.NoError(t, err)

	obs := syntheticObs(5, 60)
	require.NoError(t, det.Fit(context.Background(), obs))

	snap := det.Snapshot()
	require.NoError(t, snap.Validate())

	restored, err := NewDetector(twoStateConfig())
	require.NoError(t, err)
	require.NoError(t, restored.Restore(snap))
	require.True(t, restored.Trained())

	want, err := det.CurrentRegime(obs)
	require.NoError(t, err)
	got, err := restored.CurrentRegime(obs)
	require.NoError(t, err)
	assert.Equal(t, want.Regime, got.Regime)
	assert.InDelta(t, want.Confidence, got.Confidence, 1e-12)

	t.Run("snapshot is a copy", func(t *testing.T) {
		snap.Means[0][0] = 99
		after, err := det.CurrentRegime(obs)
		require.NoError(t, err)
		assert.InDelta(t, want.Confidence, after.Confidence, 1e-12)
	})

	t.Run("invalid model rejected", func(t *testing.T) {
		bad := det.Snapshot()
		bad.Variances[0] = bad.Variances[0][:1]
		assert.Error(t, restored.Restore(bad))
	})
}

func TestDetectorCloneIsIndependent(t *testing.T) {
	det, err := NewDetector(twoStateConfig())
	require.NoError(t, err)
	obs := syntheticObs(9, 60)

	clone := det.Clone()
	require.NoError(t, clone.Fit(context.Background(), obs))

	assert.True(t, clone.Trained())
	assert.False(t, det.Trained(), "fitting the clone must not touch the original")
}

func TestHeuristicClassify(t *testing.T) {
	h := NewHeuristic(DefaultHeuristicConfig())

	flat := func(n int, vol float64) []market.Observation {
		obs := make([]market.Observation, n)
		for i := range obs {
			sign := 1.0
			if i%2 == 1 {
				sign = -1
			}
			obs[i] = market.Observation{Return: sign * vol, Volatility: vol, VolumeRatio: 1}
		}
		return obs
	}

	t.Run("too short", func(t *testing.T) {
		d := h.Classify(flat(4, 0.01))
		assert.Equal(t, Unknown, d.Regime)
	})

	t.Run("trending", func(t *testing.T) {
		obs := flat(20, 0.01)
		// Recent window goes one-directional: strong mean vs tiny dispersion.
		for i := 15; i < 20; i++ {
			obs[i].Return = 0.01 + 0.0001*float64(i)
		}
		d := h.Classify(obs)
		assert.Contains(t, []Type{Trending, HighVolTrending}, d.Regime)
		assert.GreaterOrEqual(t, d.Confidence, 0.3)
		assert.LessOrEqual(t, d.Confidence, 0.9)
	})

	t.Run("low vol range", func(t *testing.T) {
		obs := flat(20, 0.02)
		for i := 15; i < 20; i++ {
			sign := 1.0
			if i%2 == 1 {
				sign = -1
			}
			obs[i].Return = sign * 0.001
		}
		d := h.Classify(obs)
		assert.Equal(t, LowVolRange, d.Regime)
	})

	t.Run("range bound default", func(t *testing.T) {
		d := h.Classify(flat(20, 0.01))
		assert.Equal(t, RangeBound, d.Regime)
	})
}
