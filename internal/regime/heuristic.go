package regime

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/quantfuse/quantfuse/internal/market"
)

// HeuristicConfig holds thresholds for the fallback classifier used when no
// trained HMM is available.
type HeuristicConfig struct {
	// MinObs: observations required before classifying (Unknown below this).
	MinObs int `yaml:"min_observations" json:"min_observations"`
	// RecentWindow: trailing observations treated as "now" for the
	// volatility ratio. The full window must be at least twice this.
	RecentWindow int `yaml:"recent_window" json:"recent_window"`
	// TrendStrength: |mean return| must exceed this multiple of the recent
	// volatility to call the market trending.
	TrendStrength float64 `yaml:"trend_strength" json:"trend_strength"`
	// HighVolRatio: recent/baseline volatility above this marks high vol.
	HighVolRatio float64 `yaml:"high_vol_ratio" json:"high_vol_ratio"`
	// LowVolRatio: recent/baseline volatility below this marks low vol.
	LowVolRatio float64 `yaml:"low_vol_ratio" json:"low_vol_ratio"`
}

// DefaultHeuristicConfig returns the default fallback thresholds.
func DefaultHeuristicConfig() HeuristicConfig {
	return HeuristicConfig{
		MinObs:        10,
		RecentWindow:  5,
		TrendStrength: 0.5,
		HighVolRatio:  1.5,
		LowVolRatio:   0.6,
	}
}

// Heuristic classifies the regime from volatility ratio and return
// magnitude alone. It is the combiner's fallback ladder rung when the HMM
// detector is unavailable or untrained.
type Heuristic struct {
	cfg HeuristicConfig
}

// NewHeuristic creates a fallback classifier.
func NewHeuristic(cfg HeuristicConfig) *Heuristic {
	if cfg.MinObs <= 0 {
		cfg = DefaultHeuristicConfig()
	}
	return &Heuristic{cfg: cfg}
}

// Classify partitions the trailing observations into
// trending / high_vol_trending / range_bound / low_vol_range, or Unknown
// when the window is too short to say anything.
func (h *Heuristic) Classify(obs []market.Observation) Detection {
	cfg := h.cfg
	if len(obs) < cfg.MinObs || len(obs) < 2*cfg.RecentWindow {
		return UnknownDetection()
	}

	returns := make([]float64, len(obs))
	for i, o := range obs {
		returns[i] = o.Return
	}

	recent := returns[len(returns)-cfg.RecentWindow:]
	baseline := returns[:len(returns)-cfg.RecentWindow]

	recentVol := stat.StdDev(recent, nil)
	baselineVol := stat.StdDev(baseline, nil)

	volRatio := 1.0
	if baselineVol > 0 {
		volRatio = recentVol / baselineVol
	}

	meanReturn := stat.Mean(recent, nil)
	trendScore := 0.0
	if recentVol > 0 {
		trendScore = math.Abs(meanReturn) / recentVol
	}

	switch {
	case trendScore > cfg.TrendStrength && volRatio > cfg.HighVolRatio:
		return heuristicDetection(HighVolTrending, trendScore/cfg.TrendStrength)
	case trendScore > cfg.TrendStrength:
		return heuristicDetection(Trending, trendScore/cfg.TrendStrength)
	case volRatio < cfg.LowVolRatio:
		return heuristicDetection(LowVolRange, cfg.LowVolRatio/math.Max(volRatio, 1e-9))
	default:
		return heuristicDetection(RangeBound, 1/math.Max(trendScore/cfg.TrendStrength, 1e-9))
	}
}

// heuristicDetection scales an excess-over-threshold ratio into a bounded
// confidence, matching the 0.5 base the voting detectors use.
func heuristicDetection(t Type, excess float64) Detection {
	conf := 0.5 + 0.4*math.Min(excess-1, 1)
	if conf < 0.3 {
		conf = 0.3
	}
	if conf > 0.9 {
		conf = 0.9
	}
	return Detection{Regime: t, Confidence: conf}
}
