// Package regime infers a latent market regime from bar statistics.
//
// The primary detector is a Gaussian-emission hidden Markov model fitted by
// Baum-Welch and queried by Viterbi decoding or a single forward pass. A
// threshold heuristic backs it up when no trained model is available.
package regime

import "errors"

// Type identifies a market regime. The HMM emits the configured regime set
// (bull/bear/range_bound/high_vol by default); the heuristic fallback emits
// the trending/range partition.
type Type string

const (
	Bull       Type = "bull"
	Bear       Type = "bear"
	RangeBound Type = "range_bound"
	HighVol    Type = "high_vol"

	// Heuristic fallback partition
	Trending        Type = "trending"
	HighVolTrending Type = "high_vol_trending"
	LowVolRange     Type = "low_vol_range"

	Unknown Type = "unknown"
)

var (
	// ErrInsufficientData indicates too few observations to fit or infer.
	ErrInsufficientData = errors.New("insufficient observations")
	// ErrNotTrained indicates inference was requested before a completed fit.
	ErrNotTrained = errors.New("regime model not trained")
)

// Detection is the result of a regime query: the arg-max regime, its
// probability, and the full posterior over the regime set.
type Detection struct {
	Regime     Type             `json:"regime"`
	Confidence float64          `json:"confidence"`
	Posterior  map[Type]float64 `json:"posterior,omitempty"`
}

// UnknownDetection is the sentinel returned for empty or unusable input.
func UnknownDetection() Detection {
	return Detection{Regime: Unknown, Confidence: 0}
}
