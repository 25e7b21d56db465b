package market

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"gonum.org/v1/gonum/stat"
)

// FeatureVector is the normalized input consumed by the signal predictor.
// Every component is scaled into [0,1] or [-1,1].
type FeatureVector []float64

// FeatureProducer builds a feature vector from the trailing bar window.
// A nil result means "predictor unavailable" for this bar and the caller
// must proceed rule-only.
type FeatureProducer interface {
	Features(bars []Bar) FeatureVector
}

// WindowFeatures is the reference feature producer: short- and medium-term
// returns, RSI, close z-score, and volume ratio over the trailing window.
type WindowFeatures struct {
	RSIPeriod    int
	ZScoreWindow int
}

// NewWindowFeatures creates the reference producer with the conventional
// 14-bar RSI and 20-bar z-score window.
func NewWindowFeatures() *WindowFeatures {
	return &WindowFeatures{RSIPeriod: 14, ZScoreWindow: 20}
}

// Dim returns the fixed feature dimensionality.
func (wf *WindowFeatures) Dim() int { return 5 }

// MinWindow returns the minimum trailing bars needed before features are
// produced.
func (wf *WindowFeatures) MinWindow() int {
	min := wf.ZScoreWindow
	if wf.RSIPeriod+1 > min {
		min = wf.RSIPeriod + 1
	}
	// +5 for the medium-term return lookback
	return min + 5
}

// Features derives the feature vector from the trailing window, or nil when
// the window is shorter than MinWindow.
func (wf *WindowFeatures) Features(bars []Bar) FeatureVector {
	if len(bars) < wf.MinWindow() {
		return nil
	}

	n := len(bars)
	last := bars[n-1].Close

	ret1 := last/bars[n-2].Close - 1
	ret5 := last/bars[n-6].Close - 1

	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	rsi := wf.lastRSI(closes)

	window := closes[n-wf.ZScoreWindow:]
	mean := stat.Mean(window, nil)
	sd := stat.StdDev(window, nil)
	zscore := 0.0
	if sd > 0 {
		zscore = (last - mean) / sd
	}

	avgVolume := stat.Mean(volumes[n-wf.ZScoreWindow:], nil)
	volumeRatio := 1.0
	if avgVolume > 0 {
		volumeRatio = volumes[n-1] / avgVolume
	}

	return FeatureVector{
		clamp(ret1*20, -1, 1), // saturates at a 5% single-bar move
		clamp(ret5*10, -1, 1),
		rsi / 100.0,
		clamp(zscore/3, -1, 1),
		clamp(volumeRatio/2, 0, 1),
	}
}

// lastRSI computes the most recent RSI value over the close series.
func (wf *WindowFeatures) lastRSI(closes []float64) float64 {
	rsi := momentum.NewRsiWithPeriod[float64](wf.RSIPeriod)
	values := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes)))
	if len(values) == 0 {
		return 50.0
	}
	v := values[len(values)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 50.0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
