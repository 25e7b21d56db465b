package market

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData indicates the trailing window is too short to derive
// observations or features. Callers treat it as "not ready", not a failure.
var ErrInsufficientData = errors.New("insufficient market data")

// ObservationDim is the fixed dimensionality of regime observations:
// bar return, realized volatility, and volume ratio.
const ObservationDim = 3

// Observation represents the per-bar statistics the regime detector
// consumes. Immutable once extracted.
type Observation struct {
	Return      float64 `json:"return"`
	Volatility  float64 `json:"volatility"`
	VolumeRatio float64 `json:"volume_ratio"`
}

// Vector returns the observation as a fixed-length slice in the canonical
// dimension order.
func (o Observation) Vector() []float64 {
	return []float64{o.Return, o.Volatility, o.VolumeRatio}
}

// ExtractObservations derives one observation per bar from the trailing
// series. Realized volatility and the volume baseline both use volWindow
// trailing bars, so the series must span at least 2x volWindow bars.
func ExtractObservations(bars []Bar, volWindow int) ([]Observation, error) {
	if volWindow < 2 {
		return nil, fmt.Errorf("volatility window must be >= 2, got %d", volWindow)
	}
	if len(bars) < 2*volWindow {
		return nil, fmt.Errorf("%w: need %d bars for a %d-bar volatility window, have %d",
			ErrInsufficientData, 2*volWindow, volWindow, len(bars))
	}

	returns := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		returns[i] = bars[i].Close/bars[i-1].Close - 1
	}

	obs := make([]Observation, 0, len(bars)-volWindow)
	for i := volWindow; i < len(bars); i++ {
		window := returns[i-volWindow+1 : i+1]
		vol := stat.StdDev(window, nil)

		avgVolume := 0.0
		for j := i - volWindow + 1; j <= i; j++ {
			avgVolume += bars[j].Volume
		}
		avgVolume /= float64(volWindow)

		volumeRatio := 1.0
		if avgVolume > 0 {
			volumeRatio = bars[i].Volume / avgVolume
		}

		obs = append(obs, Observation{
			Return:      returns[i],
			Volatility:  vol,
			VolumeRatio: volumeRatio,
		})
	}
	return obs, nil
}

// ObservationMatrix flattens observations into row vectors for model code
// that works on raw dimensions.
func ObservationMatrix(obs []Observation) [][]float64 {
	rows := make([][]float64, len(obs))
	for i, o := range obs {
		rows[i] = o.Vector()
	}
	return rows
}
