package signal

import (
	"github.com/quantfuse/quantfuse/internal/predict"
	"github.com/quantfuse/quantfuse/internal/regime"
)

// PredictorSource is the explicit capability wrapper for an optional
// predictor: either a concrete network or unavailable. The combiner
// matches on availability instead of probing for nils.
type PredictorSource struct {
	net *predict.Network
}

// AvailablePredictor wraps a network as an available source.
func AvailablePredictor(n *predict.Network) PredictorSource {
	return PredictorSource{net: n}
}

// NoPredictor is the unavailable predictor source.
func NoPredictor() PredictorSource { return PredictorSource{} }

// Get returns the network when the source is available and trained.
func (p PredictorSource) Get() (*predict.Network, bool) {
	if p.net == nil || !p.net.Trained() {
		return nil, false
	}
	return p.net, true
}

// DetectorSource is the explicit capability wrapper for an optional regime
// detector.
type DetectorSource struct {
	det *regime.Detector
}

// AvailableDetector wraps a detector as an available source.
func AvailableDetector(d *regime.Detector) DetectorSource {
	return DetectorSource{det: d}
}

// NoDetector is the unavailable detector source.
func NoDetector() DetectorSource { return DetectorSource{} }

// Get returns the detector when the source is available and trained.
func (d DetectorSource) Get() (*regime.Detector, bool) {
	if d.det == nil || !d.det.Trained() {
		return nil, false
	}
	return d.det, true
}
