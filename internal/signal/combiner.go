package signal

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/quantfuse/quantfuse/internal/market"
	"github.com/quantfuse/quantfuse/internal/predict"
	"github.com/quantfuse/quantfuse/internal/regime"
)

// Action is the final trading decision.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// RuleSignal is one rule's vote: signed strength in [-1,1] and confidence
// in [0,1].
type RuleSignal struct {
	Strength   float64 `json:"strength"`
	Confidence float64 `json:"confidence"`
}

// Breakdown records every sub-signal and effective weight that produced a
// decision, for post-hoc audit.
type Breakdown struct {
	Trend             RuleSignal          `json:"trend"`
	Reversion         RuleSignal          `json:"reversion"`
	TrendWeight       float64             `json:"trend_weight"`
	ReversionWeight   float64             `json:"reversion_weight"`
	RuleStrength      float64             `json:"rule_strength"`
	RuleConfidence    float64             `json:"rule_confidence"`
	Predictor         *predict.Prediction `json:"predictor,omitempty"`
	PredictorStrength float64             `json:"predictor_strength"`
	PredictorWeight   float64             `json:"predictor_weight"`
	RegimeSource      string              `json:"regime_source"` // "hmm", "heuristic" or "none"
}

// CombinedSignal is the fused decision: a value type recreated per call.
type CombinedSignal struct {
	Action           Action      `json:"action"`
	Strength         float64     `json:"strength"`   // signed, [-1,1]
	Confidence       float64     `json:"confidence"` // [0,1]
	Regime           regime.Type `json:"regime"`
	RegimeConfidence float64     `json:"regime_confidence"`
	Breakdown        Breakdown   `json:"breakdown"`
}

// Combiner fuses rule and predictor evidence under the regime weight table.
// It is stateless beyond its configuration: no call mutates the supplied
// detector or predictor.
type Combiner struct {
	cfg       Config
	heuristic *regime.Heuristic
}

// NewCombiner creates a combiner, validating the configuration loudly.
func NewCombiner(cfg Config) (*Combiner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("combiner config: %w", err)
	}
	return &Combiner{cfg: cfg, heuristic: regime.NewHeuristic(cfg.Heuristic)}, nil
}

// Generate produces the fused decision for one bar.
//
// The regime ladder prefers the trained detector's belief and falls back to
// the volatility/return heuristic. The predictor contributes only when
// available and fed a non-nil feature vector; its weight is adjusted by the
// agreement between its direction and the rule consensus.
func (c *Combiner) Generate(
	trend, reversion RuleSignal,
	pred PredictorSource, features market.FeatureVector,
	det DetectorSource, obs []market.Observation,
) CombinedSignal {
	detection := c.detectRegime(det, obs)

	row := c.weightsFor(detection.Regime)
	ruleStrength := row.Trend*trend.Strength + row.Reversion*reversion.Strength
	ruleConfidence := row.Trend*trend.Confidence + row.Reversion*reversion.Confidence

	breakdown := Breakdown{
		Trend:           trend,
		Reversion:       reversion,
		TrendWeight:     row.Trend,
		ReversionWeight: row.Reversion,
		RuleStrength:    ruleStrength,
		RuleConfidence:  ruleConfidence,
		RegimeSource:    detection.source,
	}

	strength := ruleStrength
	confidence := ruleConfidence

	if net, ok := pred.Get(); ok && features != nil {
		if prediction, err := net.PredictSignal(features); err != nil {
			// Shape mismatch is a wiring bug: surface it, then decide
			// rule-only for this bar.
			log.Error().Err(err).Msg("predictor rejected features, deciding rule-only")
		} else {
			predStrength := labelDirection(prediction.Label) * prediction.Confidence
			weight := c.predictorWeight(prediction, ruleStrength)

			breakdown.Predictor = &prediction
			breakdown.PredictorStrength = predStrength
			breakdown.PredictorWeight = weight

			strength = (1-weight)*ruleStrength + weight*predStrength
			confidence = (1-weight)*ruleConfidence + weight*prediction.Confidence
		}
	}

	return CombinedSignal{
		Action:           c.action(strength),
		Strength:         clampSigned(strength),
		Confidence:       clampUnit(confidence),
		Regime:           detection.Regime,
		RegimeConfidence: detection.Confidence,
		Breakdown:        breakdown,
	}
}

type sourcedDetection struct {
	regime.Detection
	source string
}

// detectRegime walks the fallback ladder: trained HMM, then heuristic,
// then the unknown sentinel.
func (c *Combiner) detectRegime(det DetectorSource, obs []market.Observation) sourcedDetection {
	if d, ok := det.Get(); ok {
		detection, err := d.CurrentRegime(obs)
		if err == nil && detection.Regime != regime.Unknown {
			return sourcedDetection{Detection: detection, source: "hmm"}
		}
	}
	if len(obs) > 0 {
		detection := c.heuristic.Classify(obs)
		if detection.Regime != regime.Unknown {
			return sourcedDetection{Detection: detection, source: "heuristic"}
		}
	}
	return sourcedDetection{Detection: regime.UnknownDetection(), source: "none"}
}

// weightsFor resolves the regime row, falling back to the Unknown row for
// unmapped regimes.
func (c *Combiner) weightsFor(r regime.Type) WeightRow {
	if row, ok := c.cfg.Weights[r]; ok {
		return row
	}
	return c.cfg.Weights[regime.Unknown]
}

// predictorWeight applies the agreement-aware adjustment, the combiner's
// central design decision: confident agreement amplifies (capped),
// confident disagreement damps, low confidence pins the weight to the
// floor regardless of direction.
func (c *Combiner) predictorWeight(p predict.Prediction, ruleStrength float64) float64 {
	if p.Confidence < c.cfg.ConfidenceThreshold {
		return c.cfg.MinMLWeight
	}

	dir := labelDirection(p.Label)
	switch {
	case dir == 0 || ruleStrength == 0:
		return c.cfg.MLBaseWeight
	case dir*ruleStrength > 0:
		return math.Min(c.cfg.MLBaseWeight*c.cfg.AgreementBoost, c.cfg.MLWeightCap)
	default:
		return c.cfg.MLBaseWeight * c.cfg.DisagreementDamp
	}
}

// action applies the dead-zone thresholds to the fused strength.
func (c *Combiner) action(strength float64) Action {
	switch {
	case strength > c.cfg.DeadZone:
		return Buy
	case strength < -c.cfg.DeadZone:
		return Sell
	default:
		return Hold
	}
}

// labelDirection maps a class label to its signed direction.
func labelDirection(label string) float64 {
	switch label {
	case "buy", "up":
		return 1
	case "sell", "down":
		return -1
	default:
		return 0
	}
}

func clampSigned(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
