package regime

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"

	"github.com/quantfuse/quantfuse/internal/market"
)

// Detector is a Gaussian-emission HMM over the configured regime set.
// Emissions are diagonal-covariance: dimensions are modeled independently
// per state, a deliberate simplification.
//
// A Detector owns its parameters exclusively. Fit is the only mutating
// operation; Decode and CurrentRegime are read-only and idempotent. For
// concurrent serving, train a Clone and publish it with an atomic swap.
type Detector struct {
	cfg   Config
	model *Model
}

// NewDetector creates a detector seeded with regime-informed priors.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("regime config: %w", err)
	}
	return &Detector{cfg: cfg, model: newModel(cfg)}, nil
}

// Trained reports whether at least one fit pass has completed.
func (d *Detector) Trained() bool { return d.model.Trained }

// States returns the ordered regime labels.
func (d *Detector) States() []Type { return append([]Type(nil), d.model.States...) }

// Clone returns an independent detector with a deep-copied model.
func (d *Detector) Clone() *Detector {
	return &Detector{cfg: d.cfg, model: d.model.Clone()}
}

// Fit runs Baum-Welch EM over the observation sequence, up to MaxIter
// iterations or until the log-likelihood improvement drops below Tolerance
// after at least two iterations. On any error the detector is left
// untouched. The context is checked between iterations.
func (d *Detector) Fit(ctx context.Context, obs []market.Observation) error {
	if len(obs) < d.cfg.MinObs {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, len(obs), d.cfg.MinObs)
	}

	m := d.model.Clone()
	x := market.ObservationMatrix(obs)
	n := len(m.States)
	T := len(x)

	prevLL := math.Inf(-1)
	for iter := 0; iter < d.cfg.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("fit cancelled at iteration %d: %w", iter, err)
		}

		logAlpha, ll := m.forward(x)
		logBeta := m.backward(x)

		// State occupancy gamma[t][i] in probability space.
		gamma := make([][]float64, T)
		for t := 0; t < T; t++ {
			gamma[t] = make([]float64, n)
			for i := 0; i < n; i++ {
				gamma[t][i] = math.Exp(logAlpha[t][i] + logBeta[t][i] - ll)
			}
		}

		// Transition occupancy accumulated over t = 0..T-2.
		transNum := make([][]float64, n)
		transDen := make([]float64, n)
		for i := 0; i < n; i++ {
			transNum[i] = make([]float64, n)
		}
		for t := 0; t < T-1; t++ {
			for i := 0; i < n; i++ {
				transDen[i] += gamma[t][i]
				for j := 0; j < n; j++ {
					transNum[i][j] += math.Exp(
						logAlpha[t][i] + safeLog(m.Transition[i][j]) +
							m.logEmit(j, x[t+1]) + logBeta[t+1][j] - ll)
				}
			}
		}

		// M-step: prior, transition rows, occupancy-weighted moments.
		copy(m.Prior, gamma[0])
		normalize(m.Prior)
		for i := 0; i < n; i++ {
			if transDen[i] > 0 {
				for j := 0; j < n; j++ {
					m.Transition[i][j] = transNum[i][j] / transDen[i]
				}
			}
			normalize(m.Transition[i])
		}
		for i := 0; i < n; i++ {
			occ := 0.0
			for t := 0; t < T; t++ {
				occ += gamma[t][i]
			}
			if occ <= 0 {
				continue // starved state keeps its previous moments
			}
			for dim := 0; dim < market.ObservationDim; dim++ {
				mean := 0.0
				for t := 0; t < T; t++ {
					mean += gamma[t][i] * x[t][dim]
				}
				mean /= occ

				variance := 0.0
				for t := 0; t < T; t++ {
					diff := x[t][dim] - mean
					variance += gamma[t][i] * diff * diff
				}
				variance /= occ
				if variance < d.cfg.VarianceFloor {
					variance = d.cfg.VarianceFloor
				}
				m.Means[i][dim] = mean
				m.Variances[i][dim] = variance
			}
		}

		log.Debug().
			Int("iteration", iter).
			Float64("log_likelihood", ll).
			Msg("baum-welch iteration")

		if iter >= 2 && ll-prevLL < d.cfg.Tolerance {
			break
		}
		prevLL = ll
	}

	m.Trained = true
	d.model = m
	log.Info().
		Int("observations", len(obs)).
		Int("states", n).
		Msg("regime model fitted")
	return nil
}

// Decode returns the single most probable hidden-state path via log-space
// Viterbi. Ties break toward the first-seen maximum.
func (d *Detector) Decode(obs []market.Observation) ([]Type, error) {
	if !d.model.Trained {
		return nil, ErrNotTrained
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("%w: empty sequence", ErrInsufficientData)
	}

	m := d.model
	x := market.ObservationMatrix(obs)
	n := len(m.States)
	T := len(x)

	delta := make([][]float64, T)
	backptr := make([][]int, T)
	for t := range delta {
		delta[t] = make([]float64, n)
		backptr[t] = make([]int, n)
	}
	for i := 0; i < n; i++ {
		delta[0][i] = safeLog(m.Prior[i]) + m.logEmit(i, x[0])
	}
	for t := 1; t < T; t++ {
		for j := 0; j < n; j++ {
			best := math.Inf(-1)
			bestIdx := 0
			for i := 0; i < n; i++ {
				v := delta[t-1][i] + safeLog(m.Transition[i][j])
				if v > best {
					best = v
					bestIdx = i
				}
			}
			delta[t][j] = best + m.logEmit(j, x[t])
			backptr[t][j] = bestIdx
		}
	}

	last := 0
	best := delta[T-1][0]
	for i := 1; i < n; i++ {
		if delta[T-1][i] > best {
			best = delta[T-1][i]
			last = i
		}
	}

	path := make([]Type, T)
	path[T-1] = m.States[last]
	for t := T - 1; t > 0; t-- {
		last = backptr[t][last]
		path[t-1] = m.States[last]
	}
	return path, nil
}

// CurrentRegime runs a single forward pass and returns the arg-max regime,
// its probability, and the full posterior. Empty input yields the explicit
// unknown sentinel rather than an error.
func (d *Detector) CurrentRegime(obs []market.Observation) (Detection, error) {
	if !d.model.Trained {
		return UnknownDetection(), ErrNotTrained
	}
	if len(obs) == 0 {
		return UnknownDetection(), nil
	}

	m := d.model
	x := market.ObservationMatrix(obs)
	logAlpha, ll := m.forward(x)

	last := logAlpha[len(x)-1]
	posterior := make(map[Type]float64, len(m.States))
	bestIdx := 0
	bestLog := math.Inf(-1)
	for i, lp := range last {
		posterior[m.States[i]] = math.Exp(lp - ll)
		if lp > bestLog {
			bestLog = lp
			bestIdx = i
		}
	}

	return Detection{
		Regime:     m.States[bestIdx],
		Confidence: posterior[m.States[bestIdx]],
		Posterior:  posterior,
	}, nil
}

// Snapshot returns a deep copy of the model as plain structured data.
func (d *Detector) Snapshot() *Model { return d.model.Clone() }

// Restore replaces the detector's parameters with a previously snapshotted
// model. Shape errors fail loudly.
func (d *Detector) Restore(m *Model) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("restore regime model: %w", err)
	}
	d.model = m.Clone()
	return nil
}

// forward computes log-space forward probabilities and the sequence
// log-likelihood using log-sum-exp across states at each step.
func (m *Model) forward(x [][]float64) ([][]float64, float64) {
	n := len(m.States)
	T := len(x)
	logAlpha := make([][]float64, T)
	for t := range logAlpha {
		logAlpha[t] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		logAlpha[0][i] = safeLog(m.Prior[i]) + m.logEmit(i, x[0])
	}
	acc := make([]float64, n)
	for t := 1; t < T; t++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				acc[i] = logAlpha[t-1][i] + safeLog(m.Transition[i][j])
			}
			logAlpha[t][j] = floats.LogSumExp(acc) + m.logEmit(j, x[t])
		}
	}
	return logAlpha, floats.LogSumExp(logAlpha[T-1])
}

// backward computes log-space backward probabilities.
func (m *Model) backward(x [][]float64) [][]float64 {
	n := len(m.States)
	T := len(x)
	logBeta := make([][]float64, T)
	for t := range logBeta {
		logBeta[t] = make([]float64, n)
	}
	// logBeta[T-1] stays zero: log(1)
	acc := make([]float64, n)
	for t := T - 2; t >= 0; t-- {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				acc[j] = safeLog(m.Transition[i][j]) + m.logEmit(j, x[t+1]) + logBeta[t+1][j]
			}
			logBeta[t][i] = floats.LogSumExp(acc)
		}
	}
	return logBeta
}

// logEmit is the diagonal-Gaussian log density of an observation under one
// state. Variances are floored at fit time so the density stays finite.
func (m *Model) logEmit(state int, x []float64) float64 {
	lp := 0.0
	for dim := range x {
		v := m.Variances[state][dim]
		diff := x[dim] - m.Means[state][dim]
		lp += -0.5*math.Log(2*math.Pi*v) - diff*diff/(2*v)
	}
	return lp
}

// safeLog floors the argument just above zero to avoid -Inf blowups in
// transition products.
func safeLog(p float64) float64 {
	if p < 1e-300 {
		p = 1e-300
	}
	return math.Log(p)
}

// normalize scales a probability vector to sum to 1, falling back to
// uniform when the mass vanishes.
func normalize(p []float64) {
	sum := floats.Sum(p)
	if sum <= 0 || math.IsNaN(sum) {
		for i := range p {
			p[i] = 1.0 / float64(len(p))
		}
		return
	}
	for i := range p {
		p[i] /= sum
	}
}
