package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfuse/quantfuse/internal/market"
	"github.com/quantfuse/quantfuse/internal/metrics"
	"github.com/quantfuse/quantfuse/internal/predict"
	"github.com/quantfuse/quantfuse/internal/regime"
	"github.com/quantfuse/quantfuse/internal/signal"
	"github.com/quantfuse/quantfuse/internal/strategy"
)

// ErrInsufficientHistory indicates too few bars for a walk-forward run. No
// partial simulation is produced.
var ErrInsufficientHistory = errors.New("insufficient history for walk-forward run")

// Scheduler owns the walk-forward loop. Model snapshots publish through
// atomic pointers: a retrain builds a fresh clone and swaps it in whole, so
// a concurrent reader never observes a partially updated parameter set.
type Scheduler struct {
	cfg      Config
	combiner *signal.Combiner
	rules    strategy.RuleSet
	features market.FeatureProducer

	detectorCfg  regime.Config
	predictorCfg predict.Config

	baselines []strategy.Baseline
	sizer     Sizer
	costs     CostModel

	livePredictor atomic.Pointer[predict.Network]
	liveDetector  atomic.Pointer[regime.Detector]
}

// NewScheduler wires the walk-forward scheduler. Configuration errors fail
// loudly here; data conditions surface later as structured results.
func NewScheduler(
	cfg Config,
	combiner *signal.Combiner,
	rules strategy.RuleSet,
	features market.FeatureProducer,
	detectorCfg regime.Config,
	predictorCfg predict.Config,
	baselines []strategy.Baseline,
	sizer Sizer,
	costs CostModel,
) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}
	if err := detectorCfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler detector config: %w", err)
	}
	if err := predictorCfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler predictor config: %w", err)
	}
	if combiner == nil || rules == nil || sizer == nil {
		return nil, fmt.Errorf("combiner, rules and sizer are required")
	}
	return &Scheduler{
		cfg:          cfg,
		combiner:     combiner,
		rules:        rules,
		features:     features,
		detectorCfg:  detectorCfg,
		predictorCfg: predictorCfg,
		baselines:    baselines,
		sizer:        sizer,
		costs:        costs,
	}, nil
}

// Predictor returns the currently published predictor snapshot, or nil
// before the first successful retrain.
func (s *Scheduler) Predictor() *predict.Network { return s.livePredictor.Load() }

// Detector returns the currently published detector snapshot, or nil
// before the first successful fit.
func (s *Scheduler) Detector() *regime.Detector { return s.liveDetector.Load() }

// Run executes the walk-forward simulation and the baseline loops over the
// same bars, bar N+1 strictly after bar N. The context is honored between
// bars and inside training calls.
func (s *Scheduler) Run(ctx context.Context, bars []market.Bar) (*Comparison, error) {
	if err := market.ValidateBars(bars); err != nil {
		return nil, fmt.Errorf("walk-forward input: %w", err)
	}
	if len(bars) <= s.cfg.MinHistory+s.cfg.Horizon {
		return nil, fmt.Errorf("%w: have %d bars, need more than %d",
			ErrInsufficientHistory, len(bars), s.cfg.MinHistory+s.cfg.Horizon)
	}

	adaptive, err := s.runAdaptive(ctx, bars)
	if err != nil {
		return nil, err
	}

	baselineRuns := make([]*EvaluationRun, 0, len(s.baselines))
	for _, b := range s.baselines {
		run, err := s.runBaseline(ctx, bars, b)
		if err != nil {
			return nil, err
		}
		baselineRuns = append(baselineRuns, run)
	}

	cmp := newComparison(s.cfg.Symbol, len(bars), adaptive, baselineRuns)
	log.Info().
		Str("comparison_id", cmp.ID).
		Float64("adaptive_return", adaptive.TotalReturn).
		Int("retrains", adaptive.RetrainCount).
		Msg("walk-forward comparison complete")
	return cmp, nil
}

// runAdaptive drives the combiner with periodic no-lookahead retraining.
func (s *Scheduler) runAdaptive(ctx context.Context, bars []market.Bar) (*EvaluationRun, error) {
	run := newRun("adaptive", s.cfg.Symbol)
	shell := NewPaperShell(s.cfg.InitialEquity, s.costs)
	risk := newRiskState()

	lastRetrain := -1
	lastRegime := regime.Unknown

	for t := s.cfg.MinHistory; t < len(bars); t++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run cancelled at bar %d: %w", t, err)
		}

		if lastRetrain < 0 || t-lastRetrain >= s.cfg.RetrainInterval {
			if err := s.retrain(ctx, bars, t, run); err != nil {
				return nil, fmt.Errorf("retrain at bar %d: %w", t, err)
			}
			lastRetrain = t
		}

		window := bars[:t+1]
		bar := bars[t]

		obs := s.trailingObservations(window)
		var features market.FeatureVector
		if s.features != nil {
			features = s.features.Features(window)
		}

		combined := s.combiner.Generate(
			s.rules.Trend(window),
			s.rules.Reversion(window),
			s.predictorSource(),
			features,
			s.detectorSource(),
			obs,
		)

		metrics.DecisionsTotal.WithLabelValues(string(combined.Action), string(combined.Regime)).Inc()
		if combined.Regime != lastRegime {
			metrics.RegimeTransitions.WithLabelValues(string(lastRegime), string(combined.Regime)).Inc()
			lastRegime = combined.Regime
		}

		exited := s.manageRisk(shell, risk, bar)
		if !exited {
			s.act(shell, risk, bar, combined.Action, combined.Confidence)
		}
		risk.observe(shell.GetPosition(s.cfg.Symbol), bar.Close)

		run.mark(bar.Timestamp, shell.PortfolioValue(s.cfg.Symbol, bar.Close))
	}

	if err := run.finalize(s.cfg.InitialEquity, shell.Trades()); err != nil {
		return nil, err
	}
	return run, nil
}

// runBaseline replays the identical loop mechanics for a static strategy.
func (s *Scheduler) runBaseline(ctx context.Context, bars []market.Bar, b strategy.Baseline) (*EvaluationRun, error) {
	run := newRun(b.Name(), s.cfg.Symbol)
	shell := NewPaperShell(s.cfg.InitialEquity, s.costs)
	risk := newRiskState()

	for t := s.cfg.MinHistory; t < len(bars); t++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("baseline %s cancelled at bar %d: %w", b.Name(), t, err)
		}

		window := bars[:t+1]
		bar := bars[t]

		exited := s.manageRisk(shell, risk, bar)
		if !exited {
			s.act(shell, risk, bar, b.Action(window), 1.0)
		}
		risk.observe(shell.GetPosition(s.cfg.Symbol), bar.Close)

		run.mark(bar.Timestamp, shell.PortfolioValue(s.cfg.Symbol, bar.Close))
	}

	if err := run.finalize(s.cfg.InitialEquity, shell.Trades()); err != nil {
		return nil, err
	}
	return run, nil
}

// retrain rebuilds the predictor (and refits the detector) on history whose
// labels are fully realized before the current bar. A retrain that cannot
// produce enough samples keeps the previously published model; a shape
// mismatch between the feature producer and the input layer is a wiring
// defect, not a data condition, and fails the run.
func (s *Scheduler) retrain(ctx context.Context, bars []market.Bar, t int, run *EvaluationRun) error {
	started := time.Now()

	samples := s.buildSamples(bars, t)
	if len(samples) < s.cfg.MinTrainSamples {
		metrics.RetrainsTotal.WithLabelValues("skipped").Inc()
		log.Warn().
			Int("bar", t).
			Int("samples", len(samples)).
			Int("required", s.cfg.MinTrainSamples).
			Msg("retrain skipped, keeping last model")
		return nil
	}

	// Copy-on-write: train a clone, publish whole.
	net := s.livePredictor.Load()
	if net == nil {
		fresh, err := predict.NewNetwork(s.predictorCfg)
		if err != nil {
			metrics.RetrainsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("predictor construction: %w", err)
		}
		net = fresh
	} else {
		net = net.Clone()
	}

	if got := len(samples[0].Features); got != net.InputDim() {
		metrics.RetrainsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: feature producer emits %d features, input layer is %d",
			predict.ErrShapeMismatch, got, net.InputDim())
	}

	// Per-retrain seed keeps the balanced resample reproducible end to end.
	resampler := predict.NewResampler(s.cfg.Seed + int64(t))

	if err := s.twoPhaseTrain(ctx, net, samples, resampler); err != nil {
		metrics.RetrainsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, predict.ErrShapeMismatch) {
			return err
		}
		log.Error().Err(err).Int("bar", t).Msg("retrain failed, keeping last model")
		return nil
	}
	s.livePredictor.Store(net)

	s.refitDetector(ctx, bars, t)

	metrics.RetrainsTotal.WithLabelValues("ok").Inc()
	metrics.RetrainDuration.Observe(time.Since(started).Seconds())
	run.recordRetrain(bars[t].Timestamp)
	log.Info().
		Int("bar", t).
		Int("samples", len(samples)).
		Msg("predictor retrained")
	return nil
}

// twoPhaseTrain applies the retrain schedule: a coarse pass at the higher
// rate, a fine-tune pass at the reduced rate, then the base rate restored
// for the next cycle.
func (s *Scheduler) twoPhaseTrain(ctx context.Context, net *predict.Network, samples []predict.Sample, rs *predict.Resampler) error {
	if err := net.SetLearningRate(s.cfg.PhaseOneRate); err != nil {
		return err
	}
	if _, err := net.TrainBalanced(ctx, samples, s.cfg.Epochs, rs); err != nil {
		return err
	}
	if s.cfg.PhaseTwoEpochs > 0 {
		if err := net.SetLearningRate(s.cfg.PhaseTwoRate); err != nil {
			return err
		}
		if _, err := net.TrainBalanced(ctx, samples, s.cfg.PhaseTwoEpochs, rs); err != nil {
			return err
		}
	}
	return net.SetLearningRate(s.predictorCfg.LearningRate)
}

// refitDetector refits a detector clone on the expanding history and
// publishes it; fit failures keep the previous snapshot.
func (s *Scheduler) refitDetector(ctx context.Context, bars []market.Bar, t int) {
	obs, err := market.ExtractObservations(bars[:t], s.cfg.VolWindow)
	if err != nil {
		log.Warn().Err(err).Int("bar", t).Msg("detector refit skipped")
		return
	}

	det := s.liveDetector.Load()
	if det == nil {
		fresh, err := regime.NewDetector(s.detectorCfg)
		if err != nil {
			log.Error().Err(err).Msg("detector construction failed")
			return
		}
		det = fresh
	} else {
		det = det.Clone()
	}

	if err := det.Fit(ctx, obs); err != nil {
		log.Warn().Err(err).Int("bar", t).Msg("detector refit failed, keeping last model")
		return
	}
	s.liveDetector.Store(det)
}

// buildSamples assembles the no-lookahead training set for a retrain at bar
// t: only base bars whose forward-return label is realized strictly before
// t may contribute, so every base bar index i satisfies i < t - horizon.
func (s *Scheduler) buildSamples(bars []market.Bar, t int) []predict.Sample {
	if s.features == nil {
		return nil
	}

	neutral := s.predictorCfg.NeutralClass
	samples := make([]predict.Sample, 0, t)
	for i := 0; i+s.cfg.Horizon < t; i++ {
		features := s.features.Features(bars[:i+1])
		if features == nil {
			continue
		}

		futureReturn := bars[i+s.cfg.Horizon].Close/bars[i].Close - 1
		class := neutral
		switch {
		case futureReturn > s.cfg.ReturnThreshold:
			class = s.classIndex("buy", "up")
		case futureReturn < -s.cfg.ReturnThreshold:
			class = s.classIndex("sell", "down")
		}
		if class < 0 {
			continue
		}
		samples = append(samples, predict.Sample{Features: features, Class: class})
	}
	return samples
}

// classIndex resolves a label name in the configured class set.
func (s *Scheduler) classIndex(names ...string) int {
	for i, c := range s.predictorCfg.Classes {
		for _, n := range names {
			if c == n {
				return i
			}
		}
	}
	return -1
}

// trailingObservations extracts the regime observation window for the
// current bar, or nil when the window is not ready.
func (s *Scheduler) trailingObservations(window []market.Bar) []market.Observation {
	start := len(window) - s.cfg.ObsWindow
	if start < 0 {
		start = 0
	}
	obs, err := market.ExtractObservations(window[start:], s.cfg.VolWindow)
	if err != nil {
		metrics.SkippedBars.Inc()
		return nil
	}
	return obs
}

// manageRisk applies the trailing stop and the one-shot partial take
// profit. It returns true when the position was stopped out, which blocks
// a re-entry on the same bar.
func (s *Scheduler) manageRisk(shell PositionShell, risk *riskState, bar market.Bar) bool {
	pos := shell.GetPosition(s.cfg.Symbol)
	if pos == nil {
		risk.reset()
		return false
	}

	if risk.peak > 0 && bar.Close < risk.peak*(1-s.cfg.TrailingStopPct) {
		if err := shell.Sell(s.cfg.Symbol, pos.Qty, bar.Close); err != nil {
			log.Error().Err(err).Msg("trailing stop sell failed")
			return false
		}
		log.Debug().
			Float64("peak", risk.peak).
			Float64("price", bar.Close).
			Msg("trailing stop exit")
		risk.reset()
		return true
	}

	if !risk.tookProfit && pos.AvgPrice > 0 && bar.Close > pos.AvgPrice*(1+s.cfg.TakeProfitPct) {
		half := pos.Qty / 2
		if half > 0 {
			if err := shell.Sell(s.cfg.Symbol, half, bar.Close); err != nil {
				log.Error().Err(err).Msg("take profit sell failed")
			} else {
				risk.tookProfit = true
				log.Debug().Float64("price", bar.Close).Msg("partial take profit")
			}
		}
	}
	return false
}

// act routes the decision through the position shell and external sizing.
func (s *Scheduler) act(shell PositionShell, risk *riskState, bar market.Bar, action signal.Action, confidence float64) {
	switch action {
	case signal.Buy:
		if shell.GetPosition(s.cfg.Symbol) != nil {
			return // already long; adds are left to the risk shell
		}
		value := shell.Cash()
		qty := s.sizer(value, bar.Close, confidence)
		if qty <= 0 || qty*bar.Close > shell.Cash() {
			return
		}
		if err := shell.Buy(s.cfg.Symbol, qty, bar.Close); err != nil {
			log.Error().Err(err).Msg("buy failed")
			return
		}
		risk.entered(bar.Close)
	case signal.Sell:
		pos := shell.GetPosition(s.cfg.Symbol)
		if pos == nil {
			return // long-only: a sell with no position is a no-op
		}
		if err := shell.Sell(s.cfg.Symbol, pos.Qty, bar.Close); err != nil {
			log.Error().Err(err).Msg("sell failed")
			return
		}
		risk.reset()
	}
}

func (s *Scheduler) predictorSource() signal.PredictorSource {
	if net := s.livePredictor.Load(); net != nil {
		return signal.AvailablePredictor(net)
	}
	return signal.NoPredictor()
}

func (s *Scheduler) detectorSource() signal.DetectorSource {
	if det := s.liveDetector.Load(); det != nil {
		return signal.AvailableDetector(det)
	}
	return signal.NoDetector()
}

// riskState tracks the per-position peak and take-profit latch.
type riskState struct {
	peak       float64
	tookProfit bool
}

func newRiskState() *riskState { return &riskState{} }

func (r *riskState) entered(price float64) {
	r.peak = price
	r.tookProfit = false
}

func (r *riskState) observe(pos *Position, price float64) {
	if pos == nil {
		return
	}
	if price > r.peak {
		r.peak = price
	}
}

func (r *riskState) reset() {
	r.peak = 0
	r.tookProfit = false
}
