package backtest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

// EquityPoint is one mark of the equity curve.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// EvaluationRun is the per-strategy outcome of a simulation: the ordered
// equity curve, retrain history and summary statistics. It is built
// incrementally and finalized once.
type EvaluationRun struct {
	ID       string        `json:"id"`
	Strategy string        `json:"strategy"`
	Symbol   string        `json:"symbol"`
	Equity   []EquityPoint `json:"equity"`
	Retrains []time.Time   `json:"retrains,omitempty"`

	TradeCount   int     `json:"trade_count"`
	FinalEquity  float64 `json:"final_equity"`
	TotalReturn  float64 `json:"total_return"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	RetrainCount int     `json:"retrain_count"`

	finalized bool
}

// newRun starts an empty evaluation run.
func newRun(strategy, symbol string) *EvaluationRun {
	return &EvaluationRun{
		ID:       uuid.NewString(),
		Strategy: strategy,
		Symbol:   symbol,
	}
}

func (r *EvaluationRun) mark(ts time.Time, value float64) {
	r.Equity = append(r.Equity, EquityPoint{Timestamp: ts, Value: value})
}

func (r *EvaluationRun) recordRetrain(ts time.Time) {
	r.Retrains = append(r.Retrains, ts)
}

// finalize computes the summary statistics. Calling it twice is a bug.
func (r *EvaluationRun) finalize(initialEquity float64, trades int) error {
	if r.finalized {
		return fmt.Errorf("run %s already finalized", r.ID)
	}
	if len(r.Equity) == 0 {
		return fmt.Errorf("run %s has no equity points", r.ID)
	}

	r.finalized = true
	r.TradeCount = trades
	r.RetrainCount = len(r.Retrains)
	r.FinalEquity = r.Equity[len(r.Equity)-1].Value
	r.TotalReturn = r.FinalEquity/initialEquity - 1

	// Per-bar returns for the risk-adjusted ratio.
	returns := make([]float64, 0, len(r.Equity))
	prev := initialEquity
	for _, pt := range r.Equity {
		if prev > 0 {
			returns = append(returns, pt.Value/prev-1)
		}
		prev = pt.Value
	}
	if len(returns) > 1 {
		mean := stat.Mean(returns, nil)
		sd := stat.StdDev(returns, nil)
		if sd > 0 {
			r.SharpeRatio = mean / sd
		}
	}

	peak := initialEquity
	maxDD := 0.0
	for _, pt := range r.Equity {
		if pt.Value > peak {
			peak = pt.Value
		}
		if peak > 0 {
			dd := (peak - pt.Value) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	r.MaxDrawdown = maxDD
	return nil
}

// Comparison is the walk-forward result: the adaptive run against each
// baseline over identical data, with per-baseline beat flags.
type Comparison struct {
	ID           string           `json:"id"`
	Symbol       string           `json:"symbol"`
	Bars         int              `json:"bars"`
	Adaptive     *EvaluationRun   `json:"adaptive"`
	Baselines    []*EvaluationRun `json:"baselines"`
	BeatBaseline map[string]bool  `json:"beat_baseline"`
	CreatedAt    time.Time        `json:"created_at"`
}

// newComparison assembles the record and the beat flags.
func newComparison(symbol string, bars int, adaptive *EvaluationRun, baselines []*EvaluationRun) *Comparison {
	beat := make(map[string]bool, len(baselines))
	for _, b := range baselines {
		beat[b.Strategy] = adaptive.TotalReturn > b.TotalReturn
	}
	return &Comparison{
		ID:           uuid.NewString(),
		Symbol:       symbol,
		Bars:         bars,
		Adaptive:     adaptive,
		Baselines:    baselines,
		BeatBaseline: beat,
		CreatedAt:    time.Now().UTC(),
	}
}
