// Package strategy provides the reference rule signals and the static
// baseline strategies the walk-forward comparison runs against. The rules
// are replaceable: anything implementing RuleSet can feed the combiner.
package strategy

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"

	"github.com/quantfuse/quantfuse/internal/market"
	"github.com/quantfuse/quantfuse/internal/signal"
)

// RuleSet produces the two externally supplied rule signals for a bar
// window. Implementations return a zero-confidence signal when the window
// is too short.
type RuleSet interface {
	Trend(bars []market.Bar) signal.RuleSignal
	Reversion(bars []market.Bar) signal.RuleSignal
}

// IndicatorRules is the default rule set: an SMA-crossover trend rule and
// an RSI mean-reversion rule.
type IndicatorRules struct {
	FastPeriod int
	SlowPeriod int
	RSIPeriod  int
}

// NewIndicatorRules returns the conventional 10/30 SMA cross and 14-bar RSI.
func NewIndicatorRules() *IndicatorRules {
	return &IndicatorRules{FastPeriod: 10, SlowPeriod: 30, RSIPeriod: 14}
}

// Trend measures the fast/slow SMA divergence as a signed trend signal.
func (r *IndicatorRules) Trend(bars []market.Bar) signal.RuleSignal {
	if len(bars) < r.SlowPeriod+1 {
		return signal.RuleSignal{}
	}

	closes := closeSeries(bars)
	fast := lastValue(trendSMA(closes, r.FastPeriod))
	slow := lastValue(trendSMA(closes, r.SlowPeriod))
	if slow <= 0 {
		return signal.RuleSignal{}
	}

	// 2% divergence between the averages saturates the signal.
	divergence := (fast - slow) / slow
	strength := clampSigned(divergence / 0.02)
	return signal.RuleSignal{
		Strength:   strength,
		Confidence: math.Abs(strength),
	}
}

// Reversion reads RSI distance from the midline as a contrarian signal:
// oversold leans BUY, overbought leans SELL.
func (r *IndicatorRules) Reversion(bars []market.Bar) signal.RuleSignal {
	if len(bars) < r.RSIPeriod+2 {
		return signal.RuleSignal{}
	}

	rsi := lastValue(rsiSeries(closeSeries(bars), r.RSIPeriod))
	if math.IsNaN(rsi) || math.IsInf(rsi, 0) {
		return signal.RuleSignal{}
	}

	strength := clampSigned((50 - rsi) / 30)
	confidence := math.Min(math.Abs(50-rsi)/50, 1)
	return signal.RuleSignal{Strength: strength, Confidence: confidence}
}

func trendSMA(closes []float64, period int) []float64 {
	sma := trend.NewSmaWithPeriod[float64](period)
	return helper.ChanToSlice(sma.Compute(helper.SliceToChan(closes)))
}

func rsiSeries(closes []float64, period int) []float64 {
	rsi := momentum.NewRsiWithPeriod[float64](period)
	return helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes)))
}

func closeSeries(bars []market.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

func lastValue(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

func clampSigned(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
