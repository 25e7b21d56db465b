package strategy

import (
	"github.com/quantfuse/quantfuse/internal/market"
	"github.com/quantfuse/quantfuse/internal/signal"
)

// Baseline is a static strategy the walk-forward comparison measures the
// adaptive combiner against. Action decides per bar from the trailing
// window only.
type Baseline interface {
	Name() string
	Action(bars []market.Bar) signal.Action
}

// BuyAndHold buys on the first decidable bar and never sells.
type BuyAndHold struct{}

func (BuyAndHold) Name() string { return "buy_and_hold" }

func (BuyAndHold) Action(bars []market.Bar) signal.Action {
	if len(bars) == 0 {
		return signal.Hold
	}
	return signal.Buy
}

// SMACross follows the trend rule alone with a fixed dead zone.
type SMACross struct {
	Rules    *IndicatorRules
	DeadZone float64
}

// NewSMACross returns the trend-only baseline.
func NewSMACross() *SMACross {
	return &SMACross{Rules: NewIndicatorRules(), DeadZone: 0.15}
}

func (s *SMACross) Name() string { return "sma_cross" }

func (s *SMACross) Action(bars []market.Bar) signal.Action {
	sig := s.Rules.Trend(bars)
	switch {
	case sig.Strength > s.DeadZone:
		return signal.Buy
	case sig.Strength < -s.DeadZone:
		return signal.Sell
	default:
		return signal.Hold
	}
}

// StaticBlend mixes the trend and reversion rules 50/50 with no regime or
// predictor input, isolating the value of adaptive weighting.
type StaticBlend struct {
	Rules    *IndicatorRules
	DeadZone float64
}

// NewStaticBlend returns the fixed-weight rule baseline.
func NewStaticBlend() *StaticBlend {
	return &StaticBlend{Rules: NewIndicatorRules(), DeadZone: 0.15}
}

func (s *StaticBlend) Name() string { return "static_blend" }

func (s *StaticBlend) Action(bars []market.Bar) signal.Action {
	t := s.Rules.Trend(bars)
	r := s.Rules.Reversion(bars)
	strength := 0.5*t.Strength + 0.5*r.Strength
	switch {
	case strength > s.DeadZone:
		return signal.Buy
	case strength < -s.DeadZone:
		return signal.Sell
	default:
		return signal.Hold
	}
}
