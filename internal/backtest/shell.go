package backtest

import (
	"fmt"
	"math"
)

// Position is the external shell's view of an open holding.
type Position struct {
	Qty      float64 `json:"qty"`
	AvgPrice float64 `json:"avg_price"`
}

// PositionShell is the order-accounting collaborator. The scheduler only
// calls these; settlement and bookkeeping live outside the decision core.
type PositionShell interface {
	// GetPosition returns the open position for a symbol, or nil when flat.
	GetPosition(symbol string) *Position
	Buy(symbol string, qty, price float64) error
	Sell(symbol string, qty, price float64) error
	// Cash returns uninvested funds, for portfolio valuation and sizing.
	Cash() float64
}

// Sizer converts portfolio value, price and decision confidence into an
// order quantity.
type Sizer func(portfolioValue, price, confidence float64) float64

// ConfidenceSizer risks a fraction of portfolio value scaled by confidence.
func ConfidenceSizer(maxFraction float64) Sizer {
	return func(portfolioValue, price, confidence float64) float64 {
		if price <= 0 || portfolioValue <= 0 {
			return 0
		}
		budget := portfolioValue * maxFraction * confidence
		return math.Floor(budget/price*1e6) / 1e6
	}
}

// CostModel prices executions. A nil model trades at the quoted price with
// zero commission.
type CostModel interface {
	ExecutionPrice(side string, price, qty float64) float64
	Commission(price, qty float64) float64
}

// PaperShell is the reference in-memory shell used by simulations.
type PaperShell struct {
	cash      float64
	positions map[string]*Position
	costs     CostModel
	trades    int
}

// NewPaperShell creates a shell with starting cash and an optional cost
// model.
func NewPaperShell(cash float64, costs CostModel) *PaperShell {
	return &PaperShell{
		cash:      cash,
		positions: make(map[string]*Position),
		costs:     costs,
	}
}

// GetPosition returns the open position, or nil when flat.
func (p *PaperShell) GetPosition(symbol string) *Position {
	pos, ok := p.positions[symbol]
	if !ok || pos.Qty <= 0 {
		return nil
	}
	c := *pos
	return &c
}

// Cash returns uninvested funds.
func (p *PaperShell) Cash() float64 { return p.cash }

// Trades returns the number of executed orders.
func (p *PaperShell) Trades() int { return p.trades }

// Buy opens or adds to a position at the (cost-adjusted) price.
func (p *PaperShell) Buy(symbol string, qty, price float64) error {
	if qty <= 0 || price <= 0 {
		return fmt.Errorf("invalid buy: qty=%g price=%g", qty, price)
	}
	exec, fee := p.execution("buy", price, qty)
	cost := qty*exec + fee
	if cost > p.cash {
		return fmt.Errorf("insufficient cash: need %.2f, have %.2f", cost, p.cash)
	}

	p.cash -= cost
	pos, ok := p.positions[symbol]
	if !ok || pos.Qty <= 0 {
		p.positions[symbol] = &Position{Qty: qty, AvgPrice: exec}
	} else {
		total := pos.Qty + qty
		pos.AvgPrice = (pos.AvgPrice*pos.Qty + exec*qty) / total
		pos.Qty = total
	}
	p.trades++
	return nil
}

// Sell reduces or closes a position at the (cost-adjusted) price.
func (p *PaperShell) Sell(symbol string, qty, price float64) error {
	pos, ok := p.positions[symbol]
	if !ok || pos.Qty <= 0 {
		return fmt.Errorf("no position in %s", symbol)
	}
	if qty <= 0 || qty > pos.Qty+1e-9 {
		return fmt.Errorf("invalid sell qty %g against position %g", qty, pos.Qty)
	}

	exec, fee := p.execution("sell", price, qty)
	p.cash += qty*exec - fee
	pos.Qty -= qty
	if pos.Qty <= 1e-9 {
		delete(p.positions, symbol)
	}
	p.trades++
	return nil
}

// PortfolioValue marks the portfolio at the given price.
func (p *PaperShell) PortfolioValue(symbol string, price float64) float64 {
	value := p.cash
	if pos, ok := p.positions[symbol]; ok {
		value += pos.Qty * price
	}
	return value
}

func (p *PaperShell) execution(side string, price, qty float64) (float64, float64) {
	if p.costs == nil {
		return price, 0
	}
	return p.costs.ExecutionPrice(side, price, qty), p.costs.Commission(price, qty)
}
