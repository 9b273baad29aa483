package model

import "fmt"

// Position is a holding of one asset. Quantity is signed, positive means
// long. AvailableQuantity is the settled, unencumbered part that may be sold
// right now; zero-valued means everything is available.
type Position struct {
	Asset             Asset   `json:"asset"`
	Quantity          float64 `json:"quantity"`
	AvailableQuantity float64 `json:"available_quantity"`
	AvgPrice          float64 `json:"avg_price"`
	CurrentPrice      float64 `json:"current_price"`
}

// MarketValue is always recomputed from quantity and current price, never
// carried stale.
func (p Position) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice
}

func (p Position) Available() float64 {
	if p.AvailableQuantity == 0 {
		return p.Quantity
	}
	return p.AvailableQuantity
}

func (p Position) RelPerformance() float64 {
	if p.AvgPrice == 0 {
		return 0
	}
	return p.CurrentPrice/p.AvgPrice - 1
}

func (p Position) AbsPerformance() float64 {
	return p.MarketValue() - p.AvgPrice*p.Quantity
}

// ApplyTrade folds an executed fill into the position, keeping the average
// entry price consistent. Buys move the average, sells leave it unchanged.
func (p *Position) ApplyTrade(t Trade) error {
	if err := t.Validate(); err != nil {
		return err
	}
	switch t.Order.Side {
	case Buy:
		total := p.AvgPrice*p.Quantity + t.ExecPrice*t.ExecQuantity
		p.Quantity += t.ExecQuantity
		if p.Quantity != 0 {
			p.AvgPrice = total / p.Quantity
		}
	case Sell:
		p.Quantity -= t.ExecQuantity
		if p.Quantity == 0 {
			p.AvgPrice = 0
		}
	default:
		return fmt.Errorf("%w: trade side %q", ErrValidation, t.Order.Side)
	}
	p.CurrentPrice = t.ExecPrice
	if p.AvailableQuantity != 0 {
		p.AvailableQuantity = p.Quantity
	}
	return nil
}
