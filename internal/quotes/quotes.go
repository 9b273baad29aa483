package quotes

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Quote is the latest bid/ask for one symbol.
type Quote struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	At     time.Time `json:"at"`
}

func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// Side-aware price: ask for buys, bid for sells, to avoid optimistic fills.
func (q Quote) PriceFor(buy bool) float64 {
	if buy {
		return q.Ask
	}
	return q.Bid
}

// Source supplies latest quotes to adapters and the sandbox backend.
type Source interface {
	Latest(ctx context.Context, symbol string) (Quote, error)
}

// Static is an in-memory Source fed by hand. Used by the sandbox backend and
// in tests.
type Static struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewStatic() *Static {
	return &Static{quotes: make(map[string]Quote)}
}

func (s *Static) Set(q Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.At.IsZero() {
		q.At = time.Now().UTC()
	}
	s.quotes[q.Symbol] = q
}

// SetPrice is a shortcut for a zero-spread quote.
func (s *Static) SetPrice(symbol string, price float64) {
	s.Set(Quote{Symbol: symbol, Bid: price, Ask: price})
}

func (s *Static) Latest(_ context.Context, symbol string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("no quote for %s", symbol)
	}
	return q, nil
}
