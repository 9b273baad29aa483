package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quantfolio/trading-bot/internal/broker"
	"github.com/quantfolio/trading-bot/internal/logger"
	"github.com/quantfolio/trading-bot/internal/model"
)

const (
	_flushInterval = 1 * time.Hour
)

// PositionWeight is one asset's share of the portfolio.
type PositionWeight struct {
	Asset       model.Asset `json:"asset"`
	Quantity    float64     `json:"quantity"`
	MarketValue float64     `json:"market_value"`
	Weight      float64     `json:"weight"`
}

// Portfolio caches current account state, recomputed on demand from exactly
// one trade backend. The backend is the source of truth; Update replaces
// state wholesale, so repeated refreshes are idempotent.
type Portfolio struct {
	backend broker.TradeBackend
	db      *sqlx.DB // optional snapshot store, nil skips persistence
	logger  logger.Logger

	mu sync.RWMutex

	accountID  string
	positions  []model.Position
	trades     []model.Trade
	totalValue float64
	updatedAt  time.Time
}

func NewPortfolio(backend broker.TradeBackend, db *sqlx.DB, logger logger.Logger) *Portfolio {
	return &Portfolio{
		backend: backend,
		db:      db,
		logger:  logger,
	}
}

func (p *Portfolio) Init(ctx context.Context) error {
	account, err := p.backend.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("%w: can't get account", err)
	}

	p.mu.Lock()
	p.accountID = account.ID
	p.mu.Unlock()

	return p.Update(ctx)
}

// Update refetches positions and trades and recomputes the total value.
func (p *Portfolio) Update(ctx context.Context) error {
	positions, err := p.backend.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("%w: can't update positions", err)
	}
	trades, err := p.backend.GetTrades(ctx)
	if err != nil {
		return fmt.Errorf("%w: can't update trades", err)
	}

	var total float64
	for _, position := range positions {
		total += position.MarketValue()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions = positions
	p.trades = trades
	p.totalValue = total
	p.updatedAt = time.Now().UTC()
	return nil
}

func (p *Portfolio) TotalValue() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalValue
}

func (p *Portfolio) Positions() []model.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Position, len(p.positions))
	copy(out, p.positions)
	return out
}

func (p *Portfolio) Trades() []model.Trade {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Trade, len(p.trades))
	copy(out, p.trades)
	return out
}

// Weights maps asset key to its slice of total value. A zero total with held
// positions is a defined failure, never a NaN weight.
func (p *Portfolio) Weights() (map[string]PositionWeight, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.positions) == 0 {
		return map[string]PositionWeight{}, nil
	}
	if p.totalValue == 0 {
		return nil, fmt.Errorf("%w: %d positions held", model.ErrZeroValue, len(p.positions))
	}

	weights := make(map[string]PositionWeight, len(p.positions))
	for _, position := range p.positions {
		mv := position.MarketValue()
		weights[position.Asset.Key()] = PositionWeight{
			Asset:       position.Asset,
			Quantity:    position.Quantity,
			MarketValue: mv,
			Weight:      mv / p.totalValue,
		}
	}
	return weights, nil
}

// WeightMap is the flat weight view the rebalance engine consumes.
func (p *Portfolio) WeightMap() (map[string]float64, error) {
	weights, err := p.Weights()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(weights))
	for key, w := range weights {
		out[key] = w.Weight
	}
	return out, nil
}

// Run periodically flushes snapshots until ctx is canceled. No-op without a
// snapshot store.
func (p *Portfolio) Run(ctx context.Context) {
	if p.db == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(_flushInterval):
			if err := p.SaveSnapshot(ctx); err != nil {
				p.logger.Errorf("%s: error flushing portfolio snapshot", err)
			}
		}
	}
}
