package sandbox

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quantfolio/trading-bot/internal/broker"
	"github.com/quantfolio/trading-bot/internal/logger"
	"github.com/quantfolio/trading-bot/internal/model"
	"github.com/quantfolio/trading-bot/internal/quotes"
	"github.com/quantfolio/trading-bot/internal/tools"
)

type Config struct {
	InitialCash float64            `yaml:"initial_cash"`
	FeePerOrder float64            `yaml:"fee_per_order"`
	ClosePolicy broker.ClosePolicy `yaml:"market_close_handle"`
	CloseOffset time.Duration      `yaml:"market_close_offset"`
	Increment   float64            `yaml:"quantity_increment"`
}

func (c *Config) Setup() {
	if c.InitialCash <= 0 {
		c.InitialCash = 100_000
	}
	if c.ClosePolicy == "" {
		c.ClosePolicy = broker.IgnorePolicy
	}
	if c.Increment <= 0 {
		c.Increment = 0.01
	}
}

// Sandbox is an in-memory TradeBackend with simulated fills. Orders execute
// against the quote source immediately; limit and stop orders fill only when
// the current quote satisfies their trigger, otherwise they stay pending.
type Sandbox struct {
	cfg    Config
	quotes quotes.Source
	logger logger.Logger

	mu        sync.Mutex
	cash      float64
	positions map[string]*model.Position
	orders    map[string]model.Order
	trades    map[string]model.Trade
	nextOrder int
	nextTrade int
}

func New(cfg Config, quotes quotes.Source, logger logger.Logger) *Sandbox {
	cfg.Setup()
	return &Sandbox{
		cfg:       cfg,
		quotes:    quotes,
		logger:    logger,
		cash:      cfg.InitialCash,
		positions: make(map[string]*model.Position),
		orders:    make(map[string]model.Order),
		trades:    make(map[string]model.Trade),
		nextOrder: 1,
		nextTrade: 1,
	}
}

// Seed installs a starting position, for tests and paper runs that begin
// from an existing book.
func (s *Sandbox) Seed(p model.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.positions[p.Asset.Key()] = &cp
}

func (s *Sandbox) GetAccount(ctx context.Context) (model.AccountInfo, error) {
	positions, err := s.GetPositions(ctx)
	if err != nil {
		return model.AccountInfo{}, err
	}
	var value float64
	for _, p := range positions {
		value += p.MarketValue()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.AccountInfo{
		ID:             "sandbox",
		Currency:       "USD",
		Cash:           s.cash,
		BuyingPower:    s.cash,
		PortfolioValue: value + s.cash,
	}, nil
}

func (s *Sandbox) GetCash(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cash, nil
}

func (s *Sandbox) GetPositions(ctx context.Context) ([]model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Position, 0, len(s.positions))
	for _, p := range s.positions {
		cp := *p
		if q, err := s.quotes.Latest(ctx, p.Asset.Symbol); err == nil {
			cp.CurrentPrice = q.Mid()
			p.CurrentPrice = cp.CurrentPrice
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset.Key() < out[j].Asset.Key() })
	return out, nil
}

func (s *Sandbox) GetOrders(_ context.Context, filter model.StatusFilter) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		switch filter {
		case model.OpenOrders:
			if o.Status != model.Pending {
				continue
			}
		case model.ClosedOrders:
			if o.Status == model.Pending {
				continue
			}
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Sandbox) GetTrades(context.Context) ([]model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Trade, 0, len(s.trades))
	for _, t := range s.trades {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Sandbox) GetTradeableAssets(context.Context) ([]model.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Asset, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p.Asset)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// clock reports an always-open market; the close policy still runs for
// parity with live adapters.
func (s *Sandbox) clock() broker.MarketClock {
	now := time.Now().UTC()
	return broker.MarketClock{
		Now:       now,
		IsOpen:    true,
		NextOpen:  now,
		NextClose: now.Add(24 * time.Hour),
	}
}

func (s *Sandbox) PlaceOrder(ctx context.Context, order model.Order) (broker.OrderResult, error) {
	if err := order.Validate(); err != nil {
		return broker.OrderResult{}, err
	}
	if err := broker.GateMarket(ctx, s.clock(), s.cfg.ClosePolicy, s.cfg.CloseOffset, s.logger); err != nil {
		return broker.OrderResult{}, err
	}

	quote, err := s.quotes.Latest(ctx, order.Asset.Symbol)
	if err != nil {
		order.Status = model.Rejected
		s.logger.Warnf("%s: rejecting %s order for %s", err, order.Side, order.Asset.Symbol)
		return broker.OrderResult{Outcome: broker.Rejected, Order: order, Reason: err.Error()}, nil
	}

	// Translate notional instructions into shares at the side-aware quote.
	shares := order.Quantity
	if order.Mode == model.Notional {
		shares, err = tools.NotionalToShares(order.Quantity, quote.PriceFor(order.Side == model.Buy), s.cfg.Increment)
		if err != nil {
			order.Status = model.Rejected
			return broker.OrderResult{Outcome: broker.Rejected, Order: order, Reason: err.Error()}, nil
		}
		order.Quantity = shares
		order.Mode = model.Shares
	}

	outcome := broker.Submitted
	reason := ""
	if order.Side == model.Sell {
		clamped, availReason := s.clampSell(order.Asset.Key(), shares)
		if clamped <= 0 {
			order.Status = model.Canceled
			s.logger.Warnf("sell order for %s dismissed: %s", order.Asset.Symbol, availReason)
			return broker.OrderResult{Outcome: broker.Dismissed, Order: order, Reason: availReason}, nil
		}
		if clamped < shares {
			s.logger.Warnf("sell quantity %f of %s exceeds available, clamped to %f", shares, order.Asset.Symbol, clamped)
			order.Quantity = clamped
			outcome = broker.Clamped
			reason = availReason
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order.ID = fmt.Sprintf("ORD-%d", s.nextOrder)
	s.nextOrder++
	s.orders[order.ID] = order

	s.execute(&order, quote)
	s.orders[order.ID] = order

	return broker.OrderResult{Outcome: outcome, Order: order, Reason: reason}, nil
}

func (s *Sandbox) PlaceBulkOrders(ctx context.Context, orders []model.Order) ([]broker.OrderResult, error) {
	results := make([]broker.OrderResult, 0, len(orders))
	for _, o := range orders {
		res, err := s.PlaceOrder(ctx, o)
		if err != nil {
			// Validation and market-policy failures are isolated per order.
			o.Status = model.Rejected
			res = broker.OrderResult{Outcome: broker.Rejected, Order: o, Reason: err.Error()}
			s.logger.Warnf("%s: bulk order for %s rejected", err, o.Asset.Symbol)
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Sandbox) CancelOrder(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("unknown order id %s", orderID)
	}
	if o.Status == model.Pending {
		o.Status = model.Canceled
		s.orders[orderID] = o
	}
	return nil
}

func (s *Sandbox) CancelBulkOrders(ctx context.Context, orderIDs []string) []error {
	errs := make([]error, 0, len(orderIDs))
	for _, id := range orderIDs {
		if err := s.CancelOrder(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (s *Sandbox) GetOrderStatus(_ context.Context, orderID string) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return model.Order{}, fmt.Errorf("unknown order id %s", orderID)
	}
	return o, nil
}

func (s *Sandbox) clampSell(key string, requested float64) (float64, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[key]
	if !ok {
		return 0, fmt.Sprintf("no position in %s", key)
	}
	avail := p.Available()
	if requested > avail {
		return avail, fmt.Sprintf("requested %f, available %f", requested, avail)
	}
	return requested, ""
}

// execute simulates the fill. Caller holds the lock.
func (s *Sandbox) execute(order *model.Order, quote quotes.Quote) {
	price := quote.PriceFor(order.Side == model.Buy)

	filled := false
	execPrice := price
	switch order.Type {
	case model.Market:
		filled = true
	case model.Limit:
		if (order.Side == model.Buy && price <= *order.LimitPrice) ||
			(order.Side == model.Sell && price >= *order.LimitPrice) {
			filled = true
			execPrice = *order.LimitPrice
		}
	case model.Stop:
		if (order.Side == model.Buy && price >= *order.StopPrice) ||
			(order.Side == model.Sell && price <= *order.StopPrice) {
			filled = true
		}
	case model.StopLimit:
		triggered := (order.Side == model.Buy && price >= *order.StopPrice) ||
			(order.Side == model.Sell && price <= *order.StopPrice)
		if triggered &&
			((order.Side == model.Buy && price <= *order.LimitPrice) ||
				(order.Side == model.Sell && price >= *order.LimitPrice)) {
			filled = true
			execPrice = *order.LimitPrice
		}
	}

	if !filled {
		s.logger.Debugf("order %s stays pending at quote %f", order.ID, price)
		return
	}

	order.Status = model.Filled
	trade := model.Trade{
		ID:           fmt.Sprintf("TRD-%d", s.nextTrade),
		Order:        *order,
		ExecPrice:    execPrice,
		ExecQuantity: order.Quantity,
		Fees:         s.cfg.FeePerOrder,
		ExecutedAt:   time.Now().UTC(),
	}
	s.nextTrade++
	s.trades[trade.ID] = trade

	key := order.Asset.Key()
	p, ok := s.positions[key]
	if !ok {
		p = &model.Position{Asset: order.Asset}
		s.positions[key] = p
	}
	if err := p.ApplyTrade(trade); err != nil {
		s.logger.Errorf("%s: can't apply trade %s", err, trade.ID)
		return
	}
	if p.Quantity == 0 {
		delete(s.positions, key)
	}

	if order.Side == model.Buy {
		s.cash -= trade.Cost()
	} else {
		s.cash += trade.ExecPrice*trade.ExecQuantity - trade.Fees
	}

	s.logger.Infof("order %s filled at %f for %f shares", order.ID, execPrice, order.Quantity)
}
