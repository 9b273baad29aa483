package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/quantfolio/trading-bot/internal/broker/sandbox"
	"github.com/quantfolio/trading-bot/internal/logger"
	"github.com/quantfolio/trading-bot/internal/model"
	"github.com/quantfolio/trading-bot/internal/portfolio"
	"github.com/quantfolio/trading-bot/internal/quotes"
	"github.com/quantfolio/trading-bot/internal/rebalance"
	"github.com/quantfolio/trading-bot/internal/strategy"
)

// PriceSource resolves a close price for one symbol on one day. Satisfied by
// quotes.History; tests feed it from a map.
type PriceSource interface {
	CloseOn(symbol string, day time.Time) (float64, error)
}

// Result is the portfolio state after one replayed rebalance.
type Result struct {
	Day        time.Time
	TotalValue float64
	Cash       float64
	Profit     float64 // percent over initial cash
	Placed     int
}

// Runner replays the rebalance cycle over historical closes. Each date the
// day's prices are primed into the shared quote source, the sandbox backend
// marks to market, and the engine's instructions execute against it.
type Runner struct {
	logger logger.Logger

	prices   PriceSource
	src      *quotes.Static
	backend  *sandbox.Sandbox
	pf       *portfolio.Portfolio
	engine   *rebalance.Engine
	provider strategy.Provider

	symbols     []string
	initialCash float64

	results []Result
}

func NewRunner(
	logger logger.Logger,
	prices PriceSource,
	src *quotes.Static,
	backend *sandbox.Sandbox,
	pf *portfolio.Portfolio,
	engine *rebalance.Engine,
	provider strategy.Provider,
	symbols []string,
	initialCash float64,
) *Runner {
	return &Runner{
		logger:      logger,
		prices:      prices,
		src:         src,
		backend:     backend,
		pf:          pf,
		engine:      engine,
		provider:    provider,
		symbols:     symbols,
		initialCash: initialCash,
	}
}

func (r *Runner) Run(ctx context.Context, from, to time.Time, every int) ([]Result, error) {
	dates := RebalanceDates(from, to, every)
	if len(dates) == 0 {
		return nil, fmt.Errorf("no rebalance dates between %s and %s",
			from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	r.logger.Infof("replaying %d rebalances from %s to %s",
		len(dates), dates[0].Format(time.DateOnly), dates[len(dates)-1].Format(time.DateOnly))

	for _, day := range dates {
		if err := ctx.Err(); err != nil {
			return r.results, err
		}
		if err := r.step(ctx, day); err != nil {
			return r.results, fmt.Errorf("%w: rebalance on %s failed", err, day.Format(time.DateOnly))
		}
	}
	return r.results, nil
}

func (r *Runner) Results() []Result {
	out := make([]Result, len(r.results))
	copy(out, r.results)
	return out
}

func (r *Runner) step(ctx context.Context, day time.Time) error {
	if err := r.primeDay(ctx, day); err != nil {
		return err
	}
	if err := r.pf.Update(ctx); err != nil {
		return err
	}

	current, err := r.pf.WeightMap()
	if err != nil {
		return err
	}
	targets, err := r.provider.TargetWeights(ctx)
	if err != nil {
		return err
	}
	cash, err := r.backend.GetCash(ctx)
	if err != nil {
		return err
	}

	// Idle cash is the deposit: every cycle deploys what the last one left.
	if _, err := r.engine.CreateFrame(current, r.pf.TotalValue(), targets, cash); err != nil {
		return err
	}

	placed := 0
	instructions, err := r.engine.TradeInstructions()
	if err != nil {
		return err
	}
	if len(instructions) > 0 {
		orders := make([]model.Order, 0, len(instructions))
		for _, in := range instructions {
			o, err := in.Order()
			if err != nil {
				return err
			}
			orders = append(orders, o)
		}
		results, err := r.backend.PlaceBulkOrders(ctx, orders)
		if err != nil {
			return err
		}
		for _, res := range results {
			if res.Placed() {
				placed++
			}
		}
	}

	if err := r.pf.Update(ctx); err != nil {
		return err
	}
	cash, err = r.backend.GetCash(ctx)
	if err != nil {
		return err
	}

	total := r.pf.TotalValue() + cash
	result := Result{
		Day:        day,
		TotalValue: total,
		Cash:       cash,
		Profit:     (total - r.initialCash) / r.initialCash * 100,
		Placed:     placed,
	}
	r.results = append(r.results, result)
	r.logger.Infof("%s: value %.2f cash %.2f profit %.2f%% orders %d",
		day.Format(time.DateOnly), result.TotalValue, result.Cash, result.Profit, placed)
	return nil
}

// primeDay loads the day's closes into the quote source for the configured
// universe plus whatever the sandbox currently holds.
func (r *Runner) primeDay(ctx context.Context, day time.Time) error {
	seen := make(map[string]struct{}, len(r.symbols))
	for _, symbol := range r.symbols {
		seen[symbol] = struct{}{}
	}
	positions, err := r.backend.GetPositions(ctx)
	if err != nil {
		return err
	}
	for _, p := range positions {
		seen[p.Asset.Symbol] = struct{}{}
	}

	for symbol := range seen {
		price, err := r.prices.CloseOn(symbol, day)
		if err != nil {
			r.logger.Warnf("%s: no close for %s, keeping last quote", err, symbol)
			continue
		}
		r.src.SetPrice(symbol, price)
	}
	return nil
}
