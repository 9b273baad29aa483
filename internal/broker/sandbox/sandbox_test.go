package sandbox

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/trading-bot/internal/broker"
	"github.com/quantfolio/trading-bot/internal/logger"
	"github.com/quantfolio/trading-bot/internal/model"
)

type recordingLogger struct {
	logger.Noop

	mu       sync.Mutex
	warnings []string
}

func (r *recordingLogger) Warnf(template string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, fmt.Sprintf(template, args...))
}

func (r *recordingLogger) warningCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.warnings)
}

func newSandbox(t *testing.T, log logger.Logger) (*Sandbox, *quotesFixture) {
	t.Helper()
	q := newQuotesFixture()
	return New(Config{InitialCash: 10_000, Increment: 1}, q.src, log), q
}

func mustOrder(t *testing.T, symbol string, side model.Side, quantity float64, mode model.QuantityMode) model.Order {
	t.Helper()
	o, err := model.NewOrder(model.NewAsset(symbol, model.Equity), side, quantity, mode, model.Market)
	require.NoError(t, err)
	return o
}

func TestPlaceOrder_MarketBuyFills(t *testing.T) {
	t.Parallel()

	s, q := newSandbox(t, logger.Noop{})
	q.price("AAPL", 100)

	res, err := s.PlaceOrder(context.Background(), mustOrder(t, "AAPL", model.Buy, 1000, model.Notional))
	require.NoError(t, err)

	assert.Equal(t, broker.Submitted, res.Outcome)
	assert.Equal(t, model.Filled, res.Order.Status)
	assert.InDelta(t, 10, res.Order.Quantity, 1e-9)

	cash, err := s.GetCash(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 9000, cash, 1e-9)

	positions, err := s.GetPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.InDelta(t, 10, positions[0].Quantity, 1e-9)

	trades, err := s.GetTrades(context.Background())
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.InDelta(t, 1000, trades[0].Cost(), 1e-9)
}

func TestPlaceOrder_SellClampedToAvailable(t *testing.T) {
	t.Parallel()

	log := &recordingLogger{}
	s, q := newSandbox(t, log)
	q.price("AAPL", 100)
	s.Seed(model.Position{
		Asset:             model.NewAsset("AAPL", model.Equity),
		Quantity:          10,
		AvailableQuantity: 10,
		AvgPrice:          90,
		CurrentPrice:      100,
	})

	// notional 1500 at price 100 wants 15 shares, only 10 available
	res, err := s.PlaceOrder(context.Background(), mustOrder(t, "AAPL", model.Sell, 1500, model.Notional))
	require.NoError(t, err)

	assert.Equal(t, broker.Clamped, res.Outcome)
	assert.InDelta(t, 10, res.Order.Quantity, 1e-9)
	assert.Equal(t, model.Filled, res.Order.Status)
	assert.Equal(t, 1, log.warningCount())
}

func TestPlaceOrder_SellWithoutInventoryDismissed(t *testing.T) {
	t.Parallel()

	log := &recordingLogger{}
	s, q := newSandbox(t, log)
	q.price("MSFT", 50)

	res, err := s.PlaceOrder(context.Background(), mustOrder(t, "MSFT", model.Sell, 100, model.Notional))
	require.NoError(t, err)

	assert.Equal(t, broker.Dismissed, res.Outcome)
	assert.Equal(t, 1, log.warningCount())

	// nothing reached the book
	orders, err := s.GetOrders(context.Background(), model.AllOrders)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceBulkOrders_PartialFailure(t *testing.T) {
	t.Parallel()

	s, q := newSandbox(t, logger.Noop{})
	q.price("AAPL", 100)
	q.price("MSFT", 50)
	q.price("GOOG", 200)

	orders := []model.Order{
		mustOrder(t, "AAPL", model.Buy, 1000, model.Notional),
		mustOrder(t, "MSFT", model.Sell, 500, model.Notional), // nothing held
		mustOrder(t, "GOOG", model.Buy, 400, model.Notional),
	}

	results, err := s.PlaceBulkOrders(context.Background(), orders)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, broker.Submitted, results[0].Outcome)
	assert.Equal(t, broker.Dismissed, results[1].Outcome)
	assert.Equal(t, broker.Submitted, results[2].Outcome)
}

func TestPlaceOrder_NoQuoteRejected(t *testing.T) {
	t.Parallel()

	s, _ := newSandbox(t, logger.Noop{})

	res, err := s.PlaceOrder(context.Background(), mustOrder(t, "TSLA", model.Buy, 100, model.Notional))
	require.NoError(t, err)
	assert.Equal(t, broker.Rejected, res.Outcome)
	assert.Equal(t, model.Rejected, res.Order.Status)
}

func TestPlaceOrder_LimitStaysPending(t *testing.T) {
	t.Parallel()

	s, q := newSandbox(t, logger.Noop{})
	q.price("AAPL", 100)

	limit := 90.0
	o := model.Order{
		Asset:      model.NewAsset("AAPL", model.Equity),
		Side:       model.Buy,
		Quantity:   5,
		Mode:       model.Shares,
		Type:       model.Limit,
		Status:     model.Pending,
		LimitPrice: &limit,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, o.Validate())

	res, err := s.PlaceOrder(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, model.Pending, res.Order.Status)

	open, err := s.GetOrders(context.Background(), model.OpenOrders)
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, s.CancelOrder(context.Background(), open[0].ID))
	status, err := s.GetOrderStatus(context.Background(), open[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.Canceled, status.Status)
}

func TestRoundTrip_BuyThenLiquidate(t *testing.T) {
	t.Parallel()

	s, q := newSandbox(t, logger.Noop{})
	q.price("AAPL", 100)

	_, err := s.PlaceOrder(context.Background(), mustOrder(t, "AAPL", model.Buy, 1000, model.Notional))
	require.NoError(t, err)

	res, err := s.PlaceOrder(context.Background(), mustOrder(t, "AAPL", model.Sell, 1000, model.Notional))
	require.NoError(t, err)
	assert.Equal(t, broker.Submitted, res.Outcome)

	positions, err := s.GetPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)

	cash, err := s.GetCash(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 10_000, cash, 1e-9)
}
