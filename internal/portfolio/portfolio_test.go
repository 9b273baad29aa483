package portfolio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/trading-bot/internal/broker"
	"github.com/quantfolio/trading-bot/internal/logger"
	"github.com/quantfolio/trading-bot/internal/model"
)

type fakeBackend struct {
	positions []model.Position
	trades    []model.Trade
	updates   int
}

func (f *fakeBackend) GetAccount(context.Context) (model.AccountInfo, error) {
	return model.AccountInfo{ID: "fake", Currency: "USD"}, nil
}
func (f *fakeBackend) GetCash(context.Context) (float64, error) { return 0, nil }
func (f *fakeBackend) GetPositions(context.Context) ([]model.Position, error) {
	f.updates++
	return f.positions, nil
}
func (f *fakeBackend) GetOrders(context.Context, model.StatusFilter) ([]model.Order, error) {
	return nil, nil
}
func (f *fakeBackend) GetTrades(context.Context) ([]model.Trade, error) { return f.trades, nil }
func (f *fakeBackend) PlaceOrder(context.Context, model.Order) (broker.OrderResult, error) {
	return broker.OrderResult{}, nil
}
func (f *fakeBackend) PlaceBulkOrders(context.Context, []model.Order) ([]broker.OrderResult, error) {
	return nil, nil
}
func (f *fakeBackend) CancelOrder(context.Context, string) error          { return nil }
func (f *fakeBackend) CancelBulkOrders(context.Context, []string) []error { return nil }
func (f *fakeBackend) GetOrderStatus(context.Context, string) (model.Order, error) {
	return model.Order{}, nil
}
func (f *fakeBackend) GetTradeableAssets(context.Context) ([]model.Asset, error) { return nil, nil }

func positions() []model.Position {
	return []model.Position{
		{Asset: model.NewAsset("AAPL", model.Equity), Quantity: 6, CurrentPrice: 100, AvgPrice: 90},
		{Asset: model.NewAsset("MSFT", model.Equity), Quantity: 4, CurrentPrice: 100, AvgPrice: 110},
	}
}

func TestPortfolioUpdateAndWeights(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{positions: positions()}
	pf := NewPortfolio(backend, nil, logger.Noop{})

	require.NoError(t, pf.Init(context.Background()))
	assert.InDelta(t, 1000, pf.TotalValue(), 1e-9)

	weights, err := pf.Weights()
	require.NoError(t, err)
	require.Len(t, weights, 2)
	assert.InDelta(t, 0.6, weights["AAPL"].Weight, 1e-9)
	assert.InDelta(t, 0.4, weights["MSFT"].Weight, 1e-9)

	flat, err := pf.WeightMap()
	require.NoError(t, err)
	assert.InDelta(t, 0.6, flat["AAPL"], 1e-9)
}

func TestPortfolioUpdateIsIdempotent(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{positions: positions()}
	pf := NewPortfolio(backend, nil, logger.Noop{})

	require.NoError(t, pf.Update(context.Background()))
	require.NoError(t, pf.Update(context.Background()))
	require.NoError(t, pf.Update(context.Background()))

	// refreshes replace state, they never accumulate
	assert.Len(t, pf.Positions(), 2)
	assert.InDelta(t, 1000, pf.TotalValue(), 1e-9)
	assert.Equal(t, 3, backend.updates)
}

func TestPortfolioWeights_ZeroTotalValue(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{positions: []model.Position{
		{Asset: model.NewAsset("AAPL", model.Equity), Quantity: 10, CurrentPrice: 0},
	}}
	pf := NewPortfolio(backend, nil, logger.Noop{})
	require.NoError(t, pf.Update(context.Background()))

	_, err := pf.Weights()
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrZeroValue)
}

func TestPortfolioWeights_Empty(t *testing.T) {
	t.Parallel()

	pf := NewPortfolio(&fakeBackend{}, nil, logger.Noop{})
	require.NoError(t, pf.Update(context.Background()))

	weights, err := pf.Weights()
	require.NoError(t, err)
	assert.Empty(t, weights)
}
