package broker

import (
	"context"

	"github.com/quantfolio/trading-bot/internal/model"
)

// TradeBackend is the capability set every brokerage integration must
// satisfy to plug into the portfolio and rebalance engine. Implementations
// normalize their wire models into the shared model types and own quantity
// translation, sell clamping and market-hours gating.
type TradeBackend interface {
	GetAccount(ctx context.Context) (model.AccountInfo, error)
	GetCash(ctx context.Context) (float64, error)
	GetPositions(ctx context.Context) ([]model.Position, error)
	GetOrders(ctx context.Context, filter model.StatusFilter) ([]model.Order, error)
	GetTrades(ctx context.Context) ([]model.Trade, error)

	PlaceOrder(ctx context.Context, order model.Order) (OrderResult, error)
	// PlaceBulkOrders is best-effort: a failure on one order must not prevent
	// attempting the rest. The result slice is positionally aligned with the
	// input and every entry carries its own outcome.
	PlaceBulkOrders(ctx context.Context, orders []model.Order) ([]OrderResult, error)

	CancelOrder(ctx context.Context, orderID string) error
	CancelBulkOrders(ctx context.Context, orderIDs []string) []error
	GetOrderStatus(ctx context.Context, orderID string) (model.Order, error)
	GetTradeableAssets(ctx context.Context) ([]model.Asset, error)
}
