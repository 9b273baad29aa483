package alpaca

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/quantfolio/trading-bot/internal/broker"
	"github.com/quantfolio/trading-bot/internal/model"
	"github.com/quantfolio/trading-bot/internal/tools"
)

const _orderIDPrefix = "quantfolio-"

// PlaceOrder validates, gates on market hours, translates quantities into
// what the API accepts, clamps sells against available inventory and submits.
func (a *Client) PlaceOrder(ctx context.Context, order model.Order) (broker.OrderResult, error) {
	if err := order.Validate(); err != nil {
		return broker.OrderResult{}, err
	}

	clock, err := a.getClock(ctx)
	if err != nil {
		return broker.OrderResult{}, err
	}
	if err := broker.GateMarket(ctx, clock, a.cfg.ClosePolicy, a.cfg.CloseOffset, a.logger); err != nil {
		return broker.OrderResult{}, err
	}

	translated, err := a.translateQuantity(ctx, order)
	if err != nil {
		return broker.OrderResult{}, err
	}

	outcome := broker.Submitted
	reason := ""
	if translated.Side == model.Sell {
		var res *broker.OrderResult
		translated, outcome, reason, res, err = a.clampSell(ctx, translated)
		if err != nil {
			return broker.OrderResult{}, err
		}
		if res != nil {
			return *res, nil
		}
	}

	req := buildOrderRequest(translated)
	req.ClientOrderID = _orderIDPrefix + uuid.NewString()

	a.ordersRateLimiter.Take()
	var placed wireOrder
	resp, err := a.c.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&placed).
		SetError(&apiError{}).
		Post(_ordersURL)
	if err != nil {
		return broker.OrderResult{}, fmt.Errorf("%w: can't place %s order for %s", err, translated.Side, translated.Asset.Symbol)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		apiErr := wrapAPIError(resp.Error().(*apiError), resp.Status())
		translated.Status = model.Rejected
		a.logger.Warnf("%s: %s order for %s rejected", apiErr, translated.Side, translated.Asset.Symbol)
		return broker.OrderResult{Outcome: broker.Rejected, Order: translated, Reason: apiErr.Error()}, nil
	}

	a.logger.Infof("created %s order for %s (%s)", translated.Side, translated.Asset.Symbol, placed.ID)
	return broker.OrderResult{Outcome: outcome, Order: placed.toModel(), Reason: reason}, nil
}

// PlaceBulkOrders submits orders one by one; a failure on one never aborts
// the rest. Per-order errors become rejected results.
func (a *Client) PlaceBulkOrders(ctx context.Context, orders []model.Order) ([]broker.OrderResult, error) {
	results := make([]broker.OrderResult, 0, len(orders))
	for _, o := range orders {
		res, err := a.PlaceOrder(ctx, o)
		if err != nil {
			o.Status = model.Rejected
			res = broker.OrderResult{Outcome: broker.Rejected, Order: o, Reason: err.Error()}
			a.logger.Warnf("%s: bulk order for %s rejected", err, o.Asset.Symbol)
		}
		results = append(results, res)
	}
	a.logger.Infof("placed %d of %d bulk orders", countPlaced(results), len(orders))
	return results, nil
}

func (a *Client) CancelOrder(ctx context.Context, orderID string) error {
	a.ordersRateLimiter.Take()
	resp, err := a.c.R().
		SetContext(ctx).
		SetError(&apiError{}).
		Delete(_ordersURL + "/" + orderID)
	if err != nil {
		return fmt.Errorf("%w: can't cancel order %s", err, orderID)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return fmt.Errorf("%w: can't cancel order %s", wrapAPIError(resp.Error().(*apiError), resp.Status()), orderID)
	}
	return nil
}

func (a *Client) CancelBulkOrders(ctx context.Context, orderIDs []string) []error {
	errs := make([]error, 0, len(orderIDs))
	for _, id := range orderIDs {
		if err := a.CancelOrder(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// translateQuantity maps the instruction's quantity mode to what Alpaca's
// order API accepts. Market orders take notional directly; everything else
// needs a share count, converted at the side-aware latest quote and rounded
// half up to the configured increment.
func (a *Client) translateQuantity(ctx context.Context, order model.Order) (model.Order, error) {
	if order.Mode == model.Shares || order.Type == model.Market {
		return order, nil
	}
	if a.quotes == nil {
		return model.Order{}, fmt.Errorf("no quote source to translate notional %s order for %s", order.Type, order.Asset.Symbol)
	}

	quote, err := a.quotes.Latest(ctx, order.Asset.Symbol)
	if err != nil {
		return model.Order{}, fmt.Errorf("%w: can't quote %s", err, order.Asset.Symbol)
	}
	shares, err := tools.NotionalToShares(order.Quantity, quote.PriceFor(order.Side == model.Buy), a.cfg.Increment)
	if err != nil {
		return model.Order{}, err
	}

	order.Quantity = shares
	order.Mode = model.Shares
	return order, nil
}

// clampSell caps a sell request at what the position actually holds. If
// nothing is available the order is dismissed, never errored.
func (a *Client) clampSell(ctx context.Context, order model.Order) (model.Order, broker.Outcome, string, *broker.OrderResult, error) {
	position, held, err := a.getPosition(ctx, order.Asset.Symbol)
	if err != nil {
		return model.Order{}, "", "", nil, err
	}

	// the ceiling is the settled, unencumbered part, not the full holding
	available := position.Available()
	if order.Mode == model.Notional {
		available = position.Available() * position.CurrentPrice
	}
	if !held {
		available = 0
	}

	if available <= 0 {
		order.Status = model.Canceled
		reason := fmt.Sprintf("no inventory in %s", order.Asset.Symbol)
		a.logger.Warnf("sell order for %s dismissed: %s", order.Asset.Symbol, reason)
		return order, "", "", &broker.OrderResult{Outcome: broker.Dismissed, Order: order, Reason: reason}, nil
	}

	if order.Quantity > available {
		reason := fmt.Sprintf("requested %f, available %f", order.Quantity, available)
		a.logger.Warnf("sell quantity for %s exceeds available, clamping: %s", order.Asset.Symbol, reason)
		order.Quantity = available
		return order, broker.Clamped, reason, nil, nil
	}

	return order, broker.Submitted, "", nil, nil
}

func buildOrderRequest(order model.Order) orderRequest {
	req := orderRequest{
		Symbol:      order.Asset.Symbol,
		Side:        string(order.Side),
		Type:        string(order.Type),
		TimeInForce: "day",
	}
	qty := formatFloat(order.Quantity)
	if order.Mode == model.Notional {
		req.Notional = &qty
	} else {
		req.Qty = &qty
	}
	if order.LimitPrice != nil {
		v := formatFloat(*order.LimitPrice)
		req.LimitPrice = &v
	}
	if order.StopPrice != nil {
		v := formatFloat(*order.StopPrice)
		req.StopPrice = &v
	}
	if order.TrailPrice != nil {
		v := formatFloat(*order.TrailPrice)
		req.TrailPrice = &v
	}
	if order.TrailPercent != nil {
		v := formatFloat(*order.TrailPercent)
		req.TrailPercent = &v
	}
	return req
}

func countPlaced(results []broker.OrderResult) int {
	n := 0
	for _, r := range results {
		if r.Placed() {
			n++
		}
	}
	return n
}
