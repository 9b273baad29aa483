package alpaca

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/ratelimit"
	"resty.dev/v3"

	"github.com/quantfolio/trading-bot/internal/broker"
	"github.com/quantfolio/trading-bot/internal/logger"
	"github.com/quantfolio/trading-bot/internal/model"
	"github.com/quantfolio/trading-bot/internal/quotes"
)

const (
	_paperBaseURL = "https://paper-api.alpaca.markets"
	_liveBaseURL  = "https://api.alpaca.markets"

	_accountURL   = "/v2/account"
	_positionsURL = "/v2/positions"
	_ordersURL    = "/v2/orders"
	_assetsURL    = "/v2/assets"
	_clockURL     = "/v2/clock"
)

type Config struct {
	Key         string             `yaml:"key"`
	Secret      string             `yaml:"secret"`
	Paper       bool               `yaml:"paper"`
	BaseURL     string             `yaml:"base_url"` // override for tests
	ClosePolicy broker.ClosePolicy `yaml:"market_close_handle"`
	CloseOffset time.Duration      `yaml:"market_close_offset"`
	FeePerOrder float64            `yaml:"fee_per_order"`
	Increment   float64            `yaml:"quantity_increment"`
}

func (c *Config) Setup() error {
	if c.Key == "" || c.Secret == "" {
		return fmt.Errorf("alpaca credentials are required")
	}
	if c.BaseURL == "" {
		c.BaseURL = _liveBaseURL
		if c.Paper {
			c.BaseURL = _paperBaseURL
		}
	}
	if c.ClosePolicy == "" {
		c.ClosePolicy = broker.IgnorePolicy
	}
	if c.Increment <= 0 {
		c.Increment = 0.01
	}
	if c.FeePerOrder == 0 && !c.Paper {
		c.FeePerOrder = 1.0
	}
	return nil
}

// Client is the TradeBackend adapter for the Alpaca trading API.
type Client struct {
	c      *resty.Client
	cfg    Config
	quotes quotes.Source
	logger logger.Logger

	// 200 T/M on the orders endpoints
	ordersRateLimiter ratelimit.Limiter
}

func New(cfg Config, quotes quotes.Source, logger logger.Logger) (*Client, error) {
	if err := cfg.Setup(); err != nil {
		return nil, fmt.Errorf("can't setup alpaca config: %w", err)
	}

	client := resty.New().
		SetLogger(logger).
		SetBaseURL(cfg.BaseURL).
		SetHeader("APCA-API-KEY-ID", cfg.Key).
		SetHeader("APCA-API-SECRET-KEY", cfg.Secret)

	return &Client{
		c:                 client,
		cfg:               cfg,
		quotes:            quotes,
		logger:            logger,
		ordersRateLimiter: ratelimit.New(200, ratelimit.Per(time.Minute)),
	}, nil
}

func (a *Client) GetAccount(ctx context.Context) (model.AccountInfo, error) {
	var acc wireAccount
	if err := a.get(ctx, _accountURL, nil, &acc); err != nil {
		return model.AccountInfo{}, fmt.Errorf("%w: can't get account", err)
	}
	return acc.toModel(), nil
}

func (a *Client) GetCash(ctx context.Context) (float64, error) {
	acc, err := a.GetAccount(ctx)
	if err != nil {
		return 0, err
	}
	return acc.Cash, nil
}

func (a *Client) GetPositions(ctx context.Context) ([]model.Position, error) {
	var positions []wirePosition
	if err := a.get(ctx, _positionsURL, nil, &positions); err != nil {
		return nil, fmt.Errorf("%w: can't get positions", err)
	}

	out := make([]model.Position, 0, len(positions))
	for _, p := range positions {
		out = append(out, p.toModel())
	}
	return out, nil
}

func (a *Client) getPosition(ctx context.Context, symbol string) (model.Position, bool, error) {
	var p wirePosition
	err := a.get(ctx, _positionsURL+"/"+symbol, nil, &p)
	if err != nil {
		var apiErr *apiError
		if asAPIError(err, &apiErr) && apiErr.Code == 40410000 {
			return model.Position{}, false, nil
		}
		return model.Position{}, false, fmt.Errorf("%w: can't get position %s", err, symbol)
	}
	return p.toModel(), true, nil
}

func (a *Client) GetOrders(ctx context.Context, filter model.StatusFilter) ([]model.Order, error) {
	status := "all"
	switch filter {
	case model.OpenOrders:
		status = "open"
	case model.ClosedOrders:
		status = "closed"
	}

	var orders []wireOrder
	if err := a.get(ctx, _ordersURL, map[string]string{"status": status}, &orders); err != nil {
		return nil, fmt.Errorf("%w: can't get orders", err)
	}

	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.toModel())
	}
	return out, nil
}

// GetTrades lifts filled, non-canceled orders into the trade model.
func (a *Client) GetTrades(ctx context.Context) ([]model.Trade, error) {
	var orders []wireOrder
	if err := a.get(ctx, _ordersURL, map[string]string{"status": "closed"}, &orders); err != nil {
		return nil, fmt.Errorf("%w: can't get trades", err)
	}

	out := make([]model.Trade, 0, len(orders))
	for _, o := range orders {
		if trade, ok := o.toTrade(a.cfg.FeePerOrder); ok {
			out = append(out, trade)
		}
	}
	return out, nil
}

func (a *Client) GetTradeableAssets(ctx context.Context) ([]model.Asset, error) {
	var assets []wireAsset
	if err := a.get(ctx, _assetsURL, map[string]string{"status": "active"}, &assets); err != nil {
		return nil, fmt.Errorf("%w: can't get assets", err)
	}

	out := make([]model.Asset, 0, len(assets))
	for _, asset := range assets {
		if !asset.Tradable {
			continue
		}
		out = append(out, asset.toModel())
	}
	return out, nil
}

func (a *Client) GetOrderStatus(ctx context.Context, orderID string) (model.Order, error) {
	var o wireOrder
	if err := a.get(ctx, _ordersURL+"/"+orderID, nil, &o); err != nil {
		return model.Order{}, fmt.Errorf("%w: can't get order %s", err, orderID)
	}
	return o.toModel(), nil
}

func (a *Client) getClock(ctx context.Context) (broker.MarketClock, error) {
	var clock wireClock
	if err := a.get(ctx, _clockURL, nil, &clock); err != nil {
		return broker.MarketClock{}, fmt.Errorf("%w: can't get market clock", err)
	}
	return clock.toModel(), nil
}

func (a *Client) get(ctx context.Context, url string, query map[string]string, result any) error {
	req := a.c.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&apiError{})
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return wrapAPIError(resp.Error().(*apiError), resp.Status())
	}
	return nil
}
