package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrValidation marks bad input shape/range caught at construction time.
// It is fatal for the offending value and never silently coerced.
var ErrValidation = errors.New("validation error")

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

type OrderType string

const (
	Market       OrderType = "market"
	Limit        OrderType = "limit"
	Stop         OrderType = "stop"
	StopLimit    OrderType = "stop_limit"
	TrailingStop OrderType = "trailing_stop"
)

type OrderStatus string

const (
	Pending  OrderStatus = "pending"
	Filled   OrderStatus = "filled"
	Canceled OrderStatus = "canceled"
	Rejected OrderStatus = "rejected"
	Expired  OrderStatus = "expired"
)

// QuantityMode says whether an order size is a share count or a notional
// currency value. Exactly one interpretation applies per order.
type QuantityMode string

const (
	Shares   QuantityMode = "shares"
	Notional QuantityMode = "notional"
)

type StatusFilter string

const (
	OpenOrders   StatusFilter = "open"
	ClosedOrders StatusFilter = "closed"
	AllOrders    StatusFilter = "all"
)

type Order struct {
	ID           string            `json:"id"`
	Asset        Asset             `json:"asset"`
	Side         Side              `json:"side"`
	Quantity     float64           `json:"quantity"`
	Mode         QuantityMode      `json:"quantity_mode"`
	Type         OrderType         `json:"order_type"`
	Status       OrderStatus       `json:"status"`
	LimitPrice   *float64          `json:"limit_price,omitempty"`
	StopPrice    *float64          `json:"stop_price,omitempty"`
	TrailPrice   *float64          `json:"trail_price,omitempty"`
	TrailPercent *float64          `json:"trail_percent,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewOrder builds a pending market-hours order and validates it. Invariants
// are enforced here, not downstream.
func NewOrder(asset Asset, side Side, quantity float64, mode QuantityMode, orderType OrderType) (Order, error) {
	o := Order{
		Asset:     asset,
		Side:      side,
		Quantity:  quantity,
		Mode:      mode,
		Type:      orderType,
		Status:    Pending,
		CreatedAt: time.Now().UTC(),
	}
	if o.Mode == "" {
		o.Mode = Notional
	}
	if o.Type == "" {
		o.Type = Market
	}
	if err := o.Validate(); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (o Order) Validate() error {
	if o.Asset.Key() == "" {
		return fmt.Errorf("%w: order requires an asset symbol or id", ErrValidation)
	}
	if o.Side != Buy && o.Side != Sell {
		return fmt.Errorf("%w: order side must be %q or %q, got %q", ErrValidation, Buy, Sell, o.Side)
	}
	if o.Quantity < 0 {
		return fmt.Errorf("%w: order quantity must be non-negative, got %f", ErrValidation, o.Quantity)
	}
	if o.Mode != Shares && o.Mode != Notional {
		return fmt.Errorf("%w: unknown quantity mode %q", ErrValidation, o.Mode)
	}
	if o.LimitPrice != nil && *o.LimitPrice < 0 {
		return fmt.Errorf("%w: limit price must be non-negative", ErrValidation)
	}
	if o.StopPrice != nil && *o.StopPrice < 0 {
		return fmt.Errorf("%w: stop price must be non-negative", ErrValidation)
	}
	switch o.Type {
	case Market, TrailingStop:
	case Limit:
		if o.LimitPrice == nil {
			return fmt.Errorf("%w: limit order requires a limit price", ErrValidation)
		}
	case Stop:
		if o.StopPrice == nil {
			return fmt.Errorf("%w: stop order requires a stop price", ErrValidation)
		}
	case StopLimit:
		if o.StopPrice == nil || o.LimitPrice == nil {
			return fmt.Errorf("%w: stop-limit order requires both stop and limit prices", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown order type %q", ErrValidation, o.Type)
	}
	return nil
}
