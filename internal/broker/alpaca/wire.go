package alpaca

import (
	"strconv"
	"time"

	"github.com/quantfolio/trading-bot/internal/broker"
	"github.com/quantfolio/trading-bot/internal/model"
)

// Alpaca encodes numbers as JSON strings; decode into strings and parse.

type wireAccount struct {
	ID             string `json:"id"`
	Currency       string `json:"currency"`
	Cash           string `json:"cash"`
	BuyingPower    string `json:"buying_power"`
	PortfolioValue string `json:"portfolio_value"`
}

type wirePosition struct {
	AssetID       string `json:"asset_id"`
	Symbol        string `json:"symbol"`
	AssetClass    string `json:"asset_class"`
	Qty           string `json:"qty"`
	QtyAvailable  string `json:"qty_available"`
	AvgEntryPrice string `json:"avg_entry_price"`
	CurrentPrice  string `json:"current_price"`
	MarketValue   string `json:"market_value"`
}

type wireOrder struct {
	ID             string  `json:"id"`
	ClientOrderID  string  `json:"client_order_id"`
	AssetID        string  `json:"asset_id"`
	Symbol         string  `json:"symbol"`
	AssetClass     string  `json:"asset_class"`
	CreatedAt      string  `json:"created_at"`
	FilledAt       *string `json:"filled_at"`
	Qty            *string `json:"qty"`
	Notional       *string `json:"notional"`
	FilledQty      string  `json:"filled_qty"`
	FilledAvgPrice *string `json:"filled_avg_price"`
	Side           string  `json:"side"`
	Type           string  `json:"type"`
	Status         string  `json:"status"`
	LimitPrice     *string `json:"limit_price"`
	StopPrice      *string `json:"stop_price"`
	TrailPrice     *string `json:"trail_price"`
	TrailPercent   *string `json:"trail_percent"`
}

type wireAsset struct {
	ID           string `json:"id"`
	Class        string `json:"class"`
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	Tradable     bool   `json:"tradable"`
	Fractionable bool   `json:"fractionable"`
}

type wireClock struct {
	Timestamp string `json:"timestamp"`
	IsOpen    bool   `json:"is_open"`
	NextOpen  string `json:"next_open"`
	NextClose string `json:"next_close"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type orderRequest struct {
	Symbol        string  `json:"symbol"`
	Qty           *string `json:"qty,omitempty"`
	Notional      *string `json:"notional,omitempty"`
	Side          string  `json:"side"`
	Type          string  `json:"type"`
	TimeInForce   string  `json:"time_in_force"`
	LimitPrice    *string `json:"limit_price,omitempty"`
	StopPrice     *string `json:"stop_price,omitempty"`
	TrailPrice    *string `json:"trail_price,omitempty"`
	TrailPercent  *string `json:"trail_percent,omitempty"`
	ClientOrderID string  `json:"client_order_id,omitempty"`
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseFloatPtr(s *string) *float64 {
	if s == nil {
		return nil
	}
	v := parseFloat(*s)
	return &v
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func assetClass(s string) model.AssetClass {
	switch s {
	case "crypto":
		return model.Crypto
	case "us_option":
		return model.Option
	default:
		return model.Equity
	}
}

func orderStatus(s string) model.OrderStatus {
	switch s {
	case "filled":
		return model.Filled
	case "canceled", "done_for_day", "replaced":
		return model.Canceled
	case "rejected", "denied", "stopped", "suspended":
		return model.Rejected
	case "expired":
		return model.Expired
	default:
		// new, accepted, pending_new, partially_filled, held, ...
		return model.Pending
	}
}

func orderType(s string) model.OrderType {
	switch s {
	case "limit":
		return model.Limit
	case "stop":
		return model.Stop
	case "stop_limit":
		return model.StopLimit
	case "trailing_stop":
		return model.TrailingStop
	default:
		return model.Market
	}
}

func (w wireAccount) toModel() model.AccountInfo {
	return model.AccountInfo{
		ID:             w.ID,
		Currency:       w.Currency,
		Cash:           parseFloat(w.Cash),
		BuyingPower:    parseFloat(w.BuyingPower),
		PortfolioValue: parseFloat(w.PortfolioValue),
	}
}

func (w wirePosition) toModel() model.Position {
	asset := model.NewAsset(w.Symbol, assetClass(w.AssetClass))
	asset.ID = w.AssetID
	return model.Position{
		Asset:             asset,
		Quantity:          parseFloat(w.Qty),
		AvailableQuantity: parseFloat(w.QtyAvailable),
		AvgPrice:          parseFloat(w.AvgEntryPrice),
		CurrentPrice:      parseFloat(w.CurrentPrice),
	}
}

func (w wireOrder) toModel() model.Order {
	asset := model.NewAsset(w.Symbol, assetClass(w.AssetClass))
	asset.ID = w.AssetID

	quantity := 0.0
	mode := model.Shares
	if w.Notional != nil {
		quantity = parseFloat(*w.Notional)
		mode = model.Notional
	} else if w.Qty != nil {
		quantity = parseFloat(*w.Qty)
	}

	return model.Order{
		ID:           w.ID,
		Asset:        asset,
		Side:         model.Side(w.Side),
		Quantity:     quantity,
		Mode:         mode,
		Type:         orderType(w.Type),
		Status:       orderStatus(w.Status),
		LimitPrice:   parseFloatPtr(w.LimitPrice),
		StopPrice:    parseFloatPtr(w.StopPrice),
		TrailPrice:   parseFloatPtr(w.TrailPrice),
		TrailPercent: parseFloatPtr(w.TrailPercent),
		CreatedAt:    parseTime(w.CreatedAt),
		Metadata:     map[string]string{"client_order_id": w.ClientOrderID},
	}
}

// toTrade lifts a filled order into the normalized trade model.
func (w wireOrder) toTrade(feePerOrder float64) (model.Trade, bool) {
	if orderStatus(w.Status) != model.Filled || w.FilledAvgPrice == nil {
		return model.Trade{}, false
	}
	executedAt := parseTime(w.CreatedAt)
	if w.FilledAt != nil {
		executedAt = parseTime(*w.FilledAt)
	}
	return model.Trade{
		ID:           "fill-" + w.ID,
		Order:        w.toModel(),
		ExecPrice:    parseFloat(*w.FilledAvgPrice),
		ExecQuantity: parseFloat(w.FilledQty),
		Fees:         feePerOrder,
		ExecutedAt:   executedAt,
	}, true
}

func (w wireAsset) toModel() model.Asset {
	a := model.NewAsset(w.Symbol, assetClass(w.Class))
	a.ID = w.ID
	a.Name = w.Name
	a.Metadata = map[string]string{
		"fractionable": strconv.FormatBool(w.Fractionable),
	}
	return a
}

func (w wireClock) toModel() broker.MarketClock {
	return broker.MarketClock{
		Now:       parseTime(w.Timestamp),
		IsOpen:    w.IsOpen,
		NextOpen:  parseTime(w.NextOpen),
		NextClose: parseTime(w.NextClose),
	}
}
