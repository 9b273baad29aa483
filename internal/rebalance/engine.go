package rebalance

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/quantfolio/trading-bot/internal/logger"
	"github.com/quantfolio/trading-bot/internal/model"
)

// ErrNoFrame is a usage error: trade instructions were requested before any
// rebalance frame was computed.
var ErrNoFrame = errors.New("no rebalance frame computed yet")

// Row is one asset's line in a rebalance frame. Assets present only in the
// current portfolio get a zero target weight, assets present only in the
// target get a zero old weight; nothing is dropped.
type Row struct {
	Symbol    string  `json:"symbol"`
	OldWeight float64 `json:"w_old"`
	NewWeight float64 `json:"w_new"`
	AbsOld    float64 `json:"abs_old"`
	AbsNew    float64 `json:"abs_new"`
	Delta     float64 `json:"delta"`
}

// Frame is the intermediate table for one rebalance cycle, rows sorted by
// symbol so output is deterministic for a given input.
type Frame struct {
	Rows       []Row     `json:"rows"`
	TotalValue float64   `json:"total_value"`
	AddValue   float64   `json:"add_value"`
	CreatedAt  time.Time `json:"created_at"`
}

// Instruction is a broker-agnostic trade request sized in notional currency
// value. Adapters convert it into whatever unit their API expects.
type Instruction struct {
	Symbol   string             `json:"symbol"`
	Side     model.Side         `json:"side"`
	Quantity float64            `json:"quantity"`
	Mode     model.QuantityMode `json:"quantity_mode"`
}

// Order lifts the instruction into a market order for submission.
func (i Instruction) Order() (model.Order, error) {
	return model.NewOrder(model.NewAsset(i.Symbol, model.Equity), i.Side, i.Quantity, i.Mode, model.Market)
}

// Engine turns current and target weights into trade instructions. It is a
// pure computation except for retaining the last frame for inspection.
type Engine struct {
	logger logger.Logger

	lastFrame *Frame
}

func NewEngine(logger logger.Logger) *Engine {
	return &Engine{logger: logger}
}

// CreateFrame builds the rebalance table from current weights, the current
// total value, target weights and optional external cash (negative for a
// withdrawal). Identical inputs yield identical frames.
func (e *Engine) CreateFrame(current map[string]float64, totalValue float64, targets map[string]float64, addValue float64) (Frame, error) {
	if totalValue < 0 {
		return Frame{}, fmt.Errorf("%w: negative total value %f", model.ErrValidation, totalValue)
	}
	if totalValue == 0 && len(current) > 0 {
		return Frame{}, fmt.Errorf("%w: can't rebalance %d held assets", model.ErrZeroValue, len(current))
	}

	var targetSum float64
	for symbol, w := range targets {
		if w < 0 || w > 1 {
			return Frame{}, fmt.Errorf("%w: target weight %f for %s out of [0,1]", model.ErrValidation, w, symbol)
		}
		targetSum += w
	}
	// Over-allocation implies leverage; the engine leaves that decision to
	// the caller but makes it visible.
	if targetSum > 1+1e-9 {
		e.logger.Warnf("target weights sum to %f, portfolio would be leveraged", targetSum)
	}

	keys := make(map[string]struct{}, len(current)+len(targets))
	for symbol := range current {
		keys[symbol] = struct{}{}
	}
	for symbol := range targets {
		keys[symbol] = struct{}{}
	}

	symbols := make([]string, 0, len(keys))
	for symbol := range keys {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	newTotal := totalValue + addValue
	rows := make([]Row, 0, len(symbols))
	for _, symbol := range symbols {
		row := Row{
			Symbol:    symbol,
			OldWeight: current[symbol],
			NewWeight: targets[symbol],
		}
		row.AbsOld = row.OldWeight * totalValue
		row.AbsNew = row.NewWeight * newTotal
		row.Delta = row.AbsNew - row.AbsOld
		rows = append(rows, row)
	}

	frame := Frame{
		Rows:       rows,
		TotalValue: totalValue,
		AddValue:   addValue,
		CreatedAt:  time.Now().UTC(),
	}
	e.lastFrame = &frame
	return frame, nil
}

// LastFrame exposes the retained frame for inspection and the status server.
func (e *Engine) LastFrame() *Frame {
	return e.lastFrame
}

// TradeInstructions derives buy/sell instructions from the last computed
// frame. Positive delta buys, negative sells; zero-delta rows are filtered
// out so no-op orders never reach a broker.
func (e *Engine) TradeInstructions() ([]Instruction, error) {
	if e.lastFrame == nil {
		return nil, ErrNoFrame
	}

	instructions := make([]Instruction, 0, len(e.lastFrame.Rows))
	for _, row := range e.lastFrame.Rows {
		if row.Delta == 0 {
			continue
		}
		side := model.Buy
		if row.Delta < 0 {
			side = model.Sell
		}
		instructions = append(instructions, Instruction{
			Symbol:   row.Symbol,
			Side:     side,
			Quantity: abs(row.Delta),
			Mode:     model.Notional,
		})
	}
	return instructions, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
