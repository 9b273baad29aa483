package model

import (
	"fmt"
	"time"
)

// Trade is an executed fill of an order.
type Trade struct {
	ID           string            `json:"id"`
	Order        Order             `json:"order"`
	ExecPrice    float64           `json:"execution_price"`
	ExecQuantity float64           `json:"execution_quantity"`
	Fees         float64           `json:"fees"`
	ExecutedAt   time.Time         `json:"executed_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func NewTrade(id string, order Order, price, quantity, fees float64, executedAt time.Time) (Trade, error) {
	t := Trade{
		ID:           id,
		Order:        order,
		ExecPrice:    price,
		ExecQuantity: quantity,
		Fees:         fees,
		ExecutedAt:   executedAt,
	}
	if err := t.Validate(); err != nil {
		return Trade{}, err
	}
	return t, nil
}

func (t Trade) Validate() error {
	if t.ExecQuantity < 0 {
		return fmt.Errorf("%w: trade quantity must be non-negative", ErrValidation)
	}
	if t.ExecPrice < 0 {
		return fmt.Errorf("%w: trade price must be non-negative", ErrValidation)
	}
	if t.Fees < 0 {
		return fmt.Errorf("%w: trade fees must be non-negative", ErrValidation)
	}
	return nil
}

func (t Trade) Cost() float64 {
	return t.ExecPrice*t.ExecQuantity + t.Fees
}
