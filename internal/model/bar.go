package model

import "time"

// Bar is one daily close used by the backtest history store.
type Bar struct {
	Symbol     string    `db:"symbol"`
	Day        time.Time `db:"day"`
	ClosePrice float64   `db:"close_price"`
}
