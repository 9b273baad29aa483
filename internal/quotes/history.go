package quotes

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quantfolio/trading-bot/internal/logger"
	"github.com/quantfolio/trading-bot/internal/model"
)

const (
	_queryBars = `SELECT symbol, day, close_price FROM daily_bars
WHERE symbol = $1 AND day BETWEEN $2::date AND $3::date ORDER BY day`

	_upsertBar = `INSERT INTO daily_bars (symbol, day, close_price)
VALUES (:symbol, :day, :close_price)
ON CONFLICT (symbol, day) DO UPDATE SET close_price = excluded.close_price`
)

// Lookback for CloseOn when the requested day has no bar (weekend, holiday).
const _closeLookbackDays = 5

// History reads and writes daily close bars. The backtest replays these
// through a Static source instead of hitting a live quote stream.
type History struct {
	db     *sqlx.DB
	logger logger.Logger
}

func NewHistory(db *sqlx.DB, logger logger.Logger) *History {
	return &History{db: db, logger: logger}
}

func (h *History) Bars(symbol string, from, to time.Time) ([]model.Bar, error) {
	var bars []model.Bar
	if err := h.db.Select(&bars, _queryBars, symbol, from, to); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: can't get bars for %s", err, symbol)
	}
	return bars, nil
}

// CloseOn resolves the close price for symbol on day, falling back to the
// latest earlier bar within the lookback window.
func (h *History) CloseOn(symbol string, day time.Time) (float64, error) {
	day = day.UTC().Truncate(24 * time.Hour)
	bars, err := h.Bars(symbol, day.AddDate(0, 0, -_closeLookbackDays), day)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("no bars for %s on %s", symbol, day.Format(time.DateOnly))
	}
	return bars[len(bars)-1].ClosePrice, nil
}

func (h *History) SaveBars(bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := h.db.Beginx()
	if err != nil {
		return fmt.Errorf("%w: can't begin tx", err)
	}
	defer tx.Rollback()

	for _, b := range bars {
		if _, err := tx.NamedExec(_upsertBar, b); err != nil {
			return fmt.Errorf("%w: can't upsert bar %s %s", err, b.Symbol, b.Day.Format(time.DateOnly))
		}
	}
	return tx.Commit()
}
