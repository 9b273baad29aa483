package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quantfolio/trading-bot/internal/model"
)

type positionRow struct {
	AccountID    string  `db:"account_id"`
	Symbol       string  `db:"symbol"`
	AssetID      string  `db:"asset_id"`
	AssetClass   string  `db:"asset_class"`
	Quantity     float64 `db:"quantity"`
	AvailableQty float64 `db:"available_qty"`
	AvgPrice     float64 `db:"avg_price"`
	CurrentPrice float64 `db:"current_price"`
}

const (
	_querySnapshot  = "SELECT total_value FROM portfolio_snapshots WHERE account_id = $1"
	_queryPositions = "SELECT * FROM portfolio_positions WHERE account_id = $1"

	_upsertSnapshot = `INSERT INTO portfolio_snapshots (account_id, total_value, updated_at)
						VALUES ($1,$2,NOW())
						ON CONFLICT (account_id)
						DO UPDATE SET
							total_value = EXCLUDED.total_value,
							updated_at = EXCLUDED.updated_at;`
	_deletePositions = "DELETE FROM portfolio_positions WHERE account_id = $1"
	_insertPosition  = `INSERT INTO portfolio_positions (
							account_id,
							symbol,
							asset_id,
							asset_class,
							quantity,
							available_qty,
							avg_price,
							current_price
						) VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
)

// SaveSnapshot persists the current positions and total value. The snapshot
// is observational; the broker stays the source of truth on restart.
func (p *Portfolio) SaveSnapshot(ctx context.Context) error {
	if p.db == nil {
		return nil
	}

	p.mu.RLock()
	accountID := p.accountID
	totalValue := p.totalValue
	positions := make([]model.Position, len(p.positions))
	copy(positions, p.positions)
	p.mu.RUnlock()

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: can't begin snapshot tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, _upsertSnapshot, accountID, totalValue); err != nil {
		return fmt.Errorf("%w: can't upsert portfolio snapshot", err)
	}
	if _, err := tx.ExecContext(ctx, _deletePositions, accountID); err != nil {
		return fmt.Errorf("%w: can't clear snapshot positions", err)
	}
	for _, position := range positions {
		if _, err := tx.ExecContext(ctx, _insertPosition,
			accountID,
			position.Asset.Symbol,
			position.Asset.ID,
			position.Asset.Class,
			position.Quantity,
			position.AvailableQuantity,
			position.AvgPrice,
			position.CurrentPrice,
		); err != nil {
			return fmt.Errorf("%w: can't insert snapshot position", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: can't commit snapshot", err)
	}
	return nil
}

// LoadSnapshot returns the last persisted view, for dashboards and
// post-mortems. Returns false when no snapshot exists yet.
func (p *Portfolio) LoadSnapshot(ctx context.Context) ([]model.Position, float64, bool, error) {
	if p.db == nil {
		return nil, 0, false, nil
	}

	p.mu.RLock()
	accountID := p.accountID
	p.mu.RUnlock()

	var totalValue float64
	if err := p.db.GetContext(ctx, &totalValue, _querySnapshot, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, false, nil
		}
		return nil, 0, false, fmt.Errorf("%w: can't query portfolio snapshot", err)
	}

	var rows []positionRow
	if err := p.db.SelectContext(ctx, &rows, _queryPositions, accountID); err != nil {
		return nil, 0, false, fmt.Errorf("%w: can't query snapshot positions", err)
	}

	positions := make([]model.Position, 0, len(rows))
	for _, row := range rows {
		asset := model.NewAsset(row.Symbol, model.AssetClass(row.AssetClass))
		asset.ID = row.AssetID
		positions = append(positions, model.Position{
			Asset:             asset,
			Quantity:          row.Quantity,
			AvailableQuantity: row.AvailableQty,
			AvgPrice:          row.AvgPrice,
			CurrentPrice:      row.CurrentPrice,
		})
	}

	return positions, totalValue, true, nil
}
