package gormstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"glbfolio/internal/portfolio"
	storemodel "glbfolio/internal/store/model"
)

// OpenPositionRow joins an open position with its symbol identity, which the
// runner needs to refresh prices for held names.
type OpenPositionRow struct {
	portfolio.OpenPosition
	Ticker   string
	Exchange string
}

// OpenPositions lists the open positions of a portfolio with their symbol
// identity, ordered by opened_at for deterministic planning.
func (s *GormStore) OpenPositions(ctx context.Context, portfolioID string) ([]OpenPositionRow, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var models []storemodel.PositionModel
	if err := s.db.WithContext(ctx).
		Where("portfolio_id = ? AND closed_at IS NULL", portfolioID).
		Order("opened_at ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.SymbolID)
	}
	symbols, err := s.SymbolsByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]OpenPositionRow, 0, len(models))
	for _, m := range models {
		row := OpenPositionRow{
			OpenPosition: portfolio.OpenPosition{
				ID:       m.ID,
				SymbolID: m.SymbolID,
				Qty:      m.Qty,
				AvgCost:  m.AvgCost,
				OpenedAt: m.OpenedAt,
			},
		}
		if sym, ok := symbols[m.SymbolID]; ok {
			row.Ticker = sym.Ticker
			row.Exchange = sym.Exchange
		}
		out = append(out, row)
	}
	return out, nil
}

// RecentLosingClosedSymbolIDs returns symbol ids with a position closed at
// a realized loss on or after cutoff. Backs the re-entry cooldown filter.
func (s *GormStore) RecentLosingClosedSymbolIDs(ctx context.Context, portfolioID string, cutoff time.Time) ([]int64, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&storemodel.PositionModel{}).
		Distinct("symbol_id").
		Where("portfolio_id = ? AND closed_at IS NOT NULL AND closed_at >= ? AND realized_pnl < 0", portfolioID, cutoff).
		Pluck("symbol_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ApplyPlan runs the executor inside a single transaction: all position
// mutations and the final cash write commit together or not at all.
func (s *GormStore) ApplyPlan(ctx context.Context, portfolioID string, plan []portfolio.PlanItem, cash decimal.Decimal, open map[int64]*portfolio.OpenPosition, now time.Time, obs portfolio.RunObserver) (decimal.Decimal, error) {
	if err := s.ready(); err != nil {
		return cash, err
	}
	finalCash := cash
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var execErr error
		finalCash, execErr = portfolio.Execute(ctx, &planTx{tx: tx}, portfolioID, plan, cash, open, now, obs)
		return execErr
	})
	if err != nil {
		return cash, err
	}
	return finalCash, nil
}

// planTx adapts one open gorm transaction to the executor's TxStore.
type planTx struct {
	tx *gorm.DB
}

var _ portfolio.TxStore = (*planTx)(nil)

func (p *planTx) InsertPosition(ctx context.Context, portfolioID string, symbolID int64, qty, avgCost decimal.Decimal, openedAt time.Time) (string, error) {
	m := storemodel.PositionModel{
		ID:          uuid.NewString(),
		PortfolioID: portfolioID,
		SymbolID:    symbolID,
		Qty:         qty,
		AvgCost:     avgCost,
		OpenedAt:    openedAt,
		RealizedPnl: decimal.Zero,
	}
	if err := p.tx.WithContext(ctx).Create(&m).Error; err != nil {
		return "", err
	}
	return m.ID, nil
}

func (p *planTx) GrowPosition(ctx context.Context, positionID string, qty, avgCost decimal.Decimal) error {
	return p.tx.WithContext(ctx).
		Model(&storemodel.PositionModel{}).
		Where("id = ?", positionID).
		Updates(map[string]interface{}{"qty": qty, "avg_cost": avgCost}).Error
}

func (p *planTx) ShrinkPosition(ctx context.Context, positionID string, qty, realizedDelta decimal.Decimal) error {
	return p.tx.WithContext(ctx).
		Model(&storemodel.PositionModel{}).
		Where("id = ?", positionID).
		Updates(map[string]interface{}{
			"qty":          qty,
			"realized_pnl": gorm.Expr("realized_pnl + ?", realizedDelta),
		}).Error
}

func (p *planTx) ClosePosition(ctx context.Context, positionID string, realizedDelta decimal.Decimal, closedAt time.Time) error {
	return p.tx.WithContext(ctx).
		Model(&storemodel.PositionModel{}).
		Where("id = ?", positionID).
		Updates(map[string]interface{}{
			"closed_at":    closedAt,
			"realized_pnl": gorm.Expr("realized_pnl + ?", realizedDelta),
		}).Error
}

func (p *planTx) WriteCash(ctx context.Context, portfolioID string, cash decimal.Decimal) error {
	return p.tx.WithContext(ctx).
		Model(&storemodel.PortfolioModel{}).
		Where("id = ?", portfolioID).
		Update("cash_current", cash).Error
}
