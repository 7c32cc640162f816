package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"glbfolio/internal/portfolio"
	storemodel "glbfolio/internal/store/model"
)

// RunRecord summarizes one rebalance run.
type RunRecord struct {
	ID          int64
	PortfolioID string
	StartedAt   time.Time
	FinishedAt  time.Time
	Status      string
	TickerCount int
	PlanCount   int
	Equity      decimal.Decimal
	Cash        decimal.Decimal
	Plan        []portfolio.PlanItem
	Error       string
}

// AppendRunLog stores the run outcome with the full plan payload.
func (s *GormStore) AppendRunLog(ctx context.Context, rec RunRecord) error {
	if err := s.ready(); err != nil {
		return err
	}
	planBytes, err := json.Marshal(rec.Plan)
	if err != nil {
		return err
	}
	m := storemodel.RunLogModel{
		PortfolioID: rec.PortfolioID,
		StartedAt:   rec.StartedAt,
		FinishedAt:  rec.FinishedAt,
		Status:      rec.Status,
		TickerCount: rec.TickerCount,
		PlanCount:   rec.PlanCount,
		Equity:      rec.Equity,
		Cash:        rec.Cash,
		Plan:        datatypes.JSON(planBytes),
		Error:       rec.Error,
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// RecentRunLogs returns the latest runs, newest first.
func (s *GormStore) RecentRunLogs(ctx context.Context, portfolioID string, limit int) ([]RunRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var models []storemodel.RunLogModel
	if err := s.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("started_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]RunRecord, 0, len(models))
	for _, m := range models {
		rec := RunRecord{
			ID:          m.ID,
			PortfolioID: m.PortfolioID,
			StartedAt:   m.StartedAt,
			FinishedAt:  m.FinishedAt,
			Status:      m.Status,
			TickerCount: m.TickerCount,
			PlanCount:   m.PlanCount,
			Equity:      m.Equity,
			Cash:        m.Cash,
			Error:       m.Error,
		}
		if len(m.Plan) > 0 {
			_ = json.Unmarshal(m.Plan, &rec.Plan)
		}
		out = append(out, rec)
	}
	return out, nil
}

// EquitySnapshot is one per-day portfolio valuation.
type EquitySnapshot struct {
	Date     string
	Equity   decimal.Decimal
	Cash     decimal.Decimal
	PnlDay   decimal.Decimal
	PnlTotal decimal.Decimal
}

// SaveDailyEquity upserts the snapshot for (portfolio, date).
func (s *GormStore) SaveDailyEquity(ctx context.Context, portfolioID string, snap EquitySnapshot) error {
	if err := s.ready(); err != nil {
		return err
	}
	m := storemodel.PortfolioValueModel{
		PortfolioID: portfolioID,
		Date:        snap.Date,
		Equity:      snap.Equity,
		Cash:        snap.Cash,
		PnlDay:      snap.PnlDay,
		PnlTotal:    snap.PnlTotal,
		CreatedAt:   time.Now(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "portfolio_id"}, {Name: "date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"equity": snap.Equity, "cash": snap.Cash,
				"pnl_day": snap.PnlDay, "pnl_total": snap.PnlTotal,
			}),
		}).
		Create(&m).Error
}

// LastEquitySnapshot returns the most recent snapshot strictly before date,
// or ok=false when none exists.
func (s *GormStore) LastEquitySnapshot(ctx context.Context, portfolioID string, beforeDate string) (EquitySnapshot, bool, error) {
	if err := s.ready(); err != nil {
		return EquitySnapshot{}, false, err
	}
	var m storemodel.PortfolioValueModel
	err := s.db.WithContext(ctx).
		Where("portfolio_id = ? AND date < ?", portfolioID, beforeDate).
		Order("date DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return EquitySnapshot{}, false, nil
	}
	if err != nil {
		return EquitySnapshot{}, false, err
	}
	return EquitySnapshot{Date: m.Date, Equity: m.Equity, Cash: m.Cash, PnlDay: m.PnlDay, PnlTotal: m.PnlTotal}, true, nil
}

// EquityHistory returns snapshots in ascending date order.
func (s *GormStore) EquityHistory(ctx context.Context, portfolioID string, limit int) ([]EquitySnapshot, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = 365
	}
	var models []storemodel.PortfolioValueModel
	if err := s.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("date DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]EquitySnapshot, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		m := models[i]
		out = append(out, EquitySnapshot{Date: m.Date, Equity: m.Equity, Cash: m.Cash, PnlDay: m.PnlDay, PnlTotal: m.PnlTotal})
	}
	return out, nil
}
