package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SymbolModel is a scraped ticker identity. Rows are created on first
// sighting and never deleted; is_active tracks "currently on the page".
type SymbolModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Ticker    string    `gorm:"column:ticker;uniqueIndex:idx_symbols_key,priority:1"`
	Exchange  string    `gorm:"column:exchange;uniqueIndex:idx_symbols_key,priority:2"`
	IsActive  bool      `gorm:"column:is_active"`
	FirstSeen time.Time `gorm:"column:first_seen"`
}

func (SymbolModel) TableName() string { return "symbols" }

type PortfolioModel struct {
	ID           string          `gorm:"column:id;primaryKey"`
	Name         string          `gorm:"column:name"`
	BaseCurrency string          `gorm:"column:base_currency"`
	InitialCash  decimal.Decimal `gorm:"column:initial_cash;type:decimal(20,8)"`
	CashCurrent  decimal.Decimal `gorm:"column:cash_current;type:decimal(20,8)"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
}

func (PortfolioModel) TableName() string { return "portfolios" }

// PositionModel keeps qty/avg_cost/realized_pnl as decimal columns so money
// math survives many runs without float drift. At most one open row per
// (portfolio, symbol); enforced by a partial unique index created at migrate.
type PositionModel struct {
	ID          string          `gorm:"column:id;primaryKey"`
	PortfolioID string          `gorm:"column:portfolio_id;index:idx_positions_portfolio"`
	SymbolID    int64           `gorm:"column:symbol_id;index:idx_positions_symbol"`
	Qty         decimal.Decimal `gorm:"column:qty;type:decimal(20,8)"`
	AvgCost     decimal.Decimal `gorm:"column:avg_cost;type:decimal(20,8)"`
	OpenedAt    time.Time       `gorm:"column:opened_at"`
	ClosedAt    *time.Time      `gorm:"column:closed_at;index:idx_positions_closed"`
	RealizedPnl decimal.Decimal `gorm:"column:realized_pnl;type:decimal(20,8)"`
}

func (PositionModel) TableName() string { return "positions" }

// PriceDailyModel is one daily close per symbol per exchange-calendar date
// (YYYY-MM-DD, ET). Re-scrapes on the same date overwrite the close.
type PriceDailyModel struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	SymbolID  int64           `gorm:"column:symbol_id;uniqueIndex:idx_prices_symbol_date,priority:1"`
	Date      string          `gorm:"column:date;uniqueIndex:idx_prices_symbol_date,priority:2"`
	Close     decimal.Decimal `gorm:"column:close;type:decimal(20,8)"`
	Source    string          `gorm:"column:source"`
	CreatedAt time.Time       `gorm:"column:created_at"`
}

func (PriceDailyModel) TableName() string { return "prices_daily" }

// PortfolioValueModel is the per-day equity snapshot taken after each run.
type PortfolioValueModel struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement"`
	PortfolioID string          `gorm:"column:portfolio_id;uniqueIndex:idx_values_portfolio_date,priority:1"`
	Date        string          `gorm:"column:date;uniqueIndex:idx_values_portfolio_date,priority:2"`
	Equity      decimal.Decimal `gorm:"column:equity;type:decimal(20,8)"`
	Cash        decimal.Decimal `gorm:"column:cash;type:decimal(20,8)"`
	PnlDay      decimal.Decimal `gorm:"column:pnl_day;type:decimal(20,8)"`
	PnlTotal    decimal.Decimal `gorm:"column:pnl_total;type:decimal(20,8)"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
}

func (PortfolioValueModel) TableName() string { return "portfolio_values" }

// RunLogModel records one rebalance run with its full plan payload.
type RunLogModel struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement"`
	PortfolioID string          `gorm:"column:portfolio_id;index:idx_runs_portfolio"`
	StartedAt   time.Time       `gorm:"column:started_at"`
	FinishedAt  time.Time       `gorm:"column:finished_at"`
	Status      string          `gorm:"column:status"`
	TickerCount int             `gorm:"column:ticker_count"`
	PlanCount   int             `gorm:"column:plan_count"`
	Equity      decimal.Decimal `gorm:"column:equity;type:decimal(20,8)"`
	Cash        decimal.Decimal `gorm:"column:cash;type:decimal(20,8)"`
	Plan        datatypes.JSON  `gorm:"column:plan_json;type:TEXT"`
	Error       string          `gorm:"column:error"`
}

func (RunLogModel) TableName() string { return "run_logs" }
