package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
)

// Epsilon is the zero threshold for quantity and price comparisons. Positions
// whose remaining quantity falls at or below it are considered closed.
var Epsilon = decimal.New(1, -9)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// SymbolRow is the resolved identity of a tradeable symbol.
type SymbolRow struct {
	ID       int64
	Ticker   string
	Exchange string
}

// OpenPosition is a currently held position. Qty stays positive while open.
type OpenPosition struct {
	ID       string
	SymbolID int64
	Qty      decimal.Decimal
	AvgCost  decimal.Decimal
	OpenedAt time.Time
}

// MarketValue prices the position with the latest close, falling back to the
// average cost when no close is known.
func (p OpenPosition) MarketValue(close decimal.Decimal, ok bool) decimal.Decimal {
	if !ok {
		return p.Qty.Mul(p.AvgCost)
	}
	return p.Qty.Mul(close)
}

// PlanItem is one intended trade. QtyDelta is signed: positive for BUY,
// negative for SELL. Items with |QtyDelta| below Epsilon are never emitted.
type PlanItem struct {
	Ticker   string          `json:"ticker"`
	SymbolID int64           `json:"symbol_id"`
	Action   Action          `json:"action"`
	QtyDelta decimal.Decimal `json:"qty_delta"`
	Price    decimal.Decimal `json:"price"`
}

// Notional is the absolute dollar value of the trade.
func (it PlanItem) Notional() decimal.Decimal {
	return it.QtyDelta.Abs().Mul(it.Price)
}

// PlanInput carries everything the planner needs. The planner performs no
// I/O: prices, positions and the blocked set are resolved by the caller.
type PlanInput struct {
	Tickers            []string
	Symbols            []SymbolRow
	OpenPositions      []OpenPosition
	LatestClose        map[int64]decimal.Decimal
	Cash               decimal.Decimal
	Blocked            map[int64]bool
	StopLossMultiplier decimal.Decimal
	Now                time.Time
	ExchangeTZ         *time.Location
}

type PlanResult struct {
	Equity          decimal.Decimal
	TargetPerSymbol decimal.Decimal
	Items           []PlanItem
}

// MarketTZ returns the exchange calendar timezone used for the same-day
// trade guard. Falls back to a fixed ET offset when tzdata is unavailable.
func MarketTZ() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("ET", -5*60*60)
	}
	return loc
}

func sameCalendarDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
