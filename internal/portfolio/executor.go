package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TxStore is the slice of position/cash persistence the executor needs. The
// store hands the executor an implementation bound to one open transaction;
// any returned error aborts the whole run and rolls everything back.
type TxStore interface {
	InsertPosition(ctx context.Context, portfolioID string, symbolID int64, qty, avgCost decimal.Decimal, openedAt time.Time) (string, error)
	GrowPosition(ctx context.Context, positionID string, qty, avgCost decimal.Decimal) error
	ShrinkPosition(ctx context.Context, positionID string, qty, realizedDelta decimal.Decimal) error
	ClosePosition(ctx context.Context, positionID string, realizedDelta decimal.Decimal, closedAt time.Time) error
	WriteCash(ctx context.Context, portfolioID string, cash decimal.Decimal) error
}

// Execute applies the plan items in order against the transaction, keeping
// the in-memory open map consistent with every mutation so later items see
// up-to-date quantity and average cost. Returns the final cash balance,
// which is also written to the store as the last step.
//
// Anomalies (sub-epsilon deltas, sells with no matching position) are
// reported to the observer and skipped; only store errors are fatal.
func Execute(ctx context.Context, tx TxStore, portfolioID string, plan []PlanItem, cash decimal.Decimal, open map[int64]*OpenPosition, now time.Time, obs RunObserver) (decimal.Decimal, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	for _, item := range plan {
		if item.QtyDelta.Abs().Cmp(Epsilon) < 0 {
			obs.Observe(Event{Kind: EventSkipTiny, Ticker: item.Ticker, SymbolID: item.SymbolID})
			continue
		}
		existing := open[item.SymbolID]

		if item.QtyDelta.IsPositive() {
			notional := item.QtyDelta.Mul(item.Price)
			cash = cash.Sub(notional)
			if existing == nil {
				id, err := tx.InsertPosition(ctx, portfolioID, item.SymbolID, item.QtyDelta, item.Price, now)
				if err != nil {
					return cash, fmt.Errorf("insert position %s: %w", item.Ticker, err)
				}
				open[item.SymbolID] = &OpenPosition{
					ID:       id,
					SymbolID: item.SymbolID,
					Qty:      item.QtyDelta,
					AvgCost:  item.Price,
					OpenedAt: now,
				}
			} else {
				newQty := existing.Qty.Add(item.QtyDelta)
				newAvg := existing.Qty.Mul(existing.AvgCost).
					Add(item.QtyDelta.Mul(item.Price)).
					Div(newQty)
				if err := tx.GrowPosition(ctx, existing.ID, newQty, newAvg); err != nil {
					return cash, fmt.Errorf("grow position %s: %w", item.Ticker, err)
				}
				existing.Qty = newQty
				existing.AvgCost = newAvg
			}
			obs.Observe(Event{
				Kind: EventBuyApplied, Ticker: item.Ticker, SymbolID: item.SymbolID,
				Qty: item.QtyDelta, Price: item.Price, Notional: notional, Cash: cash,
			})
			continue
		}

		// SELL
		if existing == nil {
			obs.Observe(Event{Kind: EventSellNoPosition, Ticker: item.Ticker, SymbolID: item.SymbolID})
			continue
		}
		sellQty := decimal.Min(existing.Qty, item.QtyDelta.Abs())
		notional := sellQty.Mul(item.Price)
		cash = cash.Add(notional)
		realized := item.Price.Sub(existing.AvgCost).Mul(sellQty)
		remaining := existing.Qty.Sub(sellQty)
		closing := remaining.Cmp(Epsilon) <= 0
		if closing {
			if err := tx.ClosePosition(ctx, existing.ID, realized, now); err != nil {
				return cash, fmt.Errorf("close position %s: %w", item.Ticker, err)
			}
			delete(open, item.SymbolID)
		} else {
			if err := tx.ShrinkPosition(ctx, existing.ID, remaining, realized); err != nil {
				return cash, fmt.Errorf("shrink position %s: %w", item.Ticker, err)
			}
			existing.Qty = remaining
		}
		obs.Observe(Event{
			Kind: EventSellApplied, Ticker: item.Ticker, SymbolID: item.SymbolID,
			Qty: sellQty, Price: item.Price, Notional: notional, Cash: cash,
			Realized: realized, Closing: closing,
		})
	}

	if err := tx.WriteCash(ctx, portfolioID, cash); err != nil {
		return cash, fmt.Errorf("write cash: %w", err)
	}
	obs.Observe(Event{Kind: EventCashWritten, Cash: cash})
	return cash, nil
}
