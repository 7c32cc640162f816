package portfolio

import (
	"github.com/shopspring/decimal"

	"glbfolio/internal/logger"
)

type EventKind string

const (
	EventEquity         EventKind = "equity"
	EventSkipNoPrice    EventKind = "skip_no_price"
	EventStopLoss       EventKind = "stop_loss"
	EventDropExit       EventKind = "drop_exit"
	EventSameDayGuard   EventKind = "same_day_guard"
	EventCooldownBlock  EventKind = "cooldown_block"
	EventSkipTiny       EventKind = "skip_tiny"
	EventBuyApplied     EventKind = "buy_applied"
	EventSellApplied    EventKind = "sell_applied"
	EventSellNoPosition EventKind = "sell_no_position"
	EventCashWritten    EventKind = "cash_written"
)

// Event is one structured occurrence during planning or execution. Fields
// that do not apply to a given kind stay zero.
type Event struct {
	Kind     EventKind
	Ticker   string
	SymbolID int64
	Qty      decimal.Decimal
	Price    decimal.Decimal
	Notional decimal.Decimal
	Cash     decimal.Decimal
	Equity   decimal.Decimal
	Target   decimal.Decimal
	Realized decimal.Decimal
	Closing  bool
}

// RunObserver receives planner and executor events. Implementations must be
// cheap and must never fail the run.
type RunObserver interface {
	Observe(Event)
}

type NopObserver struct{}

func (NopObserver) Observe(Event) {}

// LogObserver emits every event through the process logger at a level
// matching its severity.
type LogObserver struct{}

func (LogObserver) Observe(ev Event) {
	switch ev.Kind {
	case EventEquity:
		logger.Infof("plan: equity=%s cash=%s target_per_symbol=%s",
			ev.Equity.StringFixed(2), ev.Cash.StringFixed(2), ev.Target.StringFixed(2))
	case EventSkipNoPrice:
		logger.Warnf("plan: no price for %s (symbol=%d), skipped", ev.Ticker, ev.SymbolID)
	case EventStopLoss:
		logger.Infof("plan: stop-loss %s qty=%s price=%s", ev.Ticker, ev.Qty.String(), ev.Price.String())
	case EventDropExit:
		logger.Infof("plan: %s dropped from page, selling qty=%s", ev.Ticker, ev.Qty.String())
	case EventSameDayGuard:
		logger.Infof("plan: %s opened today, exit deferred", ev.Ticker)
	case EventCooldownBlock:
		logger.Infof("plan: %s in re-entry cooldown, buy skipped", ev.Ticker)
	case EventSkipTiny:
		logger.Debugf("skip sub-epsilon qty for %s", ev.Ticker)
	case EventBuyApplied:
		logger.Infof("exec: BUY %s qty=%s price=%s notional=%s cash_after=%s",
			ev.Ticker, ev.Qty.String(), ev.Price.String(), ev.Notional.StringFixed(2), ev.Cash.StringFixed(2))
	case EventSellApplied:
		logger.Infof("exec: SELL %s qty=%s price=%s realized=%s cash_after=%s closing=%v",
			ev.Ticker, ev.Qty.String(), ev.Price.String(), ev.Realized.StringFixed(2), ev.Cash.StringFixed(2), ev.Closing)
	case EventSellNoPosition:
		logger.Warnf("exec: SELL %s with no open position, skipped", ev.Ticker)
	case EventCashWritten:
		logger.Infof("exec: portfolio cash updated to %s", ev.Cash.StringFixed(2))
	default:
		logger.Debugf("event %s ticker=%s", ev.Kind, ev.Ticker)
	}
}
