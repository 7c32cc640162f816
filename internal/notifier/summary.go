package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"glbfolio/internal/portfolio"
)

// RenderChangeSummary formats the applied plan as a plain-text digest, one
// line per trade. An empty plan still yields a heading so the subscriber
// knows the run happened.
func RenderChangeSummary(items []portfolio.PlanItem, equity, cash decimal.Decimal, runAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Portfolio run %s: %d change(s)\n", runAt.UTC().Format(time.RFC3339), len(items))
	for _, it := range items {
		fmt.Fprintf(&b, "%s %s qty=%s @ %s (%s)\n",
			it.Action, it.Ticker, it.QtyDelta.Abs().StringFixed(4), it.Price.StringFixed(2), it.Notional().StringFixed(2))
	}
	fmt.Fprintf(&b, "equity=%s cash=%s", equity.StringFixed(2), cash.StringFixed(2))
	return b.String()
}
