package notifier

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"glbfolio/internal/portfolio"
)

func TestRenderChangeSummary(t *testing.T) {
	runAt := time.Date(2026, 3, 10, 21, 30, 0, 0, time.UTC)
	items := []portfolio.PlanItem{
		{Ticker: "HWM", Action: portfolio.ActionSell, QtyDelta: decimal.NewFromInt(-10), Price: decimal.NewFromFloat(191.25)},
		{Ticker: "APP", Action: portfolio.ActionBuy, QtyDelta: decimal.NewFromFloat(3.5), Price: decimal.NewFromInt(400)},
	}

	got := RenderChangeSummary(items, decimal.NewFromInt(12345), decimal.NewFromFloat(512.5), runAt)

	lines := strings.Split(got, "\n")
	assert.Equal(t, "Portfolio run 2026-03-10T21:30:00Z: 2 change(s)", lines[0])
	assert.Equal(t, "SELL HWM qty=10.0000 @ 191.25 (1912.50)", lines[1])
	assert.Equal(t, "BUY APP qty=3.5000 @ 400.00 (1400.00)", lines[2])
	assert.Equal(t, "equity=12345.00 cash=512.50", lines[3])
}

func TestRenderChangeSummaryEmptyPlan(t *testing.T) {
	runAt := time.Date(2026, 3, 10, 21, 30, 0, 0, time.UTC)
	got := RenderChangeSummary(nil, decimal.NewFromInt(10000), decimal.NewFromInt(10000), runAt)
	assert.Contains(t, got, "0 change(s)")
	assert.Contains(t, got, "equity=10000.00 cash=10000.00")
}
