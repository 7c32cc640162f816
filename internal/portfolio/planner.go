package portfolio

import (
	"github.com/shopspring/decimal"
)

// Plan computes the trade plan moving the portfolio toward an equal-weight
// allocation over the scraped target tickers. It is deterministic for
// identical inputs and performs no I/O.
//
// Item order matters to the executor: exits come first so freed cash is
// available before buys. Continuous rebalancing of positions that stay in
// the basket is intentionally disabled; only leftover cash is redistributed.
func Plan(in PlanInput, obs RunObserver) PlanResult {
	if obs == nil {
		obs = NopObserver{}
	}
	loc := in.ExchangeTZ
	if loc == nil {
		loc = MarketTZ()
	}

	rowByID := make(map[int64]SymbolRow, len(in.Symbols))
	rowByTicker := make(map[string]SymbolRow, len(in.Symbols))
	for _, r := range in.Symbols {
		rowByID[r.ID] = r
		rowByTicker[r.Ticker] = r
	}

	closeOf := func(symbolID int64) (decimal.Decimal, bool) {
		c, ok := in.LatestClose[symbolID]
		return c, ok
	}

	// Target set: the tickers currently on the page that resolved to a
	// symbol row, not the set of open positions.
	targetSet := make(map[int64]bool, len(in.Tickers))
	var targetIDs []int64
	for _, t := range in.Tickers {
		row, ok := rowByTicker[t]
		if !ok {
			continue
		}
		if !targetSet[row.ID] {
			targetSet[row.ID] = true
			targetIDs = append(targetIDs, row.ID)
		}
	}

	marketValue := decimal.Zero
	for _, p := range in.OpenPositions {
		c, ok := closeOf(p.SymbolID)
		marketValue = marketValue.Add(p.MarketValue(c, ok))
	}
	equity := in.Cash.Add(marketValue)

	n := int64(len(targetIDs))
	if n < 1 {
		n = 1
	}
	targetPerSymbol := equity.Div(decimal.NewFromInt(n))
	obs.Observe(Event{Kind: EventEquity, Cash: in.Cash, Equity: equity, Target: targetPerSymbol})

	tickerOf := func(symbolID int64) string {
		return rowByID[symbolID].Ticker
	}

	var items []PlanItem
	exiting := make(map[int64]bool)

	// Stop-loss exits. Positions opened on the current exchange calendar
	// day are exempt until the next run.
	for _, p := range in.OpenPositions {
		c, ok := closeOf(p.SymbolID)
		if !ok {
			continue
		}
		threshold := p.AvgCost.Mul(in.StopLossMultiplier)
		if c.Add(Epsilon).Cmp(threshold) >= 0 {
			continue
		}
		if sameCalendarDay(p.OpenedAt, in.Now, loc) {
			obs.Observe(Event{Kind: EventSameDayGuard, Ticker: tickerOf(p.SymbolID), SymbolID: p.SymbolID})
			continue
		}
		exiting[p.SymbolID] = true
		obs.Observe(Event{Kind: EventStopLoss, Ticker: tickerOf(p.SymbolID), SymbolID: p.SymbolID, Qty: p.Qty, Price: c})
		items = append(items, PlanItem{
			Ticker:   tickerOf(p.SymbolID),
			SymbolID: p.SymbolID,
			Action:   ActionSell,
			QtyDelta: p.Qty.Neg(),
			Price:    c,
		})
	}

	// Exits for symbols no longer on the page. Price falls back to average
	// cost so a stale symbol can still be liquidated.
	for _, p := range in.OpenPositions {
		if exiting[p.SymbolID] || targetSet[p.SymbolID] {
			continue
		}
		if sameCalendarDay(p.OpenedAt, in.Now, loc) {
			obs.Observe(Event{Kind: EventSameDayGuard, Ticker: tickerOf(p.SymbolID), SymbolID: p.SymbolID})
			continue
		}
		price, ok := closeOf(p.SymbolID)
		if !ok {
			price = p.AvgCost
		}
		exiting[p.SymbolID] = true
		obs.Observe(Event{Kind: EventDropExit, Ticker: tickerOf(p.SymbolID), SymbolID: p.SymbolID, Qty: p.Qty, Price: price})
		items = append(items, PlanItem{
			Ticker:   tickerOf(p.SymbolID),
			SymbolID: p.SymbolID,
			Action:   ActionSell,
			QtyDelta: p.Qty.Neg(),
			Price:    price,
		})
	}

	cashAfterSells := in.Cash
	for _, it := range items {
		cashAfterSells = cashAfterSells.Add(it.Notional())
	}

	held := make(map[int64]bool, len(in.OpenPositions))
	for _, p := range in.OpenPositions {
		held[p.SymbolID] = true
	}

	// New entries: on the page, not held, not cooling down, priced.
	type candidate struct {
		row   SymbolRow
		price decimal.Decimal
	}
	var entries []candidate
	for _, id := range targetIDs {
		row := rowByID[id]
		if held[id] {
			continue
		}
		if in.Blocked[id] {
			obs.Observe(Event{Kind: EventCooldownBlock, Ticker: row.Ticker, SymbolID: id})
			continue
		}
		price, ok := closeOf(id)
		if !ok {
			obs.Observe(Event{Kind: EventSkipNoPrice, Ticker: row.Ticker, SymbolID: id})
			continue
		}
		entries = append(entries, candidate{row: row, price: price})
	}

	switch {
	case len(entries) > 0 && cashAfterSells.GreaterThan(decimal.Zero):
		per := cashAfterSells.Div(decimal.NewFromInt(int64(len(entries))))
		for _, e := range entries {
			qty := per.Div(e.price)
			if qty.Cmp(Epsilon) <= 0 {
				obs.Observe(Event{Kind: EventSkipTiny, Ticker: e.row.Ticker, SymbolID: e.row.ID})
				continue
			}
			items = append(items, PlanItem{
				Ticker:   e.row.Ticker,
				SymbolID: e.row.ID,
				Action:   ActionBuy,
				QtyDelta: qty,
				Price:    e.price,
			})
		}
	case len(entries) == 0 && cashAfterSells.GreaterThan(decimal.Zero):
		// No new names: ride the winners by spreading leftover cash over
		// the positions that stay in the basket.
		var keeps []candidate
		for _, p := range in.OpenPositions {
			if exiting[p.SymbolID] || !targetSet[p.SymbolID] {
				continue
			}
			price, ok := closeOf(p.SymbolID)
			if !ok {
				obs.Observe(Event{Kind: EventSkipNoPrice, Ticker: tickerOf(p.SymbolID), SymbolID: p.SymbolID})
				continue
			}
			keeps = append(keeps, candidate{row: rowByID[p.SymbolID], price: price})
		}
		if len(keeps) == 0 {
			break
		}
		per := cashAfterSells.Div(decimal.NewFromInt(int64(len(keeps))))
		for _, k := range keeps {
			qty := per.Div(k.price)
			if qty.Cmp(Epsilon) <= 0 {
				obs.Observe(Event{Kind: EventSkipTiny, Ticker: k.row.Ticker, SymbolID: k.row.ID})
				continue
			}
			items = append(items, PlanItem{
				Ticker:   k.row.Ticker,
				SymbolID: k.row.ID,
				Action:   ActionBuy,
				QtyDelta: qty,
				Price:    k.price,
			})
		}
	}

	return PlanResult{Equity: equity, TargetPerSymbol: targetPerSymbol, Items: items}
}
