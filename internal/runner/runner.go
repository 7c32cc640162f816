// Package runner orchestrates one full rebalance pass: scrape, price
// refresh, cooldown, plan, transactional execution, snapshot, notify.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"glbfolio/internal/logger"
	"glbfolio/internal/notifier"
	"glbfolio/internal/portfolio"
	"glbfolio/internal/prices"
	"glbfolio/internal/scrape"
	"glbfolio/internal/store/gormstore"
)

// TickerSource produces the current basket from the source page.
type TickerSource interface {
	FetchTickers(ctx context.Context) []scrape.ScrapedTicker
}

// ExchangeResolver attaches exchanges to scraped tickers.
type ExchangeResolver interface {
	ResolveExchanges(ctx context.Context, tickers []scrape.ScrapedTicker) []scrape.WithExchange
}

// Summary reports what one run did.
type Summary struct {
	Tickers   int
	PlanItems int
	Equity    decimal.Decimal
	Cash      decimal.Decimal
}

// Runner executes scheduled rebalance passes. Invocations are serialized
// in-process with a mutex; nothing guards against a second process writing
// the same database, the deployment is expected to run a single instance.
type Runner struct {
	Store     *gormstore.GormStore
	Source    TickerSource
	Exchanges ExchangeResolver
	Prices    *prices.Service
	Cooldown  *portfolio.CooldownFilter
	Notifier  notifier.TextNotifier
	Observer  portfolio.RunObserver

	PortfolioName      string
	BaseCurrency       string
	StartingCash       decimal.Decimal
	StopLossMultiplier decimal.Decimal
	TZ                 *time.Location

	mu    sync.Mutex
	nowFn func() time.Time
}

func (r *Runner) now() time.Time {
	if r.nowFn != nil {
		return r.nowFn()
	}
	return time.Now()
}

func (r *Runner) tz() *time.Location {
	if r.TZ != nil {
		return r.TZ
	}
	return portfolio.MarketTZ()
}

func (r *Runner) observer() portfolio.RunObserver {
	if r.Observer != nil {
		return r.Observer
	}
	return portfolio.LogObserver{}
}

// Run performs one complete pass. Upstream fetch failures degrade (empty
// basket, partial prices); only a store failure aborts.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	startedAt := now
	obs := r.observer()

	tickers := r.Source.FetchTickers(ctx)
	withExchanges := r.Exchanges.ResolveExchanges(ctx, tickers)
	logger.Infof("run: %d tickers on page", len(withExchanges))

	keys := make([]gormstore.TickerKey, 0, len(withExchanges))
	for _, t := range withExchanges {
		keys = append(keys, gormstore.TickerKey{Ticker: t.Ticker, Exchange: t.Exchange})
	}
	if err := r.Store.UpsertSymbols(ctx, keys); err != nil {
		return Summary{}, r.failRun(ctx, "", startedAt, nil, err)
	}
	symbolRows, err := r.Store.SymbolsByKey(ctx, keys)
	if err != nil {
		return Summary{}, r.failRun(ctx, "", startedAt, nil, err)
	}

	pf, err := r.Store.EnsureDefaultPortfolio(ctx, r.PortfolioName, r.BaseCurrency, r.StartingCash)
	if err != nil {
		return Summary{}, r.failRun(ctx, "", startedAt, nil, err)
	}
	openRows, err := r.Store.OpenPositions(ctx, pf.ID)
	if err != nil {
		return Summary{}, r.failRun(ctx, pf.ID, startedAt, nil, err)
	}

	// Refresh prices for everything held plus everything on the page.
	refreshRows := make([]portfolio.SymbolRow, 0, len(symbolRows)+len(openRows))
	seen := make(map[int64]bool, len(symbolRows)+len(openRows))
	for _, row := range symbolRows {
		if !seen[row.ID] {
			seen[row.ID] = true
			refreshRows = append(refreshRows, row)
		}
	}
	for _, p := range openRows {
		if !seen[p.SymbolID] {
			seen[p.SymbolID] = true
			refreshRows = append(refreshRows, portfolio.SymbolRow{ID: p.SymbolID, Ticker: p.Ticker, Exchange: p.Exchange})
		}
	}
	r.Prices.Refresh(ctx, now, refreshRows)

	ids := make([]int64, 0, len(refreshRows))
	for _, row := range refreshRows {
		ids = append(ids, row.ID)
	}
	latestClose, err := r.Store.LatestCloseBySymbolID(ctx, ids)
	if err != nil {
		return Summary{}, r.failRun(ctx, pf.ID, startedAt, nil, err)
	}

	blocked := r.Cooldown.Blocked(ctx, pf.ID, now)

	openPositions := make([]portfolio.OpenPosition, 0, len(openRows))
	pageTickers := make([]string, 0, len(symbolRows))
	for _, p := range openRows {
		openPositions = append(openPositions, p.OpenPosition)
	}
	for _, row := range symbolRows {
		pageTickers = append(pageTickers, row.Ticker)
	}

	res := portfolio.Plan(portfolio.PlanInput{
		Tickers:            pageTickers,
		Symbols:            symbolRows,
		OpenPositions:      openPositions,
		LatestClose:        latestClose,
		Cash:               pf.CashCurrent,
		Blocked:            blocked,
		StopLossMultiplier: r.StopLossMultiplier,
		Now:                now,
		ExchangeTZ:         r.tz(),
	}, obs)
	logger.Infof("run: plan ready with %d item(s)", len(res.Items))

	openBySymbol := make(map[int64]*portfolio.OpenPosition, len(openPositions))
	for i := range openPositions {
		p := openPositions[i]
		openBySymbol[p.SymbolID] = &p
	}
	newCash, err := r.Store.ApplyPlan(ctx, pf.ID, res.Items, pf.CashCurrent, openBySymbol, now, obs)
	if err != nil {
		return Summary{}, r.failRun(ctx, pf.ID, startedAt, res.Items, err)
	}

	equity := newCash
	for _, p := range openBySymbol {
		c, ok := latestClose[p.SymbolID]
		equity = equity.Add(p.MarketValue(c, ok))
	}
	r.snapshotEquity(ctx, pf, equity, newCash, now)

	if err := r.Store.AppendRunLog(ctx, gormstore.RunRecord{
		PortfolioID: pf.ID,
		StartedAt:   startedAt,
		FinishedAt:  r.now(),
		Status:      "ok",
		TickerCount: len(withExchanges),
		PlanCount:   len(res.Items),
		Equity:      equity,
		Cash:        newCash,
		Plan:        res.Items,
	}); err != nil {
		logger.Warnf("run: run log write failed: %v", err)
	}

	if r.Notifier != nil {
		text := notifier.RenderChangeSummary(res.Items, equity, newCash, now)
		if err := r.Notifier.SendText(text); err != nil {
			logger.Warnf("run: summary notification failed: %v", err)
		}
	}

	return Summary{
		Tickers:   len(withExchanges),
		PlanItems: len(res.Items),
		Equity:    equity,
		Cash:      newCash,
	}, nil
}

// RefreshPrices updates daily closes without planning or trading. Backs the
// manual refresh endpoint.
func (r *Runner) RefreshPrices(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	pf, err := r.Store.EnsureDefaultPortfolio(ctx, r.PortfolioName, r.BaseCurrency, r.StartingCash)
	if err != nil {
		return 0, err
	}
	openRows, err := r.Store.OpenPositions(ctx, pf.ID)
	if err != nil {
		return 0, err
	}
	tickers := r.Source.FetchTickers(ctx)
	withExchanges := r.Exchanges.ResolveExchanges(ctx, tickers)

	rows := make([]portfolio.SymbolRow, 0, len(openRows))
	seen := make(map[int64]bool)
	for _, p := range openRows {
		if !seen[p.SymbolID] {
			seen[p.SymbolID] = true
			rows = append(rows, portfolio.SymbolRow{ID: p.SymbolID, Ticker: p.Ticker, Exchange: p.Exchange})
		}
	}
	keys := make([]gormstore.TickerKey, 0, len(withExchanges))
	for _, t := range withExchanges {
		keys = append(keys, gormstore.TickerKey{Ticker: t.Ticker, Exchange: t.Exchange})
	}
	if err := r.Store.UpsertSymbols(ctx, keys); err != nil {
		return 0, err
	}
	pageRows, err := r.Store.SymbolsByKey(ctx, keys)
	if err != nil {
		return 0, err
	}
	for _, row := range pageRows {
		if !seen[row.ID] {
			seen[row.ID] = true
			rows = append(rows, row)
		}
	}
	updated := r.Prices.Refresh(ctx, now, rows)
	return len(updated), nil
}

// PortfolioRecord returns the tracked portfolio, creating it on first use.
func (r *Runner) PortfolioRecord(ctx context.Context) (gormstore.PortfolioRecord, error) {
	return r.Store.EnsureDefaultPortfolio(ctx, r.PortfolioName, r.BaseCurrency, r.StartingCash)
}

func (r *Runner) snapshotEquity(ctx context.Context, pf gormstore.PortfolioRecord, equity, cash decimal.Decimal, now time.Time) {
	date := now.In(r.tz()).Format("2006-01-02")
	pnlDay := decimal.Zero
	if last, ok, err := r.Store.LastEquitySnapshot(ctx, pf.ID, date); err != nil {
		logger.Warnf("run: last equity snapshot lookup failed: %v", err)
	} else if ok {
		pnlDay = equity.Sub(last.Equity)
	}
	snap := gormstore.EquitySnapshot{
		Date:     date,
		Equity:   equity,
		Cash:     cash,
		PnlDay:   pnlDay,
		PnlTotal: equity.Sub(pf.InitialCash),
	}
	if err := r.Store.SaveDailyEquity(ctx, pf.ID, snap); err != nil {
		logger.Warnf("run: equity snapshot write failed: %v", err)
	}
}

func (r *Runner) failRun(ctx context.Context, portfolioID string, startedAt time.Time, plan []portfolio.PlanItem, cause error) error {
	logger.Errorf("run: aborted: %v", cause)
	if portfolioID != "" {
		if err := r.Store.AppendRunLog(ctx, gormstore.RunRecord{
			PortfolioID: portfolioID,
			StartedAt:   startedAt,
			FinishedAt:  r.now(),
			Status:      "failed",
			PlanCount:   len(plan),
			Plan:        plan,
			Error:       cause.Error(),
		}); err != nil {
			logger.Warnf("run: failure log write failed: %v", err)
		}
	}
	return cause
}
