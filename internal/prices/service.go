// Package prices refreshes daily closes for the symbols a run cares about:
// everything held plus everything currently on the page.
package prices

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"glbfolio/internal/logger"
	"glbfolio/internal/portfolio"
)

// Quoter returns the latest price for one symbol. A per-symbol error means
// that symbol is skipped for this run, nothing more.
type Quoter interface {
	Quote(ctx context.Context, ticker, exchange string) (decimal.Decimal, error)
}

// Store is the persistence slice the service writes closes through.
type Store interface {
	UpsertDailyClose(ctx context.Context, symbolID int64, date string, close decimal.Decimal, source string) error
}

// Service fetches quotes with bounded parallelism and upserts them as the
// close for the current exchange-calendar date. Fallback, when set, is
// consulted only after the primary source fails for a symbol.
type Service struct {
	Primary     Quoter
	Fallback    Quoter
	Store       Store
	MaxParallel int
	TZ          *time.Location
}

// Updated is one successfully refreshed symbol price.
type Updated struct {
	SymbolID int64
	Ticker   string
	Price    decimal.Decimal
}

// Refresh updates daily closes for the given symbols. Returns the symbols
// that resolved; the rest are logged and omitted.
func (s *Service) Refresh(ctx context.Context, now time.Time, rows []portfolio.SymbolRow) []Updated {
	if len(rows) == 0 {
		return nil
	}
	loc := s.TZ
	if loc == nil {
		loc = portfolio.MarketTZ()
	}
	date := now.In(loc).Format("2006-01-02")

	limit := s.MaxParallel
	if limit <= 0 {
		limit = 4
	}
	var (
		mu  sync.Mutex
		out []Updated
	)
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	for _, row := range rows {
		row := row
		group.Go(func() error {
			price, source, err := s.quote(gctx, row)
			if err != nil {
				logger.Warnf("prices: no quote for %s:%s: %v", row.Exchange, row.Ticker, err)
				return nil
			}
			if err := s.Store.UpsertDailyClose(gctx, row.ID, date, price, source); err != nil {
				logger.Warnf("prices: persist close for %s failed: %v", row.Ticker, err)
				return nil
			}
			mu.Lock()
			out = append(out, Updated{SymbolID: row.ID, Ticker: row.Ticker, Price: price})
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	logger.Infof("prices: refreshed %d/%d symbols for %s", len(out), len(rows), date)
	return out
}

func (s *Service) quote(ctx context.Context, row portfolio.SymbolRow) (decimal.Decimal, string, error) {
	price, err := s.Primary.Quote(ctx, row.Ticker, row.Exchange)
	if err == nil {
		return price, "scraper", nil
	}
	if s.Fallback == nil {
		return decimal.Zero, "", err
	}
	logger.Debugf("prices: primary source failed for %s (%v), trying fallback", row.Ticker, err)
	price, ferr := s.Fallback.Quote(ctx, row.Ticker, row.Exchange)
	if ferr != nil {
		return decimal.Zero, "", err
	}
	return price, "yahoo", nil
}
