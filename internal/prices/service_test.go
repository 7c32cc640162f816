package prices

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glbfolio/internal/portfolio"
)

type fakeQuoter struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	calls  []string
}

func (f *fakeQuoter) Quote(_ context.Context, ticker, _ string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ticker)
	p, ok := f.prices[ticker]
	if !ok {
		return decimal.Zero, errors.New("no quote")
	}
	return p, nil
}

type savedClose struct {
	symbolID int64
	date     string
	close    decimal.Decimal
	source   string
}

type fakePriceStore struct {
	mu     sync.Mutex
	saved  []savedClose
	failID int64
}

func (f *fakePriceStore) UpsertDailyClose(_ context.Context, symbolID int64, date string, close decimal.Decimal, source string) error {
	if symbolID == f.failID && f.failID != 0 {
		return errors.New("disk full")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, savedClose{symbolID, date, close, source})
	return nil
}

func (f *fakePriceStore) bySymbol() map[int64]savedClose {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]savedClose, len(f.saved))
	for _, s := range f.saved {
		out[s.symbolID] = s
	}
	return out
}

var refreshNow = time.Date(2026, 3, 11, 1, 30, 0, 0, time.UTC) // still Mar 10 in New York

func refreshRows() []portfolio.SymbolRow {
	return []portfolio.SymbolRow{
		{ID: 1, Ticker: "HWM", Exchange: "NYSE"},
		{ID: 2, Ticker: "APP", Exchange: "NASDAQ"},
	}
}

func TestRefreshStoresExchangeCalendarDate(t *testing.T) {
	store := &fakePriceStore{}
	svc := &Service{
		Primary: &fakeQuoter{prices: map[string]decimal.Decimal{
			"HWM": decimal.NewFromFloat(191.25),
			"APP": decimal.NewFromInt(400),
		}},
		Store: store,
	}

	updated := svc.Refresh(context.Background(), refreshNow, refreshRows())

	require.Len(t, updated, 2)
	saved := store.bySymbol()
	require.Len(t, saved, 2)
	assert.Equal(t, "2026-03-10", saved[1].date, "date follows the exchange calendar, not UTC")
	assert.Equal(t, "scraper", saved[1].source)
	assert.True(t, saved[1].close.Equal(decimal.NewFromFloat(191.25)))
}

func TestRefreshFallbackAfterPrimaryFailure(t *testing.T) {
	primary := &fakeQuoter{prices: map[string]decimal.Decimal{"HWM": decimal.NewFromInt(190)}}
	fallback := &fakeQuoter{prices: map[string]decimal.Decimal{"APP": decimal.NewFromInt(399)}}
	store := &fakePriceStore{}
	svc := &Service{Primary: primary, Fallback: fallback, Store: store}

	updated := svc.Refresh(context.Background(), refreshNow, refreshRows())

	require.Len(t, updated, 2)
	saved := store.bySymbol()
	assert.Equal(t, "scraper", saved[1].source)
	assert.Equal(t, "yahoo", saved[2].source)
	assert.Equal(t, []string{"APP"}, fallbackCalls(fallback), "fallback only consulted for the failed symbol")
}

func fallbackCalls(f *fakeQuoter) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.calls...)
	sort.Strings(out)
	return out
}

func TestRefreshSkipsUnquotableSymbols(t *testing.T) {
	store := &fakePriceStore{}
	svc := &Service{
		Primary: &fakeQuoter{prices: map[string]decimal.Decimal{"HWM": decimal.NewFromInt(190)}},
		Store:   store,
	}

	updated := svc.Refresh(context.Background(), refreshNow, refreshRows())

	require.Len(t, updated, 1)
	assert.Equal(t, "HWM", updated[0].Ticker)
	assert.Len(t, store.bySymbol(), 1)
}

func TestRefreshSkipsFailedPersist(t *testing.T) {
	store := &fakePriceStore{failID: 2}
	svc := &Service{
		Primary: &fakeQuoter{prices: map[string]decimal.Decimal{
			"HWM": decimal.NewFromInt(190),
			"APP": decimal.NewFromInt(400),
		}},
		Store: store,
	}

	updated := svc.Refresh(context.Background(), refreshNow, refreshRows())

	require.Len(t, updated, 1, "persist failure drops the symbol, not the batch")
	assert.Equal(t, int64(1), updated[0].SymbolID)
}

func TestRefreshEmptyInput(t *testing.T) {
	svc := &Service{Primary: &fakeQuoter{}, Store: &fakePriceStore{}}
	assert.Nil(t, svc.Refresh(context.Background(), refreshNow, nil))
}
