package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"glbfolio/internal/portfolio"
	"glbfolio/internal/prices"
	"glbfolio/internal/runner"
	"glbfolio/internal/scrape"
	"glbfolio/internal/store/gormstore"
)

type staticSource struct {
	tickers []scrape.ScrapedTicker
}

func (s *staticSource) FetchTickers(context.Context) []scrape.ScrapedTicker { return s.tickers }

type passthroughResolver struct{}

func (passthroughResolver) ResolveExchanges(_ context.Context, tickers []scrape.ScrapedTicker) []scrape.WithExchange {
	out := make([]scrape.WithExchange, 0, len(tickers))
	for _, t := range tickers {
		out = append(out, scrape.WithExchange{Ticker: t.Ticker, Exchange: "NYSE", URL: t.URL})
	}
	return out
}

type staticQuoter struct {
	prices map[string]decimal.Decimal
}

func (s *staticQuoter) Quote(_ context.Context, ticker, _ string) (decimal.Decimal, error) {
	if p, ok := s.prices[ticker]; ok {
		return p, nil
	}
	return decimal.Zero, context.Canceled
}

func newTestServer(t *testing.T, secret string) (*Server, *staticSource, *staticQuoter) {
	t.Helper()
	store, err := gormstore.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	source := &staticSource{}
	quoter := &staticQuoter{prices: map[string]decimal.Decimal{}}
	r := &runner.Runner{
		Store:              store,
		Source:             source,
		Exchanges:          passthroughResolver{},
		Prices:             &prices.Service{Primary: quoter, Store: store},
		Cooldown:           &portfolio.CooldownFilter{Days: 10, History: store},
		Observer:           portfolio.NopObserver{},
		PortfolioName:      "Main",
		BaseCurrency:       "USD",
		StartingCash:       decimal.NewFromInt(10000),
		StopLossMultiplier: decimal.NewFromFloat(0.95),
	}
	srv, err := NewServer(ServerConfig{Addr: ":0", CronSecret: secret, Runner: r, Store: store})
	require.NoError(t, err)
	return srv, source, quoter
}

func do(t *testing.T, srv *Server, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t, "s3cret")
	w := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCronAuth(t *testing.T) {
	srv, _, _ := newTestServer(t, "s3cret")

	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodPost, "/api/cron", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodPost, "/api/cron", "wrong").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/cron", "s3cret").Code)
	// Cron providers that can only GET are allowed too.
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/cron", "s3cret").Code)
}

func TestCronDisabledWithoutSecret(t *testing.T) {
	srv, _, _ := newTestServer(t, "")
	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodPost, "/api/cron", "anything").Code)
	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodPost, "/api/prices/refresh", "").Code)
}

func TestCronRunsAndPortfolioReflectsIt(t *testing.T) {
	srv, source, quoter := newTestServer(t, "s3cret")
	source.tickers = []scrape.ScrapedTicker{{Ticker: "HWM", URL: "u"}, {Ticker: "APP", URL: "u"}}
	quoter.prices = map[string]decimal.Decimal{
		"HWM": decimal.NewFromInt(100),
		"APP": decimal.NewFromInt(50),
	}

	w := do(t, srv, http.MethodPost, "/api/cron", "s3cret")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Equal(t, int64(2), gjson.Get(body, "tickers").Int())
	assert.Equal(t, int64(2), gjson.Get(body, "applied").Int())

	w = do(t, srv, http.MethodGet, "/api/portfolio", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Cash      decimal.Decimal `json:"cash"`
		Equity    decimal.Decimal `json:"equity"`
		Positions []struct {
			Ticker      string          `json:"ticker"`
			Qty         decimal.Decimal `json:"qty"`
			MarketValue decimal.Decimal `json:"market_value"`
		} `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Positions, 2)
	assert.True(t, resp.Equity.Sub(decimal.NewFromInt(10000)).Abs().LessThan(decimal.New(1, -6)))

	w = do(t, srv, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), int64(gjson.Get(w.Body.String(), "runs.#").Int()))

	w = do(t, srv, http.MethodGet, "/api/equity", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "history.#").Int())
}

func TestRefreshPricesEndpoint(t *testing.T) {
	srv, source, quoter := newTestServer(t, "s3cret")
	source.tickers = []scrape.ScrapedTicker{{Ticker: "HWM", URL: "u"}}
	quoter.prices = map[string]decimal.Decimal{"HWM": decimal.NewFromInt(100)}

	w := do(t, srv, http.MethodPost, "/api/prices/refresh", "s3cret")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "updated").Int())
}

func TestNewServerRequiresDependencies(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}
