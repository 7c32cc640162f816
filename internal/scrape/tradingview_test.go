package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func symbolPage(canonical, initData string) string {
	return fmt.Sprintf(`<html><head>
<link rel="canonical" href=%q>
<script type="application/prs.init-data+json">%s</script>
</head><body></body></html>`, canonical, initData)
}

func TestExtractExchange(t *testing.T) {
	cases := []struct {
		canonical string
		want      string
	}{
		{"https://www.tradingview.com/symbols/NYSE-HWM/", "NYSE"},
		{"https://www.tradingview.com/symbols/NASDAQ-APP", "NASDAQ"},
		{"https://www.tradingview.com/symbols/nyse-brk.b/", "NYSE"},
		{"https://www.tradingview.com/symbols/SPX/", ""},
		{"https://www.tradingview.com/", ""},
	}
	for _, tc := range cases {
		got := ExtractExchange(symbolPage(tc.canonical, "{}"))
		assert.Equal(t, tc.want, got, tc.canonical)
	}
}

func TestExtractExchangeNoCanonical(t *testing.T) {
	assert.Equal(t, "", ExtractExchange("<html><head></head></html>"))
}

func TestExtractPriceTradePrice(t *testing.T) {
	page := symbolPage("https://www.tradingview.com/symbols/NYSE-HWM/",
		`{"header":{"data":{"symbol":{"trade":{"price":191.25}}}}}`)
	price, ok := ExtractPrice(page)
	require.True(t, ok)
	assert.Equal(t, "191.25", price.String())
}

func TestExtractPriceDailyBarClose(t *testing.T) {
	initData := `{"faq":{"data":{"symbol_faq_data":{"variables":{"price":{"fields":[
		{"name":"currency","value":"USD"},
		{"name":"daily_bar_close","value":188.4}
	]}}}}}}`
	price, ok := ExtractPrice(symbolPage("https://www.tradingview.com/symbols/NYSE-HWM/", initData))
	require.True(t, ok)
	assert.Equal(t, "188.4", price.String())
}

func TestExtractPriceDailyBarCloseStringValue(t *testing.T) {
	initData := `{"faq":{"data":{"symbol_faq_data":{"variables":{"price":{"fields":[
		{"name":"daily_bar_close","value":"1 188,40 USD"}
	]}}}}}}`
	price, ok := ExtractPrice(symbolPage("https://www.tradingview.com/symbols/NYSE-HWM/", initData))
	require.True(t, ok)
	assert.Equal(t, "1188.4", price.String())
}

func TestExtractPriceDeepScanFallback(t *testing.T) {
	// Layout nobody promised: trade.price buried under unknown keys.
	initData := `{"misc":{"a":[1,2,{"widget":{"state":{"trade":{"price":42.5}}}}]}}`
	price, ok := ExtractPrice(symbolPage("https://www.tradingview.com/symbols/NYSE-X/", initData))
	require.True(t, ok)
	assert.Equal(t, "42.5", price.String())
}

func TestExtractPriceAbsent(t *testing.T) {
	_, ok := ExtractPrice(symbolPage("https://www.tradingview.com/symbols/NYSE-X/", `{"misc":{"nothing":"here"}}`))
	assert.False(t, ok)
}

func TestParseLoosePrice(t *testing.T) {
	cases := map[string]string{
		"191.25":       "191.25",
		"1 188,40 USD": "1188.4",
		"$42.50":       "42.5",
	}
	for in, want := range cases {
		got, err := parseLoosePrice(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.String(), in)
	}
	_, err := parseLoosePrice("no digits")
	assert.Error(t, err)
}

func TestResolveExchangesKeepsUnresolvedTickers(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/hwm":
			fmt.Fprint(w, symbolPage("https://www.tradingview.com/symbols/NYSE-HWM/", "{}"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	tv := NewTradingView("test-agent", 5*time.Second)
	got := tv.ResolveExchanges(context.Background(), []ScrapedTicker{
		{Ticker: "HWM", URL: srv.URL + "/hwm"},
		{Ticker: "GONE", URL: srv.URL + "/missing"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, WithExchange{Ticker: "HWM", Exchange: "NYSE", URL: srv.URL + "/hwm"}, got[0])
	assert.Equal(t, "GONE", got[1].Ticker)
	assert.Equal(t, "", got[1].Exchange, "unreachable page keeps the ticker with empty exchange")
}

func TestFetchCachedReusesHTML(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	tv := NewTradingView("test-agent", 5*time.Second)
	for i := 0; i < 3; i++ {
		_, err := tv.fetchCached(context.Background(), srv.URL+"/page")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), hits.Load())
}
