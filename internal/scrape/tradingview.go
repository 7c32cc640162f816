package scrape

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"glbfolio/internal/logger"
)

// WithExchange is a scraped ticker with its exchange resolved from the
// TradingView page it links to.
type WithExchange struct {
	Ticker   string
	Exchange string
	URL      string
}

// TradingView resolves exchanges and latest prices from TradingView symbol
// pages. Fetched HTML is cached per URL for the lifetime of the client, so
// one run never downloads the same page twice.
type TradingView struct {
	http *resty.Client

	mu    sync.Mutex
	cache map[string]string
}

func NewTradingView(userAgent string, timeout time.Duration) *TradingView {
	c := resty.New()
	c.SetTimeout(timeout)
	c.SetHeader("User-Agent", userAgent)
	return &TradingView{http: c, cache: make(map[string]string)}
}

func (tv *TradingView) fetchCached(ctx context.Context, url string) (string, error) {
	tv.mu.Lock()
	if html, ok := tv.cache[url]; ok {
		tv.mu.Unlock()
		return html, nil
	}
	tv.mu.Unlock()

	resp, err := tv.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("tradingview fetch %s: status=%d", url, resp.StatusCode())
	}
	html := resp.String()
	tv.mu.Lock()
	tv.cache[url] = html
	tv.mu.Unlock()
	return html, nil
}

// ResolveExchanges resolves the exchange for each scraped ticker. Tickers
// whose page cannot be fetched keep an empty exchange rather than dropping
// out of the basket.
func (tv *TradingView) ResolveExchanges(ctx context.Context, tickers []ScrapedTicker) []WithExchange {
	out := make([]WithExchange, 0, len(tickers))
	for _, t := range tickers {
		exchange := ""
		html, err := tv.fetchCached(ctx, t.URL)
		if err != nil {
			logger.Warnf("scrape: exchange fetch failed for %s: %v", t.Ticker, err)
		} else {
			exchange = ExtractExchange(html)
			if exchange == "" {
				logger.Warnf("scrape: no exchange in page for %s", t.Ticker)
			}
		}
		out = append(out, WithExchange{Ticker: t.Ticker, Exchange: exchange, URL: t.URL})
	}
	return out
}

// Quote fetches the symbol page and extracts the latest price. Per-symbol
// failure is an error for the caller to skip, never a batch abort.
func (tv *TradingView) Quote(ctx context.Context, ticker, exchange string) (decimal.Decimal, error) {
	url := fmt.Sprintf("https://www.tradingview.com/symbols/%s-%s/", exchange, ticker)
	html, err := tv.fetchCached(ctx, url)
	if err != nil {
		return decimal.Zero, err
	}
	price, ok := ExtractPrice(html)
	if !ok {
		return decimal.Zero, fmt.Errorf("no price in page for %s:%s", exchange, ticker)
	}
	return price, nil
}

var canonicalSlugRe = regexp.MustCompile(`(?i)/symbols/([^/]+)/?$`)

// ExtractExchange pulls the exchange from the canonical link, e.g.
// https://www.tradingview.com/symbols/NYSE-HWM/ resolves to NYSE.
func ExtractExchange(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	href, ok := doc.Find(`link[rel="canonical"]`).Attr("href")
	if !ok {
		return ""
	}
	m := canonicalSlugRe.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	parts := strings.Split(m[1], "-")
	if len(parts) < 2 {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(parts[0]))
}

// ExtractPrice walks the TradingView init-data JSON embedded in the page.
// Preference order: real-time trade price, then the daily bar close from the
// FAQ variables, then a bounded generic scan of the whole payload.
func ExtractPrice(html string) (decimal.Decimal, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return decimal.Zero, false
	}
	var price decimal.Decimal
	found := false
	doc.Find(`script[type="application/prs.init-data+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" || !gjson.Valid(raw) {
			return true
		}
		top := gjson.Parse(raw)
		top.ForEach(func(_, layer gjson.Result) bool {
			if p := layer.Get("data.symbol.trade.price"); p.Type == gjson.Number {
				price, found = decimal.NewFromFloat(p.Num), true
				return false
			}
			if fields := layer.Get("data.symbol_faq_data.variables.price.fields"); fields.IsArray() {
				if p, ok := dailyBarClose(fields); ok {
					price, found = p, true
					return false
				}
			}
			return true
		})
		if !found {
			if p, ok := scanForPrice(top); ok {
				price, found = p, true
			}
		}
		return !found
	})
	return price, found
}

func dailyBarClose(fields gjson.Result) (decimal.Decimal, bool) {
	var price decimal.Decimal
	found := false
	fields.ForEach(func(_, f gjson.Result) bool {
		if f.Get("name").String() != "daily_bar_close" {
			return true
		}
		v := f.Get("value")
		switch v.Type {
		case gjson.Number:
			price, found = decimal.NewFromFloat(v.Num), true
		case gjson.String:
			if p, err := parseLoosePrice(v.Str); err == nil {
				price, found = p, true
			}
		}
		return !found
	})
	return price, found
}

var nonPriceChars = regexp.MustCompile(`[^0-9.\-]`)

func parseLoosePrice(s string) (decimal.Decimal, error) {
	s = nonPriceChars.ReplaceAllString(strings.ReplaceAll(s, ",", "."), "")
	return decimal.NewFromString(s)
}

// scanForPrice is the fallback when the init-data layout shifts: a bounded
// depth-first walk looking for any trade.price number or a price.fields
// array holding daily_bar_close.
func scanForPrice(root gjson.Result) (decimal.Decimal, bool) {
	const maxSteps = 50000
	steps := 0
	stack := []gjson.Result{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		steps++
		if steps > maxSteps {
			return decimal.Zero, false
		}
		if !node.IsObject() && !node.IsArray() {
			continue
		}
		if node.IsObject() {
			if p := node.Get("trade.price"); p.Type == gjson.Number {
				return decimal.NewFromFloat(p.Num), true
			}
			if fields := node.Get("variables.price.fields"); fields.IsArray() {
				if p, ok := dailyBarClose(fields); ok {
					return p, true
				}
			}
		}
		node.ForEach(func(_, child gjson.Result) bool {
			stack = append(stack, child)
			return true
		})
	}
	return decimal.Zero, false
}
