// Package scrape pulls the ticker basket off the source blog page and
// resolves exchanges and daily prices from the linked TradingView pages.
package scrape

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"glbfolio/internal/logger"
)

// ScrapedTicker is one ticker found on the source page with the TradingView
// URL it links to.
type ScrapedTicker struct {
	Ticker string
	URL    string
}

var tickerRe = regexp.MustCompile(`^[A-Z0-9.\-]{1,10}$`)

// Client fetches and parses the source blog page.
type Client struct {
	http      *resty.Client
	sourceURL string
}

func NewClient(sourceURL, userAgent string, timeout time.Duration) *Client {
	c := resty.New()
	c.SetTimeout(timeout)
	c.SetHeader("User-Agent", userAgent)
	return &Client{http: c, sourceURL: sourceURL}
}

// FetchTickers downloads the source page and parses the basket table. Any
// fetch or parse failure degrades to an empty list; the run proceeds.
func (c *Client) FetchTickers(ctx context.Context) []ScrapedTicker {
	logger.Infof("scrape: fetching source page %s", c.sourceURL)
	resp, err := c.http.R().SetContext(ctx).Get(c.sourceURL)
	if err != nil {
		logger.Warnf("scrape: source fetch failed: %v", err)
		return nil
	}
	if resp.StatusCode() != 200 {
		logger.Warnf("scrape: source fetch status=%d", resp.StatusCode())
		return nil
	}
	tickers, err := ParseTickers(resp.String())
	if err != nil {
		logger.Warnf("scrape: source parse failed: %v", err)
		return nil
	}
	logger.Infof("scrape: parsed %d tickers", len(tickers))
	return tickers
}

// ParseTickers extracts tickers from the page HTML. The search is narrowed
// to the basket table (class glb-table) when present to avoid picking up
// tickers mentioned elsewhere in the post. Order is preserved, duplicates
// keep their first link.
func ParseTickers(html string) ([]ScrapedTicker, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	scope := doc.Selection
	if table := doc.Find("table.glb-table").First(); table.Length() > 0 {
		scope = table
	}
	var out []ScrapedTicker
	seen := make(map[string]bool)
	scope.Find("td.col-1 a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		raw := strings.TrimSpace(sel.Text())
		if !ok || strings.TrimSpace(href) == "" || raw == "" {
			logger.Warnf("scrape: invalid ticker cell href=%q text=%q", href, raw)
			return
		}
		t := strings.TrimPrefix(raw, "$")
		if !tickerRe.MatchString(t) {
			return
		}
		if seen[t] {
			return
		}
		seen[t] = true
		out = append(out, ScrapedTicker{Ticker: t, URL: strings.TrimSpace(href)})
	})
	return out, nil
}
