package prices

import (
	"context"
	"fmt"

	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
)

// YahooQuoter is the fallback quote source when the page scrape misses a
// price. Yahoo keys quotes by ticker alone, so the exchange is ignored.
type YahooQuoter struct{}

func (YahooQuoter) Quote(_ context.Context, ticker, _ string) (decimal.Decimal, error) {
	q, err := quote.Get(ticker)
	if err != nil {
		return decimal.Zero, fmt.Errorf("yahoo quote %s: %w", ticker, err)
	}
	if q == nil || q.RegularMarketPrice <= 0 {
		return decimal.Zero, fmt.Errorf("yahoo quote %s: no market price", ticker)
	}
	return decimal.NewFromFloat(q.RegularMarketPrice), nil
}
