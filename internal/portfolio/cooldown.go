package portfolio

import (
	"context"
	"time"

	"glbfolio/internal/logger"
)

// LossHistory is the store query backing the cooldown filter.
type LossHistory interface {
	RecentLosingClosedSymbolIDs(ctx context.Context, portfolioID string, cutoff time.Time) ([]int64, error)
}

// CooldownFilter blocks re-entry into symbols that were closed at a loss
// within the last Days days. It only gates new buys; exits are never blocked.
type CooldownFilter struct {
	Days    int
	History LossHistory
}

// Cutoff is now minus the cooldown window, at UTC day granularity.
func (f *CooldownFilter) Cutoff(now time.Time) time.Time {
	return now.UTC().AddDate(0, 0, -f.Days)
}

// Blocked returns the set of symbol ids ineligible for new purchase. A
// failing history query degrades to an empty set: the run proceeds without
// cooldown protection rather than aborting.
func (f *CooldownFilter) Blocked(ctx context.Context, portfolioID string, now time.Time) map[int64]bool {
	blocked := make(map[int64]bool)
	if f == nil || f.History == nil || f.Days <= 0 {
		return blocked
	}
	ids, err := f.History.RecentLosingClosedSymbolIDs(ctx, portfolioID, f.Cutoff(now))
	if err != nil {
		logger.Warnf("cooldown: blocked-symbol query failed: %v", err)
		return blocked
	}
	for _, id := range ids {
		blocked[id] = true
	}
	return blocked
}
