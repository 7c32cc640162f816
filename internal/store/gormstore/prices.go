package gormstore

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"

	storemodel "glbfolio/internal/store/model"
)

// UpsertDailyClose records the close for (symbol, date), overwriting any
// earlier value scraped the same day.
func (s *GormStore) UpsertDailyClose(ctx context.Context, symbolID int64, date string, close decimal.Decimal, source string) error {
	if err := s.ready(); err != nil {
		return err
	}
	m := storemodel.PriceDailyModel{
		SymbolID:  symbolID,
		Date:      date,
		Close:     close,
		Source:    source,
		CreatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol_id"}, {Name: "date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"close": close, "source": source}),
		}).
		Create(&m).Error
}

// LatestCloseBySymbolID returns, per symbol, the close with the most recent
// date. Symbols with no price rows are absent from the map.
func (s *GormStore) LatestCloseBySymbolID(ctx context.Context, symbolIDs []int64) (map[int64]decimal.Decimal, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	out := make(map[int64]decimal.Decimal, len(symbolIDs))
	if len(symbolIDs) == 0 {
		return out, nil
	}
	var rows []storemodel.PriceDailyModel
	if err := s.db.WithContext(ctx).
		Where("symbol_id IN ?", symbolIDs).
		Order("symbol_id ASC, date DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		if _, ok := out[r.SymbolID]; ok {
			continue
		}
		out[r.SymbolID] = r.Close
	}
	return out, nil
}
