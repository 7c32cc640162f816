package gormstore

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm/clause"

	"glbfolio/internal/portfolio"
	storemodel "glbfolio/internal/store/model"
)

// TickerKey identifies a symbol by its normalized (ticker, exchange) pair.
type TickerKey struct {
	Ticker   string
	Exchange string
}

func normalizeKey(k TickerKey) TickerKey {
	return TickerKey{
		Ticker:   strings.ToUpper(strings.TrimSpace(k.Ticker)),
		Exchange: strings.ToUpper(strings.TrimSpace(k.Exchange)),
	}
}

// UpsertSymbols inserts any unseen (ticker, exchange) pairs and flips
// is_active so that exactly the given set is marked as currently on the
// page. Symbols are never deleted.
func (s *GormStore) UpsertSymbols(ctx context.Context, keys []TickerKey) error {
	if err := s.ready(); err != nil {
		return err
	}
	now := time.Now()
	for _, k := range keys {
		k = normalizeKey(k)
		if k.Ticker == "" {
			continue
		}
		m := storemodel.SymbolModel{
			Ticker:    k.Ticker,
			Exchange:  k.Exchange,
			IsActive:  true,
			FirstSeen: now,
		}
		if err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "ticker"}, {Name: "exchange"}},
				DoUpdates: clause.Assignments(map[string]interface{}{"is_active": true}),
			}).
			Create(&m).Error; err != nil {
			return err
		}
	}
	if len(keys) == 0 {
		return nil
	}
	// Deactivate everything not in the current set.
	ids, err := s.symbolIDsForKeys(ctx, keys)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&storemodel.SymbolModel{}).
		Where("id NOT IN ?", ids).
		Update("is_active", false).Error
}

func (s *GormStore) symbolIDsForKeys(ctx context.Context, keys []TickerKey) ([]int64, error) {
	rows, err := s.SymbolsByKey(ctx, keys)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// SymbolsByKey resolves the given pairs to symbol rows, preserving input
// order and silently dropping pairs that are not in the table.
func (s *GormStore) SymbolsByKey(ctx context.Context, keys []TickerKey) ([]portfolio.SymbolRow, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var all []storemodel.SymbolModel
	if err := s.db.WithContext(ctx).Find(&all).Error; err != nil {
		return nil, err
	}
	byKey := make(map[TickerKey]storemodel.SymbolModel, len(all))
	for _, m := range all {
		byKey[TickerKey{Ticker: m.Ticker, Exchange: m.Exchange}] = m
	}
	out := make([]portfolio.SymbolRow, 0, len(keys))
	seen := make(map[int64]bool, len(keys))
	for _, k := range keys {
		m, ok := byKey[normalizeKey(k)]
		if !ok || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, portfolio.SymbolRow{ID: m.ID, Ticker: m.Ticker, Exchange: m.Exchange})
	}
	return out, nil
}

// SymbolsByID resolves symbol rows for the given ids.
func (s *GormStore) SymbolsByID(ctx context.Context, ids []int64) (map[int64]portfolio.SymbolRow, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	out := make(map[int64]portfolio.SymbolRow, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var models []storemodel.SymbolModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	for _, m := range models {
		out[m.ID] = portfolio.SymbolRow{ID: m.ID, Ticker: m.Ticker, Exchange: m.Exchange}
	}
	return out, nil
}
