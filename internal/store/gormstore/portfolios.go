package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	storemodel "glbfolio/internal/store/model"
)

// PortfolioRecord is the store-facing view of a portfolio.
type PortfolioRecord struct {
	ID           string
	Name         string
	BaseCurrency string
	InitialCash  decimal.Decimal
	CashCurrent  decimal.Decimal
}

// EnsureDefaultPortfolio returns the first portfolio, creating it with the
// starting cash when none exists yet.
func (s *GormStore) EnsureDefaultPortfolio(ctx context.Context, name, baseCurrency string, startingCash decimal.Decimal) (PortfolioRecord, error) {
	if err := s.ready(); err != nil {
		return PortfolioRecord{}, err
	}
	var m storemodel.PortfolioModel
	err := s.db.WithContext(ctx).Order("created_at ASC").First(&m).Error
	if err == nil {
		return recordFromPortfolio(m), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return PortfolioRecord{}, err
	}
	m = storemodel.PortfolioModel{
		ID:           uuid.NewString(),
		Name:         name,
		BaseCurrency: baseCurrency,
		InitialCash:  startingCash,
		CashCurrent:  startingCash,
		CreatedAt:    time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return PortfolioRecord{}, err
	}
	return recordFromPortfolio(m), nil
}

// Portfolio loads one portfolio by id.
func (s *GormStore) Portfolio(ctx context.Context, id string) (PortfolioRecord, error) {
	if err := s.ready(); err != nil {
		return PortfolioRecord{}, err
	}
	var m storemodel.PortfolioModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return PortfolioRecord{}, err
	}
	return recordFromPortfolio(m), nil
}

func recordFromPortfolio(m storemodel.PortfolioModel) PortfolioRecord {
	return PortfolioRecord{
		ID:           m.ID,
		Name:         m.Name,
		BaseCurrency: m.BaseCurrency,
		InitialCash:  m.InitialCash,
		CashCurrent:  m.CashCurrent,
	}
}
