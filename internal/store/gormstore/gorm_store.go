package gormstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	storemodel "glbfolio/internal/store/model"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore implements symbol, price, portfolio and position storage using
// Gorm + SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens (or creates) the database at path and migrates the
// schema.
func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path is empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	return openGorm(dsn)
}

// NewMemoryStore opens a fresh in-memory database, used by tests. Each call
// gets its own namespace so parallel tests never share state.
func NewMemoryStore() (*GormStore, error) {
	return openGorm(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
}

func openGorm(dsn string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&storemodel.SymbolModel{},
		&storemodel.PortfolioModel{},
		&storemodel.PositionModel{},
		&storemodel.PriceDailyModel{},
		&storemodel.PortfolioValueModel{},
		&storemodel.RunLogModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	// Partial unique index: at most one OPEN position per (portfolio, symbol).
	// Gorm tags cannot express the WHERE clause, so create it directly.
	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open_unique
		 ON positions(portfolio_id, symbol_id) WHERE closed_at IS NULL`,
	).Error; err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a little read parallelism for the HTTP handlers
	// while the run loop writes.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

var errNotInitialized = fmt.Errorf("gorm store not initialized")

func (s *GormStore) ready() error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}
	return nil
}
