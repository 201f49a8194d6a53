package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hdytrend/internal/market"
	"hdytrend/internal/store"
	storemodel "hdytrend/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type barSeriesModel = storemodel.BarSeriesModel

// GormStore implements store.CacheStore on top of Gorm + SQLite.
// Every key is a single row holding the whole ordered sequence.
type GormStore struct {
	db *gorm.DB
}

var _ store.CacheStore = (*GormStore)(nil)

// NewGormStore opens (or creates) the database at path and migrates the schema.
func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return NewGormStoreFromDB(db)
}

// NewGormStoreFromDB wraps an existing connection.
func NewGormStoreFromDB(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm store: db cannot be nil")
	}
	if err := db.AutoMigrate(&barSeriesModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		// SQLite + WAL: a couple of connections keep HTTP reads from
		// blocking behind a sync write.
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
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

func (s *GormStore) Get(ctx context.Context, key string) ([]market.Bar, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("gorm store not initialized")
	}
	var row barSeriesModel
	err := s.db.WithContext(ctx).Where("cache_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var bars []market.Bar
	if len(row.Bars) > 0 {
		if err := json.Unmarshal(row.Bars, &bars); err != nil {
			return nil, false, fmt.Errorf("decode bars for %s: %w", key, err)
		}
	}
	return bars, true, nil
}

func (s *GormStore) Set(ctx context.Context, key string, bars []market.Bar) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("gorm store: key cannot be empty")
	}
	raw, err := json.Marshal(bars)
	if err != nil {
		return err
	}
	row := barSeriesModel{
		Key:     key,
		Version: store.Version,
		Symbol:  store.SymbolFromKey(key),
		Rows:    len(bars),
		Bars:    datatypes.JSON(raw),
	}
	if len(bars) > 0 {
		row.FirstDate = bars[0].Date
		row.LastDate = bars[len(bars)-1].Date
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"version", "symbol", "first_date", "last_date", "rows", "bars", "updated_at"}),
	}).Create(&row).Error
}

// Summaries lists what is cached without decoding the bar payloads.
func (s *GormStore) Summaries(ctx context.Context) ([]storemodel.BarSeriesModel, error) {
	var rows []storemodel.BarSeriesModel
	err := s.db.WithContext(ctx).
		Omit("bars").
		Order("cache_key").
		Find(&rows).Error
	return rows, err
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
