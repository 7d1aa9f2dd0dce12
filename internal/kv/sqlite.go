package kv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const sqliteFile = "portal.db"

// Entry is one key/value row.
type Entry struct {
	Key       string `gorm:"primaryKey;column:entry_key"`
	Value     []byte
	UpdatedAt time.Time
}

// SQLiteStore keeps every key as a row in a single sqlite table.
type SQLiteStore struct {
	*feed

	db *gorm.DB
}

func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, sqliteFile)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteStore{feed: newFeed(), db: db}, nil
}

func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var e Entry
	err := s.db.First(&e, "entry_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e.Value, true, nil
}

func (s *SQLiteStore) Set(key string, value []byte) error {
	e := Entry{Key: key, Value: value, UpdatedAt: time.Now()}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return err
	}
	s.publish(Change{Key: key, At: e.UpdatedAt})
	return nil
}

func (s *SQLiteStore) Delete(key string) error {
	res := s.db.Delete(&Entry{}, "entry_key = ?", key)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		s.publish(Change{Key: key, Deleted: true, At: time.Now()})
	}
	return nil
}

func (s *SQLiteStore) Keys() ([]string, error) {
	var keys []string
	err := s.db.Model(&Entry{}).Order("entry_key").Pluck("entry_key", &keys).Error
	return keys, err
}

func (s *SQLiteStore) Close() error {
	s.closeAll()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
