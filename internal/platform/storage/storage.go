package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	db   *gorm.DB
	dbMu sync.RWMutex
)

// OpenDatabase opens a SQLite database at the given DSN and runs migrations.
func OpenDatabase(dsn string) (*gorm.DB, error) {
	if dir := filepath.Dir(dsn); dir != "." && dir != "" && dsn != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	handle, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := handle.AutoMigrate(&SpeechCacheEntry{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return handle, nil
}

// InitDatabase opens the process-wide database handle.
func InitDatabase(dsn string) error {
	handle, err := OpenDatabase(dsn)
	if err != nil {
		return err
	}

	dbMu.Lock()
	db = handle
	dbMu.Unlock()
	return nil
}

// GetDB returns the process-wide database handle, or nil before InitDatabase.
func GetDB() *gorm.DB {
	dbMu.RLock()
	defer dbMu.RUnlock()
	return db
}
