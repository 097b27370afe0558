package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens an embedded store file with the pragmas every tenant store
// relies on: enforced foreign keys, WAL journaling, and a busy timeout so
// short overlapping writes queue instead of failing.
func Open(path string) (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open(DSN(path)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return conn, nil
}

// DSN builds the sqlite connection string for a store file.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
}

// Close releases the underlying connection pool of a store handle.
func Close(conn *gorm.DB) error {
	if conn == nil {
		return nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
