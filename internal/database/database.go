// package database provides sqlite connection management.
package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB wraps a GORM instance over a local sqlite file.
type DB struct {
	GORM *gorm.DB
}

// New opens (and creates if missing) a sqlite database at the given path.
// Use ":memory:" for an in-memory database in tests.
func New(path string) (*DB, error) {
	gormDB, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	return &DB{GORM: gormDB}, nil
}

// Close closes the underlying sql connection.
func (db *DB) Close() error {
	sqlDB, err := db.GORM.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
