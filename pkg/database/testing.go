package database

import (
	"fmt"
	"sync/atomic"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var memSeq atomic.Int64

// OpenMemory opens an isolated, migrated in-memory sqlite database.
// A single connection keeps every transaction on the same memory store;
// concurrent transactions queue on the pool instead of interleaving.
func OpenMemory() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:shipdesk_mem_%d?mode=memory&cache=shared&_busy_timeout=5000", memSeq.Add(1))
	db, err := Open(sqlite.Open(dsn))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
