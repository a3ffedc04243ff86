package database

import (
	"fmt"
	"path/filepath"

	"libshare/internal/config"
)

// NewStoreFromConfig creates a SQLiteStore based on the database config
// type. The "memory" type backs onto an in-memory sqlite database.
func NewStoreFromConfig(cfg config.DatabaseConfig) (*SQLiteStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "libshare.db"))
	case "memory":
		store, err := NewSQLiteStore(":memory:")
		if err != nil {
			return nil, err
		}
		// Every pool connection to :memory: would get its own database,
		// so pin the pool to one connection.
		store.db.SetMaxOpenConns(1)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
