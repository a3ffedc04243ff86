package testutil

import (
	"testing"

	"libshare/internal/database"
	"libshare/internal/directory"
)

// NewTestDatabase creates a new in-memory SQLite store with schema applied.
// The store is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteStore {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	// Every pool connection to :memory: would get its own database, so
	// pin the pool to one connection.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(database.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	store := database.NewSQLiteStoreFromDB(sqlDB)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// NewTestDirectory creates a directory sharing the store's connection.
func NewTestDirectory(t *testing.T, store *database.SQLiteStore) *directory.SQLiteDirectory {
	t.Helper()
	return directory.NewSQLiteDirectory(store.DB())
}
