package db

import (
	"context"
	"testing"
)

// NewTestDB creates a fresh in-memory SQLite database with all migrations applied.
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	ctx := context.Background()
	database, err := Open(ctx, "sqlite", ":memory:", Options{})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := Migrate(ctx, database); err != nil {
		database.Close()
		t.Fatalf("migrating test database: %v", err)
	}

	t.Cleanup(func() { database.Close() })

	return database
}
