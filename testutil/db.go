// Package testutil holds shared helpers for integration tests.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/onnwee/botkit/db"
)

// SetupTestDB opens the database named by TEST_DB_DSN and runs migrations.
// It skips the test when the variable is unset, so the suite stays green
// without a database. Postgres and SQLite DSNs both work; use a
// t.TempDir() file path for a throwaway SQLite database.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	return SetupTestDBWithDSN(t, dsn)
}

// SetupTestDBWithDSN opens and migrates a specific DSN. Used by SQLite
// tests that provision their own temp file.
func SetupTestDBWithDSN(t *testing.T, dsn string) *sql.DB {
	t.Helper()
	database, err := db.Connect(dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(context.Background(), database, dsn); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}
