// Package testing provides database, fixture and mock helpers for tests.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/aristath/portfoliolab/internal/database"
)

// NewTestDB creates a file-backed SQLite database in the test's temporary
// directory and applies the embedded schema for name ("results" or "cache").
// Unknown names produce an empty database. The database is closed when the
// test finishes.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	profile := database.ProfileStandard
	if name == database.NameCache {
		profile = database.ProfileCache
	}

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}
	return db
}
