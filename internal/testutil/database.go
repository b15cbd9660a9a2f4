package testutil

import (
	"path/filepath"
	"testing"

	"github.com/m3-mcp/m3/internal/backend"
)

// NewTestDatabase opens an embedded DuckDB backend against dbPath, or a
// fresh file in a per-test temp directory when dbPath is empty (the usual
// case: tests populating their own database from scratch). The backend is
// opened and closed automatically when the test completes.
func NewTestDatabase(t *testing.T, dbPath string) *backend.Embedded {
	t.Helper()

	ctx, cancel := NewTestContext()
	defer cancel()

	if dbPath == "" {
		dbPath = filepath.Join(t.TempDir(), "test.duckdb")
	}
	db := backend.NewEmbedded(dbPath)
	db.SetLogger(NewTestLogger(t))
	if err := db.Open(ctx); err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})

	return db
}
