package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestEmbedded_OpenExecuteClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.duckdb")
	e := NewEmbedded(dbPath)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	if e.State() != StateOpen {
		t.Fatalf("expected StateOpen, got %v", e.State())
	}

	if _, err := e.DB().ExecContext(ctx, `CREATE TABLE icu_icustays (subject_id INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := e.DB().ExecContext(ctx, `INSERT INTO icu_icustays VALUES (10000032), (10000033)`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	result, err := e.Execute(ctx, "SELECT COUNT(*) as count FROM icu_icustays")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !contains(result, "count") || !contains(result, "2") {
		t.Errorf("expected result to contain 'count' and '2', got: %s", result)
	}
}

func TestEmbedded_ExecuteOnUnopenedFails(t *testing.T) {
	e := NewEmbedded(filepath.Join(t.TempDir(), "test.duckdb"))
	if _, err := e.Execute(context.Background(), "SELECT 1"); err == nil {
		t.Fatal("expected execute on an unopened backend to fail")
	}
}

func TestEmbedded_EmptyResultSet(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.duckdb")
	e := NewEmbedded(dbPath)
	ctx := context.Background()
	if err := e.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	if _, err := e.DB().ExecContext(ctx, `CREATE TABLE icu_icustays (subject_id INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	result, err := e.Execute(ctx, "SELECT * FROM icu_icustays WHERE subject_id = 999999")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != "No results found" {
		t.Errorf("expected exact empty-result string, got: %q", result)
	}
}

func TestEmbedded_ToDictFromDictRoundTrip(t *testing.T) {
	e := NewEmbedded("/abs/path.db")
	dict := e.ToDict()
	kind, _ := dict["type"].(string)
	params, _ := dict["params"].(map[string]any)

	rebuilt, err := FromDict(kind, params)
	if err != nil {
		t.Fatalf("FromDict: %v", err)
	}
	re, ok := rebuilt.(*Embedded)
	if !ok {
		t.Fatalf("expected *Embedded, got %T", rebuilt)
	}
	if re.Path() != "/abs/path.db" {
		t.Errorf("expected round-tripped path to match, got %q", re.Path())
	}
}

func TestCloud_ToDictFromDictRoundTrip(t *testing.T) {
	c := NewCloud("physionet-data")
	dict := c.ToDict()
	kind, _ := dict["type"].(string)
	params, _ := dict["params"].(map[string]any)

	rebuilt, err := FromDict(kind, params)
	if err != nil {
		t.Fatalf("FromDict: %v", err)
	}
	rc, ok := rebuilt.(*Cloud)
	if !ok {
		t.Fatalf("expected *Cloud, got %T", rebuilt)
	}
	if rc.Project() != "physionet-data" {
		t.Errorf("expected round-tripped project to match, got %q", rc.Project())
	}
}

func TestFormatResult_TruncatesAtFiftyRows(t *testing.T) {
	columns := []string{"subject_id"}
	rows := make([][]any, 60)
	for i := range rows {
		rows[i] = []any{i}
	}
	result := FormatResult(columns, rows)
	if !contains(result, "60 total rows, showing first 50") {
		t.Errorf("expected truncation trailer, got: %s", result)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (substr == "" || indexOf(s, substr) >= 0)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
