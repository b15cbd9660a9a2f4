package mimic

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/m3-mcp/m3/internal/auth"
	"github.com/m3-mcp/m3/internal/backend"
	"github.com/m3-mcp/m3/internal/config"
	"github.com/m3-mcp/m3/internal/testutil"
)

func newEmbeddedTool(t *testing.T) (*Tool, *backend.Embedded) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.duckdb")
	e := backend.NewEmbedded(dbPath)

	cfg, err := config.New("INFO", map[string]string{"M3_DB_PATH": dbPath})
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}

	tool, err := New([]backend.Backend{e}, "embedded", cfg, nil, testutil.NewTestLogger(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := testutil.NewTestContext()
	defer cancel()
	if err := tool.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { _ = tool.Close() })

	return tool, e
}

// TestSchemaDiscovery mirrors the S1 scenario: two registered tables should
// both appear in get_database_schema's output.
func TestSchemaDiscovery(t *testing.T) {
	tool, e := newEmbeddedTool(t)
	ctx := context.Background()

	if _, err := e.DB().ExecContext(ctx, `CREATE TABLE icu_icustays (subject_id INTEGER)`); err != nil {
		t.Fatalf("create icu_icustays: %v", err)
	}
	if _, err := e.DB().ExecContext(ctx, `CREATE TABLE hosp_labevents (subject_id INTEGER)`); err != nil {
		t.Fatalf("create hosp_labevents: %v", err)
	}

	result, err := tool.getDatabaseSchema(ctx, nil)
	if err != nil {
		t.Fatalf("getDatabaseSchema: %v", err)
	}
	if !contains(result, "icu_icustays") || !contains(result, "hosp_labevents") {
		t.Errorf("expected both table names in schema output, got: %s", result)
	}
}

// TestSafeQuery mirrors S2: count of two inserted rows.
func TestSafeQuery(t *testing.T) {
	tool, e := newEmbeddedTool(t)
	ctx := context.Background()

	if _, err := e.DB().ExecContext(ctx, `CREATE TABLE icu_icustays (subject_id INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := e.DB().ExecContext(ctx, `INSERT INTO icu_icustays VALUES (10000032), (10000033)`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	result, err := tool.executeMimicQuery(ctx, map[string]any{"sql": "SELECT COUNT(*) as count FROM icu_icustays"})
	if err != nil {
		t.Fatalf("executeMimicQuery: %v", err)
	}
	if !contains(result, "count") || !contains(result, "2") {
		t.Errorf("expected 'count' and '2' in result, got: %s", result)
	}
}

// TestWriteRejection mirrors S3: write statements are rejected with the
// Security Error / Only SELECT text.
func TestWriteRejection(t *testing.T) {
	tool, _ := newEmbeddedTool(t)
	ctx := context.Background()

	queries := []string{
		"UPDATE icu_icustays SET subject_id=999",
		"DELETE FROM icu_icustays",
		"DROP TABLE icu_icustays",
	}
	for _, q := range queries {
		result, err := tool.executeMimicQuery(ctx, map[string]any{"sql": q})
		if err != nil {
			t.Fatalf("executeMimicQuery(%q): %v", q, err)
		}
		if !contains(result, "Security Error") || !contains(result, "Only SELECT") {
			t.Errorf("query %q: expected Security Error and Only SELECT, got: %s", q, result)
		}
	}
}

// TestExplorationRedirection mirrors S4: DESCRIBE should point at
// get_table_info.
func TestExplorationRedirection(t *testing.T) {
	tool, _ := newEmbeddedTool(t)
	ctx := context.Background()

	result, err := tool.executeMimicQuery(ctx, map[string]any{"sql": "DESCRIBE icu_icustays"})
	if err != nil {
		t.Fatalf("executeMimicQuery: %v", err)
	}
	if !contains(result, "get_table_info") {
		t.Errorf("expected get_table_info mentioned, got: %s", result)
	}
}

// TestEmptyResult mirrors S5.
func TestEmptyResult(t *testing.T) {
	tool, e := newEmbeddedTool(t)
	ctx := context.Background()

	if _, err := e.DB().ExecContext(ctx, `CREATE TABLE icu_icustays (subject_id INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	result, err := tool.executeMimicQuery(ctx, map[string]any{"sql": "SELECT * FROM icu_icustays WHERE subject_id = 999999"})
	if err != nil {
		t.Fatalf("executeMimicQuery: %v", err)
	}
	if !contains(result, "No results found") {
		t.Errorf("expected 'No results found' in result, got: %s", result)
	}
}

func TestGetICUStays_InvalidLimitRejected(t *testing.T) {
	tool, _ := newEmbeddedTool(t)
	result, err := tool.getICUStays(context.Background(), map[string]any{"limit": 0})
	if err != nil {
		t.Fatalf("getICUStays: %v", err)
	}
	if result != invalidLimitMessage {
		t.Errorf("expected invalid-limit message, got: %s", result)
	}
}

func TestGetICUStays_ByPatientID(t *testing.T) {
	tool, e := newEmbeddedTool(t)
	ctx := context.Background()
	if _, err := e.DB().ExecContext(ctx, `CREATE TABLE icu_icustays (subject_id INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := e.DB().ExecContext(ctx, `INSERT INTO icu_icustays VALUES (10000032), (10000033)`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	result, err := tool.getICUStays(ctx, map[string]any{"patient_id": 10000032})
	if err != nil {
		t.Fatalf("getICUStays: %v", err)
	}
	if !contains(result, "10000032") {
		t.Errorf("expected filtered row, got: %s", result)
	}
}

func TestGetLabResults_EscapesLabItem(t *testing.T) {
	tool, e := newEmbeddedTool(t)
	ctx := context.Background()
	if _, err := e.DB().ExecContext(ctx, `CREATE TABLE hosp_labevents (subject_id INTEGER, value VARCHAR)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := e.DB().ExecContext(ctx, `INSERT INTO hosp_labevents VALUES (1, 'glucose O''Brien')`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	result, err := tool.getLabResults(ctx, map[string]any{"lab_item": "O'Brien"})
	if err != nil {
		t.Fatalf("getLabResults: %v", err)
	}
	if !contains(result, "glucose") {
		t.Errorf("expected matching row, got: %s", result)
	}
}

func TestGetRaceDistribution(t *testing.T) {
	tool, e := newEmbeddedTool(t)
	ctx := context.Background()
	if _, err := e.DB().ExecContext(ctx, `CREATE TABLE hosp_admissions (subject_id INTEGER, race VARCHAR)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := e.DB().ExecContext(ctx, `INSERT INTO hosp_admissions VALUES (1, 'WHITE'), (2, 'WHITE'), (3, 'BLACK')`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	result, err := tool.getRaceDistribution(ctx, map[string]any{"limit": 10})
	if err != nil {
		t.Fatalf("getRaceDistribution: %v", err)
	}
	if !contains(result, "WHITE") {
		t.Errorf("expected race distribution output, got: %s", result)
	}
}

func TestNew_InvalidBackendKeyRejected(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.duckdb")
	e := backend.NewEmbedded(dbPath)
	cfg, _ := config.New("INFO", map[string]string{"M3_DB_PATH": dbPath})
	if _, err := New([]backend.Backend{e}, "cloud", cfg, nil, zerolog.Nop()); err == nil {
		t.Fatal("expected construction with an unavailable backend key to fail")
	}
}

func TestToDictFromDict_RoundTrip(t *testing.T) {
	tool, _ := newEmbeddedTool(t)
	cfg, _ := config.New("INFO", map[string]string{})

	dict := tool.ToDict()
	rebuilt, err := FromDict(dict, cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("FromDict: %v", err)
	}
	if rebuilt.backendKey != tool.backendKey {
		t.Errorf("expected backend_key to round-trip, got %q", rebuilt.backendKey)
	}
}

// TestAuthRequired mirrors S6: with auth enabled and no token supplied, an
// action's middleware-wrapped handler must fail before ever reaching the
// backend.
func TestAuthRequired(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.duckdb")
	e := backend.NewEmbedded(dbPath)
	cfg, err := config.New("INFO", map[string]string{"M3_DB_PATH": dbPath})
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}

	acfg := auth.DefaultConfig()
	acfg.Enabled = true
	acfg.IssuerURL = "https://auth.example.com"
	acfg.Audience = "m3-api"
	a, err := auth.New(acfg, testutil.NewTestLogger(t))
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}

	tool, err := New([]backend.Backend{e}, "embedded", cfg, a, testutil.NewTestLogger(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := testutil.NewTestContext()
	defer cancel()
	if err := tool.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { _ = tool.Close() })

	backendReached := false
	tool.backends["embedded"] = &reachTrackingBackend{Embedded: e, reached: &backendReached}

	specs := tool.Actions()
	spec, ok := specs["get_database_schema"]
	if !ok {
		t.Fatal("expected get_database_schema to be registered")
	}

	_, err = spec.Handler(ctx, map[string]any{})
	if err == nil {
		t.Fatal("expected the auth middleware to reject the call before it reaches the backend")
	}
	if !contains(err.Error(), "Missing OAuth2 access token") {
		t.Errorf("expected missing-token error text, got: %v", err)
	}
	if backendReached {
		t.Error("expected the backend to never be reached when auth rejects the call")
	}
}

type reachTrackingBackend struct {
	*backend.Embedded
	reached *bool
}

func (r *reachTrackingBackend) Execute(ctx context.Context, sql string) (string, error) {
	*r.reached = true
	return r.Embedded.Execute(ctx, sql)
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
