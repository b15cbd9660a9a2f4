package backend

import (
	"context"
	"database/sql"
	"sync"

	"github.com/rs/zerolog"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/m3-mcp/m3/internal/duckdb"
	m3errors "github.com/m3-mcp/m3/internal/errors"
)

// Embedded addresses a single-file analytical database over Parquet views.
type Embedded struct {
	path   string
	logger zerolog.Logger

	mu    sync.Mutex
	db    *sql.DB
	state State
}

// NewEmbedded constructs an Embedded backend for the database file at path.
// Cleanup failures are discarded by default; call SetLogger to surface them.
func NewEmbedded(path string) *Embedded {
	return &Embedded{path: path, state: StateUninitialized, logger: zerolog.Nop()}
}

// SetLogger directs cleanup-path warnings (ping failures, row-iterator
// close errors) to logger instead of discarding them.
func (e *Embedded) SetLogger(logger zerolog.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = logger
}

func (e *Embedded) Open(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	db, err := duckdb.OpenDB(e.path, duckdb.OpenOptions{})
	if err != nil {
		return m3errors.Wrap(m3errors.KindInitialization, "failed to open embedded backend at "+e.path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		m3errors.DeferClose(e.logger, db, "failed to close embedded backend after ping failure")
		return m3errors.Wrap(m3errors.KindInitialization, "embedded backend connection check failed for "+e.path, err)
	}
	e.db = db
	e.state = StateOpen
	return nil
}

func (e *Embedded) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	e.state = StateClosed
	return err
}

func (e *Embedded) Execute(ctx context.Context, query string) (string, error) {
	e.mu.Lock()
	db := e.db
	state := e.state
	logger := e.logger
	e.mu.Unlock()

	if state != StateOpen || db == nil {
		return "", m3errors.Validation("embedded backend is not open")
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return "", m3errors.Validation("embedded backend execution failed: %v", err)
	}
	defer m3errors.DeferClose(logger, rows, "failed to close query result rows")

	columns, err := rows.Columns()
	if err != nil {
		return "", m3errors.Validation("embedded backend execution failed: %v", err)
	}

	var results [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return "", m3errors.Validation("embedded backend execution failed: %v", err)
		}
		results = append(results, values)
	}
	if err := rows.Err(); err != nil {
		return "", m3errors.Validation("embedded backend execution failed: %v", err)
	}

	return FormatResult(columns, results), nil
}

func (e *Embedded) ToDict() map[string]any {
	return map[string]any{"type": "embedded", "params": map[string]any{"path": e.path}}
}

func (e *Embedded) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Path returns the backend's database file path, used by the MIMIC tool to
// render the backend-info banner.
func (e *Embedded) Path() string {
	return e.path
}

// DB exposes the underlying *sql.DB for callers that need direct access
// (schema introspection, view registration during Data-IO's Register
// sub-stage). Returns nil if the backend is not open.
func (e *Embedded) DB() *sql.DB {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db
}
