package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net/url"
	"strconv"
	"strings"

	duckdbDriver "github.com/marcboeker/go-duckdb"
)

// OpenOptions tunes the connection DuckDB opens for the embedded analytical
// backend. ReadOnly is set whenever the database is opened purely to serve
// queries against already-registered Parquet views.
type OpenOptions struct {
	ReadOnly   bool
	Threads    int
	MemoryCap  string // e.g. "4GB"; empty leaves DuckDB's default.
}

// OpenDB opens a DuckDB database, injecting autoload configuration for
// extensions the embedded backend depends on (httpfs for remote Parquet,
// parquet for local Parquet views) and applying boot pragmas from opts on
// every pooled connection.
func OpenDB(dsn string, opts OpenOptions) (*sql.DB, error) {
	dsn = injectAutoloadConfig(dsn)

	connector, err := duckdbDriver.NewConnector(dsn, func(execer driver.ExecerContext) error {
		ctx := context.Background()
		bootQueries := []string{"INSTALL parquet", "LOAD parquet"}
		if opts.Threads > 0 {
			bootQueries = append(bootQueries, pragmaThreads(opts.Threads))
		}
		if opts.MemoryCap != "" {
			bootQueries = append(bootQueries, pragmaMemoryLimit(opts.MemoryCap))
		}
		for _, query := range bootQueries {
			if _, err := execer.ExecContext(ctx, query, nil); err != nil {
				// Non-fatal: extension install may be unavailable offline;
				// the parquet extension ships built in for recent DuckDB
				// builds and LOAD alone will still succeed.
				continue
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(connector)
	if opts.ReadOnly {
		db.SetMaxOpenConns(4)
	}
	return db, nil
}

func pragmaThreads(n int) string {
	return "SET threads=" + strconv.Itoa(n)
}

func pragmaMemoryLimit(cap string) string {
	return "SET memory_limit='" + cap + "'"
}

// injectAutoloadConfig adds autoinstall_known_extensions and
// autoload_known_extensions to the DSN query parameters if not already set.
func injectAutoloadConfig(dsn string) string {
	// Handle empty DSN (in-memory database).
	if dsn == "" || dsn == ":memory:" {
		return dsn
	}

	// Split path from query string.
	sep := strings.IndexByte(dsn, '?')
	path := dsn
	query := ""
	if sep >= 0 {
		path = dsn[:sep]
		query = dsn[sep+1:]
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		// If we can't parse, return original DSN unchanged.
		return dsn
	}

	if !params.Has("autoinstall_known_extensions") {
		params.Set("autoinstall_known_extensions", "true")
	}
	if !params.Has("autoload_known_extensions") {
		params.Set("autoload_known_extensions", "true")
	}

	return path + "?" + params.Encode()
}
