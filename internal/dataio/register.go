package dataio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/m3-mcp/m3/internal/config"
	"github.com/m3-mcp/m3/internal/duckdb"
	m3errors "github.com/m3-mcp/m3/internal/errors"
)

// Register opens (or creates) the DuckDB file at dbPath, applies the
// configured thread/memory pragmas, and creates one CREATE OR REPLACE VIEW
// per Parquet file found under parquetRoot, named by ViewName. It then
// verifies the result by counting rows in verifyTable.
func Register(ctx context.Context, dbPath, parquetRoot, verifyTable string, cfg *config.Config, logger zerolog.Logger) (int64, error) {
	parquetFiles, err := findParquetFiles(parquetRoot)
	if err != nil {
		return 0, err
	}
	if len(parquetFiles) == 0 {
		return 0, m3errors.Initialization("no Parquet files found in %s", parquetRoot)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return 0, err
	}

	threads := runtimeThreadCount(cfg)
	db, err := duckdb.OpenDB(dbPath, duckdb.OpenOptions{Threads: threads, MemoryCap: cfg.Get("M3_DUCKDB_MEM", "8GB", false)})
	if err != nil {
		return 0, m3errors.Wrap(m3errors.KindInitialization, "failed to open database for view registration", err)
	}
	defer db.Close()

	created := 0
	for _, pq := range parquetFiles {
		rel, err := filepath.Rel(parquetRoot, pq)
		if err != nil {
			return 0, err
		}
		view := ViewName(rel)
		stmt := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet('%s')", view, filepath.ToSlash(pq))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return 0, m3errors.Wrap(m3errors.KindInitialization, "failed to create view "+view, err)
		}
		created++
		if created%5 == 0 || created == len(parquetFiles) {
			logger.Info().Int("created", created).Int("total", len(parquetFiles)).Str("last", view).Msg("registering views")
		}
	}

	logger.Info().Int("count", created).Str("db", dbPath).Msg("views registered")

	row := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+verifyTable)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, m3errors.Wrap(m3errors.KindInitialization, "verification query against "+verifyTable+" failed", err)
	}
	return count, nil
}

// ViewName derives the deterministic, case-folded view name for a Parquet
// file path relative to its parquet root: lowercase path parts joined by
// "_", with "-" and "." collapsed to "_" and the ".parquet" suffix dropped.
func ViewName(relPath string) string {
	relPath = filepath.ToSlash(relPath)
	relPath = strings.TrimSuffix(relPath, ".parquet")
	parts := strings.Split(relPath, "/")
	for i, p := range parts {
		p = strings.ToLower(p)
		p = strings.ReplaceAll(p, "-", "_")
		p = strings.ReplaceAll(p, ".", "_")
		parts[i] = p
	}
	return strings.Join(parts, "_")
}

func findParquetFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(p, ".parquet") {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

func runtimeThreadCount(cfg *config.Config) int {
	if n, err := strconv.Atoi(cfg.Get("M3_DUCKDB_THREADS", "", false)); err == nil && n > 0 {
		return n
	}
	return 4
}
