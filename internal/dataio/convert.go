package dataio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rs/zerolog"

	"github.com/m3-mcp/m3/internal/config"
	"github.com/m3-mcp/m3/internal/duckdb"
	m3errors "github.com/m3-mcp/m3/internal/errors"
)

// ConvertOptions tunes the Convert sub-stage's bounded worker pool and each
// worker's own DuckDB connection.
type ConvertOptions struct {
	MaxWorkers int
	Threads    int
	MemoryCap  string
}

// ConvertOptionsFromConfig reads M3_CONVERT_MAX_WORKERS / M3_DUCKDB_THREADS /
// M3_DUCKDB_MEM, falling back to the defaults documented for the Convert
// sub-stage (4 workers, 2 threads, 3GB).
func ConvertOptionsFromConfig(cfg *config.Config) ConvertOptions {
	opts := ConvertOptions{MaxWorkers: 4, Threads: 2, MemoryCap: "3GB"}
	if n, err := strconv.Atoi(cfg.Get("M3_CONVERT_MAX_WORKERS", "", false)); err == nil && n > 0 {
		opts.MaxWorkers = n
	}
	if n, err := strconv.Atoi(cfg.Get("M3_DUCKDB_THREADS", "", false)); err == nil && n > 0 {
		opts.Threads = n
	}
	if cap := cfg.Get("M3_DUCKDB_MEM", "", false); cap != "" {
		opts.MemoryCap = cap
	}
	return opts
}

// Convert streams every *.csv.gz file under csvRoot through a bounded pool
// of independent DuckDB connections, writing a zstd-compressed Parquet
// mirror into parquetRoot. Files are sorted smallest-first so progress
// advances smoothly; any single conversion failure cancels the remaining
// work and fails the stage.
func Convert(ctx context.Context, csvRoot, parquetRoot string, opts ConvertOptions, logger zerolog.Logger) error {
	files, err := findCSVFiles(csvRoot)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return m3errors.Initialization("no CSV files found in %s", csvRoot)
	}

	maxWorkers := opts.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	var completed atomicCounter
	total := len(files)

	for _, csvFile := range files {
		csvFile := csvFile
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := convertOne(csvFile, csvRoot, parquetRoot, opts)
			if err != nil {
				return m3errors.Wrap(m3errors.KindInitialization, "parquet conversion failed for "+csvFile, err)
			}
			n := completed.Inc()
			logger.Info().Str("out", out).Int("completed", n).Int("total", total).Msg("converted file")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Int("count", total).Str("root", parquetRoot).Msg("conversion complete")
	return nil
}

func convertOne(csvPath, csvRoot, parquetRoot string, opts ConvertOptions) (string, error) {
	rel, err := filepath.Rel(csvRoot, csvPath)
	if err != nil {
		return "", err
	}
	outRel := strings.TrimSuffix(strings.TrimSuffix(rel, ".gz"), ".csv") + ".parquet"
	outPath := filepath.Join(parquetRoot, outRel)

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}

	db, err := duckdb.OpenDB("", duckdb.OpenOptions{Threads: opts.Threads, MemoryCap: opts.MemoryCap})
	if err != nil {
		return "", err
	}
	defer db.Close()

	sqlText := fmt.Sprintf(`
		COPY (
		  SELECT * FROM read_csv_auto(
		    '%s',
		    sample_size=-1,
		    auto_detect=true,
		    nullstr=['', 'NULL', 'NA', 'N/A', '___'],
		    ignore_errors=false
		  )
		)
		TO '%s' (FORMAT PARQUET, COMPRESSION ZSTD);
	`, filepath.ToSlash(csvPath), filepath.ToSlash(outPath))

	if _, err := db.Exec(sqlText); err != nil {
		return "", err
	}
	return outPath, nil
}

func findCSVFiles(root string) ([]string, error) {
	var files []string
	var sizes []int64
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(p, ".csv.gz") {
			files = append(files, p)
			sizes = append(sizes, info.Size())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	idx := make([]int, len(files))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return sizes[idx[i]] < sizes[idx[j]] })

	sorted := make([]string, len(files))
	for i, id := range idx {
		sorted[i] = files[id]
	}
	return sorted, nil
}

// atomicCounter avoids pulling in sync/atomic's typed wrappers for a single
// counter shared across the worker pool's goroutines.
type atomicCounter struct {
	mu sync.Mutex
	n  int
}

func (c *atomicCounter) Inc() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}
