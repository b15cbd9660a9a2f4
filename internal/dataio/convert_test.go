package dataio

import (
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/m3-mcp/m3/internal/config"
)

func writeCSV(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(contents)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestConvert_WritesParquetMirroringSubdirs(t *testing.T) {
	csvRoot := t.TempDir()
	parquetRoot := t.TempDir()

	writeCSV(t, filepath.Join(csvRoot, "hosp", "admissions.csv.gz"), "subject_id,race\n1,WHITE\n2,BLACK\n")
	writeCSV(t, filepath.Join(csvRoot, "icu", "icustays.csv.gz"), "subject_id,los\n1,3.5\n")

	opts := ConvertOptions{MaxWorkers: 2, Threads: 1, MemoryCap: "512MB"}
	if err := Convert(context.Background(), csvRoot, parquetRoot, opts, zerolog.Nop()); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	for _, rel := range []string{"hosp/admissions.parquet", "icu/icustays.parquet"} {
		path := filepath.Join(parquetRoot, filepath.FromSlash(rel))
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected parquet file at %s: %v", path, err)
		}
	}
}

func TestConvert_NoCSVFilesIsError(t *testing.T) {
	csvRoot := t.TempDir()
	parquetRoot := t.TempDir()
	if err := Convert(context.Background(), csvRoot, parquetRoot, ConvertOptions{}, zerolog.Nop()); err == nil {
		t.Fatal("expected an empty CSV root to fail Convert")
	}
}

func TestConvertOptionsFromConfig_Defaults(t *testing.T) {
	cfg, err := config.New("INFO", map[string]string{})
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	opts := ConvertOptionsFromConfig(cfg)
	if opts.MaxWorkers != 4 || opts.Threads != 2 || opts.MemoryCap != "3GB" {
		t.Errorf("expected documented defaults, got %+v", opts)
	}
}

func TestConvertOptionsFromConfig_EnvOverrides(t *testing.T) {
	cfg, err := config.New("INFO", map[string]string{
		"M3_CONVERT_MAX_WORKERS": "8",
		"M3_DUCKDB_THREADS":      "4",
		"M3_DUCKDB_MEM":          "1GB",
	})
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	opts := ConvertOptionsFromConfig(cfg)
	if opts.MaxWorkers != 8 || opts.Threads != 4 || opts.MemoryCap != "1GB" {
		t.Errorf("expected env overrides to apply, got %+v", opts)
	}
}
