package dataio

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/m3-mcp/m3/internal/config"
	"github.com/m3-mcp/m3/internal/datasets"
	m3errors "github.com/m3-mcp/m3/internal/errors"
)

// Acquire runs Discover, Download, Convert, and Register in sequence for
// def, producing a populated embedded analytical database at the dataset's
// configured path and returning the primary verification table's row
// count. Each sub-stage exits early on failure; credentialed datasets are
// rejected up front since they cannot be scraped anonymously.
func Acquire(ctx context.Context, def datasets.Definition, cfg *config.Config, logger zerolog.Logger) (int64, error) {
	if def.RequiresAuthentication {
		return 0, m3errors.Validation("dataset %s requires authentication and cannot be auto-downloaded; download files manually", def.Name)
	}

	rawRoot := cfg.DatasetRawFilesDir(def.Name)
	parquetRoot := cfg.DatasetParquetRoot(def.Name)
	dbPath := filepath.Join(cfg.DatasetDataDir(def.Name), def.DefaultFilename)

	refs, err := Discover(ctx, def, logger)
	if err != nil {
		return 0, err
	}

	if err := Download(ctx, refs, rawRoot, logger); err != nil {
		return 0, err
	}

	if err := Convert(ctx, rawRoot, parquetRoot, ConvertOptionsFromConfig(cfg), logger); err != nil {
		return 0, err
	}

	return Register(ctx, dbPath, parquetRoot, def.PrimaryVerificationTable, cfg, logger)
}
