// Command m3server is the MCP server entry point: it loads a persisted
// pipeline file named by M3_CONFIG_PATH and serves its registered actions
// over stdio until the transport closes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/m3-mcp/m3/internal/mimic"
	"github.com/m3-mcp/m3/internal/logging"
	"github.com/m3-mcp/m3/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger, err := logging.New(logging.Config{Level: envOr("M3_LOG_LEVEL", "INFO"), Pretty: false, Output: os.Stderr})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	configPath := os.Getenv("M3_CONFIG_PATH")
	if configPath == "" {
		logger.Error().Msg("M3_CONFIG_PATH is required at startup")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.Load(ctx, configPath, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load pipeline")
		return 1
	}

	if err := p.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return 1
	}

	return 0
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
