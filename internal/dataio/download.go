package dataio

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	m3errors "github.com/m3-mcp/m3/internal/errors"
	"github.com/m3-mcp/m3/internal/safe"
)

// downloadChunkSize matches the original's 8192-byte streaming chunk.
const downloadChunkSize = 8192

// downloadRateLimit caps outbound requests against the file listing host,
// since Download runs sequentially against what is usually someone else's
// public web server.
const downloadRateLimit = 5 // requests per second

// Download fetches every ref sequentially into root, in the order given
// (callers should pass an already-sorted, deduplicated list). It fails
// fast: the first failed file deletes its partial output and aborts the
// remaining batch, per the sub-stage's all-or-nothing contract. Requests
// are paced by a token-bucket limiter to stay server-friendly.
func Download(ctx context.Context, refs []FileRef, root string, logger zerolog.Logger) error {
	client := &http.Client{}
	limiter := rate.NewLimiter(rate.Limit(downloadRateLimit), 1)

	for i, ref := range refs {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		target := filepath.Join(root, filepath.FromSlash(ref.LocalPath))
		logger.Info().Str("url", ref.URL).Str("target", target).
			Int("progress", i+1).Int("total", len(refs)).Msg("downloading file")

		if err := downloadOne(ctx, client, ref.URL, target, logger); err != nil {
			return m3errors.Wrap(m3errors.KindInitialization, "critical download failure for "+target+", aborting batch", err)
		}
	}

	logger.Info().Int("count", len(refs)).Msg("all files downloaded")
	return nil
}

func downloadOne(ctx context.Context, client *http.Client, fileURL, target string, logger zerolog.Logger) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", commonUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer safe.Close(resp.Body, logger, "failed to close response body")

	if resp.StatusCode >= 400 {
		return m3errors.Initialization("download failed (%d) for %s", resp.StatusCode, fileURL)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	buf := make([]byte, downloadChunkSize)
	_, copyErr := io.CopyBuffer(f, resp.Body, buf)
	closeErr := f.Close()

	if copyErr != nil || closeErr != nil {
		safe.RemoveFile(f, logger)
		if copyErr != nil {
			return copyErr
		}
		return closeErr
	}
	return nil
}
