// Package dataio implements the four sequenced sub-stages that turn a
// dataset identifier into a populated embedded analytical database:
// Discover (scrape a listing page for CSV links), Download (fetch them
// sequentially), Convert (CSV -> zstd Parquet via a bounded worker pool),
// and Register (Parquet -> DuckDB views, then a row-count verification).
package dataio

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/m3-mcp/m3/internal/datasets"
	m3errors "github.com/m3-mcp/m3/internal/errors"
)

// commonUserAgent mirrors a conventional desktop browser string so listing
// pages do not reject the scraper as a bot.
const commonUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// fileSuffix is the only extension Discover looks for.
const fileSuffix = ".csv.gz"

// FileRef is one discovered download: the absolute source URL and the
// local path it should land at, relative to the raw files root.
type FileRef struct {
	URL       string
	LocalPath string
}

// Discover resolves def's listing URL (and, if configured, each of its
// subdirectories) into a deduplicated, sorted list of FileRefs. A subdir
// with no matching links logs a warning and contributes nothing; Discover
// only fails outright if every subdir yields nothing.
func Discover(ctx context.Context, def datasets.Definition, logger zerolog.Logger) ([]FileRef, error) {
	if def.FileListingURL == "" {
		return nil, m3errors.Validation("dataset %s has no configured file listing URL", def.Name)
	}

	client := &http.Client{}
	scanTargets := scanTargets(def)

	seen := map[FileRef]struct{}{}
	var refs []FileRef

	for _, target := range scanTargets {
		links, err := scrapeLinks(ctx, client, target.listingURL, logger)
		if err != nil {
			logger.Error().Err(err).Str("url", target.listingURL).Msg("failed to scan listing page")
			continue
		}
		if len(links) == 0 {
			logger.Warn().Str("url", target.listingURL).Msg("no matching files found in location")
			continue
		}

		for _, link := range links {
			ref := FileRef{
				URL:       link,
				LocalPath: relativeTarget(def.FileListingURL, target.subdir, link),
			}
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
	}

	if len(refs) == 0 {
		return nil, m3errors.Initialization("no '%s' download links found for dataset %s", fileSuffix, def.Name)
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].LocalPath < refs[j].LocalPath })
	logger.Info().Int("count", len(refs)).Str("dataset", def.Name).Msg("discovered files to download")
	return refs, nil
}

type scanTarget struct {
	subdir     string
	listingURL string
}

// scanTargets expands def's subdirectory list into listing URLs. An empty
// list means scan the base listing URL directly.
func scanTargets(def datasets.Definition) []scanTarget {
	if len(def.SubdirectoriesToScan) == 0 {
		return []scanTarget{{subdir: "", listingURL: def.FileListingURL}}
	}

	targets := make([]scanTarget, 0, len(def.SubdirectoriesToScan))
	for _, subdir := range def.SubdirectoriesToScan {
		base := def.FileListingURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		listingURL := base + subdir + "/"
		targets = append(targets, scanTarget{subdir: subdir, listingURL: listingURL})
	}
	return targets
}

// scrapeLinks fetches listingURL and returns the absolute URLs of every
// anchor href ending in fileSuffix, excluding fragment/query/parent-relative
// links.
func scrapeLinks(ctx context.Context, client *http.Client, listingURL string, logger zerolog.Logger) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", commonUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, m3errors.Initialization("listing page %s returned status %d", listingURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, m3errors.Wrap(m3errors.KindInitialization, "failed to parse listing page "+listingURL, err)
	}

	var found []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		if !strings.HasSuffix(href, fileSuffix) {
			return
		}
		if strings.HasPrefix(href, "?") || strings.HasPrefix(href, "#") || strings.Contains(href, "..") {
			return
		}
		base, err := url.Parse(listingURL)
		if err != nil {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		found = append(found, base.ResolveReference(ref).String())
	})
	return found, nil
}

// relativeTarget derives the local path a discovered URL should be saved
// at, mirroring the URL's path relative to the listing root, falling back
// to subdir/basename when the URL doesn't share the base path's prefix.
func relativeTarget(baseListingURL, subdir, fileURL string) string {
	baseParsed, errBase := url.Parse(baseListingURL)
	fileParsed, errFile := url.Parse(fileURL)
	if errBase == nil && errFile == nil {
		basePath := strings.TrimSuffix(baseParsed.Path, "/")
		if strings.HasPrefix(fileParsed.Path, basePath) {
			rel := strings.TrimPrefix(fileParsed.Path, basePath)
			rel = strings.TrimPrefix(rel, "/")
			if rel != "" {
				return rel
			}
		}
	}
	name := path.Base(fileParsed.Path)
	if subdir == "" {
		return name
	}
	return path.Join(subdir, name)
}
