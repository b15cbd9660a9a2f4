package dataio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestDownload_WritesEveryFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("col_a,col_b\n1,2\n"))
	}))
	defer srv.Close()

	root := t.TempDir()
	refs := []FileRef{
		{URL: srv.URL + "/hosp/a.csv.gz", LocalPath: "hosp/a.csv.gz"},
		{URL: srv.URL + "/icu/b.csv.gz", LocalPath: "icu/b.csv.gz"},
	}

	if err := Download(context.Background(), refs, root, zerolog.Nop()); err != nil {
		t.Fatalf("Download: %v", err)
	}

	for _, ref := range refs {
		path := filepath.Join(root, filepath.FromSlash(ref.LocalPath))
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("expected %s to exist: %v", path, err)
		}
		if len(data) == 0 {
			t.Errorf("expected non-empty file at %s", path)
		}
	}
}

func TestDownload_AbortsBatchOnFirstFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.csv.gz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	root := t.TempDir()
	refs := []FileRef{
		{URL: srv.URL + "/missing.csv.gz", LocalPath: "missing.csv.gz"},
		{URL: srv.URL + "/ok.csv.gz", LocalPath: "ok.csv.gz"},
	}

	if err := Download(context.Background(), refs, root, zerolog.Nop()); err == nil {
		t.Fatal("expected a 404 to fail the whole batch")
	}

	if _, err := os.Stat(filepath.Join(root, "missing.csv.gz")); !os.IsNotExist(err) {
		t.Error("expected partial/failed file to not exist on disk")
	}
	if _, err := os.Stat(filepath.Join(root, "ok.csv.gz")); !os.IsNotExist(err) {
		t.Error("expected the batch to stop before downloading the second file")
	}
}
