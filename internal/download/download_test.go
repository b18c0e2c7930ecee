// SPDX-License-Identifier: MPL-2.0

package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func TestFetch_HashAndFileContent(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("pacscript artifact bytes\n", 1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(content))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewDownloader()
	got, err := d.Fetch(context.Background(), srv.URL+"/pkg/tool-1.0.deb", dir, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sum := sha256.Sum256([]byte(content))
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Errorf("digest = %q, want %q", got, want)
	}

	data, err := os.ReadFile(filepath.Join(dir, "tool-1.0.deb"))
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if string(data) != content {
		t.Error("artifact bytes differ from served content")
	}
}

func TestFetch_MissingContentLengthRetriesWithIdentity(t *testing.T) {
	t.Parallel()

	content := "artifact body"
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		if r.Header.Get("Accept-Encoding") == "identity" {
			// Retry path: length known, body served normally.
			_, _ = w.Write([]byte(content))
			return
		}
		// First attempt: flush before writing to force a chunked response
		// without a Content-Length header.
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte(content))
	}))
	defer srv.Close()

	var lastTotal int64 = -2
	d := NewDownloader()
	got, err := d.Fetch(context.Background(), srv.URL+"/artifact.bin", t.TempDir(), func(written, total int64) {
		lastTotal = total
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := atomic.LoadInt64(&requests); n != 2 {
		t.Errorf("request count = %d, want 2 (original + identity retry)", n)
	}

	// The digest must cover exactly one copy of the body.
	sum := sha256.Sum256([]byte(content))
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Errorf("digest = %q, want %q", got, want)
	}

	if lastTotal != int64(len(content)) {
		t.Errorf("progress total = %d, want %d", lastTotal, len(content))
	}
}

func TestFetch_PersistentlyMissingLengthStillDownloads(t *testing.T) {
	t.Parallel()

	content := "no length ever"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte(content))
	}))
	defer srv.Close()

	var sawUnknownTotal bool
	d := NewDownloader()
	got, err := d.Fetch(context.Background(), srv.URL+"/artifact.bin", t.TempDir(), func(written, total int64) {
		if total < 0 {
			sawUnknownTotal = true
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sum := sha256.Sum256([]byte(content))
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Errorf("digest = %q, want %q", got, want)
	}
	if !sawUnknownTotal {
		t.Error("progress should report an unknown total on the degraded path")
	}
}

func TestFetch_HTTPStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d := NewDownloader()
	_, err := d.Fetch(context.Background(), srv.URL+"/gone.deb", t.TempDir(), nil)
	if !errors.Is(err, ErrHTTPStatus) {
		t.Errorf("got %v, want ErrHTTPStatus", err)
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Errorf("got %v, want StatusError with 404", err)
	}
}
