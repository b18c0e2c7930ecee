// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"pacup-cli/internal/config"
	"pacup-cli/internal/download"
	"pacup-cli/internal/pacstall"
	"pacup-cli/internal/relnotes"
	"pacup-cli/internal/repology"
	"pacup-cli/internal/ship"
)

// testUpdater wires an updater against local test servers and a fake
// pacstall binary.
func testUpdater(t *testing.T, repologyURL string) *updater {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake shell binaries are not portable to windows")
	}

	pacstallBin := filepath.Join(t.TempDir(), "pacstall")
	if err := os.WriteFile(pacstallBin, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("writing fake pacstall: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Download.Dir = t.TempDir()
	logger := log.New(io.Discard)

	return &updater{
		cfg:    cfg,
		logger: logger,
		resolver: repology.NewClient(
			repology.WithBaseURL(repologyURL),
			repology.WithLogger(logger),
		),
		notes:      relnotes.NewFetcher(relnotes.WithLogger(logger)),
		downloader: download.NewDownloader(download.WithLogger(logger)),
		installer: pacstall.NewInstaller(
			pacstall.WithBinaryPath(pacstallBin),
			pacstall.WithIO(strings.NewReader(""), io.Discard, io.Discard),
		),
		shipper:   ship.NewShipper(ship.WithBinaryPath("")),
		stdin:     strings.NewReader(""),
		stdout:    io.Discard,
		assumeYes: true,
		keep:      true,
	}
}

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	return path
}

func TestRun_UpdatesOutdatedPacscript(t *testing.T) {
	t.Parallel()

	artifact := "new release bytes"
	artifactSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "2.0.0") {
			t.Errorf("download path %q should carry the latest version", r.URL.Path)
		}
		_, _ = w.Write([]byte(artifact))
	}))
	defer artifactSrv.Close()

	repologySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"version": "2.0.0", "repo": "aur", "status": "newest"},
			{"version": "2.0.0", "repo": "debian", "status": "newest"}
		]`)
	}))
	defer repologySrv.Close()

	manifest := `pkgname="demo"
version="1.0.0"
url="` + artifactSrv.URL + `/demo-1.0.0.tar.gz"
hash="0000000000000000000000000000000000000000000000000000000000000000"
repology=("project: demo")
`
	path := writeManifest(t, t.TempDir(), "demo.pacscript", manifest)

	u := testUpdater(t, repologySrv.URL)
	if err := u.run(context.Background(), []string{path}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("re-reading manifest: %v", err)
	}

	sum := sha256.Sum256([]byte(artifact))
	wantHash := hex.EncodeToString(sum[:])

	if !strings.Contains(string(data), `version="2.0.0"`) {
		t.Errorf("manifest not updated to latest version:\n%s", data)
	}
	if !strings.Contains(string(data), fmt.Sprintf("hash=%q", wantHash)) {
		t.Errorf("manifest hash not rewritten to artifact digest:\n%s", data)
	}
	// Untracked lines survive byte-for-byte.
	if !strings.Contains(string(data), `url="`+artifactSrv.URL+`/demo-1.0.0.tar.gz"`) {
		t.Errorf("url line should be untouched:\n%s", data)
	}
}

func TestRun_PipedAnswersFeedEveryPrompt(t *testing.T) {
	t.Parallel()

	artifact := "new release bytes"
	artifactSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(artifact))
	}))
	defer artifactSrv.Close()

	repologySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"version": "2.0.0", "repo": "aur", "status": "newest"}]`)
	}))
	defer repologySrv.Close()

	manifest := `pkgname="demo"
version="1.0.0"
url="` + artifactSrv.URL + `/demo-1.0.0.tar.gz"
hash="0000000000000000000000000000000000000000000000000000000000000000"
repology=("project: demo")
`
	path := writeManifest(t, t.TempDir(), "demo.pacscript", manifest)

	// Scripted use: one line per prompt. The "Update?" and "Does it work?"
	// questions must each consume exactly one piped answer, so a yes to both
	// completes the update instead of misreading the second prompt as EOF.
	var out bytes.Buffer
	u := testUpdater(t, repologySrv.URL)
	u.assumeYes = false
	u.stdin = strings.NewReader("y\ny\n")
	u.stdout = &out

	if err := u.run(context.Background(), []string{path}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `version="2.0.0"`) {
		t.Errorf("manifest not updated with piped answers:\n%s", data)
	}

	// No hosting provider behind the artifact URL, so no notes exist.
	if !strings.Contains(out.String(), "Could not find release notes") {
		t.Error("missing release notes should be reported before the prompts")
	}
}

func TestRun_DownloadFailureExitsSeventy(t *testing.T) {
	t.Parallel()

	artifactSrv := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer artifactSrv.Close()

	repologySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"version": "2.0.0", "repo": "aur", "status": "newest"}]`)
	}))
	defer repologySrv.Close()

	manifest := `pkgname="demo"
version="1.0.0"
url="` + artifactSrv.URL + `/demo-1.0.0.tar.gz"
hash="0000000000000000000000000000000000000000000000000000000000000000"
repology=("project: demo")
`
	path := writeManifest(t, t.TempDir(), "demo.pacscript", manifest)

	u := testUpdater(t, repologySrv.URL)
	err := u.run(context.Background(), []string{path})

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != ExitCodeUpdateFailures {
		t.Fatalf("got %v, want ExitError with code %d", err, ExitCodeUpdateFailures)
	}

	// The failed manifest must be untouched.
	data, _ := os.ReadFile(path)
	if string(data) != manifest {
		t.Errorf("manifest changed despite failed download:\n%s", data)
	}
}

func TestRun_UpToDatePacscriptIsLeftAlone(t *testing.T) {
	t.Parallel()

	repologySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"version": "1.0.0", "repo": "aur", "status": "newest"}]`)
	}))
	defer repologySrv.Close()

	manifest := `pkgname="demo"
version="1.0.0"
url="https://example.com/demo-1.0.0.tar.gz"
hash="0000000000000000000000000000000000000000000000000000000000000000"
repology=("project: demo")
`
	path := writeManifest(t, t.TempDir(), "demo.pacscript", manifest)

	u := testUpdater(t, repologySrv.URL)
	if err := u.run(context.Background(), []string{path}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != manifest {
		t.Errorf("up-to-date manifest should be untouched:\n%s", data)
	}
}

func TestRun_UnresolvablePacscriptIsUnknownNotFatal(t *testing.T) {
	t.Parallel()

	repologySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer repologySrv.Close()

	manifest := `pkgname="demo"
version="not-even-semver"
url="https://example.com/demo.tar.gz"
hash="0000000000000000000000000000000000000000000000000000000000000000"
repology=("project: demo")
`
	path := writeManifest(t, t.TempDir(), "demo.pacscript", manifest)

	// A failed resolution downgrades to Unknown before the version strings
	// are ever parsed, so a garbage current version cannot crash the batch.
	u := testUpdater(t, repologySrv.URL)
	if err := u.run(context.Background(), []string{path}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
