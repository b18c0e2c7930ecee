// SPDX-License-Identifier: MPL-2.0

// Package download streams release artifacts to disk while computing their
// SHA-256 digest, the hash that gets written back into the pacscript.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// maxIdentityRetries bounds the re-request loop for servers that omit a
// Content-Length header on encoded responses.
const maxIdentityRetries = 3

// ErrHTTPStatus is the sentinel wrapped by StatusError.
var ErrHTTPStatus = errors.New("unexpected HTTP status")

type (
	// StatusError reports a non-2xx response for an artifact URL.
	StatusError struct {
		URL  string
		Code int
	}

	// Progress receives streaming updates: bytes written so far and the
	// expected total, with total = -1 when the server never reported one.
	Progress func(written, total int64)

	// Downloader fetches artifacts over HTTP.
	Downloader struct {
		httpClient *http.Client
		logger     *log.Logger
	}

	// Option configures a Downloader during construction.
	Option func(*Downloader)
)

// Error returns a human-readable description of the status failure.
func (e *StatusError) Error() string {
	return fmt.Sprintf("downloading %s: unexpected status %d", e.URL, e.Code)
}

// Unwrap returns ErrHTTPStatus so callers can use errors.Is.
func (e *StatusError) Unwrap() error { return ErrHTTPStatus }

// WithHTTPClient sets a custom HTTP client, useful for tests or timeouts.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) { d.httpClient = c }
}

// WithLogger sets the logger used for download tracing.
func WithLogger(l *log.Logger) Option {
	return func(d *Downloader) { d.logger = l }
}

// NewDownloader creates a Downloader with production defaults.
func NewDownloader(opts ...Option) *Downloader {
	d := &Downloader{
		httpClient: http.DefaultClient,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fetch downloads rawURL into destDir, hashing the stream incrementally, and
// returns the lowercase hex SHA-256 digest of the artifact bytes.
//
// Servers occasionally omit Content-Length on encoded responses, which only
// breaks progress reporting, not the download itself. In that case the
// response is discarded unhashed and the request retried with identity
// encoding (bounded); only the bytes of the final attempt enter the digest,
// so the hash can never see duplicate data. If no attempt yields a length,
// the last response is streamed anyway with an unknown total.
func (d *Downloader) Fetch(ctx context.Context, rawURL, destDir string, progress Progress) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating download dir: %w", err)
	}

	resp, err := d.get(ctx, rawURL, false)
	if err != nil {
		return "", err
	}

	for attempt := 0; resp.ContentLength < 0 && attempt < maxIdentityRetries; attempt++ {
		d.logger.Debug("response has no content length, retrying with identity encoding", "url", rawURL, "attempt", attempt+1)
		_ = resp.Body.Close() // nothing of this attempt was hashed

		resp, err = d.get(ctx, rawURL, true)
		if err != nil {
			return "", err
		}
	}
	defer func() { _ = resp.Body.Close() }()

	dest := filepath.Join(destDir, artifactName(rawURL))
	file, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", dest, err)
	}
	defer func() { _ = file.Close() }()

	digest := sha256.New()
	writer := io.MultiWriter(file, digest)

	total := resp.ContentLength
	var written int64
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := writer.Write(buf[:n]); writeErr != nil {
				return "", fmt.Errorf("writing %s: %w", dest, writeErr)
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("streaming %s: %w", rawURL, readErr)
		}
	}

	if err := file.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", dest, err)
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}

// get issues the artifact request. When identity is set the transport's
// transparent compression is disabled so the server has no reason to drop
// the Content-Length header.
func (d *Downloader) get(ctx context.Context, rawURL string, identity bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if identity {
		req.Header.Set("Accept-Encoding", "identity")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	return resp, nil
}

// artifactName derives the destination file name from the URL's last path
// segment.
func artifactName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || path.Base(u.Path) == "/" || path.Base(u.Path) == "." {
		return "artifact"
	}
	return path.Base(u.Path)
}
