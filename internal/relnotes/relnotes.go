// SPDX-License-Identifier: MPL-2.0

// Package relnotes fetches release note bodies between a package's current
// version and the newest published release. It is best-effort enrichment:
// every failure mode yields an empty result, never an error.
package relnotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
)

// maxResponseBytes caps release-list responses (10 MB).
const maxResponseBytes = 10 << 20

type (
	// release is one entry of a provider's release list, reduced to the two
	// fields this package cares about.
	release struct {
		tag  string
		body string
	}

	// Fetcher resolves release notes from the hosting provider behind a
	// pacscript's download URL.
	Fetcher struct {
		httpClient   *http.Client
		logger       *log.Logger
		githubAPI    string
		gitlabAPI    string
		bitbucketAPI string
		githubToken  string
	}

	// FetcherOption configures a Fetcher during construction.
	FetcherOption func(*Fetcher)
)

// WithHTTPClient sets a custom HTTP client, useful for tests or timeouts.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.httpClient = c }
}

// WithLogger sets the logger used for fetch tracing.
func WithLogger(l *log.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = l }
}

// WithGitHubAPI overrides the GitHub API base URL, primarily for test servers.
func WithGitHubAPI(base string) FetcherOption {
	return func(f *Fetcher) { f.githubAPI = strings.TrimRight(base, "/") }
}

// WithGitLabAPI overrides the GitLab base URL, primarily for test servers.
func WithGitLabAPI(base string) FetcherOption {
	return func(f *Fetcher) { f.gitlabAPI = strings.TrimRight(base, "/") }
}

// WithBitbucketAPI overrides the Bitbucket API base URL, primarily for test servers.
func WithBitbucketAPI(base string) FetcherOption {
	return func(f *Fetcher) { f.bitbucketAPI = strings.TrimRight(base, "/") }
}

// WithGitHubToken sets a token for authenticated GitHub requests (higher
// rate limits). It is never sent to other hosts.
func WithGitHubToken(token string) FetcherOption {
	return func(f *Fetcher) { f.githubToken = token }
}

// NewFetcher creates a Fetcher with production defaults.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpClient:   http.DefaultClient,
		logger:       log.Default(),
		githubAPI:    "https://api.github.com",
		gitlabAPI:    "https://gitlab.com",
		bitbucketAPI: "https://api.bitbucket.org",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the bodies of every release published after currentVersion,
// keyed by release tag, in the provider's (descending-time) response order.
// An unrecognized host, an unextractable owner/repo, an HTTP failure, or an
// unmatched current version all yield an empty map.
func (f *Fetcher) Fetch(ctx context.Context, downloadURL, currentVersion string) map[string]string {
	notes := map[string]string{}

	endpoint, tagField, bodyField, ok := f.route(downloadURL)
	if !ok {
		f.logger.Debug("no release note source for url", "url", downloadURL)
		return notes
	}

	releases, err := f.listReleases(ctx, endpoint, tagField, bodyField)
	if err != nil {
		f.logger.Debug("fetching release notes failed", "endpoint", endpoint, "error", err)
		return notes
	}

	currentIndex := -1
	for i, r := range releases {
		if normalizeTag(r.tag) == currentVersion {
			currentIndex = i
			break
		}
	}
	if currentIndex == -1 {
		f.logger.Debug("current release not found in release list", "version", currentVersion)
		return notes
	}

	// Everything before the matched index is strictly newer than the
	// current release; the matched release itself is excluded.
	for _, r := range releases[:currentIndex] {
		if r.tag == "" {
			continue
		}
		notes[r.tag] = r.body
	}

	return notes
}

// route maps a download URL to its provider's release-list endpoint and JSON
// field names. The provider is detected from the first label of the URL host.
func (f *Fetcher) route(downloadURL string) (endpoint, tagField, bodyField string, ok bool) {
	u, err := url.Parse(downloadURL)
	if err != nil {
		return "", "", "", false
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	host, _, _ := strings.Cut(u.Hostname(), ".")
	switch host {
	case "github":
		if len(segments) < 2 {
			return "", "", "", false
		}
		return fmt.Sprintf("%s/repos/%s/%s/releases", f.githubAPI, segments[0], segments[1]),
			"tag_name", "body", true

	case "gitlab":
		// Two URL shapes exist: /api/v4/projects/{id}/... and /{owner}/{repo}/...
		if id, found := projectID(segments); found {
			return fmt.Sprintf("%s/api/v4/projects/%s/releases", f.gitlabAPI, id),
				"tag_name", "description", true
		}
		if len(segments) < 2 {
			return "", "", "", false
		}
		return fmt.Sprintf("%s/api/v4/projects/%s%%2F%s/releases", f.gitlabAPI, segments[0], segments[1]),
			"tag_name", "description", true

	case "bitbucket":
		if len(segments) < 2 {
			return "", "", "", false
		}
		return fmt.Sprintf("%s/2.0/repositories/%s/%s/releases", f.bitbucketAPI, segments[0], segments[1]),
			"name", "description", true
	}

	return "", "", "", false
}

// projectID extracts the numeric project id from an id-shaped GitLab URL
// (the path segment following "projects").
func projectID(segments []string) (string, bool) {
	for i, s := range segments {
		if s == "projects" && i+1 < len(segments) {
			return segments[i+1], true
		}
	}
	return "", false
}

// listReleases fetches and decodes a provider's release list, projecting each
// entry down to the provider-specific tag and body fields.
func (f *Fetcher) listReleases(ctx context.Context, endpoint, tagField, bodyField string) ([]release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.githubToken != "" && strings.HasPrefix(endpoint, f.githubAPI) {
		req.Header.Set("Authorization", "Bearer "+f.githubToken)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var raw []map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding releases: %w", err)
	}

	releases := make([]release, 0, len(raw))
	for _, entry := range raw {
		tag, _ := entry[tagField].(string)
		body, _ := entry[bodyField].(string)
		releases = append(releases, release{tag: tag, body: body})
	}
	return releases, nil
}

// normalizeTag canonicalizes a release tag for comparison against a
// pacscript version: the tag is capitalized (first rune upper, rest lower)
// and every literal "V" is removed, so "v1.2.3", "V1.2.3" and "1.2.3" all
// normalize to "1.2.3".
func normalizeTag(tag string) string {
	if tag == "" {
		return ""
	}
	capitalized := strings.ToUpper(tag[:1]) + strings.ToLower(tag[1:])
	return strings.ReplaceAll(capitalized, "V", "")
}
