// SPDX-License-Identifier: MPL-2.0

// Package repology resolves the latest upstream version of a package by
// querying the Repology aggregator and voting across the distribution
// repositories that track it.
package repology

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultBaseURL is the production Repology API endpoint.
	DefaultBaseURL = "https://repology.org"

	// MaxConcurrent is the process-wide ceiling on simultaneous aggregator
	// queries. Repology overloads past 11 concurrent requests.
	MaxConcurrent = 11

	// maxResponseBytes caps aggregator responses (10 MB) so a malformed or
	// hostile reply cannot exhaust memory.
	maxResponseBytes = 10 << 20
)

// denylisted names package indexes known to report stale or unreliable
// versions; their records never survive a filter step and never win the vote
// while any other record remains.
var denylisted = map[string]bool{
	"appget":       true,
	"baulk":        true,
	"chocolatey":   true,
	"cygwin":       true,
	"just-install": true,
	"scoop":        true,
	"winget":       true,
}

type (
	// Package is one aggregator record. Beyond `version` and `repo` the key
	// set is open-ended, so records stay as loose maps and filters match any
	// string-valued field.
	Package map[string]any

	// Inspector receives the filter set, the final filtrate, and the voted
	// version for display. It is a side channel only; resolution results never
	// depend on it.
	Inspector func(project string, filters Criteria, filtrate []Package, selected string)

	// Client queries the Repology project API.
	Client struct {
		httpClient *http.Client
		baseURL    string
		userAgent  string
		logger     *log.Logger
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// Version returns the record's version string, or "" when absent.
func (p Package) Version() string {
	v, _ := p["version"].(string)
	return v
}

// Repo returns the record's repository name, or "" when absent.
func (p Package) Repo() string {
	v, _ := p["repo"].(string)
	return v
}

// matches reports whether the record has key with exactly the given string value.
func (p Package) matches(key, value string) bool {
	s, ok := p[key].(string)
	return ok && s == value
}

// WithHTTPClient sets a custom HTTP client, useful for tests or timeouts.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(r *Client) { r.httpClient = c }
}

// WithBaseURL overrides the aggregator base URL, primarily for test servers.
func WithBaseURL(base string) ClientOption {
	return func(r *Client) { r.baseURL = base }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(r *Client) { r.userAgent = ua }
}

// WithLogger sets the logger used for resolution tracing.
func WithLogger(l *log.Logger) ClientOption {
	return func(r *Client) { r.logger = l }
}

// NewClient creates a Client with production defaults.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    DefaultBaseURL,
		userAgent:  "pacup/dev",
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveLatest resolves the most plausible latest version for the given
// filter criteria. A slot on sem is held for the duration of the network
// exchange and released unconditionally. Failures are data, not errors: the
// caller always receives a Resolution.
func (c *Client) ResolveLatest(ctx context.Context, criteria Criteria, sem *semaphore.Weighted, inspect Inspector) Resolution {
	if len(criteria) == 0 {
		return Failed(MarkerNoFilters)
	}
	project, ok := criteria.Get("project")
	if !ok {
		return Failed(MarkerNoProjectFilter)
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		return Failed(MarkerRequest)
	}
	defer sem.Release(1)

	c.logger.Debug("querying repology", "project", project)

	packages, res := c.fetchProject(ctx, project)
	if res != nil {
		return *res
	}
	if len(packages) == 0 {
		return Failed(MarkerNotFound)
	}

	// `project` is consumed by the query itself; `status` defaults to the
	// aggregator's notion of the newest packaging.
	remaining := criteria.Without("project").WithDefault("status", "newest")

	filtrate := narrow(packages, remaining)

	selected := mostFrequentVersion(filtrate)
	if selected == "" {
		return Failed(MarkerNotFound)
	}

	c.logger.Debug("selected version", "project", project, "version", selected, "candidates", len(filtrate))

	if inspect != nil {
		inspect(project, remaining, filtrate, selected)
	}

	return Resolved(selected)
}

// fetchProject performs the aggregator HTTP exchange. It returns either the
// decoded package list or a failed Resolution describing why the exchange
// could not produce one.
func (c *Client) fetchProject(ctx context.Context, project string) ([]Package, *Resolution) {
	reqURL := fmt.Sprintf("%s/api/v1/project/%s", c.baseURL, url.PathEscape(project))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		res := Failed(MarkerRequest)
		return nil, &res
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("repology request failed", "project", project, "error", err)
		res := Failed(MarkerRequest)
		return nil, &res
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("repology status error", "project", project, "status", resp.StatusCode)
		res := Failed(MarkerHTTPStatus)
		return nil, &res
	}

	var packages []Package
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&packages); err != nil {
		c.logger.Debug("repology decode failed", "project", project, "error", err)
		res := Failed(MarkerRequest)
		return nil, &res
	}

	return packages, nil
}

// narrow applies the filters in insertion order. A filter step only replaces
// the working set when its result is non-empty, so one overly strict filter
// can never zero out the candidate set. Denylisted repositories are dropped
// up front under the same non-empty rule, and never survive a filter step.
func narrow(packages []Package, filters Criteria) []Package {
	working := packages

	if kept := withoutDenylisted(working); len(kept) > 0 {
		working = kept
	}

	for _, f := range filters {
		var subset []Package
		for _, p := range working {
			if p.matches(f.Key, f.Value) && !denylisted[p.Repo()] {
				subset = append(subset, p)
			}
		}
		if len(subset) > 0 {
			working = subset
		}
	}

	return working
}

// withoutDenylisted returns the records whose repo is not denylisted.
func withoutDenylisted(packages []Package) []Package {
	var kept []Package
	for _, p := range packages {
		if !denylisted[p.Repo()] {
			kept = append(kept, p)
		}
	}
	return kept
}

// mostFrequentVersion picks the most frequent version string among the
// records, breaking ties by first encounter so the result is stable with
// respect to the aggregator's response order. Records without a version
// string do not vote.
func mostFrequentVersion(packages []Package) string {
	counts := make(map[string]int, len(packages))
	var order []string

	for _, p := range packages {
		v := p.Version()
		if v == "" {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	selected := ""
	best := 0
	for _, v := range order {
		if counts[v] > best {
			selected = v
			best = counts[v]
		}
	}

	return selected
}
