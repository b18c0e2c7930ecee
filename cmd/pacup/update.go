// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"pacup-cli/internal/config"
	"pacup-cli/internal/download"
	"pacup-cli/internal/pacscript"
	"pacup-cli/internal/pacstall"
	"pacup-cli/internal/relnotes"
	"pacup-cli/internal/repology"
	"pacup-cli/internal/ship"
	"pacup-cli/internal/version"
)

type (
	// updateResult is the per-manifest outcome of the parse+resolve stage.
	updateResult struct {
		path      string
		pacscript *pacscript.Pacscript
		status    version.Status

		// repologyView is the rendered candidate table, filled in only
		// with --show-repology.
		repologyView string

		// parseErr records a manifest that could not be parsed; the batch
		// continues without it.
		parseErr error

		// classifyErr records a version string that is neither a failure
		// marker nor semver. That is a contract violation and aborts the run.
		classifyErr error
	}

	// updateFailure is one entry of the failure map shown in the summary.
	updateFailure struct {
		result *updateResult
		reason string
	}

	// updater drives the whole update pipeline for a batch of pacscripts.
	updater struct {
		cfg    *config.Config
		logger *log.Logger

		resolver   *repology.Client
		notes      *relnotes.Fetcher
		downloader *download.Downloader
		installer  *pacstall.Installer
		shipper    *ship.Shipper

		stdin  io.Reader
		stdout io.Writer
		// input wraps stdin exactly once; see confirm for why sharing matters.
		input *bufio.Reader

		showRepology bool
		assumeYes    bool
		keep         bool
		shipChanges  bool
	}
)

func (f *updateFailure) stem() string {
	return pacscript.Stem(f.result.path)
}

// confirm prompts through the updater's single buffered reader.
func (u *updater) confirm(question string) bool {
	if u.input == nil {
		u.input = bufio.NewReader(u.stdin)
	}
	return confirm(u.input, u.stdout, question, u.assumeYes)
}

// newUpdater wires the pipeline collaborators from the resolved configuration.
func newUpdater(cfg *config.Config, logger *log.Logger) *updater {
	httpClient := &http.Client{
		Timeout: time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
	}

	return &updater{
		cfg:    cfg,
		logger: logger,
		resolver: repology.NewClient(
			repology.WithHTTPClient(httpClient),
			repology.WithBaseURL(cfg.Repology.BaseURL),
			repology.WithUserAgent("pacup/"+Version),
			repology.WithLogger(logger),
		),
		notes: relnotes.NewFetcher(
			relnotes.WithHTTPClient(httpClient),
			relnotes.WithGitHubToken(cfg.GitHubToken),
			relnotes.WithLogger(logger),
		),
		downloader: download.NewDownloader(
			download.WithHTTPClient(httpClient),
			download.WithLogger(logger),
		),
		installer: pacstall.NewInstaller(pacstall.WithLogger(logger)),
		shipper:   ship.NewShipper(ship.WithLogger(logger)),
		stdin:     os.Stdin,
		stdout:    os.Stdout,
	}
}

// run executes the pipeline: resolve all manifests concurrently, display the
// status buckets, then walk the outdated ones through download, rewrite,
// install, and ship. Per-manifest failures are collected, never fatal; only a
// classification contract violation aborts the batch.
func (u *updater) run(ctx context.Context, paths []string) error {
	results := u.resolveAll(ctx, paths)

	for _, r := range results {
		if r.classifyErr != nil {
			return r.classifyErr
		}
	}

	u.display(results)

	var succeeded []*updateResult
	var failed []*updateFailure

	for _, r := range results {
		if r.parseErr != nil {
			u.logger.Warn("skipping unparseable pacscript", "path", r.path, "error", r.parseErr)
			failed = append(failed, &updateFailure{result: r, reason: r.parseErr.Error()})
			continue
		}
		if r.status != version.StatusOutdated {
			continue
		}
		u.updateOne(ctx, r, &succeeded, &failed)
	}

	if out := renderSummary(succeeded, failed); out != "" {
		fmt.Fprint(u.stdout, out)
	}

	if len(failed) > 0 {
		return &ExitError{Code: ExitCodeUpdateFailures}
	}
	return nil
}

// resolveAll parses, resolves, and classifies every manifest concurrently.
// The semaphore bounds aggregator traffic; parsing itself is unbounded. The
// returned slice preserves input order.
func (u *updater) resolveAll(ctx context.Context, paths []string) []*updateResult {
	results := make([]*updateResult, len(paths))
	sem := semaphore.NewWeighted(int64(u.cfg.Repology.MaxConcurrent))

	var g errgroup.Group
	for i, path := range paths {
		results[i] = &updateResult{path: path}
		r := results[i]

		g.Go(func() error {
			p, err := pacscript.Parse(ctx, path, pacscript.WithLogger(u.logger))
			if err != nil {
				r.parseErr = err
				return nil
			}
			r.pacscript = p

			var inspect repology.Inspector
			if u.showRepology {
				inspect = func(project string, filters repology.Criteria, filtrate []repology.Package, selected string) {
					r.repologyView = renderRepologyView(project, filters, filtrate, selected)
				}
			}

			p.Version.Latest = u.resolver.ResolveLatest(ctx, p.Filters, sem, inspect)

			status, err := p.Version.Status()
			if err != nil {
				r.classifyErr = err
				return nil
			}
			r.status = status

			if status == version.StatusOutdated && p.URL.Value != "" {
				p.ReleaseNotes = u.notes.Fetch(ctx, p.URL.Value, p.Version.Current)
			}
			return nil
		})
	}
	_ = g.Wait() // goroutines report through results, never through errors

	return results
}

// display renders the status buckets and any --show-repology views.
func (u *updater) display(results []*updateResult) {
	buckets := map[version.Status][]*updateResult{}
	for _, r := range results {
		if r.pacscript == nil {
			continue
		}
		buckets[r.status] = append(buckets[r.status], r)
	}

	for _, status := range []version.Status{
		version.StatusOutdated,
		version.StatusUpdated,
		version.StatusNewer,
		version.StatusUnknown,
	} {
		if out := renderStatusTable(status, buckets[status]); out != "" {
			fmt.Fprint(u.stdout, out)
		}
	}

	for _, r := range results {
		if r.repologyView != "" {
			fmt.Fprint(u.stdout, r.repologyView)
		}
	}
}

// updateOne walks a single outdated manifest through the update steps. Every
// failure is recorded with a reason and ends this manifest's update; the
// caller moves on to the next one.
func (u *updater) updateOne(ctx context.Context, r *updateResult, succeeded *[]*updateResult, failed *[]*updateFailure) {
	p := r.pacscript
	latest, _ := p.Version.Latest.Version()
	stem := pacscript.Stem(p.Path)

	fail := func(reason string) {
		fmt.Fprintln(u.stdout, ErrorStyle.Render("   ❌ ")+reason)
		*failed = append(*failed, &updateFailure{result: r, reason: reason})
	}

	if len(p.ReleaseNotes) == 0 {
		fmt.Fprintln(u.stdout, WarningStyle.Render("Could not find release notes"))
	} else if u.confirm(fmt.Sprintf("Do you want to see the release notes for %s?", p.PkgName)) {
		fmt.Fprint(u.stdout, renderReleaseNotes(p.ReleaseNotes))
	}

	question := fmt.Sprintf("Update %s from %s to %s?", p.PkgName, p.Version.Current, latest)
	if !u.confirm(question) {
		u.logger.Info("update declined", "pacscript", stem)
		return
	}

	if p.URL.Value == "" {
		fail("Pacscript has no url field to download from")
		return
	}

	downloadURL := strings.ReplaceAll(p.URL.Value, p.Version.Current, latest)
	fmt.Fprintln(u.stdout, SubtitleStyle.Render("=> downloading "+downloadURL))

	hash, err := u.downloader.Fetch(ctx, downloadURL, u.cfg.Download.Dir, nil)
	if !u.keep {
		defer func() { _ = os.RemoveAll(u.cfg.Download.Dir) }()
	}
	if err != nil {
		u.logger.Warn("download failed", "pacscript", stem, "error", err)
		fail("Failed to download package")
		return
	}

	edited, err := p.ApplyUpdate(latest, hash)
	if err != nil {
		fail(err.Error())
		return
	}

	fmt.Fprint(u.stdout, renderDiff(p, edited))

	if err := p.WriteLines(edited); err != nil {
		u.logger.Warn("writing pacscript failed", "pacscript", stem, "error", err)
		fail("Failed to write the updated pacscript")
		return
	}

	fmt.Fprintln(u.stdout, PkgStyle.Render("=> ")+"Installing pacscript using pacstall")
	if err := u.installer.Install(ctx, stem); err != nil {
		u.logger.Warn("install failed", "pacscript", stem, "error", err)
		fail("Installation using pacstall failed")
		return
	}

	if !u.confirm(fmt.Sprintf("Does %s work?", p.PkgName)) {
		fail(p.PkgName + " doesn't work")
		return
	}

	if u.shipChanges {
		if err := u.shipper.Ship(ctx, p.Path, p.PkgName, p.Version.Current, latest); err != nil {
			u.logger.Warn("ship failed", "pacscript", stem, "error", err)
			fail("Failed to ship the update")
			return
		}
	}

	fmt.Fprintln(u.stdout, SuccessStyle.Render("✓ ")+"Finished updating "+PkgStyle.Render(stem))
	*succeeded = append(*succeeded, r)
}
