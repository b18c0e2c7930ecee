// SPDX-License-Identifier: MPL-2.0

// Package ship commits an updated pacscript on a dedicated branch so the
// change is ready to push as a pull request.
package ship

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrNotAvailable is returned when no git binary can be found on PATH.
var ErrNotAvailable = errors.New("git binary not found")

type (
	// Shipper stages and commits pacscript updates with git.
	Shipper struct {
		binaryPath string
		stdout     io.Writer
		stderr     io.Writer
		logger     *log.Logger
	}

	// ShipperOption configures a Shipper during construction.
	ShipperOption func(*Shipper)
)

// WithBinaryPath overrides the git binary path, primarily for tests.
func WithBinaryPath(path string) ShipperOption {
	return func(s *Shipper) { s.binaryPath = path }
}

// WithIO redirects git's output streams away from the terminal.
func WithIO(stdout, stderr io.Writer) ShipperOption {
	return func(s *Shipper) {
		s.stdout = stdout
		s.stderr = stderr
	}
}

// WithLogger sets the logger used for ship tracing.
func WithLogger(l *log.Logger) ShipperOption {
	return func(s *Shipper) { s.logger = l }
}

// NewShipper creates a Shipper bound to the git binary on PATH.
func NewShipper(opts ...ShipperOption) *Shipper {
	path, _ := exec.LookPath("git")
	s := &Shipper{
		binaryPath: path,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Available reports whether a git binary was found.
func (s *Shipper) Available() bool {
	return s.binaryPath != ""
}

// BranchName returns the ship branch for a package.
func BranchName(pkgName string) string {
	return "ship-" + pkgName
}

// CommitMessage returns the conventional update commit message.
func CommitMessage(pkgName, current, latest string) string {
	return fmt.Sprintf("upd(%s): `%s` -> `%s`", pkgName, current, latest)
}

// Ship checks out a ship-<pkgname> branch in the pacscript's repository,
// stages the pacscript, and commits it with the conventional update message.
func (s *Shipper) Ship(ctx context.Context, pacscriptPath, pkgName, current, latest string) error {
	if !s.Available() {
		return ErrNotAvailable
	}

	repoDir := filepath.Dir(pacscriptPath)
	branch := BranchName(pkgName)

	s.logger.Debug("shipping update", "pacscript", pacscriptPath, "branch", branch)

	if err := s.run(ctx, repoDir, "checkout", "-b", branch); err != nil {
		// The branch may survive a previous aborted run.
		if switchErr := s.run(ctx, repoDir, "checkout", branch); switchErr != nil {
			return err
		}
	}

	if err := s.run(ctx, repoDir, "add", filepath.Base(pacscriptPath)); err != nil {
		return err
	}

	if err := s.run(ctx, repoDir, "commit", "-m", CommitMessage(pkgName, current, latest)); err != nil {
		return err
	}

	if s.hasRemote(ctx, repoDir) {
		return s.run(ctx, repoDir, "push", "-u", "origin", branch)
	}
	return nil
}

// hasRemote reports whether the repository has any remote configured.
func (s *Shipper) hasRemote(ctx context.Context, dir string) bool {
	cmd := exec.CommandContext(ctx, s.binaryPath, "remote")
	cmd.Dir = dir
	out, err := cmd.Output()
	return err == nil && len(strings.TrimSpace(string(out))) > 0
}

// run executes a git subcommand inside dir.
func (s *Shipper) run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, s.binaryPath, args...)
	cmd.Dir = dir
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return nil
}
