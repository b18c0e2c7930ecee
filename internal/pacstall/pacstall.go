// SPDX-License-Identifier: MPL-2.0

// Package pacstall hands an updated pacscript to the pacstall CLI for a local
// install, wiring the child process to the user's terminal so its prompts
// work.
package pacstall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/charmbracelet/log"
)

// ErrNotAvailable is returned when no pacstall binary can be found on PATH.
var ErrNotAvailable = errors.New("pacstall binary not found")

type (
	// Installer runs pacstall installs for updated packages.
	Installer struct {
		binaryPath string
		stdin      io.Reader
		stdout     io.Writer
		stderr     io.Writer
		logger     *log.Logger
	}

	// InstallerOption configures an Installer during construction.
	InstallerOption func(*Installer)
)

// WithBinaryPath overrides the pacstall binary path, primarily for tests.
func WithBinaryPath(path string) InstallerOption {
	return func(i *Installer) { i.binaryPath = path }
}

// WithIO redirects the child process streams away from the terminal.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) InstallerOption {
	return func(i *Installer) {
		i.stdin = stdin
		i.stdout = stdout
		i.stderr = stderr
	}
}

// WithLogger sets the logger used for install tracing.
func WithLogger(l *log.Logger) InstallerOption {
	return func(i *Installer) { i.logger = l }
}

// NewInstaller creates an Installer bound to the pacstall binary on PATH.
func NewInstaller(opts ...InstallerOption) *Installer {
	path, _ := exec.LookPath("pacstall")
	i := &Installer{
		binaryPath: path,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Available reports whether a pacstall binary was found.
func (i *Installer) Available() bool {
	return i.binaryPath != ""
}

// Install installs the package whose pacscript lives in the current
// directory, by stem (file name without the .pacscript suffix). The child
// process inherits the configured streams so pacstall can prompt the user.
func (i *Installer) Install(ctx context.Context, stem string) error {
	if !i.Available() {
		return ErrNotAvailable
	}

	i.logger.Debug("installing package", "stem", stem, "binary", i.binaryPath)

	// -I installs, -l points pacstall at the local pacscript.
	cmd := exec.CommandContext(ctx, i.binaryPath, "-Il", stem)
	cmd.Stdin = i.stdin
	cmd.Stdout = i.stdout
	cmd.Stderr = i.stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pacstall install %s: %w", stem, err)
	}
	return nil
}
