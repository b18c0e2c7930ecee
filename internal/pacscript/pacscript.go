// SPDX-License-Identifier: MPL-2.0

// Package pacscript parses pacscript package manifests into structured
// records and rewrites their version/hash assignments in place, leaving every
// other byte of the file untouched.
package pacscript

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pacup-cli/internal/repology"
	"pacup-cli/internal/version"
)

const (
	// Suffix is the required pacscript file extension.
	Suffix = ".pacscript"

	// gitStemSuffix marks development pacscripts that track a branch instead
	// of a release and therefore cannot be version-updated.
	gitStemSuffix = "-git"
)

var (
	// ErrNotPacscript is returned for paths without the .pacscript suffix.
	ErrNotPacscript = errors.New("not a pacscript file")

	// ErrGitPacscript is returned for -git pacscripts, which have no
	// releases to update to.
	ErrGitPacscript = errors.New("git pacscripts are not supported")

	// ErrManifestRead is the sentinel wrapped by ManifestReadError.
	ErrManifestRead = errors.New("cannot read pacscript")

	// ErrNoRewriteTarget indicates an update was attempted on a pacscript
	// whose version= or hash= line was never located.
	ErrNoRewriteTarget = errors.New("pacscript has no version or hash line to rewrite")

	// pkgnameSuffixes are stripped (each once, in order) when deriving the
	// package name from the file name.
	pkgnameSuffixes = []string{"-bin", "-deb", "-app"}
)

type (
	// ManifestReadError reports that a pacscript path could not be read.
	// It wraps ErrManifestRead.
	ManifestReadError struct {
		Path string
		Err  error
	}

	// URL is the pacscript's download url field with its physical position.
	// LineNumber is -1 when the field is absent.
	URL struct {
		LineNumber int
		Value      string
	}

	// Pacscript is one parsed manifest. It is created once per input path,
	// has Version.Latest and ReleaseNotes filled in by resolution, and is
	// read-only afterwards except for the two rewritten lines at update time.
	Pacscript struct {
		// Path is the filesystem identity of the manifest.
		Path string
		// PkgName is the explicit pkgname= field, or the file-name fallback.
		PkgName string
		// Version tracks the version= field and its resolution.
		Version version.Info
		// URL tracks the url= field.
		URL URL
		// HashLine is the physical line of the hash= assignment, -1 if absent.
		HashLine int
		// Maintainer is the maintainer= field, empty if absent.
		Maintainer string
		// Filters are the repology= criteria in declaration order.
		Filters repology.Criteria
		// ReleaseNotes maps release tag to body, empty when unresolvable.
		ReleaseNotes map[string]string
		// Lines is the manifest's original line sequence, newline-split,
		// preserved verbatim for in-place patching and diffing.
		Lines []string
	}
)

// Error returns a human-readable description of the read failure.
func (e *ManifestReadError) Error() string {
	return fmt.Sprintf("reading pacscript %s: %v", e.Path, e.Err)
}

// Unwrap returns ErrManifestRead so callers can use errors.Is.
func (e *ManifestReadError) Unwrap() error { return ErrManifestRead }

// ValidatePath rejects paths this tool cannot update, before any work starts.
func ValidatePath(path string) error {
	if filepath.Ext(path) != Suffix {
		return fmt.Errorf("%w: %s", ErrNotPacscript, path)
	}
	if strings.HasSuffix(Stem(path), gitStemSuffix) {
		return fmt.Errorf("%w: %s", ErrGitPacscript, path)
	}
	return nil
}

// Stem returns the file's base name without the pacscript suffix.
func Stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Suffix)
}

// fallbackPkgName derives a package name from the file name when the manifest
// has no explicit pkgname= field.
func fallbackPkgName(path string) string {
	name := Stem(path)
	for _, suffix := range pkgnameSuffixes {
		name = strings.TrimSuffix(name, suffix)
	}
	return name
}

// versionInfoAbsent is the placeholder for a manifest without a version= field.
func versionInfoAbsent() version.Info {
	return version.Info{LineNumber: -1}
}

// ApplyUpdate returns a copy of the manifest lines with the version= line
// replaced by latest and the hash= line replaced by hashHex. All other lines
// are byte-identical to the parsed input.
func (p *Pacscript) ApplyUpdate(latest, hashHex string) ([]string, error) {
	if p.Version.LineNumber < 0 || p.Version.LineNumber >= len(p.Lines) ||
		p.HashLine < 0 || p.HashLine >= len(p.Lines) {
		return nil, fmt.Errorf("%w: %s", ErrNoRewriteTarget, p.Path)
	}

	edited := make([]string, len(p.Lines))
	copy(edited, p.Lines)
	edited[p.Version.LineNumber] = fmt.Sprintf("version=%q", latest)
	edited[p.HashLine] = fmt.Sprintf("hash=%q", hashHex)

	return edited, nil
}

// WriteLines persists the line sequence back to the pacscript's path.
func (p *Pacscript) WriteLines(lines []string) error {
	info, err := os.Stat(p.Path)
	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode()
	}
	return os.WriteFile(p.Path, []byte(strings.Join(lines, "\n")), mode)
}
