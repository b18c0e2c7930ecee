// SPDX-License-Identifier: MPL-2.0

// Package version classifies a pacscript's current version against the
// resolved latest version under semantic-version precedence.
package version

import (
	"errors"
	"fmt"

	semver "github.com/Masterminds/semver/v3"

	"pacup-cli/internal/repology"
)

// ErrUnparseable indicates a version string that is neither a failure marker
// nor valid semver reached the comparator. That is a parsing contract
// violation upstream, not a resolution failure, so callers must surface it
// rather than degrade to StatusUnknown.
var ErrUnparseable = errors.New("version string is not parseable")

type (
	// Status classifies current vs latest.
	Status int

	// Info is a pacscript's version field: where it lives in the file, what
	// it currently says, and what the aggregator resolved it to.
	Info struct {
		// LineNumber is the physical line of the version= assignment, -1 if absent.
		LineNumber int
		// Current is the version extracted from the pacscript.
		Current string
		// Latest is the aggregator resolution, filled in after parsing.
		Latest repology.Resolution
	}
)

const (
	// StatusUnknown means the latest version could not be resolved.
	StatusUnknown Status = iota
	// StatusOutdated means an upstream update is available.
	StatusOutdated
	// StatusUpdated means the pacscript matches upstream.
	StatusUpdated
	// StatusNewer means the pacscript is ahead of what upstream reports.
	StatusNewer
)

// String returns the display name of the status.
func (s Status) String() string {
	switch s {
	case StatusOutdated:
		return "Outdated"
	case StatusUpdated:
		return "Up to date"
	case StatusNewer:
		return "Newer"
	default:
		return "Unknown"
	}
}

// Status derives the classification for this version info.
func (i Info) Status() (Status, error) {
	return Classify(i.Current, i.Latest)
}

// Classify compares current against a resolution. A failed resolution is
// StatusUnknown before any parsing, so marker text is never fed to the
// semver parser. Anything else must parse as semver or the classification
// fails loudly with ErrUnparseable.
func Classify(current string, latest repology.Resolution) (Status, error) {
	latestStr, ok := latest.Version()
	if !ok {
		return StatusUnknown, nil
	}

	cur, err := semver.NewVersion(current)
	if err != nil {
		return StatusUnknown, fmt.Errorf("%w: current %q: %v", ErrUnparseable, current, err)
	}
	lat, err := semver.NewVersion(latestStr)
	if err != nil {
		return StatusUnknown, fmt.Errorf("%w: latest %q: %v", ErrUnparseable, latestStr, err)
	}

	switch {
	case cur.LessThan(lat):
		return StatusOutdated, nil
	case cur.Equal(lat):
		return StatusUpdated, nil
	default:
		return StatusNewer, nil
	}
}
