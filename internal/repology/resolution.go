// SPDX-License-Identifier: MPL-2.0

package repology

// Marker is a closed enumeration of resolution failure reasons. Markers are
// display strings, never ordered or parsed as versions.
type Marker string

const (
	// MarkerNotFound indicates the aggregator knows no packages for the project.
	MarkerNotFound Marker = "Not found on repology"

	// MarkerNoProjectFilter indicates the pacscript declared filters but no
	// `project` key, so no query can be issued.
	MarkerNoProjectFilter Marker = "No project filter found in the pacscript"

	// MarkerNoFilters indicates the pacscript declared no repology filters at all.
	MarkerNoFilters Marker = "No repology filters found in the pacscript"

	// MarkerHTTPStatus indicates the aggregator answered with a non-2xx status.
	MarkerHTTPStatus Marker = "HTTP status error"

	// MarkerRequest indicates a network-level failure talking to the aggregator.
	MarkerRequest Marker = "Request error"
)

// Resolution is the outcome of a latest-version lookup: either a resolved
// version string or a failure marker, never both. The zero value is a failed
// resolution with an empty marker and must not be constructed directly.
type Resolution struct {
	version string
	marker  Marker
}

// Resolved wraps a successfully voted version string.
func Resolved(version string) Resolution {
	return Resolution{version: version}
}

// Failed wraps a resolution failure reason.
func Failed(marker Marker) Resolution {
	return Resolution{marker: marker}
}

// Version returns the resolved version and true, or "" and false when the
// resolution failed.
func (r Resolution) Version() (string, bool) {
	if r.marker != "" {
		return "", false
	}
	return r.version, true
}

// Failed reports whether the resolution carries a failure marker.
func (r Resolution) Failed() bool { return r.marker != "" }

// Marker returns the failure reason, or "" for a successful resolution.
func (r Resolution) Marker() Marker { return r.marker }

// String returns the version for successful resolutions and the marker text
// otherwise, for display in status tables.
func (r Resolution) String() string {
	if r.marker != "" {
		return string(r.marker)
	}
	return r.version
}
