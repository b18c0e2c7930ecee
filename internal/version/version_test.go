// SPDX-License-Identifier: MPL-2.0

package version

import (
	"errors"
	"testing"

	"pacup-cli/internal/repology"
)

func TestClassify_Totality(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		current string
		latest  string
		want    Status
	}{
		{"outdated", "1.2.3", "1.3.0", StatusOutdated},
		{"updated", "1.2.3", "1.2.3", StatusUpdated},
		{"newer", "2.0.0", "1.9.9", StatusNewer},
		{"two segment", "1.6", "1.7", StatusOutdated},
		{"prerelease ordering", "1.0.0-rc.1", "1.0.0", StatusOutdated},
		{"prerelease equal", "1.0.0-beta.2", "1.0.0-beta.2", StatusUpdated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Classify(tt.current, repology.Resolved(tt.latest))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify(%q, %q) = %v, want %v", tt.current, tt.latest, got, tt.want)
			}
		})
	}
}

func TestClassify_FailedResolutionIsUnknown(t *testing.T) {
	t.Parallel()

	markers := []repology.Marker{
		repology.MarkerNotFound,
		repology.MarkerNoProjectFilter,
		repology.MarkerNoFilters,
		repology.MarkerHTTPStatus,
		repology.MarkerRequest,
	}

	for _, m := range markers {
		// Current is deliberately garbage: a failed resolution must win
		// before any parsing happens.
		got, err := Classify("not-a-version", repology.Failed(m))
		if err != nil {
			t.Fatalf("marker %q: unexpected error: %v", m, err)
		}
		if got != StatusUnknown {
			t.Errorf("marker %q: got %v, want StatusUnknown", m, got)
		}
	}
}

func TestClassify_UnparseableFailsLoudly(t *testing.T) {
	t.Parallel()

	if _, err := Classify("garbage", repology.Resolved("1.0.0")); !errors.Is(err, ErrUnparseable) {
		t.Errorf("unparseable current: got %v, want ErrUnparseable", err)
	}
	if _, err := Classify("1.0.0", repology.Resolved("garbage")); !errors.Is(err, ErrUnparseable) {
		t.Errorf("unparseable latest: got %v, want ErrUnparseable", err)
	}
}

func TestStatus_String(t *testing.T) {
	t.Parallel()

	if got := StatusOutdated.String(); got != "Outdated" {
		t.Errorf("got %q", got)
	}
	if got := Status(99).String(); got != "Unknown" {
		t.Errorf("out-of-range status: got %q, want Unknown", got)
	}
}
