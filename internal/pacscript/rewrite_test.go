// SPDX-License-Identifier: MPL-2.0

package pacscript

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

func TestApplyUpdate_RoundTripByteIdentity(t *testing.T) {
	t.Parallel()

	manifest := `# My package
pkgname="jq"
version="1.2.3"

url="https://example.com/jq-1.2.3.tar.gz"   # trailing comment preserved
hash="deadbeef"
	indented line stays as-is
`
	path := writePacscript(t, "jq.pacscript", manifest)
	p, err := Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hash := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	edited, err := p.ApplyUpdate("1.3.0", hash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, line := range edited {
		switch i {
		case p.Version.LineNumber:
			if line != `version="1.3.0"` {
				t.Errorf("version line = %q", line)
			}
		case p.HashLine:
			if line != fmt.Sprintf("hash=%q", hash) {
				t.Errorf("hash line = %q", line)
			}
		default:
			if line != p.Lines[i] {
				t.Errorf("line %d changed: %q -> %q", i, p.Lines[i], line)
			}
		}
	}

	if err := p.WriteLines(edited); err != nil {
		t.Fatalf("writing: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("re-reading: %v", err)
	}
	want := strings.Replace(manifest, `version="1.2.3"`, `version="1.3.0"`, 1)
	want = strings.Replace(want, `hash="deadbeef"`, fmt.Sprintf("hash=%q", hash), 1)
	if string(got) != want {
		t.Errorf("file content mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestApplyUpdate_MissingTargets(t *testing.T) {
	t.Parallel()

	path := writePacscript(t, "bare.pacscript", `pkgname="bare"`+"\n")
	p, err := Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := p.ApplyUpdate("1.0.0", "ff"); !errors.Is(err, ErrNoRewriteTarget) {
		t.Errorf("got %v, want ErrNoRewriteTarget", err)
	}
}
