// SPDX-License-Identifier: MPL-2.0

package pacscript

import (
	"context"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"pacup-cli/internal/repology"
	"pacup-cli/internal/shell"
)

// filterSeparator splits a repology array element into key and value.
const filterSeparator = ": "

type (
	// ParseOption configures a parse run.
	ParseOption func(*parseConfig)

	parseConfig struct {
		logger *log.Logger
	}
)

// WithLogger sets the logger used for parse tracing and filter-line warnings.
func WithLogger(l *log.Logger) ParseOption {
	return func(c *parseConfig) { c.logger = l }
}

// Parse reads and extracts one pacscript. It makes exactly one pass over the
// lines; field order in the file does not matter, but the recorded version=
// and hash= line numbers always reflect physical position. Lines whose value
// contains `$` or `\` are resolved through the shell evaluator; plain
// literals never touch it.
func Parse(ctx context.Context, path string, opts ...ParseOption) (*Pacscript, error) {
	cfg := parseConfig{logger: log.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ManifestReadError{Path: path, Err: err}
	}

	cfg.logger.Debug("parsing pacscript", "path", path)

	p := &Pacscript{
		Path:         path,
		PkgName:      fallbackPkgName(path),
		Version:      versionInfoAbsent(),
		URL:          URL{LineNumber: -1},
		HashLine:     -1,
		ReleaseNotes: map[string]string{},
		Lines:        strings.Split(string(data), "\n"),
	}

	// The evaluator is created lazily: a manifest made entirely of literal
	// assignments never pays for sourcing.
	var ev *shell.Evaluator
	evaluator := func() (*shell.Evaluator, error) {
		if ev == nil {
			created, evalErr := shell.NewEvaluator(ctx, string(data))
			if evalErr != nil {
				return nil, evalErr
			}
			ev = created
		}
		return ev, nil
	}
	defer func() {
		if ev != nil {
			ev.Close()
		}
	}()

	for lineNumber, raw := range p.Lines {
		line := strings.TrimSpace(raw)

		switch {
		case strings.HasPrefix(line, "pkgname="):
			p.PkgName, err = fieldValue(ctx, line, "pkgname", evaluator)
			if err != nil {
				return nil, err
			}

		case strings.HasPrefix(line, "version="):
			current, err := fieldValue(ctx, line, "version", evaluator)
			if err != nil {
				return nil, err
			}
			p.Version.LineNumber = lineNumber
			p.Version.Current = current

		case strings.HasPrefix(line, "url="):
			value, err := fieldValue(ctx, line, "url", evaluator)
			if err != nil {
				return nil, err
			}
			p.URL = URL{LineNumber: lineNumber, Value: value}

		case strings.HasPrefix(line, "hash="):
			p.HashLine = lineNumber

		case strings.HasPrefix(line, "maintainer="):
			p.Maintainer, err = fieldValue(ctx, line, "maintainer", evaluator)
			if err != nil {
				return nil, err
			}

		case strings.HasPrefix(line, "repology="):
			e, err := evaluator()
			if err != nil {
				return nil, err
			}
			output, err := e.ArrayLines(ctx, "repology")
			if err != nil {
				return nil, err
			}
			p.Filters = parseFilters(output, path, cfg.logger)
		}
	}

	return p, nil
}

// fieldValue resolves a single matched field line. A value containing `$` or
// `\` is a shell expression and goes through the evaluator; anything else is
// a literal and is stripped of its prefix and surrounding quotes directly.
func fieldValue(ctx context.Context, line, name string, evaluator func() (*shell.Evaluator, error)) (string, error) {
	if !strings.ContainsAny(line, "$\\") {
		return strings.Trim(strings.TrimPrefix(line, name+"="), `"`), nil
	}

	ev, err := evaluator()
	if err != nil {
		return "", err
	}
	return ev.Var(ctx, name)
}

// parseFilters splits the evaluated repology array output into ordered
// criteria. A line that does not split into exactly key and value stops the
// scan: the filters parsed so far are kept, the failure is logged, and the
// manifest parse carries on.
func parseFilters(output, path string, logger *log.Logger) repology.Criteria {
	var criteria repology.Criteria
	if output == "" {
		return criteria
	}

	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(line, filterSeparator)
		if !ok || key == "" {
			logger.Error("failed to parse repology filters", "pacscript", Stem(path), "line", line)
			break
		}
		criteria = append(criteria, repology.Filter{Key: key, Value: value})
	}

	return criteria
}
