// SPDX-License-Identifier: MPL-2.0

// Package shell evaluates variable expansions against a pacscript's source
// text using an embedded mvdan/sh interpreter. It is not a general shell:
// external commands are neutralized, and only the interpreter's variable and
// array state is of interest to callers.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ErrEvaluation is the sentinel wrapped by EvaluationError, for errors.Is chains.
var ErrEvaluation = errors.New("shell evaluation failed")

type (
	// EvaluationError reports that the embedded interpreter could not source
	// the manifest or run a query. It wraps ErrEvaluation.
	EvaluationError struct {
		Expr string // the offending source or query snippet
		Err  error
	}

	// Evaluator holds a shell interpreter that has sourced one manifest's
	// text, so prior variable and array assignments are visible to queries.
	// An Evaluator is owned by a single parse task and must not be shared
	// across goroutines.
	Evaluator struct {
		parser *syntax.Parser
		runner *interp.Runner
		stdout *bytes.Buffer
	}
)

// Error returns a human-readable description of the evaluation failure.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating %q: %v", e.Expr, e.Err)
}

// Unwrap returns ErrEvaluation so callers can use errors.Is.
func (e *EvaluationError) Unwrap() error { return ErrEvaluation }

// NewEvaluator parses and sources the manifest text inside a fresh
// interpreter. External commands are replaced with no-ops so sourcing cannot
// touch the host system; only assignments take effect.
func NewEvaluator(ctx context.Context, source string) (*Evaluator, error) {
	parser := syntax.NewParser()
	prog, err := parser.Parse(strings.NewReader(source), "pacscript")
	if err != nil {
		return nil, &EvaluationError{Expr: "source", Err: err}
	}

	stdout := &bytes.Buffer{}
	runner, err := interp.New(
		interp.StdIO(nil, stdout, io.Discard),
		interp.Env(expand.ListEnviron()),
		interp.ExecHandlers(neutralizeExec),
		interp.OpenHandler(neutralizeOpen),
	)
	if err != nil {
		return nil, &EvaluationError{Expr: "source", Err: err}
	}

	ev := &Evaluator{parser: parser, runner: runner, stdout: stdout}
	if err := ev.run(ctx, prog); err != nil {
		return nil, &EvaluationError{Expr: "source", Err: err}
	}
	stdout.Reset()

	return ev, nil
}

// Query runs a shell snippet against the sourced manifest state and returns
// its trimmed stdout. Callers must treat an error as unresolved, never as an
// empty value.
func (ev *Evaluator) Query(ctx context.Context, command string) (string, error) {
	prog, err := ev.parser.Parse(strings.NewReader(command), "query")
	if err != nil {
		return "", &EvaluationError{Expr: command, Err: err}
	}

	ev.stdout.Reset()
	if err := ev.run(ctx, prog); err != nil {
		return "", &EvaluationError{Expr: command, Err: err}
	}

	return strings.TrimSpace(ev.stdout.String()), nil
}

// Var expands a single variable, e.g. Var(ctx, "pkgname") for ${pkgname}.
func (ev *Evaluator) Var(ctx context.Context, name string) (string, error) {
	return ev.Query(ctx, fmt.Sprintf("echo ${%s}", name))
}

// ArrayLines expands an array variable to one line per element.
func (ev *Evaluator) ArrayLines(ctx context.Context, name string) (string, error) {
	return ev.Query(ctx, fmt.Sprintf(`for item in "${%s[@]}"; do echo "${item}"; done`, name))
}

// Close drops the interpreter state. The Evaluator must not be used afterwards.
func (ev *Evaluator) Close() {
	ev.runner.Reset()
	ev.stdout.Reset()
}

// run executes a parsed program, treating a plain non-zero exit status as
// success: manifests may invoke commands whose (neutralized) result feeds a
// conditional, and that must not poison variable extraction.
func (ev *Evaluator) run(ctx context.Context, prog *syntax.File) error {
	err := ev.runner.Run(ctx, prog)
	if err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return nil
		}
		return err
	}
	return nil
}

// neutralizeExec pretends every external command succeeded without running it.
// Sourcing a manifest must never have observable side effects on the host.
func neutralizeExec(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		return nil
	}
}

// neutralizeOpen backs every file open, including redirects, with an
// in-memory sink so sourcing cannot read or write host files.
func neutralizeOpen(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	return discardFile{}, nil
}

// discardFile reads as empty and swallows writes.
type discardFile struct{}

func (discardFile) Read([]byte) (int, error)    { return 0, io.EOF }
func (discardFile) Write(p []byte) (int, error) { return len(p), nil }
func (discardFile) Close() error                { return nil }
