// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for pacup.
//
// This package implements the Cobra command hierarchy for the pacup CLI:
// the root update command that drives the parse, resolve, download, rewrite,
// install, and ship pipeline, plus shell completion.
package cmd
