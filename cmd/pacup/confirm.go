// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// confirm asks a yes/no question and reports the answer. An empty answer or a
// read failure counts as no. When assumeYes is set the question is skipped
// entirely. The reader must be shared across all prompts of one run: a
// buffered reader reads ahead, so a throwaway reader per prompt would swallow
// the following prompt's piped answer.
func confirm(in *bufio.Reader, out io.Writer, question string, assumeYes bool) bool {
	if assumeYes {
		return true
	}

	fmt.Fprintf(out, "%s %s [y/N] ", PkgStyle.Render("::"), question)

	answer, err := in.ReadString('\n')
	if err != nil && answer == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
