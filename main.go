// SPDX-License-Identifier: MPL-2.0

package main

import (
	cmd "pacup-cli/cmd/pacup"
)

func main() {
	cmd.Execute()
}
