// SPDX-License-Identifier: MPL-2.0

// Command scriptrun runs Python scripts as JSON-in, JSON-out functions.
package main

import cmd "github.com/invowk/scriptrun/cmd/scriptrun"

func main() {
	cmd.Execute()
}
