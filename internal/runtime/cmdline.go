// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// CommandLine renders argv as a single bash-quoted line for logs and dry runs.
// It is never fed to a shell.
func CommandLine(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		q, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			// Quote rejects strings bash cannot represent (NUL bytes).
			q = strconv.Quote(arg)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " ")
}
