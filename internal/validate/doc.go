// SPDX-License-Identifier: MPL-2.0

// Package validate is a textual pre-filter for untrusted Python source.
//
// It catches the obvious ways a script could reach the process, filesystem
// or network, and it checks that the script defines a run(input) entry
// point. It is not a sandbox: the checks are pattern matches over source
// text and are easy to evade on purpose.
package validate
