// SPDX-License-Identifier: MPL-2.0

// Package deps makes sure the third-party packages a script imports are
// installed before it runs.
//
// Each successful resolution leaves a marker file named after the SHA-256 of
// the script source next to the script. A marker hit skips all work, so
// installation for a given source is attempted once until the content changes.
// Requirements come from a co-located requirements.txt or pyproject.toml, or
// are discovered with pipreqs, and are installed with "pip install --user".
package deps
