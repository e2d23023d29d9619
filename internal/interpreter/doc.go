// SPDX-License-Identifier: MPL-2.0

// Package interpreter finds a usable Python 3 executable on the host.
//
// Locator tries a fixed chain of strategies (explicit path, environment
// variables, the Windows py launcher, PATH queries, which/where, and the
// platform registry) and returns the first executable that exists. Cell
// caches a successful lookup for the lifetime of the process.
package interpreter
