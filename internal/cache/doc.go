// SPDX-License-Identifier: MPL-2.0

// Package cache keeps the registry of script paths that have been prepared
// for execution and persists it as a JSON array.
//
// The registry is bookkeeping only: every run still spawns a fresh
// interpreter through the executor.
package cache
