// SPDX-License-Identifier: MPL-2.0

// Package benchmark holds benchmarks for the request hot paths, used for PGO
// profile generation:
//   - script validation
//   - CUE config and metadata parsing
//   - name resolution and argument normalization in the runner
//   - native interpreter execution and the full cached pipeline
//
// Interpreter benchmarks skip in short mode or when python3 is missing.
package benchmark
