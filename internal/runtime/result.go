// SPDX-License-Identifier: MPL-2.0

package runtime

import "time"

// Result is the outcome of one interpreter process.
type Result struct {
	// ExitCode is the process status, or -1 when none was observed.
	ExitCode ExitCode
	// Error is nil exactly when the run counts as successful.
	Error error
	// Output is the captured stdout, trimmed. Empty after a timeout.
	Output string
	// ErrOutput is the captured stderr, trimmed. Empty after a timeout.
	ErrOutput string
	// Duration is the wall time from start to exit.
	Duration time.Duration
}

// Success reports whether the run succeeded.
func (r *Result) Success() bool { return r.Error == nil }

// NewErrorResult creates a Result for a process that never produced a status.
func NewErrorResult(err error) *Result {
	return &Result{ExitCode: exitCodeUnknown, Error: err}
}
