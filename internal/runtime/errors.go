// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrTimeout is wrapped by every TimeoutError.
	ErrTimeout = errors.New("timed out")
	// ErrScriptFailed is wrapped by every ScriptError.
	ErrScriptFailed = errors.New("script failed")
)

type (
	// TimeoutError reports a process killed because its deadline expired.
	TimeoutError struct {
		// Target is "script" or "module '<name>'".
		Target  string
		Timeout time.Duration
	}

	// ScriptError reports a non-zero exit, or stderr output on a zero exit.
	ScriptError struct {
		ExitCode ExitCode
		Stdout   string
		Stderr   string
	}
)

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Target, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// Error prefers the interpreter's own diagnostics. The exit status only shows
// up when the process said nothing at all.
func (e *ScriptError) Error() string {
	var parts []string
	if e.Stderr != "" {
		parts = append(parts, e.Stderr)
	}
	if e.Stdout != "" {
		parts = append(parts, "output: "+e.Stdout)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("exited with code %d", e.ExitCode)
	}
	return strings.Join(parts, "\n")
}

func (e *ScriptError) Unwrap() error { return ErrScriptFailed }
