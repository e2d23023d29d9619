// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidExitCode is the sentinel wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode is a process exit status. Zero means success.
	ExitCode int

	// InvalidExitCodeError reports an ExitCode outside 0-255.
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// exitCodeUnknown marks a process that never produced a status (spawn failure,
// timeout, cancellation).
const exitCodeUnknown ExitCode = -1

func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// IsValid reports whether c is a real POSIX status, with the reason when not.
func (c ExitCode) IsValid() (bool, []error) {
	if c < 0 || c > 255 {
		return false, []error{&InvalidExitCodeError{Value: c}}
	}
	return true, nil
}

// IsSuccess reports whether c is zero.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// IsEngineFailure reports the statuses Docker and Podman use for their own
// failures (125: engine error, 126/127: command could not be started).
func (c ExitCode) IsEngineFailure() bool { return c >= 125 && c <= 127 }

func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
