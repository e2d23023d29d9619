// SPDX-License-Identifier: MPL-2.0

package scripts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/invowk/scriptrun/internal/deps"
	"github.com/invowk/scriptrun/internal/interpreter"
	"github.com/invowk/scriptrun/internal/runtime"
	"github.com/invowk/scriptrun/internal/validate"
)

var (
	// ErrNotFound reports a named script that does not resolve to a file
	// inside the script folder.
	ErrNotFound = errors.New("script not found")
	// ErrInvalidArgs reports arguments that are not a JSON object.
	ErrInvalidArgs = errors.New("invalid JSON arguments")
	// ErrNoCode reports blank inline code.
	ErrNoCode = errors.New("no code provided")
	// ErrPersist reports a failure to write inline code to disk.
	ErrPersist = errors.New("failed to persist inline script")
)

// Kind classifies a failure.
type Kind int

const (
	KindNone Kind = iota
	KindConfiguration
	KindNotFound
	KindValidation
	KindInput
	KindDependency
	KindTimeout
	KindRuntime
	KindStorage
	KindCanceled
)

var kindNames = map[Kind]string{
	KindNone:          "none",
	KindConfiguration: "configuration",
	KindNotFound:      "not_found",
	KindValidation:    "validation",
	KindInput:         "input",
	KindDependency:    "dependency",
	KindTimeout:       "timeout",
	KindRuntime:       "runtime",
	KindStorage:       "storage",
	KindCanceled:      "canceled",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// KindOf classifies err. Errors it does not recognize are KindRuntime.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, interpreter.ErrNotFound):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, validate.ErrRejected):
		return KindValidation
	case errors.Is(err, ErrInvalidArgs), errors.Is(err, ErrNoCode):
		return KindInput
	case errors.Is(err, deps.ErrDependency):
		return KindDependency
	case errors.Is(err, runtime.ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrPersist):
		return KindStorage
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindRuntime
	}
}

// Result is the outcome of one request. Exactly one of Output and Err is set.
type Result struct {
	// Output is the script's return value as JSON, or {"result": text}
	// when it printed something that is not JSON.
	Output json.RawMessage
	Err    error
	// ExecutionID identifies the request in logs.
	ExecutionID string
}

// Failed reports whether the request failed.
func (r Result) Failed() bool { return r.Err != nil }

// Envelope is the boundary representation: the output on success,
// {"error": message} on failure.
func (r Result) Envelope() json.RawMessage {
	if r.Err == nil {
		return r.Output
	}
	data, err := json.Marshal(map[string]string{"error": r.Err.Error()})
	if err != nil {
		return json.RawMessage(`{"error":"unencodable error"}`)
	}
	return data
}

// String returns the envelope as text.
func (r Result) String() string { return string(r.Envelope()) }

func failure(id string, err error) Result {
	return Result{Err: err, ExecutionID: id}
}

// wrapOutput keeps JSON output as-is and wraps anything else, including
// empty output, as {"result": text}.
func wrapOutput(output string) json.RawMessage {
	trimmed := strings.TrimSpace(output)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	data, _ := json.Marshal(map[string]string{"result": output})
	return data
}
