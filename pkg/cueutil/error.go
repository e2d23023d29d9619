// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

type (
	// FieldError is one problem at one path of a document.
	FieldError struct {
		// Path uses JSON-path notation, e.g. "parameters[1].type".
		Path    string
		Message string
	}

	// Error lists every problem CUE reported for a document.
	Error struct {
		File   string
		Fields []FieldError
	}
)

// Error renders "<file>: <path>: <message>" for a single problem and a
// multi-line list otherwise.
func (e *Error) Error() string {
	lines := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Path == "" {
			lines = append(lines, f.Message)
			continue
		}
		lines = append(lines, f.Path+": "+f.Message)
	}
	if len(lines) == 1 {
		return e.File + ": " + lines[0]
	}
	return e.File + ": validation failed:\n  " + strings.Join(lines, "\n  ")
}

// FormatError converts a CUE error into an *Error carrying per-field paths.
// Non-CUE errors are wrapped with the file name.
func FormatError(err error, file string) error {
	if err == nil {
		return nil
	}

	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", file, err)
	}

	out := &Error{File: file}
	for _, e := range list {
		path := formatPath(cueerrors.Path(e))
		msg := e.Error()
		if path != "" && strings.HasPrefix(msg, path) {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, path), ":"))
		}
		out.Fields = append(out.Fields, FieldError{Path: path, Message: msg})
	}
	return out
}

// formatPath turns ["parameters", "1", "type"] into "parameters[1].type".
func formatPath(path []string) string {
	var b strings.Builder
	for i, part := range path {
		switch {
		case i > 0 && isIndex(part):
			b.WriteString("[" + part + "]")
		case i > 0:
			b.WriteString("." + part)
		default:
			b.WriteString(part)
		}
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CheckFileSize rejects documents larger than maxSize.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", filename, len(data), maxSize)
	}
	return nil
}
