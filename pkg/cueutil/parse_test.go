// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

const testSchema = `
#Script: {
	name:         string & =~"^[A-Za-z0-9_]+$"
	timeout?:     int & >0
	output_type:  *"object" | "text"
	parameters?: [...{name: string, type: string}]
}
`

type testScript struct {
	Name       string `json:"name"`
	Timeout    int    `json:"timeout,omitempty"`
	OutputType string `json:"output_type"`
	Parameters []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"parameters,omitempty"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     string
		wantErr  string
		wantOut  string
		wantTime int
	}{
		{
			name:    "defaults applied",
			data:    `name: "add_one"`,
			wantOut: "object",
		},
		{
			name:     "json document",
			data:     `{"name": "add_one", "timeout": 5, "output_type": "text"}`,
			wantOut:  "text",
			wantTime: 5,
		},
		{
			name:    "constraint violation",
			data:    `name: "bad name"`,
			wantErr: "name",
		},
		{
			name:    "syntax error",
			data:    `name: "x`,
			wantErr: "meta.cue",
		},
		{
			name:    "nested path",
			data:    `name: "x", parameters: [{name: "a", type: "int"}, {name: "b", type: 1}]`,
			wantErr: "parameters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := ParseAndDecode[testScript]([]byte(testSchema), []byte(tt.data), "#Script", WithFilename("meta.cue"))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("ParseAndDecode() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAndDecode() error = %v", err)
			}
			if res.Value.OutputType != tt.wantOut || res.Value.Timeout != tt.wantTime {
				t.Errorf("ParseAndDecode() = %+v", res.Value)
			}
		})
	}
}

func TestParseAndDecode_FieldErrors(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecode[testScript]([]byte(testSchema), []byte(`name: "bad name", timeout: -1`), "#Script")
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %T %v, want *Error", err, err)
	}
	if cerr.File != "<input>" {
		t.Errorf("File = %q, want <input>", cerr.File)
	}
	paths := make([]string, 0, len(cerr.Fields))
	for _, f := range cerr.Fields {
		paths = append(paths, f.Path)
	}
	joined := strings.Join(paths, ",")
	if !strings.Contains(joined, "name") || !strings.Contains(joined, "timeout") {
		t.Errorf("field paths = %q, want name and timeout", paths)
	}
}

func TestParseAndDecode_Limits(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecode[testScript]([]byte(testSchema), []byte(`name: "abcdef"`), "#Script", WithMaxFileSize(4))
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Errorf("oversized document error = %v", err)
	}

	_, err = ParseAndDecode[testScript]([]byte(testSchema), []byte(`name: "x"`), "#Missing")
	if err == nil || !strings.Contains(err.Error(), "internal error") {
		t.Errorf("missing definition error = %v", err)
	}
}

func TestDecodeMap(t *testing.T) {
	t.Parallel()

	schema := []byte(`#Config: { default_timeout?: int & >0, log?: { level?: "debug" | "info" } }`)

	m, err := DecodeMap(schema, []byte(`log: level: "debug"`), "#Config", WithConcrete(false))
	if err != nil {
		t.Fatalf("DecodeMap() error = %v", err)
	}
	logMap, ok := m["log"].(map[string]any)
	if !ok || logMap["level"] != "debug" {
		t.Errorf("DecodeMap() = %v", m)
	}

	if _, err := DecodeMap(schema, []byte(`default_timeout: 0`), "#Config", WithConcrete(false)); err == nil {
		t.Error("DecodeMap() accepted a value outside the schema")
	}
}

func TestFormatError(t *testing.T) {
	t.Parallel()

	if FormatError(nil, "x.cue") != nil {
		t.Error("FormatError(nil) != nil")
	}

	err := FormatError(errors.New("boom"), "x.cue")
	if err.Error() != "x.cue: boom" {
		t.Errorf("FormatError() = %q", err)
	}

	multi := &Error{File: "c.cue", Fields: []FieldError{{Path: "a", Message: "m1"}, {Message: "m2"}}}
	if got := multi.Error(); got != "c.cue: validation failed:\n  a: m1\n  m2" {
		t.Errorf("Error() = %q", got)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{path: nil, want: ""},
		{path: []string{"name"}, want: "name"},
		{path: []string{"isolation", "mode"}, want: "isolation.mode"},
		{path: []string{"parameters", "0", "type"}, want: "parameters[0].type"},
		{path: []string{"0"}, want: "0"},
		{path: []string{"a", "1", "2"}, want: "a[1][2]"},
	}

	for _, tt := range tests {
		if got := formatPath(tt.path); got != tt.want {
			t.Errorf("formatPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
