// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	cause := errors.New("exit status 1")

	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{
			name: "operation only",
			err:  &ActionableError{Operation: "run script"},
			want: "failed to run script",
		},
		{
			name: "with resource",
			err:  &ActionableError{Operation: "run script", Resource: "add_one.py"},
			want: "failed to run script add_one.py",
		},
		{
			name: "with resource and cause",
			err:  &ActionableError{Operation: "install dependencies", Resource: "req.txt", Cause: cause},
			want: "failed to install dependencies req.txt: exit status 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("sentinel")
	err := NewErrorContext().
		WithOperation("load configuration").
		Wrap(fmt.Errorf("decode: %w", sentinel)).
		BuildError()

	if !errors.Is(err, sentinel) {
		t.Fatalf("errors.Is should see the sentinel through %v", err)
	}

	var ae *ActionableError
	if !errors.As(err, &ae) {
		t.Fatal("errors.As should find *ActionableError")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	inner := errors.New("permission denied")
	err := NewErrorContext().
		WithOperation("write script").
		WithResource("__inline_abc.py").
		WithSuggestions("Check folder permissions", "Pick another script_folder").
		Wrap(fmt.Errorf("open: %w", inner)).
		Build()

	plain := err.Format(false)
	for _, want := range []string{"failed to write script __inline_abc.py", "• Check folder permissions", "• Pick another script_folder"} {
		if !strings.Contains(plain, want) {
			t.Errorf("Format(false) missing %q:\n%s", want, plain)
		}
	}
	if strings.Contains(plain, "Caused by") {
		t.Errorf("Format(false) should not include the cause chain:\n%s", plain)
	}

	verbose := err.Format(true)
	if !strings.Contains(verbose, "1. open: permission denied") || !strings.Contains(verbose, "2. permission denied") {
		t.Errorf("Format(true) should number the cause chain:\n%s", verbose)
	}
}

func TestErrorContext_BuildRequiresOperation(t *testing.T) {
	t.Parallel()

	if ae := NewErrorContext().WithResource("x").Build(); ae != nil {
		t.Errorf("Build() without operation = %v, want nil", ae)
	}
	if err := NewErrorContext().BuildError(); err != nil {
		t.Errorf("BuildError() without operation = %v, want nil", err)
	}
}

func TestErrorContext_WithIssue(t *testing.T) {
	t.Parallel()

	ae := NewErrorContext().WithOperation("run script").WithIssue(ScriptTimeoutId).Build()
	if ae.Issue != ScriptTimeoutId {
		t.Errorf("Issue = %d, want %d", ae.Issue, ScriptTimeoutId)
	}
	if !NewErrorContext().WithOperation("x").WithSuggestion("y").Build().HasSuggestions() {
		t.Error("HasSuggestions() = false, want true")
	}
}

func TestWrapWithOperation(t *testing.T) {
	t.Parallel()

	if WrapWithOperation(nil, "x") != nil {
		t.Error("WrapWithOperation(nil) should return nil")
	}
	got := WrapWithOperation(errors.New("boom"), "list scripts")
	if got.Error() != "failed to list scripts: boom" {
		t.Errorf("Error() = %q", got.Error())
	}
}
