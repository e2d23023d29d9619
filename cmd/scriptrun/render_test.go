// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/invowk/scriptrun/internal/deps"
	"github.com/invowk/scriptrun/internal/interpreter"
	"github.com/invowk/scriptrun/internal/issue"
	"github.com/invowk/scriptrun/internal/runtime"
	"github.com/invowk/scriptrun/internal/scripts"
	"github.com/invowk/scriptrun/internal/validate"
)

func TestIssueFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{"actionable wins", issue.NewErrorContext().WithOperation("x").WithIssue(issue.ContainerEngineNotFoundId).Wrap(scripts.ErrNotFound).BuildError(), issue.ContainerEngineNotFoundId},
		{"interpreter", fmt.Errorf("locate: %w", interpreter.ErrNotFound), issue.InterpreterNotFoundId},
		{"not found", &scripts.NotFoundError{Name: "x"}, issue.ScriptNotFoundId},
		{"validation", fmt.Errorf("script validation failed: %w", validate.ErrRejected), issue.ValidationFailedId},
		{"dependency", &deps.Error{Stage: deps.StageInstall}, issue.DependencyInstallFailedId},
		{"timeout", &runtime.TimeoutError{Target: "script", Timeout: time.Second}, issue.ScriptTimeoutId},
		{"script failed", &runtime.ScriptError{ExitCode: 1, Stderr: "boom"}, issue.ScriptFailedId},
		{"other runtime", errors.New("exec: permission denied"), 0},
		{"bad input", scripts.ErrInvalidArgs, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := issueFor(tt.err); got != tt.want {
				t.Errorf("issueFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRenderError_JSONSkipsHelpCard(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	renderError(&buf, &scripts.NotFoundError{Name: "ghost"}, &globalOptions{asJSON: true})

	out := buf.String()
	if !strings.Contains(out, "ghost") {
		t.Errorf("output %q lacks the error", out)
	}
	if strings.Contains(out, "Things you can try") {
		t.Errorf("--json output should not include the help card: %q", out)
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	plain := errors.New("plain")
	if got := formatErrorForDisplay(plain, false); got != "plain" {
		t.Errorf("plain error = %q", got)
	}

	ae := issue.NewErrorContext().
		WithOperation("run script").
		WithResource("add_one").
		WithSuggestion("check the name").
		Wrap(plain).
		BuildError()
	if got := formatErrorForDisplay(ae, false); !strings.Contains(got, "check the name") {
		t.Errorf("actionable error = %q, want the suggestion", got)
	}
}
