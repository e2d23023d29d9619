// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/invowk/scriptrun/internal/issue"
	"github.com/invowk/scriptrun/internal/runtime"
	"github.com/invowk/scriptrun/internal/scripts"
)

// issueFor picks the catalog entry that explains err, or 0.
func issueFor(err error) issue.Id {
	var ae *issue.ActionableError
	if errors.As(err, &ae) && ae.Issue != 0 {
		return ae.Issue
	}
	switch scripts.KindOf(err) {
	case scripts.KindConfiguration:
		return issue.InterpreterNotFoundId
	case scripts.KindNotFound:
		return issue.ScriptNotFoundId
	case scripts.KindValidation:
		return issue.ValidationFailedId
	case scripts.KindDependency:
		return issue.DependencyInstallFailedId
	case scripts.KindTimeout:
		return issue.ScriptTimeoutId
	case scripts.KindRuntime:
		if errors.Is(err, runtime.ErrScriptFailed) {
			return issue.ScriptFailedId
		}
	}
	return 0
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// renderError writes err and, when one applies, its help card to w.
func renderError(w io.Writer, err error, opts *globalOptions) {
	fmt.Fprintln(w, ErrorStyle.Render("error: ")+formatErrorForDisplay(err, opts.verbose))
	if opts.asJSON {
		return
	}
	id := issueFor(err)
	if id == 0 {
		return
	}
	if entry := issue.Get(id); entry != nil {
		rendered, renderErr := entry.Render("dark")
		if renderErr != nil {
			log.Warn("failed to render issue catalog entry", "issue", id, "error", renderErr)
			return
		}
		fmt.Fprint(w, rendered)
	}
}

// writeResult prints the envelope to stdout. On failure it also explains
// the error on stderr and returns an ExitError with code 1.
func (a *App) writeResult(res scripts.Result, opts *globalOptions) error {
	envelope := res.Envelope()
	if !opts.asJSON && !res.Failed() {
		var pretty bytes.Buffer
		if json.Indent(&pretty, envelope, "", "  ") == nil {
			envelope = pretty.Bytes()
		}
	}
	fmt.Fprintln(a.stdout, string(envelope))

	if !res.Failed() {
		return nil
	}
	renderError(a.stderr, res.Err, opts)
	return &ExitError{Code: 1, Err: res.Err}
}

// writeJSON prints v as indented JSON.
func (a *App) writeJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, string(data))
	return err
}
