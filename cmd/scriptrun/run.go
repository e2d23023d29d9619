// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/invowk/scriptrun/internal/deps"
	"github.com/invowk/scriptrun/internal/issue"
)

func newRunCommand(app *App, opts *globalOptions) *cobra.Command {
	var (
		timeout time.Duration
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "run <name> [args-json]",
		Short: "Run a named script",
		Long: `Run {script_folder}/<name>.py with a JSON object as input.

The result is printed as JSON. When the script fails, the output is
{"error": "<message>"} and the exit code is 1.`,
		Example: `  scriptrun run add_one '{"x": 5}'
  scriptrun run report --timeout 2m
  scriptrun run add_one '{"x": 5}' --dry-run`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, argsJSON := args[0], ""
			if len(args) == 2 {
				argsJSON = args[1]
			}

			svc, err := app.services(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if dryRun {
				return app.dryRun(cmd.Context(), svc, name, argsJSON, timeout)
			}
			return app.writeResult(svc.Runner.RunScript(cmd.Context(), name, argsJSON, timeout), opts)
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "time limit for the run (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would run without running it")
	return cmd
}

func newInlineCommand(app *App, opts *globalOptions) *cobra.Command {
	var (
		timeout  time.Duration
		file     string
		key      string
		argsJSON string
	)

	cmd := &cobra.Command{
		Use:   "inline [code]",
		Short: "Persist and run inline code",
		Long: `Validate inline Python code, persist it as __inline_<key>.py in the
script folder and run it. The code comes from the argument, --file, or
standard input when neither is given (or the argument is "-").

Without --key the file is named after the SHA-256 of the code, so the same
code always maps to the same file.`,
		Example: `  scriptrun inline 'def run(input): return input["x"] * 2' --args '{"x": 21}'
  scriptrun inline --file draft.py --key draft
  cat draft.py | scriptrun inline`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readCode(app.stdin, args, file)
			if err != nil {
				return err
			}
			svc, err := app.services(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return app.writeResult(svc.Runner.RunInline(cmd.Context(), code, argsJSON, timeout, key), opts)
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "time limit for the run (default from config)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the code from a file")
	cmd.Flags().StringVarP(&key, "key", "k", "", "stable name for the persisted file")
	cmd.Flags().StringVarP(&argsJSON, "args", "a", "", "JSON object passed to run(input)")
	return cmd
}

func readCode(stdin io.Reader, args []string, file string) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", fmt.Errorf("pass the code either as an argument or with --file, not both")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", issue.WrapWithOperation(err, "read code")
		}
		return string(data), nil
	case len(args) == 1 && args[0] != "-":
		return args[0], nil
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", issue.WrapWithOperation(err, "read code from stdin")
		}
		return string(data), nil
	}
}

// dryRun prints the resolved script, its validation status, the dependency
// state and the interpreter command line without running anything.
func (a *App) dryRun(ctx context.Context, svc *Services, name, argsJSON string, timeout time.Duration) error {
	w := a.stdout
	path, source, err := svc.Runner.Source(name)
	if err != nil {
		renderError(a.stderr, err, &globalOptions{})
		return &ExitError{Code: 1, Err: err}
	}
	if timeout <= 0 {
		timeout = svc.Config.Timeout()
	}
	if strings.TrimSpace(argsJSON) == "" {
		argsJSON = "{}"
	}

	fmt.Fprintln(w, TitleStyle.Render("Dry Run"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s\n", VerboseHighlightStyle.Render("Script:"), name)
	fmt.Fprintf(w, "  %s %s\n", VerboseHighlightStyle.Render("Path:"), path)
	fmt.Fprintf(w, "  %s %s\n", VerboseHighlightStyle.Render("Isolation:"), svc.Executor.Policy().Name())
	fmt.Fprintf(w, "  %s %s\n", VerboseHighlightStyle.Render("Timeout:"), timeout)

	if verr := svc.Runner.Validate(name); verr != nil {
		fmt.Fprintf(w, "  %s %s\n", VerboseHighlightStyle.Render("Validation:"), ErrorStyle.Render(verr.Error()))
	} else {
		fmt.Fprintf(w, "  %s %s\n", VerboseHighlightStyle.Render("Validation:"), SuccessStyle.Render("passed"))
	}

	depsState := SubtitleStyle.Render("skipped (container image supplies packages)")
	if svc.Deps != nil {
		depsState = WarningStyle.Render("will be resolved before the run")
		if deps.Satisfied(path, source) {
			depsState = SuccessStyle.Render("satisfied")
		}
	}
	fmt.Fprintf(w, "  %s %s\n", VerboseHighlightStyle.Render("Dependencies:"), depsState)

	interp, err := svc.RunInterpreter(ctx)
	if err != nil {
		fmt.Fprintf(w, "  %s %s\n", VerboseHighlightStyle.Render("Command:"), ErrorStyle.Render(err.Error()))
		fmt.Fprintln(w)
		return nil
	}
	line, err := svc.Executor.Describe(ctx, interp, path, argsJSON)
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, VerboseHighlightStyle.Render("  Command:"))
	fmt.Fprintf(w, "    %s\n", line)
	fmt.Fprintln(w)
	return nil
}
