// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/invowk/scriptrun/internal/config"
)

type interpreterReport struct {
	Executable string `json:"executable"`
	Dir        string `json:"dir"`
	// Runs is the interpreter scripts actually start with; it differs from
	// Executable in container mode.
	Runs string `json:"runs"`
}

func newInterpreterCommand(app *App, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "interpreter",
		Short: "Show the Python interpreter scriptrun resolves",
		Long: `Show the Python interpreter scriptrun resolves.

The lookup order is: interpreter.path from the config file, PYTHONHOME /
PYENV_ROOT / PYENV, the "py" launcher (Windows), python3 and python on PATH,
and finally the platform registry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := app.services(cmd.Context(), opts)
			if err != nil {
				return err
			}
			exe, err := svc.Interpreter(cmd.Context())
			if err != nil {
				renderError(app.stderr, err, opts)
				return &ExitError{Code: 1, Err: err}
			}
			runs, err := svc.RunInterpreter(cmd.Context())
			if err != nil {
				return err
			}

			report := interpreterReport{Executable: exe, Dir: filepath.Dir(exe), Runs: runs}
			if opts.asJSON {
				return app.writeJSON(report)
			}
			fmt.Fprintf(app.stdout, "%s %s\n", VerboseHighlightStyle.Render("Executable:"), report.Executable)
			fmt.Fprintf(app.stdout, "%s %s\n", VerboseHighlightStyle.Render("Dir:       "), report.Dir)
			if svc.Config.Isolation.Mode == config.IsolationContainer {
				fmt.Fprintf(app.stdout, "%s %s %s\n", VerboseHighlightStyle.Render("Runs:      "), report.Runs,
					SubtitleStyle.Render("(inside "+svc.Config.Isolation.Image+")"))
			}
			return nil
		},
	}
}
