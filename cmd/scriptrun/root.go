// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	verbose    bool
	asJSON     bool
	yes        bool
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "scriptrun",
		Short: "Run Python scripts as JSON-in, JSON-out functions",
		Long: TitleStyle.Render("scriptrun") + SubtitleStyle.Render(" - Run Python scripts as JSON-in, JSON-out functions") + `

scriptrun executes Python scripts that define run(input). The input is a
JSON object, the output is the function's return value as JSON. Scripts are
screened for dangerous imports and calls, their third-party packages are
installed on first use, and every run has a time limit.

` + SubtitleStyle.Render("Examples:") + `
  scriptrun list                          List the scripts in the script folder
  scriptrun run add_one '{"x": 5}'        Run add_one.py with {"x": 5}
  scriptrun inline --key demo < code.py   Persist and run code from stdin
  scriptrun serve                         Serve the scripts as MCP tools over stdio`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default is <user config dir>/scriptrun/config.cue)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging and full error chains")
	flags.BoolVar(&opts.asJSON, "json", false, "print raw JSON only")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "answer yes to confirmation prompts")

	root.AddCommand(
		newRunCommand(app, opts),
		newInlineCommand(app, opts),
		newListCommand(app, opts),
		newValidateCommand(app, opts),
		newDepsCommand(app, opts),
		newInterpreterCommand(app, opts),
		newServeCommand(app, opts),
		newConfigCommand(app, opts),
		newExplainCommand(app, opts),
	)
	return root
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}

	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
