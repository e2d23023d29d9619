// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/invowk/scriptrun/internal/mcpserver"
)

func newServeCommand(app *App, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the scripts as MCP tools over stdio",
		Long: `Serve the scripts as Model Context Protocol tools over stdin/stdout.

Tools:
  list_scripts      names, descriptions and parameters of the named scripts
  run_script        run a named script with a JSON object of arguments
  run_inline_code   validate, persist and run a code string

Every tool returns the result envelope as text. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := app.services(cmd.Context(), opts)
			if err != nil {
				return err
			}
			logger := svc.logs("mcp")
			logger.Info("serving", "folder", svc.Runner.Folder(), "isolation", svc.Config.Isolation.Mode)
			return mcpserver.Serve(cmd.Context(), svc.Runner,
				mcpserver.WithVersion(Version),
				mcpserver.WithLogger(logger))
		},
	}
}
