// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invowk/scriptrun/internal/scripts"
)

func newListCommand(app *App, opts *globalOptions) *cobra.Command {
	var cleanInline bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the named scripts",
		Long: `List the named scripts in the script folder, with the description and
parameters from their optional <name>.meta.cue sidecar.

With --clean-inline, delete the persisted inline scripts instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := app.services(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if cleanInline {
				notifier := &scripts.PromptNotifier{In: app.stdin, Out: app.stderr, AssumeYes: opts.yes}
				removed, err := svc.Runner.CleanInline(cmd.Context(), notifier)
				if opts.asJSON {
					if removed == nil {
						removed = []string{}
					}
					if jerr := app.writeJSON(removed); jerr != nil {
						return jerr
					}
				}
				return err
			}

			list, err := svc.Runner.ListScripts()
			if err != nil {
				return err
			}
			if opts.asJSON {
				if list == nil {
					list = []scripts.Info{}
				}
				return app.writeJSON(list)
			}
			app.printScripts(svc.Runner.Folder(), list)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cleanInline, "clean-inline", false, "delete persisted inline scripts (asks for confirmation)")
	return cmd
}

func (a *App) printScripts(folder string, list []scripts.Info) {
	w := a.stdout
	fmt.Fprintln(w, TitleStyle.Render("Scripts")+" "+SubtitleStyle.Render("("+folder+")"))
	fmt.Fprintln(w)

	if len(list) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(no scripts found)"))
		return
	}

	for _, info := range list {
		line := "  " + CmdStyle.Render(info.Name)
		if info.Metadata != nil && info.Metadata.Description != "" {
			line += " " + SubtitleStyle.Render("- "+info.Metadata.Description)
		}
		fmt.Fprintln(w, line)

		if info.MetadataError != "" {
			fmt.Fprintf(w, "      %s %s\n", WarningStyle.Render("metadata:"), info.MetadataError)
			continue
		}
		if info.Metadata == nil {
			continue
		}
		if len(info.Metadata.Parameters) > 0 {
			params := make([]string, 0, len(info.Metadata.Parameters))
			for _, p := range info.Metadata.Parameters {
				params = append(params, p.Name+": "+p.Type)
			}
			fmt.Fprintf(w, "      %s {%s}\n", VerboseStyle.Render("input:"), strings.Join(params, ", "))
		}
		fmt.Fprintf(w, "      %s %s\n", VerboseStyle.Render("output:"), info.Metadata.OutputType)
	}
}
