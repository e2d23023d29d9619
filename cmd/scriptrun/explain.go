// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/invowk/scriptrun/internal/issue"
)

// issueSummary is the --json shape of one catalog entry.
type issueSummary struct {
	Id    issue.Id `json:"id"`
	Title string   `json:"title"`
}

func newExplainCommand(app *App, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "explain [id]",
		Short: "Show the help card for an error",
		Long: `Without an id, list every help card scriptrun can show next to an error.
With an id, print that card.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return app.listIssues(opts)
			}

			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid issue id %q: %w", args[0], err)
			}
			entry := issue.Get(issue.Id(n))
			if entry == nil {
				return fmt.Errorf("unknown issue id %d", n)
			}
			if opts.asJSON {
				return app.writeJSON(struct {
					issueSummary
					Markdown string           `json:"markdown"`
					Links    []issue.HttpLink `json:"links,omitempty"`
				}{issueSummary{entry.Id(), entry.Title()}, string(entry.MarkdownMsg()), entry.DocLinks()})
			}
			rendered, err := entry.Render("dark")
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, rendered)
			return nil
		},
	}
}

func (a *App) listIssues(opts *globalOptions) error {
	values := issue.Values()
	if opts.asJSON {
		out := make([]issueSummary, 0, len(values))
		for _, entry := range values {
			out = append(out, issueSummary{Id: entry.Id(), Title: entry.Title()})
		}
		return a.writeJSON(out)
	}
	for _, entry := range values {
		fmt.Fprintf(a.stdout, "  %s %s\n", CmdStyle.Render(strconv.Itoa(int(entry.Id()))), entry.Title())
	}
	return nil
}
