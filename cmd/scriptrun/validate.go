// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invowk/scriptrun/internal/issue"
)

// validationReport is the --json shape of one validated script.
type validationReport struct {
	Name  string `json:"name"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func newValidateCommand(app *App, opts *globalOptions) *cobra.Command {
	var rules bool

	cmd := &cobra.Command{
		Use:   "validate [name...]",
		Short: "Check scripts against the safety rules without running them",
		Long: `Check named scripts against the safety rules. Without names, every script
in the script folder is checked. The exit code is 1 when any script is
rejected.

Use --rules to print the rules.`,
		RunE: func(cmd *cobra.Command, names []string) error {
			if rules {
				rendered, err := issue.Get(issue.ValidationFailedId).Render("dark")
				if err != nil {
					return err
				}
				fmt.Fprint(app.stdout, rendered)
				return nil
			}

			svc, err := app.services(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				list, err := svc.Runner.ListScripts()
				if err != nil {
					return err
				}
				for _, info := range list {
					names = append(names, info.Name)
				}
			}

			reports := make([]validationReport, 0, len(names))
			var errs []error
			for _, name := range names {
				r := validationReport{Name: name, Valid: true}
				if err := svc.Runner.Validate(name); err != nil {
					r.Valid, r.Error = false, err.Error()
					errs = append(errs, fmt.Errorf("%s: %w", name, err))
				}
				reports = append(reports, r)
			}

			if opts.asJSON {
				if err := app.writeJSON(reports); err != nil {
					return err
				}
			} else {
				for _, r := range reports {
					if r.Valid {
						fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("✓"), r.Name)
					} else {
						fmt.Fprintf(app.stdout, "%s %s %s\n", ErrorStyle.Render("✗"), r.Name, SubtitleStyle.Render(r.Error))
					}
				}
			}

			if len(errs) == 0 {
				return nil
			}
			return &ExitError{Code: 1, Err: errors.Join(errs...)}
		},
	}

	cmd.Flags().BoolVar(&rules, "rules", false, "print the safety rules")
	return cmd
}
