// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/invowk/scriptrun/internal/deps"
	"github.com/invowk/scriptrun/internal/scripts"
)

var errDepsUnavailable = errors.New("dependency management is disabled in container isolation mode")

func newDepsCommand(app *App, opts *globalOptions) *cobra.Command {
	depsCmd := &cobra.Command{
		Use:   "deps",
		Short: "Manage script dependencies",
		Long: `Manage the third-party packages of named scripts.

Packages are found with pipreqs (or read from a co-located requirements.txt
or pyproject.toml) and installed with "pip install --user". A .deps_<hash>.ok
marker next to the script records a successful install for that exact
source.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var timeout time.Duration

	ensureCmd := &cobra.Command{
		Use:   "ensure <name>",
		Short: "Install a script's dependencies now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, path, source, err := app.depsTarget(cmd.Context(), opts, args[0])
			if err != nil {
				return err
			}
			if err := svc.Deps.Ensure(cmd.Context(), path, source, effectiveTimeout(svc, timeout)); err != nil {
				renderError(app.stderr, err, opts)
				return &ExitError{Code: 1, Err: err}
			}
			fmt.Fprintf(app.stdout, "%s dependencies ready for %s\n", SuccessStyle.Render("✓"), args[0])
			return nil
		},
	}
	ensureCmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "time limit (at least the configured install floor)")

	generateCmd := &cobra.Command{
		Use:   "generate <name>",
		Short: "Print the requirements a script would install",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, path, source, err := app.depsTarget(cmd.Context(), opts, args[0])
			if err != nil {
				return err
			}
			reqs, err := svc.Deps.Generate(cmd.Context(), path, source, effectiveTimeout(svc, timeout))
			if err != nil {
				renderError(app.stderr, err, opts)
				return &ExitError{Code: 1, Err: err}
			}
			fmt.Fprint(app.stdout, reqs)
			return nil
		},
	}
	generateCmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "time limit for discovery")

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete dependency markers of scripts that changed or no longer exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context(), opts)
			if err != nil {
				return err
			}
			notifier := &scripts.PromptNotifier{In: app.stdin, Out: app.stderr, AssumeYes: opts.yes}
			return app.pruneMarkers(cmd.Context(), cfg.ScriptFolder, notifier, opts)
		},
	}

	depsCmd.AddCommand(ensureCmd, generateCmd, pruneCmd)
	return depsCmd
}

func effectiveTimeout(svc *Services, timeout time.Duration) time.Duration {
	if timeout > 0 {
		return timeout
	}
	return svc.Config.Timeout()
}

// depsTarget builds the services and resolves a named script for the deps
// subcommands.
func (a *App) depsTarget(ctx context.Context, opts *globalOptions, name string) (*Services, string, string, error) {
	svc, err := a.services(ctx, opts)
	if err != nil {
		return nil, "", "", err
	}
	if svc.Deps == nil {
		return nil, "", "", errDepsUnavailable
	}
	path, source, err := svc.Runner.Source(name)
	if err != nil {
		renderError(a.stderr, err, opts)
		return nil, "", "", &ExitError{Code: 1, Err: err}
	}
	return svc, path, source, nil
}

func (a *App) pruneMarkers(ctx context.Context, folder string, n scripts.Notifier, opts *globalOptions) error {
	orphans, err := deps.Orphans(folder)
	if err != nil {
		return err
	}

	removed, err := a.confirmPrune(ctx, orphans, n, opts)
	if opts.asJSON {
		if jerr := a.writeJSON(baseNames(removed)); jerr != nil {
			return jerr
		}
	}
	return err
}

// confirmPrune lists orphans, asks once and deletes them. It returns the
// markers it removed.
func (a *App) confirmPrune(ctx context.Context, orphans []string, n scripts.Notifier, opts *globalOptions) ([]string, error) {
	if len(orphans) == 0 {
		if !opts.asJSON {
			fmt.Fprintln(a.stdout, SubtitleStyle.Render("no stale dependency markers"))
		}
		return nil, nil
	}
	if !opts.asJSON {
		for _, m := range orphans {
			fmt.Fprintf(a.stdout, "  %s\n", filepath.Base(m))
		}
	}

	ok, err := n.Confirm(ctx, fmt.Sprintf("Delete %d stale marker(s)?", len(orphans)))
	if err != nil || !ok {
		return nil, err
	}
	if err := deps.Prune(orphans); err != nil {
		return nil, err
	}
	n.Notify(ctx, fmt.Sprintf("Removed %d marker(s).", len(orphans)))
	return orphans, nil
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}
