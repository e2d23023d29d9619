// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/invowk/scriptrun/internal/config"
)

var errConfigExists = errors.New("config file already exists (use --force to overwrite)")

func newConfigCommand(app *App, opts *globalOptions) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return app.writeJSON(cfg)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config directory and the file in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			loaded, err := config.LoadWithPath(cmd.Context(), config.LoadOptions{ConfigFilePath: opts.configPath})
			if err != nil {
				return err
			}
			file := loaded.Path
			if file == "" {
				file = SubtitleStyle.Render("(none, using defaults)")
			}
			fmt.Fprintf(app.stdout, "%s %s\n", VerboseHighlightStyle.Render("Dir: "), dir)
			fmt.Fprintf(app.stdout, "%s %s\n", VerboseHighlightStyle.Render("File:"), file)
			return nil
		},
	}

	var (
		dir   string
		force bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				var err error
				if dir, err = config.ConfigDir(); err != nil {
					return err
				}
			}
			target := filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)
			if _, err := os.Stat(target); err == nil && !force {
				return fmt.Errorf("%s: %w", target, errConfigExists)
			}
			path, err := config.Save(dir, config.DefaultConfig())
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s wrote %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&dir, "dir", "", "directory to write config.cue into (default is the user config dir)")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cfgCmd.AddCommand(showCmd, pathCmd, initCmd)
	return cfgCmd
}
