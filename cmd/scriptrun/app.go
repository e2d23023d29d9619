// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/invowk/scriptrun/internal/config"
	"github.com/invowk/scriptrun/internal/issue"
	"github.com/invowk/scriptrun/internal/scripts"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every command handler receives an App and builds
	// its Services from the loaded configuration.
	App struct {
		Config config.Provider

		executor scripts.Executor
		resolver DependencyService
		stdin    io.Reader
		stdout   io.Writer
		stderr   io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		// Executor replaces the cache-backed interpreter executor.
		Executor scripts.Executor
		// Resolver replaces the pip-backed dependency resolver.
		Resolver DependencyService
		Stdin    io.Reader
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// DependencyService is what the deps commands need from deps.Resolver.
	DependencyService interface {
		Ensure(ctx context.Context, scriptPath, source string, timeout time.Duration) error
		Generate(ctx context.Context, scriptPath, source string, timeout time.Duration) (string, error)
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}

	return &App{
		Config:   deps.Config,
		executor: deps.Executor,
		resolver: deps.Resolver,
		stdin:    deps.Stdin,
		stdout:   deps.Stdout,
		stderr:   deps.Stderr,
	}, nil
}

// loadConfig loads configuration honoring --config.
func (a *App) loadConfig(ctx context.Context, opts *globalOptions) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: opts.configPath})
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(opts.configPath).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("fix the reported fields, or regenerate the file with 'scriptrun config init --force'").
			Wrap(err).
			BuildError()
	}
	return cfg, nil
}
