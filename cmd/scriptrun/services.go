// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/invowk/scriptrun/internal/cache"
	"github.com/invowk/scriptrun/internal/config"
	"github.com/invowk/scriptrun/internal/container"
	"github.com/invowk/scriptrun/internal/deps"
	"github.com/invowk/scriptrun/internal/interpreter"
	"github.com/invowk/scriptrun/internal/issue"
	"github.com/invowk/scriptrun/internal/runtime"
	"github.com/invowk/scriptrun/internal/scripts"
)

// containerInterpreter is the interpreter name handed to the cache in
// container mode; the policy replaces argv[0] anyway.
const containerInterpreter = "python"

// Services is the object graph one command works with.
type Services struct {
	Config   *config.Config
	Runner   *scripts.Runner
	Executor *runtime.Executor
	// Deps is nil in container mode, where the image supplies packages.
	Deps DependencyService
	// Interpreter resolves the host interpreter through the process-wide
	// cell for the configured path.
	Interpreter func(ctx context.Context) (string, error)
	// RunInterpreter is the interpreter scripts run with: the host one, or
	// the image's in container mode.
	RunInterpreter func(ctx context.Context) (string, error)

	logs loggerFactory
}

// loggerFactory returns a component logger writing to stderr.
type loggerFactory func(component string) *log.Logger

func newLoggerFactory(w io.Writer, level string) loggerFactory {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return func(component string) *log.Logger {
		return log.NewWithOptions(w, log.Options{Level: lvl, Prefix: component})
	}
}

// services loads configuration and builds the runner for it.
func (a *App) services(ctx context.Context, opts *globalOptions) (*Services, error) {
	cfg, err := a.loadConfig(ctx, opts)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if opts.verbose {
		level = "debug"
	}
	logs := newLoggerFactory(a.stderr, level)

	cell := interpreter.Shared(cfg.Interpreter.Path, interpreter.WithLogger(logs("interpreter")))
	interp := func(ctx context.Context) (string, error) {
		loc, err := cell.Get(ctx)
		if err != nil {
			return "", issue.NewErrorContext().
				WithOperation("locate python interpreter").
				WithIssue(issue.InterpreterNotFoundId).
				WithSuggestion("set interpreter.path in the config file").
				Wrap(err).
				BuildError()
		}
		return loc.Executable, nil
	}

	svc := &Services{Config: cfg, Interpreter: interp, logs: logs}

	policy, err := newPolicy(cfg)
	if err != nil {
		return nil, err
	}
	svc.Executor = runtime.NewExecutor(runtime.WithPolicy(policy), runtime.WithExecutorLogger(logs("runtime")))

	svc.RunInterpreter = interp
	if cfg.Isolation.Mode == config.IsolationContainer {
		svc.RunInterpreter = func(context.Context) (string, error) { return containerInterpreter, nil }
	}

	var executor scripts.Executor = cache.New(cfg.Cache.RegistryPath, svc.Executor,
		cache.WithInterpreter(svc.RunInterpreter),
		cache.WithLogger(logs("cache")))
	if a.executor != nil {
		executor = a.executor
	}

	runnerOpts := []scripts.Option{
		scripts.WithDefaultTimeout(cfg.Timeout()),
		scripts.WithLogger(logs("scripts")),
	}
	switch {
	case a.resolver != nil:
		svc.Deps = a.resolver
	case cfg.Isolation.Mode == config.IsolationNative:
		svc.Deps = deps.New(svc.Executor,
			deps.WithInterpreter(interp),
			deps.WithInstallFloor(cfg.InstallFloor()),
			deps.WithLogger(logs("deps")))
	}
	if svc.Deps != nil {
		runnerOpts = append(runnerOpts, scripts.WithDependencies(svc.Deps))
	}

	svc.Runner = scripts.New(cfg.ScriptFolder, executor, runnerOpts...)
	return svc, nil
}

func newPolicy(cfg *config.Config) (runtime.IsolationPolicy, error) {
	if cfg.Isolation.Mode != config.IsolationContainer {
		return runtime.NativePolicy{}, nil
	}
	engine, err := container.NewEngine(container.EngineType(cfg.Isolation.Engine))
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("set up container isolation").
			WithResource(string(cfg.Isolation.Engine)).
			WithIssue(issue.ContainerEngineNotFoundId).
			WithSuggestions("install podman or docker", `or set isolation: mode: "native"`).
			Wrap(err).
			BuildError()
	}
	return &runtime.ContainerPolicy{Engine: engine, Image: cfg.Isolation.Image}, nil
}
