// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/invowk/scriptrun/internal/interpreter"
	"github.com/invowk/scriptrun/internal/runtime"
)

const (
	// InstallTimeoutFloor is the minimum time pip gets, whatever the caller asked for.
	InstallTimeoutFloor = 60 * time.Second

	requirementsFile = "requirements.txt"
	pyprojectFile    = "pyproject.toml"

	pipreqsModule = "pipreqs.pipreqs"
	pipModule     = "pip"
)

// Stage names the step of a resolution that failed.
type Stage string

const (
	// StageDiscover covers manifest reading and pipreqs.
	StageDiscover Stage = "discover"
	// StageInstall covers pip.
	StageInstall Stage = "install"
)

// ErrDependency is wrapped by every resolution failure.
var ErrDependency = errors.New("dependency resolution failed")

type (
	// Error is a failed discovery or installation. Output holds the tool's
	// diagnostic text verbatim.
	Error struct {
		Stage  Stage
		Tool   string
		Output string
	}

	// ModuleRunner runs "python -m module args...". runtime.Executor
	// implements it.
	ModuleRunner interface {
		RunModule(ctx context.Context, interp, module string, args []string, workDir string, timeout time.Duration) *runtime.Result
	}

	// InterpreterFunc returns the interpreter used to run pipreqs and pip.
	InterpreterFunc func(ctx context.Context) (string, error)

	// Option configures a Resolver.
	Option func(*Resolver)

	// Resolver provisions script dependencies.
	Resolver struct {
		runner       ModuleRunner
		interp       InterpreterFunc
		installFloor time.Duration
		logger       *log.Logger
		now          func() time.Time
		group        singleflight.Group
	}
)

func (e *Error) Error() string {
	tool := e.Tool
	if tool == "" {
		tool = string(e.Stage)
	}
	if e.Output == "" {
		return tool + " failed"
	}
	return tool + " failed: " + e.Output
}

func (e *Error) Unwrap() error { return ErrDependency }

// WithInterpreter sets how the interpreter is found. The default is the
// process-wide interpreter.Default cell.
func WithInterpreter(fn InterpreterFunc) Option {
	return func(r *Resolver) { r.interp = fn }
}

// WithInstallFloor overrides InstallTimeoutFloor.
func WithInstallFloor(d time.Duration) Option {
	return func(r *Resolver) { r.installFloor = d }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithClock replaces time.Now for marker timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// New creates a Resolver that runs tools through runner.
func New(runner ModuleRunner, opts ...Option) *Resolver {
	r := &Resolver{
		runner:       runner,
		installFloor: InstallTimeoutFloor,
		now:          time.Now,
		interp: func(ctx context.Context) (string, error) {
			loc, err := interpreter.Default(ctx)
			return loc.Executable, err
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard)
	}
	return r
}

// Ensure installs the dependencies of source, which lives at scriptPath,
// unless its marker already exists. Concurrent calls for the same source and
// directory share one attempt. Nothing is rolled back on failure, and a
// failed attempt leaves no marker.
func (r *Resolver) Ensure(ctx context.Context, scriptPath, source string, timeout time.Duration) error {
	source = StripBOM(source)
	marker := MarkerPath(scriptPath, source)
	if fileExists(marker) {
		return nil
	}

	_, err, shared := r.group.Do(marker, func() (any, error) {
		if fileExists(marker) {
			return nil, nil
		}
		return nil, r.ensure(ctx, scriptPath, source, marker, timeout)
	})
	if shared {
		r.logger.Debug("joined in-flight resolution", "marker", filepath.Base(marker))
	}
	return err
}

func (r *Resolver) ensure(ctx context.Context, scriptPath, source, marker string, timeout time.Duration) error {
	interp, err := r.interp(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	manifest, cleanup, err := r.manifest(ctx, interp, scriptPath, source, timeout)
	defer cleanup()
	if err != nil {
		return err
	}

	if manifest != "" {
		if err := r.install(ctx, interp, manifest, timeout); err != nil {
			return err
		}
	} else {
		r.logger.Debug("no third-party dependencies", "script", filepath.Base(scriptPath))
	}

	if err := writeMarker(marker, r.now()); err != nil {
		r.logger.Warn("failed to write dependency marker", "path", marker, "err", err)
	}
	r.logger.Debug("dependencies ready", "script", filepath.Base(scriptPath), "duration", time.Since(start))
	return nil
}

// Generate returns the requirements that Ensure would install for source,
// without installing them. An empty string means no dependencies.
func (r *Resolver) Generate(ctx context.Context, scriptPath, source string, timeout time.Duration) (string, error) {
	interp, err := r.interp(ctx)
	if err != nil {
		return "", err
	}

	manifest, cleanup, err := r.manifest(ctx, interp, scriptPath, StripBOM(source), timeout)
	defer cleanup()
	if err != nil || manifest == "" {
		return "", err
	}
	data, err := os.ReadFile(manifest)
	if err != nil {
		return "", &Error{Stage: StageDiscover, Tool: "read requirements", Output: err.Error()}
	}
	return string(data), nil
}

// manifest returns the requirements file to install from, or "" when the
// script has no third-party imports. cleanup is always non-nil.
func (r *Resolver) manifest(ctx context.Context, interp, scriptPath, source string, timeout time.Duration) (string, func(), error) {
	noop := func() {}
	dir := filepath.Dir(scriptPath)

	if req := filepath.Join(dir, requirementsFile); fileExists(req) {
		r.logger.Debug("using co-located requirements", "path", req)
		return req, noop, nil
	}

	if pp := filepath.Join(dir, pyprojectFile); fileExists(pp) {
		r.logger.Debug("using co-located pyproject", "path", pp)
		return requirementsFromPyproject(pp)
	}

	return r.discover(ctx, interp, scriptPath, source, timeout)
}

// discover runs pipreqs over a private copy of the script so that sibling
// files do not leak into the result.
func (r *Resolver) discover(ctx context.Context, interp, scriptPath, source string, timeout time.Duration) (string, func(), error) {
	noop := func() {}

	tmp, err := os.MkdirTemp("", "pyreqs-")
	if err != nil {
		return "", noop, &Error{Stage: StageDiscover, Tool: "pipreqs", Output: err.Error()}
	}
	cleanup := func() {
		if err := os.RemoveAll(tmp); err != nil {
			r.logger.Warn("failed to remove temp dir", "path", tmp, "err", err)
		}
	}

	if err := os.WriteFile(filepath.Join(tmp, filepath.Base(scriptPath)), []byte(source), 0o644); err != nil {
		return "", cleanup, &Error{Stage: StageDiscover, Tool: "pipreqs", Output: err.Error()}
	}

	req := filepath.Join(tmp, requirementsFile)
	args := []string{tmp, "--force", "--savepath", req, "--encoding=utf-8"}
	res := r.runner.RunModule(ctx, interp, pipreqsModule, args, tmp, timeout)
	if res.Error != nil {
		return "", cleanup, &Error{Stage: StageDiscover, Tool: "pipreqs", Output: diagnostic(res)}
	}

	if info, err := os.Stat(req); err != nil || info.Size() == 0 {
		return "", cleanup, nil
	}
	return req, cleanup, nil
}

func (r *Resolver) install(ctx context.Context, interp, manifest string, timeout time.Duration) error {
	timeout = max(timeout, r.installFloor)
	args := []string{"install", "--disable-pip-version-check", "--user", "-r", manifest}

	r.logger.Info("installing dependencies", "requirements", manifest, "timeout", timeout)
	res := r.runner.RunModule(ctx, interp, pipModule, args, filepath.Dir(manifest), timeout)
	if res.Error != nil {
		return &Error{Stage: StageInstall, Tool: "pip install", Output: diagnostic(res)}
	}
	return nil
}

// diagnostic prefers the tool's stderr and falls back to the run error.
func diagnostic(res *runtime.Result) string {
	if res.ErrOutput != "" {
		return res.ErrOutput
	}
	if res.Error != nil {
		return res.Error.Error()
	}
	return fmt.Sprintf("exit code %d", res.ExitCode)
}
