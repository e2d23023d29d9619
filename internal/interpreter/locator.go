// SPDX-License-Identifier: MPL-2.0

package interpreter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultQueryTimeout bounds each interpreter query.
	DefaultQueryTimeout = 4 * time.Second
	// DefaultFinderTimeout bounds each which/where call.
	DefaultFinderTimeout = 2 * time.Second

	queryScript = "import sys; print(sys.executable)"
)

// ErrNotFound is returned when no strategy produced an existing executable.
var ErrNotFound = errors.New("python interpreter not found")

// envRoots are checked in order; each names an installation root.
var envRoots = []string{"PYTHONHOME", "PYENV_ROOT", "PYENV"}

type (
	// Location is a resolved interpreter.
	Location struct {
		// Executable is the absolute path of the interpreter binary.
		Executable string
		// Dir is the directory containing Executable.
		Dir string
	}

	// RunFunc runs name with args and returns its stdout.
	RunFunc func(ctx context.Context, name string, args ...string) (string, error)

	// Option configures a Locator.
	Option func(*Locator)

	// Locator resolves the interpreter. The zero value is not usable; call New.
	Locator struct {
		explicit      string
		getenv        func(string) string
		run           RunFunc
		exists        func(string) bool
		registry      func(ctx context.Context) []string
		goos          string
		queryTimeout  time.Duration
		finderTimeout time.Duration
		logger        *log.Logger
	}

	strategy struct {
		name string
		find func(ctx context.Context) string
	}
)

// WithExplicitPath makes Locate return path (when it exists) without probing.
func WithExplicitPath(path string) Option {
	return func(l *Locator) { l.explicit = path }
}

// WithGetenv replaces os.Getenv.
func WithGetenv(fn func(string) string) Option {
	return func(l *Locator) { l.getenv = fn }
}

// WithRunner replaces the process runner used for queries.
func WithRunner(fn RunFunc) Option {
	return func(l *Locator) { l.run = fn }
}

// WithFileCheck replaces the existence check applied to every candidate.
func WithFileCheck(fn func(string) bool) Option {
	return func(l *Locator) { l.exists = fn }
}

// WithRegistry replaces the platform registry lookup.
func WithRegistry(fn func(ctx context.Context) []string) Option {
	return func(l *Locator) { l.registry = fn }
}

// WithGOOS pretends to run on another operating system.
func WithGOOS(goos string) Option {
	return func(l *Locator) { l.goos = goos }
}

// WithQueryTimeout sets the per-query timeout.
func WithQueryTimeout(d time.Duration) Option {
	return func(l *Locator) { l.queryTimeout = d }
}

// WithLogger sets the logger used for strategy tracing.
func WithLogger(logger *log.Logger) Option {
	return func(l *Locator) { l.logger = logger }
}

// New creates a Locator for the current host.
func New(opts ...Option) *Locator {
	l := &Locator{
		getenv:        os.Getenv,
		run:           runCapture,
		exists:        isFile,
		registry:      registryCandidates,
		goos:          goruntime.GOOS,
		queryTimeout:  DefaultQueryTimeout,
		finderTimeout: DefaultFinderTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.New(io.Discard)
	}
	return l
}

// Locate runs the strategy chain and returns the first hit. Individual
// strategy failures are logged at debug level and otherwise ignored.
func (l *Locator) Locate(ctx context.Context) (Location, error) {
	if l.explicit != "" {
		if l.exists(l.explicit) {
			return newLocation(l.explicit), nil
		}
		return Location{}, fmt.Errorf("%w: configured interpreter %s does not exist", ErrNotFound, l.explicit)
	}

	for _, s := range l.strategies() {
		if err := ctx.Err(); err != nil {
			return Location{}, err
		}
		if path := s.find(ctx); path != "" {
			l.logger.Debug("interpreter resolved", "strategy", s.name, "path", path)
			return newLocation(path), nil
		}
		l.logger.Debug("interpreter strategy missed", "strategy", s.name)
	}

	return Location{}, ErrNotFound
}

func (l *Locator) strategies() []strategy {
	return []strategy{
		{name: "env", find: l.fromEnv},
		{name: "py-launcher", find: l.fromLauncher},
		{name: "path-query", find: l.fromQuery},
		{name: "finder", find: l.fromFinder},
		{name: "registry", find: l.fromRegistry},
	}
}

func (l *Locator) windows() bool { return l.goos == "windows" }

func (l *Locator) fromEnv(_ context.Context) string {
	for _, name := range envRoots {
		root := strings.TrimSpace(l.getenv(name))
		if root == "" {
			continue
		}
		var candidates []string
		if l.windows() {
			candidates = []string{filepath.Join(root, "python.exe")}
		} else {
			candidates = []string{filepath.Join(root, "bin", "python3"), filepath.Join(root, "bin", "python")}
		}
		for _, c := range candidates {
			if l.exists(c) {
				return c
			}
		}
	}
	return ""
}

func (l *Locator) fromLauncher(ctx context.Context) string {
	if !l.windows() {
		return ""
	}
	return l.query(ctx, l.queryTimeout, "py", "-3", "-c", queryScript)
}

func (l *Locator) fromQuery(ctx context.Context) string {
	names := []string{"python3", "python"}
	if l.windows() {
		names = []string{"python", "python3"}
	}
	for _, name := range names {
		if path := l.query(ctx, l.queryTimeout, name, "-c", queryScript); path != "" {
			return path
		}
	}
	return ""
}

func (l *Locator) fromFinder(ctx context.Context) string {
	finder := "which"
	if l.windows() {
		finder = "where"
	}
	for _, name := range []string{"py", "python3", "python"} {
		if path := l.query(ctx, l.finderTimeout, finder, name); path != "" {
			return path
		}
	}
	return ""
}

func (l *Locator) fromRegistry(ctx context.Context) string {
	for _, c := range l.registry(ctx) {
		if l.exists(c) {
			return c
		}
	}
	return ""
}

// query runs a command under its own timeout and returns the first output
// line naming an existing file.
func (l *Locator) query(ctx context.Context, timeout time.Duration, name string, args ...string) string {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := l.run(pctx, name, args...)
	if err != nil {
		l.logger.Debug("interpreter query failed", "command", name, "error", err)
		return ""
	}
	return l.firstExisting(out)
}

// firstExisting tolerates quoting, CRLF and extra lines in query output.
func (l *Locator) firstExisting(out string) string {
	for line := range strings.SplitSeq(out, "\n") {
		candidate := strings.Trim(strings.TrimSpace(line), `"'`)
		if candidate != "" && l.exists(candidate) {
			return candidate
		}
	}
	return ""
}

func newLocation(path string) Location {
	return Location{Executable: path, Dir: filepath.Dir(path)}
}

func runCapture(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return stdout.String(), nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
