// SPDX-License-Identifier: MPL-2.0

package scripts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/invowk/scriptrun/internal/deps"
	"github.com/invowk/scriptrun/internal/runtime"
	"github.com/invowk/scriptrun/internal/validate"
)

const (
	// DefaultTimeout applies when neither the caller nor the Runner sets one.
	DefaultTimeout = 30 * time.Second

	scriptExt    = ".py"
	inlinePrefix = "__inline_"
)

type (
	// Executor runs a script file that has passed validation.
	// cache.Cache implements it.
	Executor interface {
		RunPrepared(ctx context.Context, scriptPath, argsJSON string, timeout time.Duration) *runtime.Result
	}

	// DependencyResolver installs a script's third-party packages.
	// deps.Resolver implements it.
	DependencyResolver interface {
		Ensure(ctx context.Context, scriptPath, source string, timeout time.Duration) error
	}

	// NotFoundError names the script that could not be resolved.
	NotFoundError struct {
		Name string
	}

	// Option configures a Runner.
	Option func(*Runner)

	// Runner executes scripts from one folder.
	Runner struct {
		folder         string
		exec           Executor
		deps           DependencyResolver
		validate       func(string) error
		defaultTimeout time.Duration
		logger         *log.Logger

		// pathLocks serializes persist-and-run per inline file.
		pathLocks sync.Map
	}
)

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("script '%s' not found", e.Name)
}

// Unwrap returns ErrNotFound for errors.Is() compatibility.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// WithDependencies enables dependency provisioning before each run.
// Without it, scripts run against whatever the interpreter already has.
func WithDependencies(r DependencyResolver) Option {
	return func(rn *Runner) { rn.deps = r }
}

// WithDefaultTimeout sets the timeout used when a caller passes 0.
func WithDefaultTimeout(d time.Duration) Option {
	return func(rn *Runner) { rn.defaultTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(rn *Runner) { rn.logger = l }
}

// New creates a Runner over folder. The folder is created on first write.
func New(folder string, exec Executor, opts ...Option) *Runner {
	r := &Runner{
		folder:         folder,
		exec:           exec,
		validate:       validate.Validate,
		defaultTimeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard)
	}
	return r
}

// Folder returns the managed script folder.
func (r *Runner) Folder() string { return r.folder }

// RunScript runs {folder}/{name}.py with argsJSON.
func (r *Runner) RunScript(ctx context.Context, name, argsJSON string, timeout time.Duration) Result {
	id := uuid.NewString()
	logger := r.logger.With("exec", id, "script", name)

	path, err := r.Resolve(name)
	if err != nil {
		logger.Debug("script not resolved", "err", err)
		return failure(id, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return failure(id, &NotFoundError{Name: name})
	}

	return r.execute(ctx, logger, id, path, deps.StripBOM(string(data)), argsJSON, timeout, nil)
}

// RunInline persists code as __inline_{key}.py and runs it. An empty key
// uses the SHA-256 of the code, so identical code maps to the same file.
func (r *Runner) RunInline(ctx context.Context, code, argsJSON string, timeout time.Duration, key string) Result {
	id := uuid.NewString()
	code = deps.StripBOM(code)
	if strings.TrimSpace(code) == "" {
		return failure(id, ErrNoCode)
	}

	path := r.InlinePath(code, key)
	logger := r.logger.With("exec", id, "script", filepath.Base(path))

	persist := func() (func(), error) { return r.claimInline(path, code) }
	return r.execute(ctx, logger, id, path, code, argsJSON, timeout, persist)
}

// Validate runs only the safety validator over a named script.
func (r *Runner) Validate(name string) error {
	path, err := r.Resolve(name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &NotFoundError{Name: name}
	}
	return r.validate(deps.StripBOM(string(data)))
}

// Source returns the BOM-free source of a named script and its path.
func (r *Runner) Source(name string) (path, source string, err error) {
	path, err = r.Resolve(name)
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", &NotFoundError{Name: name}
	}
	return path, deps.StripBOM(string(data)), nil
}

// execute is the shared pipeline. persist, when set, runs after the input
// checks and before dependency resolution; the release func it returns is
// held until the interpreter exits.
func (r *Runner) execute(ctx context.Context, logger *log.Logger, id, path, source, argsJSON string, timeout time.Duration, persist func() (func(), error)) Result {
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	start := time.Now()

	if err := r.validate(source); err != nil {
		logger.Debug("validation rejected script", "err", err)
		return failure(id, fmt.Errorf("script validation failed: %w", err))
	}

	args, err := normalizeArgs(argsJSON)
	if err != nil {
		return failure(id, err)
	}

	if persist != nil {
		release, err := persist()
		if err != nil {
			logger.Warn("failed to persist inline script", "err", err)
			return failure(id, fmt.Errorf("%w: %v", ErrPersist, err))
		}
		defer release()
	}

	if r.deps != nil {
		depsStart := time.Now()
		if err := r.deps.Ensure(ctx, path, source, timeout); err != nil {
			logger.Debug("dependency resolution failed", "err", err)
			return failure(id, err)
		}
		logger.Debug("dependencies ready", "duration", time.Since(depsStart))
	}

	res := r.exec.RunPrepared(ctx, path, args, timeout)
	logger.Debug("script finished", "exit_code", res.ExitCode, "run", res.Duration, "total", time.Since(start))
	if res.Error != nil {
		return failure(id, res.Error)
	}
	return Result{Output: wrapOutput(res.Output), ExecutionID: id}
}

// Resolve maps a script name to its file. The name must be a bare file stem
// and the file must exist inside the folder, also after resolving symlinks.
func (r *Runner) Resolve(name string) (string, error) {
	notFound := &NotFoundError{Name: name}
	if !validName(name) {
		return "", notFound
	}

	path := filepath.Join(r.folder, name+scriptExt)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", notFound
	}

	root, err := filepath.EvalSymlinks(r.folder)
	if err != nil {
		return "", notFound
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", notFound
	}
	if rel, err := filepath.Rel(root, resolved); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", notFound
	}
	return path, nil
}

func validName(name string) bool {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." {
		return false
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\:`) {
		return false
	}
	return filepath.Base(name) == name
}

// InlinePath returns the file RunInline uses for code and key.
func (r *Runner) InlinePath(code, key string) string {
	return filepath.Join(r.folder, inlinePrefix+InlineKey(code, key)+scriptExt)
}

// InlineKey is SanitizeKey(key), or the content hash when the key is empty
// or sanitizes to nothing.
func InlineKey(code, key string) string {
	if key != "" {
		if k := SanitizeKey(key); k != "" {
			return k
		}
	}
	sum := sha256.Sum256([]byte(deps.StripBOM(code)))
	return hex.EncodeToString(sum[:])
}

// SanitizeKey keeps letters and digits, replaces everything else with '_'
// and trims leading and trailing underscores.
func SanitizeKey(key string) string {
	out := []rune(key)
	for i, c := range out {
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) {
			out[i] = '_'
		}
	}
	return strings.Trim(string(out), "_")
}

// claimInline locks path, writes code to it and returns the unlock func.
// Runs of one inline file are serialized, so a caller always executes the
// code it submitted even when another caller reuses the key.
func (r *Runner) claimInline(path, code string) (func(), error) {
	mu, _ := r.pathLocks.LoadOrStore(path, &sync.Mutex{})
	lock := mu.(*sync.Mutex)
	lock.Lock()
	if err := writeInline(path, code); err != nil {
		lock.Unlock()
		return nil, err
	}
	return lock.Unlock, nil
}

// writeInline writes code to path unless the file already holds exactly
// that content.
func writeInline(path, code string) error {
	existing, err := os.ReadFile(path)
	if err == nil && string(existing) == code {
		return nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(code), 0o644)
}

// normalizeArgs accepts blank input as {} and otherwise requires a JSON
// object. It returns the compacted object text.
func normalizeArgs(argsJSON string) (string, error) {
	if strings.TrimSpace(argsJSON) == "" {
		return "{}", nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(argsJSON), &obj); err != nil || obj == nil {
		return "", ErrInvalidArgs
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(argsJSON)); err != nil {
		return "", ErrInvalidArgs
	}
	return buf.String(), nil
}

var _ DependencyResolver = (*deps.Resolver)(nil)
