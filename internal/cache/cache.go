// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/maps"

	"github.com/invowk/scriptrun/internal/interpreter"
	"github.com/invowk/scriptrun/internal/runtime"
)

// DefaultFileName is the registry file name inside the user cache directory.
const DefaultFileName = "vm_cache.json"

type (
	// ScriptRunner runs one script file. runtime.Executor implements it.
	ScriptRunner interface {
		Run(ctx context.Context, interp, scriptPath, argsJSON string, timeout time.Duration) *runtime.Result
	}

	// Option configures a Cache.
	Option func(*Cache)

	// Cache records which script paths have been prepared and delegates each
	// run to a ScriptRunner.
	Cache struct {
		path   string
		runner ScriptRunner
		interp func(ctx context.Context) (string, error)
		logger *log.Logger

		mu    sync.RWMutex
		known map[string]struct{}

		// fileMu serializes registry writes within the process.
		fileMu sync.Mutex
	}
)

// DefaultPath returns {userCacheDir}/scriptrun/vm_cache.json.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "scriptrun", DefaultFileName), nil
}

// WithInterpreter sets how the interpreter is found. The default is the
// process-wide interpreter.Default cell.
func WithInterpreter(fn func(ctx context.Context) (string, error)) Option {
	return func(c *Cache) { c.interp = fn }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New loads the registry at path. A missing or unreadable registry starts
// empty.
func New(path string, runner ScriptRunner, opts ...Option) *Cache {
	c := &Cache{
		path:   path,
		runner: runner,
		known:  make(map[string]struct{}),
		interp: func(ctx context.Context) (string, error) {
			loc, err := interpreter.Default(ctx)
			return loc.Executable, err
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}

	keys, err := readRegistry(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		c.logger.Warn("ignoring unreadable cache registry", "path", path, "err", err)
	default:
		for _, k := range keys {
			c.known[k] = struct{}{}
		}
		c.logger.Debug("loaded cache registry", "path", path, "entries", len(keys))
	}
	return c
}

// RunPrepared registers scriptPath on first use and runs it with argsJSON.
// A registry write failure is logged and does not fail the run.
func (c *Cache) RunPrepared(ctx context.Context, scriptPath, argsJSON string, timeout time.Duration) *runtime.Result {
	interp, err := c.interp(ctx)
	if err != nil {
		return runtime.NewErrorResult(err)
	}

	if c.register(scriptPath) {
		if err := c.persist(); err != nil {
			c.logger.Warn("failed to persist cache registry", "path", c.path, "err", err)
		}
	}
	return c.runner.Run(ctx, interp, scriptPath, argsJSON, timeout)
}

// Known reports whether scriptPath has been registered.
func (c *Cache) Known(scriptPath string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.known[scriptPath]
	return ok
}

// Paths returns the registered paths, sorted.
func (c *Cache) Paths() []string {
	c.mu.RLock()
	keys := maps.Keys(c.known)
	c.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// register adds scriptPath and reports whether it was new.
func (c *Cache) register(scriptPath string) bool {
	c.mu.RLock()
	_, ok := c.known[scriptPath]
	c.mu.RUnlock()
	if ok {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.known[scriptPath]; ok {
		return false
	}
	c.known[scriptPath] = struct{}{}
	return true
}

// persist merges the in-memory keys with the file on disk and rewrites it
// atomically. Entries added by other processes are kept.
func (c *Cache) persist() error {
	if c.path == "" {
		return nil
	}

	c.fileMu.Lock()
	defer c.fileMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	if lock, err := acquireFileLock(c.path+".lock", c.logger); err == nil {
		defer lock.Release()
	} else if !errors.Is(err, errFlockUnavailable) {
		c.logger.Debug("cross-process lock unavailable", "err", err)
	}

	onDisk, err := readRegistry(c.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("overwriting unreadable cache registry", "path", c.path, "err", err)
	}

	c.mu.Lock()
	for _, k := range onDisk {
		c.known[k] = struct{}{}
	}
	keys := maps.Keys(c.known)
	c.mu.Unlock()
	slices.Sort(keys)

	return writeRegistry(c.path, keys)
}

func readRegistry(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return keys, nil
}

func writeRegistry(path string, keys []string) error {
	if keys == nil {
		keys = []string{}
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
