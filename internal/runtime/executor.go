// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultWaitDelay bounds how long Wait keeps draining pipes after the
	// process group has been killed.
	DefaultWaitDelay = 2 * time.Second

	terminateTimeout = 10 * time.Second
)

// pythonEnv keeps interpreter output predictable and the script folder clean.
var pythonEnv = []string{
	"PYTHONIOENCODING=utf-8",
	"PYTHONUTF8=1",
	"PYTHONDONTWRITEBYTECODE=1",
}

type (
	// ExecutorOption configures an Executor.
	ExecutorOption func(*Executor)

	// Executor spawns one interpreter process per call.
	Executor struct {
		policy    IsolationPolicy
		logger    *log.Logger
		waitDelay time.Duration
	}
)

// WithPolicy sets the isolation policy. The default is NativePolicy.
func WithPolicy(p IsolationPolicy) ExecutorOption {
	return func(e *Executor) { e.policy = p }
}

// WithExecutorLogger sets the logger.
func WithExecutorLogger(l *log.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithWaitDelay overrides DefaultWaitDelay.
func WithWaitDelay(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.waitDelay = d }
}

// NewExecutor creates an Executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		policy:    NativePolicy{},
		waitDelay: DefaultWaitDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
	}
	return e
}

// Policy returns the isolation policy in use.
func (e *Executor) Policy() IsolationPolicy { return e.policy }

// Run executes scriptPath's run(input) with argsJSON. The run succeeds only
// when the interpreter exits 0 and leaves stderr blank.
func (e *Executor) Run(ctx context.Context, interp, scriptPath, argsJSON string, timeout time.Duration) *Result {
	return e.execute(ctx, scriptInvocation(interp, scriptPath, argsJSON), timeout, "script", true)
}

// Describe returns the command line Run would execute, without starting it.
func (e *Executor) Describe(ctx context.Context, interp, scriptPath, argsJSON string) (string, error) {
	inv := scriptInvocation(interp, scriptPath, argsJSON)
	if _, ok := e.policy.(Terminator); ok {
		inv.ID = "scriptrun-<id>"
	}
	cmd, err := e.policy.Command(ctx, inv)
	if err != nil {
		return "", err
	}
	return CommandLine(displayArgv(cmd.Args)), nil
}

func scriptInvocation(interp, scriptPath, argsJSON string) Invocation {
	return Invocation{
		Argv:    ScriptArgv(interp, scriptPath, argsJSON),
		WorkDir: filepath.Dir(scriptPath),
		Mounts:  []string{filepath.Dir(scriptPath)},
		Env:     pythonEnv,
	}
}

// RunModule executes "python -m module args..." in workDir. Only the exit
// status decides success; tools like pip write progress to stderr.
func (e *Executor) RunModule(ctx context.Context, interp, module string, args []string, workDir string, timeout time.Duration) *Result {
	inv := Invocation{
		Argv:    ModuleArgv(interp, module, args),
		WorkDir: workDir,
		Env:     pythonEnv,
	}
	if workDir != "" {
		inv.Mounts = []string{workDir}
	}
	return e.execute(ctx, inv, timeout, fmt.Sprintf("module '%s'", module), false)
}

func (e *Executor) execute(ctx context.Context, inv Invocation, timeout time.Duration, target string, strictStderr bool) *Result {
	if _, ok := e.policy.(Terminator); ok {
		inv.ID = newInvocationID()
	}

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	cmd, err := e.policy.Command(runCtx, inv)
	if err != nil {
		return NewErrorResult(fmt.Errorf("prepare %s: %w", target, err))
	}
	group, err := newProcessGroup(cmd)
	if err != nil {
		return NewErrorResult(fmt.Errorf("prepare %s: %w", target, err))
	}
	defer group.close()
	cmd.WaitDelay = e.waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("spawning interpreter",
		"policy", e.policy.Name(),
		"command", CommandLine(displayArgv(inv.Argv)),
		"timeout", timeout)

	start := time.Now()
	runErr := cmd.Start()
	if runErr == nil {
		if err := group.attach(cmd); err != nil {
			e.logger.Warn("grandchildren will outlive a timeout", "target", target, "error", err)
		}
		runErr = cmd.Wait()
	}
	elapsed := time.Since(start)

	if runErr != nil && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		e.terminate(ctx, inv)
		e.logger.Warn("interpreter killed after timeout", "target", target, "timeout", timeout)
		return &Result{
			ExitCode: exitCodeUnknown,
			Error:    &TimeoutError{Target: target, Timeout: timeout},
			Duration: elapsed,
		}
	}
	if runErr != nil && ctx.Err() != nil {
		e.terminate(ctx, inv)
		return &Result{ExitCode: exitCodeUnknown, Error: ctx.Err(), Duration: elapsed}
	}

	result := &Result{
		Output:    strings.TrimSpace(stdout.String()),
		ErrOutput: strings.TrimSpace(stderr.String()),
		Duration:  elapsed,
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			result.ExitCode = exitCodeUnknown
			result.Error = fmt.Errorf("start %s: %w", target, runErr)
			return result
		}
		result.ExitCode = ExitCode(exitErr.ExitCode())
	}

	if !result.ExitCode.IsSuccess() || (strictStderr && result.ErrOutput != "") {
		result.Error = &ScriptError{ExitCode: result.ExitCode, Stdout: result.Output, Stderr: result.ErrOutput}
	}

	e.logger.Debug("interpreter exited", "target", target, "exit_code", result.ExitCode, "duration", elapsed)
	return result
}

func (e *Executor) terminate(ctx context.Context, inv Invocation) {
	t, ok := e.policy.(Terminator)
	if !ok {
		return
	}
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminateTimeout)
	defer cancel()
	if err := t.Terminate(tctx, inv); err != nil {
		e.logger.Warn("failed to terminate workload", "id", inv.ID, "error", err)
	}
}
