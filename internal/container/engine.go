// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

const (
	EngineTypePodman EngineType = "podman"
	EngineTypeDocker EngineType = "docker"
)

// ErrEngineNotAvailable is wrapped by EngineNotAvailableError.
var ErrEngineNotAvailable = errors.New("container engine not available")

type (
	// EngineType identifies a container engine.
	EngineType string

	// Engine is a container engine driven through its CLI.
	Engine interface {
		Name() string
		Available() bool
		Version(ctx context.Context) (string, error)
		ImageExists(ctx context.Context, image string) (bool, error)
		Pull(ctx context.Context, image string) error
		Run(ctx context.Context, opts RunOptions) (*RunResult, error)
		Remove(ctx context.Context, containerID string, force bool) error
		RunArgs(opts RunOptions) []string
		CreateCommand(ctx context.Context, args ...string) *exec.Cmd
	}

	// RunOptions describes one "run" invocation.
	RunOptions struct {
		Image   string
		Command []string
		WorkDir string
		Env     map[string]string
		// Volumes are preformatted "host:container[:opts]" specs.
		Volumes []string
		// Network is passed to --network when set ("none" disables networking).
		Network string
		Name    string
		Remove  bool
		// Interactive keeps stdin open (-i).
		Interactive bool
		Stdin       io.Reader
		Stdout      io.Writer
		Stderr      io.Writer
	}

	// RunResult is the outcome of Run.
	RunResult struct {
		ExitCode int
		Error    error
	}

	// EngineNotAvailableError reports that no usable engine binary was found.
	EngineNotAvailableError struct {
		Engine string
		Reason string
	}
)

func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

func (e *EngineNotAvailableError) Unwrap() error { return ErrEngineNotAvailable }

// NewEngine returns the preferred engine, or the other one when the preferred
// engine is not installed.
func NewEngine(preferred EngineType, opts ...BaseCLIEngineOption) (Engine, error) {
	var first, second Engine
	switch preferred {
	case EngineTypePodman:
		first, second = NewPodmanEngine(opts...), NewDockerEngine(opts...)
	case EngineTypeDocker:
		first, second = NewDockerEngine(opts...), NewPodmanEngine(opts...)
	default:
		return nil, fmt.Errorf("unknown container engine type: %s", preferred)
	}

	if first.Available() {
		return first, nil
	}
	if second.Available() {
		return second, nil
	}
	return nil, &EngineNotAvailableError{
		Engine: string(preferred),
		Reason: fmt.Sprintf("%s is not installed or not accessible, and %s fallback is also not available", first.Name(), second.Name()),
	}
}

// AutoDetectEngine returns Podman if available, then Docker.
func AutoDetectEngine(opts ...BaseCLIEngineOption) (Engine, error) {
	engine, err := NewEngine(EngineTypePodman, opts...)
	if err != nil {
		return nil, &EngineNotAvailableError{
			Engine: "any",
			Reason: "no container engine (podman or docker) is available on this system",
		}
	}
	return engine, nil
}
