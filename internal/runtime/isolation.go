// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/invowk/scriptrun/internal/container"
)

const (
	// DefaultContainerImage is the image ContainerPolicy uses when none is configured.
	DefaultContainerImage = "python:3.12-slim"

	// containerInterpreter is the interpreter name inside the image.
	containerInterpreter = "python"
)

type (
	// Invocation is everything a policy needs to build one interpreter process.
	Invocation struct {
		// ID names the invocation; container policies use it as the container name.
		ID string
		// Argv starts with the host interpreter path.
		Argv []string
		// WorkDir is the working directory; empty means inherit.
		WorkDir string
		// Mounts are host directories the process must be able to read.
		Mounts []string
		// Env is appended to the inherited environment.
		Env []string
	}

	// IsolationPolicy turns an Invocation into an unstarted command.
	IsolationPolicy interface {
		Name() string
		Command(ctx context.Context, inv Invocation) (*exec.Cmd, error)
	}

	// Terminator is implemented by policies whose workload can outlive the
	// killed client process. The executor calls it after a timeout.
	Terminator interface {
		Terminate(ctx context.Context, inv Invocation) error
	}

	// NativePolicy runs the interpreter directly on the host.
	NativePolicy struct{}

	// ContainerEngine is the subset of container.Engine that ContainerPolicy uses.
	ContainerEngine interface {
		Name() string
		RunArgs(opts container.RunOptions) []string
		CreateCommand(ctx context.Context, args ...string) *exec.Cmd
		Remove(ctx context.Context, containerID string, force bool) error
	}

	// ContainerPolicy runs the interpreter in a fresh container with no
	// network and read-only mounts of the script directories.
	ContainerPolicy struct {
		Engine ContainerEngine
		Image  string
	}
)

var errEmptyArgv = errors.New("empty argv")

// Name returns "native".
func (NativePolicy) Name() string { return "native" }

// Command builds an exec.Cmd for the host.
func (NativePolicy) Command(ctx context.Context, inv Invocation) (*exec.Cmd, error) {
	if len(inv.Argv) == 0 {
		return nil, errEmptyArgv
	}
	cmd := exec.CommandContext(ctx, inv.Argv[0], inv.Argv[1:]...)
	cmd.Dir = inv.WorkDir
	cmd.Env = append(os.Environ(), inv.Env...)
	return cmd, nil
}

// Name returns "container".
func (p *ContainerPolicy) Name() string { return "container" }

// Command wraps argv in "<engine> run". The host interpreter path is replaced
// by the image's python, and every path argument must live under a mount.
func (p *ContainerPolicy) Command(ctx context.Context, inv Invocation) (*exec.Cmd, error) {
	if len(inv.Argv) == 0 {
		return nil, errEmptyArgv
	}

	image := p.Image
	if image == "" {
		image = DefaultContainerImage
	}

	env := make(map[string]string, len(inv.Env))
	for _, kv := range inv.Env {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = v
		}
	}

	volumes := make([]string, 0, len(inv.Mounts))
	for _, dir := range inv.Mounts {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		volumes = append(volumes, container.FormatVolumeMount(container.VolumeMount{
			HostPath:      abs,
			ContainerPath: abs,
			ReadOnly:      true,
		}))
	}

	args := p.Engine.RunArgs(container.RunOptions{
		Image:       image,
		Command:     append([]string{containerInterpreter}, inv.Argv[1:]...),
		WorkDir:     inv.WorkDir,
		Env:         env,
		Volumes:     volumes,
		Network:     "none",
		Name:        inv.ID,
		Remove:      true,
		Interactive: true,
	})
	return p.Engine.CreateCommand(ctx, args...), nil
}

// Terminate force-removes the container named after the invocation.
func (p *ContainerPolicy) Terminate(ctx context.Context, inv Invocation) error {
	if inv.ID == "" {
		return nil
	}
	return p.Engine.Remove(ctx, inv.ID, true)
}

// newInvocationID returns a short random name usable as a container name.
func newInvocationID() string {
	return "scriptrun-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
