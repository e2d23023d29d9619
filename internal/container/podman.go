// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const selinuxEnforcePath = "/sys/fs/selinux/enforce"

// PodmanEngine drives the podman CLI. On SELinux-enforcing hosts volume
// mounts get a shared :z label so the container can read them.
type PodmanEngine struct {
	*BaseCLIEngine
}

// NewPodmanEngine creates a Podman engine using the podman binary on PATH.
func NewPodmanEngine(opts ...BaseCLIEngineOption) *PodmanEngine {
	path, _ := exec.LookPath("podman")
	all := append([]BaseCLIEngineOption{WithVolumeFormatter(selinuxLabeler(isSELinuxEnforcing))}, opts...)
	return &PodmanEngine{BaseCLIEngine: NewBaseCLIEngine(path, all...)}
}

func (e *PodmanEngine) Name() string {
	return string(EngineTypePodman)
}

// Available reports whether podman runs.
func (e *PodmanEngine) Available() bool {
	if e.BinaryPath() == "" {
		return false
	}
	return e.CreateCommand(context.Background(), "version", "--format", "{{.Version}}").Run() == nil
}

// Version returns the podman version.
func (e *PodmanEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommandWithOutput(ctx, "version", "--format", "{{.Version}}")
	if err != nil {
		return "", fmt.Errorf("failed to get podman version: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ImageExists reports whether image is present locally.
func (e *PodmanEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	return e.RunCommandStatus(ctx, "image", "exists", image) == nil, nil
}

func isSELinuxEnforcing() bool {
	data, err := os.ReadFile(selinuxEnforcePath)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}

// selinuxLabeler appends the :z label unless SELinux is off or the spec
// already carries a label.
func selinuxLabeler(enforcing func() bool) VolumeFormatFunc {
	return func(volume string) string {
		if !enforcing() {
			return volume
		}
		mount, err := ParseVolumeMount(volume)
		if err != nil || mount.SELinux != "" {
			return volume
		}
		mount.SELinux = "z"
		return FormatVolumeMount(mount)
	}
}
