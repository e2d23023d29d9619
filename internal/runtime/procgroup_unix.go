// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package runtime

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// processGroup is the child's own process group. The kernel tracks
// membership, so attach and close have nothing to do.
type processGroup struct{}

// newProcessGroup starts the child as the leader of a new process group
// and makes context cancellation SIGKILL the whole group, so grandchildren
// spawned by the script die with it.
func newProcessGroup(cmd *exec.Cmd) (*processGroup, error) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	return &processGroup{}, nil
}

func (g *processGroup) attach(*exec.Cmd) error { return nil }

func (g *processGroup) close() {}
