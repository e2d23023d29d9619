// SPDX-License-Identifier: MPL-2.0

//go:build windows

package runtime

import (
	"fmt"
	"os/exec"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// processGroup is a job object with KILL_ON_JOB_CLOSE set. Every process the
// script spawns inherits the job, so terminating or closing it ends the tree.
type processGroup struct {
	job windows.Handle
}

// newProcessGroup hides the console window, creates the job and makes context
// cancellation terminate every process in it.
func newProcessGroup(cmd *exec.Cmd) (*processGroup, error) {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create job object: %w", err)
	}
	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
		},
	}
	if _, err := windows.SetInformationJobObject(job, windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)), uint32(unsafe.Sizeof(info))); err != nil {
		_ = windows.CloseHandle(job)
		return nil, fmt.Errorf("configure job object: %w", err)
	}

	g := &processGroup{job: job}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.CREATE_NO_WINDOW,
	}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := windows.TerminateJobObject(g.job, 1); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	return g, nil
}

// attach assigns the started child to the job. Processes it spawned before
// the assignment stay outside the job.
func (g *processGroup) attach(cmd *exec.Cmd) error {
	h, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(cmd.Process.Pid))
	if err != nil {
		return fmt.Errorf("open process %d: %w", cmd.Process.Pid, err)
	}
	defer windows.CloseHandle(h)
	if err := windows.AssignProcessToJobObject(g.job, h); err != nil {
		return fmt.Errorf("assign process %d to job: %w", cmd.Process.Pid, err)
	}
	return nil
}

// close releases the job handle, which kills anything still running in it.
func (g *processGroup) close() {
	_ = windows.CloseHandle(g.job)
}
