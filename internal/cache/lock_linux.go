// SPDX-License-Identifier: MPL-2.0

//go:build linux

package cache

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// errFlockUnavailable mirrors lock_other.go. acquireFileLock never returns
// it on Linux.
var errFlockUnavailable = errors.New("flock not available on this platform")

// fileLock is an exclusive flock on a side file next to the registry. The
// kernel drops it when the descriptor closes, including on a crash.
type fileLock struct {
	file   *os.File
	logger *log.Logger
}

func acquireFileLock(path string, logger *log.Logger) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return &fileLock{file: f, logger: logger}, nil
}

// Release unlocks and closes the file. Repeated calls are no-ops.
func (l *fileLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.logger.Debug("flock unlock failed", "err", err)
	}
	if err := l.file.Close(); err != nil {
		l.logger.Debug("lock file close failed", "err", err)
	}
	l.file = nil
}
