//go:build unix

package launcher

import (
	"errors"
	"os"
	"syscall"
)

// processAlive probes pid with signal 0. EPERM means the process exists
// under another user.
func processAlive(pid int) (alive, known bool) {
	if pid <= 0 {
		return false, true
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false, true
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM), true
}
