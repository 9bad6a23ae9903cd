//go:build unix

package launcher

import "syscall"

// detachedProcAttr starts the child in its own session so it outlives the caller's terminal.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
