//go:build !unix && !windows

package launcher

import "syscall"

func detachedProcAttr() *syscall.SysProcAttr { return nil }
