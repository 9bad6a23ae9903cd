//go:build !unix && !windows

package doctor

import "runtime"

func osRelease() (string, error) { return runtime.GOOS, nil }
