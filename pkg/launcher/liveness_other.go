//go:build !unix && !windows

package launcher

// processAlive cannot tell on this platform; callers fall back to lock age.
func processAlive(int) (alive, known bool) { return false, false }
