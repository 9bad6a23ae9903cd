package launcher

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrLaunchInProgress reports that another caller holds the launch lock.
var ErrLaunchInProgress = errors.New("launch already in progress")

// acquireLaunchLock obtains the exclusive launch lock at path, writing
// pid/timestamp into the file. A lock whose recorded pid is gone is reclaimed.
// When the pid cannot be read or checked, a lock older than staleAfter is
// reclaimed instead. The returned unlock only removes the file while it still
// holds this caller's contents.
func acquireLaunchLock(path string, staleAfter time.Duration) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			stamp := fmt.Sprintf("pid=%d\nstarted=%s\n", os.Getpid(), time.Now().Format(time.RFC3339Nano))
			_, _ = f.WriteString(stamp)
			_ = f.Close()
			return func() error { return releaseLaunchLock(path, stamp) }, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}

		raw, readErr := os.ReadFile(path)
		if errors.Is(readErr, os.ErrNotExist) {
			// released between our open and read
			continue
		}
		if !lockAbandoned(path, raw, readErr, staleAfter) {
			return nil, ErrLaunchInProgress
		}
		if readErr != nil {
			err = os.Remove(path)
		} else {
			err = releaseLaunchLock(path, string(raw))
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return nil, ErrLaunchInProgress
}

// lockAbandoned reports whether the holder recorded in raw has exited. Without
// a usable pid it falls back to the file's age.
func lockAbandoned(path string, raw []byte, readErr error, staleAfter time.Duration) bool {
	if readErr == nil {
		if pid, ok := lockHolder(raw); ok {
			if alive, known := processAlive(pid); known {
				return !alive
			}
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return staleAfter > 0 && time.Since(info.ModTime()) > staleAfter
}

func lockHolder(raw []byte) (int, bool) {
	for _, line := range bytes.Split(raw, []byte("\n")) {
		v, ok := strings.CutPrefix(string(line), "pid=")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(v))
		return pid, err == nil && pid > 0
	}
	return 0, false
}

func releaseLaunchLock(path, stamp string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if string(raw) != stamp {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
