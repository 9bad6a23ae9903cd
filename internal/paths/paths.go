package paths

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	appDirName = "apple-intelligence-sdk"

	// ServerBinaryName is the server executable looked up next to the caller and on PATH.
	ServerBinaryName = "apple-intelligence-server"
	// AppBundleName is the macOS bundle shipped by the platform package.
	AppBundleName = "AppleIntelligenceServer.app"
)

// Environment overrides.
const (
	EnvCacheDir = "APPLE_INTELLIGENCE_CACHE_DIR"
	EnvAppPath  = "APPLE_INTELLIGENCE_APP_PATH"
)

// ErrServerNotFound is returned when no server binary can be located.
var ErrServerNotFound = errors.New("server binary not found")

// CacheDir resolves the per-user cache directory from APPLE_INTELLIGENCE_CACHE_DIR,
// falling back to os.UserCacheDir (~/Library/Caches on macOS).
func CacheDir() string {
	if v := os.Getenv(EnvCacheDir); v != "" {
		return v
	}
	if base, err := os.UserCacheDir(); err == nil && base != "" {
		return filepath.Join(base, appDirName)
	}
	return filepath.Join(os.TempDir(), appDirName)
}

// Layout names the files kept under one cache directory.
type Layout struct {
	Dir       string
	State     string
	Lock      string
	Logs      string
	ServerLog string
}

// LayoutFor returns the layout rooted at dir.
func LayoutFor(dir string) Layout {
	logs := filepath.Join(dir, "logs")
	return Layout{
		Dir:       dir,
		State:     filepath.Join(dir, "state.json"),
		Lock:      filepath.Join(dir, "launch.lock"),
		Logs:      logs,
		ServerLog: filepath.Join(logs, "server.out"),
	}
}

// Ensure creates the cache and log directories.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.Dir, l.Logs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// StateFilePath returns the shared server state file.
func StateFilePath() string { return LayoutFor(CacheDir()).State }

// LockFilePath returns the advisory launch lock.
func LockFilePath() string { return LayoutFor(CacheDir()).Lock }

// LogDir returns the directory holding server logs.
func LogDir() string { return LayoutFor(CacheDir()).Logs }

// ServerLogPath returns the file receiving a launched server's stdout and stderr.
func ServerLogPath() string { return LayoutFor(CacheDir()).ServerLog }

// EnsureBaseDirs ensures required directories exist.
func EnsureBaseDirs() error { return LayoutFor(CacheDir()).Ensure() }

// ServerCandidates lists the locations ServerBinary probes, in order.
func ServerCandidates() []string {
	var out []string
	if v := os.Getenv(EnvAppPath); v != "" {
		out = append(out, v)
	}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		out = append(out, filepath.Join(dir, ServerBinaryName), filepath.Join(dir, AppBundleName))
	}
	if p, err := exec.LookPath(ServerBinaryName); err == nil {
		out = append(out, p)
	}
	return out
}

// ServerBinary returns the first existing server binary or app bundle.
// An explicit APPLE_INTELLIGENCE_APP_PATH that does not exist is an error rather than
// silently falling through to other candidates.
func ServerBinary() (string, error) {
	return ResolveServerBinary(os.Getenv(EnvAppPath))
}

// ResolveServerBinary is ServerBinary with an explicit override taking the
// place of the environment variable.
func ResolveServerBinary(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrServerNotFound, explicit, err)
		}
		return explicit, nil
	}

	candidates := ServerCandidates()
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w (looked in: %s)", ErrServerNotFound, strings.Join(candidates, ", "))
}
