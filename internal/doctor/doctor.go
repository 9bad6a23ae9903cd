// Package doctor diagnoses why the local server cannot be launched or reached.
package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/paths"
	"github.com/oswaldb22/apple-intelligence-js-sdk/pkg/launcher"
)

type Status string

const (
	StatusOK   Status = "ok"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
	StatusInfo Status = "info"
)

// minDarwinMajor is the Darwin release of macOS 26, the first with on-device models.
const minDarwinMajor = 25

type Check struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

type Report struct {
	Checks []Check               `json:"checks"`
	State  *launcher.ServerState `json:"state,omitempty"`
	Health json.RawMessage       `json:"health,omitempty"`
}

// OK reports whether no check failed.
func (r Report) OK() bool {
	for _, c := range r.Checks {
		if c.Status == StatusFail {
			return false
		}
	}
	return true
}

// WriteText renders the report for a terminal.
func (r Report) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "Apple Intelligence SDK Doctor"); err != nil {
		return err
	}
	for _, c := range r.Checks {
		if _, err := fmt.Fprintf(w, "[%-4s] %-10s %s\n", c.Status, c.Name, c.Message); err != nil {
			return err
		}
	}
	if len(r.Health) > 0 {
		if _, err := fmt.Fprintf(w, "health: %s\n", strings.TrimSpace(string(r.Health))); err != nil {
			return err
		}
	}
	return nil
}

// Config selects what to inspect.
type Config struct {
	Layout  paths.Layout
	AppPath string
	Client  *http.Client
}

var (
	goos          = runtime.GOOS
	goarch        = runtime.GOARCH
	kernelRelease = osRelease
)

// Run executes every check. It never fails; problems are reported as checks.
func Run(ctx context.Context, cfg Config) Report {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: launcher.DefaultProbeTimeout}
	}

	var r Report
	r.Checks = append(r.Checks, checkPlatform(), checkServerBinary(cfg.AppPath), checkOSRelease())

	stateCheck, st := checkState(cfg.Layout.State)
	r.Checks = append(r.Checks, stateCheck)
	if st != nil {
		r.State = st
		healthCheck, body := checkHealth(ctx, cfg.Client, st.BaseURL)
		r.Checks = append(r.Checks, healthCheck)
		r.Health = body
	}
	return r
}

func checkPlatform() Check {
	c := Check{Name: "platform", Message: goos + "/" + goarch}
	if goos == "darwin" && goarch == "arm64" {
		c.Status = StatusOK
		return c
	}
	c.Status = StatusWarn
	c.Message += ": built for macOS on Apple Silicon; other platforms only get the mock model"
	return c
}

func checkServerBinary(appPath string) Check {
	c := Check{Name: "server"}
	path, err := paths.ResolveServerBinary(appPath)
	if err != nil {
		c.Status = StatusFail
		c.Message = err.Error()
		return c
	}

	exe := path
	if strings.HasSuffix(path, ".app") {
		name := strings.TrimSuffix(filepath.Base(path), ".app")
		exe = filepath.Join(path, "Contents", "MacOS", name)
	}
	info, err := os.Stat(exe)
	switch {
	case err != nil:
		c.Status = StatusFail
		c.Message = fmt.Sprintf("%s found but %s is missing", path, exe)
	case runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0:
		c.Status = StatusFail
		c.Message = fmt.Sprintf("%s is not executable (chmod +x needed?)", exe)
	default:
		c.Status = StatusOK
		c.Message = path
	}
	return c
}

func checkOSRelease() Check {
	c := Check{Name: "os"}
	release, err := kernelRelease()
	if err != nil {
		c.Status = StatusWarn
		c.Message = "cannot read OS release: " + err.Error()
		return c
	}
	if goos != "darwin" {
		c.Status = StatusInfo
		c.Message = "kernel " + release
		return c
	}

	major, err := strconv.Atoi(strings.SplitN(release, ".", 2)[0])
	switch {
	case err != nil:
		c.Status = StatusWarn
		c.Message = "unrecognized Darwin release " + release
	case major >= minDarwinMajor:
		c.Status = StatusOK
		c.Message = fmt.Sprintf("Darwin %d supports on-device models", major)
	default:
		c.Status = StatusWarn
		c.Message = fmt.Sprintf("Darwin %d is too old for on-device models (requires macOS 26+)", major)
	}
	return c
}

func checkState(path string) (Check, *launcher.ServerState) {
	c := Check{Name: "state"}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		c.Status = StatusInfo
		c.Message = "no state file; server likely stopped"
		return c, nil
	}

	st := launcher.NewStateStore(path).Read()
	if st == nil {
		c.Status = StatusFail
		c.Message = "invalid state file at " + path
		return c, nil
	}
	c.Status = StatusInfo
	c.Message = fmt.Sprintf("pid %d at %s (started %s)", st.PID, st.BaseURL,
		time.Unix(st.StartedAt, 0).Format(time.RFC3339))
	return c, st
}

func checkHealth(ctx context.Context, client *http.Client, baseURL string) (Check, json.RawMessage) {
	c := Check{Name: "health"}
	endpoint, err := launcher.HealthURL(baseURL)
	if err != nil {
		c.Status = StatusFail
		c.Message = err.Error()
		return c, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.Status = StatusFail
		c.Message = err.Error()
		return c, nil
	}
	resp, err := client.Do(req)
	if err != nil {
		c.Status = StatusFail
		c.Message = fmt.Sprintf("failed to connect to %s: %v", endpoint, err)
		return c, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.Status = StatusFail
		c.Message = fmt.Sprintf("server returned %d", resp.StatusCode)
		return c, nil
	}

	c.Status = StatusOK
	c.Message = "server is reachable and healthy"
	if !json.Valid(body) {
		return c, nil
	}
	return c, json.RawMessage(body)
}
