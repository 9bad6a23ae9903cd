package launcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// healthyServer answers 200 on /health and 404 elsewhere.
func healthyServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true}`))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// deadURL returns the address of a server that has already been closed.
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func stateFor(baseURL string, pid int) ServerState {
	return ServerState{
		Ready:     true,
		PID:       pid,
		Port:      4321,
		BaseURL:   baseURL + "/v1",
		Token:     "tok",
		Version:   "test",
		StartedAt: time.Now().Unix(),
	}
}

func newTestStore(t *testing.T) *StateStore {
	t.Helper()
	return NewStateStore(filepath.Join(t.TempDir(), "state.json"))
}

type stubLauncher struct {
	mu       sync.Mutex
	calls    []LaunchRequest
	err      error
	onLaunch func(LaunchRequest)
}

func (s *stubLauncher) Launch(_ context.Context, req LaunchRequest) error {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.onLaunch != nil {
		s.onLaunch(req)
	}
	return nil
}

func (s *stubLauncher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func requireNoFile(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// exitedPID returns the pid of a child that has already been reaped.
func exitedPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run=^$")
	require.NoError(t, cmd.Run())
	return cmd.Process.Pid
}

type spyRecorder struct {
	mu       sync.Mutex
	outcomes []string
	launches []bool
}

func (s *spyRecorder) ObserveEnsure(outcome string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
}

func (s *spyRecorder) IncProbe(bool) {}

func (s *spyRecorder) IncLaunch(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launches = append(s.launches, ok)
}
