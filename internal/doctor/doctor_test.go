package doctor

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/paths"
	"github.com/oswaldb22/apple-intelligence-js-sdk/pkg/launcher"
)

func fakePlatform(t *testing.T, osName, arch, release string) {
	t.Helper()
	prevOS, prevArch, prevRelease := goos, goarch, kernelRelease
	goos, goarch = osName, arch
	kernelRelease = func() (string, error) { return release, nil }
	t.Cleanup(func() { goos, goarch, kernelRelease = prevOS, prevArch, prevRelease })
}

func executable(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), paths.ServerBinaryName)
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))
	return bin
}

func find(t *testing.T, r Report, name string) Check {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %q missing from %+v", name, r.Checks)
	return Check{}
}

func TestRunHealthyServer(t *testing.T) {
	fakePlatform(t, "darwin", "arm64", "25.0.0")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"appleIntelligence":{"available":true,"notes":[]}}`))
	}))
	defer srv.Close()

	layout := paths.LayoutFor(t.TempDir())
	require.NoError(t, launcher.NewStateStore(layout.State).Write(launcher.ServerState{
		Ready: true, PID: 7, Port: 1, BaseURL: srv.URL + "/v1", StartedAt: time.Now().Unix(),
	}))

	r := Run(context.Background(), Config{Layout: layout, AppPath: executable(t)})
	require.True(t, r.OK(), "%+v", r.Checks)
	require.Equal(t, StatusOK, find(t, r, "platform").Status)
	require.Equal(t, StatusOK, find(t, r, "os").Status)
	require.Equal(t, StatusOK, find(t, r, "server").Status)
	require.Equal(t, StatusOK, find(t, r, "health").Status)
	require.NotNil(t, r.State)
	require.Contains(t, string(r.Health), `"available":true`)

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	require.Contains(t, buf.String(), "server is reachable and healthy")
}

func TestRunWithoutStateOrServer(t *testing.T) {
	fakePlatform(t, "linux", "amd64", "6.1.0")
	dir := t.TempDir()

	r := Run(context.Background(), Config{Layout: paths.LayoutFor(dir), AppPath: filepath.Join(dir, "missing")})
	require.False(t, r.OK())
	require.Equal(t, StatusWarn, find(t, r, "platform").Status)
	require.Equal(t, StatusInfo, find(t, r, "os").Status)
	require.Equal(t, StatusFail, find(t, r, "server").Status)
	require.Equal(t, StatusInfo, find(t, r, "state").Status)
	for _, c := range r.Checks {
		require.NotEqual(t, "health", c.Name)
	}
}

func TestRunFlagsInvalidStateAndOldDarwin(t *testing.T) {
	fakePlatform(t, "darwin", "arm64", "23.4.0")
	layout := paths.LayoutFor(t.TempDir())
	require.NoError(t, os.WriteFile(layout.State, []byte("{broken"), 0o600))

	r := Run(context.Background(), Config{Layout: layout, AppPath: executable(t)})
	require.Equal(t, StatusWarn, find(t, r, "os").Status)
	require.Equal(t, StatusFail, find(t, r, "state").Status)
	require.Nil(t, r.State)
}

func TestRunUnreachableServer(t *testing.T) {
	fakePlatform(t, "darwin", "arm64", "25.1.0")
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	layout := paths.LayoutFor(t.TempDir())
	require.NoError(t, launcher.NewStateStore(layout.State).Write(launcher.ServerState{Ready: true, PID: 7, Port: 1, BaseURL: base}))

	r := Run(context.Background(), Config{Layout: layout, AppPath: executable(t)})
	require.Equal(t, StatusFail, find(t, r, "health").Status)
}

func TestServerBinaryNotExecutable(t *testing.T) {
	if goos == "windows" {
		t.Skip("no exec bit on windows")
	}
	bin := filepath.Join(t.TempDir(), "server")
	require.NoError(t, os.WriteFile(bin, []byte("x"), 0o644))
	require.Equal(t, StatusFail, checkServerBinary(bin).Status)

	app := filepath.Join(t.TempDir(), "AppleIntelligenceServer.app")
	require.NoError(t, os.MkdirAll(filepath.Join(app, "Contents", "MacOS"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(app, "Contents", "MacOS", "AppleIntelligenceServer"), []byte("x"), 0o755))
	require.Equal(t, StatusOK, checkServerBinary(app).Status)
}
