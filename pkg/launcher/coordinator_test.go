package launcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"
)

func TestEnsureReadyReusesHealthyServer(t *testing.T) {
	srv := healthyServer(t)
	store := newTestStore(t)
	seeded := stateFor(srv.URL, 42)
	require.NoError(t, store.Write(seeded))

	l := &stubLauncher{}
	c := NewCoordinator(Config{Store: store, Launcher: l, LockPath: filepath.Join(t.TempDir(), "launch.lock")})

	got, err := c.EnsureReady(context.Background(), EnsureOptions{})
	require.NoError(t, err)
	require.Equal(t, seeded, *got)
	require.Zero(t, l.count(), "a healthy server must not trigger a launch")
}

func TestEnsureReadyDeletesStaleStateBeforeLaunch(t *testing.T) {
	srv := healthyServer(t)
	store := newTestStore(t)
	require.NoError(t, store.Write(stateFor(deadURL(t), 7)))

	fresh := stateFor(srv.URL, 8)
	var goneBeforeLaunch bool
	l := &stubLauncher{onLaunch: func(req LaunchRequest) {
		_, err := os.Stat(store.Path())
		goneBeforeLaunch = errors.Is(err, os.ErrNotExist)
		fresh.Token = req.Token
		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = store.Write(fresh)
		}()
	}}
	c := NewCoordinator(Config{Store: store, Launcher: l})

	got, err := c.EnsureReady(context.Background(), EnsureOptions{Timeout: 5 * time.Second, PollInterval: 20 * time.Millisecond})
	require.NoError(t, err)
	require.True(t, goneBeforeLaunch, "stale state must be removed before launching")
	require.Equal(t, 1, l.count())
	require.Equal(t, fresh, *got)
}

func TestEnsureReadyLaunchArguments(t *testing.T) {
	srv := healthyServer(t)
	store := newTestStore(t)
	l := &stubLauncher{onLaunch: func(req LaunchRequest) {
		st := stateFor(srv.URL, 1)
		st.Token = req.Token
		_ = store.Write(st)
	}}
	c := NewCoordinator(Config{Store: store, Launcher: l})

	got, err := c.EnsureReady(context.Background(), EnsureOptions{PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	require.Equal(t, 1, l.count())
	req := l.calls[0]
	require.Equal(t, store.Path(), req.StatePath)
	require.Zero(t, req.Port)
	require.Len(t, req.Token, 32)
	require.Equal(t, req.Token, got.Token)
	require.Equal(t, []string{"--state", store.Path(), "--port", "0", "--token", req.Token}, req.Args())
}

func TestEnsureReadyTimesOut(t *testing.T) {
	store := newTestStore(t)
	l := &stubLauncher{}
	c := NewCoordinator(Config{Store: store, Launcher: l})

	start := time.Now()
	_, err := c.EnsureReady(context.Background(), EnsureOptions{Timeout: 2000 * time.Millisecond, PollInterval: 500 * time.Millisecond})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	require.Contains(t, err.Error(), "timed out waiting for server to become ready")
	require.GreaterOrEqual(t, elapsed, 2000*time.Millisecond)
	require.Less(t, elapsed, 2500*time.Millisecond)
	require.Equal(t, 1, l.count())
}

func TestEnsureReadyLaunchFailureIsImmediate(t *testing.T) {
	store := newTestStore(t)
	lockPath := filepath.Join(t.TempDir(), "launch.lock")
	l := &stubLauncher{err: errors.New("exec: no such file")}
	c := NewCoordinator(Config{Store: store, Launcher: l, LockPath: lockPath})

	start := time.Now()
	_, err := c.EnsureReady(context.Background(), EnsureOptions{Timeout: 10 * time.Second})
	require.ErrorIs(t, err, ErrLaunchFailed)
	require.NotErrorIs(t, err, ErrTimeout)
	require.Less(t, time.Since(start), time.Second)
	requireNoFile(t, lockPath)
}

func TestEnsureReadyHonorsCancellation(t *testing.T) {
	store := newTestStore(t)
	c := NewCoordinator(Config{Store: store, Launcher: &stubLauncher{}})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := c.EnsureReady(ctx, EnsureOptions{Timeout: 10 * time.Second, PollInterval: 50 * time.Millisecond})
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestEnsureReadyWaitsForConcurrentLauncher(t *testing.T) {
	srv := healthyServer(t)
	store := newTestStore(t)
	lockPath := filepath.Join(t.TempDir(), "launch.lock")

	unlock, err := acquireLaunchLock(lockPath, time.Minute)
	require.NoError(t, err)
	defer unlock()

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = store.Write(stateFor(srv.URL, 5))
	}()

	l := &stubLauncher{}
	c := NewCoordinator(Config{Store: store, Launcher: l, LockPath: lockPath})
	got, err := c.EnsureReady(context.Background(), EnsureOptions{Timeout: 5 * time.Second, PollInterval: 20 * time.Millisecond})
	require.NoError(t, err)
	require.Equal(t, 5, got.PID)
	require.Zero(t, l.count(), "the lock holder launches, not us")
}

func TestEnsureReadyKeepsLiveHolderLockPastItsAge(t *testing.T) {
	if _, known := processAlive(os.Getpid()); !known {
		t.Skip("process liveness unavailable on this platform")
	}
	store := newTestStore(t)
	lockPath := filepath.Join(t.TempDir(), "launch.lock")

	unlock, err := acquireLaunchLock(lockPath, 10*time.Second)
	require.NoError(t, err)
	defer unlock()
	old := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	l := &stubLauncher{}
	c := NewCoordinator(Config{Store: store, Launcher: l, LockPath: lockPath})
	_, err = c.EnsureReady(context.Background(), EnsureOptions{Timeout: 500 * time.Millisecond, PollInterval: 50 * time.Millisecond})
	require.ErrorIs(t, err, ErrTimeout)
	require.Zero(t, l.count(), "a live holder keeps the lock however old it is")
}

func TestEnsureReadyReportsFailureAfterHolderGivesUp(t *testing.T) {
	store := newTestStore(t)
	lockPath := filepath.Join(t.TempDir(), "launch.lock")

	unlock, err := acquireLaunchLock(lockPath, time.Minute)
	require.NoError(t, err)
	time.AfterFunc(100*time.Millisecond, func() { _ = unlock() })

	l := &stubLauncher{err: errors.New("exec: permission denied")}
	rec := &spyRecorder{}
	c := NewCoordinator(Config{Store: store, Launcher: l, LockPath: lockPath, Recorder: rec})

	start := time.Now()
	_, err = c.EnsureReady(context.Background(), EnsureOptions{Timeout: 10 * time.Second, PollInterval: 20 * time.Millisecond})
	require.ErrorIs(t, err, ErrLaunchFailed)
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, 1, l.count())
	require.Equal(t, []string{OutcomeFailed}, rec.outcomes)
	requireNoFile(t, lockPath)
}

func TestEnsureReadyLaunchesAfterHolderReleasesWithoutServer(t *testing.T) {
	srv := healthyServer(t)
	store := newTestStore(t)
	lockPath := filepath.Join(t.TempDir(), "launch.lock")

	unlock, err := acquireLaunchLock(lockPath, time.Minute)
	require.NoError(t, err)
	time.AfterFunc(100*time.Millisecond, func() { _ = unlock() })

	l := &stubLauncher{onLaunch: func(req LaunchRequest) {
		_ = store.Write(stateFor(srv.URL, 11))
	}}
	rec := &spyRecorder{}
	c := NewCoordinator(Config{Store: store, Launcher: l, LockPath: lockPath, Recorder: rec})

	got, err := c.EnsureReady(context.Background(), EnsureOptions{Timeout: 5 * time.Second, PollInterval: 20 * time.Millisecond})
	require.NoError(t, err)
	require.Equal(t, 11, got.PID)
	require.Equal(t, 1, l.count())
	require.Equal(t, []string{OutcomeLaunched}, rec.outcomes)
}

func TestEnsureReadyContinuesWhenStaleStateCannotBeRemoved(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	store := NewStateStore(filepath.Join(dir, "state.json"))
	require.NoError(t, store.Write(stateFor(deadURL(t), 7)))
	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

	l := &stubLauncher{}
	c := NewCoordinator(Config{Store: store, Launcher: l})

	_, err := c.EnsureReady(context.Background(), EnsureOptions{Timeout: 300 * time.Millisecond, PollInterval: 50 * time.Millisecond})
	require.ErrorIs(t, err, ErrTimeout)
	require.NotContains(t, err.Error(), "remove stale state")
	require.Equal(t, 1, l.count(), "a stale state that cannot be deleted must not block the launch")
}

func TestEnsureReadyWatcherWakesPollLoop(t *testing.T) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	_ = w.Close()

	srv := healthyServer(t)
	store := newTestStore(t)
	l := &stubLauncher{onLaunch: func(LaunchRequest) {
		go func() {
			time.Sleep(200 * time.Millisecond)
			_ = store.Write(stateFor(srv.URL, 3))
		}()
	}}
	c := NewCoordinator(Config{Store: store, Launcher: l, Watch: true})

	start := time.Now()
	got, err := c.EnsureReady(context.Background(), EnsureOptions{Timeout: 8 * time.Second, PollInterval: 5 * time.Second})
	require.NoError(t, err)
	require.Equal(t, 3, got.PID)
	require.Less(t, time.Since(start), 3*time.Second, "the watcher should beat the 5s tick")
}

func TestRandomTokens(t *testing.T) {
	a, err := RandomTokens{}.Generate()
	require.NoError(t, err)
	b, err := RandomTokens{}.Generate()
	require.NoError(t, err)
	require.Len(t, a, 32)
	require.NotEqual(t, a, b)
}
