package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultTimeout      = 20 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
)

var (
	// ErrTimeout is returned when no healthy server appeared before the deadline.
	ErrTimeout = errors.New("timed out waiting for server to become ready")
	// ErrLaunchFailed wraps spawn errors; it is returned without waiting.
	ErrLaunchFailed = errors.New("failed to launch server")
)

// EnsureOptions bounds a single EnsureReady call. Zero values pick the defaults.
type EnsureOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

func (o EnsureOptions) withDefaults() EnsureOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

// Config wires a Coordinator. Store and Launcher are required.
type Config struct {
	Store    *StateStore
	Launcher Launcher
	Prober   HealthProber
	Tokens   TokenGenerator
	// LockPath enables the advisory launch lock; empty disables it.
	LockPath string
	// Watch wakes the poll loop on state file changes instead of waiting for the next tick.
	Watch    bool
	Logger   *logrus.Entry
	// Recorder receives ensure, probe and launch events; nil discards them.
	Recorder Recorder
}

// Coordinator turns "is there a healthy server" into a ready ServerState,
// launching one when needed.
type Coordinator struct {
	store    *StateStore
	launcher Launcher
	prober   HealthProber
	tokens   TokenGenerator
	lockPath string
	watch    bool
	logger   *logrus.Entry
	recorder Recorder
}

func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Store == nil {
		panic("launcher: state store required")
	}
	if cfg.Launcher == nil {
		panic("launcher: launcher required")
	}
	c := &Coordinator{
		store:    cfg.Store,
		launcher: cfg.Launcher,
		prober:   cfg.Prober,
		tokens:   cfg.Tokens,
		lockPath: cfg.LockPath,
		watch:    cfg.Watch,
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
	}
	if c.prober == nil {
		c.prober = NewHTTPProber(nil)
	}
	if c.tokens == nil {
		c.tokens = RandomTokens{}
	}
	if c.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.logger = logrus.NewEntry(l)
	}
	if c.recorder == nil {
		c.recorder = noopRecorder{}
	}
	return c
}

// EnsureReady returns the state of a healthy server, reusing a live one or
// launching a new one and polling until it advertises itself. The spawned
// process is left running on timeout or cancellation.
func (c *Coordinator) EnsureReady(ctx context.Context, opts EnsureOptions) (*ServerState, error) {
	opts = opts.withDefaults()
	start := time.Now()

	st, outcome, err := c.ensure(ctx, opts)
	c.recorder.ObserveEnsure(outcome, time.Since(start))
	return st, err
}

func (c *Coordinator) ensure(ctx context.Context, opts EnsureOptions) (*ServerState, string, error) {
	if st := c.store.Read(); st != nil {
		if c.probe(ctx, st) {
			c.logger.WithField("baseURL", st.BaseURL).Debug("reusing running server")
			return st, OutcomeReused, nil
		}
		c.logger.WithFields(logrus.Fields{"baseURL": st.BaseURL, "pid": st.PID}).Info("removing stale state file")
		if err := c.store.DeleteIfOwned(st.PID); err != nil {
			c.logger.WithError(err).Debug("remove stale state; the next server will overwrite it")
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, OutcomeCanceled, err
	}

	var changed <-chan struct{}
	if c.watch {
		sw, err := newStateWatcher(c.store.Path())
		if err != nil {
			c.logger.WithError(err).Debug("state watcher unavailable; polling only")
		} else {
			defer sw.Close()
			changed = sw.Changed()
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	turn := &launchTurn{c: c, staleAfter: opts.Timeout}
	defer turn.release()

	st, err := turn.take(ctx)
	if err == nil && st == nil {
		st, err = c.poll(ctx, waitCtx, opts.PollInterval, changed, turn)
	}
	switch {
	case err == nil:
		c.logger.WithFields(logrus.Fields{"baseURL": st.BaseURL, "pid": st.PID}).Info("server ready")
		return st, turn.outcome(), nil
	case errors.Is(err, ErrLaunchFailed):
		return nil, OutcomeFailed, err
	case errors.Is(err, ErrTimeout):
		c.logger.WithField("timeout", opts.Timeout).Warn("server did not become ready")
		return nil, OutcomeTimeout, fmt.Errorf("%w after %s", ErrTimeout, opts.Timeout)
	default:
		return nil, OutcomeCanceled, err
	}
}

func (c *Coordinator) acquireLock(staleAfter time.Duration) (func() error, error) {
	if c.lockPath == "" {
		return nil, nil
	}
	return acquireLaunchLock(c.lockPath, staleAfter)
}

func (c *Coordinator) launch(ctx context.Context) error {
	token, err := c.tokens.Generate()
	if err != nil {
		return fmt.Errorf("%w: generate token: %w", ErrLaunchFailed, err)
	}
	req := LaunchRequest{StatePath: c.store.Path(), Port: 0, Token: token}

	c.logger.WithField("state", req.StatePath).Info("launching server")
	if err := c.launcher.Launch(ctx, req); err != nil {
		c.recorder.IncLaunch(false)
		return fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}
	c.recorder.IncLaunch(true)
	return nil
}

// launchTurn decides whether this caller spawns the server. A caller that
// finds the lock held waits; once the holder lets go without a ready server,
// the next take claims the lock and launches.
type launchTurn struct {
	c          *Coordinator
	staleAfter time.Duration
	tried      bool
	spawned    bool
	waited     bool
	unlock     func() error
}

// take launches at most once per EnsureReady call. It returns a ready state
// when, after a wait, another caller's server turns out to be up already.
func (t *launchTurn) take(ctx context.Context) (*ServerState, error) {
	if t.tried {
		return nil, nil
	}
	unlock, err := t.c.acquireLock(t.staleAfter)
	switch {
	case errors.Is(err, ErrLaunchInProgress):
		if !t.waited {
			t.c.logger.Info("another caller is launching the server; waiting for it")
		}
		t.waited = true
		return nil, nil
	case err != nil:
		t.c.logger.WithError(err).Debug("launch lock unavailable; launching without it")
	}
	t.unlock = unlock
	t.tried = true

	if t.waited {
		if st := t.c.store.Read(); st != nil && t.c.probe(ctx, st) {
			return st, nil
		}
		t.c.logger.Info("previous launcher gave up; launching")
	}
	if err := t.c.launch(ctx); err != nil {
		return nil, err
	}
	t.spawned = true
	return nil, nil
}

func (t *launchTurn) release() {
	if t.unlock == nil {
		return
	}
	if err := t.unlock(); err != nil {
		t.c.logger.WithError(err).Debug("release launch lock")
	}
}

func (t *launchTurn) outcome() string {
	if t.spawned {
		return OutcomeLaunched
	}
	return OutcomeJoined
}

// poll re-reads and probes immediately, then on every tick or watcher wake-up.
// While another caller holds the launch lock each round also retries it.
// Cancellation of parent wins over the wait deadline.
func (c *Coordinator) poll(parent, waitCtx context.Context, interval time.Duration, changed <-chan struct{}, turn *launchTurn) (*ServerState, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if st := c.store.Read(); st != nil && c.probe(waitCtx, st) {
			return st, nil
		}
		if waitCtx.Err() == nil {
			if st, err := turn.take(waitCtx); err != nil || st != nil {
				return st, err
			}
		}

		select {
		case <-waitCtx.Done():
			if err := parent.Err(); err != nil {
				return nil, err
			}
			return nil, ErrTimeout
		case <-ticker.C:
		case <-changed:
		}
	}
}

func (c *Coordinator) probe(ctx context.Context, st *ServerState) bool {
	ok := c.prober.Check(ctx, st.BaseURL)
	c.recorder.IncProbe(ok)
	return ok
}
