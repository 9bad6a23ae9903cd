package appleintelligence

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/logging"
	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/metrics"
	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/paths"
	"github.com/oswaldb22/apple-intelligence-js-sdk/pkg/launcher"
)

// Environment variables read by OptionsFromEnv.
const (
	EnvTimeoutMS      = "APPLE_INTELLIGENCE_TIMEOUT_MS"
	EnvPollIntervalMS = "APPLE_INTELLIGENCE_POLL_INTERVAL_MS"
	EnvLogLevel       = "APPLE_INTELLIGENCE_LOG_LEVEL"
	EnvCacheDir       = paths.EnvCacheDir
	EnvAppPath        = paths.EnvAppPath
)

// Options controls Ensure, Shutdown and NewOpenAIClient. The zero value uses
// a 20s timeout, 500ms polling, info logging to stderr and the default cache dir.
type Options struct {
	Timeout      time.Duration
	PollInterval time.Duration
	// LogLevel is silent, info or debug. Ignored when Logger is set.
	LogLevel string
	Logger   *logrus.Entry
	// CacheDir overrides where the state file, lock and logs live.
	CacheDir string
	// AppPath overrides server binary discovery. A path ending in .app is
	// opened as a macOS bundle.
	AppPath string
	// HTTPClient is used by the returned OpenAI client.
	HTTPClient *http.Client
	// DisableWatch turns off file-change wake-ups; the poll interval alone paces readiness checks.
	DisableWatch bool
	// Registerer receives the apple_intelligence_ensure_duration_seconds,
	// health_probes_total and launches_total metrics. Ignored when Recorder is set.
	Registerer prom.Registerer
	// Recorder receives readiness events directly.
	Recorder launcher.Recorder
}

// OptionsFromEnv reads the APPLE_INTELLIGENCE_* variables. Unset variables
// leave the corresponding field at its zero value.
func OptionsFromEnv() (Options, error) {
	var opts Options
	var err error

	if opts.Timeout, err = envMillis(EnvTimeoutMS); err != nil {
		return opts, err
	}
	if opts.PollInterval, err = envMillis(EnvPollIntervalMS); err != nil {
		return opts, err
	}
	if raw := os.Getenv(EnvLogLevel); raw != "" {
		if opts.LogLevel, err = logging.ParseLevel(raw); err != nil {
			return opts, err
		}
	}
	opts.CacheDir = os.Getenv(EnvCacheDir)
	opts.AppPath = os.Getenv(EnvAppPath)
	return opts, nil
}

func envMillis(key string) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, nil
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("%s: want a non-negative integer of milliseconds, got %q", key, raw)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (o Options) layout() paths.Layout {
	if o.CacheDir != "" {
		return paths.LayoutFor(o.CacheDir)
	}
	return paths.LayoutFor(paths.CacheDir())
}

func (o Options) logger() *logrus.Entry {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.New("apple-intelligence", o.LogLevel, os.Stderr)
}

func (o Options) recorder() launcher.Recorder {
	switch {
	case o.Recorder != nil:
		return o.Recorder
	case o.Registerer != nil:
		return metrics.NewPrometheusLaunchRecorder(o.Registerer)
	}
	return nil
}

func (o Options) ensureOptions() launcher.EnsureOptions {
	return launcher.EnsureOptions{Timeout: o.Timeout, PollInterval: o.PollInterval}
}
