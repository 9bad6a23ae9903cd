package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/logging"
	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/metrics"
	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/model"
	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/paths"
	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/server"
	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/version"
	"github.com/oswaldb22/apple-intelligence-js-sdk/pkg/launcher"
)

const shutdownGrace = 5 * time.Second

type options struct {
	statePath string
	port      int
	token     string
	allowlist string
	logger    *logrus.Entry
	logs      *server.LogBuffer
}

func main() {
	_ = godotenv.Load()

	statePath := paths.StateFilePath()
	port := envOr("APPLE_INTELLIGENCE_PORT", "0")
	token := envOr("APPLE_INTELLIGENCE_TOKEN", "")
	logLevel := envOr("APPLE_INTELLIGENCE_LOG_LEVEL", logging.LevelInfo)
	allowlist := envOr("APPLE_INTELLIGENCE_ADMIN_ALLOWLIST", "")
	showVersion := false

	flag.StringVar(&statePath, "state", statePath, "state file to advertise the server in")
	flag.StringVar(&port, "port", port, "port to listen on (0 picks a free port)")
	flag.StringVar(&token, "token", token, "bearer token required on admin and API routes")
	flag.StringVar(&logLevel, "log-level", logLevel, "silent, info or debug")
	flag.StringVar(&allowlist, "admin-allowlist", allowlist, "comma-separated CIDRs allowed on admin routes besides loopback")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.Get())
		return
	}

	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		fmt.Fprintf(os.Stderr, "invalid --port %q\n", port)
		os.Exit(2)
	}

	logs := server.NewLogBuffer(0)
	logger, cleanup, err := openLogger(statePath, logLevel, logs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options{
		statePath: statePath,
		port:      portNum,
		token:     token,
		allowlist: allowlist,
		logger:    logger,
		logs:      logs,
	}); err != nil {
		logger.Errorf("server error: %v", err)
		cleanup()
		os.Exit(1)
	}
}

// run serves until ctx is done or /admin/shutdown is called. The state file is
// written only after the listener is bound and removed on the way out if it
// still names this process.
func run(ctx context.Context, o options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(o.port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	core := server.New(server.Config{
		Token:      o.token,
		Allowlist:  o.allowlist,
		Model:      model.NewMock(),
		Logger:     o.logger,
		Recorder:   metrics.NewPrometheusRecorder(reg),
		Registry:   reg,
		Logs:       o.logs,
		OnShutdown: cancel,
	})
	srv := &http.Server{
		Handler:           core.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		o.logger.Info("shutting down")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancelShutdown()
		return srv.Shutdown(shutdownCtx)
	})

	store := launcher.NewStateStore(o.statePath)
	st := launcher.ServerState{
		Ready:     true,
		PID:       os.Getpid(),
		Port:      port,
		BaseURL:   fmt.Sprintf("http://127.0.0.1:%d/v1", port),
		Token:     o.token,
		Version:   version.Get().Version,
		StartedAt: time.Now().Unix(),
	}
	if err := store.Write(st); err != nil {
		cancel()
		_ = g.Wait()
		return fmt.Errorf("write state: %w", err)
	}
	o.logger.WithFields(logrus.Fields{
		"baseURL": st.BaseURL,
		"state":   o.statePath,
		"version": st.Version,
	}).Info("server ready")

	err = g.Wait()
	if rmErr := store.DeleteIfOwned(st.PID); rmErr != nil {
		o.logger.WithError(rmErr).Warn("remove state file")
	}
	return err
}

// openLogger writes to <state dir>/logs/server.log and mirrors entries into logs.
func openLogger(statePath, level string, logs *server.LogBuffer) (*logrus.Entry, func(), error) {
	logger, cleanup, err := logging.NewFile(filepath.Join(filepath.Dir(statePath), "logs"), "server", level)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger.Logger.AddHook(logs)
	return logger, cleanup, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
