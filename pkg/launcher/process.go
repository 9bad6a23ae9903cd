package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// LaunchRequest carries the arguments handed to a new server process.
type LaunchRequest struct {
	StatePath string
	Port      int
	Token     string
}

// Args renders the server command line contract.
func (r LaunchRequest) Args() []string {
	args := []string{"--state", r.StatePath, "--port", strconv.Itoa(r.Port)}
	if r.Token != "" {
		args = append(args, "--token", r.Token)
	}
	return args
}

// Launcher starts a server process without waiting for it.
type Launcher interface {
	Launch(ctx context.Context, req LaunchRequest) error
}

// ProcessLauncher spawns the server binary detached from the caller.
type ProcessLauncher struct {
	resolve func() (string, error)
	logPath string
	logger  *logrus.Entry
}

// NewProcessLauncher launches the fixed binary path. logPath receives the
// child's stdout/stderr; empty discards them.
func NewProcessLauncher(binary, logPath string, logger *logrus.Entry) *ProcessLauncher {
	return NewResolvingProcessLauncher(func() (string, error) { return binary, nil }, logPath, logger)
}

// NewResolvingProcessLauncher defers binary lookup until a launch is actually needed.
func NewResolvingProcessLauncher(resolve func() (string, error), logPath string, logger *logrus.Entry) *ProcessLauncher {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = logrus.NewEntry(l)
	}
	return &ProcessLauncher{resolve: resolve, logPath: logPath, logger: logger}
}

// Launch starts the server and returns as soon as the process exists. The
// child is reaped in the background; its exit status is never consulted.
func (l *ProcessLauncher) Launch(ctx context.Context, req LaunchRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	binary, err := l.resolve()
	if err != nil {
		return err
	}
	if binary == "" {
		return errors.New("no server binary configured")
	}

	cmd := l.command(binary, req)

	var logFile *os.File
	if l.logPath != "" {
		if err := os.MkdirAll(filepath.Dir(l.logPath), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		logFile, err = os.OpenFile(l.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open server log: %w", err)
		}
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return fmt.Errorf("start %s: %w", binary, err)
	}
	// the child holds its own descriptor now
	if logFile != nil {
		_ = logFile.Close()
	}

	l.logger.WithFields(logrus.Fields{
		"pid":    cmd.Process.Pid,
		"binary": binary,
	}).Info("server process started")

	go func() { _ = cmd.Wait() }()
	return nil
}

func (l *ProcessLauncher) command(binary string, req LaunchRequest) *exec.Cmd {
	if isAppBundle(binary) {
		args := append([]string{"-gj", binary, "--args"}, req.Args()...)
		return exec.Command("open", args...)
	}
	cmd := exec.Command(binary, req.Args()...)
	cmd.SysProcAttr = detachedProcAttr()
	return cmd
}

func isAppBundle(path string) bool {
	return strings.HasSuffix(strings.TrimRight(path, "/"), ".app")
}
