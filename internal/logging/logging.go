package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Verbosity values accepted by --log-level and APPLE_INTELLIGENCE_LOG_LEVEL.
const (
	LevelSilent = "silent"
	LevelInfo   = "info"
	LevelDebug  = "debug"
)

// ParseLevel normalizes a verbosity string. Empty means info.
func ParseLevel(raw string) (string, error) {
	switch v := strings.ToLower(strings.TrimSpace(raw)); v {
	case "":
		return LevelInfo, nil
	case LevelSilent, LevelInfo, LevelDebug:
		return v, nil
	default:
		return "", fmt.Errorf("unknown log level %q (want silent, info or debug)", raw)
	}
}

// New creates a logger for component writing to out at the given verbosity.
// Unknown levels fall back to info; silent discards everything.
func New(component, level string, out io.Writer) *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)

	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = LevelInfo
	}
	switch lvl {
	case LevelSilent:
		logger.SetOutput(io.Discard)
		logger.SetLevel(logrus.PanicLevel)
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger.WithField("component", component)
}

// NewFile creates a logger that appends to <dir>/<component>.log and returns it with a cleanup.
func NewFile(dir, component, level string) (*logrus.Entry, func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	path := filepath.Join(dir, component+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}

	return New(component, level, f), func() { _ = f.Close() }, nil
}
