// Package server implements the local HTTP server that fronts the on-device
// language model with an OpenAI-compatible API.
package server

import (
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/metrics"
	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/model"
	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/version"
)

const defaultLogTail = 200

// Config wires the server. Model and Logger are required.
type Config struct {
	Token     string
	Allowlist string
	Model     model.LanguageModel
	Logger    *logrus.Entry
	Recorder  metrics.Recorder
	Registry  *prom.Registry
	Logs      *LogBuffer
	// OnShutdown runs once, after the /admin/shutdown response has been sent.
	OnShutdown func()
}

type Server struct {
	token      string
	allowlist  string
	model      model.LanguageModel
	logger     *logrus.Entry
	recorder   metrics.Recorder
	registry   *prom.Registry
	logs       *LogBuffer
	onShutdown func()
	shutdown   sync.Once
	pid        int
	now        func() time.Time
}

func New(cfg Config) *Server {
	if cfg.Model == nil {
		panic("language model must not be nil")
	}
	if cfg.Logger == nil {
		panic("logger must not be nil")
	}
	s := &Server{
		token:      cfg.Token,
		allowlist:  cfg.Allowlist,
		model:      cfg.Model,
		logger:     cfg.Logger,
		recorder:   cfg.Recorder,
		registry:   cfg.Registry,
		logs:       cfg.Logs,
		onShutdown: cfg.OnShutdown,
		pid:        os.Getpid(),
		now:        time.Now,
	}
	if s.recorder == nil {
		s.recorder = metrics.NoopRecorder{}
	}
	if s.logs == nil {
		s.logs = NewLogBuffer(0)
	}
	return s
}

// Handler returns the routed, request-logging handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /version", versionHandler)
	if s.registry != nil {
		mux.Handle("GET /metrics", metrics.Handler(s.registry))
	}

	adminGuard := NewAdminMiddleware(s.token, s.allowlist)
	mux.Handle("POST /admin/shutdown", adminGuard(http.HandlerFunc(s.shutdownHandler)))
	mux.Handle("GET /admin/logs", adminGuard(http.HandlerFunc(s.logsHandler)))

	mux.Handle("GET /v1/models", requireAPIKey(s.token, http.HandlerFunc(s.modelsHandler)))
	mux.Handle("POST /v1/chat/completions", requireAPIKey(s.token, http.HandlerFunc(s.chatCompletionsHandler)))

	return logRequests(s.logger, s.recorder, mux)
}

type healthResponse struct {
	OK                bool         `json:"ok"`
	Server            serverInfo   `json:"server"`
	AppleIntelligence model.Status `json:"appleIntelligence"`
	Models            []string     `json:"models"`
}

type serverInfo struct {
	Version string `json:"version"`
	PID     int    `json:"pid"`
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		OK:                true,
		Server:            serverInfo{Version: version.Get().Version, PID: s.pid},
		AppleIntelligence: s.model.Status(),
		Models:            s.model.Models(),
	})
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	RespondOK(w, http.StatusOK, version.Get())
}

func (s *Server) shutdownHandler(w http.ResponseWriter, _ *http.Request) {
	RespondOK(w, http.StatusAccepted, map[string]any{"status": "shutting down"})
	_ = http.NewResponseController(w).Flush()

	s.logger.Info("shutdown requested")
	s.shutdown.Do(func() {
		if s.onShutdown != nil {
			go s.onShutdown()
		}
	})
}

func (s *Server) logsHandler(w http.ResponseWriter, r *http.Request) {
	tail := defaultLogTail
	if rawTail := r.URL.Query().Get("tail"); rawTail != "" {
		if parsed, err := strconv.Atoi(rawTail); err == nil && parsed > 0 {
			tail = parsed
		}
	}

	lines := s.logs.Tail(tail)
	if lines == nil {
		lines = []string{}
	}
	RespondOK(w, http.StatusOK, map[string]any{"lines": lines})
}
