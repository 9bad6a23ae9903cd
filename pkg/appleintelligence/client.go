// Package appleintelligence ensures the local Apple Intelligence server is
// running and hands out OpenAI-compatible clients bound to it.
package appleintelligence

import (
	"context"

	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/paths"
	"github.com/oswaldb22/apple-intelligence-js-sdk/pkg/launcher"
	"github.com/oswaldb22/apple-intelligence-js-sdk/pkg/openai"
)

// placeholderAPIKey is sent when the server was started without a token.
const placeholderAPIKey = "local"

// Ensure returns the state of a healthy local server, launching one if needed.
func Ensure(ctx context.Context, opts Options) (*launcher.ServerState, error) {
	layout := opts.layout()
	logger := opts.logger()

	if err := layout.Ensure(); err != nil {
		return nil, err
	}

	l := launcher.NewResolvingProcessLauncher(func() (string, error) {
		return paths.ResolveServerBinary(opts.AppPath)
	}, layout.ServerLog, logger)

	c := launcher.NewCoordinator(launcher.Config{
		Store:    launcher.NewStateStore(layout.State),
		Launcher: l,
		LockPath: layout.Lock,
		Watch:    !opts.DisableWatch,
		Logger:   logger,
		Recorder: opts.recorder(),
	})
	return c.EnsureReady(ctx, opts.ensureOptions())
}

// Shutdown stops the server advertised in the state file, if any, and
// removes the file.
func Shutdown(ctx context.Context, opts Options) error {
	store := launcher.NewStateStore(opts.layout().State)
	return launcher.NewStopper(store, nil, opts.logger()).Shutdown(ctx)
}

// NewOpenAIClient ensures the server and returns a client bound to its base
// URL. The launch token, when present, becomes the bearer API key. Every call
// re-checks readiness; nothing is cached.
func NewOpenAIClient(ctx context.Context, opts Options) (*openai.Client, error) {
	st, err := Ensure(ctx, opts)
	if err != nil {
		return nil, err
	}
	return clientFor(st, opts), nil
}

func clientFor(st *launcher.ServerState, opts Options) *openai.Client {
	key := st.Token
	if key == "" {
		key = placeholderAPIKey
	}
	return openai.NewClient(st.BaseURL, key, openai.WithHTTPClient(opts.HTTPClient))
}

// ServerStatus describes the advertised server without launching anything.
type ServerStatus struct {
	State   *launcher.ServerState `json:"state,omitempty"`
	Healthy bool                  `json:"healthy"`
}

// Status reads the state file and probes the server it names.
func Status(ctx context.Context, opts Options) ServerStatus {
	st := launcher.NewStateStore(opts.layout().State).Read()
	if st == nil {
		return ServerStatus{}
	}
	return ServerStatus{State: st, Healthy: launcher.NewHTTPProber(nil).Check(ctx, st.BaseURL)}
}
