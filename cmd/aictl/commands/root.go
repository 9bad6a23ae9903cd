// Package commands implements the aictl command tree.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/joho/godotenv"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/logging"
	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/paths"
	"github.com/oswaldb22/apple-intelligence-js-sdk/pkg/appleintelligence"
)

const (
	outputText = "text"
	outputJSON = "json"
)

type rootFlags struct {
	cacheDir     string
	appPath      string
	logLevel     string
	output       string
	timeout      time.Duration
	pollInterval time.Duration
	metricsFile  string

	registry *prom.Registry
}

// NewRootCmd builds the aictl command tree.
func NewRootCmd() *cobra.Command {
	f := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "aictl",
		Short: "Manage the local Apple Intelligence server",
		Long: `aictl launches, inspects and stops the local Apple Intelligence server
that backs the OpenAI-compatible SDK client.

Flags override the APPLE_INTELLIGENCE_* environment variables, which may also
be set in a .env file in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			if f.output != outputText && f.output != outputJSON {
				return fmt.Errorf("unknown output format %q (want text or json)", f.output)
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.cacheDir, "cache-dir", "", "Directory holding state.json, the launch lock and logs")
	pf.StringVar(&f.appPath, "app-path", "", "Server binary or .app bundle to launch")
	pf.StringVar(&f.logLevel, "log-level", "", "Log verbosity (silent|info|debug)")
	pf.StringVarP(&f.output, "output", "o", outputText, "Output format (text|json)")
	pf.DurationVar(&f.timeout, "timeout", 0, "How long to wait for the server to become ready (default 20s)")
	pf.DurationVar(&f.pollInterval, "poll-interval", 0, "Readiness poll interval (default 500ms)")
	pf.StringVar(&f.metricsFile, "metrics-textfile", "", "Write launcher metrics to this file in the Prometheus text format")

	cmd.AddCommand(
		newEnsureCmd(f),
		newStatusCmd(f),
		newStopCmd(f),
		newDoctorCmd(f),
		newChatCmd(f),
		newVersionCmd(f),
	)
	cmd.CompletionOptions.DisableDefaultCmd = true
	return cmd
}

// Execute runs the root command; ctx cancels in-flight launches and requests.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// options merges environment settings with explicitly set flags.
func (f *rootFlags) options(cmd *cobra.Command) (appleintelligence.Options, error) {
	opts, err := appleintelligence.OptionsFromEnv()
	if err != nil {
		return opts, err
	}

	flags := cmd.Flags()
	if flags.Changed("cache-dir") {
		opts.CacheDir = f.cacheDir
	}
	if flags.Changed("app-path") {
		opts.AppPath = f.appPath
	}
	if flags.Changed("log-level") {
		if opts.LogLevel, err = logging.ParseLevel(f.logLevel); err != nil {
			return opts, err
		}
	}
	if flags.Changed("timeout") {
		opts.Timeout = f.timeout
	}
	if flags.Changed("poll-interval") {
		opts.PollInterval = f.pollInterval
	}

	if f.metricsFile != "" {
		f.registry = prom.NewRegistry()
		opts.Registerer = f.registry
	}

	opts.Logger = logging.New("aictl", opts.LogLevel, cmd.ErrOrStderr())
	return opts, nil
}

// writeMetrics flushes the launcher metrics gathered during the command to
// --metrics-textfile, if set. Failures are logged, not returned.
func (f *rootFlags) writeMetrics(opts appleintelligence.Options) {
	if f.registry == nil {
		return
	}
	if err := prom.WriteToTextfile(f.metricsFile, f.registry); err != nil {
		opts.Logger.WithError(err).Warn("write metrics textfile")
	}
}

func layoutFor(opts appleintelligence.Options) paths.Layout {
	if opts.CacheDir != "" {
		return paths.LayoutFor(opts.CacheDir)
	}
	return paths.LayoutFor(paths.CacheDir())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
