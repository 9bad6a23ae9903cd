package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oswaldb22/apple-intelligence-js-sdk/pkg/appleintelligence"
)

func newStatusCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the advertised server is healthy",
		Long: `Read the state file and probe the server it names. Never launches.

Examples:
  aictl status
  aictl status -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options(cmd)
			if err != nil {
				return err
			}
			status := appleintelligence.Status(cmd.Context(), opts)
			if f.output == outputJSON {
				return printJSON(cmd.OutOrStdout(), status)
			}

			out := cmd.OutOrStdout()
			switch {
			case status.State == nil:
				_, err = fmt.Fprintln(out, "not running")
			case !status.Healthy:
				_, err = fmt.Fprintf(out, "unhealthy: state names %s (pid %d) but it does not answer\n",
					status.State.BaseURL, status.State.PID)
			default:
				started := time.Unix(status.State.StartedAt, 0)
				_, err = fmt.Fprintf(out, "running at %s (pid %d, version %s, up %s)\n",
					status.State.BaseURL, status.State.PID, status.State.Version,
					time.Since(started).Round(time.Second))
			}
			return err
		},
	}
}
