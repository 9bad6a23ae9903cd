package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oswaldb22/apple-intelligence-js-sdk/pkg/appleintelligence"
)

func newEnsureCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Start the server if needed and wait until it is ready",
		Long: `Reuse a healthy server advertised in the state file, or launch one and
wait for it to report ready.

Examples:
  # Start (or reuse) the server
  aictl ensure

  # Machine-readable state
  aictl ensure -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options(cmd)
			if err != nil {
				return err
			}
			defer f.writeMetrics(opts)
			st, err := appleintelligence.Ensure(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if f.output == outputJSON {
				return printJSON(cmd.OutOrStdout(), st)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ready at %s (pid %d)\n", st.BaseURL, st.PID)
			return err
		},
	}
}
