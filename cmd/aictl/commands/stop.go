package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oswaldb22/apple-intelligence-js-sdk/pkg/appleintelligence"
)

func newStopCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask the server to shut down and forget its state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options(cmd)
			if err != nil {
				return err
			}
			if err := appleintelligence.Shutdown(cmd.Context(), opts); err != nil {
				return err
			}
			if f.output == outputJSON {
				return printJSON(cmd.OutOrStdout(), map[string]bool{"stopped": true})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "stopped")
			return err
		},
	}
}
