package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/version"
)

func newVersionCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			if f.output == outputJSON {
				return printJSON(cmd.OutOrStdout(), info)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "aictl %s\n", info)
			return err
		},
	}
}
