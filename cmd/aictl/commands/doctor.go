package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/oswaldb22/apple-intelligence-js-sdk/internal/doctor"
)

var errDoctorFailed = errors.New("one or more checks failed")

func newDoctorCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the local environment",
		Long: `Check the platform, the server binary, the OS release, the state file
and, when a server is advertised, its health endpoint.

Exits non-zero when any check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options(cmd)
			if err != nil {
				return err
			}
			report := doctor.Run(cmd.Context(), doctor.Config{
				Layout:  layoutFor(opts),
				AppPath: opts.AppPath,
			})

			if f.output == outputJSON {
				err = printJSON(cmd.OutOrStdout(), report)
			} else {
				err = report.WriteText(cmd.OutOrStdout())
			}
			if err != nil {
				return err
			}
			if !report.OK() {
				return errDoctorFailed
			}
			return nil
		},
	}
}
