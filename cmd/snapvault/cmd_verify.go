package main

import (
	"fmt"

	"github.com/odvcencio/snapvault/pkg/repo"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify object integrity and history connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			report, err := r.Verify()
			if err != nil {
				if report != nil {
					for _, h := range report.Missing {
						fmt.Fprintf(cmd.OutOrStdout(), "missing %s\n", h)
					}
				}
				return err
			}

			fmt.Fprintf(
				cmd.OutOrStdout(),
				"ok: verified %d object(s), %d purged, %d reachable from HEAD\n",
				report.Objects,
				report.Purged,
				report.Reachable,
			)
			return nil
		},
	}
}
