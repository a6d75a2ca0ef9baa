package main

import (
	"fmt"

	"github.com/odvcencio/snapvault/pkg/repo"
	"github.com/spf13/cobra"
)

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <hash>...",
		Short: "Drop the content of unreferenced objects",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			for _, arg := range args {
				h, err := r.ResolveRev(arg)
				if err != nil {
					return err
				}
				if err := r.Purge(h); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", h)
			}
			return nil
		},
	}
}
