package main

import (
	"fmt"

	"github.com/odvcencio/snapvault/pkg/repo"
	"github.com/spf13/cobra"
)

func newCheckoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <rev> <dest>",
		Short: "Extract a snapshot into an empty directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			treeHash, err := r.TreeForRev(args[0])
			if err != nil {
				return err
			}
			if err := r.Checkout(cmd.Context(), treeHash, args[1]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "checked out %s into %s\n", treeHash.Short(), args[1])
			return nil
		},
	}
}
