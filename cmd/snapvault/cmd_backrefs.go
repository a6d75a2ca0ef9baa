package main

import (
	"fmt"
	"sort"

	"github.com/odvcencio/snapvault/pkg/object"
	"github.com/odvcencio/snapvault/pkg/repo"
	"github.com/spf13/cobra"
)

func newBackrefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backrefs",
		Short: "Inspect or rebuild the reference index",
	}
	cmd.AddCommand(newBackrefsShowCmd())
	cmd.AddCommand(newBackrefsRebuildCmd())
	return cmd
}

func newBackrefsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <rev>",
		Short: "List the objects referencing an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			h, err := r.ResolveRev(args[0])
			if err != nil {
				return err
			}
			refs, err := r.Backrefs.Referrers(h)
			if err != nil {
				return err
			}
			parents := make([]object.Hash, 0, len(refs))
			for parent := range refs {
				parents = append(parents, parent)
			}
			sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })
			for _, parent := range parents {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", parent, refs[parent])
			}
			return nil
		},
	}
}

func newBackrefsRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Re-derive the reference index from stored objects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			n, err := r.RebuildBackrefs()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %d reference(s)\n", n)
			return nil
		},
	}
}
