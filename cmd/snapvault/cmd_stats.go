package main

import (
	"fmt"

	"github.com/odvcencio/snapvault/pkg/repo"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show object counts and deduplication",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			st, err := r.Stats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "commits:        %d\n", st.Commits)
			fmt.Fprintf(out, "trees:          %d\n", st.Trees)
			fmt.Fprintf(out, "blobs:          %d\n", st.Blobs)
			fmt.Fprintf(out, "dangling blobs: %d\n", st.DanglingBlobs)
			fmt.Fprintf(out, "blob refs:      %d\n", st.BlobRefs)
			fmt.Fprintf(out, "large blobs:    %d\n", st.LargeBlobs)
			fmt.Fprintf(out, "purged:         %d\n", st.Purged)
			fmt.Fprintf(out, "dedup ratio:    %.1f%%\n", st.DedupRatio)
			return nil
		},
	}
}
