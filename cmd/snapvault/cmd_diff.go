package main

import (
	"fmt"

	"github.com/odvcencio/snapvault/pkg/diff"
	"github.com/odvcencio/snapvault/pkg/repo"
	"github.com/odvcencio/snapvault/pkg/tree"
	"github.com/spf13/cobra"
)

func newDiffCmd() *cobra.Command {
	var withCtime bool

	cmd := &cobra.Command{
		Use:   "diff <rev> [rev]",
		Short: "Show paths that differ between two snapshots",
		Long: `Show paths that differ between two snapshots.

With one revision the comparison is against its first parent. Change
times are ignored unless --ctime is given.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			var beforeRev, afterRev string
			if len(args) == 2 {
				beforeRev, afterRev = args[0], args[1]
			} else {
				afterRev = args[0]
				h, err := r.ResolveRev(afterRev)
				if err != nil {
					return err
				}
				c, err := r.Store.ReadCommit(h)
				if err != nil {
					return err
				}
				if len(c.Parents) > 0 {
					beforeRev = string(c.Parents[0])
				}
			}

			before, err := flatForRev(r, beforeRev)
			if err != nil {
				return err
			}
			after, err := flatForRev(r, afterRev)
			if err != nil {
				return err
			}

			var opts diff.Options
			if !withCtime {
				opts.IgnoreAttrs = []string{tree.AttrCtime}
			}
			fmt.Fprint(cmd.OutOrStdout(), diff.Format(diff.Flats(before, after, opts)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&withCtime, "ctime", false, "report change-time differences")

	return cmd
}

// flatForRev flattens the tree rev names. An empty rev is the empty tree.
func flatForRev(r *repo.Repo, rev string) (tree.Flat, error) {
	if rev == "" {
		return tree.Flat{}, nil
	}
	treeHash, err := r.TreeForRev(rev)
	if err != nil {
		return nil, err
	}
	t, err := r.GetTree(treeHash)
	if err != nil {
		return nil, err
	}
	return t.Flatten(r)
}
