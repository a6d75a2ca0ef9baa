package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/odvcencio/snapvault/pkg/repo"
	"github.com/odvcencio/snapvault/pkg/tree"
	"github.com/spf13/cobra"
)

func newLsCmd() *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "ls [rev] [path]",
		Short: "List the entries of a tree",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			rev := "HEAD"
			if len(args) > 0 {
				rev = args[0]
			}
			treeHash, err := r.TreeForRev(rev)
			if err != nil {
				return err
			}
			if len(args) > 1 && strings.Trim(args[1], "/") != "" {
				e, ok, err := r.Lookup(treeHash, args[1])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("ls: %s: no such path in %s", args[1], rev)
				}
				if e.Kind != tree.KindTree {
					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					printEntry(w, strings.Trim(args[1], "/"), e)
					return w.Flush()
				}
				treeHash = e.Hash
			}

			t, err := r.GetTree(treeHash)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if recursive {
				flat, err := t.Flatten(r)
				if err != nil {
					return err
				}
				for _, p := range flat.Paths() {
					printEntry(w, strings.TrimPrefix(p, "/"), flat[p])
				}
			} else {
				for _, name := range t.Names() {
					printEntry(w, name, t.Entries[name])
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "list subtrees too")

	return cmd
}

func printEntry(w io.Writer, name string, e tree.Entry) {
	perms := "-"
	if p, err := e.Attrs.Perms(); err == nil {
		perms = fmt.Sprintf("%04o", uint32(p))
	}
	size := "-"
	if e.Kind != tree.KindTree {
		if s, err := e.Attrs.Size(); err == nil {
			size = fmt.Sprint(s)
		}
	}
	if e.Kind == tree.KindTree {
		name += "/"
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Kind, e.Hash.Short(), perms, size, name)
}
