package main

import (
	"fmt"
	"io"
	"time"

	"github.com/odvcencio/snapvault/pkg/largeblob"
	"github.com/odvcencio/snapvault/pkg/object"
	"github.com/odvcencio/snapvault/pkg/repo"
	"github.com/odvcencio/snapvault/pkg/tree"
	"github.com/spf13/cobra"
)

func newCatCmd() *cobra.Command {
	var typeOnly bool

	cmd := &cobra.Command{
		Use:   "cat <rev>",
		Short: "Print the content of an object",
		Long: `Print the content of an object.

Blobs print their bytes and large blobs print the reassembled file. Trees
print one entry per line and commits print their fields.`,
		Args: cobra.ExactArgs(1),
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
			typ, err := r.ObjectType(h)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if typeOnly {
				fmt.Fprintln(out, typ)
				return nil
			}
			return catObject(out, r, h, typ)
		},
	}

	cmd.Flags().BoolVarP(&typeOnly, "type", "t", false, "print only the object type")

	return cmd
}

func catObject(out io.Writer, r *repo.Repo, h object.Hash, typ object.ObjectType) error {
	switch typ {
	case object.TypeBlob:
		obj, err := r.GetObject(h)
		if err != nil {
			return err
		}
		rc, err := obj.PayloadStream()
		if err != nil {
			return err
		}
		defer rc.Close()
		_, err = io.Copy(out, rc)
		return err
	case object.TypeLargeBlob:
		lb, err := largeblob.Load(r, h)
		if err != nil {
			return err
		}
		_, err = lb.WriteContent(out, r)
		return err
	case object.TypeTree:
		t, err := r.GetTree(h)
		if err != nil {
			return err
		}
		for _, name := range t.Names() {
			e := t.Entries[name]
			fmt.Fprintf(out, "%s %s %s\n", e.Kind, e.Hash, name)
			for _, k := range e.Attrs.Keys() {
				fmt.Fprintf(out, "    %s %s\n", k, formatAttr(e.Attrs, k))
			}
		}
		return nil
	case object.TypeCommit:
		c, err := r.Store.ReadCommit(h)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "tree %s\n", c.TreeHash)
		for _, p := range c.Parents {
			fmt.Fprintf(out, "parent %s\n", p)
		}
		fmt.Fprintf(out, "user %s\n", c.User)
		fmt.Fprintf(out, "time %s\n", time.Unix(c.Timestamp, 0).UTC().Format(time.RFC3339))
		if c.Signature != "" {
			fmt.Fprintf(out, "signature %s\n", c.Signature)
		}
		fmt.Fprintf(out, "\n%s\n", c.Message)
		return nil
	default:
		return fmt.Errorf("cat %s: %w", h.Short(), object.ErrPurged)
	}
}

// formatAttr renders the well-known attributes by type and anything else
// quoted.
func formatAttr(a tree.AttrMap, key string) string {
	switch key {
	case tree.AttrSize:
		if v, err := a.Size(); err == nil {
			return fmt.Sprint(v)
		}
	case tree.AttrPerms:
		if v, err := a.Perms(); err == nil {
			return fmt.Sprintf("%04o", uint32(v))
		}
	case tree.AttrCtime, tree.AttrMtime:
		if v, err := a.Int64(key); err == nil {
			return time.Unix(v, 0).UTC().Format(time.RFC3339)
		}
	}
	return fmt.Sprintf("%q", a[key])
}
