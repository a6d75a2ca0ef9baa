package main

import (
	"fmt"
	"time"

	"github.com/odvcencio/snapvault/pkg/repo"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
)

func newLogCmd() *cobra.Command {
	var oneline bool
	var limit int

	cmd := &cobra.Command{
		Use:   "log [rev]",
		Short: "Show commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			head, err := r.Head()
			if err != nil {
				return err
			}
			start := head
			if len(args) > 0 {
				start, err = r.ResolveRev(args[0])
				if err != nil {
					return err
				}
			}

			entries, err := r.Log(start, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no commits yet")
				return nil
			}

			out := cmd.OutOrStdout()
			for _, entry := range entries {
				h, c := entry.Hash, entry.Commit
				decoration := ""
				if h == head {
					decoration = " (HEAD)"
				}
				if oneline {
					fmt.Fprintf(out, "%s%s %s\n", h.Short(), decoration, c.Message)
					continue
				}
				fmt.Fprintf(out, "commit %s%s\n", h, decoration)
				fmt.Fprintf(out, "User:   %s\n", c.User)
				fmt.Fprintf(out, "Date:   %s\n", time.Unix(c.Timestamp, 0).Format("2006-01-02 15:04:05"))
				fmt.Fprintf(out, "Tree:   %s\n", c.TreeHash)
				if c.Signature != "" {
					if pub, err := verifyCommitSignature(c); err != nil {
						fmt.Fprintf(out, "Signed: BAD (%v)\n", err)
					} else {
						fmt.Fprintf(out, "Signed: good %s\n", ssh.FingerprintSHA256(pub))
					}
				}
				fmt.Fprintln(out)
				fmt.Fprintf(out, "    %s\n", c.Message)
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "compact one-line format")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of commits to show (0 for all)")

	return cmd
}
