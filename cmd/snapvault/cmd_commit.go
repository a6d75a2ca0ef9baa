package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/odvcencio/snapvault/pkg/repo"
	"github.com/spf13/cobra"
)

func newCommitCmd() *cobra.Command {
	var message string
	var user string
	var sign bool
	var signingKey string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Snapshot the working directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("commit message is required (-m)")
			}

			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			if user == "" {
				user = r.Config.User.Name
			}
			if user == "" {
				user = os.Getenv("USER")
				if user == "" {
					user = "unknown"
				}
			}

			var signer repo.CommitSigner
			if sign || strings.TrimSpace(signingKey) != "" {
				keyPath := signingKey
				if keyPath == "" {
					keyPath = r.Config.User.SigningKey
				}
				signer, _, err = newSSHCommitSigner(keyPath)
				if err != nil {
					return err
				}
			}

			h, err := r.Commit(cmd.Context(), message, user, signer)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", h.Short(), message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&user, "user", "", "override user (default: config user.name, then $USER)")
	cmd.Flags().BoolVar(&sign, "sign", false, "sign the commit with an SSH key")
	cmd.Flags().StringVar(&signingKey, "key", "", "SSH private key to sign with (implies --sign)")

	return cmd
}
