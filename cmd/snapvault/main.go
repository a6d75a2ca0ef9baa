package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose int

	root := &cobra.Command{
		Use:           "snapvault",
		Short:         "Content-addressed directory snapshots with deduplication",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetOutput(cmd.ErrOrStderr())
			switch {
			case verbose >= 2:
				log.SetLevel(log.DebugLevel)
			case verbose == 1:
				log.SetLevel(log.InfoLevel)
			default:
				log.SetLevel(log.WarnLevel)
			}
		},
	}
	root.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase log verbosity (-v info, -vv debug)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newCommitCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newLsCmd())
	root.AddCommand(newDiffCmd())
	root.AddCommand(newCheckoutCmd())
	root.AddCommand(newCatCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newPurgeCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newBackrefsCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "snapvault %s\n", version)
		},
	}
}
