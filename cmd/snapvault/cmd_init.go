package main

import (
	"fmt"

	"github.com/odvcencio/snapvault/pkg/repo"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var (
		noCompress bool
		threshold  int64
		userName   string
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty snapvault repository",
		Long: `Create an empty snapvault repository in path (default: the current
directory). A random chunking polynomial is drawn for large files and
recorded in .snapvault/config.toml together with any settings given here.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) > 0 {
				target = args[0]
			}
			flags := cmd.Flags()
			if flags.Changed("large-file-threshold") && threshold <= 0 {
				return fmt.Errorf("init: --large-file-threshold must be positive, got %d", threshold)
			}

			r, err := repo.Init(target)
			if err != nil {
				return err
			}
			defer r.Close()

			cfg := *r.Config
			if noCompress {
				cfg.Compression = false
			}
			if flags.Changed("large-file-threshold") {
				cfg.LargeFileThreshold = threshold
			}
			if userName != "" {
				cfg.User.Name = userName
			}
			if cfg != *r.Config {
				if err := r.WriteConfig(&cfg); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "initialized empty snapvault repository in %s\n", r.Dir)
			fmt.Fprintf(out, "chunker polynomial %#x, large files from %d bytes\n", cfg.Chunker.Polynomial, cfg.LargeFileThreshold)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCompress, "no-compress", false, "store object payloads uncompressed")
	cmd.Flags().Int64Var(&threshold, "large-file-threshold", 0, "size in bytes from which files are chunked")
	cmd.Flags().StringVar(&userName, "user", "", "default commit author")

	return cmd
}
