package siftcli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index management",
	}

	cmd.AddCommand(newIndexBuildCommand())
	return cmd
}

func newIndexBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [path]",
		Short: "Build (or incrementally rebuild) the index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if isTestMode(cmd) {
				return nil
			}

			root := "."
			if len(args) == 1 {
				root = args[0]
			}

			opts := optionsFrom(cmd)
			if opts == nil {
				return fmt.Errorf("options missing")
			}

			ws, err := openWorkspace(root, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			report, err := ws.Build(cmd.Context())
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(),
				"indexed %d files (%d chunks), %d skipped, %d failed\n",
				report.FilesChunked, report.Chunks, report.FilesSkipped, len(report.Failures))
			for _, f := range report.Failures {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", f.Path, f.Reason)
			}
			return nil
		},
	}
	return cmd
}
