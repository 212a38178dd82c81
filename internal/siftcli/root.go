// Package siftcli is the cobra command surface over the indexing and
// query engine.
package siftcli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"sift/internal/version"
)

func NewRootCommand() *cobra.Command {
	opts := newDefaultOptions()
	cmd := &cobra.Command{
		Use:   "sift",
		Short: "Hybrid lexical/vector code search",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.Version = version.String()

	withOptionsContext(cmd, opts)
	bindFlags(cmd, opts)

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		opts := optionsFrom(cmd)
		if opts == nil {
			return nil
		}
		if err := opts.Prepare(); err != nil {
			return err
		}
		level := slog.LevelInfo
		if opts.Verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	}

	cmd.AddCommand(newIndexCommand())
	cmd.AddCommand(newQCommand())
	cmd.AddCommand(newWatchCommand())
	cmd.AddCommand(newServeCommand())
	return cmd
}
