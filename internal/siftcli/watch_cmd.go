package siftcli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [path]",
		Short: "Build the index, then keep it fresh as files change",
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

			if _, err := ws.Build(cmd.Context()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "watching %s\n", ws.Root())
			return ws.Watch(ctx)
		},
	}
}
