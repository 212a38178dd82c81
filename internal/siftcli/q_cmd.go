package siftcli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sift/internal/core/explain"
)

func newQCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "q <query>",
		Short: "Search the local index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if isTestMode(cmd) {
				return nil
			}

			opts := optionsFrom(cmd)
			if opts == nil {
				return fmt.Errorf("options missing")
			}

			root, err := os.Getwd()
			if err != nil {
				return err
			}

			ws, err := openWorkspace(root, opts)
			if err != nil {
				return err
			}
			defer ws.Close()

			var ex explain.Explain
			var collector *ExplainCollector
			if opts.Explain != "" {
				collector = NewExplainCollector(ExplainOptions{Format: opts.Explain})
				ex = collector
			}

			res, err := ws.Search(cmd.Context(), strings.Join(args, " "), ex)
			if err != nil {
				return err
			}

			var out string
			if opts.Jsonl {
				out = RenderJSONL(res)
			} else {
				out = RenderDefault(res)
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), out)

			if collector != nil {
				_ = collector.Emit(cmd.ErrOrStderr())
			}
			return nil
		},
	}
}
