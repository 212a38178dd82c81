package siftcli

import (
	"github.com/spf13/cobra"

	"sift/internal/siftd"
)

func newServeCommand() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSONL daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if isTestMode(cmd) {
				return nil
			}
			s := siftd.NewServer(siftd.Options{Listen: listen})
			defer s.Close()
			go func() {
				<-cmd.Context().Done()
				_ = s.Close()
			}()
			return s.Run()
		},
	}
	cmd.Flags().StringVar(&listen, "listen", siftd.DefaultListen, "listen address (tcp)")
	return cmd
}
