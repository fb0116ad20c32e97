package cli

import (
	"github.com/spf13/cobra"

	"github.com/javanhut/contentsync/internal/cdn"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve <published-dir>",
	Short: "Serve a published directory to updaters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := cdn.New(args[0], log)
		if err != nil {
			return err
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		return srv.Serve(ctx, serveAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
}
