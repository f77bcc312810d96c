package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/claimlens/claimlens/internal/server"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				o.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, o.cfg, o.version)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := server.New(o.cfg, a.analyzer, a.metrics, o.version)
			if err != nil {
				return err
			}
			return srv.Start(ctx, o.cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides server.addr)")
	return cmd
}
