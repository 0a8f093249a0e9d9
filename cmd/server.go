package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/visit-scheduler/internal/auth"
	"github.com/example/visit-scheduler/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the operator web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := openDeps(ctx, migrateUp)
			if err != nil {
				return err
			}
			defer d.close()

			if err := d.cfg.RequireSessionKeys(); err != nil {
				return err
			}

			ws := &web.Server{
				Auth:     auth.NewStore(d.db, d.cfg.SessionHashKey, d.cfg.SessionBlockKey),
				Orders:   d.orders,
				Registry: d.registry,
				Logger:   d.logger,
			}
			return web.Start(ctx, d.cfg.HTTPAddr, ws.Routes())
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	return cmd
}
