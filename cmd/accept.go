package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/visit-scheduler/internal/accept"
)

func newAcceptCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "accept",
		Short: "Process pending acceptance mails and activate their orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := openDeps(ctx, true)
			if err != nil {
				return err
			}
			defer d.close()

			if dir == "" {
				dir = d.cfg.AcceptDir
			}
			if dir == "" {
				return fmt.Errorf("no mail directory: set ACCEPT_DIR or pass --dir")
			}

			acq, err := d.acquirer()
			if err != nil {
				return err
			}

			a := &accept.Acceptor{
				Source: &accept.DirSource{Dir: dir},
				Flow:   acq,
				Orders: d.orders,
				Logger: d.logger,
			}
			n, err := a.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "accepted %d order(s)\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory holding acceptance mail bodies (default: ACCEPT_DIR)")
	return cmd
}
