package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/visit-scheduler/internal/monitor"
)

func newMonitorCmd() *cobra.Command {
	var countryIDs []int

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch all accepted orders and book visit slots as they appear",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := openDeps(ctx, true)
			if err != nil {
				return err
			}
			defer d.close()

			ids := countryIDs
			if len(ids) == 0 {
				ids = d.cfg.MonitorCountries
			}
			if len(ids) == 0 {
				return fmt.Errorf("no countries to monitor: set MONITOR_COUNTRIES or pass --country")
			}
			for _, id := range ids {
				if !d.registry.Has(id) {
					return fmt.Errorf("unknown country id %d", id)
				}
			}

			acq, err := d.acquirer()
			if err != nil {
				return err
			}

			m := &monitor.Monitor{
				Orders:     d.orders,
				Acquirer:   acq,
				Countries:  ids,
				Logger:     d.logger,
				MaxPerPass: d.cfg.MaxOrdersPerPass,
			}
			return m.Run(ctx)
		},
	}

	cmd.Flags().IntSliceVar(&countryIDs, "country", nil, "country ids to monitor (default: MONITOR_COUNTRIES)")
	return cmd
}
