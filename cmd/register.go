package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/visit-scheduler/internal/identity"
	"github.com/example/visit-scheduler/internal/orders"
)

func newRegisterCmd() *cobra.Command {
	var (
		countryID int
		count     int
		email     string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create new orders on a portal with generated applicant identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := openDeps(ctx, true)
			if err != nil {
				return err
			}
			defer d.close()

			if !d.registry.Has(countryID) {
				return fmt.Errorf("unknown country id %d", countryID)
			}

			acq, err := d.acquirer()
			if err != nil {
				return err
			}

			r := rand.New(rand.NewSource(time.Now().UnixNano()))
			for i := 0; i < count; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}

				person := identity.New(r, email)
				out, err := acq.RegisterOrder(ctx, countryID, person)
				if err != nil {
					return fmt.Errorf("register order %d/%d: %w", i+1, count, err)
				}

				orderNumber, saveCode, err := orders.ExtractRegistration(out.CentralPanel)
				if err != nil {
					return fmt.Errorf("register order %d/%d: %w", i+1, count, err)
				}

				added, err := d.orders.Add(ctx, orders.Order{
					OrderNumber: orderNumber,
					SaveCode:    saveCode,
					CountryID:   countryID,
				})
				if err != nil {
					return err
				}
				if !added {
					d.logger.Warn("order already stored", "order", orderNumber)
				}
				fmt.Fprintf(os.Stdout, "[%d/%d] registered order %d (%s %s)\n",
					i+1, count, orderNumber, person.Surname, person.Name)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&countryID, "country", 0, "country id to register on")
	cmd.Flags().IntVar(&count, "count", 1, "number of orders to create")
	cmd.Flags().StringVar(&email, "email", "", "base mailbox for plus-aliased applicant emails")
	_ = cmd.MarkFlagRequired("country")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
