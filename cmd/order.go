package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/visit-scheduler/internal/orders"
)

func newOrderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Manage watched orders",
	}
	cmd.AddCommand(newOrderAddCmd())
	cmd.AddCommand(newOrderListCmd())
	cmd.AddCommand(newOrderVisitsCmd())
	return cmd
}

func newOrderAddCmd() *cobra.Command {
	var (
		orderNumber int64
		saveCode    string
		countryID   int
		accepted    bool
	)

	c := &cobra.Command{
		Use:   "add",
		Short: "Add an existing order to the watch list",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			d, err := openDeps(ctx, true)
			if err != nil {
				return err
			}
			defer d.close()

			if !d.registry.Has(countryID) {
				return fmt.Errorf("unknown country id %d", countryID)
			}

			added, err := d.orders.Add(ctx, orders.Order{
				OrderNumber: orderNumber,
				SaveCode:    saveCode,
				CountryID:   countryID,
				IfAccepted:  accepted,
			})
			if err != nil {
				return err
			}
			if !added {
				fmt.Fprintf(os.Stdout, "order %d already exists\n", orderNumber)
				return nil
			}
			fmt.Fprintf(os.Stdout, "added order %d\n", orderNumber)
			return nil
		},
	}

	c.Flags().Int64Var(&orderNumber, "number", 0, "order number")
	c.Flags().StringVar(&saveCode, "code", "", "save code")
	c.Flags().IntVar(&countryID, "country", 0, "country id")
	c.Flags().BoolVar(&accepted, "accepted", false, "mark the order as already accepted")
	_ = c.MarkFlagRequired("number")
	_ = c.MarkFlagRequired("code")
	_ = c.MarkFlagRequired("country")
	return c
}

func newOrderListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all watched orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			d, err := openDeps(ctx, true)
			if err != nil {
				return err
			}
			defer d.close()

			list, err := d.orders.List(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ORDER\tCOUNTRY\tACCEPTED\tCONFIRMED")
			for _, o := range list {
				name := fmt.Sprintf("%d", o.CountryID)
				if c, err := d.registry.Get(o.CountryID); err == nil {
					name = c.Name
				}
				fmt.Fprintf(w, "%d\t%s\t%v\t%v\n", o.OrderNumber, name, o.IfAccepted, o.Resolved())
			}
			return w.Flush()
		},
	}
}

func newOrderVisitsCmd() *cobra.Command {
	var countryID int

	c := &cobra.Command{
		Use:   "visits",
		Short: "Print the booked visit date and time of each confirmed order",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			d, err := openDeps(ctx, true)
			if err != nil {
				return err
			}
			defer d.close()

			list, err := d.orders.ListConfirmedByCountry(ctx, countryID)
			if err != nil {
				return err
			}

			for _, o := range list {
				date, tm, err := orders.ExtractVisit(o.TimeForVisit)
				if err != nil {
					d.logger.Warn("unparseable visit text", "order", o.OrderNumber)
					continue
				}
				fmt.Fprintf(os.Stdout, "%d\t%s %s\n", o.OrderNumber, date, tm)
			}
			return nil
		},
	}

	c.Flags().IntVar(&countryID, "country", 0, "country id")
	_ = c.MarkFlagRequired("country")
	return c
}
