package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bher20/utilitybill/internal/billing"
)

func newTariffsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tariffs",
		Short: "Show or change the tariff set",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(); err != nil {
				return err
			}
			return c.open(cmd.Context())
		},
	}
	cmd.AddCommand(newTariffsShowCmd(c), newTariffsSetCmd(c))
	return cmd
}

func printTariffs(c *cli, t billing.TariffSet) error {
	values := t.Map()
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	for _, key := range billing.TariffKeys {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", key, billing.Labels[key], strconv.FormatFloat(values[key], 'f', -1, 64))
	}
	return tw.Flush()
}

func newTariffsShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the active tariffs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printTariffs(c, c.tariffs.Load(cmd.Context()))
		},
	}
}

func newTariffsSetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "set key=value...",
		Short: "Change tariffs; an empty value resets that key to its default",
		Example: `  utilitybill tariffs set tariff_el_day=7,12 tariff_el_night=3.05
  utilitybill tariffs set tariff_sewage=`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			form := map[string]string{}
			for key, v := range c.tariffs.Load(ctx).Map() {
				form[key] = strconv.FormatFloat(v, 'f', -1, 64)
			}
			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("expected key=value, got %q", arg)
				}
				form[strings.TrimSpace(key)] = value
			}
			t, err := c.tariffs.Update(ctx, form)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, "Tariffs saved.")
			return printTariffs(c, t)
		},
	}
}
