package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bher20/utilitybill/internal/billing"
	"github.com/bher20/utilitybill/internal/history"
	"github.com/bher20/utilitybill/internal/storage"
	"github.com/bher20/utilitybill/internal/timeline"
)

var nowFunc = time.Now

func newHistoryCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List, summarise and edit saved periods",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(); err != nil {
				return err
			}
			return c.open(cmd.Context())
		},
	}
	cmd.AddCommand(
		newHistoryListCmd(c),
		newHistoryDeleteCmd(c),
		newHistorySummaryCmd(c),
		newHistoryPrefillCmd(c),
	)
	return cmd
}

func newHistoryListCmd(c *cli) *cobra.Command {
	var timelineOrder bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show saved periods, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				recs []storage.PeriodRecord
				err  error
			)
			if timelineOrder {
				recs, err = c.history.Load(cmd.Context())
			} else {
				recs, err = c.history.Table(cmd.Context())
			}
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(c.out, timeline.Summarize(recs).Line())
				return nil
			}
			tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PERIOD\tWATER\tELECTRICITY\tTOTAL\tSAVED\tID")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%s\t%s\n",
					r.Period, r.SumWater, r.SumElectricity, r.Total, r.DateSaved, r.ID)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(c.out, timeline.TableFooter(recs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&timelineOrder, "timeline", false, "oldest first instead of newest first")
	return cmd
}

func newHistoryDeleteCmd(c *cli) *cobra.Command {
	var id, period, dateSaved string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a period by id, or every period with a label and save date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if id != "" {
				if err := c.history.DeleteByID(ctx, id); err != nil {
					return err
				}
				fmt.Fprintln(c.out, "Record deleted.")
				return nil
			}
			if period == "" || dateSaved == "" {
				return errors.New("either --id or both --period and --date are required")
			}
			n, err := c.history.Delete(ctx, storage.PeriodKey{Period: period, DateSaved: dateSaved})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%d record(s) deleted.\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "record id")
	cmd.Flags().StringVar(&period, "period", "", "period label")
	cmd.Flags().StringVar(&dateSaved, "date", "", "save date, YYYY-MM-DD")
	return cmd
}

func newHistorySummaryCmd(c *cli) *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show totals over the saved periods",
		RunE: func(cmd *cobra.Command, args []string) error {
			if last < 1 {
				return errors.New("--last must be at least 1")
			}
			recs, err := c.history.Load(cmd.Context())
			if err != nil {
				return err
			}
			s := timeline.Summarize(recs)
			fmt.Fprintln(c.out, s.Line())
			if s.HasData {
				fmt.Fprintf(c.out, "Last %d months: %s\n", last, timeline.FormatMoney(timeline.LastNTotal(recs, last)))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", timeline.RecentWindow, "number of recent periods to total")
	return cmd
}

func newHistoryPrefillCmd(c *cli) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "prefill",
		Short: "Print the readings the next period starts from",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				v   billing.MeterValues
				err error
			)
			if id != "" {
				v, err = c.history.PrefillFrom(cmd.Context(), id)
			} else {
				v, err = c.history.Prefill(cmd.Context())
			}
			if errors.Is(err, history.ErrNoReadings) {
				fmt.Fprintln(c.out, "This record has no stored readings (saved by an older version).")
				return nil
			}
			if err != nil {
				return err
			}
			for _, m := range billing.Meters {
				fmt.Fprintf(c.out, "--%s=%s\n", flagName(m.Key()+"_prev"), formatReading(v.Get(m)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "use this record instead of the latest")
	return cmd
}
