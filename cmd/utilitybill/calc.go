package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bher20/utilitybill/internal/billing"
	"github.com/bher20/utilitybill/internal/history"
)

// readingFlags binds one --<meter>-prev / --<meter>-curr flag pair per
// meter, e.g. --xvs-prev and --el-day-curr.
type readingFlags struct {
	values  map[string]*string
	prefill bool
}

func flagName(formKey string) string {
	return strings.ReplaceAll(formKey, "_", "-")
}

func addReadingFlags(cmd *cobra.Command) *readingFlags {
	rf := &readingFlags{values: map[string]*string{}}
	for _, m := range billing.Meters {
		for _, field := range []string{"prev", "curr"} {
			key := m.Key() + "_" + field
			rf.values[key] = cmd.Flags().String(flagName(key), "", fmt.Sprintf("%s reading (%s)", m, field))
		}
	}
	cmd.Flags().BoolVar(&rf.prefill, "prefill", false, "take previous readings from the latest saved period")
	return rf
}

// readings builds and validates the readings. With --prefill, previous
// readings not given explicitly come from the latest saved period.
func (rf *readingFlags) readings(cmd *cobra.Command, c *cli) (billing.Readings, error) {
	form := map[string]string{}
	for key, v := range rf.values {
		if cmd.Flags().Changed(flagName(key)) {
			form[key] = *v
		}
	}
	if rf.prefill {
		prev, err := c.history.Prefill(cmd.Context())
		switch {
		case errors.Is(err, history.ErrNoReadings):
			fmt.Fprintln(c.out, "The latest saved period has no stored readings (saved by an older version); enter previous readings by hand.")
		case errors.Is(err, history.ErrEmptyHistory):
		case err != nil:
			return billing.Readings{}, err
		default:
			for _, m := range billing.Meters {
				key := m.Key() + "_prev"
				if _, ok := form[key]; !ok {
					form[key] = formatReading(prev.Get(m))
				}
			}
		}
	}
	r, err := billing.ParseReadings(form)
	if err != nil {
		return billing.Readings{}, err
	}
	if err := r.Validate(); err != nil {
		return billing.Readings{}, err
	}
	return r, nil
}

func printResult(c *cli, res billing.Result) {
	for _, line := range res.Lines() {
		fmt.Fprintln(c.out, line)
	}
}

func newCalcCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Compute the bill for one period without saving it",
	}
	rf := addReadingFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := c.open(cmd.Context()); err != nil {
			return err
		}
		r, err := rf.readings(cmd, c)
		if err != nil {
			return err
		}
		printResult(c, billing.Compute(r, c.tariffs.Load(cmd.Context())))
		return nil
	}
	return cmd
}

func newSaveCmd(c *cli) *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Compute the bill and save it to the history",
	}
	rf := addReadingFlags(cmd)
	cmd.Flags().StringVar(&period, "period", "", `period label (default: current month, e.g. "November 2025")`)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := c.open(ctx); err != nil {
			return err
		}
		r, err := rf.readings(cmd, c)
		if err != nil {
			return err
		}
		res := billing.Compute(r, c.tariffs.Load(ctx))
		printResult(c, res)

		if !cmd.Flags().Changed("period") {
			period = history.DefaultPeriodLabel(nowFunc())
		}
		rec, err := c.history.Commit(ctx, period, r, res)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Period %q saved to history (id %s).\n", rec.Period, rec.ID)
		return nil
	}
	return cmd
}

// formatReading prints a meter value the way it would be typed, never in
// exponent form.
func formatReading(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
