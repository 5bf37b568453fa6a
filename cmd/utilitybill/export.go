package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bher20/utilitybill/internal/export"
)

func newExportCmd(c *cli) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:       "export xlsx|pdf",
		Short:     "Write the history to a spreadsheet or PDF file",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{export.FormatXLSX, export.FormatPDF},
		RunE: func(cmd *cobra.Command, args []string) error {
			format := args[0]
			if format != export.FormatXLSX && format != export.FormatPDF {
				return fmt.Errorf("unsupported export format %q", format)
			}
			ctx := cmd.Context()
			if err := c.open(ctx); err != nil {
				return err
			}
			if dir == "" {
				dir = c.cfg.Export.Dir
			}
			recs, err := c.history.Load(ctx)
			if err != nil {
				return err
			}
			path, err := export.WriteFile(dir, format, recs, nowFunc(), export.Options{FontPath: c.cfg.Export.FontPath})
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default from UTILITYBILL_EXPORT_DIR)")
	return cmd
}
