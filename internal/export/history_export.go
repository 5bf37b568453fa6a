// Package export renders the billing history as spreadsheet or PDF files.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/bher20/utilitybill/internal/storage"
	"github.com/bher20/utilitybill/internal/timeline"
)

const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// ErrNotRepresentable is returned when PDF text needs glyphs the built-in
// font lacks and no unicode font is available.
var ErrNotRepresentable = errors.New("text cannot be printed with the built-in PDF font; configure a unicode TrueType font")

// Options controls rendering.
type Options struct {
	// FontPath is a TrueType font for PDF text. When empty the first
	// existing entry of systemFonts is used, then the built-in Arial.
	FontPath string
}

var systemFonts = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"/usr/share/fonts/liberation/LiberationSans-Regular.ttf",
	"/usr/share/fonts/noto/NotoSans-Regular.ttf",
	"/Library/Fonts/Arial Unicode.ttf",
	`C:\Windows\Fonts\arial.ttf`,
}

func resolveFont(opts Options) (string, error) {
	if opts.FontPath != "" {
		if _, err := os.Stat(opts.FontPath); err != nil {
			return "", fmt.Errorf("pdf font: %w", err)
		}
		return opts.FontPath, nil
	}
	for _, p := range systemFonts {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// ContentType returns the MIME type for an export format.
func ContentType(format string) string {
	switch format {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

// Build renders records in the given format. Records are listed newest
// first regardless of input order.
func Build(format string, records []storage.PeriodRecord, generated time.Time, opts Options) ([]byte, error) {
	switch format {
	case FormatXLSX:
		return BuildHistoryXLSX(records, generated)
	case FormatPDF:
		return BuildHistoryPDF(records, generated, opts)
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

// BuildHistoryPDF renders a one-table PDF of the history. Without a unicode
// font, text outside cp1252 fails with ErrNotRepresentable.
func BuildHistoryPDF(records []storage.PeriodRecord, generated time.Time, opts Options) ([]byte, error) {
	rows := timeline.NewestFirst(records)

	fontPath, err := resolveFont(opts)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	family := "Arial"
	tr := func(s string) string { return s }
	if fontPath != "" {
		family = "body"
		pdf.AddUTF8Font(family, "", fontPath)
		pdf.AddUTF8Font(family, "B", fontPath)
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("pdf font %s: %w", fontPath, err)
		}
	} else {
		for _, r := range rows {
			if _, err := charmap.Windows1252.NewEncoder().String(r.Period); err != nil {
				return nil, fmt.Errorf("%w: period %q", ErrNotRepresentable, r.Period)
			}
		}
		tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	pdf.SetFont(family, "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Utility Bill History")
	pdf.Ln(10)
	pdf.SetFont(family, "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generated.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(timeline.TableFooter(records)))
	pdf.Ln(8)

	pdf.SetFont(family, "B", 10)
	pdf.CellFormat(50, 6, "Period", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Water", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Electricity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Total", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Saved", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont(family, "", 10)
	for _, r := range rows {
		pdf.CellFormat(50, 6, tr(r.Period), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", r.SumWater), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", r.SumElectricity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", r.Total), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, r.DateSaved, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildHistoryXLSX renders a workbook with a summary sheet and a periods
// sheet.
func BuildHistoryXLSX(records []storage.PeriodRecord, generated time.Time) ([]byte, error) {
	rows := timeline.NewestFirst(records)
	sum := timeline.Summarize(records)

	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	periodsSheet := "periods"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(periodsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Utility Bill History")
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", generated.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Periods")
	_ = f.SetCellValue(summarySheet, "B4", sum.Count)
	_ = f.SetCellValue(summarySheet, "A5", "Total")
	_ = f.SetCellValue(summarySheet, "B5", sum.Total)
	_ = f.SetCellValue(summarySheet, "A6", "Average per month")
	_ = f.SetCellValue(summarySheet, "B6", sum.Average)
	_ = f.SetCellValue(summarySheet, "A7", "Last period")
	_ = f.SetCellValue(summarySheet, "B7", sum.LastPeriod)
	if sum.Count >= timeline.RecentWindow {
		_ = f.SetCellValue(summarySheet, "A8", fmt.Sprintf("Last %d months", timeline.RecentWindow))
		_ = f.SetCellValue(summarySheet, "B8", timeline.LastNTotal(records, timeline.RecentWindow))
	}

	for i, h := range []string{"Period", "Water", "Electricity", "Total", "Saved", "ID"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(periodsSheet, cell, h)
	}
	for i, r := range rows {
		row := i + 2
		_ = f.SetCellValue(periodsSheet, fmt.Sprintf("A%d", row), r.Period)
		_ = f.SetCellValue(periodsSheet, fmt.Sprintf("B%d", row), r.SumWater)
		_ = f.SetCellValue(periodsSheet, fmt.Sprintf("C%d", row), r.SumElectricity)
		_ = f.SetCellValue(periodsSheet, fmt.Sprintf("D%d", row), r.Total)
		_ = f.SetCellValue(periodsSheet, fmt.Sprintf("E%d", row), r.DateSaved)
		_ = f.SetCellValue(periodsSheet, fmt.Sprintf("F%d", row), r.ID)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile renders records into dir as history-<timestamp>.<format> and
// returns the path written.
func WriteFile(dir, format string, records []storage.PeriodRecord, generated time.Time, opts Options) (string, error) {
	data, err := Build(format, records, generated, opts)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("history-%s.%s", generated.Format("20060102-150405"), format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
