package export

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/bher20/utilitybill/internal/storage"
)

var generated = time.Date(2025, time.December, 1, 8, 30, 0, 0, time.UTC)

func sample() []storage.PeriodRecord {
	return []storage.PeriodRecord{
		{ID: "a", Period: "October 2025", DateSaved: "2025-10-31", SumWater: 60, SumElectricity: 40, Total: 100},
		{ID: "c", Period: "December 2025", DateSaved: "2025-12-31", SumWater: 250, SumElectricity: 150, Total: 400},
		{ID: "b", Period: "November 2025", DateSaved: "2025-11-30", SumWater: 100, SumElectricity: 200, Total: 300},
	}
}

func TestBuildHistoryXLSX(t *testing.T) {
	data, err := BuildHistoryXLSX(sample(), generated)
	if err != nil {
		t.Fatalf("BuildHistoryXLSX failed: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("workbook not readable: %v", err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue("periods", "A2"); got != "December 2025" {
		t.Fatalf("expected newest period first, got %q", got)
	}
	if got, _ := f.GetCellValue("periods", "A4"); got != "October 2025" {
		t.Fatalf("expected oldest period last, got %q", got)
	}
	if got, _ := f.GetCellValue("summary", "B4"); got != "3" {
		t.Fatalf("expected 3 periods, got %q", got)
	}
	if got, _ := f.GetCellValue("summary", "B5"); got != "800" {
		t.Fatalf("expected total 800, got %q", got)
	}
	if got, _ := f.GetCellValue("summary", "B8"); got != "800" {
		t.Fatalf("expected last-3 total 800, got %q", got)
	}
}

func TestBuildHistoryPDF(t *testing.T) {
	data, err := BuildHistoryPDF(sample(), generated, Options{})
	if err != nil {
		t.Fatalf("BuildHistoryPDF failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
}

func cyrillicHistory() []storage.PeriodRecord {
	return []storage.PeriodRecord{
		{ID: "a", Period: "Октябрь 2025", DateSaved: "2025-10-31", SumWater: 60, SumElectricity: 40, Total: 100},
		{ID: "b", Period: "Ноябрь 2025", DateSaved: "2025-11-30", SumWater: 100, SumElectricity: 200, Total: 300},
	}
}

func TestBuildHistoryPDF_CyrillicWithoutUnicodeFont(t *testing.T) {
	saved := systemFonts
	systemFonts = nil
	defer func() { systemFonts = saved }()

	_, err := BuildHistoryPDF(cyrillicHistory(), generated, Options{})
	if !errors.Is(err, ErrNotRepresentable) {
		t.Fatalf("expected ErrNotRepresentable, got %v", err)
	}

	// Latin-1 labels still work with the built-in font.
	latin := []storage.PeriodRecord{{ID: "x", Period: "Décembre 2025", DateSaved: "2025-12-31", Total: 1}}
	if _, err := BuildHistoryPDF(latin, generated, Options{}); err != nil {
		t.Fatalf("cp1252 label rejected: %v", err)
	}
}

func TestBuildHistoryPDF_CyrillicWithUnicodeFont(t *testing.T) {
	font := ""
	for _, p := range systemFonts {
		if _, err := os.Stat(p); err == nil {
			font = p
			break
		}
	}
	if font == "" {
		t.Skip("no unicode TrueType font installed")
	}
	data, err := BuildHistoryPDF(cyrillicHistory(), generated, Options{FontPath: font})
	if err != nil {
		t.Fatalf("BuildHistoryPDF failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
}

func TestBuildHistoryPDF_MissingFont(t *testing.T) {
	_, err := BuildHistoryPDF(sample(), generated, Options{FontPath: filepath.Join(t.TempDir(), "nope.ttf")})
	if err == nil {
		t.Fatalf("expected error for missing font file")
	}
}

func TestBuild_EmptyHistory(t *testing.T) {
	for _, format := range []string{FormatXLSX, FormatPDF} {
		if _, err := Build(format, nil, generated, Options{}); err != nil {
			t.Fatalf("%s with empty history: %v", format, err)
		}
	}
	if _, err := Build("csv", nil, generated, Options{}); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	path, err := WriteFile(dir, FormatXLSX, sample(), generated, Options{})
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if filepath.Base(path) != "history-20251201-083000.xlsx" {
		t.Fatalf("unexpected file name %s", path)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Fatalf("export file missing or empty: %v", err)
	}
}

func TestContentType(t *testing.T) {
	if ContentType(FormatPDF) != "application/pdf" {
		t.Fatalf("wrong pdf content type")
	}
	if ContentType("zip") != "application/octet-stream" {
		t.Fatalf("wrong fallback content type")
	}
}
