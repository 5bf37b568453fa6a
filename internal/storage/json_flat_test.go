package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStorage(t *testing.T) {
	st, err := OpenFile(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	exerciseStorage(t, st)
}

func TestFileStorage_WritesDocumentKeys(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st, err := OpenFile(dir, nil)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	if err := st.AppendPeriod(ctx, rec("id-1", "November 2025", "2025-11-30", 1635.97)); err != nil {
		t.Fatalf("AppendPeriod failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, HistoryFileName))
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	var docs []map[string]any
	if err := json.Unmarshal(data, &docs); err != nil {
		t.Fatalf("history is not a JSON array: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	for _, key := range []string{"period", "date_saved", "sum_water", "sum_electricity", "total",
		"xvs_curr", "gvs_curr", "el_day_curr", "el_night_curr", "id"} {
		if _, ok := docs[0][key]; !ok {
			t.Errorf("missing key %q in stored document", key)
		}
	}
	if _, ok := docs[0]["Seq"]; ok {
		t.Errorf("internal sequence must not be written")
	}
}

func TestFileStorage_LegacyRecordsWithoutReadings(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	legacy := `[
  {"period": "March 2024", "date_saved": "2024-03-31", "sum_water": 900.5, "sum_electricity": 300, "total": 1200.5}
]`
	if err := os.WriteFile(filepath.Join(dir, HistoryFileName), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := OpenFile(dir, nil)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}

	list, err := st.ListPeriods(ctx)
	if err != nil {
		t.Fatalf("ListPeriods failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 record, got %d", len(list))
	}
	if _, ok := list[0].CurrentReadings(); ok {
		t.Fatalf("legacy record must not report current readings")
	}
	if list[0].ID == "" {
		t.Fatalf("expected an id to be assigned")
	}

	// The assigned id is persisted, so it can be used for deletion later.
	again, _ := st.ListPeriods(ctx)
	if again[0].ID != list[0].ID {
		t.Fatalf("id not stable across loads: %s vs %s", list[0].ID, again[0].ID)
	}
	if err := st.DeletePeriodByID(ctx, list[0].ID); err != nil {
		t.Fatalf("DeletePeriodByID failed: %v", err)
	}
}

func TestFileStorage_LegacyIDsDoNotDependOnWriteBack(t *testing.T) {
	ctx := context.Background()
	legacy := `[
  {"period": "Ноябрь 2025", "date_saved": "2025-11-30", "sum_water": 1240.27, "sum_electricity": 395.7, "total": 1635.97},
  {"period": "Ноябрь 2025", "date_saved": "2025-11-30", "sum_water": 1240.27, "sum_electricity": 395.7, "total": 1635.97},
  {"id": "kept", "period": "December 2025", "date_saved": "2025-12-31", "total": 10}
]`
	load := func() []PeriodRecord {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, HistoryFileName), []byte(legacy), 0o644); err != nil {
			t.Fatal(err)
		}
		st, err := OpenFile(dir, nil)
		if err != nil {
			t.Fatalf("OpenFile failed: %v", err)
		}
		list, err := st.ListPeriods(ctx)
		if err != nil {
			t.Fatalf("ListPeriods failed: %v", err)
		}
		return list
	}

	// Two independent copies of the same file get the same ids without
	// relying on the first read having been written back.
	a, b := load(), load()
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("record %d: id differs between copies: %s vs %s", i, a[i].ID, b[i].ID)
		}
	}
	if a[0].ID == a[1].ID {
		t.Fatalf("identical records must get distinct ids")
	}
	if a[2].ID != "kept" {
		t.Fatalf("existing id rewritten: %s", a[2].ID)
	}

	// Deleting by a derived id works on a file that never had ids written.
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, HistoryFileName), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}
	st, _ := OpenFile(dir, nil)
	if err := st.DeletePeriodByID(ctx, a[1].ID); err != nil {
		t.Fatalf("DeletePeriodByID with derived id failed: %v", err)
	}
	rest, _ := st.ListPeriods(ctx)
	if len(rest) != 2 || rest[0].ID != a[0].ID {
		t.Fatalf("unexpected records after delete: %+v", rest)
	}
}

func TestFileStorage_CorruptHistoryIsEmptyAndPreserved(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, HistoryFileName)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := OpenFile(dir, nil)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}

	list, err := st.ListPeriods(ctx)
	if err != nil {
		t.Fatalf("corrupt history must not be fatal: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty history, got %d", len(list))
	}

	if err := st.AppendPeriod(ctx, rec("n", "April 2024", "2024-04-30", 10)); err != nil {
		t.Fatalf("AppendPeriod failed: %v", err)
	}
	aside, err := os.ReadFile(path + ".corrupt")
	if err != nil {
		t.Fatalf("corrupt file was not kept: %v", err)
	}
	if string(aside) != "{not json" {
		t.Fatalf("unexpected aside content %q", aside)
	}
	list, _ = st.ListPeriods(ctx)
	if len(list) != 1 || list[0].ID != "n" {
		t.Fatalf("expected the new record only, got %+v", list)
	}
}

func TestFileStorage_PartialTariffDocument(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, TariffsFileName), []byte(`{"tariff_el_day": 7.5}`), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := OpenFile(dir, nil)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	got, err := st.GetTariffs(ctx)
	if err != nil || got == nil {
		t.Fatalf("GetTariffs: %+v, %v", got, err)
	}
	if got.DayElectric != 7.5 || got.Sewage != 46.73 {
		t.Fatalf("expected override plus defaults, got %+v", *got)
	}
}

func TestFileStorage_CorruptTariffDocument(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, TariffsFileName), []byte("oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	st, _ := OpenFile(dir, nil)
	if _, err := st.GetTariffs(context.Background()); err == nil {
		t.Fatalf("expected a decode error")
	}
}
