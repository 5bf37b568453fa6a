package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bher20/utilitybill/internal/billing"
	"github.com/bher20/utilitybill/internal/storage"
	"github.com/bher20/utilitybill/internal/timeline"
)

type failingAppend struct {
	*storage.MemoryStorage
}

func (f failingAppend) AppendPeriod(ctx context.Context, rec storage.PeriodRecord) error {
	return errors.New("read-only filesystem")
}

func scenario() (billing.Readings, billing.Result) {
	r := billing.Readings{
		Previous: billing.MeterValues{ColdWater: 10, HotWater: 5, DayElectricity: 100, NightElectricity: 50},
		Current:  billing.MeterValues{ColdWater: 15, HotWater: 8, DayElectricity: 150, NightElectricity: 70},
	}
	return r, billing.Compute(r, billing.DefaultTariffs())
}

func newTestService(st storage.Storage, day string) *Service {
	svc := NewService(st, nil)
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	svc.now = func() time.Time {
		t, _ := time.Parse(storage.DateLayout, day)
		return t
	}
	return svc
}

func TestCommit_ThenLoad(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(storage.NewMemory(), "2025-11-30")
	r, res := scenario()

	rec, err := svc.Commit(ctx, "  November 2025 ", r, res)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if rec.Period != "November 2025" || rec.DateSaved != "2025-11-30" || rec.ID != "id-1" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Total != 1635.97 || rec.SumWater != 1240.27 || rec.SumElectricity != 395.7 {
		t.Fatalf("unexpected totals: %+v", rec)
	}

	recs, err := svc.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "id-1" {
		t.Fatalf("committed record not visible: %+v", recs)
	}

	// No dedup.
	if _, err := svc.Commit(ctx, "November 2025", r, res); err != nil {
		t.Fatalf("second Commit failed: %v", err)
	}
	recs, _ = svc.Load(ctx)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
}

func TestCommit_EmptyLabel(t *testing.T) {
	st := storage.NewMemory()
	svc := newTestService(st, "2025-11-30")
	r, res := scenario()
	if _, err := svc.Commit(context.Background(), "   ", r, res); !errors.Is(err, ErrEmptyLabel) {
		t.Fatalf("expected ErrEmptyLabel, got %v", err)
	}
	recs, _ := st.ListPeriods(context.Background())
	if len(recs) != 0 {
		t.Fatalf("nothing should have been stored")
	}
}

func TestCommit_StorageFailure(t *testing.T) {
	svc := newTestService(failingAppend{storage.NewMemory()}, "2025-11-30")
	r, res := scenario()
	_, err := svc.Commit(context.Background(), "November 2025", r, res)
	if !errors.Is(err, ErrSaveFailed) {
		t.Fatalf("expected ErrSaveFailed, got %v", err)
	}
}

func TestDelete_RemovesAllMatching(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(storage.NewMemory(), "2025-11-30")
	r, res := scenario()
	for _, label := range []string{"November 2025", "November 2025", "Other"} {
		if _, err := svc.Commit(ctx, label, r, res); err != nil {
			t.Fatal(err)
		}
	}

	n, err := svc.Delete(ctx, storage.PeriodKey{Period: "November 2025", DateSaved: "2025-11-30"})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	recs, _ := svc.Load(ctx)
	if len(recs) != 1 || recs[0].Period != "Other" {
		t.Fatalf("unexpected remaining records: %+v", recs)
	}
	if s := timeline.Summarize(recs); s.Count != 1 {
		t.Fatalf("summary not recomputed from storage: %+v", s)
	}
}

func TestDeleteByID(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(storage.NewMemory(), "2025-11-30")
	r, res := scenario()
	svc.Commit(ctx, "A", r, res)
	svc.Commit(ctx, "A", r, res)

	if err := svc.DeleteByID(ctx, "id-2"); err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}
	recs, _ := svc.Load(ctx)
	if len(recs) != 1 || recs[0].ID != "id-1" {
		t.Fatalf("wrong record removed: %+v", recs)
	}
	if err := svc.DeleteByID(ctx, "id-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTable_NewestFirst(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryWithPeriods([]storage.PeriodRecord{
		{ID: "a", Period: "October 2025", DateSaved: "2025-10-31", Total: 1},
		{ID: "b", Period: "December 2025", DateSaved: "2025-12-31", Total: 3},
		{ID: "c", Period: "November 2025", DateSaved: "2025-11-30", Total: 2},
	})
	svc := NewService(st, nil)

	table, err := svc.Table(ctx)
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}
	got := table[0].ID + table[1].ID + table[2].ID
	if got != "bca" {
		t.Fatalf("expected bca, got %s", got)
	}
	recs, _ := svc.Load(ctx)
	if got := recs[0].ID + recs[1].ID + recs[2].ID; got != "acb" {
		t.Fatalf("expected acb, got %s", got)
	}
}

func TestPrefill(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(storage.NewMemory(), "2025-11-30")

	if _, err := svc.Prefill(ctx); !errors.Is(err, ErrEmptyHistory) {
		t.Fatalf("expected ErrEmptyHistory, got %v", err)
	}

	r, res := scenario()
	if _, err := svc.Commit(ctx, "November 2025", r, res); err != nil {
		t.Fatal(err)
	}
	prev, err := svc.Prefill(ctx)
	if err != nil {
		t.Fatalf("Prefill failed: %v", err)
	}
	if prev != r.Current {
		t.Fatalf("expected %+v, got %+v", r.Current, prev)
	}

	from, err := svc.PrefillFrom(ctx, "id-1")
	if err != nil || from != r.Current {
		t.Fatalf("PrefillFrom: %+v, %v", from, err)
	}
	if _, err := svc.PrefillFrom(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPrefill_LegacyRecord(t *testing.T) {
	st := storage.NewMemoryWithPeriods([]storage.PeriodRecord{
		{ID: "old", Period: "March 2024", DateSaved: "2024-03-31", Total: 1200.5},
	})
	_, err := NewService(st, nil).Prefill(context.Background())
	if !errors.Is(err, ErrNoReadings) {
		t.Fatalf("expected ErrNoReadings, got %v", err)
	}
}

func TestDefaultPeriodLabel(t *testing.T) {
	got := DefaultPeriodLabel(time.Date(2025, time.November, 12, 9, 0, 0, 0, time.UTC))
	if got != "November 2025" {
		t.Fatalf("expected November 2025, got %q", got)
	}
}
