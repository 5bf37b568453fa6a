package tariffs

import (
	"context"
	"errors"
	"testing"

	"github.com/bher20/utilitybill/internal/billing"
	"github.com/bher20/utilitybill/internal/storage"
)

type brokenStore struct {
	*storage.MemoryStorage
	saves int
}

func (b *brokenStore) GetTariffs(ctx context.Context) (*billing.TariffSet, error) {
	return nil, errors.New("disk on fire")
}

func (b *brokenStore) SaveTariffs(ctx context.Context, t billing.TariffSet) error {
	b.saves++
	return errors.New("disk on fire")
}

func TestLoad_NothingStoredWritesDefaults(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	svc := NewService(st, nil)

	got := svc.Load(ctx)
	if got != billing.DefaultTariffs() {
		t.Fatalf("expected defaults, got %+v", got)
	}
	stored, err := st.GetTariffs(ctx)
	if err != nil || stored == nil {
		t.Fatalf("defaults were not written back: %v", err)
	}
	if *stored != billing.DefaultTariffs() {
		t.Fatalf("written set differs from defaults: %+v", *stored)
	}
}

func TestLoad_StoredSetWins(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	custom := billing.DefaultTariffs()
	custom.NightElectric = 3.05
	if err := st.SaveTariffs(ctx, custom); err != nil {
		t.Fatal(err)
	}
	if got := NewService(st, nil).Load(ctx); got != custom {
		t.Fatalf("expected stored set, got %+v", got)
	}
}

func TestLoad_InvalidStoredSetFallsBack(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	bad := billing.DefaultTariffs()
	bad.Sewage = -1
	if err := st.SaveTariffs(ctx, bad); err != nil {
		t.Fatal(err)
	}
	if got := NewService(st, nil).Load(ctx); got != billing.DefaultTariffs() {
		t.Fatalf("expected defaults, got %+v", got)
	}
	stored, _ := st.GetTariffs(ctx)
	if stored.Sewage != -1 {
		t.Fatalf("invalid stored set must be left in place")
	}
}

func TestLoad_UnreadableFallsBackWithoutWriting(t *testing.T) {
	st := &brokenStore{MemoryStorage: storage.NewMemory()}
	if got := NewService(st, nil).Load(context.Background()); got != billing.DefaultTariffs() {
		t.Fatalf("expected defaults, got %+v", got)
	}
	if st.saves != 0 {
		t.Fatalf("unreadable storage must not be overwritten, saw %d saves", st.saves)
	}
}

func TestSave_RejectsNegative(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	svc := NewService(st, nil)

	bad := billing.DefaultTariffs()
	bad.HeatNorm = -0.01
	if err := svc.Save(ctx, bad); !errors.Is(err, billing.ErrInvalidTariff) {
		t.Fatalf("expected ErrInvalidTariff, got %v", err)
	}
	if stored, _ := st.GetTariffs(ctx); stored != nil {
		t.Fatalf("nothing should have been stored")
	}
}

func TestSave_WrapsStorageError(t *testing.T) {
	st := &brokenStore{MemoryStorage: storage.NewMemory()}
	err := NewService(st, nil).Save(context.Background(), billing.DefaultTariffs())
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestUpdate_EmptyFieldKeepsDefault(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	svc := NewService(st, nil)

	got, err := svc.Update(ctx, map[string]string{
		billing.KeyDayElectric: "7,10",
		billing.KeySewage:      "",
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.DayElectric != 7.10 || got.Sewage != 46.73 {
		t.Fatalf("unexpected set: %+v", got)
	}
	if loaded := svc.Load(ctx); loaded != got {
		t.Fatalf("Load after Update = %+v, want %+v", loaded, got)
	}

	if _, err := svc.Update(ctx, map[string]string{billing.KeyColdWater: "abc"}); !errors.Is(err, billing.ErrInvalidTariff) {
		t.Fatalf("expected ErrInvalidTariff, got %v", err)
	}
}
