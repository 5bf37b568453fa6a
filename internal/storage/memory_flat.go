package storage

import (
	"context"
	"sync"

	"github.com/bher20/utilitybill/internal/billing"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// throwaway sessions.
type MemoryStorage struct {
	mu      sync.RWMutex
	periods []PeriodRecord
	tariffs *billing.TariffSet
	seq     uint64
}

// NewMemory returns an empty MemoryStorage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{}
}

// NewMemoryWithPeriods returns a MemoryStorage preloaded with records, kept
// in the given order.
func NewMemoryWithPeriods(list []PeriodRecord) *MemoryStorage {
	m := NewMemory()
	for _, p := range list {
		m.seq++
		p.Seq = m.seq
		m.periods = append(m.periods, p)
	}
	return m
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

func (m *MemoryStorage) ListPeriods(ctx context.Context) ([]PeriodRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PeriodRecord, len(m.periods))
	copy(out, m.periods)
	return out, nil
}

func (m *MemoryStorage) AppendPeriod(ctx context.Context, rec PeriodRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	rec.Seq = m.seq
	m.periods = append(m.periods, rec)
	return nil
}

func (m *MemoryStorage) DeletePeriods(ctx context.Context, key PeriodKey) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.periods[:0:0]
	for _, p := range m.periods {
		if p.Key() != key {
			kept = append(kept, p)
		}
	}
	removed := len(m.periods) - len(kept)
	m.periods = kept
	return removed, nil
}

func (m *MemoryStorage) DeletePeriodByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.periods {
		if p.ID == id {
			m.periods = append(m.periods[:i:i], m.periods[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStorage) GetTariffs(ctx context.Context) (*billing.TariffSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tariffs == nil {
		return nil, nil
	}
	cp := *m.tariffs
	return &cp, nil
}

func (m *MemoryStorage) SaveTariffs(ctx context.Context, t billing.TariffSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tariffs = &t
	return nil
}
