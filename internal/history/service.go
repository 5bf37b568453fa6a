package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bher20/utilitybill/internal/billing"
	"github.com/bher20/utilitybill/internal/metrics"
	"github.com/bher20/utilitybill/internal/storage"
	"github.com/bher20/utilitybill/internal/timeline"
)

var (
	// ErrSaveFailed wraps any storage failure during Commit. The caller still
	// holds the result and may retry.
	ErrSaveFailed = errors.New("could not save period to history")
	// ErrEmptyLabel is returned by Commit when the period label is blank.
	ErrEmptyLabel = errors.New("period label is empty")
	// ErrNoReadings is returned when a record predates stored readings.
	ErrNoReadings = errors.New("record has no stored readings")
	// ErrEmptyHistory is returned by Prefill when nothing has been saved.
	ErrEmptyHistory = errors.New("history is empty")
)

// Service is the history store: an ordered log of committed periods on top
// of a storage backend. Every call reads the backend again.
type Service struct {
	store storage.Storage
	log   *zap.Logger
	now   func() time.Time
	newID func() string
}

func NewService(st storage.Storage, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store: st,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// WithClock replaces the clock used for save dates.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Load returns all records in timeline order, oldest first.
func (s *Service) Load(ctx context.Context) ([]storage.PeriodRecord, error) {
	recs, err := s.store.ListPeriods(ctx)
	metrics.ObserveHistory("load", err)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return timeline.Sort(recs), nil
}

// Table returns all records newest first.
func (s *Service) Table(ctx context.Context) ([]storage.PeriodRecord, error) {
	recs, err := s.store.ListPeriods(ctx)
	metrics.ObserveHistory("load", err)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return timeline.NewestFirst(recs), nil
}

// Commit snapshots a computed result under label and appends it. The
// current readings are stored so the next period can start from them.
// Nothing is deduplicated: committing twice gives two records.
func (s *Service) Commit(ctx context.Context, label string, r billing.Readings, res billing.Result) (storage.PeriodRecord, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return storage.PeriodRecord{}, ErrEmptyLabel
	}

	rec := storage.PeriodRecord{
		ID:             s.newID(),
		Period:         label,
		DateSaved:      s.now().Format(storage.DateLayout),
		SumWater:       billing.Round2(res.Water),
		SumElectricity: billing.Round2(res.Electricity),
		Total:          billing.Round2(res.Total),
	}
	rec.SetCurrentReadings(r.Current)

	err := s.store.AppendPeriod(ctx, rec)
	metrics.ObserveHistory("commit", err)
	if err != nil {
		s.log.Warn("history commit failed", zap.String("period", label), zap.Error(err))
		return storage.PeriodRecord{}, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	s.log.Info("period saved",
		zap.String("id", rec.ID),
		zap.String("period", rec.Period),
		zap.Float64("total", rec.Total))
	return rec, nil
}

// Delete removes every record with the given period label and save date and
// reports how many were removed.
func (s *Service) Delete(ctx context.Context, key storage.PeriodKey) (int, error) {
	n, err := s.store.DeletePeriods(ctx, key)
	metrics.ObserveHistory("delete", err)
	if err != nil {
		return 0, fmt.Errorf("delete %q (%s): %w", key.Period, key.DateSaved, err)
	}
	s.log.Info("periods deleted",
		zap.String("period", key.Period),
		zap.String("date_saved", key.DateSaved),
		zap.Int("removed", n))
	return n, nil
}

// DeleteByID removes exactly one record. storage.ErrNotFound is returned
// when no record has that id.
func (s *Service) DeleteByID(ctx context.Context, id string) error {
	err := s.store.DeletePeriodByID(ctx, id)
	metrics.ObserveHistory("delete", err)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	s.log.Info("period deleted", zap.String("id", id))
	return nil
}

// Prefill returns the latest record's current readings, to be used as the
// previous readings of the next period.
func (s *Service) Prefill(ctx context.Context) (billing.MeterValues, error) {
	recs, err := s.Load(ctx)
	if err != nil {
		return billing.MeterValues{}, err
	}
	if len(recs) == 0 {
		return billing.MeterValues{}, ErrEmptyHistory
	}
	return ReadingsOf(recs[len(recs)-1])
}

// PrefillFrom is Prefill for a chosen record instead of the latest one.
func (s *Service) PrefillFrom(ctx context.Context, id string) (billing.MeterValues, error) {
	recs, err := s.store.ListPeriods(ctx)
	if err != nil {
		return billing.MeterValues{}, fmt.Errorf("load history: %w", err)
	}
	for _, r := range recs {
		if r.ID == id {
			return ReadingsOf(r)
		}
	}
	return billing.MeterValues{}, fmt.Errorf("prefill from %s: %w", id, storage.ErrNotFound)
}

// ReadingsOf returns rec's stored current readings, or ErrNoReadings for a
// record saved without them.
func ReadingsOf(rec storage.PeriodRecord) (billing.MeterValues, error) {
	v, ok := rec.CurrentReadings()
	if !ok {
		return billing.MeterValues{}, fmt.Errorf("%q: %w", rec.Period, ErrNoReadings)
	}
	return v, nil
}

// DefaultPeriodLabel names the month containing t, e.g. "November 2025".
func DefaultPeriodLabel(t time.Time) string {
	return fmt.Sprintf("%s %d", t.Month(), t.Year())
}
