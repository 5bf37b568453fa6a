package tariffs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bher20/utilitybill/internal/billing"
	"github.com/bher20/utilitybill/internal/storage"
)

// Service loads and replaces the active tariff set.
type Service struct {
	store storage.Storage
	log   *zap.Logger
}

func NewService(st storage.Storage, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, log: log}
}

// Load returns the stored tariff set, each missing key filled from the
// defaults. With nothing stored, the defaults are returned and written back.
// Unreadable or invalid stored values fall back to the defaults and are left
// in place.
func (s *Service) Load(ctx context.Context) billing.TariffSet {
	defaults := billing.DefaultTariffs()

	stored, err := s.store.GetTariffs(ctx)
	if err != nil {
		s.log.Warn("tariffs unreadable, using defaults", zap.Error(err))
		return defaults
	}
	if stored == nil {
		if err := s.store.SaveTariffs(ctx, defaults); err != nil {
			s.log.Warn("could not write default tariffs", zap.Error(err))
		} else {
			s.log.Info("default tariffs written")
		}
		return defaults
	}
	if err := stored.Validate(); err != nil {
		s.log.Warn("stored tariffs invalid, using defaults", zap.Error(err))
		return defaults
	}
	return *stored
}

// Save validates t and replaces the stored set with it.
func (s *Service) Save(ctx context.Context, t billing.TariffSet) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.store.SaveTariffs(ctx, t); err != nil {
		return fmt.Errorf("save tariffs: %w", err)
	}
	s.log.Info("tariffs updated")
	return nil
}

// Update applies the editor form: empty fields keep the default for that
// key. The parsed set is saved and returned.
func (s *Service) Update(ctx context.Context, form map[string]string) (billing.TariffSet, error) {
	t, err := billing.ParseTariffs(form)
	if err != nil {
		return billing.TariffSet{}, err
	}
	if err := s.Save(ctx, t); err != nil {
		return billing.TariffSet{}, err
	}
	return t, nil
}
