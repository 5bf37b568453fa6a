package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/bher20/utilitybill/internal/billing"
)

type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(driver, dsn string) (*GormStorage, error) {
	var gormDialector gorm.Dialector
	switch driver {
	case "postgres":
		gormDialector = postgres.Open(dsn)
	case "sqlite":
		if dsn == "" {
			dsn = "utilitybill.db"
		}
		gormDialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(gormDialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	return &GormStorage{db: db}, nil
}

func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&PeriodRecord{},
		&Setting{},
	)
}

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Periods

func (s *GormStorage) ListPeriods(ctx context.Context) ([]PeriodRecord, error) {
	var out []PeriodRecord
	result := s.db.WithContext(ctx).Order("seq ASC").Find(&out)
	return out, result.Error
}

func (s *GormStorage) AppendPeriod(ctx context.Context, rec PeriodRecord) error {
	rec.Seq = 0
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *GormStorage) DeletePeriods(ctx context.Context, key PeriodKey) (int, error) {
	result := s.db.WithContext(ctx).
		Where("period = ? AND date_saved = ?", key.Period, key.DateSaved).
		Delete(&PeriodRecord{})
	return int(result.RowsAffected), result.Error
}

func (s *GormStorage) DeletePeriodByID(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&PeriodRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Tariffs

func (s *GormStorage) GetTariffs(ctx context.Context) (*billing.TariffSet, error) {
	var rows []Setting
	if err := s.db.WithContext(ctx).Where("key IN ?", billing.TariffKeys).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	t, err := tariffsFromSettings(rows)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *GormStorage) SaveTariffs(ctx context.Context, t billing.TariffSet) error {
	rows := settingsFromTariffs(t, time.Now())
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error
	})
}

func settingsFromTariffs(t billing.TariffSet, now time.Time) []Setting {
	m := t.Map()
	rows := make([]Setting, 0, len(billing.TariffKeys))
	for _, key := range billing.TariffKeys {
		rows = append(rows, Setting{
			Key:       key,
			Value:     strconv.FormatFloat(m[key], 'g', -1, 64),
			UpdatedAt: now,
		})
	}
	return rows
}

func tariffsFromSettings(rows []Setting) (billing.TariffSet, error) {
	m := make(map[string]float64, len(rows))
	for _, r := range rows {
		v, err := strconv.ParseFloat(r.Value, 64)
		if err != nil {
			return billing.TariffSet{}, fmt.Errorf("setting %s: %w", r.Key, err)
		}
		m[r.Key] = v
	}
	return billing.TariffsFromMap(m), nil
}

var _ Storage = (*GormStorage)(nil)
