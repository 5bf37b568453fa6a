package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bher20/utilitybill/internal/billing"
	"github.com/bher20/utilitybill/internal/metrics"
)

// PostgresPoolStorage talks to Postgres through a pgx pool. The schema comes
// from the goose migrations in internal/migrate.
type PostgresPoolStorage struct {
	pool *pgxpool.Pool
}

func OpenPostgresPool(ctx context.Context, dsn string) (*PostgresPoolStorage, error) {
	if dsn == "" {
		dsn = "postgres://localhost:5432/utilitybill?sslmode=disable"
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &PostgresPoolStorage{pool: pool}, nil
}

func (s *PostgresPoolStorage) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the connection and refreshes the pool gauges.
func (s *PostgresPoolStorage) Ping(ctx context.Context) error {
	err := s.pool.Ping(ctx)
	st := s.pool.Stat()
	metrics.UpdateDBPoolMetrics("postgrespool",
		float64(st.TotalConns()), float64(st.IdleConns()), float64(st.AcquiredConns()), uint64(st.AcquireCount()))
	return err
}

const periodColumns = `id, period, date_saved, sum_water, sum_electricity, total, xvs_curr, gvs_curr, el_day_curr, el_night_curr`

func (s *PostgresPoolStorage) ListPeriods(ctx context.Context) ([]PeriodRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT seq, `+periodColumns+` FROM periods ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PeriodRecord
	for rows.Next() {
		var p PeriodRecord
		if err := rows.Scan(&p.Seq, &p.ID, &p.Period, &p.DateSaved, &p.SumWater, &p.SumElectricity, &p.Total,
			&p.ColdWaterCurr, &p.HotWaterCurr, &p.DayElectricityCurr, &p.NightElectricityCurr); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) AppendPeriod(ctx context.Context, p PeriodRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO periods (`+periodColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, p.ID, p.Period, p.DateSaved, p.SumWater, p.SumElectricity, p.Total,
		p.ColdWaterCurr, p.HotWaterCurr, p.DayElectricityCurr, p.NightElectricityCurr)
	return err
}

func (s *PostgresPoolStorage) DeletePeriods(ctx context.Context, key PeriodKey) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM periods WHERE period=$1 AND date_saved=$2`, key.Period, key.DateSaved)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresPoolStorage) DeletePeriodByID(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM periods WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresPoolStorage) GetTariffs(ctx context.Context) (*billing.TariffSet, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM settings WHERE key = ANY($1)`, billing.TariffKeys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Setting
	for rows.Next() {
		var st Setting
		if err := rows.Scan(&st.Key, &st.Value); err != nil {
			return nil, err
		}
		list = append(list, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	t, err := tariffsFromSettings(list)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresPoolStorage) SaveTariffs(ctx context.Context, t billing.TariffSet) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		now := time.Now()
		m := t.Map()
		for _, key := range billing.TariffKeys {
			_, err := tx.Exec(ctx, `
				INSERT INTO settings (key, value, updated_at) VALUES ($1,$2,$3)
				ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at
			`, key, strconv.FormatFloat(m[key], 'g', -1, 64), now)
			if err != nil {
				return fmt.Errorf("save %s: %w", key, err)
			}
		}
		return nil
	})
}

var _ Storage = (*PostgresPoolStorage)(nil)
