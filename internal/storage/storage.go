package storage

import (
	"context"
	"errors"

	"github.com/bher20/utilitybill/internal/billing"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// Storage abstracts persistence for the billing history and the tariff set.
type Storage interface {
	// History, in storage order.
	ListPeriods(ctx context.Context) ([]PeriodRecord, error)
	AppendPeriod(ctx context.Context, rec PeriodRecord) error
	// DeletePeriods removes every record matching key and reports how many
	// were removed.
	DeletePeriods(ctx context.Context, key PeriodKey) (int, error)
	DeletePeriodByID(ctx context.Context, id string) error

	// Tariffs. GetTariffs returns nil, nil when nothing has been stored yet.
	GetTariffs(ctx context.Context) (*billing.TariffSet, error)
	SaveTariffs(ctx context.Context, t billing.TariffSet) error

	Ping(ctx context.Context) error
	// Close releases any resources (no-op for in-memory).
	Close() error
}
