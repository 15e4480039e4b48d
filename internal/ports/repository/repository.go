package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"driverpay.service/internal/core/model"
)

// Store contract. The store exclusively owns DriverState and Entry records:
// callers re-fetch, mutate in memory and persist the whole record back instead
// of holding references across suspension points.
type Store interface {
	GetDriver(ctx context.Context, driverID int64) (*model.DriverState, error)
	PutDriver(ctx context.Context, d *model.DriverState) error
	ListDrivers(ctx context.Context) ([]*model.DriverState, error)

	// CreateEntry assigns the next monotonically increasing id and returns it.
	CreateEntry(ctx context.Context, e *model.Entry) (int64, error)
	GetEntry(ctx context.Context, id int64) (*model.Entry, error)
	UpdateEntry(ctx context.Context, e *model.Entry) error

	// EntriesInRange returns the driver's processed entries whose commit time
	// falls within [from, to], in id order.
	EntriesInRange(ctx context.Context, driverID int64, from, to time.Time) ([]*model.Entry, error)
	ListDriverEntries(ctx context.Context, driverID int64) ([]*model.Entry, error)

	// DriverTotals sums earned and cash over every processed entry of the driver.
	DriverTotals(ctx context.Context, driverID int64) (earned, cash decimal.Decimal, err error)
}
