package repository

import (
	"context"
	"time"

	"github.com/Desteles/deli-pwa-app/internal/domain"
)

// StatusChange is a guarded status update: it only applies while the row is in
// one of From (and, when DriverID is set, assigned to that driver).
type StatusChange struct {
	From     []domain.Status
	To       domain.Status
	Stamp    domain.Stamp // optional timestamp column to set
	At       time.Time    // value for Stamp
	DriverID *int64
}

// DeliveriesRepository deliveries table access
type DeliveriesRepository interface {
	// CreateDelivery inserts a draft and returns its id.
	CreateDelivery(ctx context.Context, d domain.NewDelivery) (int64, error)

	// GetDelivery returns domain.ErrNotFound for unknown ids.
	GetDelivery(ctx context.Context, id int64) (*domain.DeliveryRecord, error)

	// ListByStatus lists in insertion order; completed rows are ordered by
	// completed_at descending. limit <= 0 means no limit.
	ListByStatus(ctx context.Context, status domain.Status, limit int) ([]*domain.DeliveryRecord, error)

	// ListActiveForDriver lists the driver's non-terminal deliveries.
	ListActiveForDriver(ctx context.Context, driverID int64) ([]*domain.DeliveryRecord, error)

	// ListCompletedForDriver lists the driver's deliveries completed at or after since.
	ListCompletedForDriver(ctx context.Context, driverID int64, since time.Time, limit int) ([]*domain.DeliveryRecord, error)

	// ListAll lists every delivery by id (spreadsheet export).
	ListAll(ctx context.Context) ([]*domain.DeliveryRecord, error)

	// ListForDriverExport lists the driver's non-draft deliveries, completed first.
	ListForDriverExport(ctx context.Context, driverID int64) ([]*domain.DeliveryRecord, error)

	// UpdateField sets one allow-listed column of a draft.
	UpdateField(ctx context.Context, id int64, field domain.Field, value *string) error

	// AssignDriver sets driver_id, driver_name and status=assigned on a draft.
	AssignDriver(ctx context.Context, id int64, driverID int64, driverName string) error

	// TransitionStatus applies a guarded status change.
	TransitionStatus(ctx context.Context, id int64, change StatusChange) error
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// terminalStatuses are excluded from a driver's active list.
var terminalStatuses = []domain.Status{domain.StatusCompleted, domain.StatusCancelled}
