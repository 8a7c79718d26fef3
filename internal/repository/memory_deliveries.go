package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Desteles/deli-pwa-app/internal/domain"
)

// MemoryDeliveriesRepo keeps deliveries in process memory. Used when the
// database is disabled (local runs) and by service tests.
// - ids start at 1 and are never reused
// - every method holds the lock for the whole read-check-write
type MemoryDeliveriesRepo struct {
	mu     sync.RWMutex
	rows   map[int64]domain.DeliveryRecord
	nextID int64
	now    func() time.Time
}

func NewMemoryDeliveriesRepo() *MemoryDeliveriesRepo {
	return &MemoryDeliveriesRepo{
		rows:   map[int64]domain.DeliveryRecord{},
		nextID: 1,
		now:    time.Now,
	}
}

var _ DeliveriesRepository = (*MemoryDeliveriesRepo)(nil)

// SetClock replaces the creation-time clock (tests).
func (r *MemoryDeliveriesRepo) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *MemoryDeliveriesRepo) CreateDelivery(_ context.Context, d domain.NewDelivery) (int64, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.rows[id] = domain.DeliveryRecord{
		ID:              id,
		Supplier:        d.Supplier,
		Payer:           d.Payer,
		InvoiceNumber:   d.InvoiceNumber,
		PickupAddress:   copyString(d.PickupAddress),
		DeliveryAddress: copyString(d.DeliveryAddress),
		CargoInfo:       copyString(d.CargoInfo),
		AuthorName:      d.AuthorName,
		Status:          domain.StatusDraft,
		CreatedAt:       r.now(),
	}
	return id, nil
}

func (r *MemoryDeliveriesRepo) GetDelivery(_ context.Context, id int64) (*domain.DeliveryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.rows[id]
	if !ok {
		return nil, fmt.Errorf("delivery %d: %w", id, domain.ErrNotFound)
	}
	return cloneRecord(rec), nil
}

func (r *MemoryDeliveriesRepo) ListByStatus(_ context.Context, status domain.Status, limit int) ([]*domain.DeliveryRecord, error) {
	out := r.filter(func(rec domain.DeliveryRecord) bool { return rec.Status == status })
	if status == domain.StatusCompleted {
		sortByCompletedDesc(out)
	}
	return capList(out, limit), nil
}

func (r *MemoryDeliveriesRepo) ListActiveForDriver(_ context.Context, driverID int64) ([]*domain.DeliveryRecord, error) {
	return r.filter(func(rec domain.DeliveryRecord) bool {
		return rec.AssignedTo(driverID) && !rec.Status.Terminal()
	}), nil
}

func (r *MemoryDeliveriesRepo) ListCompletedForDriver(_ context.Context, driverID int64, since time.Time, limit int) ([]*domain.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	out := r.filter(func(rec domain.DeliveryRecord) bool {
		return rec.AssignedTo(driverID) &&
			rec.Status == domain.StatusCompleted &&
			rec.CompletedAt != nil && !rec.CompletedAt.Before(since)
	})
	sortByCompletedDesc(out)
	return capList(out, limit), nil
}

func (r *MemoryDeliveriesRepo) ListAll(_ context.Context) ([]*domain.DeliveryRecord, error) {
	return r.filter(func(domain.DeliveryRecord) bool { return true }), nil
}

func (r *MemoryDeliveriesRepo) ListForDriverExport(_ context.Context, driverID int64) ([]*domain.DeliveryRecord, error) {
	out := r.filter(func(rec domain.DeliveryRecord) bool {
		return rec.AssignedTo(driverID) && rec.Status != domain.StatusDraft
	})
	sortByCompletedDesc(out)
	return out, nil
}

func (r *MemoryDeliveriesRepo) UpdateField(_ context.Context, id int64, field domain.Field, value *string) error {
	if _, err := domain.ParseField(string(field)); err != nil {
		return err
	}
	if field.Required() && (value == nil || strings.TrimSpace(*value) == "") {
		return fmt.Errorf("%w: %s is required", domain.ErrValidation, field)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("delivery %d: %w", id, domain.ErrNotFound)
	}
	if rec.Status != domain.StatusDraft {
		return fmt.Errorf("delivery %d is %s: %w", id, rec.Status, domain.ErrInvalidState)
	}

	switch field {
	case domain.FieldSupplier:
		rec.Supplier = *value
	case domain.FieldPayer:
		rec.Payer = *value
	case domain.FieldInvoiceNumber:
		rec.InvoiceNumber = *value
	case domain.FieldPickupAddress:
		rec.PickupAddress = copyString(value)
	case domain.FieldDeliveryAddress:
		rec.DeliveryAddress = copyString(value)
	case domain.FieldCargoInfo:
		rec.CargoInfo = copyString(value)
	}
	r.rows[id] = rec
	return nil
}

func (r *MemoryDeliveriesRepo) AssignDriver(_ context.Context, id int64, driverID int64, driverName string) error {
	if strings.TrimSpace(driverName) == "" {
		return fmt.Errorf("%w: driver_name is required", domain.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("delivery %d: %w", id, domain.ErrNotFound)
	}
	if rec.Status != domain.StatusDraft {
		return fmt.Errorf("assign driver: delivery %d is %s: %w", id, rec.Status, domain.ErrInvalidTransition)
	}
	rec.DriverID = &driverID
	rec.DriverName = &driverName
	rec.Status = domain.StatusAssigned
	r.rows[id] = rec
	return nil
}

func (r *MemoryDeliveriesRepo) TransitionStatus(_ context.Context, id int64, change StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("delivery %d: %w", id, domain.ErrNotFound)
	}
	allowed := false
	for _, s := range change.From {
		if rec.Status == s {
			allowed = true
			break
		}
	}
	if change.DriverID != nil && !rec.AssignedTo(*change.DriverID) {
		allowed = false
	}
	if !allowed {
		return fmt.Errorf("transition delivery: delivery %d is %s: %w", id, rec.Status, domain.ErrInvalidTransition)
	}

	at := change.At
	switch change.Stamp {
	case domain.StampNone:
	case domain.StampWorkStartedAt:
		rec.WorkStartedAt = &at
	case domain.StampCompletedAt:
		rec.CompletedAt = &at
	default:
		return fmt.Errorf("%w: unknown timestamp %q", domain.ErrInvalidField, change.Stamp)
	}
	rec.Status = change.To
	r.rows[id] = rec
	return nil
}

// filter returns matching rows as copies ordered by id.
func (r *MemoryDeliveriesRepo) filter(match func(domain.DeliveryRecord) bool) []*domain.DeliveryRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.DeliveryRecord{}
	for _, rec := range r.rows {
		if match(rec) {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// sortByCompletedDesc orders by completed_at desc, nulls last, ties by id.
func sortByCompletedDesc(recs []*domain.DeliveryRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i].CompletedAt, recs[j].CompletedAt
		switch {
		case a == nil && b == nil:
			return recs[i].ID < recs[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return recs[i].ID > recs[j].ID
		}
		return a.After(*b)
	})
}

func capList(recs []*domain.DeliveryRecord, limit int) []*domain.DeliveryRecord {
	if limit > 0 && len(recs) > limit {
		return recs[:limit]
	}
	return recs
}

func cloneRecord(rec domain.DeliveryRecord) *domain.DeliveryRecord {
	c := rec
	c.PickupAddress = copyString(rec.PickupAddress)
	c.DeliveryAddress = copyString(rec.DeliveryAddress)
	c.CargoInfo = copyString(rec.CargoInfo)
	c.DriverName = copyString(rec.DriverName)
	if rec.DriverID != nil {
		id := *rec.DriverID
		c.DriverID = &id
	}
	if rec.WorkStartedAt != nil {
		t := *rec.WorkStartedAt
		c.WorkStartedAt = &t
	}
	if rec.CompletedAt != nil {
		t := *rec.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
