package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Desteles/deli-pwa-app/internal/domain"
)

// PostgresDeliveriesRepository deliveries table on PostgreSQL
type PostgresDeliveriesRepository struct {
	db *sql.DB
}

// NewPostgresDeliveriesRepository creates the repository
func NewPostgresDeliveriesRepository(db *sql.DB) *PostgresDeliveriesRepository {
	return &PostgresDeliveriesRepository{db: db}
}

var _ DeliveriesRepository = (*PostgresDeliveriesRepository)(nil)

const deliveryColumns = `
			id,
			supplier,
			payer,
			invoice_number,
			pickup_address,
			delivery_address,
			cargo_info,
			author_name,
			driver_id,
			driver_name,
			status,
			work_started_at,
			completed_at,
			created_at`

// CreateDelivery inserts a draft delivery
func (r *PostgresDeliveriesRepository) CreateDelivery(ctx context.Context, d domain.NewDelivery) (int64, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}

	query := `
		INSERT INTO deliveries (
			supplier, payer, invoice_number,
			pickup_address, delivery_address, cargo_info,
			author_name, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		d.Supplier,
		d.Payer,
		d.InvoiceNumber,
		nullString(d.PickupAddress),
		nullString(d.DeliveryAddress),
		nullString(d.CargoInfo),
		d.AuthorName,
		string(domain.StatusDraft),
	).Scan(&id)
	if err != nil {
		return 0, classify("create delivery", err)
	}
	return id, nil
}

// GetDelivery returns one delivery
func (r *PostgresDeliveriesRepository) GetDelivery(ctx context.Context, id int64) (*domain.DeliveryRecord, error) {
	query := `SELECT` + deliveryColumns + `
		FROM deliveries
		WHERE id = $1
	`
	rec, err := scanDelivery(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("delivery %d: %w", id, domain.ErrNotFound)
		}
		return nil, classify("get delivery", err)
	}
	return rec, nil
}

// ListByStatus lists deliveries in one status
func (r *PostgresDeliveriesRepository) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]*domain.DeliveryRecord, error) {
	order := "id ASC"
	if status == domain.StatusCompleted {
		order = "completed_at DESC, id DESC"
	}
	args := []any{string(status)}
	query := `SELECT` + deliveryColumns + `
		FROM deliveries
		WHERE status = $1
		ORDER BY ` + order
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return r.queryDeliveries(ctx, "list deliveries by status", query, args...)
}

// ListActiveForDriver lists a driver's deliveries that are not finished
func (r *PostgresDeliveriesRepository) ListActiveForDriver(ctx context.Context, driverID int64) ([]*domain.DeliveryRecord, error) {
	query := `SELECT` + deliveryColumns + `
		FROM deliveries
		WHERE driver_id = $1
		  AND status <> ALL($2)
		ORDER BY id ASC
	`
	return r.queryDeliveries(ctx, "list active deliveries", query, driverID, pq.Array(statusStrings(terminalStatuses)))
}

// ListCompletedForDriver lists a driver's recently completed deliveries
func (r *PostgresDeliveriesRepository) ListCompletedForDriver(ctx context.Context, driverID int64, since time.Time, limit int) ([]*domain.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	query := `SELECT` + deliveryColumns + `
		FROM deliveries
		WHERE driver_id = $1
		  AND status = $2
		  AND completed_at >= $3
		ORDER BY completed_at DESC, id DESC
		LIMIT $4
	`
	return r.queryDeliveries(ctx, "list completed deliveries", query,
		driverID, string(domain.StatusCompleted), since, limit)
}

// ListAll lists every delivery
func (r *PostgresDeliveriesRepository) ListAll(ctx context.Context) ([]*domain.DeliveryRecord, error) {
	query := `SELECT` + deliveryColumns + `
		FROM deliveries
		ORDER BY id ASC
	`
	return r.queryDeliveries(ctx, "list deliveries", query)
}

// ListForDriverExport lists a driver's deliveries except drafts
func (r *PostgresDeliveriesRepository) ListForDriverExport(ctx context.Context, driverID int64) ([]*domain.DeliveryRecord, error) {
	query := `SELECT` + deliveryColumns + `
		FROM deliveries
		WHERE driver_id = $1
		  AND status <> $2
		ORDER BY completed_at DESC NULLS LAST, id ASC
	`
	return r.queryDeliveries(ctx, "list driver deliveries", query, driverID, string(domain.StatusDraft))
}

// UpdateField sets one editable column while the delivery is a draft
func (r *PostgresDeliveriesRepository) UpdateField(ctx context.Context, id int64, field domain.Field, value *string) error {
	if _, err := domain.ParseField(string(field)); err != nil {
		return err
	}
	if field.Required() && (value == nil || strings.TrimSpace(*value) == "") {
		return fmt.Errorf("%w: %s is required", domain.ErrValidation, field)
	}

	// column name comes from the allow-list above
	query := `
		UPDATE deliveries
		SET ` + pq.QuoteIdentifier(string(field)) + ` = $1
		WHERE id = $2 AND status = $3
	`
	res, err := r.db.ExecContext(ctx, query, nullString(value), id, string(domain.StatusDraft))
	if err != nil {
		return classify("update delivery field", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("update delivery field", err)
	}
	if n == 1 {
		return nil
	}

	rec, err := r.GetDelivery(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("delivery %d is %s: %w", id, rec.Status, domain.ErrInvalidState)
}

// AssignDriver sets the driver and moves a draft to assigned
func (r *PostgresDeliveriesRepository) AssignDriver(ctx context.Context, id int64, driverID int64, driverName string) error {
	if strings.TrimSpace(driverName) == "" {
		return fmt.Errorf("%w: driver_name is required", domain.ErrValidation)
	}

	query := `
		UPDATE deliveries
		SET driver_id = $1,
		    driver_name = $2,
		    status = $3
		WHERE id = $4 AND status = $5
	`
	res, err := r.db.ExecContext(ctx, query,
		driverID, driverName, string(domain.StatusAssigned), id, string(domain.StatusDraft))
	if err != nil {
		return classify("assign driver", err)
	}
	return r.checkTransition(ctx, res, id, "assign driver")
}

// TransitionStatus applies a guarded status change in one statement
func (r *PostgresDeliveriesRepository) TransitionStatus(ctx context.Context, id int64, change StatusChange) error {
	if len(change.From) == 0 {
		return fmt.Errorf("%w: no source status", domain.ErrInvalidTransition)
	}

	set := []string{"status = $1"}
	args := []any{string(change.To), id, pq.Array(statusStrings(change.From))}
	where := []string{"id = $2", "status = ANY($3)"}
	argN := 4

	switch change.Stamp {
	case domain.StampNone:
	case domain.StampWorkStartedAt, domain.StampCompletedAt:
		set = append(set, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(string(change.Stamp)), argN))
		args = append(args, change.At)
		argN++
	default:
		return fmt.Errorf("%w: unknown timestamp %q", domain.ErrInvalidField, change.Stamp)
	}
	if change.DriverID != nil {
		where = append(where, fmt.Sprintf("driver_id = $%d", argN))
		args = append(args, *change.DriverID)
	}

	query := `
		UPDATE deliveries
		SET ` + strings.Join(set, ", ") + `
		WHERE ` + strings.Join(where, " AND ")

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return classify("transition delivery", err)
	}
	return r.checkTransition(ctx, res, id, "transition delivery")
}

// checkTransition turns "no row updated" into NotFound or InvalidTransition.
func (r *PostgresDeliveriesRepository) checkTransition(ctx context.Context, res sql.Result, id int64, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 1 {
		return nil
	}

	var status string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM deliveries WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("delivery %d: %w", id, domain.ErrNotFound)
		}
		return classify(op, err)
	}
	return fmt.Errorf("%s: delivery %d is %s: %w", op, id, status, domain.ErrInvalidTransition)
}

func (r *PostgresDeliveriesRepository) queryDeliveries(ctx context.Context, op, query string, args ...any) ([]*domain.DeliveryRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	out := []*domain.DeliveryRecord{}
	for rows.Next() {
		rec, err := scanDelivery(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row rowScanner) (*domain.DeliveryRecord, error) {
	var rec domain.DeliveryRecord
	var pickup, deliveryAddr, cargo, driverName sql.NullString
	var driverID sql.NullInt64
	var workStartedAt, completedAt sql.NullTime
	var status string

	if err := row.Scan(
		&rec.ID,
		&rec.Supplier,
		&rec.Payer,
		&rec.InvoiceNumber,
		&pickup,
		&deliveryAddr,
		&cargo,
		&rec.AuthorName,
		&driverID,
		&driverName,
		&status,
		&workStartedAt,
		&completedAt,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}

	st, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	rec.Status = st

	if pickup.Valid {
		rec.PickupAddress = &pickup.String
	}
	if deliveryAddr.Valid {
		rec.DeliveryAddress = &deliveryAddr.String
	}
	if cargo.Valid {
		rec.CargoInfo = &cargo.String
	}
	if driverID.Valid && driverName.Valid {
		rec.DriverID = &driverID.Int64
		rec.DriverName = &driverName.String
	}
	if workStartedAt.Valid {
		t := workStartedAt.Time
		rec.WorkStartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	return &rec, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
