package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Desteles/deli-pwa-app/internal/domain"
)

var deliveryRowColumns = []string{
	"id", "supplier", "payer", "invoice_number",
	"pickup_address", "delivery_address", "cargo_info",
	"author_name", "driver_id", "driver_name", "status",
	"work_started_at", "completed_at", "created_at",
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresDeliveriesRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresDeliveriesRepository(db)
}

func TestCreateDelivery_Success(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO deliveries`).
		WithArgs("Acme", "Acme", "INV-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "Вадим", "draft").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	id, err := repo.CreateDelivery(context.Background(), domain.NewDelivery{
		Supplier:      "Acme",
		Payer:         "Acme",
		InvoiceNumber: "INV-1",
		AuthorName:    "Вадим",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDelivery_RejectsEmptyRequiredField(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	_, err := repo.CreateDelivery(context.Background(), domain.NewDelivery{
		Supplier:   "Acme",
		Payer:      "",
		AuthorName: "Вадим",
	})

	assert.ErrorIs(t, err, domain.ErrValidation)
	// no statement reaches the database
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDelivery_CheckViolationIsValidation(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO deliveries`).
		WillReturnError(&pq.Error{Code: "23514", Message: "deliveries_supplier_check"})

	_, err := repo.CreateDelivery(context.Background(), domain.NewDelivery{
		Supplier: "Acme", Payer: "Acme", InvoiceNumber: "INV-1", AuthorName: "Вадим",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateDelivery_StoreUnavailable(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO deliveries`).
		WillReturnError(errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"))

	_, err := repo.CreateDelivery(context.Background(), domain.NewDelivery{
		Supplier: "Acme", Payer: "Acme", InvoiceNumber: "INV-1", AuthorName: "Вадим",
	})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestGetDelivery_Success(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	created := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	started := created.Add(time.Hour)
	rows := sqlmock.NewRows(deliveryRowColumns).
		AddRow(1, "Acme", "Acme", "INV-1", "Warehouse 3", nil, nil,
			"Вадим", 42, "Jane", "in_progress", started, nil, created)

	mock.ExpectQuery(`SELECT`).
		WithArgs(int64(1)).
		WillReturnRows(rows)

	rec, err := repo.GetDelivery(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID)
	assert.Equal(t, domain.StatusInProgress, rec.Status)
	require.NotNil(t, rec.PickupAddress)
	assert.Equal(t, "Warehouse 3", *rec.PickupAddress)
	assert.Nil(t, rec.DeliveryAddress)
	assert.Nil(t, rec.CargoInfo)
	require.NotNil(t, rec.DriverID)
	assert.Equal(t, int64(42), *rec.DriverID)
	assert.Equal(t, "Jane", *rec.DriverName)
	require.NotNil(t, rec.WorkStartedAt)
	assert.True(t, started.Equal(*rec.WorkStartedAt))
	assert.Nil(t, rec.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDelivery_NotFound(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetDelivery(context.Background(), 7)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListByStatus_CompletedOrderedAndCapped(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	created := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(deliveryRowColumns).
		AddRow(3, "C", "C", "INV-3", nil, nil, nil, "Вадим", 42, "Jane", "completed", created, created.Add(2*time.Hour), created).
		AddRow(2, "B", "B", "INV-2", nil, nil, nil, "Вадим", 42, "Jane", "completed", created, created.Add(time.Hour), created)

	mock.ExpectQuery(`WHERE status = \$1\s+ORDER BY completed_at DESC, id DESC LIMIT \$2`).
		WithArgs("completed", 10).
		WillReturnRows(rows)

	recs, err := repo.ListByStatus(context.Background(), domain.StatusCompleted, 10)

	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(3), recs[0].ID)
	assert.Equal(t, int64(2), recs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByStatus_DraftInsertionOrder(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`WHERE status = \$1\s+ORDER BY id ASC$`).
		WithArgs("draft").
		WillReturnRows(sqlmock.NewRows(deliveryRowColumns))

	recs, err := repo.ListByStatus(context.Background(), domain.StatusDraft, 0)

	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveForDriver_ExcludesTerminal(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`AND status <> ALL($2)`)).
		WithArgs(int64(42), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(deliveryRowColumns))

	_, err := repo.ListActiveForDriver(context.Background(), 42)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateField_Success(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE deliveries\s+SET "pickup_address" = \$1\s+WHERE id = \$2 AND status = \$3`).
		WithArgs("Warehouse 3", int64(1), "draft").
		WillReturnResult(sqlmock.NewResult(0, 1))

	value := "Warehouse 3"
	err := repo.UpdateField(context.Background(), 1, domain.FieldPickupAddress, &value)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateField_NotDraft(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	created := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE deliveries`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(deliveryRowColumns).
			AddRow(1, "Acme", "Acme", "INV-1", nil, nil, nil, "Вадим", 42, "Jane", "assigned", nil, nil, created))

	value := "Warehouse 3"
	err := repo.UpdateField(context.Background(), 1, domain.FieldPickupAddress, &value)

	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateField_RejectsUnknownColumn(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	value := "completed"
	err := repo.UpdateField(context.Background(), 1, domain.Field("status"), &value)

	assert.ErrorIs(t, err, domain.ErrInvalidField)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateField_RequiredFieldCannotBeBlanked(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	err := repo.UpdateField(context.Background(), 1, domain.FieldSupplier, nil)

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignDriver_LosesRace(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE deliveries\s+SET driver_id = \$1`).
		WithArgs(int64(42), "Jane", "assigned", int64(1), "draft").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM deliveries WHERE id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("assigned"))

	err := repo.AssignDriver(context.Background(), 1, 42, "Jane")

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatus_AcceptGuardedByDriver(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE deliveries\s+SET status = \$1, "work_started_at" = \$4\s+WHERE id = \$2 AND status = ANY\(\$3\) AND driver_id = \$5`).
		WithArgs("in_progress", int64(1), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	driverID := int64(42)
	err := repo.TransitionStatus(context.Background(), 1, StatusChange{
		From:     []domain.Status{domain.StatusAssigned},
		To:       domain.StatusInProgress,
		Stamp:    domain.StampWorkStartedAt,
		At:       time.Now(),
		DriverID: &driverID,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatus_NotFound(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE deliveries`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM deliveries WHERE id = $1`)).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	err := repo.TransitionStatus(context.Background(), 99, StatusChange{
		From: []domain.Status{domain.StatusDraft},
		To:   domain.StatusCancelled,
	})

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatus_RequiresSourceStatus(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	err := repo.TransitionStatus(context.Background(), 1, StatusChange{To: domain.StatusCancelled})

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}
