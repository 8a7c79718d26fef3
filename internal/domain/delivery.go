package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a delivery (stored in deliveries.status).
type Status string

const (
	StatusDraft      Status = "draft"
	StatusAssigned   Status = "assigned" // driver assigned, awaiting acceptance
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusDraft,
	StatusAssigned,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

// ParseStatus converts a stored or user supplied value into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(strings.ToLower(s)))
	switch st {
	case StatusDraft, StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Terminal reports whether no event may leave the status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Label returns the Russian label shown to participants and in exports.
func (s Status) Label() string {
	switch s {
	case StatusDraft:
		return "черновик"
	case StatusAssigned:
		return "ожидает принятия"
	case StatusInProgress:
		return "принята в работу"
	case StatusCompleted:
		return "доставлено"
	case StatusCancelled:
		return "отменено"
	}
	return string(s)
}

// DeliveryRecord is one row of the deliveries table.
type DeliveryRecord struct {
	ID int64 `db:"id"` // BIGSERIAL, PRIMARY KEY

	Supplier      string `db:"supplier"`       // TEXT, NOT NULL
	Payer         string `db:"payer"`          // TEXT, NOT NULL
	InvoiceNumber string `db:"invoice_number"` // TEXT, NOT NULL

	PickupAddress   *string `db:"pickup_address"`   // TEXT, nullable
	DeliveryAddress *string `db:"delivery_address"` // TEXT, nullable
	CargoInfo       *string `db:"cargo_info"`       // TEXT, nullable

	AuthorName string `db:"author_name"` // TEXT, NOT NULL, set once

	// driver_id and driver_name are written together by AssignDriver.
	DriverID   *int64  `db:"driver_id"`   // BIGINT, nullable
	DriverName *string `db:"driver_name"` // TEXT, nullable

	Status Status `db:"status"` // TEXT, NOT NULL, DEFAULT 'draft'

	WorkStartedAt *time.Time `db:"work_started_at"` // TIMESTAMPTZ, nullable
	CompletedAt   *time.Time `db:"completed_at"`    // TIMESTAMPTZ, nullable
	CreatedAt     time.Time  `db:"created_at"`      // TIMESTAMPTZ, NOT NULL
}

// AssignedTo reports whether the record is assigned to driverID.
func (r *DeliveryRecord) AssignedTo(driverID int64) bool {
	return r.DriverID != nil && *r.DriverID == driverID
}

// FieldValue returns the current value of an editable field, "" when null.
func (r *DeliveryRecord) FieldValue(f Field) string {
	switch f {
	case FieldSupplier:
		return r.Supplier
	case FieldPayer:
		return r.Payer
	case FieldInvoiceNumber:
		return r.InvoiceNumber
	case FieldPickupAddress:
		return deref(r.PickupAddress)
	case FieldDeliveryAddress:
		return deref(r.DeliveryAddress)
	case FieldCargoInfo:
		return deref(r.CargoInfo)
	}
	return ""
}

// NewDelivery carries the fields collected by intake.
type NewDelivery struct {
	Supplier        string
	Payer           string
	InvoiceNumber   string
	PickupAddress   *string
	DeliveryAddress *string
	CargoInfo       *string
	AuthorName      string
}

// Validate checks the required columns.
func (n NewDelivery) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"supplier", n.Supplier},
		{"payer", n.Payer},
		{"invoice_number", n.InvoiceNumber},
		{"author_name", n.AuthorName},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, f.name)
		}
	}
	return nil
}

// Field is a column a manager may edit while the record is a draft.
type Field string

const (
	FieldSupplier        Field = "supplier"
	FieldPayer           Field = "payer"
	FieldInvoiceNumber   Field = "invoice_number"
	FieldPickupAddress   Field = "pickup_address"
	FieldDeliveryAddress Field = "delivery_address"
	FieldCargoInfo       Field = "cargo_info"
)

// EditableFields is the edit allow-list in menu order.
var EditableFields = []Field{
	FieldSupplier,
	FieldPayer,
	FieldInvoiceNumber,
	FieldPickupAddress,
	FieldDeliveryAddress,
	FieldCargoInfo,
}

// ParseField validates name against the allow-list.
func ParseField(name string) (Field, error) {
	f := Field(name)
	switch f {
	case FieldSupplier, FieldPayer, FieldInvoiceNumber,
		FieldPickupAddress, FieldDeliveryAddress, FieldCargoInfo:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidField, name)
}

// Required reports whether the field may never be blank.
func (f Field) Required() bool {
	switch f {
	case FieldSupplier, FieldPayer, FieldInvoiceNumber:
		return true
	}
	return false
}

// Label returns the display name of the field.
func (f Field) Label() string {
	switch f {
	case FieldSupplier:
		return "Поставщик"
	case FieldPayer:
		return "Плательщик"
	case FieldInvoiceNumber:
		return "Номер счёта"
	case FieldPickupAddress:
		return "Адрес загрузки"
	case FieldDeliveryAddress:
		return "Адрес отгрузки"
	case FieldCargoInfo:
		return "Габариты/вес/комментарий"
	}
	return string(f)
}

// NullableText maps blank input to nil.
func NullableText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
