package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Desteles/deli-pwa-app/internal/domain"
)

// Kind of workflow a session runs.
type Kind string

const (
	KindIntake    Kind = "intake"
	KindFieldEdit Kind = "field_edit"
)

// IntakeStep is the position inside the intake form.
type IntakeStep int

const (
	StepSupplier IntakeStep = iota + 1
	StepPayer
	StepInvoiceNumber
	StepPickupAddress
	StepDeliveryAddress
	StepCargoInfo
)

// Required reports whether blank input is rejected at this step.
func (s IntakeStep) Required() bool {
	return s >= StepSupplier && s <= StepInvoiceNumber
}

// Prompt is the question asked at this step.
func (s IntakeStep) Prompt() string {
	switch s {
	case StepSupplier:
		return "Поставщик (обязательно):"
	case StepPayer:
		return "Плательщик (обязательно):"
	case StepInvoiceNumber:
		return "Номер счёта (обязательно):"
	case StepPickupAddress:
		return "Адрес загрузки (опционально):"
	case StepDeliveryAddress:
		return "Адрес отгрузки (опционально):"
	case StepCargoInfo:
		return "Габариты/вес/комментарий (опционально):"
	}
	return ""
}

// RepeatPrompt is shown when a required step got blank input.
func (s IntakeStep) RepeatPrompt() string {
	switch s {
	case StepSupplier:
		return "Поставщик не может быть пустым. Введите ещё раз:"
	case StepPayer:
		return "Плательщик не может быть пустым. Введите ещё раз:"
	case StepInvoiceNumber:
		return "Номер счёта не может быть пустым. Введите ещё раз:"
	}
	return s.Prompt()
}

// IntakeForm holds the values collected so far.
type IntakeForm struct {
	Supplier        string  `json:"supplier,omitempty"`
	Payer           string  `json:"payer,omitempty"`
	InvoiceNumber   string  `json:"invoice_number,omitempty"`
	PickupAddress   *string `json:"pickup_address,omitempty"`
	DeliveryAddress *string `json:"delivery_address,omitempty"`
	CargoInfo       *string `json:"cargo_info,omitempty"`
}

// Session is the per-participant workflow state kept in the session table.
type Session struct {
	ID            string    `json:"id"`
	ParticipantID int64     `json:"participant_id"`
	Kind          Kind      `json:"kind"`
	StartedAt     time.Time `json:"started_at"`

	// intake
	Step IntakeStep `json:"step,omitempty"`
	Form IntakeForm `json:"form"`

	// field edit
	RecordID int64        `json:"record_id,omitempty"`
	Field    domain.Field `json:"field,omitempty"`
}

// Handle identifies a session to the presentation layer.
type Handle struct {
	ParticipantID int64
	SessionID     string
}

func (s *Session) Handle() Handle {
	return Handle{ParticipantID: s.ParticipantID, SessionID: s.ID}
}

// NewIntake starts an intake at the supplier step.
func NewIntake(participantID int64, now time.Time) *Session {
	return &Session{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		Kind:          KindIntake,
		StartedAt:     now,
		Step:          StepSupplier,
	}
}

// NewFieldEdit starts a single field edit.
func NewFieldEdit(participantID, recordID int64, field domain.Field, now time.Time) *Session {
	return &Session{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		Kind:          KindFieldEdit,
		StartedAt:     now,
		RecordID:      recordID,
		Field:         field,
	}
}

// ApplyIntake records text for the current step and advances.
// Blank input on a required step returns domain.ErrValidation and leaves the
// session unchanged. done is true once the last step has been answered.
func (s *Session) ApplyIntake(text string) (done bool, err error) {
	if s.Kind != KindIntake {
		return false, fmt.Errorf("%w: session %s is %s", domain.ErrNoSession, s.ID, s.Kind)
	}
	value := strings.TrimSpace(text)
	if s.Step.Required() && value == "" {
		return false, fmt.Errorf("%w: step %d requires a value", domain.ErrValidation, s.Step)
	}

	switch s.Step {
	case StepSupplier:
		s.Form.Supplier = value
	case StepPayer:
		s.Form.Payer = value
	case StepInvoiceNumber:
		s.Form.InvoiceNumber = value
	case StepPickupAddress:
		s.Form.PickupAddress = domain.NullableText(value)
	case StepDeliveryAddress:
		s.Form.DeliveryAddress = domain.NullableText(value)
	case StepCargoInfo:
		s.Form.CargoInfo = domain.NullableText(value)
		return true, nil
	default:
		return false, fmt.Errorf("%w: intake step %d", domain.ErrNoSession, s.Step)
	}
	s.Step++
	return false, nil
}

// NewDelivery builds the insert payload for a finished intake.
func (s *Session) NewDelivery(authorName string) domain.NewDelivery {
	return domain.NewDelivery{
		Supplier:        s.Form.Supplier,
		Payer:           s.Form.Payer,
		InvoiceNumber:   s.Form.InvoiceNumber,
		PickupAddress:   s.Form.PickupAddress,
		DeliveryAddress: s.Form.DeliveryAddress,
		CargoInfo:       s.Form.CargoInfo,
		AuthorName:      authorName,
	}
}
