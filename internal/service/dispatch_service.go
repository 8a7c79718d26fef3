package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Desteles/deli-pwa-app/internal/domain"
	"github.com/Desteles/deli-pwa-app/internal/events"
	"github.com/Desteles/deli-pwa-app/internal/repository"
	"github.com/Desteles/deli-pwa-app/internal/workflow"
)

// DispatchService is the core used by the chat bot and the HTTP API.
type DispatchService interface {
	// Directory returns the role directory the service was built with.
	Directory() *domain.RoleDirectory

	// StartIntake opens a new intake session, replacing any previous one,
	// and returns the first prompt.
	StartIntake(ctx context.Context, participantID int64) (workflow.Handle, string, error)
	// SubmitIntakeStep answers the current step.
	SubmitIntakeStep(ctx context.Context, h workflow.Handle, text string) (*StepResult, error)
	// CancelSession discards the participant's session, if any.
	CancelSession(ctx context.Context, participantID int64) error
	// ActiveSession returns the participant's session or domain.ErrNoSession.
	ActiveSession(ctx context.Context, participantID int64) (*workflow.Session, error)

	// StartFieldEdit opens an edit of one field of a draft and returns its
	// current value.
	StartFieldEdit(ctx context.Context, participantID, recordID int64, field string) (workflow.Handle, string, error)
	// SubmitFieldEdit stores the replacement value and returns the updated record.
	SubmitFieldEdit(ctx context.Context, h workflow.Handle, text string) (*domain.DeliveryRecord, error)

	GetDelivery(ctx context.Context, id int64) (*domain.DeliveryRecord, error)
	ListByStatus(ctx context.Context, status domain.Status) ([]*domain.DeliveryRecord, error)
	ActiveForDriver(ctx context.Context, driverID int64) ([]*domain.DeliveryRecord, error)
	CompletedForDriver(ctx context.Context, driverID int64) ([]*domain.DeliveryRecord, error)

	// Transition fires a lifecycle event and returns the resulting status.
	Transition(ctx context.Context, req TransitionRequest) (domain.Status, error)

	// AllRecords and DriverRecords feed the spreadsheet export.
	AllRecords(ctx context.Context) ([]*domain.DeliveryRecord, error)
	DriverRecords(ctx context.Context, driverID int64) ([]*domain.DeliveryRecord, error)
}

// Options tunes listing policies.
type Options struct {
	CompletedLimit        int           // cap of the completed listing
	DriverCompletedLimit  int           // cap of a driver's completed history
	DriverCompletedWindow time.Duration // trailing window of a driver's completed history
}

// DefaultOptions returns the production listing policy.
func DefaultOptions() Options {
	return Options{
		CompletedLimit:        10,
		DriverCompletedLimit:  5,
		DriverCompletedWindow: 30 * 24 * time.Hour,
	}
}

// StepResult is the outcome of one intake submission. Exactly one of Prompt
// and RecordID is set.
type StepResult struct {
	Step     workflow.IntakeStep
	Prompt   string
	RecordID int64
}

// Completed reports whether the intake produced a record.
func (r *StepResult) Completed() bool { return r.RecordID != 0 }

// TransitionRequest fires Event on RecordID on behalf of ActorID.
// DriverID is only read by the assign event.
type TransitionRequest struct {
	RecordID int64
	Event    domain.Event
	ActorID  int64
	DriverID int64
}

type dispatchService struct {
	repo      repository.DeliveriesRepository
	sessions  *workflow.Table
	directory *domain.RoleDirectory
	publisher events.Publisher
	opts      Options
	locks     *participantLocks
	now       func() time.Time
	logger    *zap.Logger
}

// NewDispatchService wires the core. A nil publisher disables events.
func NewDispatchService(
	repo repository.DeliveriesRepository,
	sessions *workflow.Table,
	directory *domain.RoleDirectory,
	publisher events.Publisher,
	opts Options,
	logger *zap.Logger,
) DispatchService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	def := DefaultOptions()
	if opts.CompletedLimit <= 0 {
		opts.CompletedLimit = def.CompletedLimit
	}
	if opts.DriverCompletedLimit <= 0 {
		opts.DriverCompletedLimit = def.DriverCompletedLimit
	}
	if opts.DriverCompletedWindow <= 0 {
		opts.DriverCompletedWindow = def.DriverCompletedWindow
	}
	return &dispatchService{
		repo:      repo,
		sessions:  sessions,
		directory: directory,
		publisher: publisher,
		opts:      opts,
		locks:     newParticipantLocks(),
		now:       time.Now,
		logger:    logger,
	}
}

func (s *dispatchService) Directory() *domain.RoleDirectory { return s.directory }

func (s *dispatchService) StartIntake(ctx context.Context, participantID int64) (workflow.Handle, string, error) {
	defer s.locks.lock(participantID)()

	sess := workflow.NewIntake(participantID, s.now())
	if err := s.sessions.Save(ctx, sess); err != nil {
		s.storeFailure("start intake", err, zap.Int64("participant_id", participantID))
		return workflow.Handle{}, "", err
	}
	return sess.Handle(), sess.Step.Prompt(), nil
}

func (s *dispatchService) SubmitIntakeStep(ctx context.Context, h workflow.Handle, text string) (*StepResult, error) {
	defer s.locks.lock(h.ParticipantID)()

	sess, err := s.sessions.Resolve(ctx, h)
	if err != nil {
		return nil, err
	}
	if sess.Kind != workflow.KindIntake {
		return nil, fmt.Errorf("%w: session %s is %s", domain.ErrNoSession, sess.ID, sess.Kind)
	}

	done, err := sess.ApplyIntake(text)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return &StepResult{Step: sess.Step, Prompt: sess.Step.RepeatPrompt()}, err
		}
		return nil, err
	}
	if !done {
		if err := s.sessions.Save(ctx, sess); err != nil {
			s.storeFailure("save intake step", err, zap.Int64("participant_id", h.ParticipantID))
			return nil, err
		}
		return &StepResult{Step: sess.Step, Prompt: sess.Step.Prompt()}, nil
	}

	author := s.directory.Lookup(h.ParticipantID)
	if author.Role != domain.RoleManager {
		s.dropSession(ctx, h.ParticipantID)
		return nil, fmt.Errorf("%w: participant %d is not a manager", domain.ErrUnauthorized, h.ParticipantID)
	}

	id, err := s.repo.CreateDelivery(ctx, sess.NewDelivery(author.Name))
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			// stored session still sits on the last step
			s.storeFailure("create delivery", err, zap.Int64("participant_id", h.ParticipantID))
			return nil, err
		}
		s.dropSession(ctx, h.ParticipantID)
		return nil, err
	}
	s.dropSession(ctx, h.ParticipantID)

	s.logger.Info("Delivery created",
		zap.Int64("delivery_id", id),
		zap.Int64("participant_id", h.ParticipantID),
		zap.String("author_name", author.Name),
	)
	return &StepResult{Step: sess.Step, RecordID: id}, nil
}

func (s *dispatchService) CancelSession(ctx context.Context, participantID int64) error {
	defer s.locks.lock(participantID)()

	if err := s.sessions.Delete(ctx, participantID); err != nil {
		s.storeFailure("cancel session", err, zap.Int64("participant_id", participantID))
		return err
	}
	return nil
}

func (s *dispatchService) ActiveSession(ctx context.Context, participantID int64) (*workflow.Session, error) {
	return s.sessions.Load(ctx, participantID)
}

func (s *dispatchService) StartFieldEdit(ctx context.Context, participantID, recordID int64, fieldName string) (workflow.Handle, string, error) {
	field, err := domain.ParseField(fieldName)
	if err != nil {
		return workflow.Handle{}, "", err
	}
	if s.directory.Lookup(participantID).Role != domain.RoleManager {
		return workflow.Handle{}, "", fmt.Errorf("%w: participant %d is not a manager", domain.ErrUnauthorized, participantID)
	}

	defer s.locks.lock(participantID)()

	rec, err := s.repo.GetDelivery(ctx, recordID)
	if err != nil {
		return workflow.Handle{}, "", err
	}
	if rec.Status != domain.StatusDraft {
		return workflow.Handle{}, "", fmt.Errorf("delivery %d is %s: %w", recordID, rec.Status, domain.ErrInvalidState)
	}

	sess := workflow.NewFieldEdit(participantID, recordID, field, s.now())
	if err := s.sessions.Save(ctx, sess); err != nil {
		s.storeFailure("start field edit", err, zap.Int64("participant_id", participantID))
		return workflow.Handle{}, "", err
	}
	return sess.Handle(), rec.FieldValue(field), nil
}

func (s *dispatchService) SubmitFieldEdit(ctx context.Context, h workflow.Handle, text string) (*domain.DeliveryRecord, error) {
	defer s.locks.lock(h.ParticipantID)()

	sess, err := s.sessions.Resolve(ctx, h)
	if err != nil {
		return nil, err
	}
	if sess.Kind != workflow.KindFieldEdit {
		return nil, fmt.Errorf("%w: session %s is %s", domain.ErrNoSession, sess.ID, sess.Kind)
	}
	if _, err := domain.ParseField(string(sess.Field)); err != nil {
		s.dropSession(ctx, h.ParticipantID)
		return nil, err
	}

	value := domain.NullableText(text)
	if sess.Field.Required() && value == nil {
		return nil, fmt.Errorf("%w: %s may not be blank", domain.ErrValidation, sess.Field)
	}

	if err := s.repo.UpdateField(ctx, sess.RecordID, sess.Field, value); err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			s.storeFailure("update field", err,
				zap.Int64("participant_id", h.ParticipantID),
				zap.Int64("delivery_id", sess.RecordID))
			return nil, err
		}
		if !errors.Is(err, domain.ErrValidation) {
			s.dropSession(ctx, h.ParticipantID)
		}
		return nil, err
	}
	s.dropSession(ctx, h.ParticipantID)

	s.logger.Info("Delivery field updated",
		zap.Int64("delivery_id", sess.RecordID),
		zap.String("field", string(sess.Field)),
		zap.Int64("participant_id", h.ParticipantID),
	)
	return s.repo.GetDelivery(ctx, sess.RecordID)
}

func (s *dispatchService) GetDelivery(ctx context.Context, id int64) (*domain.DeliveryRecord, error) {
	return s.repo.GetDelivery(ctx, id)
}

func (s *dispatchService) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.DeliveryRecord, error) {
	limit := 0
	if status == domain.StatusCompleted {
		limit = s.opts.CompletedLimit
	}
	return s.repo.ListByStatus(ctx, status, limit)
}

func (s *dispatchService) ActiveForDriver(ctx context.Context, driverID int64) ([]*domain.DeliveryRecord, error) {
	return s.repo.ListActiveForDriver(ctx, driverID)
}

func (s *dispatchService) CompletedForDriver(ctx context.Context, driverID int64) ([]*domain.DeliveryRecord, error) {
	since := s.now().Add(-s.opts.DriverCompletedWindow)
	return s.repo.ListCompletedForDriver(ctx, driverID, since, s.opts.DriverCompletedLimit)
}

func (s *dispatchService) AllRecords(ctx context.Context) ([]*domain.DeliveryRecord, error) {
	return s.repo.ListAll(ctx)
}

func (s *dispatchService) DriverRecords(ctx context.Context, driverID int64) ([]*domain.DeliveryRecord, error) {
	return s.repo.ListForDriverExport(ctx, driverID)
}

func (s *dispatchService) Transition(ctx context.Context, req TransitionRequest) (domain.Status, error) {
	rule, err := domain.RuleFor(req.Event)
	if err != nil {
		return "", err
	}
	actor := s.directory.Lookup(req.ActorID)
	if actor.Role != rule.Actor {
		return "", fmt.Errorf("%w: %s requires %s", domain.ErrUnauthorized, req.Event, rule.Actor)
	}

	rec, err := s.repo.GetDelivery(ctx, req.RecordID)
	if err != nil {
		return "", err
	}
	next, err := domain.Next(rec.Status, req.Event)
	if err != nil {
		return rec.Status, fmt.Errorf("delivery %d: %w", rec.ID, err)
	}
	if err := rule.Authorize(actor, rec); err != nil {
		return rec.Status, err
	}
	if !rule.Mutates() {
		return next, nil
	}

	var driverID *int64
	switch {
	case req.Event == domain.EventAssign:
		name, ok := s.directory.DriverName(req.DriverID)
		if !ok {
			return rec.Status, fmt.Errorf("%w: %d is not a driver", domain.ErrValidation, req.DriverID)
		}
		if err := s.repo.AssignDriver(ctx, rec.ID, req.DriverID, name); err != nil {
			return "", s.transitionFailure(req, err)
		}
		driverID = &req.DriverID
	default:
		change := repository.StatusChange{
			From:  rule.From,
			To:    rule.To,
			Stamp: rule.Stamp,
			At:    s.now(),
		}
		if rule.OwnDriver {
			change.DriverID = &actor.ID
			driverID = &actor.ID
		}
		if err := s.repo.TransitionStatus(ctx, rec.ID, change); err != nil {
			return "", s.transitionFailure(req, err)
		}
	}

	s.logger.Info("Delivery transitioned",
		zap.Int64("delivery_id", rec.ID),
		zap.String("event", string(req.Event)),
		zap.String("from", string(rec.Status)),
		zap.String("to", string(next)),
		zap.Int64("actor_id", req.ActorID),
	)
	ev := events.LifecycleEvent{
		DeliveryID: rec.ID,
		Event:      req.Event,
		Status:     next,
		ActorID:    req.ActorID,
		DriverID:   driverID,
		At:         s.now(),
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish lifecycle event",
			zap.Int64("delivery_id", rec.ID),
			zap.String("event", string(req.Event)),
			zap.Error(err),
		)
	}
	return next, nil
}

func (s *dispatchService) transitionFailure(req TransitionRequest, err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		s.storeFailure("transition", err,
			zap.Int64("delivery_id", req.RecordID),
			zap.String("event", string(req.Event)))
	} else if errors.Is(err, domain.ErrInvalidTransition) {
		s.logger.Info("Lost transition race",
			zap.Int64("delivery_id", req.RecordID),
			zap.String("event", string(req.Event)),
			zap.Int64("actor_id", req.ActorID))
	}
	return err
}

func (s *dispatchService) dropSession(ctx context.Context, participantID int64) {
	if err := s.sessions.Delete(ctx, participantID); err != nil {
		s.logger.Warn("Failed to delete session",
			zap.Int64("participant_id", participantID),
			zap.Error(err),
		)
	}
}

func (s *dispatchService) storeFailure(op string, err error, fields ...zap.Field) {
	s.logger.Error("Store unavailable", append(fields, zap.String("op", op), zap.Error(err))...)
}
