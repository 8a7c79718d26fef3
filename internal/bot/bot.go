package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Desteles/deli-pwa-app/internal/domain"
	"github.com/Desteles/deli-pwa-app/internal/service"
	"github.com/Desteles/deli-pwa-app/internal/telegram"
	"github.com/Desteles/deli-pwa-app/internal/workflow"
)

// Messenger sends and removes chat messages.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup *telegram.InlineKeyboardMarkup) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
	SendDocument(ctx context.Context, chatID int64, fileName string, data []byte, caption string) (*telegram.Message, error)
}

// UpdateSource yields chat updates.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64) ([]telegram.Update, error)
}

// Bot maps chat updates onto the dispatch service.
type Bot struct {
	svc     service.DispatchService
	msgr    Messenger
	tracker *tracker
	loc     *time.Location
	backoff time.Duration
	logger  *zap.Logger
}

func New(svc service.DispatchService, msgr Messenger, loc *time.Location, logger *zap.Logger) *Bot {
	if loc == nil {
		loc = time.Local
	}
	return &Bot{
		svc:     svc,
		msgr:    msgr,
		tracker: newTracker(),
		loc:     loc,
		backoff: 3 * time.Second,
		logger:  logger,
	}
}

// Run polls src until ctx is cancelled.
func (b *Bot) Run(ctx context.Context, src UpdateSource) error {
	b.logger.Info("Bot polling started")
	var offset int64
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := src.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Warn("Failed to get updates", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(b.backoff):
			}
			continue
		}
		for _, u := range updates {
			b.HandleUpdate(ctx, u)
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
		}
	}
}

// HandleUpdate processes one update. Errors are reported to the chat and logged.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.From != nil:
		b.handleMessage(ctx, u.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *telegram.Message) {
	userID := m.From.ID
	chatID := m.Chat.ID

	switch m.Text {
	case "/start":
		b.cancelSession(ctx, userID)
		b.clear(ctx, chatID)
		b.greet(ctx, chatID, userID)
		return
	case "/cancel":
		b.cancelSession(ctx, userID)
		b.clear(ctx, chatID)
		b.sendMenu(ctx, chatID, userID, "Действие отменено.")
		return
	}

	sess, err := b.svc.ActiveSession(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNoSession) {
			b.reportError(ctx, chatID, userID, err)
			return
		}
		b.sendMenu(ctx, chatID, userID, "Выберите действие:")
		return
	}
	b.tracker.track(chatID, m.MessageID)

	switch sess.Kind {
	case workflow.KindIntake:
		b.intakeStep(ctx, chatID, userID, sess.Handle(), m.Text)
	case workflow.KindFieldEdit:
		b.fieldEditStep(ctx, chatID, userID, sess.Handle(), m.Text)
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *telegram.CallbackQuery) {
	if err := b.msgr.AnswerCallbackQuery(ctx, q.ID, ""); err != nil {
		b.logger.Debug("Failed to answer callback", zap.Error(err))
	}
	if q.Message == nil {
		return
	}
	userID := q.From.ID
	chatID := q.Message.Chat.ID
	actor := b.svc.Directory().Lookup(userID)
	if actor.Role == domain.RoleNone {
		b.send(ctx, chatID, "У вас нет доступа к меню.", nil)
		return
	}

	action, args := parseCallback(q.Data)
	if managerActions[action] && actor.Role != domain.RoleManager {
		b.reportError(ctx, chatID, userID, fmt.Errorf("%w: %s requires manager", domain.ErrUnauthorized, action))
		return
	}
	var err error
	switch action {
	case cbAddDelivery:
		err = b.startIntake(ctx, q, actor)
	case cbPlanned:
		err = b.showPlanned(ctx, q)
	case cbInWork:
		err = b.showInWork(ctx, q)
	case cbCompleted:
		err = b.showCompleted(ctx, q)
	case cbDownload:
		err = b.download(ctx, q, actor)
	case cbEditDelivery:
		err = b.showEdit(ctx, q, args)
	case cbEditField:
		err = b.startFieldEdit(ctx, q, actor, args)
	case cbAssignDriver:
		err = b.chooseDriver(ctx, q, args)
	case cbSetDriver:
		err = b.assign(ctx, q, actor, args)
	case cbCancelDelivery:
		err = b.cancelDelivery(ctx, q, actor, args)
	case cbAccept:
		err = b.accept(ctx, q, actor, args)
	case cbDelivered:
		err = b.askDelivered(ctx, q, actor, args)
	case cbConfirmDelivered:
		err = b.confirmDelivered(ctx, q, actor, args)
	case cbDriverDeliveries:
		err = b.showDriverDeliveries(ctx, q, actor)
	case cbDriverCompleted:
		err = b.showDriverCompleted(ctx, q, actor)
	case cbDriverDownload:
		err = b.download(ctx, q, actor)
	case cbBackToMenu:
		b.replaceScreen(ctx, q)
		b.sendMenu(ctx, chatID, userID, "Выберите действие:")
	case cbCancelSession:
		b.cancelSession(ctx, userID)
		b.replaceScreen(ctx, q)
		b.sendMenu(ctx, chatID, userID, "Действие отменено.")
	default:
		err = fmt.Errorf("%w: unknown callback %q", domain.ErrValidation, q.Data)
	}
	if err != nil {
		b.reportError(ctx, chatID, userID, err)
	}
}

// managerActions are callbacks only managers may press.
var managerActions = map[string]bool{
	cbAddDelivery:    true,
	cbPlanned:        true,
	cbInWork:         true,
	cbCompleted:      true,
	cbEditDelivery:   true,
	cbEditField:      true,
	cbAssignDriver:   true,
	cbSetDriver:      true,
	cbCancelDelivery: true,
}

// replaceScreen removes the pressed message and everything tracked before it.
func (b *Bot) replaceScreen(ctx context.Context, q *telegram.CallbackQuery) {
	b.tracker.track(q.Message.Chat.ID, q.Message.MessageID)
	b.clear(ctx, q.Message.Chat.ID)
}

// send posts a message and tracks it as part of the current screen.
func (b *Bot) send(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) {
	msg, err := b.msgr.SendMessage(ctx, chatID, text, markup)
	if err != nil {
		b.logger.Warn("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	b.tracker.track(chatID, msg.MessageID)
}

func (b *Bot) greet(ctx context.Context, chatID, userID int64) {
	id := b.svc.Directory().Lookup(userID)
	if id.Role == domain.RoleNone {
		b.send(ctx, chatID, "Вы не авторизованы как менеджер или водитель. Обратитесь к администратору.", nil)
		return
	}
	b.send(ctx, chatID, fmt.Sprintf("Добро пожаловать, %s!", esc(id.Name)), menuFor(id.Role))
}

func (b *Bot) sendMenu(ctx context.Context, chatID, userID int64, text string) {
	role := b.svc.Directory().Lookup(userID).Role
	if role == domain.RoleNone {
		b.send(ctx, chatID, "У вас нет доступа к меню.", nil)
		return
	}
	b.send(ctx, chatID, text, menuFor(role))
}

func (b *Bot) cancelSession(ctx context.Context, userID int64) {
	if err := b.svc.CancelSession(ctx, userID); err != nil {
		b.logger.Warn("Failed to cancel session", zap.Int64("participant_id", userID), zap.Error(err))
	}
}

// notifyManagers tells every manager about a driver action.
func (b *Bot) notifyManagers(ctx context.Context, text string) {
	for _, m := range b.svc.Directory().Managers() {
		if _, err := b.msgr.SendMessage(ctx, m.ID, text, nil); err != nil {
			b.logger.Warn("Failed to notify manager", zap.Int64("manager_id", m.ID), zap.Error(err))
		}
	}
}

// reportError turns a core error into a chat reply.
func (b *Bot) reportError(ctx context.Context, chatID, userID int64, err error) {
	var text string
	switch {
	case errors.Is(err, domain.ErrStoreUnavailable):
		b.logger.Error("Store unavailable", zap.Int64("participant_id", userID), zap.Error(err))
		text = "Произошла ошибка. Попробуйте ещё раз."
	case errors.Is(err, domain.ErrNotFound):
		text = "Доставка не найдена."
	case errors.Is(err, domain.ErrInvalidState):
		text = "Редактировать можно только черновик доставки."
	case errors.Is(err, domain.ErrInvalidTransition):
		text = "Статус доставки уже изменился. Обновите список."
	case errors.Is(err, domain.ErrUnauthorized):
		text = "Ошибка: у вас нет прав на это действие."
	case errors.Is(err, domain.ErrInvalidField):
		text = "Ошибка: неизвестное поле для редактирования."
	case errors.Is(err, domain.ErrNoSession):
		text = "Сессия истекла. Начните заново."
	default:
		b.logger.Warn("Request failed", zap.Int64("participant_id", userID), zap.Error(err))
		text = "Ошибка: некорректный запрос."
	}
	b.sendMenu(ctx, chatID, userID, text)
}
