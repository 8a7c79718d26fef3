package bot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Desteles/deli-pwa-app/internal/domain"
	"github.com/Desteles/deli-pwa-app/internal/telegram"
	"github.com/Desteles/deli-pwa-app/internal/workflow"
)

func (b *Bot) startIntake(ctx context.Context, q *telegram.CallbackQuery, actor domain.Identity) error {
	if actor.Role != domain.RoleManager {
		return domain.ErrUnauthorized
	}
	b.replaceScreen(ctx, q)
	_, prompt, err := b.svc.StartIntake(ctx, actor.ID)
	if err != nil {
		return err
	}
	b.send(ctx, q.Message.Chat.ID, prompt, cancelSessionKeyboard())
	return nil
}

func (b *Bot) intakeStep(ctx context.Context, chatID, userID int64, h workflow.Handle, text string) {
	res, err := b.svc.SubmitIntakeStep(ctx, h, text)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrValidation) && res != nil:
		b.send(ctx, chatID, res.Prompt, cancelSessionKeyboard())
		return
	case errors.Is(err, domain.ErrStoreUnavailable):
		b.reportStoreFailure(ctx, chatID, "Произошла ошибка при сохранении доставки. Попробуйте ещё раз.", err)
		return
	case errors.Is(err, domain.ErrUnauthorized):
		b.clear(ctx, chatID)
		b.send(ctx, chatID, "Ошибка: вы не авторизованы как менеджер.", nil)
		return
	default:
		b.clear(ctx, chatID)
		b.reportError(ctx, chatID, userID, err)
		return
	}

	if !res.Completed() {
		b.send(ctx, chatID, res.Prompt, cancelSessionKeyboard())
		return
	}

	b.clear(ctx, chatID)
	rec, err := b.svc.GetDelivery(ctx, res.RecordID)
	if err != nil {
		b.send(ctx, chatID, fmt.Sprintf("✅ Доставка создана! ID: %d", res.RecordID), nil)
	} else if _, err := b.msgr.SendMessage(ctx, chatID, createdSummary(rec), nil); err != nil {
		b.logger.Warn("Failed to send summary", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	b.sendMenu(ctx, chatID, userID, "Выберите действие:")
}

func (b *Bot) showEdit(ctx context.Context, q *telegram.CallbackQuery, args []string) error {
	id, err := argID(args, 0)
	if err != nil {
		return err
	}
	rec, err := b.svc.GetDelivery(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status != domain.StatusDraft {
		return fmt.Errorf("delivery %d is %s: %w", id, rec.Status, domain.ErrInvalidState)
	}
	b.replaceScreen(ctx, q)
	b.send(ctx, q.Message.Chat.ID, editScreen(rec), editKeyboard(id))
	return nil
}

func (b *Bot) startFieldEdit(ctx context.Context, q *telegram.CallbackQuery, actor domain.Identity, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: callback %q", domain.ErrInvalidField, q.Data)
	}
	id, err := argID(args, 1)
	if err != nil {
		return err
	}
	_, current, err := b.svc.StartFieldEdit(ctx, actor.ID, id, args[0])
	if err != nil {
		return err
	}
	field, _ := domain.ParseField(args[0])
	if current == "" {
		current = dash
	}
	b.replaceScreen(ctx, q)
	b.send(ctx, q.Message.Chat.ID,
		fmt.Sprintf("Текущее значение: %s\n\nВведите новое значение для поля «%s»:", esc(current), field.Label()),
		cancelSessionKeyboard())
	return nil
}

func (b *Bot) fieldEditStep(ctx context.Context, chatID, userID int64, h workflow.Handle, text string) {
	rec, err := b.svc.SubmitFieldEdit(ctx, h, text)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrValidation):
		b.send(ctx, chatID, "Поле не может быть пустым. Введите ещё раз:", cancelSessionKeyboard())
		return
	case errors.Is(err, domain.ErrStoreUnavailable):
		b.reportStoreFailure(ctx, chatID, "Ошибка при сохранении. Попробуйте ещё раз.", err)
		return
	default:
		b.clear(ctx, chatID)
		b.reportError(ctx, chatID, userID, err)
		return
	}

	b.clear(ctx, chatID)
	if _, err := b.msgr.SendMessage(ctx, chatID, "✅ Значение успешно изменено!", nil); err != nil {
		b.logger.Warn("Failed to send confirmation", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	b.send(ctx, chatID, editScreen(rec), editKeyboard(rec.ID))
}

// reportStoreFailure keeps the current screen so the participant can resend.
func (b *Bot) reportStoreFailure(ctx context.Context, chatID int64, text string, err error) {
	b.logger.Error("Store unavailable", zap.Int64("chat_id", chatID), zap.Error(err))
	b.send(ctx, chatID, text, cancelSessionKeyboard())
}
