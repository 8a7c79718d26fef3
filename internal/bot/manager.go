package bot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Desteles/deli-pwa-app/internal/domain"
	"github.com/Desteles/deli-pwa-app/internal/export"
	"github.com/Desteles/deli-pwa-app/internal/service"
	"github.com/Desteles/deli-pwa-app/internal/telegram"
)

func (b *Bot) showPlanned(ctx context.Context, q *telegram.CallbackQuery) error {
	recs, err := b.svc.ListByStatus(ctx, domain.StatusDraft)
	if err != nil {
		return err
	}
	chatID := q.Message.Chat.ID
	b.replaceScreen(ctx, q)
	if len(recs) == 0 {
		b.send(ctx, chatID, "Нет незапланированных доставок.", managerMenu())
		return nil
	}
	for _, rec := range recs {
		b.send(ctx, chatID, deliveryCard("Доставка", rec), draftKeyboard(rec.ID))
	}
	b.send(ctx, chatID, "Выберите действие:", managerMenu())
	return nil
}

func (b *Bot) showInWork(ctx context.Context, q *telegram.CallbackQuery) error {
	assigned, err := b.svc.ListByStatus(ctx, domain.StatusAssigned)
	if err != nil {
		return err
	}
	inProgress, err := b.svc.ListByStatus(ctx, domain.StatusInProgress)
	if err != nil {
		return err
	}
	recs := append(assigned, inProgress...)

	chatID := q.Message.Chat.ID
	b.replaceScreen(ctx, q)
	if len(recs) == 0 {
		b.send(ctx, chatID, "Нет доставок в работе.", managerMenu())
		return nil
	}
	b.send(ctx, chatID, inWorkList(recs), inWorkKeyboard(recs))
	b.send(ctx, chatID, "Выберите действие:", managerMenu())
	return nil
}

func (b *Bot) showCompleted(ctx context.Context, q *telegram.CallbackQuery) error {
	recs, err := b.svc.ListByStatus(ctx, domain.StatusCompleted)
	if err != nil {
		return err
	}
	chatID := q.Message.Chat.ID
	b.replaceScreen(ctx, q)
	if len(recs) == 0 {
		b.send(ctx, chatID, "Нет выполненных доставок.", managerMenu())
		return nil
	}
	b.send(ctx, chatID, completedList(recs, b.loc), nil)
	b.send(ctx, chatID, "Выберите действие:", managerMenu())
	return nil
}

func (b *Bot) chooseDriver(ctx context.Context, q *telegram.CallbackQuery, args []string) error {
	id, err := argID(args, 0)
	if err != nil {
		return err
	}
	rec, err := b.svc.GetDelivery(ctx, id)
	if err != nil {
		return err
	}
	drivers := b.svc.Directory().Drivers()
	if len(drivers) == 0 {
		return b.msgr.EditMessageText(ctx, q.Message.Chat.ID, q.Message.MessageID, "Водителей нет.", nil)
	}
	text := fmt.Sprintf("Выберите водителя для доставки №%d:\n\n", id) + deliveryCard("Доставка", rec)
	return b.msgr.EditMessageText(ctx, q.Message.Chat.ID, q.Message.MessageID, text, driversKeyboard(id, drivers))
}

func (b *Bot) assign(ctx context.Context, q *telegram.CallbackQuery, actor domain.Identity, args []string) error {
	id, err := argID(args, 0)
	if err != nil {
		return err
	}
	driverID, err := argID(args, 1)
	if err != nil {
		return err
	}
	if _, err := b.svc.Transition(ctx, service.TransitionRequest{
		RecordID: id,
		Event:    domain.EventAssign,
		ActorID:  actor.ID,
		DriverID: driverID,
	}); err != nil {
		return err
	}
	rec, err := b.svc.GetDelivery(ctx, id)
	if err != nil {
		return err
	}

	// private chats share the participant id
	msg, err := b.msgr.SendMessage(ctx, driverID, deliveryCard("Новая доставка", rec), driverCardKeyboard(rec))
	if err != nil {
		b.logger.Warn("Failed to notify driver",
			zap.Int64("delivery_id", id),
			zap.Int64("driver_id", driverID),
			zap.Error(err))
	} else {
		b.tracker.track(driverID, msg.MessageID)
	}

	return b.msgr.EditMessageText(ctx, q.Message.Chat.ID, q.Message.MessageID,
		fmt.Sprintf("Доставка №%d назначена водителю %s.", id, esc(*rec.DriverName)), nil)
}

func (b *Bot) cancelDelivery(ctx context.Context, q *telegram.CallbackQuery, actor domain.Identity, args []string) error {
	id, err := argID(args, 0)
	if err != nil {
		return err
	}
	rec, err := b.svc.GetDelivery(ctx, id)
	if err != nil {
		return err
	}
	if _, err := b.svc.Transition(ctx, service.TransitionRequest{
		RecordID: id,
		Event:    domain.EventCancel,
		ActorID:  actor.ID,
	}); err != nil {
		return err
	}
	if rec.DriverID != nil {
		text := fmt.Sprintf("❌ Доставка №%d отменена менеджером %s.", id, esc(actor.Name))
		if _, err := b.msgr.SendMessage(ctx, *rec.DriverID, text, nil); err != nil {
			b.logger.Warn("Failed to notify driver", zap.Int64("delivery_id", id), zap.Error(err))
		}
	}
	b.replaceScreen(ctx, q)
	b.sendMenu(ctx, q.Message.Chat.ID, actor.ID, fmt.Sprintf("Доставка №%d отменена.", id))
	return nil
}

// download sends the spreadsheet of the actor's role.
func (b *Bot) download(ctx context.Context, q *telegram.CallbackQuery, actor domain.Identity) error {
	var (
		recs     []*domain.DeliveryRecord
		err      error
		render   func([]*domain.DeliveryRecord, *time.Location) ([]byte, error)
		fileName string
		caption  string
	)
	switch actor.Role {
	case domain.RoleManager:
		recs, err = b.svc.AllRecords(ctx)
		render, fileName, caption = export.ManagerWorkbook, export.ManagerFileName, "Таблица доставок"
	case domain.RoleDriver:
		recs, err = b.svc.DriverRecords(ctx, actor.ID)
		render, fileName, caption = export.DriverWorkbook, export.DriverFileName, "Ваши доставки"
	default:
		return domain.ErrUnauthorized
	}
	if err != nil {
		return err
	}

	chatID := q.Message.Chat.ID
	b.replaceScreen(ctx, q)
	if len(recs) == 0 {
		b.send(ctx, chatID, "Нет данных для экспорта.", menuFor(actor.Role))
		return nil
	}
	data, err := render(recs, b.loc)
	if err != nil {
		return fmt.Errorf("render workbook: %w", err)
	}
	msg, err := b.msgr.SendDocument(ctx, chatID, fileName, data, caption)
	if err != nil {
		b.logger.Warn("Failed to send workbook", zap.Int64("chat_id", chatID), zap.Error(err))
		b.send(ctx, chatID, "Не удалось отправить таблицу. Попробуйте ещё раз.", menuFor(actor.Role))
		return nil
	}
	b.tracker.track(chatID, msg.MessageID)
	b.send(ctx, chatID, "Таблица успешно экспортирована!", menuFor(actor.Role))
	return nil
}
