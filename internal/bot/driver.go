package bot

import (
	"context"
	"fmt"

	"github.com/Desteles/deli-pwa-app/internal/domain"
	"github.com/Desteles/deli-pwa-app/internal/service"
	"github.com/Desteles/deli-pwa-app/internal/telegram"
)

func (b *Bot) showDriverDeliveries(ctx context.Context, q *telegram.CallbackQuery, actor domain.Identity) error {
	if actor.Role != domain.RoleDriver {
		return domain.ErrUnauthorized
	}
	recs, err := b.svc.ActiveForDriver(ctx, actor.ID)
	if err != nil {
		return err
	}
	chatID := q.Message.Chat.ID
	b.replaceScreen(ctx, q)
	if len(recs) == 0 {
		b.send(ctx, chatID, "У вас нет активных доставок.", driverMenu())
		return nil
	}
	for _, rec := range recs {
		b.send(ctx, chatID, deliveryCard("Доставка", rec), driverCardKeyboard(rec))
	}
	b.send(ctx, chatID, "Выберите доставку для работы:", driverMenu())
	return nil
}

func (b *Bot) showDriverCompleted(ctx context.Context, q *telegram.CallbackQuery, actor domain.Identity) error {
	if actor.Role != domain.RoleDriver {
		return domain.ErrUnauthorized
	}
	recs, err := b.svc.CompletedForDriver(ctx, actor.ID)
	if err != nil {
		return err
	}
	chatID := q.Message.Chat.ID
	b.replaceScreen(ctx, q)
	if len(recs) == 0 {
		b.send(ctx, chatID, "Нет завершённых доставок за последний месяц.", driverMenu())
		return nil
	}
	b.send(ctx, chatID, driverHistory(recs, b.loc), nil)
	b.send(ctx, chatID, "Выберите действие:", driverMenu())
	return nil
}

func (b *Bot) accept(ctx context.Context, q *telegram.CallbackQuery, actor domain.Identity, args []string) error {
	id, err := argID(args, 0)
	if err != nil {
		return err
	}
	if _, err := b.driverEvent(ctx, id, domain.EventAccept, actor); err != nil {
		return err
	}
	b.notifyManagers(ctx, fmt.Sprintf("🚚 Водитель %s принял в работу доставку №%d.", esc(actor.Name), id))
	return b.showDriverDeliveries(ctx, q, actor)
}

func (b *Bot) askDelivered(ctx context.Context, q *telegram.CallbackQuery, actor domain.Identity, args []string) error {
	id, err := argID(args, 0)
	if err != nil {
		return err
	}
	if _, err := b.driverEvent(ctx, id, domain.EventMarkDelivered, actor); err != nil {
		return err
	}
	return b.msgr.EditMessageText(ctx, q.Message.Chat.ID, q.Message.MessageID,
		confirmDeliveredText(id), confirmDeliveredKeyboard(id))
}

func (b *Bot) confirmDelivered(ctx context.Context, q *telegram.CallbackQuery, actor domain.Identity, args []string) error {
	id, err := argID(args, 0)
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("%w: callback %q", domain.ErrValidation, q.Data)
	}

	if args[1] != "yes" {
		if _, err := b.driverEvent(ctx, id, domain.EventDeclineDelivered, actor); err != nil {
			return err
		}
		rec, err := b.svc.GetDelivery(ctx, id)
		if err != nil {
			return err
		}
		text := deliveryCard("Доставка", rec) + "\n\n<i>Подтвердите выполнение доставки.</i>"
		return b.msgr.EditMessageText(ctx, q.Message.Chat.ID, q.Message.MessageID, text, driverCardKeyboard(rec))
	}

	if _, err := b.driverEvent(ctx, id, domain.EventConfirmDelivered, actor); err != nil {
		return err
	}
	b.notifyManagers(ctx, fmt.Sprintf("✅ Водитель %s выполнил доставку №%d.", esc(actor.Name), id))
	return b.showDriverDeliveries(ctx, q, actor)
}

func (b *Bot) driverEvent(ctx context.Context, id int64, ev domain.Event, actor domain.Identity) (domain.Status, error) {
	return b.svc.Transition(ctx, service.TransitionRequest{RecordID: id, Event: ev, ActorID: actor.ID})
}
