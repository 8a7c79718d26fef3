package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Desteles/deli-pwa-app/internal/domain"
)

const (
	dash          = "—"
	displayLayout = "02.01.2006 15:04"
)

func esc(s string) string { return html.EscapeString(s) }

func orDash(s *string) string {
	if s == nil || *s == "" {
		return dash
	}
	return esc(*s)
}

// deliveryCard is the full card shown to drivers and in manager lists.
func deliveryCard(title string, rec *domain.DeliveryRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚚 <b>%s №%d</b>\n\n", title, rec.ID)
	fmt.Fprintf(&b, "<b>Поставщик:</b> %s\n", esc(rec.Supplier))
	fmt.Fprintf(&b, "<b>Плательщик:</b> %s\n", esc(rec.Payer))
	fmt.Fprintf(&b, "<b>Счёт:</b> %s\n", esc(rec.InvoiceNumber))
	fmt.Fprintf(&b, "<b>Адрес загрузки:</b> %s\n", orDash(rec.PickupAddress))
	fmt.Fprintf(&b, "<b>Адрес отгрузки:</b> %s\n", orDash(rec.DeliveryAddress))
	fmt.Fprintf(&b, "<b>Габариты/вес/комментарий:</b> %s\n", orDash(rec.CargoInfo))
	fmt.Fprintf(&b, "<b>Автор заявки:</b> %s\n", esc(rec.AuthorName))
	fmt.Fprintf(&b, "<b>Статус:</b> %s", rec.Status.Label())
	if rec.DriverName != nil {
		fmt.Fprintf(&b, "\n<b>Водитель:</b> %s", esc(*rec.DriverName))
	}
	return b.String()
}

// createdSummary confirms a finished intake.
func createdSummary(rec *domain.DeliveryRecord) string {
	return "✅ Доставка создана!\n\n" + deliveryCard("Доставка", rec)
}

// inWorkList renders assigned and in-progress deliveries as one message.
func inWorkList(recs []*domain.DeliveryRecord) string {
	var b strings.Builder
	b.WriteString("<b>Доставки в работе:</b>\n\n")
	for _, r := range recs {
		fmt.Fprintf(&b, "№%d | %s → %s\n", r.ID, esc(r.Supplier), orDash(r.DeliveryAddress))
		fmt.Fprintf(&b, "   Плательщик: %s | Счёт: %s\n", esc(r.Payer), esc(r.InvoiceNumber))
		fmt.Fprintf(&b, "   Адрес загрузки: %s\n", orDash(r.PickupAddress))
		fmt.Fprintf(&b, "   Статус: %s\n", r.Status.Label())
		fmt.Fprintf(&b, "   Водитель: %s\n\n", driverOrNone(r))
	}
	return strings.TrimRight(b.String(), "\n")
}

// completedList renders the manager's completed listing.
func completedList(recs []*domain.DeliveryRecord, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Выполненные доставки (последние %d):</b>\n\n", len(recs))
	for _, r := range recs {
		fmt.Fprintf(&b, "№%d | %s → %s\n", r.ID, esc(r.Supplier), orDash(r.DeliveryAddress))
		fmt.Fprintf(&b, "   Плательщик: %s | Счёт: %s\n", esc(r.Payer), esc(r.InvoiceNumber))
		fmt.Fprintf(&b, "   Дата выполнения: %s\n", stamp(r.CompletedAt, loc))
		fmt.Fprintf(&b, "   Водитель: %s\n\n", driverOrNone(r))
	}
	return strings.TrimRight(b.String(), "\n")
}

// driverHistory renders a driver's recently completed deliveries.
func driverHistory(recs []*domain.DeliveryRecord, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Завершённые доставки (последние %d):</b>\n\n", len(recs))
	for _, r := range recs {
		fmt.Fprintf(&b, "ID: %d\n", r.ID)
		fmt.Fprintf(&b, "Поставщик: %s\n", esc(r.Supplier))
		fmt.Fprintf(&b, "Счёт: %s\n", esc(r.InvoiceNumber))
		fmt.Fprintf(&b, "Завершено: %s\n\n", stamp(r.CompletedAt, loc))
	}
	return strings.TrimRight(b.String(), "\n")
}

func editScreen(rec *domain.DeliveryRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Редактирование доставки №%d\n\n", rec.ID)
	for _, f := range domain.EditableFields {
		v := rec.FieldValue(f)
		fmt.Fprintf(&b, "%s: %s\n", f.Label(), orDash(&v))
	}
	return strings.TrimRight(b.String(), "\n")
}

func confirmDeliveredText(id int64) string {
	return fmt.Sprintf("Вы уверены, что доставка №%d выполнена?\n\n"+
		"После подтверждения статус изменится на «доставлено».", id)
}

func driverOrNone(r *domain.DeliveryRecord) string {
	if r.DriverName == nil {
		return "Не назначен"
	}
	return esc(*r.DriverName)
}

func stamp(t *time.Time, loc *time.Location) string {
	if t == nil {
		return dash
	}
	return t.In(loc).Format(displayLayout)
}
