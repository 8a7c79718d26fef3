package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Desteles/deli-pwa-app/internal/domain"
	"github.com/Desteles/deli-pwa-app/internal/telegram"
)

// Callback actions. Arguments follow the action separated by ':'.
const (
	cbAddDelivery         = "add_delivery"
	cbPlanned             = "planned_deliveries"
	cbInWork              = "in_work_deliveries"
	cbCompleted           = "completed_deliveries"
	cbDownload            = "download_table"
	cbEditDelivery        = "edit_delivery"     // :id
	cbEditField           = "field"             // :field:id
	cbAssignDriver        = "assign_driver"     // :id
	cbSetDriver           = "set_driver"        // :id:driver
	cbCancelDelivery      = "cancel_delivery"   // :id
	cbAccept              = "accept"            // :id
	cbDelivered           = "delivered"         // :id
	cbConfirmDelivered    = "confirm_delivered" // :id:yes|no
	cbDriverDeliveries    = "driver_deliveries"
	cbDriverCompleted     = "driver_completed"
	cbDriverDownload      = "download_table_driver"
	cbBackToMenu          = "back_to_menu"
	cbCancelSession       = "cancel_session"
	callbackArgsSeparator = ":"
)

func callback(action string, args ...interface{}) string {
	parts := []string{action}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, callbackArgsSeparator)
}

// parseCallback splits callback data into the action and its arguments.
func parseCallback(data string) (string, []string) {
	parts := strings.Split(data, callbackArgsSeparator)
	return parts[0], parts[1:]
}

func argID(args []string, i int) (int64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument %d", i)
	}
	return strconv.ParseInt(args[i], 10, 64)
}

func managerMenu() *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard(
		telegram.Row(telegram.Button("Запланировать доставку", cbAddDelivery)),
		telegram.Row(telegram.Button("Не выполненные", cbPlanned)),
		telegram.Row(telegram.Button("Приняты в работу", cbInWork)),
		telegram.Row(telegram.Button("Выполненные", cbCompleted)),
		telegram.Row(telegram.Button("Скачать таблицу", cbDownload)),
	)
}

func driverMenu() *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard(
		telegram.Row(telegram.Button("Мои доставки", cbDriverDeliveries)),
		telegram.Row(telegram.Button("Посмотреть выполненные", cbDriverCompleted)),
		telegram.Row(telegram.Button("Скачать таблицу", cbDriverDownload)),
	)
}

func menuFor(role domain.Role) *telegram.InlineKeyboardMarkup {
	switch role {
	case domain.RoleManager:
		return managerMenu()
	case domain.RoleDriver:
		return driverMenu()
	}
	return nil
}

func cancelSessionKeyboard() *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard(telegram.Row(telegram.Button("Отмена", cbCancelSession)))
}

func draftKeyboard(id int64) *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard(
		telegram.Row(telegram.Button("Назначить водителя", callback(cbAssignDriver, id))),
		telegram.Row(telegram.Button("Редактировать доставку", callback(cbEditDelivery, id))),
		telegram.Row(telegram.Button("Отменить доставку", callback(cbCancelDelivery, id))),
	)
}

func editKeyboard(id int64) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(domain.EditableFields)+1)
	for _, f := range domain.EditableFields {
		rows = append(rows, telegram.Row(telegram.Button("Изменить: "+f.Label(), callback(cbEditField, f, id))))
	}
	rows = append(rows, telegram.Row(telegram.Button("Назад в меню", cbBackToMenu)))
	return telegram.Keyboard(rows...)
}

func driversKeyboard(id int64, drivers []domain.Member) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(drivers)+1)
	for _, d := range drivers {
		rows = append(rows, telegram.Row(telegram.Button(d.Name, callback(cbSetDriver, id, d.ID))))
	}
	rows = append(rows, telegram.Row(telegram.Button("Назад в меню", cbBackToMenu)))
	return telegram.Keyboard(rows...)
}

// driverCardKeyboard offers the next driver action for the record's status.
func driverCardKeyboard(rec *domain.DeliveryRecord) *telegram.InlineKeyboardMarkup {
	switch rec.Status {
	case domain.StatusAssigned:
		return telegram.Keyboard(telegram.Row(telegram.Button("Принять в работу", callback(cbAccept, rec.ID))))
	case domain.StatusInProgress:
		return telegram.Keyboard(telegram.Row(telegram.Button("Доставлено", callback(cbDelivered, rec.ID))))
	}
	return nil
}

func confirmDeliveredKeyboard(id int64) *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard(telegram.Row(
		telegram.Button("Да, доставлено", callback(cbConfirmDelivered, id, "yes")),
		telegram.Button("Нет, отменить", callback(cbConfirmDelivered, id, "no")),
	))
}

func inWorkKeyboard(recs []*domain.DeliveryRecord) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(recs)+1)
	for _, r := range recs {
		rows = append(rows, telegram.Row(telegram.Button(
			fmt.Sprintf("Отменить №%d", r.ID), callback(cbCancelDelivery, r.ID))))
	}
	rows = append(rows, telegram.Row(telegram.Button("Назад в меню", cbBackToMenu)))
	return telegram.Keyboard(rows...)
}
