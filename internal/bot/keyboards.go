package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"channelbot/internal/service"
)

func adminPanelKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💬 Рассылка", cbAdminMailing),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Статистика", cbAdminStats),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👥 Пользователи", cbAdminUsers),
		),
	)
}

// previewKeyboard shows the draft's link buttons plus the composer
// actions: "add button" while under the limit, then confirm/cancel.
func previewKeyboard(buttons []service.Button) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, btn := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(btn.Label, btn.URL),
		))
	}
	if len(buttons) < maxMailingButtons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Добавить кнопку", cbMailingAddButton),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Отправить", cbMailingConfirm),
		tgbotapi.NewInlineKeyboardButtonData("❌ Отменить", cbMailingCancel),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
