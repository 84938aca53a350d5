package handler

import (
	"context"
	"fmt"
	"strings"

	"presence-bot/internal/notify"
	"presence-bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ShowBreak показывает напоминание о перерыве с кнопкой закрытия.
// Если сообщение не ушло, напоминание попадает в баннеры и возвращается
// false: кнопки у пользователя нет.
func (h *Handler) ShowBreak(ctx context.Context, message string) bool {
	msg := tgbotapi.NewMessage(h.ownerChatID, "☕ "+service.BreakAlertTitle+"\n\n"+message)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚶 Я иду!", cbBreakDismiss),
		),
	)
	if h.sendMessage(msg) {
		return true
	}
	if h.center != nil {
		h.center.Banners().Push(notify.Banner{
			Title: service.BreakAlertTitle,
			Body:  message,
			At:    h.clock.Now(),
		})
	}
	return false
}

func (h *Handler) triggerBreak(message *tgbotapi.Message) {
	if h.nag == nil {
		h.send(message.Chat.ID, "❌ Напоминания о перерывах отключены.")
		return
	}
	if h.nag.Visible() {
		h.send(message.Chat.ID, "☕ Напоминание о перерыве уже на экране.")
		return
	}
	h.nag.Trigger()
}

func (h *Handler) dismissBreak(chatID int64) {
	if h.nag == nil {
		return
	}
	h.nag.Dismiss()
	h.send(chatID, "👍 Хорошего перерыва!")
}

// showBanners выдает накопленные уведомления, которые не удалось доставить
func (h *Handler) showBanners(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if h.center == nil {
		h.send(chatID, "📭 Пропущенных уведомлений нет.")
		return
	}

	banners := h.center.Banners().Drain()
	if len(banners) == 0 {
		h.send(chatID, "📭 Пропущенных уведомлений нет.")
		return
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📬 Пропущенные уведомления: %d\n\n", len(banners)))
	for _, banner := range banners {
		b.WriteString(fmt.Sprintf("%s %s: %s\n", banner.At.Format("02.01 15:04"), banner.Title, banner.Body))
	}
	h.send(chatID, b.String())
}
