package handler

import (
	"errors"
	"fmt"
	"strings"

	"presence-bot/internal/kvstore"
	"presence-bot/internal/models"
	"presence-bot/internal/service"
	"presence-bot/internal/timeutil"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	maxListedReminders = 30
	maxDoneButtons     = 8
)

func (h *Handler) reminderError(chatID int64, id string, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		h.send(chatID, "❌ Напоминание не найдено: "+id)
	case errors.Is(err, kvstore.ErrStaleWrite):
		h.send(chatID, "⚠️ Напоминания только что изменились в другом процессе. Повторите команду.")
	default:
		h.logger.WithError(err).WithField("id", id).Error("Reminder operation failed")
		h.send(chatID, "❌ Ошибка: "+err.Error())
	}
}

// addReminder: /remind дата чч:мм текст
func (h *Handler) addReminder(message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID

	parts := strings.Fields(args)
	if len(parts) < 3 {
		h.send(chatID, "❌ Неверный формат. Используйте: /remind дата чч:мм текст\nПример: /remind 23.10.2026 14:30 Созвон")
		return
	}

	day, err := h.parseDay(parts[0])
	if err != nil {
		h.send(chatID, "❌ Неверная дата: "+parts[0])
		return
	}
	at, err := timeutil.ParseDateTime(timeutil.DateKey(day) + " " + parts[1])
	if err != nil {
		h.send(chatID, "❌ Неверное время: "+parts[1]+". Используйте чч:мм")
		return
	}

	r, err := h.reminders.Add(strings.Join(parts[2:], " "), at, models.ReminderStandard)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			h.send(chatID, "❌ "+err.Error())
			return
		}
		h.reminderError(chatID, "", err)
		return
	}

	text := fmt.Sprintf("✅ Напоминание создано\n%s", r.FormatLine())
	if r.DateTime.Before(h.clock.Now()) {
		text += "\n⚠️ Время уже прошло, уведомление придет сразу."
	}
	h.send(chatID, text)
}

func (h *Handler) sendReminderList(chatID int64, title string, items []models.Reminder) {
	if len(items) == 0 {
		h.send(chatID, title+"\n\nПусто.")
		return
	}

	var b strings.Builder
	b.WriteString(title + "\n\n")
	shown := items
	if len(shown) > maxListedReminders {
		shown = shown[len(shown)-maxListedReminders:]
		b.WriteString(fmt.Sprintf("… еще %d ранее\n", len(items)-maxListedReminders))
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, r := range shown {
		b.WriteString(r.FormatLine() + "\n")
		if !r.Completed && len(rows) < maxDoneButtons {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ "+truncate(r.Title, 30), cbReminderDone+r.ID),
			))
		}
	}

	msg := tgbotapi.NewMessage(chatID, b.String())
	if len(rows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	h.sendMessage(msg)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func (h *Handler) listReminders(message *tgbotapi.Message, filter string) {
	title := "⏰ Напоминания"
	if filter == models.ReminderSystem {
		title = "📌 Напоминания планировщика"
	}
	h.sendReminderList(message.Chat.ID, title, h.reminders.List(filter, service.OrderDue))
}

// missionLog - журнал в порядке создания
func (h *Handler) missionLog(message *tgbotapi.Message) {
	h.sendReminderList(message.Chat.ID, "📜 Журнал", h.reminders.List("", service.OrderCreated))
}

func (h *Handler) toggleReminder(chatID int64, id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		h.send(chatID, "❌ Укажите id напоминания. Пример: /done 1761037200000")
		return
	}
	r, err := h.reminders.ToggleCompleted(id)
	if err != nil {
		h.reminderError(chatID, id, err)
		return
	}
	if r.Completed {
		h.send(chatID, "✅ Выполнено: "+r.Title)
		return
	}
	h.send(chatID, "↩️ Снова в работе: "+r.Title)
}

func (h *Handler) deleteReminder(message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	id := strings.TrimSpace(args)
	if id == "" {
		h.send(chatID, "❌ Укажите id напоминания. Пример: /delete 1761037200000")
		return
	}
	if err := h.reminders.Remove(id); err != nil {
		h.reminderError(chatID, id, err)
		return
	}
	h.send(chatID, "🗑 Напоминание удалено.")
}

func (h *Handler) resetReminder(message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	id := strings.TrimSpace(args)
	if id == "" {
		h.send(chatID, "❌ Укажите id напоминания. Пример: /reset 1761037200000")
		return
	}
	r, err := h.reminders.Reset(id)
	if err != nil {
		h.reminderError(chatID, id, err)
		return
	}
	h.send(chatID, "🔄 Напоминание снова ждет отправки\n"+r.FormatLine())
}
