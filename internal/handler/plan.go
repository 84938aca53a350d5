package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"presence-bot/internal/service"
	"presence-bot/internal/timeutil"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// parsePlanArgs разбирает "пн,ср,пт [silent]". "-" означает пустой выбор.
func parsePlanArgs(args string) ([]time.Weekday, bool, error) {
	notify := true
	fields := strings.Fields(args)
	if len(fields) > 0 && fields[0] == "-" {
		fields = fields[1:]
	}
	if n := len(fields); n > 0 {
		switch strings.ToLower(fields[n-1]) {
		case "silent", "тихо":
			notify = false
			fields = fields[:n-1]
		}
	}
	days, err := timeutil.ParseWeekdays(strings.Join(fields, ","))
	return days, notify, err
}

// encodeWeekdays кодирует выбор для callback data: "1,3,5"
func encodeWeekdays(days []time.Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func formatWeekdays(days []time.Weekday) string {
	if len(days) == 0 {
		return "нет"
	}
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = timeutil.ShortWeekday(d)
	}
	return strings.Join(names, ", ")
}

func formatDates(dates []time.Time) string {
	names := make([]string, len(dates))
	for i, d := range dates {
		names[i] = fmt.Sprintf("%s %s", timeutil.ShortWeekday(d.Weekday()), d.Format("02.01"))
	}
	return strings.Join(names, ", ")
}

func formatPlan(plan *service.Plan) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📌 План на %s - %s\n\n",
		plan.WindowStart.Format("02.01"), timeutil.AddDays(plan.WindowEnd, -1).Format("02.01")))
	b.WriteString("Сейчас: " + formatWeekdays(plan.Current) + "\n")
	b.WriteString("Новый выбор: " + formatWeekdays(plan.Selected) + "\n")
	if len(plan.ToAdd) > 0 {
		b.WriteString("➕ Добавятся: " + formatDates(plan.ToAdd) + "\n")
	}
	if len(plan.ToRemove) > 0 {
		b.WriteString("➖ Уберутся: " + formatDates(plan.ToRemove) + "\n")
	}
	if len(plan.Skipped) > 0 {
		b.WriteString("⏭ Уже заняты другим статусом: " + formatDates(plan.Skipped) + "\n")
	}
	if !plan.HasChanges {
		b.WriteString("\nИзменений нет.")
	}
	return b.String()
}

func (h *Handler) planError(chatID int64, err error) {
	if errors.Is(err, service.ErrInvalidInput) || errors.Is(err, timeutil.ErrInvalidWeekday) {
		h.send(chatID, "❌ "+err.Error()+"\nПример: /plan пн,ср,пт")
		return
	}
	h.logger.WithError(err).Error("Failed to resolve weekly plan")
	h.send(chatID, "❌ Ошибка планирования: "+err.Error())
}

// planPreview показывает изменения и кнопки подтверждения, если они есть
func (h *Handler) planPreview(message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID

	days, _, err := parsePlanArgs(args)
	if err != nil {
		h.planError(chatID, err)
		return
	}
	plan, err := h.planner.Preview(h.clock.Now(), days)
	if err != nil {
		h.planError(chatID, err)
		return
	}

	msg := tgbotapi.NewMessage(chatID, formatPlan(plan))
	if plan.HasChanges {
		encoded := encodeWeekdays(plan.Selected)
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Применить", cbPlanApply+encoded),
				tgbotapi.NewInlineKeyboardButtonData("🔕 Без напоминаний", cbPlanApplySilent+encoded),
			),
		)
	}
	h.sendMessage(msg)
}

func (h *Handler) plan(message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	if strings.TrimSpace(args) == "" {
		h.send(chatID, "❌ Укажите дни. Пример: /plan пн,ср,пт\nЧтобы очистить план: /plan -")
		return
	}
	days, notify, err := parsePlanArgs(args)
	if err != nil {
		h.planError(chatID, err)
		return
	}
	h.applyDays(chatID, days, notify)
}

func (h *Handler) applyPlan(chatID int64, encoded string, notify bool) {
	days, err := timeutil.ParseWeekdays(encoded)
	if err != nil {
		h.planError(chatID, err)
		return
	}
	h.applyDays(chatID, days, notify)
}

func (h *Handler) applyDays(chatID int64, days []time.Weekday, notify bool) {
	result, err := h.planner.Apply(h.clock.Now(), days, notify)
	if err != nil && result == nil {
		h.planError(chatID, err)
		return
	}

	text := formatPlan(&result.Plan)
	if result.HasChanges {
		text = "✅ План сохранен\n\n" + text
	}
	if len(result.Reminders) > 0 {
		text += fmt.Sprintf("\n⏰ Напоминаний о бронировании: %d", len(result.Reminders))
	}
	if err != nil {
		text += "\n⚠️ " + err.Error()
	}
	h.send(chatID, text)
}
