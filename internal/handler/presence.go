package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"presence-bot/internal/models"
	"presence-bot/internal/service"
	"presence-bot/internal/timeutil"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// parseDay понимает "сегодня", "завтра", "вчера" и даты в обоих форматах
func (h *Handler) parseDay(s string) (time.Time, error) {
	today := timeutil.StartOfDay(h.clock.Now())
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today", "сегодня":
		return today, nil
	case "tomorrow", "завтра":
		return timeutil.AddDays(today, 1), nil
	case "yesterday", "вчера":
		return timeutil.AddDays(today, -1), nil
	}
	return timeutil.ParseDateKey(s)
}

func formatDay(r *models.PresenceRecord) string {
	line := fmt.Sprintf("%s %s", models.StatusEmoji(r.Status), models.StatusLabel(r.Status))
	if r.Reason != "" {
		line += " (" + r.Reason + ")"
	}
	if r.Derived && r.Status != models.PresenceNone {
		line += " - по умолчанию"
	}
	return line
}

// checkInKeyboard - кнопки ежедневной отметки
func checkInKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏢 Офис", cbCheckInOffice),
			tgbotapi.NewInlineKeyboardButtonData("🏠 Удаленно", cbCheckInRemote),
		),
	)
}

// showToday показывает статус дня и прогресс недельной цели
func (h *Handler) showToday(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	now := h.clock.Now()

	record, err := h.presence.Get(now)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get today presence")
		h.send(chatID, "❌ Ошибка получения статуса: "+err.Error())
		return
	}
	progress, err := h.presence.GoalProgress(now)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get goal progress")
		h.send(chatID, "❌ Ошибка получения цели: "+err.Error())
		return
	}

	text := fmt.Sprintf(`📅 Сегодня %s, %s
%s

🎯 Цель недели: %d из %d дней в офисе (%d%%)`,
		timeutil.ShortWeekday(now.Weekday()),
		now.Format("02.01.2006"),
		formatDay(record),
		progress.OfficeDays, progress.Goal, progress.Percent,
	)

	msg := tgbotapi.NewMessage(chatID, text)
	if need, err := h.presence.NeedsCheckIn(now); err == nil && need {
		msg.Text += "\n\n👋 Где вы сегодня работаете?"
		msg.ReplyMarkup = checkInKeyboard()
	}
	h.sendMessage(msg)
}

func (h *Handler) markToday(chatID int64, status string) {
	now := h.clock.Now()
	if timeutil.IsWeekend(now) {
		h.send(chatID, "💤 Сегодня выходной, отмечать не нужно.")
		return
	}
	err := h.presence.Set(models.PresenceRecord{Date: timeutil.DateKey(now), Status: status})
	if err != nil {
		h.logger.WithError(err).Error("Failed to check in")
		h.send(chatID, "❌ Ошибка сохранения: "+err.Error())
		return
	}

	h.mu.Lock()
	h.lastCheckInDate = timeutil.DateKey(now)
	h.mu.Unlock()

	text := fmt.Sprintf("✅ Отмечено: %s %s", models.StatusEmoji(status), models.StatusLabel(status))
	if progress, err := h.presence.GoalProgress(now); err == nil {
		text += fmt.Sprintf("\n🎯 Неделя: %d из %d", progress.OfficeDays, progress.Goal)
	}
	h.send(chatID, text)
}

// markDay: /mark дата статус [причина]
func (h *Handler) markDay(message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID

	parts := strings.Fields(args)
	if len(parts) < 2 {
		h.send(chatID, "❌ Неверный формат. Используйте: /mark дата статус [причина]\nПример: /mark 23.10.2026 офис")
		return
	}

	date, err := h.parseDay(parts[0])
	if err != nil {
		h.send(chatID, "❌ Неверная дата: "+parts[0])
		return
	}
	status, ok := models.ParseStatus(parts[1])
	if !ok {
		h.send(chatID, "❌ Неизвестный статус: "+parts[1])
		return
	}
	if timeutil.IsWeekend(date) {
		h.send(chatID, "💤 Это выходной день, его статус определяется автоматически.")
		return
	}
	if status == models.PresencePlanned {
		h.send(chatID, "📌 Для планирования используйте /plan.")
		return
	}

	record := models.PresenceRecord{
		Date:   timeutil.DateKey(date),
		Status: status,
		Reason: strings.Join(parts[2:], " "),
	}
	if err := h.presence.Set(record); err != nil {
		h.logger.WithError(err).Error("Failed to mark day")
		h.send(chatID, "❌ Ошибка сохранения: "+err.Error())
		return
	}

	saved, _ := h.presence.Get(date)
	if saved == nil {
		saved = &record
	}
	h.send(chatID, fmt.Sprintf("✅ %s: %s", date.Format("02.01.2006"), formatDay(saved)))
}

func (h *Handler) showDay(message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	date, err := h.parseDay(args)
	if err != nil {
		h.send(chatID, "❌ Неверная дата: "+args)
		return
	}
	record, err := h.presence.Get(date)
	if err != nil {
		h.send(chatID, "❌ Ошибка получения статуса: "+err.Error())
		return
	}
	h.send(chatID, fmt.Sprintf("📅 %s %s\n%s",
		timeutil.ShortWeekday(date.Weekday()), date.Format("02.01.2006"), formatDay(record)))
}

func (h *Handler) showWeek(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	now := h.clock.Now()
	monday := timeutil.StartOfWeek(now)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("🗓 Неделя с %s\n\n", monday.Format("02.01.2006")))
	for i := 0; i < 7; i++ {
		date := timeutil.AddDays(monday, i)
		record, err := h.presence.Get(date)
		if err != nil {
			h.send(chatID, "❌ Ошибка получения недели: "+err.Error())
			return
		}
		marker := "  "
		if timeutil.SameDay(date, now) {
			marker = "👉"
		}
		b.WriteString(fmt.Sprintf("%s %s %s: %s\n", marker,
			timeutil.ShortWeekday(date.Weekday()), date.Format("02.01"), formatDay(record)))
	}

	if progress, err := h.presence.GoalProgress(now); err == nil {
		b.WriteString(fmt.Sprintf("\n🎯 %d из %d дней в офисе (%d%%)", progress.OfficeDays, progress.Goal, progress.Percent))
	}
	h.send(chatID, b.String())
}

// showMonth: /month [гггг-мм]
func (h *Handler) showMonth(message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	now := h.clock.Now()
	year, month := now.Year(), now.Month()

	if args = strings.TrimSpace(args); args != "" {
		t, err := time.Parse("2006-01", args)
		if err != nil {
			h.send(chatID, "❌ Неверный месяц. Используйте формат гггг-мм, например 2026-10.")
			return
		}
		year, month = t.Year(), t.Month()
	}

	stats, err := h.presence.MonthStats(year, month)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get month stats")
		h.send(chatID, "❌ Ошибка получения статистики: "+err.Error())
		return
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 %02d.%d (только будни)\n\n", int(month), year))
	for _, status := range []string{
		models.PresenceOffice, models.PresenceRemote, models.PresenceLeave, models.PresenceSick,
		models.PresenceHoliday, models.PresenceOther, models.PresencePlanned, models.PresenceNone,
	} {
		if n := stats[status]; n > 0 || status == models.PresenceOffice {
			b.WriteString(fmt.Sprintf("%s %s: %d\n", models.StatusEmoji(status), models.StatusLabel(status), n))
		}
	}
	h.send(chatID, b.String())
}

// goal: /goal показывает цель, /goal N задает
func (h *Handler) goal(message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	args = strings.TrimSpace(args)

	if args == "" {
		goal, err := h.presence.GetGoal()
		if err != nil {
			h.send(chatID, "❌ Ошибка получения цели: "+err.Error())
			return
		}
		h.send(chatID, fmt.Sprintf("🎯 Цель: %d дней в офисе в неделю.\nИзменить: /goal 1-5", goal))
		return
	}

	goal, err := strconv.Atoi(args)
	if err != nil {
		h.send(chatID, "❌ Цель должна быть числом от 1 до 5.")
		return
	}
	if err := h.presence.SetGoal(goal); err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			h.send(chatID, "❌ Цель должна быть числом от 1 до 5.")
			return
		}
		h.logger.WithError(err).Error("Failed to set goal")
		h.send(chatID, "❌ Ошибка сохранения цели: "+err.Error())
		return
	}
	h.send(chatID, fmt.Sprintf("✅ Новая цель: %d дней в офисе в неделю.", goal))
}

// PromptCheckIn раз в день предлагает отметиться, если день еще не отмечен
func (h *Handler) PromptCheckIn() bool {
	now := h.clock.Now()
	key := timeutil.DateKey(now)

	h.mu.Lock()
	already := h.lastCheckInDate == key
	h.mu.Unlock()
	if already {
		return false
	}

	need, err := h.presence.NeedsCheckIn(now)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to check daily check-in")
		return false
	}
	if !need {
		return false
	}

	msg := tgbotapi.NewMessage(h.ownerChatID, "👋 Доброе утро! Где вы сегодня работаете?")
	msg.ReplyMarkup = checkInKeyboard()
	if !h.sendMessage(msg) {
		return false
	}

	h.mu.Lock()
	h.lastCheckInDate = key
	h.mu.Unlock()
	return true
}
