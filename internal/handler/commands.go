package handler

import (
	"context"

	"presence-bot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (h *Handler) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	command := message.Command()
	args := message.CommandArguments()

	switch command {
	case "start":
		h.sendStartMessage(message)
	case "help":
		h.sendHelpMessage(message)

	// Присутствие
	case "today":
		h.showToday(message)
	case "office":
		h.markToday(message.Chat.ID, models.PresenceOffice)
	case "remote":
		h.markToday(message.Chat.ID, models.PresenceRemote)
	case "mark":
		h.markDay(message, args)
	case "day":
		h.showDay(message, args)
	case "week":
		h.showWeek(message)
	case "month":
		h.showMonth(message, args)
	case "goal":
		h.goal(message, args)

	// Планирование недели
	case "plan":
		h.plan(message, args)
	case "planpreview":
		h.planPreview(message, args)

	// Напоминания
	case "remind":
		h.addReminder(message, args)
	case "reminders":
		h.listReminders(message, "")
	case "system":
		h.listReminders(message, models.ReminderSystem)
	case "log":
		h.missionLog(message)
	case "done":
		h.toggleReminder(message.Chat.ID, args)
	case "delete":
		h.deleteReminder(message, args)
	case "reset":
		h.resetReminder(message, args)

	// Перерывы и уведомления
	case "break":
		h.triggerBreak(message)
	case "banners":
		h.showBanners(message)

	default:
		h.sendUnknownCommand(message)
	}
}

func (h *Handler) sendUnknownCommand(message *tgbotapi.Message) {
	h.send(message.Chat.ID, "❌ Неизвестная команда. Используйте /help для списка команд.")
}

const helpText = `📋 Доступные команды:

🏢 Присутствие:
/today - Статус на сегодня и цель недели
/office - Отметить сегодня офис
/remote - Отметить сегодня удаленку
/mark дата статус [причина] - Отметить день
    Пример: /mark 23.10.2026 отпуск Дача
    Статусы: офис, удаленно, отпуск, больничный, праздник, другое
/day [дата] - Статус дня
/week - Текущая неделя
/month [гггг-мм] - Сводка за месяц
/goal [1-5] - Показать или задать цель дней в офисе

📌 План на неделю:
/planpreview дни - Показать, что изменится
/plan дни [silent] - Запланировать офисные дни на ближайшие 7 дней
    Пример: /plan пн,ср,пт
    silent - без напоминаний о бронировании места

⏰ Напоминания:
/remind дата чч:мм текст - Новое напоминание
    Пример: /remind 23.10.2026 14:30 Созвон с командой
/reminders - Все напоминания по времени
/system - Напоминания планировщика
/log - Журнал в порядке создания
/done id - Отметить выполненным (повторно - снять отметку)
/delete id - Удалить напоминание
/reset id - Снова ждать уведомления

☕ Перерывы:
/break - Напомнить о перерыве прямо сейчас
/banners - Уведомления, которые не удалось доставить

🛠 Утилиты:
/start - Начать работу с ботом
/help - Показать это сообщение`

func (h *Handler) sendStartMessage(message *tgbotapi.Message) {
	h.send(message.Chat.ID, "👋 Привет! Я помогу отмечать дни в офисе, планировать неделю и не забывать о делах.\n\n"+helpText)
}

func (h *Handler) sendHelpMessage(message *tgbotapi.Message) {
	h.send(message.Chat.ID, helpText)
}
