package handler

import (
	"context"
	"strings"
	"sync"

	"presence-bot/internal/models"
	"presence-bot/internal/notify"
	"presence-bot/internal/service"
	"presence-bot/internal/timeutil"
	"presence-bot/pkg/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Данные inline кнопок
const (
	cbCheckInOffice   = "checkin_office"
	cbCheckInRemote   = "checkin_remote"
	cbBreakDismiss    = "break_dismiss"
	cbReminderDone    = "reminder_done_"
	cbPlanApply       = "plan_apply_"
	cbPlanApplySilent = "plan_silent_"
)

type Handler struct {
	sender      telegram.Sender
	presence    *service.PresenceService
	reminders   *service.ReminderStore
	planner     *service.PlanResolver
	center      *notify.Center
	nag         *service.BreakNag
	clock       timeutil.Clock
	ownerChatID int64
	logger      *logrus.Logger

	mu              sync.Mutex
	lastCheckInDate string
}

func NewHandler(
	sender telegram.Sender,
	presence *service.PresenceService,
	reminders *service.ReminderStore,
	planner *service.PlanResolver,
	center *notify.Center,
	clock timeutil.Clock,
	ownerChatID int64,
) *Handler {
	logger := logrus.New()
	logger.SetLevel(logrus.GetLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if clock == nil {
		clock = timeutil.SystemClock{}
	}

	return &Handler{
		sender:      sender,
		presence:    presence,
		reminders:   reminders,
		planner:     planner,
		center:      center,
		clock:       clock,
		ownerChatID: ownerChatID,
		logger:      logger,
	}
}

// SetBreakNag подключает напоминание о перерыве. Handler сам служит
// для него способом показа, поэтому связываются они после создания.
func (h *Handler) SetBreakNag(nag *service.BreakNag) {
	h.nag = nag
}

func (h *Handler) HandleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, update)
		}
	}
}

func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	// Обработка callback query (для inline кнопок)
	if update.CallbackQuery != nil {
		h.handleCallbackQuery(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil {
		return
	}

	h.handleMessage(ctx, update.Message)
}

// handleCallbackQuery обрабатывает inline кнопки
func (h *Handler) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil || callback.Message.Chat == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	data := callback.Data

	// Отвечаем на callback (убираем "часики" у кнопки)
	defer h.request(tgbotapi.NewCallback(callback.ID, ""))

	if !h.isOwner(chatID) {
		h.logger.WithField("chat_id", chatID).Warn("Callback from foreign chat ignored")
		return
	}

	// Удаляем клавиатуру
	h.request(tgbotapi.NewEditMessageReplyMarkup(chatID, callback.Message.MessageID, tgbotapi.NewInlineKeyboardMarkup()))

	switch {
	case data == cbCheckInOffice:
		h.markToday(chatID, models.PresenceOffice)
	case data == cbCheckInRemote:
		h.markToday(chatID, models.PresenceRemote)
	case data == cbBreakDismiss:
		h.dismissBreak(chatID)
	case strings.HasPrefix(data, cbReminderDone):
		h.toggleReminder(chatID, strings.TrimPrefix(data, cbReminderDone))
	case strings.HasPrefix(data, cbPlanApply):
		h.applyPlan(chatID, strings.TrimPrefix(data, cbPlanApply), true)
	case strings.HasPrefix(data, cbPlanApplySilent):
		h.applyPlan(chatID, strings.TrimPrefix(data, cbPlanApplySilent), false)
	default:
		h.logger.WithField("data", data).Warn("Unknown callback data")
	}
}

func (h *Handler) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat == nil {
		return
	}
	chatID := message.Chat.ID

	userName := ""
	if message.From != nil {
		userName = message.From.UserName
	}
	h.logger.Infof("[%s] %s", userName, message.Text)

	if !h.isOwner(chatID) {
		h.logger.WithField("chat_id", chatID).Warn("Message from foreign chat refused")
		h.send(chatID, "⛔ Этот бот работает только для владельца.")
		return
	}

	// Обработка команд
	if message.IsCommand() {
		h.handleCommand(ctx, message)
		return
	}

	h.send(chatID, "🤔 Я понимаю только команды. Используйте /help для списка команд.")
}

func (h *Handler) isOwner(chatID int64) bool {
	return h.ownerChatID != 0 && chatID == h.ownerChatID
}

func (h *Handler) send(chatID int64, text string) {
	h.sendMessage(tgbotapi.NewMessage(chatID, text))
}

func (h *Handler) sendMessage(msg tgbotapi.MessageConfig) bool {
	if h.sender == nil {
		h.logger.Warn("Telegram sender is not configured, message dropped")
		return false
	}
	if _, err := h.sender.Send(msg); err != nil {
		h.logger.WithError(err).WithField("chat_id", msg.ChatID).Error("Failed to send message")
		return false
	}
	return true
}

func (h *Handler) request(c tgbotapi.Chattable) {
	if h.sender == nil {
		return
	}
	if _, err := h.sender.Request(c); err != nil {
		h.logger.WithError(err).Debug("Telegram request failed")
	}
}
