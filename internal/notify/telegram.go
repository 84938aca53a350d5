package notify

import (
	"context"
	"errors"
	"fmt"

	"presence-bot/pkg/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

var errNoChannel = errors.New("telegram channel is not configured")

// TelegramNotifier отправляет уведомления владельцу в чат бота
type TelegramNotifier struct {
	sender telegram.Sender
	chatID int64
}

// NewTelegramNotifier принимает nil sender: тогда доступ всегда запрещен
func NewTelegramNotifier(sender telegram.Sender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID}
}

func (n *TelegramNotifier) RequestPermission(ctx context.Context) Permission {
	if n.sender == nil || n.chatID == 0 {
		return PermissionDenied
	}
	_, err := n.sender.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: n.chatID},
	})
	if err != nil {
		logrus.WithError(err).WithField("chat_id", n.chatID).Warn("Owner chat is not reachable")
		return PermissionDenied
	}
	return PermissionGranted
}

func (n *TelegramNotifier) Notify(ctx context.Context, title, body string) error {
	if n.sender == nil || n.chatID == 0 {
		return errNoChannel
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, fmt.Sprintf("🔔 %s\n\n%s", title, body))
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("send telegram notification: %w", err)
	}
	return nil
}
