package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"presence-bot/internal/app"
	"presence-bot/internal/config"
	"presence-bot/internal/handler"
	"presence-bot/internal/service"

	"github.com/sirupsen/logrus"
)

// checkInPromptInterval - как часто проверять, нужна ли ежедневная отметка
const checkInPromptInterval = time.Hour

func main() {
	logrus.Info("Initializing config...")
	cfg := config.Get()
	if err := cfg.RequireTelegram(); err != nil {
		logrus.Fatal("Invalid bot config: ", err)
	}
	logrus.Info("Config initialized...")

	a, err := app.New(cfg, app.Options{Telegram: true, RequireTelegram: true})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize application")
	}
	defer a.Close()

	a.ImportHolidays()

	// Обработка сигналов для graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Notifications.RequestPermission(ctx)

	botHandler := handler.NewHandler(
		a.Telegram.Sender(),
		a.Presence,
		a.Reminders,
		a.Planner,
		a.Notifications,
		a.Clock,
		cfg.OwnerChatID,
	)

	// Напоминание о перерыве показывается в чате, поэтому обработчик
	// служит и способом показа, и источником команд
	nag := service.NewBreakNag(botHandler, a.Clock, cfg.BreakInterval, cfg.BreakCheckInterval)
	botHandler.SetBreakNag(nag)

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	run(func() {
		if err := a.Bridge.Run(ctx); err != nil {
			logrus.WithError(err).Error("Sync bridge stopped with error")
		}
	})
	run(func() { nag.Run(ctx) })
	if cfg.PollReminders {
		run(func() { a.Dispatcher.Run(ctx) })
	} else {
		logrus.Info("Reminder polling disabled, the worker delivers reminders")
	}
	run(func() { promptCheckIns(ctx, botHandler) })

	// Настраиваем канал обновлений
	updates := a.Telegram.Bot.GetUpdatesChan(a.Telegram.UpdateConfig)
	run(func() { botHandler.HandleUpdates(ctx, updates) })

	logrus.Info("Bot started. Press Ctrl+C to stop.")
	<-ctx.Done()

	a.Telegram.Bot.StopReceivingUpdates()
	wg.Wait()

	logrus.Info("Bot stopped gracefully")
}

// promptCheckIns раз в час предлагает отметить день, пока он не отмечен
func promptCheckIns(ctx context.Context, h *handler.Handler) {
	h.PromptCheckIn()

	ticker := time.NewTicker(checkInPromptInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.PromptCheckIn()
		}
	}
}
