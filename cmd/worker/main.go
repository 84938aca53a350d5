package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"presence-bot/internal/app"
	"presence-bot/internal/config"
	"presence-bot/internal/service"

	"github.com/sirupsen/logrus"
)

// Фоновый процесс: доставляет напоминания по таймерам и держит свою
// копию напоминаний в актуальном состоянии через мост синхронизации.
func main() {
	logrus.Info("Initializing config...")
	cfg := config.Get()
	logrus.Info("Config initialized...")

	a, err := app.New(cfg, app.Options{Telegram: true})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize application")
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	permission := a.Notifications.RequestPermission(ctx)
	logrus.WithField("permission", permission).Info("Worker notification channel ready")

	alarms := service.NewAlarmScheduler(a.Dispatcher, a.Clock, nil)
	alarms.Start(ctx, a.Reminders)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.Bridge.Run(ctx); err != nil {
			logrus.WithError(err).Error("Sync bridge stopped with error")
		}
	}()

	if cfg.WorkerBreakNag {
		nag := service.NewBreakNag(
			service.AlertPresenter{Alerter: a.Notifications},
			a.Clock,
			cfg.BreakInterval,
			cfg.BreakCheckInterval,
		).WithAutoDismiss()

		wg.Add(1)
		go func() {
			defer wg.Done()
			nag.Run(ctx)
		}()
	}

	logrus.WithField("alarms", len(alarms.Outstanding())).Info("Worker started. Press Ctrl+C to stop.")
	<-ctx.Done()

	alarms.Stop()
	wg.Wait()

	logrus.Info("Worker stopped gracefully")
}
