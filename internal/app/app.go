package app

import (
	"fmt"
	"os"

	"presence-bot/internal/config"
	"presence-bot/internal/kvstore"
	"presence-bot/internal/notify"
	"presence-bot/internal/repository"
	"presence-bot/internal/service"
	"presence-bot/internal/syncbridge"
	"presence-bot/internal/timeutil"
	"presence-bot/pkg/telegram"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options - различия между процессами при сборке
type Options struct {
	// Telegram создает клиента бота, если задан токен
	Telegram bool
	// RequireTelegram делает отсутствие клиента ошибкой
	RequireTelegram bool
	Clock           timeutil.Clock
}

// App - общие для всех процессов хранилища и сервисы
type App struct {
	Config *config.Config
	Clock  timeutil.Clock

	DB *gorm.DB
	KV *kvstore.DiskStore

	PresenceRepo repository.PresenceRepository
	Presence     *service.PresenceService
	Reminders    *service.ReminderStore
	Planner      *service.PlanResolver

	Telegram      *telegram.Client
	Notifications *notify.Center
	Dispatcher    *service.Dispatcher
	Bridge        *syncbridge.Bridge
}

func New(cfg *config.Config, opts Options) (*App, error) {
	logrus.SetLevel(cfg.LogLevel)

	clock := opts.Clock
	if clock == nil {
		clock = timeutil.SystemClock{}
	}

	db, err := OpenDB(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	presenceRepo, err := repository.NewGormPresenceRepository(db)
	if err != nil {
		return nil, fmt.Errorf("create presence repository: %w", err)
	}
	settingRepo, err := repository.NewGormSettingRepository(db)
	if err != nil {
		return nil, fmt.Errorf("create setting repository: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	kv, err := kvstore.NewDiskStore(cfg.DataDir, cfg.ConflictPolicy)
	if err != nil {
		return nil, fmt.Errorf("open reminder snapshot store: %w", err)
	}

	reminders, err := service.NewReminderStore(kv, clock)
	if err != nil {
		return nil, fmt.Errorf("load reminders: %w", err)
	}
	presence := service.NewPresenceService(presenceRepo, settingRepo, clock, cfg.DefaultGoal)

	var client *telegram.Client
	if opts.Telegram && cfg.TelegramToken != "" {
		client, err = telegram.NewClient(cfg.TelegramToken, cfg.TelegramDebug)
		if err != nil {
			if opts.RequireTelegram {
				return nil, fmt.Errorf("create telegram client: %w", err)
			}
			logrus.WithError(err).Warn("Telegram is unavailable, notifications fall back to banners")
			client = nil
		} else {
			logrus.Infof("Authorized on account %s", client.Bot.Self.UserName)
		}
	}
	if opts.RequireTelegram && client == nil {
		return nil, fmt.Errorf("telegram client is required")
	}

	center := notify.NewCenter(notify.NewTelegramNotifier(client.Sender(), cfg.OwnerChatID), nil)

	bridge := syncbridge.New(kv)
	bridge.Register(service.RemindersKey, reminders)

	return &App{
		Config:        cfg,
		Clock:         clock,
		DB:            db,
		KV:            kv,
		PresenceRepo:  presenceRepo,
		Presence:      presence,
		Reminders:     reminders,
		Planner:       service.NewPlanResolver(presenceRepo, presence, reminders),
		Telegram:      client,
		Notifications: center,
		Dispatcher:    service.NewDispatcher(reminders, center, clock, cfg.PollInterval),
		Bridge:        bridge,
	}, nil
}

// OpenDB открывает базу SQLite
func OpenDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true, // SQLite ограничения
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// ImportHolidays загружает календарь праздников, если он задан
func (a *App) ImportHolidays() {
	if a.Config.HolidaysFile == "" {
		return
	}
	created, err := a.Presence.ImportHolidays(a.Config.HolidaysFile)
	if err != nil {
		logrus.WithError(err).Warn("Failed to import holidays")
		return
	}
	logrus.Infof("Holidays imported: %d new", created)
}

// Close закрывает соединение с БД
func (a *App) Close() {
	sqlDB, err := a.DB.DB()
	if err != nil {
		logrus.Infof("Error getting database instance: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		logrus.Infof("Error closing database: %v", err)
	}
}
