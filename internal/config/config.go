package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"presence-bot/internal/kvstore"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	TelegramToken string
	OwnerChatID   int64
	TelegramDebug bool

	DatabaseURL  string
	DataDir      string
	HolidaysFile string

	PollInterval       time.Duration
	PollReminders      bool
	BreakInterval      time.Duration
	BreakCheckInterval time.Duration
	WorkerBreakNag     bool

	ConflictPolicy kvstore.ConflictPolicy
	DefaultGoal    int
	LogLevel       logrus.Level
}

var instance *Config
var once sync.Once

// Get возвращает конфигурацию процесса. Ошибка конфигурации фатальна.
func Get() *Config {
	once.Do(func() {
		cfg, err := Load()
		if err != nil {
			logrus.Fatalf("error loading config: %s", err.Error())
		}
		instance = cfg
	})

	return instance
}

// Load читает .env (если он есть) и переменные окружения
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Warnf("could not load .env file, using environment only: %s", err.Error())
	}

	cfg := &Config{
		TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		OwnerChatID:   getEnvAsInt("OWNER_CHAT_ID", 0),
		TelegramDebug: getEnvAsBool("TELEGRAM_DEBUG", false),

		DatabaseURL:  getEnv("DATABASE_URL", "presence.db"),
		DataDir:      getEnv("DATA_DIR", "./data"),
		HolidaysFile: getEnv("HOLIDAYS_FILE", ""),

		PollInterval:       getEnvAsDuration("POLL_INTERVAL", 10*time.Second),
		PollReminders:      getEnvAsBool("POLL_REMINDERS", true),
		BreakInterval:      getEnvAsDuration("BREAK_INTERVAL", 60*time.Minute),
		BreakCheckInterval: getEnvAsDuration("BREAK_CHECK_INTERVAL", time.Minute),
		WorkerBreakNag:     getEnvAsBool("WORKER_BREAK_NAG", false),

		DefaultGoal: int(getEnvAsInt("DEFAULT_GOAL", 3)),
	}

	policy, err := kvstore.ParseConflictPolicy(getEnv("CONFLICT_POLICY", string(kvstore.LastWriterWins)))
	if err != nil {
		return nil, err
	}
	cfg.ConflictPolicy = policy

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	if cfg.PollInterval <= 0 || cfg.BreakInterval <= 0 || cfg.BreakCheckInterval <= 0 {
		return nil, fmt.Errorf("intervals must be positive")
	}
	if cfg.DefaultGoal < 1 || cfg.DefaultGoal > 5 {
		return nil, fmt.Errorf("DEFAULT_GOAL must be between 1 and 5, got %d", cfg.DefaultGoal)
	}

	return cfg, nil
}

// RequireTelegram проверяет настройки, без которых бот не запустится
func (c *Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("could not get bot token")
	}
	if c.OwnerChatID == 0 {
		return fmt.Errorf("could not get owner chat id")
	}
	return nil
}

func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}

	return defaultVal
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valStr := getEnv(name, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}

	return defaultVal
}

func getEnvAsInt(name string, defaultVal int64) int64 {
	valStr := getEnv(name, "")
	if val, err := strconv.ParseInt(valStr, 10, 64); err == nil {
		return val
	}

	return defaultVal
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valStr := getEnv(name, "")
	if val, err := time.ParseDuration(valStr); err == nil {
		return val
	}

	return defaultVal
}
