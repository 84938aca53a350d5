package config

import (
	"os"
	"testing"
	"time"

	"presence-bot/internal/kvstore"

	"github.com/sirupsen/logrus"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{
		"TELEGRAM_BOT_TOKEN", "OWNER_CHAT_ID", "DATABASE_URL", "DATA_DIR",
		"POLL_INTERVAL", "POLL_REMINDERS", "BREAK_INTERVAL", "BREAK_CHECK_INTERVAL",
		"CONFLICT_POLICY", "DEFAULT_GOAL", "LOG_LEVEL",
	} {
		// пустое значение равносильно отсутствию
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PollInterval != 10*time.Second || !cfg.PollReminders {
		t.Fatalf("unexpected poll settings: %+v", cfg)
	}
	if cfg.BreakInterval != time.Hour || cfg.BreakCheckInterval != time.Minute {
		t.Fatalf("unexpected break settings: %+v", cfg)
	}
	if cfg.DatabaseURL != "presence.db" || cfg.DataDir != "./data" || cfg.LogLevel != logrus.InfoLevel {
		t.Fatalf("unexpected storage defaults: %+v", cfg)
	}
	if cfg.ConflictPolicy != kvstore.LastWriterWins || cfg.DefaultGoal != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.RequireTelegram(); err == nil {
		t.Fatal("bot must require a token")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("OWNER_CHAT_ID", "987654")
	t.Setenv("DATABASE_URL", "/tmp/p.db")
	t.Setenv("DATA_DIR", "/tmp/data")
	t.Setenv("POLL_INTERVAL", "30s")
	t.Setenv("BREAK_INTERVAL", "45m")
	t.Setenv("CONFLICT_POLICY", "reject-stale")
	t.Setenv("DEFAULT_GOAL", "4")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WORKER_BREAK_NAG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OwnerChatID != 987654 || cfg.TelegramToken != "123:abc" {
		t.Fatalf("unexpected telegram settings: %+v", cfg)
	}
	if cfg.PollInterval != 30*time.Second || cfg.BreakInterval != 45*time.Minute {
		t.Fatalf("unexpected intervals: %+v", cfg)
	}
	if cfg.ConflictPolicy != kvstore.RejectStale || cfg.DefaultGoal != 4 || !cfg.WorkerBreakNag {
		t.Fatalf("unexpected settings: %+v", cfg)
	}
	if cfg.LogLevel != logrus.DebugLevel {
		t.Fatalf("unexpected log level %s", cfg.LogLevel)
	}
	if err := cfg.RequireTelegram(); err != nil {
		t.Fatalf("telegram settings must be complete: %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	chdir(t, t.TempDir())
	tests := map[string]string{
		"CONFLICT_POLICY": "merge",
		"DEFAULT_GOAL":    "9",
		"LOG_LEVEL":       "loud",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s must be rejected", key, value)
			}
		})
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
