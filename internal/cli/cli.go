package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"presence-bot/internal/app"
	"presence-bot/internal/config"
	"presence-bot/internal/timeutil"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Loader собирает приложение для одной команды
type Loader func(logLevel string) (*app.App, error)

// env - общее состояние команд одного запуска
type env struct {
	load     Loader
	logLevel string
	app      *app.App
}

// New возвращает корневую команду, работающую с настройками из окружения
func New() *cobra.Command {
	return NewWithLoader(loadFromConfig)
}

func NewWithLoader(load Loader) *cobra.Command {
	e := &env{load: load}

	cmd := &cobra.Command{
		Use:           "presencectl",
		Short:         "Presence calendar, reminders and weekly office plan on the command line.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.load(e.logLevel)
			if err != nil {
				return err
			}
			e.app = a
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.app != nil {
				e.app.Close()
				e.app = nil
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&e.logLevel, "log-level", "warn", "log level for this run")

	addPresence(cmd, e)
	addReminders(cmd, e)
	addPlan(cmd, e)
	addDispatch(cmd, e)
	addHolidays(cmd, e)
	return cmd
}

func loadFromConfig(logLevel string) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid --log-level: %w", err)
		}
		cfg.LogLevel = level
	}
	return app.New(cfg, app.Options{Telegram: true})
}

// parseDay понимает "today", "tomorrow", "yesterday" и даты
func (e *env) parseDay(s string) (time.Time, error) {
	today := timeutil.StartOfDay(e.app.Clock.Now())
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

func newTable(header ...interface{}) *uitable.Table {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 60
	bold := color.New(color.Bold)
	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = bold.Sprint(h)
	}
	tbl.AddRow(cells...)
	return tbl
}

func printTable(out io.Writer, tbl *uitable.Table) {
	_, _ = fmt.Fprintln(out, tbl)
}
