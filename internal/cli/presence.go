package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"presence-bot/internal/models"
	"presence-bot/internal/timeutil"

	"github.com/spf13/cobra"
)

var monthOrder = []string{
	models.PresenceOffice, models.PresenceRemote, models.PresenceLeave, models.PresenceSick,
	models.PresenceHoliday, models.PresenceOther, models.PresencePlanned, models.PresenceNone,
}

func addPresence(topLevel *cobra.Command, e *env) {
	cmd := &cobra.Command{
		Use:   "presence",
		Short: "Read and mark daily presence",
	}

	get := &cobra.Command{
		Use:   "get [date]",
		Short: "Show the status of a day",
		Example: `
presencectl presence get
presencectl presence get 2026-10-23
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := e.parseDay(strings.Join(args, ""))
			if err != nil {
				return err
			}
			record, err := e.app.Presence.Get(date)
			if err != nil {
				return err
			}
			tbl := newTable("DATE", "STATUS", "REASON", "SOURCE")
			tbl.AddRow(record.Date, record.Status, record.Reason, source(record))
			printTable(cmd.OutOrStdout(), tbl)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <date> <status> [reason...]",
		Short: "Mark a working day",
		Example: `
presencectl presence set today office
presencectl presence set 2026-10-23 leave Dacha
`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := e.parseDay(args[0])
			if err != nil {
				return err
			}
			status, ok := models.ParseStatus(args[1])
			if !ok {
				return fmt.Errorf("unknown status %q", args[1])
			}
			record := models.PresenceRecord{
				Date:   timeutil.DateKey(date),
				Status: status,
				Reason: strings.Join(args[2:], " "),
			}
			if err := e.app.Presence.Set(record); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", record.Date, status)
			return nil
		},
	}

	week := &cobra.Command{
		Use:   "week",
		Short: "Show the current week and the office goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := e.app.Clock.Now()
			monday := timeutil.StartOfWeek(now)
			tbl := newTable("DAY", "DATE", "STATUS", "REASON", "SOURCE")
			for i := 0; i < 7; i++ {
				record, err := e.app.Presence.Get(timeutil.AddDays(monday, i))
				if err != nil {
					return err
				}
				date := timeutil.AddDays(monday, i)
				tbl.AddRow(date.Weekday().String()[:3], record.Date, record.Status, record.Reason, source(record))
			}
			printTable(cmd.OutOrStdout(), tbl)

			progress, err := e.app.Presence.GoalProgress(now)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\noffice %d/%d (%d%%)\n", progress.OfficeDays, progress.Goal, progress.Percent)
			return nil
		},
	}

	month := &cobra.Command{
		Use:   "month [yyyy-mm]",
		Short: "Count weekday statuses over a month",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := e.app.Clock.Now()
			year, m := now.Year(), now.Month()
			if len(args) == 1 {
				t, err := time.Parse("2006-01", args[0])
				if err != nil {
					return fmt.Errorf("invalid month %q, want yyyy-mm", args[0])
				}
				year, m = t.Year(), t.Month()
			}
			stats, err := e.app.Presence.MonthStats(year, m)
			if err != nil {
				return err
			}
			tbl := newTable("STATUS", "DAYS")
			for _, status := range monthOrder {
				tbl.AddRow(status, stats[status])
			}
			printTable(cmd.OutOrStdout(), tbl)
			return nil
		},
	}

	goal := &cobra.Command{
		Use:   "goal [1-5]",
		Short: "Show or set the weekly office goal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("goal must be a number: %w", err)
				}
				if err := e.app.Presence.SetGoal(n); err != nil {
					return err
				}
			}
			n, err := e.app.Presence.GetGoal()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "goal: %d office days per week\n", n)
			return nil
		},
	}

	cmd.AddCommand(get, set, week, month, goal)
	topLevel.AddCommand(cmd)
}

func source(r *models.PresenceRecord) string {
	if r.Derived {
		return "default"
	}
	return "stored"
}
