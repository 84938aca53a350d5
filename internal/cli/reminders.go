package cli

import (
	"fmt"
	"strings"

	"presence-bot/internal/models"
	"presence-bot/internal/service"
	"presence-bot/internal/timeutil"

	"github.com/spf13/cobra"
)

func addReminders(topLevel *cobra.Command, e *env) {
	cmd := &cobra.Command{
		Use:     "reminders",
		Aliases: []string{"r"},
		Short:   "Manage reminders",
	}

	add := &cobra.Command{
		Use:   "add <date> <hh:mm> <title...>",
		Short: "Add a reminder",
		Example: `
presencectl reminders add tomorrow 09:30 Standup
presencectl reminders add 2026-10-23 14:00 Send the report
`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := e.parseDay(args[0])
			if err != nil {
				return err
			}
			at, err := timeutil.ParseDateTime(timeutil.DateKey(day) + " " + args[1])
			if err != nil {
				return err
			}
			r, err := e.app.Reminders.Add(strings.Join(args[2:], " "), at, models.ReminderStandard)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), r.ID)
			return nil
		},
	}

	var systemOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List reminders by due time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := ""
			if systemOnly {
				filter = models.ReminderSystem
			}
			printReminders(cmd, e.app.Reminders.List(filter, service.OrderDue))
			return nil
		},
	}
	list.Flags().BoolVar(&systemOnly, "system", false, "only reminders created by the weekly plan")

	log := &cobra.Command{
		Use:   "log",
		Short: "List reminders in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printReminders(cmd, e.app.Reminders.List("", service.OrderCreated))
			return nil
		},
	}

	done := &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle the completed flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := e.app.Reminders.ToggleCompleted(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", r.ID, r.State())
			return nil
		},
	}

	del := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a reminder",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.app.Reminders.Remove(args[0])
		},
	}

	reset := &cobra.Command{
		Use:   "reset <id>",
		Short: "Make a reminder pending again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := e.app.Reminders.Reset(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", r.ID, r.State())
			return nil
		},
	}

	cmd.AddCommand(add, list, log, done, del, reset)
	topLevel.AddCommand(cmd)
}

func printReminders(cmd *cobra.Command, items []models.Reminder) {
	tbl := newTable("ID", "WHEN", "STATE", "TYPE", "TITLE")
	for _, r := range items {
		tbl.AddRow(r.ID, r.DateTime.Format(timeutil.DateTimeLayout), r.State(), r.Type, r.Title)
	}
	printTable(cmd.OutOrStdout(), tbl)
}
