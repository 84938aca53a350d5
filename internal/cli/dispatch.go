package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// addDispatch - разовая доставка наступивших напоминаний, например из cron.
// Без Telegram уведомления становятся баннерами и печатаются здесь же.
func addDispatch(topLevel *cobra.Command, e *env) {
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Deliver due reminders once and print undelivered banners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			delivered, err := e.app.Dispatcher.Tick(cmd.Context())
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "delivered: %d\n", delivered)

			banners := e.app.Notifications.Banners().Drain()
			if len(banners) > 0 {
				tbl := newTable("AT", "TITLE", "BODY")
				for _, b := range banners {
					tbl.AddRow(b.At.Format("2006-01-02 15:04"), b.Title, b.Body)
				}
				printTable(cmd.OutOrStdout(), tbl)
			}
			return err
		},
	}

	topLevel.AddCommand(cmd)
}

func addHolidays(topLevel *cobra.Command, e *env) {
	cmd := &cobra.Command{
		Use:   "holidays",
		Short: "Holiday calendar",
	}

	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import holidays from a production calendar JSON",
		Long:  "Creates holiday records for dates without an explicit status. Existing records are never overwritten.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := e.app.Config.HolidaysFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no calendar file: pass one or set HOLIDAYS_FILE")
			}
			created, err := e.app.Presence.ImportHolidays(path)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported: %d\n", created)
			return nil
		},
	}

	cmd.AddCommand(importCmd)
	topLevel.AddCommand(cmd)
}
