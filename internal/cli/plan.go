package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"presence-bot/internal/service"
	"presence-bot/internal/timeutil"

	"github.com/spf13/cobra"
)

func addPlan(topLevel *cobra.Command, e *env) {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan office days for the next seven days",
	}

	preview := &cobra.Command{
		Use:   "preview [days]",
		Short: "Show what a selection would change",
		Example: `
presencectl plan preview mon,wed,fri
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := timeutil.ParseWeekdays(strings.Join(args, ""))
			if err != nil {
				return err
			}
			plan, err := e.app.Planner.Preview(e.app.Clock.Now(), days)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), plan)
			return nil
		},
	}

	var silent bool
	apply := &cobra.Command{
		Use:   "apply [days]",
		Short: "Apply a selection; no days clears the plan",
		Example: `
presencectl plan apply mon,wed
presencectl plan apply mon,wed --silent
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := timeutil.ParseWeekdays(strings.Join(args, ""))
			if err != nil {
				return err
			}
			result, err := e.app.Planner.Apply(e.app.Clock.Now(), days, !silent)
			if result != nil {
				printPlan(cmd.OutOrStdout(), &result.Plan)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reminders: %d\n", len(result.Reminders))
			}
			return err
		},
	}
	apply.Flags().BoolVar(&silent, "silent", false, "do not create seat booking reminders")

	cmd.AddCommand(preview, apply)
	topLevel.AddCommand(cmd)
}

func printPlan(out io.Writer, plan *service.Plan) {
	tbl := newTable("FIELD", "VALUE")
	tbl.AddRow("window", fmt.Sprintf("%s .. %s",
		timeutil.DateKey(plan.WindowStart), timeutil.DateKey(timeutil.AddDays(plan.WindowEnd, -1))))
	tbl.AddRow("current", weekdays(plan.Current))
	tbl.AddRow("selected", weekdays(plan.Selected))
	tbl.AddRow("add", dates(plan.ToAdd))
	tbl.AddRow("remove", dates(plan.ToRemove))
	tbl.AddRow("skipped", dates(plan.Skipped))
	tbl.AddRow("changes", plan.HasChanges)
	printTable(out, tbl)
}

func weekdays(days []time.Weekday) string {
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()[:3]
	}
	return strings.Join(names, ",")
}

func dates(ds []time.Time) string {
	keys := make([]string, len(ds))
	for i, d := range ds {
		keys[i] = timeutil.DateKey(d)
	}
	return strings.Join(keys, ",")
}
