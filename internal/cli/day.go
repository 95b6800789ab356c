package cli

import (
	"jotline/internal/format"

	"github.com/spf13/cobra"
)

func newDayCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "day [date]",
		Short: "Show one day's outline (default: today)",
		Long: `Show one day's outline.

Rows include lines linked from other days under this day's anchors (projected)
and, on today only, unfinished tasks due earlier (overdue).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := ""
			if len(args) == 1 {
				date = args[0]
			}
			return runDay(cmd, app, date)
		},
	}
	return cmd
}

func runDay(cmd *cobra.Command, app *App, dateArg string) error {
	d, err := parseDateArg(dateArg, app.now())
	if err != nil {
		return writeErr(cmd, errUsage("%v", err))
	}
	s, err := openSession(cmd, app)
	if err != nil {
		return writeErr(cmd, err)
	}
	tree := s.core.Day(d)
	return writeData(cmd, app, format.NewOutline(d.String(), tree.Visible()))
}
