package cli

import (
	"jotline/internal/format"

	"github.com/spf13/cobra"
)

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Task queries across all days and folders",
	}
	cmd.AddCommand(newTasksDueCmd(app))
	cmd.AddCommand(newTasksOverdueCmd(app))
	return cmd
}

func newTasksDueCmd(app *App) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List tasks due in a date range (inclusive)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := app.now()
			fromDate, err := parseDateArg(from, now)
			if err != nil {
				return writeErr(cmd, errUsage("--from: %v", err))
			}
			toDate := fromDate.AddDays(6)
			if to != "" {
				if toDate, err = parseDateArg(to, now); err != nil {
					return writeErr(cmd, errUsage("--to: %v", err))
				}
			}
			if toDate.Before(fromDate) {
				return writeErr(cmd, errUsage("--to is before --from"))
			}
			s, err := openSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			nodes, err := s.db.DueBetween(ctxOf(cmd), fromDate, toDate)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, format.Tasks{
				Title: "due " + fromDate.String() + " .. " + toDate.String(),
				Nodes: nodes,
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First day (default: today)")
	cmd.Flags().StringVar(&to, "to", "", "Last day (default: six days after --from)")
	return cmd
}

func newTasksOverdueCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "List open tasks due before today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			today := s.core.Today()
			nodes, err := s.db.Overdue(ctxOf(cmd), today)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, format.Tasks{Title: "overdue as of " + today.String(), Nodes: nodes})
		},
	}
}
