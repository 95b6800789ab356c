package cli

import (
	"jotline/internal/store"
	"jotline/internal/syncq"

	"github.com/spf13/cobra"
)

func newDoctorCmd(app *App) *cobra.Command {
	var fail bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check stored lines, folders and the sync queue for broken invariants",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Open the database directly: a session heals on load and would
			// hide what is on disk.
			db, err := store.Store{Dir: app.Dir}.OpenSQLite(ctxOf(cmd))
			if err != nil {
				return writeErr(cmd, err)
			}
			defer db.Close()

			report, err := db.Doctor(ctxOf(cmd), app.cfg.Outline.MaxIndent, syncq.DefaultKey)
			if err != nil {
				return writeErr(cmd, err)
			}

			var hints []string
			if len(report.Issues) > 0 {
				hints = append(hints, "jotline day  # loading repairs order and indent warnings")
			}
			if err := writeData(cmd, app, report, hints...); err != nil {
				return err
			}
			if fail && report.HasErrors() {
				return store.ErrDoctorIssuesFound
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fail, "fail", false, "Exit with non-zero status if errors are found")
	return cmd
}
