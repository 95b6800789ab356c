package cli

import (
	"errors"
	"os"
	"path/filepath"

	"jotline/internal/config"
	"jotline/internal/store"

	"github.com/spf13/cobra"
)

func newInitCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the data dir (sqlite state and a default config)",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := store.Store{Dir: app.Dir}
			if err := st.Ensure(); err != nil {
				return writeErr(cmd, err)
			}
			db, err := st.OpenSQLite(ctxOf(cmd))
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := db.Close(); err != nil {
				return writeErr(cmd, err)
			}

			wroteConfig := true
			if err := config.WriteDefault(app.ConfigPath, false); err != nil {
				if !errors.Is(err, os.ErrExist) {
					return writeErr(cmd, err)
				}
				wroteConfig = false
			}
			return writeData(cmd, app, map[string]any{
				"dir":         app.Dir,
				"sqlitePath":  st.SQLitePath(),
				"configPath":  filepath.Clean(app.ConfigPath),
				"wroteConfig": wroteConfig,
			}, "jotline nodes add \"first line\"", "jotline --format text")
		},
	}
	return cmd
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeData(cmd, app, map[string]any{
				"path":   app.ConfigPath,
				"config": app.cfg,
			})
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefault(app.ConfigPath, force); err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, map[string]any{"path": app.ConfigPath})
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	cmd.AddCommand(initCmd)
	return cmd
}
