package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jotline/internal/config"
	"jotline/internal/format"
	"jotline/internal/logging"
	"jotline/internal/model"
	"jotline/internal/store"

	"github.com/spf13/cobra"
)

type App struct {
	Dir        string
	ConfigPath string
	PrettyJSON bool
	Format     string
	Today      string
	Width      int

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	sess      *session
	mutated   bool
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "jotline",
		Short:        "Local-first daily outliner with optimistic sync",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Today's outline (same as: jotline day)
  jotline --format text

  # Add a task and push it through the sync queue
  jotline nodes add "[ ] Ship feature @tomorrow !!!"
  jotline sync flush

  # Link a line under a folder-backed anchor
  jotline nodes indent nd-0192...
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => today's outline.
			if len(args) == 0 {
				return runDay(cmd, app, "")
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setup(cmd)
	}

	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		defer app.teardown(cmd)
		if app.sess == nil || !app.mutated || !app.cfg.Sync.AutoFlush {
			return nil
		}
		// Avoid double flush for explicit sync commands.
		if strings.HasPrefix(strings.TrimSpace(cmd.CommandPath()), "jotline sync") {
			return nil
		}
		autoFlushBestEffort(cmd, app)
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("JOTLINE_DIR", ""), "Path to data dir (default: nearest .jotline/ upwards, else ./.jotline)")
	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("JOTLINE_CONFIG", ""), "Config file (default: <dir>/config.yaml)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("JOTLINE_FORMAT", "json"), "Output format (json|text)")
	cmd.PersistentFlags().StringVar(&app.Today, "today", envOr("JOTLINE_TODAY", ""), "Override today's date (YYYY-MM-DD)")
	cmd.PersistentFlags().IntVar(&app.Width, "width", 0, "Truncate text output to this many cells (0: no limit)")

	cmd.AddCommand(newInitCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newDayCmd(app))
	cmd.AddCommand(newFoldersCmd(app))
	cmd.AddCommand(newNodesCmd(app))
	cmd.AddCommand(newSelectCmd(app))
	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newSyncCmd(app))
	cmd.AddCommand(newDoctorCmd(app))

	closeOnError(cmd, app)
	return cmd
}

// closeOnError releases the session when a command fails; cobra skips
// PersistentPostRunE in that case.
func closeOnError(c *cobra.Command, app *App) {
	if run := c.RunE; run != nil {
		c.RunE = func(cmd *cobra.Command, args []string) error {
			err := run(cmd, args)
			if err != nil {
				app.teardown(cmd)
			}
			return err
		}
	}
	for _, sub := range c.Commands() {
		closeOnError(sub, app)
	}
}

func (app *App) setup(cmd *cobra.Command) error {
	explicitConfig := app.ConfigPath != ""
	if app.Dir == "" && explicitConfig {
		if cfg, err := config.Load(app.ConfigPath); err == nil && cfg.DataDir != "" {
			app.Dir = cfg.DataDir
		}
	}
	if app.Dir == "" {
		d, err := store.DefaultDir()
		if err != nil {
			return writeErr(cmd, err)
		}
		app.Dir = d
	}
	if !explicitConfig {
		app.ConfigPath = filepath.Join(app.Dir, config.FileName)
	}
	cfg, err := config.Load(app.ConfigPath)
	if err != nil {
		return writeErr(cmd, err)
	}
	app.cfg = cfg

	logger, closer, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return writeErr(cmd, err)
	}
	app.logger, app.logCloser = logger, closer

	if app.Today != "" {
		if _, err := model.ParseDate(app.Today); err != nil {
			return writeErr(cmd, fmt.Errorf("--today: %w", err))
		}
	}
	return nil
}

func (app *App) teardown(cmd *cobra.Command) {
	if app.sess != nil {
		if err := app.sess.close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
		app.sess = nil
	}
	if app.logCloser != nil {
		_ = app.logCloser.Close()
		app.logCloser = nil
	}
}

// now is the wall clock, or noon UTC of --today when set.
func (app *App) now() time.Time {
	if app.Today != "" {
		if d, err := model.ParseDate(app.Today); err == nil {
			return d.Time().Add(12 * time.Hour)
		}
	}
	return time.Now()
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON, app.Width)
}

// writeData wraps data in the {"data": ...} envelope for JSON output; text
// output renders data directly.
func writeData(cmd *cobra.Command, app *App, data any, hints ...string) error {
	if app.Format == "text" {
		return writeOut(cmd, app, data)
	}
	out := map[string]any{"data": data}
	if len(hints) > 0 {
		out["_hints"] = hints
	}
	return writeOut(cmd, app, out)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
