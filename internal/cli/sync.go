package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jotline/internal/config"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newSyncCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pending-operation queue and remote sync",
	}
	cmd.AddCommand(newSyncStatusCmd(app))
	cmd.AddCommand(newSyncFlushCmd(app))
	cmd.AddCommand(newSyncRunCmd(app))
	return cmd
}

type pendingView struct {
	ID         string `json:"id"`
	Op         string `json:"op"`
	EntityID   string `json:"entityId"`
	RetryCount int    `json:"retryCount"`
	EnqueuedAt string `json:"enqueuedAt"`
	Age        string `json:"age"`
}

func newSyncStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queued operations not yet confirmed by the remote",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			ops := s.core.Queue.Pending()
			out := make([]pendingView, 0, len(ops))
			for _, op := range ops {
				out = append(out, pendingView{
					ID:         op.ID,
					Op:         op.HandlerKey(),
					EntityID:   op.EntityID,
					RetryCount: op.RetryCount,
					EnqueuedAt: op.EnqueuedAt.UTC().Format(time.RFC3339),
					Age:        humanize.RelTime(op.EnqueuedAt, app.now(), "ago", "from now"),
				})
			}
			var hints []string
			if len(out) > 0 {
				if remoteConfigured(app.cfg.Remote) {
					hints = append(hints, "jotline sync flush")
				} else {
					hints = append(hints, "jotline config init  # then set remote.kind")
				}
			}
			return writeData(cmd, app, map[string]any{
				"remote":  remoteKind(app.cfg.Remote),
				"pending": len(out),
				"ops":     out,
			}, hints...)
		},
	}
}

func newSyncFlushCmd(app *App) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Send queued operations to the remote once",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx, cancel := context.WithTimeout(ctxOf(cmd), timeout)
			defer cancel()
			if err := s.attachRemote(ctx, app.cfg.Remote); err != nil {
				return writeErr(cmd, err)
			}
			rep, flushErr := s.core.FlushNow(ctx)
			if err := writeData(cmd, app, map[string]any{
				"remote":    remoteKind(app.cfg.Remote),
				"report":    rep,
				"remaining": s.core.PendingCount(),
			}); err != nil {
				return err
			}
			if flushErr != nil {
				return writeErr(cmd, flushErr)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Give up on in-flight operations after this long")
	return cmd
}

func newSyncRunCmd(app *App) *cobra.Command {
	var interval, duration time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Flush the queue on a timer until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !remoteConfigured(app.cfg.Remote) {
				return writeErr(cmd, errUsage("no remote configured (set remote.kind to redis or postgres)"))
			}
			if interval <= 0 {
				interval = app.cfg.Sync.FlushInterval
			}
			s, err := openSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}

			ctx, stop := signal.NotifyContext(ctxOf(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			if err := s.attachRemote(ctx, app.cfg.Remote); err != nil {
				return writeErr(cmd, err)
			}
			app.logger.Info("sync loop started",
				slog.String("remote", app.cfg.Remote.Kind),
				slog.Duration("interval", interval),
				slog.Int("pending", s.core.PendingCount()),
			)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return s.core.Queue.Run(gctx, interval)
			})
			g.Go(func() error {
				// Periodic backlog report; a flush that keeps failing shows here.
				t := time.NewTicker(time.Minute)
				defer t.Stop()
				for {
					select {
					case <-gctx.Done():
						return nil
					case <-t.C:
						app.logger.Info("sync backlog", slog.Int("pending", s.core.PendingCount()))
					}
				}
			})
			err = g.Wait()
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return writeErr(cmd, err)
			}

			// Last pass with a fresh deadline so a clean shutdown drains what it can.
			final, cancel := context.WithTimeout(context.WithoutCancel(ctxOf(cmd)), 10*time.Second)
			defer cancel()
			rep, flushErr := s.core.FlushNow(final)
			if flushErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: final flush: %v\n", flushErr)
			}
			return writeData(cmd, app, map[string]any{
				"report":    rep,
				"remaining": s.core.PendingCount(),
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Flush interval (default: sync.flushInterval)")
	cmd.Flags().DurationVar(&duration, "for", 0, "Stop after this long (0: until interrupted)")
	return cmd
}

func remoteConfigured(r config.RemoteConfig) bool {
	return r.Kind != "" && r.Kind != config.RemoteNone
}

func remoteKind(r config.RemoteConfig) string {
	if !remoteConfigured(r) {
		return config.RemoteNone
	}
	return r.Kind
}
