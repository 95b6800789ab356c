package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"jotline/internal/config"
	"jotline/internal/core"
	"jotline/internal/model"
	"jotline/internal/remote"
	"jotline/internal/store"
	"jotline/internal/syncq"

	"github.com/spf13/cobra"
)

// session is one command's view of the data dir: the sqlite state, the node
// collection loaded from it and the sync queue persisted in its kv table.
type session struct {
	st     store.Store
	db     *store.SQLite
	core   *core.Core
	remote io.Closer
	stderr io.Writer
}

func openSession(cmd *cobra.Command, app *App) (*session, error) {
	if app.sess != nil {
		return app.sess, nil
	}
	ctx := ctxOf(cmd)
	st := store.Store{Dir: app.Dir}
	db, err := st.OpenSQLite(ctx)
	if err != nil {
		return nil, err
	}
	nodes, err := db.LoadNodes(ctx, app.logger, app.cfg.Outline.MaxIndent)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	view, err := st.LoadViewState()
	if err != nil {
		app.logger.Warn("view state ignored", slog.Any("err", err))
		view = &store.ViewState{}
	}
	view.Forget(func(id string) bool {
		_, ok := nodes.Get(id)
		return ok
	})

	s := &session{st: st, db: db, stderr: cmd.ErrOrStderr()}
	q, err := syncq.New(syncq.Options{
		Persistence: db,
		MaxRetries:  app.cfg.Sync.MaxRetries,
		Clock:       app.now,
		Logger:      app.logger,
		OnTerminal:  s.onTerminal,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.core = &core.Core{
		Nodes:   nodes,
		Queue:   q,
		Folders: db,
		Local:   db,
		View:    view,
		Clock:   app.now,
		Logger:  app.logger,
	}
	if err := s.heal(ctx); err != nil {
		_ = s.close()
		return nil, err
	}
	app.sess = s
	return s, nil
}

// heal repairs ordering and indent violations found on load and queues the
// repaired fields like any other update.
func (s *session) heal(ctx context.Context) error {
	healed := s.core.Nodes.HealAll()
	if len(healed) == 0 {
		return nil
	}
	if err := s.db.UpsertNodes(ctx, healed...); err != nil {
		return err
	}
	for _, n := range healed {
		err := s.core.Enqueue(model.OpUpdate, model.EntityNode, n.ID, map[string]any{
			"order":       n.Order,
			"indentLevel": n.IndentLevel,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *session) onTerminal(te *syncq.TerminalError) {
	fmt.Fprintf(s.stderr, "warning: sync gave up on %s %s after %d attempts; the change was not saved remotely: %v\n",
		te.Op.HandlerKey(), te.Op.EntityID, te.Op.RetryCount, te.Err)
}

// attachRemote registers the configured remote's handlers. With no remote
// configured, flushes leave operations queued.
func (s *session) attachRemote(ctx context.Context, cfg config.RemoteConfig) error {
	if s.remote != nil {
		return nil
	}
	switch cfg.Kind {
	case "", config.RemoteNone:
		return nil
	case config.RemoteRedis:
		r, err := remote.NewRedis(cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return err
		}
		remote.Register(s.core, r)
		s.remote = r
	case config.RemotePostgres:
		p, err := remote.OpenPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		remote.Register(s.core, p)
		s.remote = p
	default:
		return fmt.Errorf("unknown remote kind %q", cfg.Kind)
	}
	return nil
}

func (s *session) saveView() error {
	if s.core.View == nil {
		return nil
	}
	return s.st.SaveViewState(s.core.View)
}

func (s *session) close() error {
	var errs []error
	if err := s.core.Queue.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.remote != nil {
		if err := s.remote.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
