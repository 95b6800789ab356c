package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"jotline/internal/model"
	"jotline/internal/mutate"
	"jotline/internal/outline"
	"jotline/internal/store"
	"jotline/internal/syncq"
)

type FolderLookup = mutate.FolderLookup

// LocalStore is the durable local copy of nodes and folders. store.SQLite
// implements it.
type LocalStore interface {
	UpsertNodes(ctx context.Context, nodes ...*model.Node) error
	DeleteNodes(ctx context.Context, ids ...string) error
	PutFolder(ctx context.Context, f model.Folder) error
	DeleteFolder(ctx context.Context, id string) error
}

var ErrFolderInUse = errors.New("folder is referenced by nodes")

// Core ties the in-memory node store, the edit layer and the sync queue
// together. Edits apply locally first and are queued for remote handlers.
type Core struct {
	Nodes   *store.Nodes
	Queue   *syncq.Queue
	Folders FolderLookup
	Local   LocalStore // optional
	View    *store.ViewState
	Clock   func() time.Time
	Logger  *slog.Logger
}

func (c *Core) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

func (c *Core) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Today is the local calendar date of the injected clock.
func (c *Core) Today() model.Date { return model.DateOf(c.now()) }

func (c *Core) collapsed() map[string]bool {
	if c.View == nil {
		return nil
	}
	return c.View.Collapsed
}

// ApplyEdit is the only mutation entrypoint for nodes. The returned delta is
// valid even when persisting or queueing it fails afterwards.
func (c *Core) ApplyEdit(ctx context.Context, op mutate.Op) (mutate.Delta, error) {
	env := mutate.Env{
		Nodes:     c.Nodes,
		Folders:   c.Folders,
		Now:       c.now(),
		Collapsed: c.collapsed(),
	}
	d, err := mutate.Apply(env, op)
	if err != nil {
		return mutate.Delta{}, err
	}
	if d.Empty() {
		return d, nil
	}
	if err := c.enqueueDelta(d); err != nil {
		return d, err
	}
	if err := c.persistDelta(ctx, d); err != nil {
		return d, err
	}
	c.logger().Debug("edit applied",
		slog.String("op", mutate.Name(op)),
		slog.Int("created", len(d.Created)),
		slog.Int("updated", len(d.Updated)),
		slog.Int("deleted", len(d.Deleted)),
	)
	return d, nil
}

func (c *Core) enqueueDelta(d mutate.Delta) error {
	if c.Queue == nil {
		return nil
	}
	for _, n := range d.Created {
		if err := c.Queue.Enqueue(model.OpCreate, model.EntityNode, n.ID, mutate.NodePayload(n)); err != nil {
			return fmt.Errorf("enqueue create %s: %w", n.ID, err)
		}
	}
	for _, u := range d.Updated {
		if err := c.Queue.Enqueue(model.OpUpdate, model.EntityNode, u.ID, u.Fields); err != nil {
			return fmt.Errorf("enqueue update %s: %w", u.ID, err)
		}
	}
	for _, id := range d.Deleted {
		if err := c.Queue.Enqueue(model.OpDelete, model.EntityNode, id, nil); err != nil {
			return fmt.Errorf("enqueue delete %s: %w", id, err)
		}
	}
	return nil
}

func (c *Core) persistDelta(ctx context.Context, d mutate.Delta) error {
	if c.Local == nil {
		return nil
	}
	changed := append([]*model.Node(nil), d.Created...)
	for _, u := range d.Updated {
		if n, ok := c.Nodes.Get(u.ID); ok {
			changed = append(changed, n)
		}
	}
	if len(changed) > 0 {
		if err := c.Local.UpsertNodes(ctx, changed...); err != nil {
			return fmt.Errorf("persist nodes: %w", err)
		}
	}
	if len(d.Deleted) > 0 {
		if err := c.Local.DeleteNodes(ctx, d.Deleted...); err != nil {
			return fmt.Errorf("persist deletes: %w", err)
		}
	}
	return nil
}

// PutFolder stores f locally and queues it. A folder without an id is new.
func (c *Core) PutFolder(ctx context.Context, f model.Folder) (model.Folder, error) {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return model.Folder{}, errors.New("missing folder name")
	}
	kind := model.OpUpdate
	if f.ID == "" {
		f.ID = store.NewID("fld")
		kind = model.OpCreate
	}
	if f.Slug == "" {
		f.Slug = store.Slugify(f.Name)
	}
	if c.Local != nil {
		if err := c.Local.PutFolder(ctx, f); err != nil {
			return model.Folder{}, err
		}
	}
	if c.Queue != nil {
		if err := c.Queue.Enqueue(kind, model.EntityFolder, f.ID, folderPayload(f)); err != nil {
			return f, err
		}
	}
	return f, nil
}

// DeleteFolder refuses folders that anchors or linked children still use.
func (c *Core) DeleteFolder(ctx context.Context, id string) error {
	for _, n := range c.Nodes.All() {
		if n.FolderID == id {
			return fmt.Errorf("%w: %s (node %s)", ErrFolderInUse, id, n.ID)
		}
	}
	if c.Local != nil {
		if err := c.Local.DeleteFolder(ctx, id); err != nil {
			return err
		}
	}
	if c.Queue != nil {
		return c.Queue.Enqueue(model.OpDelete, model.EntityFolder, id, nil)
	}
	return nil
}

func folderPayload(f model.Folder) map[string]any {
	p := map[string]any{
		"id":    f.ID,
		"name":  f.Name,
		"slug":  f.Slug,
		"order": f.Order,
	}
	if f.ParentFolderID != "" {
		p["parentFolderId"] = f.ParentFolderID
	}
	return p
}

// Day renders one date's outline with projected and overdue rows.
func (c *Core) Day(d model.Date) *outline.Tree {
	return outline.Day(c.Nodes, d, c.Today(), c.collapsed())
}

// Folder renders a folder container plus the anchors that mirror into it.
func (c *Core) Folder(id string) *outline.Tree {
	return outline.Folder(c.Nodes, id, c.collapsed())
}

// SetCollapsed toggles view-only collapse state. Nothing is queued.
func (c *Core) SetCollapsed(id string, collapsed bool) error {
	if _, ok := c.Nodes.Get(id); !ok {
		return mutate.NotFoundError{Kind: "node", ID: id}
	}
	if c.View == nil {
		c.View = &store.ViewState{}
	}
	c.View.SetCollapsed(id, collapsed)
	return nil
}

func (c *Core) Enqueue(kind model.OpKind, entity model.EntityKind, id string, payload map[string]any) error {
	if c.Queue == nil {
		return syncq.ErrClosed
	}
	return c.Queue.Enqueue(kind, entity, id, payload)
}

func (c *Core) FlushNow(ctx context.Context) (syncq.Report, error) {
	if c.Queue == nil {
		return syncq.Report{}, syncq.ErrClosed
	}
	return c.Queue.FlushNow(ctx)
}

func (c *Core) PendingCount() int {
	if c.Queue == nil {
		return 0
	}
	return c.Queue.PendingCount()
}

func (c *Core) RegisterHandler(entity model.EntityKind, kind model.OpKind, h syncq.Handler) {
	if c.Queue != nil {
		c.Queue.RegisterHandler(entity, kind, h)
	}
}
