package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"jotline/internal/model"
	"jotline/internal/mutate"
	"jotline/internal/store"
	"jotline/internal/syncq"
)

var today = model.DateContainer("2026-10-18")

func newCore(t *testing.T) (*Core, *store.SQLite) {
	t.Helper()
	ctx := context.Background()
	db, err := store.OpenSQLitePath(ctx, filepath.Join(t.TempDir(), "jotline.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLitePath: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	clock := func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }
	q, err := syncq.New(syncq.Options{Persistence: db, Clock: clock})
	if err != nil {
		t.Fatalf("syncq.New: %v", err)
	}
	return &Core{
		Nodes:   store.NewNodes(nil, 0),
		Queue:   q,
		Folders: db,
		Local:   db,
		Clock:   clock,
	}, db
}

func TestApplyEdit_QueuesAndPersists(t *testing.T) {
	ctx := context.Background()
	c, db := newCore(t)

	d, err := c.ApplyEdit(ctx, mutate.Create{ID: "n1", Container: today, Content: "hello"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(d.Created) != 1 {
		t.Fatalf("delta = %+v", d)
	}
	if _, err := c.ApplyEdit(ctx, mutate.SetContent{ID: "n1", Content: "hello world"}); err != nil {
		t.Fatalf("set content: %v", err)
	}

	ops := c.Queue.Pending()
	if len(ops) != 1 || ops[0].Kind != model.OpCreate {
		t.Fatalf("expected one merged create, got %+v", ops)
	}
	if got := ops[0].Payload["content"]; got != "hello world" {
		t.Fatalf("payload content = %v", got)
	}
	if n, err := db.CountNodes(ctx); err != nil || n != 1 {
		t.Fatalf("CountNodes = %d, %v", n, err)
	}

	if _, err := c.ApplyEdit(ctx, mutate.Delete{IDs: []string{"n1"}}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if c.PendingCount() != 0 {
		t.Fatalf("create+delete should cancel, pending = %d", c.PendingCount())
	}
	if n, _ := db.CountNodes(ctx); n != 0 {
		t.Fatalf("CountNodes after delete = %d", n)
	}
}

func TestApplyEdit_FailedEditQueuesNothing(t *testing.T) {
	c, _ := newCore(t)
	_, err := c.ApplyEdit(context.Background(), mutate.Indent{ID: "missing"})
	var nf mutate.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if c.PendingCount() != 0 {
		t.Fatalf("pending = %d", c.PendingCount())
	}
}

func TestApplyEdit_PromotionUsesFolderLookup(t *testing.T) {
	ctx := context.Background()
	c, db := newCore(t)

	f, err := c.PutFolder(ctx, model.Folder{Name: "Side Projects"})
	if err != nil {
		t.Fatalf("PutFolder: %v", err)
	}
	if f.Slug != "side-projects" {
		t.Fatalf("slug = %q", f.Slug)
	}

	anchor := &model.Node{ID: "a", Content: "garden", Container: today, FolderID: f.ID}
	line := &model.Node{ID: "b", Content: "seeds", Container: today, Order: 2}
	for _, n := range []*model.Node{anchor, line} {
		if err := c.Nodes.Put(n); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	if _, err := c.ApplyEdit(ctx, mutate.Indent{ID: "b"}); err != nil {
		t.Fatalf("indent: %v", err)
	}
	var update *model.PendingOperation
	for _, op := range c.Queue.Pending() {
		if op.EntityID == "b" {
			op := op
			update = &op
		}
	}
	if update == nil || update.Kind != model.OpUpdate {
		t.Fatalf("expected update for b, got %+v", c.Queue.Pending())
	}
	if update.Payload["explicitParentId"] != "a" || update.Payload["folderId"] != f.ID {
		t.Fatalf("payload = %+v", update.Payload)
	}

	if err := c.DeleteFolder(ctx, f.ID); !errors.Is(err, ErrFolderInUse) {
		t.Fatalf("DeleteFolder = %v, want ErrFolderInUse", err)
	}
	loaded, err := db.LoadNodes(ctx, nil, 0)
	if err != nil {
		t.Fatalf("LoadNodes: %v", err)
	}
	b, ok := loaded.Get("b")
	if !ok || b.ExplicitParentID != "a" {
		t.Fatalf("persisted b = %+v", b)
	}
}

func TestFlushNow_RunsRegisteredHandlers(t *testing.T) {
	ctx := context.Background()
	c, _ := newCore(t)
	var got []string
	c.RegisterHandler(model.EntityNode, model.OpCreate, func(_ context.Context, op model.PendingOperation) error {
		got = append(got, op.EntityID)
		return nil
	})
	for _, id := range []string{"n1", "n2"} {
		if _, err := c.ApplyEdit(ctx, mutate.Create{ID: id, Container: today, Content: id}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	rep, err := c.FlushNow(ctx)
	if err != nil {
		t.Fatalf("FlushNow: %v", err)
	}
	if diff := cmp.Diff([]string{"n1", "n2"}, got); diff != "" {
		t.Fatalf("handled (-want +got):\n%s", diff)
	}
	if rep.Succeeded != 2 || c.PendingCount() != 0 {
		t.Fatalf("report %+v pending %d", rep, c.PendingCount())
	}
}

func TestDay_UsesViewState(t *testing.T) {
	c, _ := newCore(t)
	ctx := context.Background()
	for _, op := range []mutate.Op{
		mutate.Create{ID: "a", Container: today, Content: "parent"},
		mutate.Create{ID: "b", Container: today, Content: "child", IndentLevel: 1},
	} {
		if _, err := c.ApplyEdit(ctx, op); err != nil {
			t.Fatalf("%s: %v", mutate.Name(op), err)
		}
	}
	if err := c.SetCollapsed("a", true); err != nil {
		t.Fatalf("SetCollapsed: %v", err)
	}
	if diff := cmp.Diff([]string{"a"}, c.Day(c.Today()).VisibleIDs()); diff != "" {
		t.Fatalf("visible (-want +got):\n%s", diff)
	}
	if err := c.SetCollapsed("zzz", true); err == nil {
		t.Fatalf("expected error collapsing a missing node")
	}
}
