package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"jotline/internal/model"
)

func openTestSQLite(t *testing.T) (*SQLite, Store) {
	t.Helper()
	s := Store{Dir: t.TempDir()}
	db, err := s.OpenSQLite(context.Background())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, s
}

func TestSQLite_NodesRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, _ := openTestSQLite(t)

	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	a := &model.Node{ID: "a", Content: "[ ] one", Container: day("2026-10-18"), Order: 0,
		Task: &model.Task{DueDate: "2026-10-20", Priority: model.PriorityHigh}, CreatedAt: now, UpdatedAt: now}
	b := &model.Node{ID: "b", Content: "two", Container: model.FolderContainer("fld-1"), Order: 2,
		ExplicitParentID: "a", FolderID: "fld-1", Starred: true, CreatedAt: now, UpdatedAt: now}
	if err := db.UpsertNodes(ctx, a, b); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	nodes, err := db.LoadNodes(ctx, nil, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	gotA, ok := nodes.Get("a")
	if !ok {
		t.Fatalf("missing a")
	}
	if diff := cmp.Diff(a, gotA); diff != "" {
		t.Fatalf("node a mismatch (-want +got):\n%s", diff)
	}
	gotB, _ := nodes.Get("b")
	if diff := cmp.Diff(b, gotB); diff != "" {
		t.Fatalf("node b mismatch (-want +got):\n%s", diff)
	}

	if err := db.DeleteNodes(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, err := db.CountNodes(ctx); err != nil || n != 1 {
		t.Fatalf("count = %d, %v", n, err)
	}
}

func TestSQLite_DueAndOverdueQueries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, _ := openTestSQLite(t)

	if err := db.UpsertNodes(ctx,
		&model.Node{ID: "late", Container: day("2026-10-01"), Task: &model.Task{DueDate: "2026-10-03"}},
		&model.Node{ID: "done", Container: day("2026-10-01"), Order: 2, Task: &model.Task{DueDate: "2026-10-03", Completed: true}},
		&model.Node{ID: "soon", Container: day("2026-10-18"), Task: &model.Task{DueDate: "2026-10-20"}},
		&model.Node{ID: "note", Container: day("2026-10-18"), Order: 2},
	); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	due, err := db.DueBetween(ctx, "2026-10-03", "2026-10-20")
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 3 || due[0].ID != "late" || due[2].ID != "soon" {
		t.Fatalf("unexpected due result: %+v", due)
	}
	overdue, err := db.Overdue(ctx, "2026-10-18")
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != "late" {
		t.Fatalf("unexpected overdue result: %+v", overdue)
	}
}

func TestSQLite_FoldersAndKV(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, _ := openTestSQLite(t)

	if _, ok := db.Folder("fld-1"); ok {
		t.Fatalf("expected missing folder")
	}
	f := model.Folder{ID: "fld-1", Name: "Work", Slug: "work"}
	if err := db.PutFolder(ctx, f); err != nil {
		t.Fatalf("put folder: %v", err)
	}
	got, ok := db.Folder("fld-1")
	if !ok || got != f {
		t.Fatalf("folder lookup = %+v, %v", got, ok)
	}
	if err := db.DeleteFolder(ctx, "fld-1"); err != nil {
		t.Fatalf("delete folder: %v", err)
	}
	if err := db.DeleteFolder(ctx, "fld-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if v, err := db.Load("pending_operations"); err != nil || v != nil {
		t.Fatalf("missing key should load nil, got %q %v", v, err)
	}
	if err := db.Save("pending_operations", []byte(`[]`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if v, err := db.Load("pending_operations"); err != nil || string(v) != "[]" {
		t.Fatalf("load = %q %v", v, err)
	}
}

func TestViewState_BestEffort(t *testing.T) {
	t.Parallel()
	s := Store{Dir: t.TempDir()}

	st, err := s.LoadViewState()
	if err != nil || st.Version != 1 || len(st.Collapsed) != 0 {
		t.Fatalf("default state = %+v, %v", st, err)
	}
	st.SetCollapsed("a", true)
	st.SetCollapsed("b", true)
	st.SetCollapsed("b", false)
	if err := s.SaveViewState(st); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadViewState()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"a"}, got.CollapsedIDs()); diff != "" {
		t.Fatalf("collapsed mismatch:\n%s", diff)
	}
}
