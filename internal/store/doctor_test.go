package store

import (
	"context"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"jotline/internal/model"
)

func TestDoctor_CleanStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, _ := openTestSQLite(t)

	if err := db.PutFolder(ctx, model.Folder{ID: "fld-1", Name: "Work", Slug: "work"}); err != nil {
		t.Fatalf("PutFolder: %v", err)
	}
	if err := db.UpsertNodes(ctx,
		&model.Node{ID: "a", Content: "anchor", Container: day("2026-10-18"), FolderID: "fld-1"},
		&model.Node{ID: "b", Content: "linked", Container: day("2026-10-18"), ExplicitParentID: "a", FolderID: "fld-1"},
	); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := db.Save("pending_ops", []byte(`[]`)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rep, err := db.Doctor(ctx, 0, "pending_ops")
	if err != nil {
		t.Fatalf("Doctor: %v", err)
	}
	if len(rep.Issues) != 0 || rep.Nodes != 2 || rep.Folders != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestDoctor_ReportsBrokenRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, _ := openTestSQLite(t)

	d := day("2026-10-18")
	if err := db.UpsertNodes(ctx,
		&model.Node{ID: "dup1", Content: "x", Container: d, Order: 4},
		&model.Node{ID: "dup2", Content: "y", Container: d, Order: 4},
		&model.Node{ID: "orphan", Content: "z", Container: d, ExplicitParentID: "gone", FolderID: "fld-x"},
		&model.Node{ID: "c1", Content: "p", Container: d, ExplicitParentID: "c2", FolderID: "fld-1"},
		&model.Node{ID: "c2", Content: "q", Container: d, ExplicitParentID: "c1", FolderID: "fld-1"},
		&model.Node{ID: "deep", Content: "r", Container: d, IndentLevel: 12, Order: 8},
	); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := db.Save("pending_ops", []byte(`{not json`)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rep, err := db.Doctor(ctx, 8, "pending_ops")
	if err != nil {
		t.Fatalf("Doctor: %v", err)
	}
	if !rep.HasErrors() {
		t.Fatalf("expected errors: %+v", rep)
	}

	var got []string
	for _, it := range rep.Issues {
		got = append(got, string(it.Level)+" "+it.Code+" "+it.EntityID)
	}
	sort.Strings(got)
	want := []string{
		"error dangling_link orphan",
		"error link_cycle c1",
		"error link_cycle c2",
		"error pending_queue_corrupt ",
		"warn duplicate_order dup1",
		"warn node_invalid deep",
		"warn unknown_folder c1",
		"warn unknown_folder c2",
		"warn unknown_folder orphan",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("issues (-want +got):\n%s", diff)
	}
}
