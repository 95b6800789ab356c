package store

import (
	"errors"
	"testing"
	"time"

	"jotline/internal/model"
)

func day(d string) model.ContainerKey { return model.DateContainer(model.Date(d)) }

func TestNodes_PutValidatesAndGroups(t *testing.T) {
	t.Parallel()

	s := NewNodes(nil, 4)
	if err := s.Put(&model.Node{ID: "bad", Container: day("2026-10-18"), IndentLevel: 5}); err == nil {
		t.Fatalf("expected indent range error")
	}
	var ire model.IndentRangeError
	if err := s.Put(&model.Node{ID: "bad", Container: day("2026-10-18"), IndentLevel: -1}); !errors.As(err, &ire) {
		t.Fatalf("expected IndentRangeError, got %v", err)
	}
	if err := s.Put(&model.Node{ID: "x", Container: day("2026-10-18"), ExplicitParentID: "a"}); !errors.Is(err, model.ErrLinkWithoutFolder) {
		t.Fatalf("expected ErrLinkWithoutFolder, got %v", err)
	}

	must := func(n *model.Node) {
		t.Helper()
		if err := s.Put(n); err != nil {
			t.Fatalf("put %s: %v", n.ID, err)
		}
	}
	must(&model.Node{ID: "a", Container: day("2026-10-18"), Order: 2, FolderID: "fld-1"})
	must(&model.Node{ID: "b", Container: day("2026-10-18"), Order: 4, IndentLevel: 1})
	must(&model.Node{ID: "c", Container: day("2026-10-18"), Order: 0, ExplicitParentID: "a", FolderID: "fld-1"})
	must(&model.Node{ID: "d", Container: day("2026-10-19"), Order: 0})

	root := s.Root(day("2026-10-18"))
	if len(root) != 2 || root[0].ID != "a" || root[1].ID != "b" {
		t.Fatalf("unexpected root group: %+v", root)
	}
	if kids := s.ExplicitChildren("a"); len(kids) != 1 || kids[0].ID != "c" {
		t.Fatalf("unexpected explicit children: %+v", kids)
	}

	// Moving c out of the explicit group is visible after Put.
	c, _ := s.Get("c")
	c.ExplicitParentID, c.FolderID, c.Order = "", "", 6
	must(c)
	if root := s.Root(day("2026-10-18")); len(root) != 3 || root[2].ID != "c" {
		t.Fatalf("expected c appended to root, got %+v", root)
	}
	if !s.Delete("d") || s.Delete("d") {
		t.Fatalf("delete should succeed once")
	}
}

func TestNodes_HealRepairsDuplicatesAndIndent(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	s := NewNodes(nil, 3,
		&model.Node{ID: "a", Container: day("2026-10-18"), Order: 1, CreatedAt: t0},
		&model.Node{ID: "b", Container: day("2026-10-18"), Order: 1, CreatedAt: t0.Add(time.Minute)},
		&model.Node{ID: "c", Container: day("2026-10-18"), Order: 5, IndentLevel: 9},
	)
	changed := s.Heal(RootGroup(day("2026-10-18")))
	if len(changed) != 3 {
		t.Fatalf("expected all nodes changed, got %d", len(changed))
	}
	root := s.Root(day("2026-10-18"))
	want := []string{"a", "b", "c"}
	for i, n := range root {
		if n.ID != want[i] || n.Order != int64(i)*OrderStep {
			t.Fatalf("after heal: %s=%d at %d", n.ID, n.Order, i)
		}
	}
	if c, _ := s.Get("c"); c.IndentLevel != 3 {
		t.Fatalf("expected clamped indent 3, got %d", c.IndentLevel)
	}
	if again := s.Heal(RootGroup(day("2026-10-18"))); len(again) != 0 {
		t.Fatalf("expected healed group to be stable, got %d changes", len(again))
	}
}

func TestNodes_ProjectionQueriesShareRecords(t *testing.T) {
	t.Parallel()

	task := &model.Node{
		ID:        "t1",
		Content:   "[ ] file taxes",
		Container: day("2026-10-10"),
		Task:      &model.Task{DueDate: "2026-10-12"},
	}
	done := &model.Node{
		ID:        "t2",
		Content:   "[x] call",
		Container: day("2026-10-10"),
		Order:     2,
		Task:      &model.Task{Completed: true, DueDate: "2026-10-12"},
	}
	s := NewNodes(nil, 0, task, done, &model.Node{ID: "n1", Container: day("2026-10-12")})

	if s.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", s.Len())
	}
	native := s.Native("2026-10-10")
	if len(native) != 2 || native[0] != task {
		t.Fatalf("native query: %+v", native)
	}
	due := s.DueBetween("2026-10-12", "2026-10-12")
	if len(due) != 2 || due[0] != task {
		t.Fatalf("due query: %+v", due)
	}
	overdue := s.Overdue("2026-10-18")
	if len(overdue) != 1 || overdue[0] != task {
		t.Fatalf("overdue query: %+v", overdue)
	}
	if s.Len() != 3 {
		t.Fatalf("queries must not create records; got %d", s.Len())
	}
	if got := s.Overdue("2026-10-12"); len(got) != 0 {
		t.Fatalf("due today is not overdue, got %+v", got)
	}
}
