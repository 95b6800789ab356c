package mutate

import (
	"strings"
	"time"
	"unicode/utf8"

	"jotline/internal/model"
	"jotline/internal/store"
	"jotline/internal/taskmeta"
)

// applyContent stores raw on n. Task lines are normalized to a canonical
// checkbox prefix plus display text; the consumed date and priority go to n.Task
// and previously parsed values survive edits that don't restate them.
func applyContent(n *model.Node, raw string, now time.Time) {
	res := taskmeta.Parse(raw, now)
	if !res.IsTask {
		n.Content = raw
		n.Task = nil
		return
	}
	t := model.Task{}
	wasCompleted := false
	if n.Task != nil {
		t = *n.Clone().Task
		wasCompleted = n.Task.Completed
	}
	t.Completed = res.Completed
	if res.DueDate != "" {
		t.DueDate = res.DueDate
	}
	if res.Priority != "" {
		t.Priority = res.Priority
	}
	switch {
	case res.Completed && !wasCompleted:
		ts := now
		t.CompletedAt = &ts
	case !res.Completed:
		t.CompletedAt = nil
	}
	n.Task = &t
	n.Content = taskmeta.CheckboxPrefix(res.Completed) + res.DisplayText
}

// body returns the text after a checkbox prefix and the prefix length in runes.
func body(content string) (string, int) {
	b, _, ok := taskmeta.StripCheckbox(content)
	if !ok {
		return content, 0
	}
	return b, utf8.RuneCountInString(content) - utf8.RuneCountInString(b)
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func clampOffset(s string, off int) int {
	if off < 0 {
		return 0
	}
	if n := runeLen(s); off > n {
		return n
	}
	return off
}

func splitRunes(s string, off int) (string, string) {
	r := []rune(s)
	off = clampOffset(s, off)
	return string(r[:off]), string(r[off:])
}

func setContent(tx *Tx, op SetContent) error {
	n, err := tx.get(op.ID)
	if err != nil {
		return err
	}
	tx.touch(n)
	if n.Task != nil && (op.ClearDue || op.ClearPriority) {
		t := *n.Task
		if op.ClearDue {
			t.DueDate = ""
		}
		if op.ClearPriority {
			t.Priority = model.PriorityNone
		}
		n.Task = &t
	}
	applyContent(n, op.Content, tx.env.Now)
	tx.setFocus(n.ID, runeLen(n.Content))
	return tx.put(n)
}

func toggleTask(tx *Tx, op ToggleTask) error {
	n, err := tx.get(op.ID)
	if err != nil {
		return err
	}
	tx.touch(n)
	b, _ := body(n.Content)
	if n.Task == nil {
		// A plain line becomes an open task.
		applyContent(n, taskmeta.CheckboxPrefix(false)+b, tx.env.Now)
	} else {
		applyContent(n, taskmeta.CheckboxPrefix(!n.Task.Completed)+b, tx.env.Now)
	}
	return tx.put(n)
}

func setStarred(tx *Tx, op SetStarred) error {
	n, err := tx.get(op.ID)
	if err != nil {
		return err
	}
	tx.touch(n)
	n.Starred = op.Starred
	return tx.put(n)
}

// create adds a new line: after AfterID in its group, or at the end of the
// container's root sequence.
func create(tx *Tx, op Create) error {
	n := &model.Node{ID: strings.TrimSpace(op.ID)}
	if n.ID == "" {
		n.ID = store.NewID("nd")
	}
	applyContent(n, op.Content, tx.env.Now)

	if op.AfterID != "" {
		after, err := tx.get(op.AfterID)
		if err != nil {
			return err
		}
		copyPlacement(n, after)
		key := store.GroupOf(after)
		group := tx.env.Nodes.Group(key)
		tx.placeAt(n, key, indexOf(group, after.ID)+1)
	} else {
		if op.Container.IsZero() {
			return model.ErrMissingContainer
		}
		n.Container = op.Container
		n.IndentLevel = op.IndentLevel
		key := store.RootGroup(op.Container)
		tx.placeAt(n, key, len(tx.env.Nodes.Group(key)))
	}
	if err := tx.create(n); err != nil {
		return err
	}
	_, pre := body(n.Content)
	tx.setFocus(n.ID, pre)
	return nil
}

// copyPlacement gives n the sibling-group fields of src. Only linked nodes
// inherit the folder; a root-level anchor's folder is its own.
func copyPlacement(n, src *model.Node) {
	n.Container = src.Container
	n.IndentLevel = src.IndentLevel
	n.ExplicitParentID = ""
	n.FolderID = ""
	if src.ExplicitParentID != "" {
		n.ExplicitParentID = src.ExplicitParentID
		n.FolderID = src.FolderID
		n.IndentLevel = 0
	}
}
