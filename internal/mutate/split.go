package mutate

import (
	"strings"
	"unicode"

	"jotline/internal/model"
	"jotline/internal/store"
	"jotline/internal/taskmeta"
)

// split cuts n at a rune offset of its stored content. The prefix stays on n,
// the suffix becomes a new line right after n in the same sibling group.
func split(tx *Tx, op Split) error {
	n, err := tx.get(op.ID)
	if err != nil {
		return err
	}
	tx.touch(n)

	b, pre := body(n.Content)
	isTask := n.Task != nil && pre > 0
	off := clampOffset(n.Content, op.Offset) - pre
	if off < 0 {
		off = 0
	}
	head, tail := splitRunes(b, off)

	next := &model.Node{ID: strings.TrimSpace(op.NewID)}
	if next.ID == "" {
		next.ID = store.NewID("nd")
	}
	copyPlacement(next, n)

	if isTask {
		// The suffix's checkbox swallows leading whitespace, so the boundary
		// whitespace stays on the prefix where a merge finds it again.
		lead := len(tail) - len(strings.TrimLeftFunc(tail, unicode.IsSpace))
		head, tail = head+tail[:lead], tail[lead:]
		applyContent(n, taskmeta.CheckboxPrefix(n.Task.Completed)+head, tx.env.Now)
		applyContent(next, taskmeta.CheckboxPrefix(false)+tail, tx.env.Now)
	} else {
		applyContent(n, head, tx.env.Now)
		applyContent(next, tail, tx.env.Now)
	}

	key := store.GroupOf(n)
	group := tx.env.Nodes.Group(key)
	tx.placeAt(next, key, indexOf(group, n.ID)+1)
	if err := tx.put(n); err != nil {
		return err
	}
	if err := tx.create(next); err != nil {
		return err
	}
	_, npre := body(next.Content)
	tx.setFocus(next.ID, npre)
	return nil
}

// deleteBackward handles delete-backward at offset 0: an empty line is removed,
// a non-empty one is merged onto the end of the previous visible line.
func deleteBackward(tx *Tx, op DeleteBackward) error {
	n, err := tx.get(op.ID)
	if err != nil {
		return err
	}
	tree := tx.treeFor(n)

	if strings.TrimSpace(n.Content) == "" {
		focusID, ok := tree.Prev(n.ID)
		if !ok {
			focusID, ok = tree.Next(n.ID)
		}
		if err := tx.removeNode(n); err != nil {
			return err
		}
		if ok {
			if f, found := tx.env.Nodes.Get(focusID); found {
				tx.setFocus(f.ID, runeLen(f.Content))
			}
		}
		return nil
	}

	prevID, ok := tree.Prev(n.ID)
	if !ok {
		return nil
	}
	prev, err := tx.get(prevID)
	if err != nil {
		return err
	}
	tx.touch(prev)

	boundary := runeLen(prev.Content)
	cur, _ := body(n.Content)
	pb, ppre := body(prev.Content)
	merged := prev.Content + cur
	if prev.Task != nil && ppre > 0 {
		merged = taskmeta.CheckboxPrefix(prev.Task.Completed) + pb + cur
	}
	applyContent(prev, merged, tx.env.Now)
	if err := tx.put(prev); err != nil {
		return err
	}
	if err := tx.removeNode(n); err != nil {
		return err
	}
	tx.setFocus(prev.ID, boundary)
	return nil
}

// removeNode deletes n. Its explicit children are not lost: they take the
// deleted anchor's link fields and slot, right after its visual run.
func (tx *Tx) removeNode(n *model.Node) error {
	kids := tx.env.Nodes.ExplicitChildren(n.ID)
	if len(kids) > 0 {
		key := store.GroupOf(n)
		group := tx.env.Nodes.Group(key)
		pos := runEnd(group, indexOf(group, n.ID))
		for k, kid := range kids {
			tx.touch(kid)
			kid.Container = n.Container
			kid.ExplicitParentID = n.ExplicitParentID
			kid.FolderID = ""
			kid.IndentLevel = n.IndentLevel
			if n.ExplicitParentID != "" {
				kid.FolderID = n.FolderID
				kid.IndentLevel = 0
			}
			tx.placeAt(kid, key, pos+k)
			if err := tx.put(kid); err != nil {
				return err
			}
		}
	}
	tx.remove(n)
	return nil
}
