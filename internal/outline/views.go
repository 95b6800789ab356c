package outline

import (
	"jotline/internal/model"
	"jotline/internal/store"
)

// Day returns the tree of a calendar day: its native nodes, then tasks homed
// elsewhere but due that day, then (only when date is today) overdue tasks.
// Projected rows point at the same records the native queries return.
func Day(nodes *store.Nodes, date, today model.Date, collapsed map[string]bool) *Tree {
	b := newBuilder(nodes, collapsed)
	container := model.DateContainer(date)
	b.emitContainer(container)

	for _, n := range nodes.DueBetween(date, date) {
		if n.Container == container {
			continue
		}
		if _, seen := b.t.pos[n.ID]; seen {
			continue
		}
		b.add(Row{Node: n, Projected: true})
	}
	if date == today {
		for _, n := range nodes.Overdue(today) {
			if _, seen := b.t.pos[n.ID]; seen {
				continue
			}
			b.add(Row{Node: n, Projected: true, Overdue: true})
		}
	}
	return b.finish()
}

// Folder returns the folder's own tree followed by mirrored anchors: root-level
// nodes in other containers linked to the folder, each with its explicit children.
func Folder(nodes *store.Nodes, folderID string, collapsed map[string]bool) *Tree {
	b := newBuilder(nodes, collapsed)
	container := model.FolderContainer(folderID)
	b.emitContainer(container)

	var anchors []*model.Node
	for _, n := range nodes.All() {
		if n.FolderID != folderID || n.ExplicitParentID != "" || n.Container == container {
			continue
		}
		anchors = append(anchors, n)
	}
	for _, a := range anchors {
		if _, seen := b.t.pos[a.ID]; seen {
			continue
		}
		// The anchor carries its visual run from its home sequence.
		seq := nodes.Group(store.GroupOf(a))
		for i, n := range seq {
			if n.ID == a.ID {
				b.emitRun(seq, i, 0, "", false, true)
				break
			}
		}
	}
	return b.finish()
}

// Projected reports whether the row for id is a read-only reference.
func (t *Tree) Projected(id string) bool {
	r, ok := t.Row(id)
	return ok && r.Projected
}
