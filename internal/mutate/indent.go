package mutate

import (
	"jotline/internal/model"
	"jotline/internal/store"
)

// promotionAnchor returns the nearest preceding indent-0 node of n's root
// sequence when it is linked to a known folder.
func (tx *Tx) promotionAnchor(n *model.Node) (*model.Node, bool) {
	if n.ExplicitParentID != "" {
		return nil, false
	}
	group := tx.env.Nodes.Group(store.GroupOf(n))
	for i := indexOf(group, n.ID) - 1; i >= 0; i-- {
		if group[i].IndentLevel != 0 {
			continue
		}
		a := group[i]
		if a.FolderID == "" {
			return nil, false
		}
		if tx.env.Folders != nil {
			if _, ok := tx.env.Folders.Folder(a.FolderID); !ok {
				return nil, false
			}
		}
		return a, true
	}
	return nil, false
}

// indentOne applies a clamped indent. A 0→1 transition under a folder-linked
// root ancestor promotes n to an explicit child of that ancestor instead. A
// linked node nests under its preceding linked sibling.
func (tx *Tx) indentOne(n *model.Node) error {
	if n.ExplicitParentID != "" {
		return tx.nestLinked(n)
	}
	if n.IndentLevel >= tx.env.Nodes.MaxIndent {
		return nil
	}
	tx.touch(n)
	if n.IndentLevel == 0 {
		if anchor, ok := tx.promotionAnchor(n); ok {
			n.ExplicitParentID = anchor.ID
			n.FolderID = anchor.FolderID
			n.Container = anchor.Container
			n.IndentLevel = 0
			// Linked children render right after the anchor's visual run,
			// which is where n already was.
			tx.dirty(store.RootGroup(anchor.Container))
			tx.placeAt(n, store.ExplicitGroup(anchor.ID), 0)
			return tx.put(n)
		}
	}
	n.IndentLevel++
	return tx.put(n)
}

// nestLinked relinks n to the sibling before it in its explicit group, as
// that sibling's last linked child. The first child of a group stays put.
func (tx *Tx) nestLinked(n *model.Node) error {
	group := tx.env.Nodes.Group(store.GroupOf(n))
	i := indexOf(group, n.ID)
	if i <= 0 {
		return nil
	}
	prev := group[i-1]
	if prev.FolderID == "" {
		return nil
	}
	tx.touch(n)
	tx.dirty(store.GroupOf(n))
	n.ExplicitParentID = prev.ID
	n.FolderID = prev.FolderID
	n.Container = prev.Container
	key := store.ExplicitGroup(prev.ID)
	tx.placeAt(n, key, len(without(tx.env.Nodes.Group(key), n.ID)))
	return tx.put(n)
}

// outdentOne applies a clamped outdent. A linked node moves one level up the
// link chain: under a linked parent it follows that parent in the
// grandparent's group; under a root anchor it is unlinked and rejoins the
// container's root sequence after the anchor's run.
func (tx *Tx) outdentOne(n *model.Node) error {
	if n.IndentLevel > 0 {
		tx.touch(n)
		n.IndentLevel--
		return tx.put(n)
	}
	if n.ExplicitParentID == "" {
		return nil
	}
	tx.touch(n)
	anchorID := n.ExplicitParentID
	tx.dirty(store.ExplicitGroup(anchorID))

	if parent, ok := tx.env.Nodes.Get(anchorID); ok && parent.ExplicitParentID != "" {
		n.ExplicitParentID = parent.ExplicitParentID
		n.FolderID = parent.FolderID
		n.Container = parent.Container
		key := store.ExplicitGroup(parent.ExplicitParentID)
		group := without(tx.env.Nodes.Group(key), n.ID)
		tx.placeAt(n, key, indexOf(group, parent.ID)+1)
		return tx.put(n)
	}

	n.ExplicitParentID = ""
	n.FolderID = ""

	key := store.RootGroup(n.Container)
	group := tx.env.Nodes.Group(key)
	pos := len(group)
	if i := indexOf(group, anchorID); i >= 0 {
		pos = runEnd(group, i)
	}
	tx.placeAt(n, key, pos)
	return tx.put(n)
}

func indent(tx *Tx, op Indent) error {
	n, err := tx.get(op.ID)
	if err != nil {
		return err
	}
	return tx.indentOne(n)
}

func outdent(tx *Tx, op Outdent) error {
	n, err := tx.get(op.ID)
	if err != nil {
		return err
	}
	return tx.outdentOne(n)
}

// indentMany applies indent to each id independently, in visible order.
func indentMany(tx *Tx, ids []string) error {
	for _, n := range tx.inVisibleOrder(ids) {
		if err := tx.indentOne(n); err != nil {
			return err
		}
	}
	return nil
}

func outdentMany(tx *Tx, ids []string) error {
	for _, n := range tx.inVisibleOrder(ids) {
		if err := tx.outdentOne(n); err != nil {
			return err
		}
	}
	return nil
}
