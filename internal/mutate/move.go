package mutate

import (
	"math"
	"sort"

	"jotline/internal/model"
	"jotline/internal/store"
)

type Side string

const (
	SideBefore Side = "before"
	SideAfter  Side = "after"
	// SideInside makes the dragged node the first linked child of the target.
	SideInside Side = "inside"
)

// Drop is a resolved drag destination.
type Drop struct {
	TargetID string `json:"targetId"`
	Side     Side   `json:"side"`
}

// LineBox is the vertical extent of one visible line.
type LineBox struct {
	ID     string
	Top    float64
	Height float64
}

// ResolveDrop picks the visible line whose vertical midpoint is nearest to y;
// the side is before when y is above that midpoint.
func ResolveDrop(lines []LineBox, y float64) (Drop, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, l := range lines {
		mid := l.Top + l.Height/2
		if d := math.Abs(y - mid); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Drop{}, false
	}
	l := lines[best]
	side := SideAfter
	if y < l.Top+l.Height/2 {
		side = SideBefore
	}
	return Drop{TargetID: l.ID, Side: side}, true
}

// destination is the sibling group and group fields a drop resolves to.
type destination struct {
	key       store.GroupKey
	pos       int // index among the group's members, dragged nodes excluded
	container model.ContainerKey
	parentID  string
	folderID  string
	indent    int
}

func (tx *Tx) resolveDestination(drop Drop, dragged map[string]bool) (destination, error) {
	target, err := tx.get(drop.TargetID)
	if err != nil {
		return destination{}, err
	}
	if dragged[target.ID] {
		return destination{}, ErrInvalidDrop
	}
	// The target must not sit inside a dragged node's linked subtree.
	for cur, steps := target, 0; cur.ExplicitParentID != "" && steps <= tx.env.Nodes.Len(); steps++ {
		if dragged[cur.ExplicitParentID] {
			return destination{}, ErrInvalidDrop
		}
		p, ok := tx.env.Nodes.Get(cur.ExplicitParentID)
		if !ok {
			break
		}
		cur = p
	}

	if drop.Side == SideInside {
		if target.FolderID == "" {
			return destination{}, ErrNotLinkable
		}
		return destination{
			key:       store.ExplicitGroup(target.ID),
			pos:       0,
			container: target.Container,
			parentID:  target.ID,
			folderID:  target.FolderID,
		}, nil
	}

	d := destination{
		key:       store.GroupOf(target),
		container: target.Container,
		indent:    target.IndentLevel,
	}
	if target.ExplicitParentID != "" {
		d.parentID = target.ExplicitParentID
		d.folderID = target.FolderID
		d.indent = 0
	}
	var rest []*model.Node
	for _, m := range tx.env.Nodes.Group(d.key) {
		if !dragged[m.ID] {
			rest = append(rest, m)
		}
	}
	d.pos = indexOf(rest, target.ID)
	if drop.Side != SideBefore {
		d.pos++
	}
	return d, nil
}

// apply sets the destination's group fields on n. A filed anchor repositioned
// at indent 0 within its own root sequence keeps its folder; any other
// band change strips the fields n no longer qualifies for.
func (d destination) apply(n *model.Node, indent int) {
	sameBand := store.GroupOf(n) == d.key
	if d.parentID != "" {
		indent = 0
	}
	switch {
	case d.parentID != "":
		n.FolderID = d.folderID
	case sameBand && indent == 0:
		// folder kept
	default:
		n.FolderID = ""
	}
	n.Container = d.container
	n.ExplicitParentID = d.parentID
	n.IndentLevel = indent
}

// move repositions one node. Order values come from the ordering engine.
func move(tx *Tx, op Move) error {
	n, err := tx.get(op.ID)
	if err != nil {
		return err
	}
	d, err := tx.resolveDestination(op.Drop, map[string]bool{n.ID: true})
	if err != nil {
		return err
	}
	tx.touch(n)
	tx.dirty(store.GroupOf(n))
	d.apply(n, d.indent)
	tx.placeAt(n, d.key, d.pos)
	if err := tx.put(n); err != nil {
		return err
	}
	tx.setFocus(n.ID, runeLen(n.Content))
	return nil
}

// moveSelection moves the selected nodes, filtered to the visible order, as a
// contiguous block. The destination group is renumbered with small even keys
// instead of repeated midpoint inserts.
func moveSelection(tx *Tx, op MoveSelection) error {
	sel := tx.inVisibleOrder(op.IDs)
	if len(sel) == 0 {
		return nil
	}
	dragged := map[string]bool{}
	minIndent := math.MaxInt
	for _, n := range sel {
		dragged[n.ID] = true
		if n.ExplicitParentID == "" && n.IndentLevel < minIndent {
			minIndent = n.IndentLevel
		}
	}
	if minIndent == math.MaxInt {
		minIndent = 0
	}
	d, err := tx.resolveDestination(op.Drop, dragged)
	if err != nil {
		return err
	}

	for _, n := range sel {
		tx.touch(n)
		tx.dirty(store.GroupOf(n))
		rel := 0
		if n.ExplicitParentID == "" {
			rel = n.IndentLevel - minIndent
		}
		indent := d.indent + rel
		if indent > tx.env.Nodes.MaxIndent {
			indent = tx.env.Nodes.MaxIndent
		}
		d.apply(n, indent)
	}

	var rest []*model.Node
	for _, m := range tx.env.Nodes.Group(d.key) {
		if !dragged[m.ID] {
			rest = append(rest, m)
		}
	}
	pos := d.pos
	if pos > len(rest) {
		pos = len(rest)
	}
	final := make([]*model.Node, 0, len(rest)+len(sel))
	final = append(final, rest[:pos]...)
	final = append(final, sel...)
	final = append(final, rest[pos:]...)
	for _, m := range final {
		tx.touch(m)
	}
	store.Renumber(final)
	tx.dirty(d.key)

	for _, n := range sel {
		if err := tx.put(n); err != nil {
			return err
		}
	}
	tx.setFocus(sel[0].ID, 0)
	return nil
}

// deleteMany removes the given nodes, filtered to the visible order.
func deleteMany(tx *Tx, ids []string) error {
	sel := tx.inVisibleOrder(ids)
	if len(sel) == 0 {
		return nil
	}
	doomed := map[string]bool{}
	for _, n := range sel {
		doomed[n.ID] = true
	}
	tree := tx.treeFor(sel[0])
	focusID := ""
	for cur := sel[0].ID; ; {
		prev, ok := tree.Prev(cur)
		if !ok {
			break
		}
		if !doomed[prev] {
			focusID = prev
			break
		}
		cur = prev
	}
	for _, n := range sel {
		if _, ok := tx.env.Nodes.Get(n.ID); !ok {
			continue
		}
		if err := tx.removeNode(n); err != nil {
			return err
		}
	}
	if f, ok := tx.env.Nodes.Get(focusID); ok {
		tx.setFocus(f.ID, runeLen(f.Content))
	}
	return nil
}

// inVisibleOrder resolves ids to nodes, dropping unknown and hidden ones, and
// sorts them by home container then visible position.
func (tx *Tx) inVisibleOrder(ids []string) []*model.Node {
	type ranked struct {
		n         *model.Node
		container string
		idx       int
	}
	var out []ranked
	seen := map[string]bool{}
	trees := map[model.ContainerKey]func(string) int{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		n, ok := tx.env.Nodes.Get(id)
		if !ok {
			continue
		}
		home := homeContainer(tx.env.Nodes, n)
		idxOf, ok := trees[home]
		if !ok {
			idxOf = tx.treeFor(n).IndexOf
			trees[home] = idxOf
		}
		i := idxOf(n.ID)
		if i < 0 {
			continue
		}
		out = append(out, ranked{n: n, container: home.String(), idx: i})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].container != out[j].container {
			return out[i].container < out[j].container
		}
		return out[i].idx < out[j].idx
	})
	nodes := make([]*model.Node, 0, len(out))
	for _, r := range out {
		nodes = append(nodes, r.n)
	}
	return nodes
}
