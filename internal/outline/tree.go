// Package outline resolves the effective hierarchy of a container's nodes.
//
// A node's effective children are the maximal run of following nodes in its
// sequence with a greater indent, followed by the nodes explicitly linked to it.
// The result is an arena of rows built once per query; navigation, selection and
// drag targeting read the flattened visible order.
package outline

import (
	"jotline/internal/model"
	"jotline/internal/store"
)

type Row struct {
	Node *model.Node

	// Depth is the display depth: explicit offset plus the node's indent.
	Depth int
	// ExplicitDepth is the offset contributed by the explicit-link chain.
	ExplicitDepth int
	ParentID      string

	HasChildren bool
	Collapsed   bool
	Hidden      bool

	// Projected rows are read-only references to nodes homed elsewhere.
	Projected bool
	Overdue   bool
}

func (r Row) ID() string { return r.Node.ID }

type Tree struct {
	rows     []Row
	pos      map[string]int
	children map[string][]string
	visible  []int
}

type builder struct {
	nodes     *store.Nodes
	collapsed map[string]bool
	t         *Tree
}

// Build resolves the hierarchy of one container. Nodes whose explicit parent no
// longer exists are shown as roots of their own container.
func Build(nodes *store.Nodes, container model.ContainerKey, collapsed map[string]bool) *Tree {
	b := newBuilder(nodes, collapsed)
	b.emitContainer(container)
	return b.finish()
}

func (b *builder) emitContainer(container model.ContainerKey) {
	b.emitSequence(b.nodes.Root(container), 0, "", false, false)

	var orphans []*model.Node
	for _, n := range b.nodes.All() {
		if n.Container != container || n.ExplicitParentID == "" {
			continue
		}
		if _, ok := b.nodes.Get(n.ExplicitParentID); ok {
			continue
		}
		orphans = append(orphans, n)
	}
	b.emitSequence(orphans, 0, "", false, false)
}

func newBuilder(nodes *store.Nodes, collapsed map[string]bool) *builder {
	if collapsed == nil {
		collapsed = map[string]bool{}
	}
	return &builder{
		nodes:     nodes,
		collapsed: collapsed,
		t: &Tree{
			pos:      map[string]int{},
			children: map[string][]string{},
		},
	}
}

func (b *builder) finish() *Tree {
	for i := range b.t.rows {
		if !b.t.rows[i].Hidden {
			b.t.visible = append(b.t.visible, i)
		}
	}
	return b.t
}

func (b *builder) add(r Row) int {
	b.t.rows = append(b.t.rows, r)
	idx := len(b.t.rows) - 1
	b.t.pos[r.Node.ID] = idx
	if r.ParentID != "" {
		b.t.children[r.ParentID] = append(b.t.children[r.ParentID], r.Node.ID)
	}
	return idx
}

func (b *builder) emitSequence(seq []*model.Node, base int, parentID string, hidden, projected bool) {
	// Already-emitted nodes are skipped so a corrupt link chain cannot loop.
	fresh := seq[:0:0]
	for _, n := range seq {
		if _, seen := b.t.pos[n.ID]; !seen {
			fresh = append(fresh, n)
		}
	}
	for i := 0; i < len(fresh); {
		i = b.emitRun(fresh, i, base, parentID, hidden, projected)
	}
}

// emitRun emits seq[i], its visual run and its explicit children, and returns
// the index of the first node after the run.
func (b *builder) emitRun(seq []*model.Node, i int, base int, parentID string, hidden, projected bool) int {
	n := seq[i]
	idx := b.add(Row{
		Node:          n,
		Depth:         base + n.IndentLevel,
		ExplicitDepth: base,
		ParentID:      parentID,
		Collapsed:     b.collapsed[n.ID],
		Hidden:        hidden,
		Projected:     projected,
	})
	childHidden := hidden || b.collapsed[n.ID]

	j := i + 1
	for j < len(seq) && seq[j].IndentLevel > n.IndentLevel {
		j = b.emitRun(seq, j, base, n.ID, childHidden, projected)
	}

	before := len(b.t.rows)
	b.emitSequence(b.nodes.ExplicitChildren(n.ID), b.t.rows[idx].Depth+1, n.ID, childHidden, projected)

	b.t.rows[idx].HasChildren = j > i+1 || len(b.t.rows) > before
	return j
}

// Rows returns every row in document order, hidden ones included.
func (t *Tree) Rows() []Row { return t.rows }

// Visible returns the flattened visible order.
func (t *Tree) Visible() []Row {
	out := make([]Row, 0, len(t.visible))
	for _, i := range t.visible {
		out = append(out, t.rows[i])
	}
	return out
}

func (t *Tree) VisibleIDs() []string {
	out := make([]string, 0, len(t.visible))
	for _, i := range t.visible {
		out = append(out, t.rows[i].Node.ID)
	}
	return out
}

func (t *Tree) Row(id string) (Row, bool) {
	i, ok := t.pos[id]
	if !ok {
		return Row{}, false
	}
	return t.rows[i], true
}

// IndexOf returns the position of id in the visible order, or -1.
func (t *Tree) IndexOf(id string) int {
	i, ok := t.pos[id]
	if !ok {
		return -1
	}
	for vi, ri := range t.visible {
		if ri == i {
			return vi
		}
	}
	return -1
}

func (t *Tree) Next(id string) (string, bool) {
	vi := t.IndexOf(id)
	if vi < 0 || vi+1 >= len(t.visible) {
		return "", false
	}
	return t.rows[t.visible[vi+1]].Node.ID, true
}

func (t *Tree) Prev(id string) (string, bool) {
	vi := t.IndexOf(id)
	if vi <= 0 {
		return "", false
	}
	return t.rows[t.visible[vi-1]].Node.ID, true
}

func (t *Tree) Parent(id string) string {
	if r, ok := t.Row(id); ok {
		return r.ParentID
	}
	return ""
}

// Children returns the direct effective children: visual first, then explicit.
func (t *Tree) Children(id string) []string {
	return append([]string{}, t.children[id]...)
}

// Subtree returns every effective descendant of id in document order.
func (t *Tree) Subtree(id string) []string {
	var out []string
	var walk func(string)
	walk = func(p string) {
		for _, c := range t.children[p] {
			out = append(out, c)
			walk(c)
		}
	}
	walk(id)
	return out
}

// RootAncestor returns the indent-0 node of id's own sequence whose visual run
// contains id (id itself when it is at indent 0).
func (t *Tree) RootAncestor(id string) (string, bool) {
	r, ok := t.Row(id)
	if !ok {
		return "", false
	}
	g := store.GroupOf(r.Node)
	cur := r
	for cur.Node.IndentLevel > 0 && cur.ParentID != "" {
		p, ok := t.Row(cur.ParentID)
		if !ok || store.GroupOf(p.Node) != g {
			break
		}
		cur = p
	}
	if cur.Node.IndentLevel != 0 {
		return "", false
	}
	return cur.Node.ID, true
}

func (t *Tree) Len() int { return len(t.rows) }
