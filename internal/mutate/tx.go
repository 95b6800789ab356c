package mutate

import (
	"time"

	"jotline/internal/model"
	"jotline/internal/outline"
	"jotline/internal/store"
)

// FolderLookup resolves folders by id. The edit layer only reads it.
type FolderLookup interface {
	Folder(id string) (model.Folder, bool)
}

// Env is everything an edit needs besides the operation itself.
type Env struct {
	Nodes     *store.Nodes
	Folders   FolderLookup // nil accepts any non-empty folder id
	Now       time.Time
	Collapsed map[string]bool
}

// Focus is a cursor request: place the caret in node ID at rune Offset.
type Focus struct {
	ID     string `json:"id"`
	Offset int    `json:"offset"`
}

// Update lists the persisted fields that changed on one node.
type Update struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Delta is the store-level effect of one edit.
type Delta struct {
	Created []*model.Node `json:"created,omitempty"`
	Updated []Update      `json:"updated,omitempty"`
	Deleted []string      `json:"deleted,omitempty"`
	Focus   *Focus        `json:"focus,omitempty"`
}

func (d Delta) Empty() bool {
	return len(d.Created) == 0 && len(d.Updated) == 0 && len(d.Deleted) == 0
}

// Tx records every node an edit touches so the result can be diffed into a
// Delta, or rolled back if validation fails halfway.
type Tx struct {
	env Env

	before  map[string]*model.Node
	touched []string
	created []string
	isNew   map[string]bool
	deleted []string
	gone    map[string]bool
	groups  map[store.GroupKey]bool
	focus   *Focus
}

func newTx(env Env) *Tx {
	return &Tx{
		env:    env,
		before: map[string]*model.Node{},
		isNew:  map[string]bool{},
		gone:   map[string]bool{},
		groups: map[store.GroupKey]bool{},
	}
}

func (tx *Tx) get(id string) (*model.Node, error) {
	n, ok := tx.env.Nodes.Get(id)
	if !ok {
		return nil, NotFoundError{Kind: "node", ID: id}
	}
	return n, nil
}

// touch snapshots n before its first modification.
func (tx *Tx) touch(n *model.Node) {
	if _, ok := tx.before[n.ID]; ok || tx.isNew[n.ID] {
		return
	}
	tx.before[n.ID] = n.Clone()
	tx.touched = append(tx.touched, n.ID)
}

func (tx *Tx) dirty(key store.GroupKey) { tx.groups[key] = true }

func (tx *Tx) put(n *model.Node) error {
	tx.dirty(store.GroupOf(n))
	return tx.env.Nodes.Put(n)
}

func (tx *Tx) create(n *model.Node) error {
	n.CreatedAt = tx.env.Now
	n.UpdatedAt = tx.env.Now
	tx.isNew[n.ID] = true
	tx.created = append(tx.created, n.ID)
	return tx.put(n)
}

func (tx *Tx) remove(n *model.Node) {
	tx.touch(n)
	tx.dirty(store.GroupOf(n))
	tx.env.Nodes.Delete(n.ID)
	tx.gone[n.ID] = true
	tx.deleted = append(tx.deleted, n.ID)
}

// placeAt gives n an order at index pos of group key (n itself excluded). The
// caller sets n's group fields first and calls put afterwards.
func (tx *Tx) placeAt(n *model.Node, key store.GroupKey, pos int) {
	members := without(tx.env.Nodes.Group(key), n.ID)
	for _, m := range members {
		tx.touch(m)
	}
	n.Order = store.InsertAt(members, pos).Order
	tx.dirty(key)
}

func (tx *Tx) setFocus(id string, offset int) {
	tx.focus = &Focus{ID: id, Offset: offset}
}

func (tx *Tx) rollback() {
	for _, id := range tx.created {
		tx.env.Nodes.Delete(id)
	}
	for _, id := range tx.touched {
		snap := tx.before[id]
		if n, ok := tx.env.Nodes.Get(id); ok {
			*n = *snap
			continue
		}
		tx.env.Nodes.Restore(snap)
	}
	tx.env.Nodes.Invalidate()
}

func (tx *Tx) commit() Delta {
	for key := range tx.groups {
		for _, m := range tx.env.Nodes.Group(key) {
			tx.touch(m)
		}
		tx.env.Nodes.Heal(key)
	}

	var d Delta
	for _, id := range tx.created {
		if tx.gone[id] {
			continue
		}
		if n, ok := tx.env.Nodes.Get(id); ok {
			d.Created = append(d.Created, n)
		}
	}
	for _, id := range tx.touched {
		if tx.gone[id] {
			continue
		}
		n, ok := tx.env.Nodes.Get(id)
		if !ok {
			continue
		}
		fields := diffNode(tx.before[id], n)
		if len(fields) == 0 {
			continue
		}
		n.UpdatedAt = tx.env.Now
		fields["updatedAt"] = n.UpdatedAt
		d.Updated = append(d.Updated, Update{ID: id, Fields: fields})
	}
	for _, id := range tx.deleted {
		if tx.isNew[id] {
			continue
		}
		d.Deleted = append(d.Deleted, id)
	}
	d.Focus = tx.focus
	return d
}

// diffNode returns the persisted fields that differ, keyed by their JSON names.
func diffNode(a, b *model.Node) map[string]any {
	out := map[string]any{}
	if a.Content != b.Content {
		out["content"] = b.Content
	}
	if a.IndentLevel != b.IndentLevel {
		out["indentLevel"] = b.IndentLevel
	}
	if a.Order != b.Order {
		out["order"] = b.Order
	}
	if a.Container != b.Container {
		out["containerKey"] = b.Container.String()
	}
	if a.ExplicitParentID != b.ExplicitParentID {
		out["explicitParentId"] = b.ExplicitParentID
	}
	if a.FolderID != b.FolderID {
		out["folderId"] = b.FolderID
	}
	if !taskEqual(a.Task, b.Task) {
		if b.Task == nil {
			out["task"] = nil
		} else {
			out["task"] = b.Clone().Task
		}
	}
	if a.Starred != b.Starred {
		out["starred"] = b.Starred
	}
	return out
}

func taskEqual(a, b *model.Task) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Completed != b.Completed || a.DueDate != b.DueDate || a.Priority != b.Priority {
		return false
	}
	if a.CompletedAt == nil || b.CompletedAt == nil {
		return a.CompletedAt == b.CompletedAt
	}
	return a.CompletedAt.Equal(*b.CompletedAt)
}

// NodePayload is the full field set used for create operations.
func NodePayload(n *model.Node) map[string]any {
	p := map[string]any{
		"id":           n.ID,
		"content":      n.Content,
		"indentLevel":  n.IndentLevel,
		"order":        n.Order,
		"containerKey": n.Container.String(),
		"starred":      n.Starred,
		"createdAt":    n.CreatedAt,
		"updatedAt":    n.UpdatedAt,
	}
	if n.ExplicitParentID != "" {
		p["explicitParentId"] = n.ExplicitParentID
		p["folderId"] = n.FolderID
	} else if n.FolderID != "" {
		p["folderId"] = n.FolderID
	}
	if n.Task != nil {
		p["task"] = n.Clone().Task
	}
	return p
}

func without(nodes []*model.Node, id string) []*model.Node {
	out := make([]*model.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}

func indexOf(nodes []*model.Node, id string) int {
	for i, n := range nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// runEnd returns the index just past the visual run of group[i].
func runEnd(group []*model.Node, i int) int {
	j := i + 1
	for j < len(group) && group[j].IndentLevel > group[i].IndentLevel {
		j++
	}
	return j
}

// homeContainer follows explicit links up to the root-level node whose
// container renders n.
func homeContainer(nodes *store.Nodes, n *model.Node) model.ContainerKey {
	cur := n
	for steps := 0; cur.ExplicitParentID != "" && steps <= nodes.Len(); steps++ {
		p, ok := nodes.Get(cur.ExplicitParentID)
		if !ok {
			break
		}
		cur = p
	}
	return cur.Container
}

func (tx *Tx) treeFor(n *model.Node) *outline.Tree {
	return outline.Build(tx.env.Nodes, homeContainer(tx.env.Nodes, n), tx.env.Collapsed)
}
