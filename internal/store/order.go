package store

import (
	"sort"

	"jotline/internal/model"
)

// OrderStep is the gap used by the shift fallback and by renumbering.
const OrderStep int64 = 2

// GroupKey identifies a sibling group: the root sequence of a container
// (ParentID == "") or the explicit-child sequence of one anchor node.
type GroupKey struct {
	Container model.ContainerKey
	ParentID  string
}

func (k GroupKey) String() string {
	if k.ParentID != "" {
		return "parent:" + k.ParentID
	}
	return k.Container.String()
}

func RootGroup(c model.ContainerKey) GroupKey { return GroupKey{Container: c} }

func ExplicitGroup(parentID string) GroupKey { return GroupKey{ParentID: parentID} }

// GroupOf returns the sibling group a node belongs to. Visually indented nodes
// share the root sequence of their container.
func GroupOf(n *model.Node) GroupKey {
	if n.ExplicitParentID != "" {
		return ExplicitGroup(n.ExplicitParentID)
	}
	return RootGroup(n.Container)
}

// SortNodes sorts by order, then CreatedAt, then ID.
func SortNodes(nodes []*model.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return compareNodes(nodes[i], nodes[j]) < 0
	})
}

func compareNodes(a, b *model.Node) int {
	if a.Order < b.Order {
		return -1
	}
	if a.Order > b.Order {
		return 1
	}
	if a.CreatedAt.Before(b.CreatedAt) {
		return -1
	}
	if a.CreatedAt.After(b.CreatedAt) {
		return 1
	}
	if a.ID < b.ID {
		return -1
	}
	if a.ID > b.ID {
		return 1
	}
	return 0
}

// Placement is the result of asking for a new order key. Shifted lists the
// siblings whose Order was bumped by the fallback; they must be persisted too.
type Placement struct {
	Order   int64
	Shifted []*model.Node
}

// InsertAt returns the order for a new member placed at index pos of the
// sorted group (pos counts existing members; 0 is the head). The group must not
// contain the node being placed. Shifted siblings are modified in place.
func InsertAt(group []*model.Node, pos int) Placement {
	if len(group) == 0 {
		return Placement{Order: 0}
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(group) {
		pos = len(group)
	}
	if pos == len(group) {
		return Placement{Order: group[pos-1].Order + 1}
	}

	anchor := int64(-1)
	if pos > 0 {
		anchor = group[pos-1].Order
	}
	next := group[pos].Order
	mid := floorDiv(anchor+next, 2)
	if mid > anchor && mid < next {
		return Placement{Order: mid}
	}

	// No integral gap: shift the tail of this group only.
	delta := OrderStep
	if next+delta <= anchor+1 {
		delta = anchor + OrderStep - next
	}
	shifted := make([]*model.Node, 0, len(group)-pos)
	for _, n := range group[pos:] {
		n.Order += delta
		shifted = append(shifted, n)
	}
	return Placement{Order: anchor + 1, Shifted: shifted}
}

// InsertAfter places a new member right after anchorID. A missing anchor appends.
func InsertAfter(group []*model.Node, anchorID string) Placement {
	for i, n := range group {
		if n.ID == anchorID {
			return InsertAt(group, i+1)
		}
	}
	return Append(group)
}

func Append(group []*model.Node) Placement {
	return InsertAt(group, len(group))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Violation describes a broken order invariant inside one sibling group.
type Violation struct {
	Group GroupKey
	IDs   []string
	Order int64
}

// CheckGroup reports duplicate order keys in a sorted group. Duplicates only
// ever appear through a bug or concurrent writers; they are healed, not served.
func CheckGroup(key GroupKey, sorted []*model.Node) []Violation {
	var out []Violation
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j].Order == sorted[i].Order {
			j++
		}
		if j-i > 1 {
			v := Violation{Group: key, Order: sorted[i].Order}
			for _, n := range sorted[i:j] {
				v.IDs = append(v.IDs, n.ID)
			}
			out = append(out, v)
		}
		i = j
	}
	return out
}

// Renumber assigns i*OrderStep in the given sequence and returns the nodes whose
// order changed.
func Renumber(ordered []*model.Node) []*model.Node {
	var changed []*model.Node
	for i, n := range ordered {
		want := int64(i) * OrderStep
		if n.Order != want {
			n.Order = want
			changed = append(changed, n)
		}
	}
	return changed
}

// Repair sorts the group with the tie-breaking comparator and renumbers it.
func Repair(group []*model.Node) []*model.Node {
	cur := append([]*model.Node{}, group...)
	SortNodes(cur)
	return Renumber(cur)
}
