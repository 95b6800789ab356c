package store

import (
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"

	"jotline/internal/model"
)

var ErrNotFound = errors.New("not found")

// Nodes is the in-memory node collection. It has a single writer; callers that
// change a node's Container or ExplicitParentID must Put it again so the group
// index is rebuilt.
type Nodes struct {
	MaxIndent int

	byID   map[string]*model.Node
	logger *slog.Logger

	// Derived group membership. Not persisted.
	idxBuilt bool
	idxGroup map[GroupKey][]*model.Node
}

func NewNodes(logger *slog.Logger, maxIndent int, nodes ...*model.Node) *Nodes {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if maxIndent <= 0 {
		maxIndent = model.MaxIndentDefault
	}
	s := &Nodes{MaxIndent: maxIndent, byID: map[string]*model.Node{}, logger: logger}
	for _, n := range nodes {
		if n != nil {
			s.byID[n.ID] = n
		}
	}
	return s
}

func (s *Nodes) Logger() *slog.Logger { return s.logger }

func (s *Nodes) Len() int { return len(s.byID) }

func (s *Nodes) Get(id string) (*model.Node, bool) {
	n, ok := s.byID[strings.TrimSpace(id)]
	return n, ok
}

// Put inserts or replaces a node after validating it.
func (s *Nodes) Put(n *model.Node) error {
	if err := n.Validate(s.MaxIndent); err != nil {
		return err
	}
	s.byID[n.ID] = n
	s.idxBuilt = false
	return nil
}

// Restore reinserts a node without validation. It is used to roll back a
// failed edit to the exact prior state.
func (s *Nodes) Restore(n *model.Node) {
	s.byID[n.ID] = n
	s.idxBuilt = false
}

func (s *Nodes) Delete(id string) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	s.idxBuilt = false
	return true
}

// Invalidate drops the derived index after in-place edits to group fields.
func (s *Nodes) Invalidate() { s.idxBuilt = false }

func (s *Nodes) ensureIndexes() {
	if s.idxBuilt {
		return
	}
	s.idxGroup = map[GroupKey][]*model.Node{}
	for _, n := range s.byID {
		k := GroupOf(n)
		s.idxGroup[k] = append(s.idxGroup[k], n)
	}
	s.idxBuilt = true
}

// Group returns the members of a sibling group sorted by order. The slice is a
// copy; the nodes are shared.
func (s *Nodes) Group(key GroupKey) []*model.Node {
	s.ensureIndexes()
	out := append([]*model.Node{}, s.idxGroup[key]...)
	SortNodes(out)
	return out
}

func (s *Nodes) Root(c model.ContainerKey) []*model.Node {
	return s.Group(RootGroup(c))
}

func (s *Nodes) ExplicitChildren(parentID string) []*model.Node {
	return s.Group(ExplicitGroup(parentID))
}

// All returns every node sorted by container, then order.
func (s *Nodes) All() []*model.Node {
	out := make([]*model.Node, 0, len(s.byID))
	for _, n := range s.byID {
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := out[i].Container.String(), out[j].Container.String()
		if ci != cj {
			return ci < cj
		}
		return compareNodes(out[i], out[j]) < 0
	})
	return out
}

// Groups lists every non-empty group key.
func (s *Nodes) Groups() []GroupKey {
	s.ensureIndexes()
	out := make([]GroupKey, 0, len(s.idxGroup))
	for k := range s.idxGroup {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Heal checks a group for order and indent violations, logs them and repairs
// them in place. It returns the nodes it changed.
func (s *Nodes) Heal(key GroupKey) []*model.Node {
	group := s.Group(key)
	changed := map[string]*model.Node{}

	for _, n := range group {
		want := n.IndentLevel
		if want < 0 {
			want = 0
		}
		if want > s.MaxIndent {
			want = s.MaxIndent
		}
		if n.ExplicitParentID != "" {
			want = 0
		}
		if want != n.IndentLevel {
			s.logger.Warn("indent out of range; clamping",
				slog.String("node", n.ID),
				slog.Int("indent", n.IndentLevel),
				slog.Int("clamped", want))
			n.IndentLevel = want
			changed[n.ID] = n
		}
	}

	if vs := CheckGroup(key, group); len(vs) > 0 {
		for _, v := range vs {
			s.logger.Warn("duplicate order keys; renumbering group",
				slog.String("group", key.String()),
				slog.Int64("order", v.Order),
				slog.Any("ids", v.IDs))
		}
		for _, n := range Repair(group) {
			changed[n.ID] = n
		}
	}

	out := make([]*model.Node, 0, len(changed))
	for _, n := range changed {
		out = append(out, n)
	}
	SortNodes(out)
	return out
}

// HealAll runs Heal over every group.
func (s *Nodes) HealAll() []*model.Node {
	var out []*model.Node
	for _, k := range s.Groups() {
		out = append(out, s.Heal(k)...)
	}
	return out
}

// Native returns nodes whose home container is the given day.
func (s *Nodes) Native(d model.Date) []*model.Node {
	key := model.DateContainer(d)
	var out []*model.Node
	for _, n := range s.byID {
		if n.Container == key {
			out = append(out, n)
		}
	}
	SortNodes(out)
	return out
}

// DueBetween returns tasks with a due date in [from, to], sorted by due date then order.
func (s *Nodes) DueBetween(from, to model.Date) []*model.Node {
	var out []*model.Node
	for _, n := range s.byID {
		if n.Task == nil || n.Task.DueDate == "" {
			continue
		}
		if n.Task.DueDate.Before(from) || n.Task.DueDate.After(to) {
			continue
		}
		out = append(out, n)
	}
	sortByDue(out)
	return out
}

// Overdue returns incomplete tasks due strictly before today.
func (s *Nodes) Overdue(today model.Date) []*model.Node {
	var out []*model.Node
	for _, n := range s.byID {
		if n.Task == nil || n.Task.Completed || n.Task.DueDate == "" {
			continue
		}
		if n.Task.DueDate.Before(today) {
			out = append(out, n)
		}
	}
	sortByDue(out)
	return out
}

func sortByDue(nodes []*model.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		di, dj := nodes[i].Task.DueDate, nodes[j].Task.DueDate
		if di != dj {
			return di < dj
		}
		return compareNodes(nodes[i], nodes[j]) < 0
	})
}
