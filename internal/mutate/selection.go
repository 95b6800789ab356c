package mutate

import (
	"strings"

	"jotline/internal/outline"
)

type SelectionState int

const (
	SelectionEmpty SelectionState = iota
	SelectionAnchored
	SelectionRanged
)

func (s SelectionState) String() string {
	switch s {
	case SelectionAnchored:
		return "anchored"
	case SelectionRanged:
		return "ranged"
	default:
		return "empty"
	}
}

// Selection is the block-selection state machine. Ranges are computed over a
// flattened visible order supplied by the caller.
type Selection struct {
	state  SelectionState
	anchor string
	set    map[string]bool
}

func (s *Selection) State() SelectionState { return s.state }

func (s *Selection) Anchor() string { return s.anchor }

// Click is a plain click: any selection is cleared and id becomes the anchor.
func (s *Selection) Click(id string) {
	s.state = SelectionAnchored
	s.anchor = id
	s.set = nil
}

// ShiftClick selects the inclusive range from the anchor to id.
func (s *Selection) ShiftClick(visible []string, id string) {
	if s.state == SelectionEmpty || s.anchor == "" {
		s.Click(id)
		return
	}
	a, b := -1, -1
	for i, v := range visible {
		if v == s.anchor {
			a = i
		}
		if v == id {
			b = i
		}
	}
	if a < 0 || b < 0 {
		s.Click(id)
		return
	}
	if a > b {
		a, b = b, a
	}
	s.set = map[string]bool{}
	for _, v := range visible[a : b+1] {
		s.set[v] = true
	}
	s.state = SelectionRanged
}

// ToggleClick adds or removes one id. From empty it anchors on id.
func (s *Selection) ToggleClick(id string) {
	switch s.state {
	case SelectionEmpty:
		s.anchor = id
		s.set = map[string]bool{id: true}
	case SelectionAnchored:
		s.set = map[string]bool{s.anchor: true}
		if id == s.anchor {
			delete(s.set, id)
		} else {
			s.set[id] = true
		}
	case SelectionRanged:
		if s.set[id] {
			delete(s.set, id)
		} else {
			s.set[id] = true
		}
	}
	if len(s.set) == 0 {
		s.Escape()
		return
	}
	s.state = SelectionRanged
}

func (s *Selection) SelectAll(visible []string) {
	if len(visible) == 0 {
		s.Escape()
		return
	}
	s.set = map[string]bool{}
	for _, v := range visible {
		s.set[v] = true
	}
	if s.anchor == "" || !s.set[s.anchor] {
		s.anchor = visible[0]
	}
	s.state = SelectionRanged
}

func (s *Selection) Escape() {
	s.state = SelectionEmpty
	s.anchor = ""
	s.set = nil
}

// IDs returns the selected ids in visible order. An anchored selection yields
// just the anchor.
func (s *Selection) IDs(visible []string) []string {
	switch s.state {
	case SelectionAnchored:
		return []string{s.anchor}
	case SelectionRanged:
		out := make([]string, 0, len(s.set))
		for _, v := range visible {
			if s.set[v] {
				out = append(out, v)
			}
		}
		return out
	default:
		return nil
	}
}

func (s *Selection) Contains(id string) bool {
	switch s.state {
	case SelectionAnchored:
		return s.anchor == id
	case SelectionRanged:
		return s.set[id]
	default:
		return false
	}
}

// Delete, IndentAll and OutdentAll turn a ranged selection into edit ops.
func (s *Selection) Delete(visible []string) Op { return Delete{IDs: s.IDs(visible)} }

func (s *Selection) IndentAll(visible []string) Op { return IndentMany{IDs: s.IDs(visible)} }

func (s *Selection) OutdentAll(visible []string) Op { return OutdentMany{IDs: s.IDs(visible)} }

// DragOp returns the move for dragging id: the whole selection when id is part
// of it, otherwise just id.
func (s *Selection) DragOp(visible []string, id string, drop Drop) Op {
	if s.state == SelectionRanged && s.set[id] {
		return MoveSelection{IDs: s.IDs(visible), Drop: drop}
	}
	return Move{ID: id, Drop: drop}
}

// Copy joins the content of ids in the tree's visible order.
func Copy(tree *outline.Tree, ids []string) string {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var lines []string
	for _, r := range tree.Visible() {
		if want[r.Node.ID] {
			lines = append(lines, r.Node.Content)
		}
	}
	return strings.Join(lines, "\n")
}
