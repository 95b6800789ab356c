package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const viewStateFileName = "view_state.json"

// ViewState is ephemeral UI state kept outside the node records.
//
// It is best effort: a missing or corrupt file loads as empty state.
type ViewState struct {
	Version int `json:"version"`

	// Collapsed holds ids of nodes whose effective children are hidden.
	Collapsed map[string]bool `json:"collapsed,omitempty"`

	// Selection is the last block selection, in visible order.
	Selection []string `json:"selection,omitempty"`
}

func (v *ViewState) SetCollapsed(id string, collapsed bool) {
	if v.Collapsed == nil {
		v.Collapsed = map[string]bool{}
	}
	if collapsed {
		v.Collapsed[id] = true
		return
	}
	delete(v.Collapsed, id)
}

// Forget drops state for ids that no longer exist.
func (v *ViewState) Forget(exists func(id string) bool) {
	for id := range v.Collapsed {
		if !exists(id) {
			delete(v.Collapsed, id)
		}
	}
	kept := v.Selection[:0]
	for _, id := range v.Selection {
		if exists(id) {
			kept = append(kept, id)
		}
	}
	v.Selection = kept
}

func (v *ViewState) CollapsedIDs() []string {
	out := make([]string, 0, len(v.Collapsed))
	for id := range v.Collapsed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s Store) viewStatePath() string {
	return filepath.Join(s.Dir, viewStateFileName)
}

func (s Store) LoadViewState() (*ViewState, error) {
	empty := &ViewState{Version: 1, Collapsed: map[string]bool{}}
	if strings.TrimSpace(s.Dir) == "" {
		return empty, nil
	}
	b, err := os.ReadFile(s.viewStatePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return empty, nil
		}
		return nil, err
	}
	var st ViewState
	if err := json.Unmarshal(b, &st); err != nil {
		return empty, nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	if st.Collapsed == nil {
		st.Collapsed = map[string]bool{}
	}
	return &st, nil
}

func (s Store) SaveViewState(st *ViewState) error {
	if st == nil || strings.TrimSpace(s.Dir) == "" {
		return nil
	}
	if err := s.Ensure(); err != nil {
		return err
	}
	if st.Version == 0 {
		st.Version = 1
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	path := s.viewStatePath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
