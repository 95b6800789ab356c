package mutate

import (
	"errors"
	"strings"

	"jotline/internal/model"
	"jotline/internal/store"
)

// ErrNotRootLine is returned when filing a line that is indented or linked.
var ErrNotRootLine = errors.New("only root-level lines can be filed into a folder")

// SetFolder files a root-level line into a folder, making it an anchor that
// can hold linked children. An empty FolderID unfiles it.
type SetFolder struct {
	ID       string
	FolderID string
}

func (SetFolder) opName() string { return "set-folder" }

func setFolder(tx *Tx, op SetFolder) error {
	n, err := tx.get(op.ID)
	if err != nil {
		return err
	}
	if n.ExplicitParentID != "" || n.IndentLevel != 0 {
		return ErrNotRootLine
	}
	folderID := strings.TrimSpace(op.FolderID)
	if folderID != "" && tx.env.Folders != nil {
		if _, ok := tx.env.Folders.Folder(folderID); !ok {
			return NotFoundError{Kind: "folder", ID: folderID}
		}
	}
	if n.FolderID == folderID {
		return nil
	}
	tx.touch(n)
	n.FolderID = folderID
	if err := tx.put(n); err != nil {
		return err
	}

	linked := tx.explicitDescendants(n.ID)
	if folderID != "" {
		for _, kid := range linked {
			tx.touch(kid)
			kid.FolderID = folderID
			if err := tx.put(kid); err != nil {
				return err
			}
		}
		return nil
	}

	// Unfiled: the whole linked subtree rejoins n's sequence after its run.
	key := store.RootGroup(n.Container)
	group := tx.env.Nodes.Group(key)
	pos := runEnd(group, indexOf(group, n.ID))
	for k, kid := range linked {
		tx.touch(kid)
		tx.dirty(store.GroupOf(kid))
		kid.Container = n.Container
		kid.ExplicitParentID = ""
		kid.FolderID = ""
		kid.IndentLevel = 0
		tx.placeAt(kid, key, pos+k)
		if err := tx.put(kid); err != nil {
			return err
		}
	}
	return nil
}

// explicitDescendants walks the explicit-link chain below id depth first.
func (tx *Tx) explicitDescendants(id string) []*model.Node {
	var out []*model.Node
	seen := map[string]bool{id: true}
	var walk func(string)
	walk = func(pid string) {
		for _, kid := range tx.env.Nodes.ExplicitChildren(pid) {
			if seen[kid.ID] {
				continue
			}
			seen[kid.ID] = true
			out = append(out, kid)
			walk(kid.ID)
		}
	}
	walk(id)
	return out
}
