package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"jotline/internal/model"
)

type DoctorIssueLevel string

const (
	DoctorIssueLevelError DoctorIssueLevel = "error"
	DoctorIssueLevelWarn  DoctorIssueLevel = "warn"
)

var ErrDoctorIssuesFound = errors.New("doctor found errors")

type DoctorIssue struct {
	Level   DoctorIssueLevel `json:"level"`
	Code    string           `json:"code"`
	Message string           `json:"message"`

	EntityKind model.EntityKind `json:"entityKind,omitempty"`
	EntityID   string           `json:"entityId,omitempty"`
}

type DoctorReport struct {
	Nodes   int           `json:"nodes"`
	Folders int           `json:"folders"`
	Pending int           `json:"pending"`
	Issues  []DoctorIssue `json:"issues"`
}

func (r DoctorReport) HasErrors() bool {
	for _, it := range r.Issues {
		if it.Level == DoctorIssueLevelError {
			return true
		}
	}
	return false
}

func (r *DoctorReport) add(level DoctorIssueLevel, code string, kind model.EntityKind, id, format string, args ...any) {
	r.Issues = append(r.Issues, DoctorIssue{
		Level:      level,
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		EntityKind: kind,
		EntityID:   id,
	})
}

// Doctor checks the stored records as they are on disk, before any healing on
// load. Order collisions and out-of-range indents are warnings since loading
// repairs them; broken links and unreadable rows are errors.
func (s *SQLite) Doctor(ctx context.Context, maxIndent int, pendingKey string) (DoctorReport, error) {
	if maxIndent <= 0 {
		maxIndent = model.MaxIndentDefault
	}
	rep := DoctorReport{Issues: []DoctorIssue{}}

	folders, err := s.Folders(ctx)
	if err != nil {
		return rep, err
	}
	rep.Folders = len(folders)
	folderIDs := make(map[string]bool, len(folders))
	for _, f := range folders {
		folderIDs[f.ID] = true
	}
	for _, f := range folders {
		if f.ParentFolderID != "" && !folderIDs[f.ParentFolderID] {
			rep.add(DoctorIssueLevelWarn, "unknown_parent_folder", model.EntityFolder, f.ID,
				"parent folder %s does not exist", f.ParentFolderID)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, json FROM nodes ORDER BY id`)
	if err != nil {
		return rep, err
	}
	var nodes []*model.Node
	for rows.Next() {
		var id, js string
		if err := rows.Scan(&id, &js); err != nil {
			rows.Close()
			return rep, err
		}
		var n model.Node
		if err := json.Unmarshal([]byte(js), &n); err != nil {
			rep.add(DoctorIssueLevelError, "node_unreadable", model.EntityNode, id, "%v", err)
			continue
		}
		nodes = append(nodes, &n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return rep, err
	}
	rep.Nodes = len(nodes)

	byID := make(map[string]*model.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	for _, n := range nodes {
		if err := n.Validate(maxIndent); err != nil {
			var ir model.IndentRangeError
			level := DoctorIssueLevelError
			if errors.As(err, &ir) {
				level = DoctorIssueLevelWarn
			}
			rep.add(level, "node_invalid", model.EntityNode, n.ID, "%v", err)
		}
		if n.FolderID != "" && !folderIDs[n.FolderID] {
			rep.add(DoctorIssueLevelWarn, "unknown_folder", model.EntityNode, n.ID,
				"folder %s does not exist; lines indented under it stay visual", n.FolderID)
		}
		if n.ExplicitParentID == "" {
			continue
		}
		if _, ok := byID[n.ExplicitParentID]; !ok {
			rep.add(DoctorIssueLevelError, "dangling_link", model.EntityNode, n.ID,
				"explicit parent %s does not exist", n.ExplicitParentID)
			continue
		}
		if linkCycle(byID, n) {
			rep.add(DoctorIssueLevelError, "link_cycle", model.EntityNode, n.ID,
				"explicit parent chain loops back to %s", n.ID)
		}
	}

	groups := map[GroupKey][]*model.Node{}
	for _, n := range nodes {
		k := GroupOf(n)
		groups[k] = append(groups[k], n)
	}
	keys := make([]GroupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	for _, k := range keys {
		g := groups[k]
		SortNodes(g)
		for _, v := range CheckGroup(k, g) {
			rep.add(DoctorIssueLevelWarn, "duplicate_order", model.EntityNode, v.IDs[0],
				"%s: order %d shared by %v", k, v.Order, v.IDs)
		}
	}

	if pendingKey != "" {
		raw, err := s.Load(pendingKey)
		if err != nil {
			return rep, err
		}
		if len(raw) > 0 {
			var ops []model.PendingOperation
			if err := json.Unmarshal(raw, &ops); err != nil {
				rep.add(DoctorIssueLevelError, "pending_queue_corrupt", "", "",
					"saved sync queue is unreadable and will be discarded: %v", err)
			} else {
				rep.Pending = len(ops)
			}
		}
	}
	return rep, nil
}

func linkCycle(byID map[string]*model.Node, n *model.Node) bool {
	seen := map[string]bool{n.ID: true}
	cur := n
	for cur.ExplicitParentID != "" {
		if seen[cur.ExplicitParentID] {
			return cur.ExplicitParentID == n.ID
		}
		p, ok := byID[cur.ExplicitParentID]
		if !ok {
			return false
		}
		seen[p.ID] = true
		cur = p
	}
	return false
}
