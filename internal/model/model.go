package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxIndentDefault is the indent ceiling used when no configuration overrides it.
const MaxIndentDefault = 8

type ContainerKind string

const (
	ContainerDate   ContainerKind = "date"
	ContainerFolder ContainerKind = "folder"
)

// ContainerKey is the grouping scope of a root-level node: a calendar day or a folder.
type ContainerKey struct {
	Kind ContainerKind
	ID   string // YYYY-MM-DD for dates, folder id for folders
}

func DateContainer(d Date) ContainerKey {
	return ContainerKey{Kind: ContainerDate, ID: string(d)}
}

func FolderContainer(folderID string) ContainerKey {
	return ContainerKey{Kind: ContainerFolder, ID: strings.TrimSpace(folderID)}
}

func (k ContainerKey) IsZero() bool { return k.Kind == "" && k.ID == "" }

func (k ContainerKey) String() string {
	if k.IsZero() {
		return ""
	}
	return string(k.Kind) + ":" + k.ID
}

// Date returns the calendar day for date containers.
func (k ContainerKey) Date() (Date, bool) {
	if k.Kind != ContainerDate {
		return "", false
	}
	return Date(k.ID), true
}

// ParseContainerKey parses "date:YYYY-MM-DD" or "folder:<id>".
// A bare YYYY-MM-DD is accepted as a date container.
func ParseContainerKey(s string) (ContainerKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ContainerKey{}, errors.New("empty container key")
	}
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		d, err := ParseDate(s)
		if err != nil {
			return ContainerKey{}, fmt.Errorf("invalid container key %q (expected date:YYYY-MM-DD or folder:<id>)", s)
		}
		return DateContainer(d), nil
	}
	switch ContainerKind(strings.ToLower(kind)) {
	case ContainerDate:
		d, err := ParseDate(id)
		if err != nil {
			return ContainerKey{}, err
		}
		return DateContainer(d), nil
	case ContainerFolder:
		if strings.TrimSpace(id) == "" {
			return ContainerKey{}, errors.New("empty folder id in container key")
		}
		return FolderContainer(id), nil
	default:
		return ContainerKey{}, fmt.Errorf("invalid container kind %q", kind)
	}
}

func (k ContainerKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *ContainerKey) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*k = ContainerKey{}
		return nil
	}
	parsed, err := ParseContainerKey(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

type Priority string

const (
	PriorityNone   Priority = ""
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Task holds the inline task metadata of a node.
type Task struct {
	Completed   bool       `json:"completed"`
	DueDate     Date       `json:"dueDate,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type Node struct {
	ID          string       `json:"id"`
	Content     string       `json:"content"`
	IndentLevel int          `json:"indentLevel"`
	Order       int64        `json:"order"`
	Container   ContainerKey `json:"containerKey"`

	// ExplicitParentID links a node under an anchor in another sequence. It is only
	// ever set together with FolderID (copied from the anchor).
	ExplicitParentID string `json:"explicitParentId,omitempty"`
	FolderID         string `json:"folderId,omitempty"`

	Task    *Task `json:"task,omitempty"`
	Starred bool  `json:"starred"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (n *Node) IsExplicitChild() bool {
	return n != nil && n.ExplicitParentID != ""
}

func (n *Node) IsTask() bool {
	return n != nil && n.Task != nil
}

// Clone returns a deep copy; Task and CompletedAt are not shared.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Task != nil {
		t := *n.Task
		if n.Task.CompletedAt != nil {
			ts := *n.Task.CompletedAt
			t.CompletedAt = &ts
		}
		cp.Task = &t
	}
	return &cp
}

var (
	ErrMissingID         = errors.New("node: missing id")
	ErrMissingContainer  = errors.New("node: missing container key")
	ErrLinkWithoutFolder = errors.New("node: explicit parent set without folder id")
	ErrLinkedIndent      = errors.New("node: explicit child must have indent level 0")
	ErrSelfLink          = errors.New("node: explicit parent is the node itself")
)

// IndentRangeError reports an indent outside [0, max].
type IndentRangeError struct {
	ID     string
	Indent int
	Max    int
}

func (e IndentRangeError) Error() string {
	return fmt.Sprintf("node %s: indent %d outside [0, %d]", e.ID, e.Indent, e.Max)
}

// Validate checks the structural invariants of a node record.
func (n *Node) Validate(maxIndent int) error {
	if n == nil || strings.TrimSpace(n.ID) == "" {
		return ErrMissingID
	}
	if n.Container.IsZero() {
		return ErrMissingContainer
	}
	if n.IndentLevel < 0 || n.IndentLevel > maxIndent {
		return IndentRangeError{ID: n.ID, Indent: n.IndentLevel, Max: maxIndent}
	}
	if n.ExplicitParentID != "" {
		if n.FolderID == "" {
			return ErrLinkWithoutFolder
		}
		if n.IndentLevel != 0 {
			return ErrLinkedIndent
		}
		if n.ExplicitParentID == n.ID {
			return ErrSelfLink
		}
	}
	if n.Task != nil && !n.Task.Priority.Valid() {
		return fmt.Errorf("node %s: invalid priority %q", n.ID, n.Task.Priority)
	}
	return nil
}

type Folder struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	ParentFolderID string `json:"parentFolderId,omitempty"`
	Order          int64  `json:"order"`
}

type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

func (k OpKind) Valid() bool {
	return k == OpCreate || k == OpUpdate || k == OpDelete
}

type EntityKind string

const (
	EntityNode   EntityKind = "node"
	EntityFolder EntityKind = "folder"
)

func (k EntityKind) Valid() bool {
	return k == EntityNode || k == EntityFolder
}

// PendingOperation is a queued write that has not been confirmed by a remote handler.
type PendingOperation struct {
	ID         string         `json:"id"`
	Kind       OpKind         `json:"kind"`
	EntityKind EntityKind     `json:"entityKind"`
	EntityID   string         `json:"entityId"`
	Payload    map[string]any `json:"payload,omitempty"`
	EnqueuedAt time.Time      `json:"enqueuedAt"`
	RetryCount int            `json:"retryCount"`

	// Rev increments whenever a later enqueue is merged into this entry.
	Rev int `json:"rev"`
}

// HandlerKey is the "entityKind.kind" name handlers are registered under.
func (op PendingOperation) HandlerKey() string {
	return string(op.EntityKind) + "." + string(op.Kind)
}
