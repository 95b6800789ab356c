package mutate

import (
	"fmt"

	"jotline/internal/model"
)

// Op is one edit command. The concrete types below are the only implementations.
type Op interface {
	opName() string
}

type Create struct {
	ID          string // optional; generated when empty
	Container   model.ContainerKey
	AfterID     string
	Content     string
	IndentLevel int
}

// SetContent replaces a line's text. Due date and priority parsed earlier
// survive unless the new text restates them or the matching Clear flag is set.
type SetContent struct {
	ID            string
	Content       string
	ClearDue      bool
	ClearPriority bool
}

type ToggleTask struct{ ID string }

type SetStarred struct {
	ID      string
	Starred bool
}

type Split struct {
	ID     string
	Offset int
	NewID  string // optional
}

// DeleteBackward is delete-backward with the cursor at offset 0.
type DeleteBackward struct{ ID string }

type Indent struct{ ID string }

type Outdent struct{ ID string }

type Move struct {
	ID   string
	Drop Drop
}

type MoveSelection struct {
	IDs  []string
	Drop Drop
}

type Delete struct{ IDs []string }

type IndentMany struct{ IDs []string }

type OutdentMany struct{ IDs []string }

func (Create) opName() string         { return "create" }
func (SetContent) opName() string     { return "set-content" }
func (ToggleTask) opName() string     { return "toggle-task" }
func (SetStarred) opName() string     { return "set-starred" }
func (Split) opName() string          { return "split" }
func (DeleteBackward) opName() string { return "delete-backward" }
func (Indent) opName() string         { return "indent" }
func (Outdent) opName() string        { return "outdent" }
func (Move) opName() string           { return "move" }
func (MoveSelection) opName() string  { return "move-selection" }
func (Delete) opName() string         { return "delete" }
func (IndentMany) opName() string     { return "indent-many" }
func (OutdentMany) opName() string    { return "outdent-many" }

// Name returns a short label for logs.
func Name(op Op) string {
	if op == nil {
		return ""
	}
	return op.opName()
}

// Apply runs op against env.Nodes. On error the collection is restored to its
// prior state and the returned Delta is empty.
func Apply(env Env, op Op) (Delta, error) {
	tx := newTx(env)
	var err error
	switch o := op.(type) {
	case Create:
		err = create(tx, o)
	case SetContent:
		err = setContent(tx, o)
	case ToggleTask:
		err = toggleTask(tx, o)
	case SetStarred:
		err = setStarred(tx, o)
	case Split:
		err = split(tx, o)
	case DeleteBackward:
		err = deleteBackward(tx, o)
	case Indent:
		err = indent(tx, o)
	case Outdent:
		err = outdent(tx, o)
	case Move:
		err = move(tx, o)
	case MoveSelection:
		err = moveSelection(tx, o)
	case Delete:
		err = deleteMany(tx, o.IDs)
	case IndentMany:
		err = indentMany(tx, o.IDs)
	case OutdentMany:
		err = outdentMany(tx, o.IDs)
	case SetFolder:
		err = setFolder(tx, o)
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownOp, op)
	}
	if err != nil {
		tx.rollback()
		return Delta{}, err
	}
	return tx.commit(), nil
}
