package mutate

import (
	"errors"
	"fmt"
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

var (
	// ErrInvalidDrop is returned for drops onto the dragged node itself or into
	// its own explicit descendants.
	ErrInvalidDrop = errors.New("invalid drop target")

	// ErrNotLinkable is returned when dropping inside a node that has no folder.
	ErrNotLinkable = errors.New("target has no folder; cannot hold linked children")

	ErrUnknownOp = errors.New("unknown edit operation")
)
