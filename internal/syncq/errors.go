package syncq

import (
	"errors"
	"fmt"

	"jotline/internal/model"
)

var (
	// ErrTerminal marks an operation that was dropped after exhausting its
	// retries. The write it carried is lost.
	ErrTerminal = errors.New("sync operation dropped")

	// ErrNoHandler is logged for operations whose entityKind.kind has no
	// registered handler. Such operations stay queued.
	ErrNoHandler = errors.New("no handler registered")

	ErrClosed = errors.New("sync queue closed")
)

// TerminalError describes one dropped operation and the last handler error.
type TerminalError struct {
	Op  model.PendingOperation
	Err error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("%s %s dropped after %d attempts: %v", e.Op.HandlerKey(), e.Op.EntityID, e.Op.RetryCount, e.Err)
}

func (e *TerminalError) Unwrap() []error { return []error{ErrTerminal, e.Err} }
