package cli

import (
	"errors"
	"fmt"

	"jotline/internal/mutate"
)

type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

func errUsage(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func errNotFound(kind, id string) error {
	return mutate.NotFoundError{Kind: kind, ID: id}
}

// ExitCode maps a command error to the process exit status: 2 for usage
// errors, 3 for missing ids, 4 for rejected edits, 1 otherwise.
func ExitCode(err error) int {
	var nf mutate.NotFoundError
	var ue usageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ue):
		return 2
	case errors.As(err, &nf):
		return 3
	case errors.Is(err, mutate.ErrInvalidDrop), errors.Is(err, mutate.ErrNotLinkable), errors.Is(err, mutate.ErrNotRootLine):
		return 4
	default:
		return 1
	}
}
