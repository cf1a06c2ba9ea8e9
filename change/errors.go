package change

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpected marks configuration and programming faults, such as invalid
	// metadata or a plugin that cannot be loaded.
	ErrUnexpected = errors.New("unexpected error")

	// ErrRollbackImpossible is returned when a change cannot be rolled back.
	ErrRollbackImpossible = errors.New("rollback impossible")
)

// kindError carries its own message while matching a sentinel kind with errors.Is.
type kindError struct {
	kind  error
	msg   string
	cause error
}

func (e *kindError) Error() string {
	return e.msg
}

func (e *kindError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

// Unexpected returns an ErrUnexpected error with the formatted message.
func Unexpected(format string, args ...any) error {
	return &kindError{kind: ErrUnexpected, msg: fmt.Sprintf(format, args...)}
}

// WrapUnexpected marks err as unexpected, keeping its message.
// Errors that already are unexpected or rollback-impossible are returned as is.
func WrapUnexpected(err error) error {
	if err == nil || errors.Is(err, ErrUnexpected) || errors.Is(err, ErrRollbackImpossible) {
		return err
	}
	return &kindError{kind: ErrUnexpected, msg: err.Error(), cause: err}
}

// RollbackImpossible returns an ErrRollbackImpossible error with the formatted message.
func RollbackImpossible(format string, args ...any) error {
	return &kindError{kind: ErrRollbackImpossible, msg: fmt.Sprintf(format, args...)}
}
