package quicklook

import (
	"errors"
	"fmt"
)

// DebuggerError is returned when an extraction can not proceed because of
// the state of the debugger or of the inspected object.
type DebuggerError struct {
	Msg string
	Err error
}

func (err *DebuggerError) Error() string {
	if err.Err != nil {
		return err.Msg + ": " + err.Err.Error()
	}
	return err.Msg
}

func (err *DebuggerError) Unwrap() error {
	return err.Err
}

// Is reports whether target is a DebuggerError with the same message, so
// that wrapped instances match the sentinel values below.
func (err *DebuggerError) Is(target error) bool {
	t, ok := target.(*DebuggerError)
	return ok && t.Msg == err.Msg && t.Err == nil
}

var (
	// ErrNoTarget means there is no valid target or process to evaluate against.
	ErrNoTarget = &DebuggerError{Msg: "no valid target/process"}
	// ErrNilData means the data accessor returned a nil value.
	ErrNilData = &DebuggerError{Msg: "can't get debug data, make sure the object has a non-nil response to " + DataAccessor}
	// ErrReadMemory means the bytes of the data could not be read.
	ErrReadMemory = &DebuggerError{Msg: "couldn't read memory"}
	// ErrNoFilename means neither the caller nor the filename accessor provided a name.
	ErrNoFilename = &DebuggerError{Msg: "no filename provided"}
)

func wrap(sentinel *DebuggerError, err error) error {
	return &DebuggerError{Msg: sentinel.Msg, Err: err}
}

// NoTarget returns an ErrNoTarget error carrying the reason.
func NoTarget(reason string) error {
	return wrap(ErrNoTarget, errors.New(reason))
}

func evalError(accessor string, err error) error {
	var dbgErr *DebuggerError
	if errors.As(err, &dbgErr) {
		return err
	}
	return &DebuggerError{Msg: fmt.Sprintf("could not evaluate %s", accessor), Err: err}
}
