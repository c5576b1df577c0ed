package types

import (
	"errors"
	"fmt"
)

// JoinConflictError reports two paths that disagree on a type under
// JoinFailFast.
type JoinConflictError struct {
	// Where names the joined position: a register, a parameter index or a
	// record key.
	Where string

	// Left and Right are the rendered types of the two sides. A side that
	// lacked a record key renders as "<absent>".
	Left  string
	Right string
}

// Error implements the error interface.
func (e *JoinConflictError) Error() string {
	return fmt.Sprintf("cannot join %s with %s at %s", e.Left, e.Right, e.Where)
}

// IsJoinConflict reports whether err is or wraps a JoinConflictError.
func IsJoinConflict(err error) bool {
	var jc *JoinConflictError
	return errors.As(err, &jc)
}

// MissingError reports a register or allocation absent from a bag. It
// always indicates a bug in an earlier phase.
type MissingError struct {
	What string
}

// Error implements the error interface.
func (e *MissingError) Error() string {
	return e.What + " not found in type bag"
}

// IsMissing reports whether err is or wraps a MissingError.
func IsMissing(err error) bool {
	var me *MissingError
	return errors.As(err, &me)
}

// ErrAlreadyAssigned is returned when a register is assigned twice.
var ErrAlreadyAssigned = errors.New("register already assigned")
