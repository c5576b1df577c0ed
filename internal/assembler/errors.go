package assembler

import (
	"errors"
	"fmt"
	"strings"
)

// Error reports an inconsistency between the program and the engine
// results. It always points at a bug in an earlier phase: the engine
// guarantees every explored block and call is assemblable.
type Error struct {
	// Function is the assembled function name, e.g. "lt10_0".
	Function string

	// Block is the source block, e.g. "$3".
	Block string

	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var where []string
	if e.Function != "" {
		where = append(where, "fn="+e.Function)
	}
	if e.Block != "" {
		where = append(where, "block="+e.Block)
	}
	if len(where) == 0 {
		return "assemble: " + e.Message
	}
	return fmt.Sprintf("assemble: %s (%s)", e.Message, strings.Join(where, ", "))
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsError reports whether err is or wraps an assembler Error.
func IsError(err error) bool {
	var ae *Error
	return errors.As(err, &ae)
}
