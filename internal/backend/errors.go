package backend

import (
	"errors"
	"fmt"
)

// NotImplementedError reports an assembled construct that has no lowering.
type NotImplementedError struct {
	Function string
	Block    string
	What     string
}

func (e *NotImplementedError) Error() string {
	loc := e.Function
	if e.Block != "" {
		loc += " " + e.Block
	}
	if loc == "" {
		return fmt.Sprintf("backend: %s is not implemented", e.What)
	}
	return fmt.Sprintf("backend: %s is not implemented (%s)", e.What, loc)
}

// IsNotImplemented reports whether err is or wraps a *NotImplementedError.
func IsNotImplemented(err error) bool {
	var ni *NotImplementedError
	return errors.As(err, &ni)
}
