package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Error represents a failure detected during symbolic execution.
//
// Errors abort the whole exploration; there is no partial result. The
// structured fields name where the failure happened so a report can point
// at the offending instruction.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Function names the function being specialized, if any.
	Function string

	// Block identifies the block being executed, e.g. "$3".
	Block string

	// Register identifies the register involved, e.g. "%7".
	Register string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeLookupFailed indicates an identifier missing from its table.
	// It always points at a bug in an earlier phase.
	ErrCodeLookupFailed ErrorCode = "LOOKUP_FAILED"

	// ErrCodeJoinConflict indicates two paths disagreeing on a type under
	// the fail-fast join policy.
	ErrCodeJoinConflict ErrorCode = "JOIN_CONFLICT"

	// ErrCodeDivergent indicates a function whose argument types keep
	// changing across nested specializations.
	ErrCodeDivergent ErrorCode = "DIVERGENT_SPECIALIZATION"

	// ErrCodeBudgetExceeded indicates the step budget ran out.
	ErrCodeBudgetExceeded ErrorCode = "BUDGET_EXCEEDED"

	// ErrCodeNotImplemented indicates an operation the engine cannot model.
	ErrCodeNotImplemented ErrorCode = "NOT_IMPLEMENTED"

	// ErrCodeTypeMismatch indicates an operand of the wrong type.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"
)

// Error implements the error interface.
func (e *Error) Error() string {
	var where []string
	if e.Function != "" {
		where = append(where, "fn="+e.Function)
	}
	if e.Block != "" {
		where = append(where, "block="+e.Block)
	}
	if e.Register != "" {
		where = append(where, "reg="+e.Register)
	}
	if len(where) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(where, ", "))
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// CodeOf returns the code of an engine error, or "" for other errors.
func CodeOf(err error) ErrorCode {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// IsLookupFailed returns true if err is a lookup failure.
func IsLookupFailed(err error) bool { return hasCode(err, ErrCodeLookupFailed) }

// IsJoinConflict returns true if err is a join conflict.
// Uses errors.As to handle wrapped errors.
func IsJoinConflict(err error) bool { return hasCode(err, ErrCodeJoinConflict) }

// IsDivergent returns true if err reports a divergent specialization.
func IsDivergent(err error) bool { return hasCode(err, ErrCodeDivergent) }

// IsBudgetExceeded returns true if err reports an exhausted step budget.
// Matches both an Error with ErrCodeBudgetExceeded and a bare
// StepsExceededError.
func IsBudgetExceeded(err error) bool {
	if hasCode(err, ErrCodeBudgetExceeded) {
		return true
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

// IsNotImplemented returns true if err reports an unsupported operation.
func IsNotImplemented(err error) bool { return hasCode(err, ErrCodeNotImplemented) }

// IsTypeMismatch returns true if err reports an operand of the wrong type.
func IsTypeMismatch(err error) bool { return hasCode(err, ErrCodeTypeMismatch) }

// NewDivergentError creates an Error listing the signatures a function was
// specialized with, outermost first.
func NewDivergentError(function string, signatures []string) *Error {
	details := make(map[string]string, len(signatures))
	for i, s := range signatures {
		details[fmt.Sprintf("signature_%d", i)] = s
	}
	return &Error{
		Code: ErrCodeDivergent,
		Message: fmt.Sprintf("argument types keep changing across %d nested specializations: %s",
			len(signatures), strings.Join(signatures, " -> ")),
		Function: function,
		Details:  details,
	}
}

// NewBudgetError creates an Error for an exhausted step budget.
func NewBudgetError(function string, steps, maxSteps int) *Error {
	return &Error{
		Code:     ErrCodeBudgetExceeded,
		Message:  fmt.Sprintf("exploration exceeded max steps (%d > %d)", steps, maxSteps),
		Function: function,
		Details: map[string]string{
			"steps":     fmt.Sprintf("%d", steps),
			"max_steps": fmt.Sprintf("%d", maxSteps),
		},
	}
}
