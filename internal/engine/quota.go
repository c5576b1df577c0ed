package engine

import (
	"errors"
	"fmt"
)

// Quota counts executed instructions and enforces a maximum.
//
// Memoization terminates type-stable recursion and the divergence check
// catches argument types that keep growing, but a loop whose block states
// keep widening, or a very large program, can still run for a long time.
// The quota bounds total work.
type Quota struct {
	maxSteps int
	current  int
}

// NewQuota creates a quota with the given limit.
func NewQuota(maxSteps int) *Quota {
	return &Quota{maxSteps: maxSteps}
}

// Check charges one step and validates it against the limit.
func (q *Quota) Check() error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{Steps: q.current, Limit: q.maxSteps}
	}
	return nil
}

// Reset sets the step counter back to 0.
func (q *Quota) Reset() {
	q.current = 0
}

// Current returns the number of steps charged so far.
func (q *Quota) Current() int {
	return q.current
}

// MaxSteps returns the limit.
func (q *Quota) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned by Quota.Check once the limit is passed.
// The engine wraps it in an Error with ErrCodeBudgetExceeded.
type StepsExceededError struct {
	Steps int
	Limit int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("exceeded max steps quota: %d steps > %d limit", e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
