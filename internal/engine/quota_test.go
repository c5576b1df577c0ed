package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestQuota_WithinLimit tests normal operation within quota.
func TestQuota_WithinLimit(t *testing.T) {
	q := NewQuota(10)

	for i := 0; i < 10; i++ {
		assert.NoError(t, q.Check(), "step %d should be allowed", i+1)
	}

	assert.Equal(t, 10, q.Current())
	assert.Equal(t, 10, q.MaxSteps())
}

// TestQuota_ExceedsLimit tests the error returned past the limit.
func TestQuota_ExceedsLimit(t *testing.T) {
	q := NewQuota(5)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Check())
	}

	err := q.Check()
	require.Error(t, err)

	var stepsErr *StepsExceededError
	require.ErrorAs(t, err, &stepsErr)
	assert.Equal(t, 6, stepsErr.Steps)
	assert.Equal(t, 5, stepsErr.Limit)
}

func TestQuota_Reset(t *testing.T) {
	q := NewQuota(5)
	for i := 0; i < 5; i++ {
		_ = q.Check()
	}
	assert.Equal(t, 5, q.Current())

	q.Reset()
	assert.Equal(t, 0, q.Current())
	for i := 0; i < 5; i++ {
		assert.NoError(t, q.Check())
	}
}

func TestQuota_ZeroLimit(t *testing.T) {
	q := NewQuota(0)
	assert.True(t, IsStepsExceededError(q.Check()))
}

func TestStepsExceededError_Error(t *testing.T) {
	err := &StepsExceededError{Steps: 1001, Limit: 1000}
	assert.Equal(t, "exceeded max steps quota: 1001 steps > 1000 limit", err.Error())
}

func TestIsStepsExceededError(t *testing.T) {
	stepsErr := &StepsExceededError{Steps: 10, Limit: 5}

	assert.True(t, IsStepsExceededError(stepsErr))
	assert.False(t, IsStepsExceededError(nil))
	assert.False(t, IsStepsExceededError(assert.AnError))
}

func TestEngine_DefaultMaxSteps(t *testing.T) {
	e := New(nil)
	assert.Equal(t, DefaultMaxSteps, e.quota.MaxSteps())
	assert.Equal(t, DefaultMaxDepth, e.maxDepth)
}

func TestEngine_WithMaxSteps(t *testing.T) {
	e := New(nil, WithMaxSteps(42))
	assert.Equal(t, 42, e.quota.MaxSteps())
}
