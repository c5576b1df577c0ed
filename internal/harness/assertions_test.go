package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NinoDS/jssat/internal/store"
)

var sampleTrace = []TraceEvent{
	{Seq: 0, Function: "main", Signature: "()", Outcome: "value bool true"},
	{Seq: 1, Function: "lt10", Signature: "(int 3)", Outcome: "value bool true"},
	{Seq: 2, Function: "lt10", Signature: "(int 100)", Outcome: "value bool false"},
}

func TestAssertSpecialization(t *testing.T) {
	tests := []struct {
		name string
		a    Assertion
		ok   bool
	}{
		{"function only", Assertion{Function: "lt10"}, true},
		{"signature", Assertion{Function: "lt10", Signature: "(int 100)"}, true},
		{"signature and outcome", Assertion{Function: "lt10", Signature: "(int 3)", Outcome: "value bool true"}, true},
		{"wrong outcome", Assertion{Function: "lt10", Signature: "(int 3)", Outcome: "value bool false"}, false},
		{"unknown function", Assertion{Function: "gt10"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertSpecialization(sampleTrace, tt.a)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, AssertSpecialization, ae.Type)
		})
	}
}

func TestAssertSpecializationOrder(t *testing.T) {
	assert.NoError(t, assertSpecializationOrder(sampleTrace, Assertion{Functions: []string{"main", "lt10"}}))

	err := assertSpecializationOrder(sampleTrace, Assertion{Functions: []string{"lt10", "main"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lt10 (pos 2) should be before main (pos 1)")

	err = assertSpecializationOrder(sampleTrace, Assertion{Functions: []string{"main", "sum"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing function: sum")
}

func TestAssertSpecializationCount(t *testing.T) {
	assert.NoError(t, assertSpecializationCount(sampleTrace, Assertion{Function: "lt10", Count: 2}))
	assert.NoError(t, assertSpecializationCount(sampleTrace, Assertion{Function: "sum", Count: 0}))

	err := assertSpecializationCount(sampleTrace, Assertion{Function: "main", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 specializations")
}

func TestAssertAssembledContains(t *testing.T) {
	run := &store.Run{Assembled: "fn @0 main_0() -> void {\n}\n"}
	assert.NoError(t, assertAssembledContains(run, Assertion{Text: "main_0"}))

	err := assertAssembledContains(run, Assertion{Text: "lt10"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assembled program:\nfn @0")

	err = assertAssembledContains(&store.Run{}, Assertion{Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no assembled program")
}

func TestAssertStored_Errors(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	err = assertStored(ctx, st, "run-1", Assertion{Table: "sqlite_master", Expect: map[string]any{"x": 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown table "sqlite_master"`)

	err = assertStored(ctx, st, "run-1", Assertion{
		Table:  "runs",
		Where:  map[string]any{"id; DROP TABLE runs": 1},
		Expect: map[string]any{"status": "ok"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid column name")

	err = assertStored(ctx, st, "run-1", Assertion{Table: "runs", Expect: map[string]any{"status": "ok"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row not found")
}

func TestBuildWhereClause(t *testing.T) {
	sql, args, err := buildWhereClause(map[string]any{"seq": 1, "block": "$0"})
	require.NoError(t, err)
	assert.Equal(t, "block = ? AND seq = ?", sql)
	assert.Equal(t, []any{"$0", 1}, args)

	sql, args, err = buildWhereClause(nil)
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Nil(t, args)
}

func TestStoredValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		expected any
		actual   any
		want     bool
	}{
		{"string", "ok", "ok", true},
		{"bytes", "ok", []byte("ok"), true},
		{"int", 1, int64(1), true},
		{"int mismatch", 1, int64(2), false},
		{"bool from int", true, int64(1), true},
		{"false from int", false, int64(0), true},
		{"type mismatch", "1", int64(1), false},
		{"nil", nil, nil, true},
		{"one nil", "x", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, storedValuesEqual(tt.expected, tt.actual))
		})
	}
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: "magic"}, {Type: AssertStored, Table: "runs"}}, nil)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], `unknown assertion type "magic"`)
	assert.Contains(t, errs[1], "requires database context")
}
