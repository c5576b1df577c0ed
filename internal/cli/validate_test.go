package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProgram(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidate_Valid(t *testing.T) {
	tests := []struct {
		file  string
		want  string
		entry string
	}{
		{"lt10.cue", "✓ Program valid: 2 function(s), 0 external(s)", "entry: main()"},
		{"greet.yaml", "✓ Program valid: 2 function(s), 1 external(s)", "entry: main(runtime)"},
		{"sum.yaml", "✓ Program valid: 1 function(s), 0 external(s)", "entry: sum(int 3)"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), filepath.Join("testdata", tt.file))
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
			assert.Contains(t, out, tt.entry)
		})
	}
}

func TestValidate_JSON(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), "testdata/lt10.cue")
	require.NoError(t, err)

	resp, data := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, true, data["valid"])
	assert.Equal(t, []any{"lt10", "main"}, data["functions"])
	assert.Equal(t, "main", data["entry"])
	assert.NotContains(t, data, "recursive")
}

func TestValidate_ListsRecursion(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "testdata/sum.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "recursive: sum → sum")
}

func TestValidate_StructuralProblem(t *testing.T) {
	path := writeProgram(t, "arity.yaml", `
functions:
  - name: f
    blocks:
      - name: e
        end:
          jump: {block: next}
      - name: next
        params: [x]
        end:
          return: {value: x}
`)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "f $")
}

func TestValidate_CUEPosition(t *testing.T) {
	path := writeProgram(t, "pos.cue", `functions: [{
	name: "f"
	blocks: [{
		name: "e"
		body: [{op: "not", dst: "y", args: ["x"]}]
		end: return: value: "y"
	}]
}]
`)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp, data := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_PROGRAM", resp.Error.Code)

	problems, ok := data["problems"].([]any)
	require.True(t, ok)
	require.Len(t, problems, 1)
	p := problems[0].(map[string]any)
	assert.Equal(t, "functions[0].blocks[0].body[0].args[0]", p["field"])
	assert.Equal(t, float64(5), p["line"])
	assert.Contains(t, p["message"], `register "x" is not defined`)
}

func TestValidate_MissingFile(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "testdata/nope.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [LOAD_FAILED]")
}

func TestProblem_String(t *testing.T) {
	tests := []struct {
		p    Problem
		want string
	}{
		{Problem{Message: "boom"}, "boom"},
		{Problem{Field: "yaml", Message: "bad"}, "yaml: bad"},
		{Problem{Function: "f", Block: "2", Message: "no terminator"}, "f $2: no terminator"},
		{Problem{Field: "functions[0]", Line: 3, Column: 7, Message: "x"}, "3:7 functions[0]: x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.p.String())
	}
}
