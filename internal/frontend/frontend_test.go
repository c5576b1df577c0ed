package frontend

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NinoDS/jssat/internal/engine"
	"github.com/NinoDS/jssat/internal/ir"
	"github.com/NinoDS/jssat/internal/types"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func explore(t *testing.T, mod *Module, fn string, args ...types.RegisterType) *engine.Invocation {
	t.Helper()
	f, ok := mod.Program.FunctionByName(fn)
	require.True(t, ok, "no function %s", fn)
	eng := engine.New(mod.Program, engine.WithLogger(quiet))
	inv, err := eng.Explore(f, args)
	require.NoError(t, err)
	return inv
}

// =============================================================================
// Loading
// =============================================================================

func TestLoadFile_CUE(t *testing.T) {
	mod, err := LoadFile(filepath.Join("testdata", "lt10.cue"))
	require.NoError(t, err)

	assert.Equal(t, "main", mod.Entry)
	assert.Empty(t, mod.Args)
	assert.Len(t, mod.Program.Functions, 2)

	inv := explore(t, mod, "main")
	assert.Equal(t, "value bool true", inv.Outcome.String())
}

func TestLoadFile_YAML(t *testing.T) {
	mod, err := LoadFile(filepath.Join("testdata", "greet.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "main", mod.Entry)
	assert.Equal(t, []string{"runtime"}, mod.Args)
	require.Len(t, mod.Program.Externals, 1)
	for _, decl := range mod.Program.Externals {
		assert.Equal(t, "print", decl.Name)
		assert.Equal(t, []ir.FFIType{ir.FFIRuntime, ir.FFIBytes}, decl.Params)
		assert.True(t, decl.IsVoid())
	}

	inv := explore(t, mod, "main", types.Runtime())
	assert.Equal(t, "void", inv.Outcome.String())
}

func TestLoadFile_Branching(t *testing.T) {
	mod, err := LoadFile(filepath.Join("testdata", "conditional.cue"))
	require.NoError(t, err)

	main, ok := mod.Program.FunctionByName("main")
	require.True(t, ok)
	assert.Len(t, mod.Program.Functions[main].Blocks, 3)

	eng := engine.New(mod.Program, engine.WithLogger(quiet))
	_, err = eng.Explore(main, []types.RegisterType{types.Boolean()})
	assert.True(t, engine.IsJoinConflict(err), "got %v", err)

	inv := explore(t, mod, "main", types.Bool(true))
	assert.Equal(t, "value int 2", inv.Outcome.String())
}

func TestLoadFile_Recursion(t *testing.T) {
	mod, err := LoadFile(filepath.Join("testdata", "sum.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"int 3"}, mod.Args)

	inv := explore(t, mod, "sum", types.Int(3))
	assert.Equal(t, "value int 6", inv.Outcome.String())
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join("testdata", "missing.cue"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	dir := t.TempDir()
	path := filepath.Join(dir, "prog.txt")
	require.NoError(t, os.WriteFile(path, []byte("functions: []"), 0o644))
	_, err = LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file extension")
}

func TestLoadFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.json")
	src := `{"functions": [{"name": "f", "blocks": [{"name": "entry", "body": [{"op": "bool", "dst": "t", "flag": true}], "end": {"return": {"value": "t"}}}]}]}`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	mod, err := LoadFile(path)
	require.NoError(t, err)
	inv := explore(t, mod, "f")
	assert.Equal(t, "value bool true", inv.Outcome.String())
}

// =============================================================================
// CUE schema
// =============================================================================

func TestLoadCUE_SchemaViolation(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown sort", `functions: [{name: "f", params: [{name: "x", sort: "float"}], blocks: [{name: "e", end: return: {}}]}]`},
		{"unknown op", `functions: [{name: "f", blocks: [{name: "e", body: [{op: "mul", dst: "x"}], end: return: {}}]}]`},
		{"unknown field", `functions: [{name: "f", blocks: [{name: "e", end: return: {}}], inline: true}]`},
		{"no blocks", `functions: [{name: "f", blocks: []}]`},
		{"bad name", `functions: [{name: "1f", blocks: [{name: "e", end: return: {}}]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCUE([]byte(tt.src), "bad.cue")
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "cue", ce.Field)
		})
	}
}

func TestLoadCUE_SyntaxError(t *testing.T) {
	_, err := LoadCUE([]byte(`functions: [`), "broken.cue")
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid())
	assert.Equal(t, "broken.cue", ce.Pos.Filename())
}

func TestLoadCUE_CompileErrorHasPosition(t *testing.T) {
	src := `functions: [{
	name: "f"
	blocks: [{
		name: "e"
		body: [{op: "not", dst: "y", args: ["x"]}]
		end: return: value: "y"
	}]
}]
`
	_, err := LoadCUE([]byte(src), "pos.cue")
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "functions[0].blocks[0].body[0].args[0]", ce.Field)
	assert.Contains(t, ce.Message, `register "x" is not defined`)
	require.True(t, ce.Pos.IsValid())
	assert.Equal(t, "pos.cue", ce.Pos.Filename())
	assert.Equal(t, 5, ce.Pos.Line())
}

// =============================================================================
// YAML
// =============================================================================

func TestLoadYAML_UnknownField(t *testing.T) {
	_, err := LoadYAML([]byte("functions: []\nsyncs: []\n"))
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "yaml", ce.Field)
	assert.Contains(t, ce.Message, "syncs")
}

func TestLoadYAML_Empty(t *testing.T) {
	_, err := LoadYAML(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty document")
}

// =============================================================================
// Compile
// =============================================================================

func block(name string, body []InstSpec, end EndSpec) BlockSpec {
	return BlockSpec{Name: name, Body: body, End: end}
}

func ret(v string) EndSpec { return EndSpec{Return: &ReturnSpec{Value: v}} }

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		spec  ProgramSpec
		field string
		msg   string
	}{
		{
			name: "duplicate function",
			spec: ProgramSpec{Functions: []FunctionSpec{
				{Name: "f", Blocks: []BlockSpec{block("e", nil, ret(""))}},
				{Name: "f", Blocks: []BlockSpec{block("e", nil, ret(""))}},
			}},
			field: "functions[1]",
			msg:   `function "f" declared twice`,
		},
		{
			name: "undefined register",
			spec: ProgramSpec{Functions: []FunctionSpec{
				{Name: "f", Blocks: []BlockSpec{block("e", nil, ret("x"))}},
			}},
			field: "functions[0].blocks[0].end.return.value",
			msg:   `register "x" is not defined in this block`,
		},
		{
			name: "register redefined",
			spec: ProgramSpec{Functions: []FunctionSpec{
				{Name: "f", Blocks: []BlockSpec{block("e", []InstSpec{
					{Op: "int", Dst: "x", Value: 1},
					{Op: "int", Dst: "x", Value: 2},
				}, ret("x"))}},
			}},
			field: "functions[0].blocks[0].body[1].dst",
			msg:   `register "x" defined twice in block`,
		},
		{
			name: "registers are block local",
			spec: ProgramSpec{Functions: []FunctionSpec{
				{Name: "f", Blocks: []BlockSpec{
					block("e", []InstSpec{{Op: "int", Dst: "x", Value: 1}}, EndSpec{Jump: &JumpSpec{Block: "next"}}),
					block("next", nil, ret("x")),
				}},
			}},
			field: "functions[0].blocks[1].end.return.value",
			msg:   `register "x" is not defined in this block`,
		},
		{
			name: "unknown call target",
			spec: ProgramSpec{Functions: []FunctionSpec{
				{Name: "f", Blocks: []BlockSpec{block("e", []InstSpec{{Op: "call", Target: "g"}}, ret(""))}},
			}},
			field: "functions[0].blocks[0].body[0].target",
			msg:   `unknown function "g"`,
		},
		{
			name: "unknown block",
			spec: ProgramSpec{Functions: []FunctionSpec{
				{Name: "f", Blocks: []BlockSpec{block("e", nil, EndSpec{Jump: &JumpSpec{Block: "nowhere"}})}},
			}},
			field: "functions[0].blocks[0].end.jump.block",
			msg:   `unknown block "nowhere"`,
		},
		{
			name: "two terminators",
			spec: ProgramSpec{Functions: []FunctionSpec{
				{Name: "f", Blocks: []BlockSpec{block("e", nil, EndSpec{Return: &ReturnSpec{}, Unreachable: true})}},
			}},
			field: "functions[0].blocks[0].end",
			msg:   "exactly one of",
		},
		{
			name: "missing destination",
			spec: ProgramSpec{Functions: []FunctionSpec{
				{Name: "f", Blocks: []BlockSpec{block("e", []InstSpec{{Op: "record"}}, ret(""))}},
			}},
			field: "functions[0].blocks[0].body[0].dst",
			msg:   "record needs a destination register",
		},
		{
			name: "destination on set",
			spec: ProgramSpec{Functions: []FunctionSpec{
				{Name: "f", Blocks: []BlockSpec{block("e", []InstSpec{
					{Op: "record", Dst: "r"},
					{Op: "int", Dst: "k", Value: 0},
					{Op: "set", Dst: "x", Args: []string{"r", "k"}, Key: "k"},
				}, ret(""))}},
			}},
			field: "functions[0].blocks[0].body[2].dst",
			msg:   "set produces no value",
		},
		{
			name: "arity",
			spec: ProgramSpec{Functions: []FunctionSpec{
				{Name: "f", Blocks: []BlockSpec{block("e", []InstSpec{
					{Op: "int", Dst: "x", Value: 1},
					{Op: "lt", Dst: "y", Args: []string{"x"}},
				}, ret(""))}},
			}},
			field: "functions[0].blocks[0].body[1]",
			msg:   "lt takes 2 arguments, got 1",
		},
		{
			name: "entry block params",
			spec: ProgramSpec{Functions: []FunctionSpec{
				{Name: "f", Blocks: []BlockSpec{{Name: "e", Params: []string{"x"}, End: ret("")}}},
			}},
			field: "functions[0].blocks[0].params",
			msg:   "the entry block takes the function parameters",
		},
		{
			name: "unknown entry",
			spec: ProgramSpec{
				Entry:     &EntrySpec{Function: "main"},
				Functions: []FunctionSpec{{Name: "f", Blocks: []BlockSpec{block("e", nil, ret(""))}}},
			},
			field: "entry.function",
			msg:   `unknown function "main"`,
		},
		{
			name: "void external parameter",
			spec: ProgramSpec{
				Externals: []ExternalSpec{{Name: "x", Params: []string{"void"}}},
			},
			field: "externals[0].params[0]",
			msg:   `invalid parameter type "void"`,
		},
		{
			name: "bad slot",
			spec: ProgramSpec{Functions: []FunctionSpec{
				{Name: "f", Blocks: []BlockSpec{block("e", []InstSpec{
					{Op: "record", Dst: "r"},
					{Op: "get", Dst: "v", Args: []string{"r"}, Slot: "Prototype"},
				}, ret(""))}},
			}},
			field: "functions[0].blocks[0].body[1].slot",
			msg:   `unknown slot "Prototype"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(&tt.spec)
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, ce.Message, tt.msg)
		})
	}
}

func TestCompile_ValidationErrorsAreWrapped(t *testing.T) {
	// Jump arity is checked by the program validator, not the compiler.
	spec := ProgramSpec{Functions: []FunctionSpec{{
		Name: "f",
		Blocks: []BlockSpec{
			block("e", nil, EndSpec{Jump: &JumpSpec{Block: "next"}}),
			{Name: "next", Params: []string{"x"}, End: ret("x")},
		},
	}}}
	_, err := Compile(&spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid program")
	var ve *ir.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestCompile_EveryOperation(t *testing.T) {
	spec := ProgramSpec{
		Externals: []ExternalSpec{{Name: "host", Params: []string{"runtime"}, Returns: "int"}},
		Globals:   []GlobalSpec{{Name: "counter", Sort: "number"}},
		Functions: []FunctionSpec{
			{Name: "id", Params: []ParamSpec{{Name: "x", Sort: "any"}}, Blocks: []BlockSpec{block("e", nil, ret("x"))}},
			{Name: "main", Params: []ParamSpec{{Name: "rt", Sort: "runtime"}}, Blocks: []BlockSpec{
				block("e", []InstSpec{
					{Op: "comment", Text: "start"},
					{Op: "string", Dst: "s", Text: "k"},
					{Op: "int", Dst: "i", Value: 4},
					{Op: "bool", Dst: "b", Flag: true},
					{Op: "trivial", Dst: "u", Item: "undefined"},
					{Op: "record", Dst: "r"},
					{Op: "list", Dst: "l"},
					{Op: "set", Args: []string{"r", "i"}, Key: "s"},
					{Op: "set", Args: []string{"r", "b"}, Slot: "[[Call]]"},
					{Op: "get", Dst: "g", Args: []string{"r"}, Key: "s"},
					{Op: "add", Dst: "sum", Args: []string{"g", "i"}},
					{Op: "eq", Dst: "same", Args: []string{"sum", "i"}},
					{Op: "or", Dst: "either", Args: []string{"same", "b"}},
					{Op: "not", Dst: "neither", Args: []string{"either"}},
					{Op: "fnptr", Dst: "p", Target: "id"},
					{Op: "call_virt", Dst: "v", Args: []string{"p", "u"}},
					{Op: "call", Dst: "w", Target: "id", Args: []string{"i"}},
					{Op: "call_extern", Dst: "h", Target: "host", Args: []string{"rt"}},
					{Op: "store", Target: "counter", Args: []string{"h"}},
					{Op: "load", Dst: "c", Target: "counter"},
				}, EndSpec{Branch: &BranchSpec{
					Cond: "neither",
					Then: JumpSpec{Block: "yes", Args: []string{"c"}},
					Else: JumpSpec{Block: "no"},
				}}),
				{Name: "yes", Params: []string{"c"}, End: ret("c")},
				block("no", nil, EndSpec{Unreachable: true}),
			}},
		},
	}
	mod, err := Compile(&spec)
	require.NoError(t, err)

	main, ok := mod.Program.FunctionByName("main")
	require.True(t, ok)
	fn := mod.Program.Functions[main]
	entry := fn.Blocks[fn.Entry]
	assert.Len(t, entry.Instructions, 20)
	assert.IsType(t, &ir.Comment{}, entry.Instructions[0])
	assert.IsType(t, &ir.CallVirt{}, entry.Instructions[15])
	assert.IsType(t, &ir.JumpIf{}, entry.End)
	assert.Len(t, mod.Program.Globals, 1)
	assert.Len(t, mod.Program.Constants, 1)
}
