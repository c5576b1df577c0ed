package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSample builds a two-function program used by several tests.
func buildSample(t *testing.T) *Program {
	t.Helper()
	b := NewBuilder()
	print := b.External("print", []FFIType{FFIRuntime, FFIBytes}, FFIVoid)

	f := b.Function("lt10", SortNumber)
	e := f.Entry()
	ten := e.MakeInteger(10)
	e.Return(e.LessThan(f.Params()[0], ten))

	main := b.Function("main")
	m := main.Entry()
	rt := m.MakeTrivial(TrivialRuntime)
	s := m.MakeString("hi")
	m.CallExternVoid(print, rt, s)
	m.ReturnVoid()

	prog, err := b.Finish()
	require.NoError(t, err)
	return prog
}

// =============================================================================
// Builder
// =============================================================================

func TestBuilder_ConstantsAreInterned(t *testing.T) {
	b := NewBuilder()
	a := b.Constant("x")
	c := b.Constant("y")
	again := b.Constant("x")

	assert.Equal(t, a, again)
	assert.NotEqual(t, a, c)
	assert.Len(t, b.Program().Constants, 2)
}

func TestBuilder_FunctionEntryParams(t *testing.T) {
	b := NewBuilder()
	f := b.Function("f", SortAny, SortBytes)

	fn := b.Program().Functions[f.ID()]
	require.NotNil(t, fn.EntryBlock())
	assert.Equal(t, f.Entry().ID(), fn.Entry)
	assert.Len(t, f.Params(), 2)
	assert.Equal(t, []Sort{SortAny, SortBytes}, fn.ParamSorts)
}

func TestBuilder_RegistersUniqueAcrossFunctions(t *testing.T) {
	b := NewBuilder()
	f := b.Function("f", SortAny)
	g := b.Function("g", SortAny)

	assert.NotEqual(t, f.Params()[0], g.Params()[0])
}

func TestProgram_FunctionByName(t *testing.T) {
	prog := buildSample(t)

	f, ok := prog.FunctionByName("main")
	require.True(t, ok)
	assert.Equal(t, "main", prog.Functions[f].Name)

	_, ok = prog.FunctionByName("missing")
	assert.False(t, ok)
}

func TestProgram_BasicBlockLookup(t *testing.T) {
	prog := buildSample(t)
	f, _ := prog.FunctionByName("lt10")

	blk, err := prog.BasicBlock(f, prog.Functions[f].Entry)
	require.NoError(t, err)
	assert.Len(t, blk.Instructions, 2)

	_, err = prog.BasicBlock(f, Block{}.Next().Next().Next())
	assert.Error(t, err)
}

// =============================================================================
// Instruction contract
// =============================================================================

func TestInstructions_Contract(t *testing.T) {
	b := NewBuilder()
	f := b.Function("f", SortAny, SortAny)
	e := f.Entry()
	x, y := f.Params()[0], f.Params()[1]
	rec := e.NewRecord()
	key := e.MakeString("k")
	e.RecordSet(rec, PropKey(key), x)
	got := e.RecordGet(rec, SlotKey(SlotCall))
	sum := e.Call(f.ID(), x, got)
	e.Return(sum)

	insts := b.Program().Functions[f.ID()].EntryBlock().Instructions
	set := insts[2].(*RecordSet)
	get := insts[3].(*RecordGet)
	call := insts[4].(*CallStatic)

	_, declares := set.DeclaredRegister()
	assert.False(t, declares)
	assert.Equal(t, []Register{rec, key, x}, set.UsedRegisters())
	assert.False(t, set.IsPure())

	d, declares := get.DeclaredRegister()
	assert.True(t, declares)
	assert.Equal(t, got, d)
	assert.Equal(t, []Register{rec}, get.UsedRegisters(), "slot keys read no register")
	assert.True(t, get.IsPure())

	assert.False(t, call.IsPure())
	for _, p := range call.UsedRegistersMut() {
		*p = y
	}
	assert.Equal(t, []Register{y, y}, call.Args)
}

func TestTerminators_Successors(t *testing.T) {
	b := NewBuilder()
	f := b.Function("f", SortBoolean)
	e := f.Entry()
	then := f.NewBlock()
	els := f.NewBlock()
	p := then.Param()
	e.JumpIf(f.Params()[0], then, []Register{f.Params()[0]}, els, nil)
	then.Return(p)
	els.Unreachable()

	end := b.Program().Functions[f.ID()].EntryBlock().End
	succ := end.Successors()
	require.Len(t, succ, 2)
	assert.Equal(t, then.ID(), succ[0].Block)
	assert.Equal(t, els.ID(), succ[1].Block)
	assert.Equal(t, []Register{f.Params()[0], f.Params()[0]}, end.UsedRegisters())
	assert.False(t, end.IsPure())
}

// =============================================================================
// Validate
// =============================================================================

func TestValidate_Sample(t *testing.T) {
	assert.NoError(t, buildSample(t).Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
		want  string
	}{
		{
			name: "missing terminator",
			build: func(b *Builder) {
				b.Function("f")
			},
			want: "missing terminator",
		},
		{
			name: "dangling register",
			build: func(b *Builder) {
				g := b.Function("g", SortAny)
				f := b.Function("f")
				f.Entry().Return(g.Params()[0])
			},
			want: "before definition",
		},
		{
			name: "jump arity",
			build: func(b *Builder) {
				f := b.Function("f")
				next := f.NewBlock()
				next.Param()
				next.ReturnVoid()
				f.Entry().Jump(next)
			},
			want: "passes 0 arguments, block takes 1",
		},
		{
			name: "call arity",
			build: func(b *Builder) {
				g := b.Function("g", SortAny)
				g.Entry().ReturnVoid()
				f := b.Function("f")
				f.Entry().CallVoid(g.ID())
				f.Entry().ReturnVoid()
			},
			want: "g takes 1 arguments, got 0",
		},
		{
			name: "void external result used",
			build: func(b *Builder) {
				ext := b.External("log", nil, FFIVoid)
				f := b.Function("f")
				f.Entry().CallExtern(ext)
				f.Entry().ReturnVoid()
			},
			want: "returns void but its result is used",
		},
		{
			name: "entry sort mismatch",
			build: func(b *Builder) {
				f := b.Function("f", SortAny)
				f.Entry().ReturnVoid()
				b.Program().Functions[f.ID()].ParamSorts = nil
			},
			want: "entry block has 1 parameters but 0 sorts are declared",
		},
		{
			name: "duplicate name",
			build: func(b *Builder) {
				b.Function("f").Entry().ReturnVoid()
				b.Function("f").Entry().ReturnVoid()
			},
			want: "duplicate function name",
		},
		{
			name: "unknown sort",
			build: func(b *Builder) {
				b.Global("g", Sort("float"))
			},
			want: `unknown sort "float"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			tt.build(b)

			_, err := b.Finish()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	b := NewBuilder()
	b.Function("a")
	b.Function("b")

	err := b.Program().Validate()
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "a", ve.Function, "first problem in function order")
	assert.Contains(t, err.Error(), "b $1: missing terminator")
}

// =============================================================================
// Display
// =============================================================================

func TestProgram_String(t *testing.T) {
	want := `const #0 = "hi"
extern &0 print(runtime, bytes) -> void

fn @0 lt10(number) entry $0 {
$0(%0):
  %1 = make_int 10
  %2 = lt %0, %1
  return %2
}

fn @1 main() entry $1 {
$1():
  %3 = make_trivial runtime
  %4 = make_bytes #0
  call_extern &0(%3, %4)
  return
}
`
	assert.Equal(t, want, buildSample(t).String())
}

func TestParseHelpers(t *testing.T) {
	item, ok := ParseTrivialItem("undefined")
	assert.True(t, ok)
	assert.Equal(t, TrivialUndefined, item)

	slot, ok := ParseInternalSlot("[[HostDefined]]")
	assert.True(t, ok)
	assert.Equal(t, SlotHostDefined, slot)

	op, ok := ParseBinaryKind("add")
	assert.True(t, ok)
	assert.Equal(t, OpAdd, op)

	_, ok = ParseBinaryKind("mul")
	assert.False(t, ok)
}
