package backend

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NinoDS/jssat/internal/assembler"
	"github.com/NinoDS/jssat/internal/engine"
	"github.com/NinoDS/jssat/internal/id"
	"github.com/NinoDS/jssat/internal/ir"
	"github.com/NinoDS/jssat/internal/testutil"
	"github.com/NinoDS/jssat/internal/types"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func assemble(t *testing.T, prog *ir.Program, fn ir.Function, args ...types.RegisterType) *assembler.Program {
	t.Helper()
	eng := engine.New(prog, engine.WithLogger(quiet))
	_, err := eng.Explore(fn, args)
	require.NoError(t, err)
	asm, err := assembler.Assemble(prog, eng, assembler.WithLogger(quiet))
	require.NoError(t, err)
	return asm
}

func TestLower_Greet(t *testing.T) {
	fx := testutil.Greet()
	out, err := Lower(assemble(t, fx.Program, fx.Entry, types.Runtime()), WithLogger(quiet))
	require.NoError(t, err)

	want := `const #0 const_0 = "hello"
opaque #0 Runtime
declare &0 print(*opaque#0, *i8, word) -> void

define external @0 main_0(%0: *opaque#0) -> void {
$0:
  call @1(%0)
  ret
}

define private @1 greet_0(%0: *opaque#0) -> void {
$0:
  %1 = const_ptr #0
  %2 = const_len #0
  call &0(%0, %1, %2)
  ret
}
`
	assert.Equal(t, want, out.String())
}

func TestLower_RuntimeIsImplicitFirstParameter(t *testing.T) {
	fx := testutil.Greet()
	out, err := Lower(assemble(t, fx.Program, fx.Entry, types.Runtime()), WithLogger(quiet))
	require.NoError(t, err)

	rt := Pointer(Opaque(out.Runtime))
	assert.Equal(t, RuntimeStructName, out.OpaqueStructs[out.Runtime].Name)
	for _, f := range out.SortedFunctions() {
		fn := out.Functions[f]
		require.NotEmpty(t, fn.Params, fn.Name)
		assert.True(t, fn.Params[0].Type.Equal(rt), fn.Name)
	}

	greet, ok := out.FunctionByName("greet_0")
	require.True(t, ok)
	insts := out.Functions[greet].Blocks[out.Functions[greet].Entry]
	call := insts[2].(*Call)
	assert.True(t, call.Callee.IsExternal)
	assert.Equal(t, out.Functions[greet].Params[0].Register, call.Args[0], "get_runtime reads the handle")
}

func TestLower_BytesParameterIsPointerAndLength(t *testing.T) {
	b := ir.NewBuilder()
	logFn := b.External("log", []ir.FFIType{ir.FFIRuntime, ir.FFIBytes}, ir.FFIVoid)
	say := b.Function("say", ir.SortRuntime, ir.SortBytes)
	se := say.Entry()
	se.CallExternVoid(logFn, say.Params()[0], say.Params()[1])
	se.ReturnVoid()
	prog, err := b.Finish()
	require.NoError(t, err)

	out, err := Lower(assemble(t, prog, say.ID(), types.Runtime(), types.Bytes()), WithLogger(quiet))
	require.NoError(t, err)

	fn := out.Functions[id.New[id.FunctionKind, id.Backend](0)]
	require.Len(t, fn.Params, 3)
	assert.Equal(t, "*i8", fn.Params[1].Type.String())
	assert.Equal(t, "word", fn.Params[2].Type.String())
	assert.Equal(t, LinkageExternal, fn.Linkage)

	insts := fn.Blocks[fn.Entry]
	require.Len(t, insts, 2)
	call := insts[0].(*Call)
	assert.Equal(t, []Register{fn.Params[0].Register, fn.Params[1].Register, fn.Params[2].Register}, call.Args)
}

func TestLower_ExternalResult(t *testing.T) {
	b := ir.NewBuilder()
	count := b.External("count", []ir.FFIType{ir.FFIRuntime}, ir.FFIInt)
	f := b.Function("f", ir.SortRuntime)
	fe := f.Entry()
	fe.Return(fe.CallExtern(count, f.Params()[0]))
	prog, err := b.Finish()
	require.NoError(t, err)

	out, err := Lower(assemble(t, prog, f.ID(), types.Runtime()), WithLogger(quiet))
	require.NoError(t, err)

	fn := out.Functions[id.New[id.FunctionKind, id.Backend](0)]
	assert.Equal(t, "i64", fn.Returns.String())
	insts := fn.Blocks[fn.Entry]
	require.Len(t, insts, 2)
	call := insts[0].(*Call)
	require.NotNil(t, call.Result)
	ret := insts[1].(*Return)
	require.NotNil(t, ret.Value)
	assert.Equal(t, *call.Result, *ret.Value)
	assert.Equal(t, "i64", out.Externals[id.New[id.ExternalFunctionKind, id.Backend](0)].Returns.String())
}

func TestLower_NotImplemented(t *testing.T) {
	t.Run("materialized boolean", func(t *testing.T) {
		fx := testutil.LessThanTen()
		_, err := Lower(assemble(t, fx.Program, fx.Entry, types.Int(3)), WithLogger(quiet))
		require.Error(t, err)
		assert.True(t, IsNotImplemented(err))
		assert.Contains(t, err.Error(), "make_bool true")
		assert.Contains(t, err.Error(), "lt10_0")
	})

	t.Run("branching", func(t *testing.T) {
		fx := testutil.SumTo()
		eng := engine.New(fx.Program, engine.WithLogger(quiet), engine.WithJoinPolicy(types.JoinWiden))
		_, err := eng.Explore(fx.Entry, []types.RegisterType{types.Number()})
		require.NoError(t, err)
		asm, err := assembler.Assemble(fx.Program, eng, assembler.WithLogger(quiet))
		require.NoError(t, err)

		_, err = Lower(asm, WithLogger(quiet))
		assert.True(t, IsNotImplemented(err))
	})

	t.Run("any external parameter", func(t *testing.T) {
		b := ir.NewBuilder()
		b.External("dump", []ir.FFIType{ir.FFIAny}, ir.FFIVoid)
		main := b.Function("main")
		main.Entry().ReturnVoid()
		prog, err := b.Finish()
		require.NoError(t, err)

		_, err = Lower(assemble(t, prog, main.ID()), WithLogger(quiet))
		require.Error(t, err)
		assert.True(t, IsNotImplemented(err))
		assert.Contains(t, err.Error(), "external parameter of type any")
	})
}

func TestValueType_String(t *testing.T) {
	tests := []struct {
		in   ValueType
		want string
	}{
		{Word(), "word"},
		{Bits(1), "i1"},
		{Bits(64), "i64"},
		{Opaque(id.New[id.OpaqueStructKind, id.Backend](2)), "opaque#2"},
		{Pointer(Pointer(Bits(8))), "**i8"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.String())
		})
	}
}

func TestValueType_Equal(t *testing.T) {
	assert.True(t, Pointer(Bits(8)).Equal(Pointer(Bits(8))))
	assert.False(t, Pointer(Bits(8)).Equal(Pointer(Word())))
	assert.False(t, Bits(8).Equal(Bits(16)))
	assert.True(t, Word().Equal(Word()))
}

func TestNotImplementedError_Error(t *testing.T) {
	err := &NotImplementedError{Function: "f_0", Block: "$0", What: "terminator \"unreachable\""}
	assert.Equal(t, `backend: terminator "unreachable" is not implemented (f_0 $0)`, err.Error())
	assert.Equal(t, "backend: records is not implemented", (&NotImplementedError{What: "records"}).Error())
}
