package ir

import (
	"github.com/NinoDS/jssat/internal/id"
)

// Builder constructs a Program. Identifiers are minted by program-wide
// counters, so registers are unique across functions.
//
// Example:
//
//	b := ir.NewBuilder()
//	f := b.Function("lt10", ir.SortNumber)
//	entry := f.Entry()
//	ten := entry.MakeInteger(10)
//	entry.Return(entry.LessThan(f.Params()[0], ten))
//	prog, err := b.Finish()
type Builder struct {
	prog       *Program
	constants  id.Counter[id.ConstantKind, id.IR]
	globals    id.Counter[id.GlobalKind, id.IR]
	externals  id.Counter[id.ExternalFunctionKind, id.IR]
	functions  id.Counter[id.FunctionKind, id.IR]
	blocks     id.Counter[id.BlockKind, id.IR]
	registers  id.Counter[id.RegisterKind, id.IR]
	constIndex map[string]Constant
}

// NewBuilder returns a builder for an empty program.
func NewBuilder() *Builder {
	return &Builder{
		prog:       NewProgram(),
		constIndex: make(map[string]Constant),
	}
}

// Constant interns a string constant.
func (b *Builder) Constant(payload string) Constant {
	if c, ok := b.constIndex[payload]; ok {
		return c
	}
	c := b.constants.Next()
	b.constIndex[payload] = c
	b.prog.Constants[c] = []byte(payload)
	return c
}

// Global declares a global.
func (b *Builder) Global(name string, sort Sort) Global {
	g := b.globals.Next()
	b.prog.Globals[g] = &GlobalDecl{Name: name, Sort: sort}
	return g
}

// External declares an external function.
func (b *Builder) External(name string, params []FFIType, returns FFIType) ExternalFunction {
	e := b.externals.Next()
	b.prog.Externals[e] = &ExternalFunctionDecl{Name: name, Params: params, Returns: returns}
	return e
}

// Function declares a function with the given parameter sorts and returns
// a builder positioned on its entry block.
func (b *Builder) Function(name string, sorts ...Sort) *FunctionBuilder {
	f := &FunctionBuilder{
		b:  b,
		id: b.functions.Next(),
		fn: &Func{Name: name, ParamSorts: sorts, Blocks: make(map[Block]*BasicBlock)},
	}
	b.prog.Functions[f.id] = f.fn
	f.entry = f.NewBlock()
	f.fn.Entry = f.entry.id
	for range sorts {
		f.entry.Param()
	}
	return f
}

// Program returns the program built so far without validating it.
func (b *Builder) Program() *Program {
	return b.prog
}

// Finish validates and returns the program.
func (b *Builder) Finish() (*Program, error) {
	if err := b.prog.Validate(); err != nil {
		return nil, err
	}
	return b.prog, nil
}

// FunctionBuilder adds blocks to one function.
type FunctionBuilder struct {
	b     *Builder
	id    Function
	fn    *Func
	entry *BlockBuilder
}

// ID returns the function identifier.
func (f *FunctionBuilder) ID() Function { return f.id }

// Entry returns the entry block builder.
func (f *FunctionBuilder) Entry() *BlockBuilder { return f.entry }

// Params returns the entry block parameters.
func (f *FunctionBuilder) Params() []Register { return f.entry.block.Params }

// NewBlock appends an empty block.
func (f *FunctionBuilder) NewBlock() *BlockBuilder {
	bb := &BlockBuilder{f: f, id: f.b.blocks.Next(), block: &BasicBlock{}}
	f.fn.Blocks[bb.id] = bb.block
	return bb
}

// BlockBuilder appends instructions to one block.
type BlockBuilder struct {
	f     *FunctionBuilder
	id    Block
	block *BasicBlock
}

// ID returns the block identifier.
func (bb *BlockBuilder) ID() Block { return bb.id }

// Param appends a block parameter.
func (bb *BlockBuilder) Param() Register {
	r := bb.fresh()
	bb.block.Params = append(bb.block.Params, r)
	return r
}

func (bb *BlockBuilder) fresh() Register {
	return bb.f.b.registers.Next()
}

func (bb *BlockBuilder) emit(inst Instruction) {
	bb.block.Instructions = append(bb.block.Instructions, inst)
}

// NewRecord allocates a traced record.
func (bb *BlockBuilder) NewRecord() Register {
	r := bb.fresh()
	bb.emit(&NewRecord{Result: r, Kind: KindRecord, GC: GCTracing})
	return r
}

// NewList allocates a traced list.
func (bb *BlockBuilder) NewList() Register {
	r := bb.fresh()
	bb.emit(&NewRecord{Result: r, Kind: KindList, GC: GCTracing})
	return r
}

// RecordGet reads rec[key].
func (bb *BlockBuilder) RecordGet(rec Register, key RecordKey) Register {
	r := bb.fresh()
	bb.emit(&RecordGet{Result: r, Record: rec, Key: key})
	return r
}

// RecordSet writes rec[key] = value.
func (bb *BlockBuilder) RecordSet(rec Register, key RecordKey, value Register) {
	bb.emit(&RecordSet{Record: rec, Key: key, Value: value})
}

// MakeTrivial produces a payload-free value.
func (bb *BlockBuilder) MakeTrivial(item TrivialItem) Register {
	r := bb.fresh()
	bb.emit(&MakeTrivial{Result: r, Item: item})
	return r
}

// MakeString interns s and produces it.
func (bb *BlockBuilder) MakeString(s string) Register {
	r := bb.fresh()
	bb.emit(&MakeBytes{Result: r, Constant: bb.f.b.Constant(s)})
	return r
}

// MakeInteger produces an integer literal.
func (bb *BlockBuilder) MakeInteger(v int64) Register {
	r := bb.fresh()
	bb.emit(&MakeInteger{Result: r, Value: v})
	return r
}

// MakeBoolean produces a boolean literal.
func (bb *BlockBuilder) MakeBoolean(v bool) Register {
	r := bb.fresh()
	bb.emit(&MakeBoolean{Result: r, Value: v})
	return r
}

// FnPtr produces a pointer to f.
func (bb *BlockBuilder) FnPtr(f Function) Register {
	r := bb.fresh()
	bb.emit(&GetFnPtr{Result: r, Function: f})
	return r
}

// Binary applies op to lhs and rhs.
func (bb *BlockBuilder) Binary(op BinaryKind, lhs, rhs Register) Register {
	r := bb.fresh()
	bb.emit(&BinaryOp{Result: r, Op: op, Lhs: lhs, Rhs: rhs})
	return r
}

// LessThan is Binary(OpLessThan, lhs, rhs).
func (bb *BlockBuilder) LessThan(lhs, rhs Register) Register {
	return bb.Binary(OpLessThan, lhs, rhs)
}

// Equals is Binary(OpEquals, lhs, rhs).
func (bb *BlockBuilder) Equals(lhs, rhs Register) Register {
	return bb.Binary(OpEquals, lhs, rhs)
}

// Add is Binary(OpAdd, lhs, rhs).
func (bb *BlockBuilder) Add(lhs, rhs Register) Register {
	return bb.Binary(OpAdd, lhs, rhs)
}

// Or is Binary(OpOr, lhs, rhs).
func (bb *BlockBuilder) Or(lhs, rhs Register) Register {
	return bb.Binary(OpOr, lhs, rhs)
}

// Negate is boolean negation.
func (bb *BlockBuilder) Negate(operand Register) Register {
	r := bb.fresh()
	bb.emit(&Negate{Result: r, Operand: operand})
	return r
}

// Call calls f and returns the result register.
func (bb *BlockBuilder) Call(f Function, args ...Register) Register {
	r := bb.fresh()
	bb.emit(&CallStatic{Result: &r, Function: f, Args: args})
	return r
}

// CallVoid calls f discarding any result.
func (bb *BlockBuilder) CallVoid(f Function, args ...Register) {
	bb.emit(&CallStatic{Function: f, Args: args})
}

// CallExtern calls an external function and returns the result register.
func (bb *BlockBuilder) CallExtern(f ExternalFunction, args ...Register) Register {
	r := bb.fresh()
	bb.emit(&CallExtern{Result: &r, Function: f, Args: args})
	return r
}

// CallExternVoid calls an external function discarding any result.
func (bb *BlockBuilder) CallExternVoid(f ExternalFunction, args ...Register) {
	bb.emit(&CallExtern{Function: f, Args: args})
}

// CallVirt calls through a function pointer.
func (bb *BlockBuilder) CallVirt(fnPtr Register, args ...Register) Register {
	r := bb.fresh()
	bb.emit(&CallVirt{Result: &r, FnPtr: fnPtr, Args: args})
	return r
}

// LoadGlobal reads g.
func (bb *BlockBuilder) LoadGlobal(g Global) Register {
	r := bb.fresh()
	bb.emit(&LoadGlobal{Result: r, Global: g})
	return r
}

// StoreGlobal writes g.
func (bb *BlockBuilder) StoreGlobal(g Global, value Register) {
	bb.emit(&StoreGlobal{Global: g, Value: value})
}

// RefIsEmpty tests a reference cell for the empty marker.
func (bb *BlockBuilder) RefIsEmpty(ref Register) Register {
	r := bb.fresh()
	bb.emit(&RefIsEmpty{Result: r, Ref: ref})
	return r
}

// RefDeref reads a reference cell.
func (bb *BlockBuilder) RefDeref(ref Register) Register {
	r := bb.fresh()
	bb.emit(&RefDeref{Result: r, Ref: ref})
	return r
}

// Comment annotates the block.
func (bb *BlockBuilder) Comment(text string) {
	bb.emit(&Comment{Text: text})
}

// Jump ends the block with an unconditional jump.
func (bb *BlockBuilder) Jump(target *BlockBuilder, args ...Register) {
	bb.block.End = &Jump{Target: BlockJump{Block: target.id, Args: args}}
}

// JumpIf ends the block with a conditional jump.
func (bb *BlockBuilder) JumpIf(cond Register, then *BlockBuilder, thenArgs []Register, els *BlockBuilder, elseArgs []Register) {
	bb.block.End = &JumpIf{
		Condition: cond,
		Then:      BlockJump{Block: then.id, Args: thenArgs},
		Else:      BlockJump{Block: els.id, Args: elseArgs},
	}
}

// Return ends the block returning value.
func (bb *BlockBuilder) Return(value Register) {
	bb.block.End = &Return{Value: &value}
}

// ReturnVoid ends the block returning nothing.
func (bb *BlockBuilder) ReturnVoid() {
	bb.block.End = &Return{}
}

// Unreachable ends the block with an unreachable marker.
func (bb *BlockBuilder) Unreachable() {
	bb.block.End = &Unreachable{}
}
