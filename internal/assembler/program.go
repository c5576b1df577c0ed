package assembler

import (
	"fmt"
	"slices"

	"github.com/NinoDS/jssat/internal/id"
	"github.com/NinoDS/jssat/internal/ir"
	"github.com/NinoDS/jssat/internal/types"
)

// Identifier aliases for the assembled program.
type (
	Register         = id.Register[id.Asm]
	Block            = id.Block[id.Asm]
	Function         = id.Function[id.Asm]
	ExternalFunction = id.ExternalFunction[id.Asm]
	Constant         = id.Constant[id.Asm]
	Global           = id.Global[id.Asm]
)

// ValueType is the runtime representation of a value whose exact type is
// erased. Exact values share the representation of their general kind.
type ValueType uint8

const (
	ValAny ValueType = iota
	ValRuntime
	ValTrivial
	ValBytes
	ValNumber
	ValBoolean
	ValFnPtr
	ValRecord
)

var valueTypeNames = [...]string{"any", "runtime", "trivial", "bytes", "number", "boolean", "fnptr", "record"}

func (v ValueType) String() string {
	if int(v) < len(valueTypeNames) {
		return valueTypeNames[v]
	}
	return fmt.Sprintf("value(%d)", uint8(v))
}

// ValueTypeOf erases t to its runtime representation.
func ValueTypeOf(t types.RegisterType) ValueType {
	switch t.Kind() {
	case types.KindTrivial:
		if item, _ := t.Item(); item == ir.TrivialRuntime {
			return ValRuntime
		}
		return ValTrivial
	case types.KindBytes, types.KindString:
		return ValBytes
	case types.KindNumber, types.KindInt:
		return ValNumber
	case types.KindBoolean, types.KindBool:
		return ValBoolean
	case types.KindFnPtr:
		return ValFnPtr
	case types.KindRecord:
		return ValRecord
	}
	return ValAny
}

// ReturnKind says whether an assembled function returns.
type ReturnKind uint8

const (
	ReturnNever ReturnKind = iota
	ReturnVoid
	ReturnValue
)

// ReturnType is the result of an assembled function.
type ReturnType struct {
	Kind ReturnKind
	Type ValueType // valid when Kind is ReturnValue
}

func (r ReturnType) String() string {
	switch r.Kind {
	case ReturnNever:
		return "never"
	case ReturnVoid:
		return "void"
	}
	return r.Type.String()
}

// Param is a block or function parameter.
type Param struct {
	Register Register
	Type     ValueType
}

// BasicBlock is one assembled block.
type BasicBlock struct {
	Params       []Param
	Instructions []Instruction
	End          Terminator
}

// Func is one specialization.
type Func struct {
	// Name is the source name suffixed with the specialization ordinal,
	// e.g. "lt10_1".
	Name string

	// Source is the function this specialization was derived from.
	Source ir.Function

	// Signature renders the argument types the function was specialized
	// for.
	Signature string

	Returns ReturnType
	Entry   Block
	Blocks  map[Block]*BasicBlock
}

// Params returns the parameters of the entry block.
func (f *Func) Params() []Param {
	if b, ok := f.Blocks[f.Entry]; ok {
		return b.Params
	}
	return nil
}

// SortedBlocks returns the block identifiers in ascending order.
func (f *Func) SortedBlocks() []Block {
	return sortedKeys(f.Blocks)
}

// Program is the monomorphized program.
type Program struct {
	Constants map[Constant][]byte
	Globals   map[Global]*ir.GlobalDecl
	Externals map[ExternalFunction]*ir.ExternalFunctionDecl
	Functions map[Function]*Func

	// Entries are the specializations requested through Engine.Explore, in
	// request order.
	Entries []Function
}

// SortedFunctions returns function identifiers in ascending order.
func (p *Program) SortedFunctions() []Function {
	return sortedKeys(p.Functions)
}

// FunctionByName looks up a specialization by its assembled name.
func (p *Program) FunctionByName(name string) (Function, bool) {
	for _, f := range p.SortedFunctions() {
		if p.Functions[f].Name == name {
			return f, true
		}
	}
	return Function{}, false
}

// Specializations returns the assembled functions derived from src, in
// identifier order.
func (p *Program) Specializations(src ir.Function) []Function {
	var out []Function
	for _, f := range p.SortedFunctions() {
		if p.Functions[f].Source == src {
			out = append(out, f)
		}
	}
	return out
}

func sortedKeys[K id.Kind, V any](m map[id.ID[K, id.Asm]]V) []id.ID[K, id.Asm] {
	keys := make([]id.ID[K, id.Asm], 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, id.Compare[K, id.Asm])
	return keys
}
