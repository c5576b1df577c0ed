package ir

import (
	"fmt"
	"slices"

	"github.com/NinoDS/jssat/internal/id"
)

// Identifier aliases for the IR context.
type (
	Register         = id.Register[id.IR]
	Block            = id.Block[id.IR]
	Function         = id.Function[id.IR]
	ExternalFunction = id.ExternalFunction[id.IR]
	Constant         = id.Constant[id.IR]
	Global           = id.Global[id.IR]
)

// Sort is the light static sort of a function parameter or global.
// It constrains which argument types a specialization may be requested
// with; the engine refines it into a full register type.
type Sort string

const (
	SortAny     Sort = "any"
	SortRuntime Sort = "runtime"
	SortTrivial Sort = "trivial"
	SortBytes   Sort = "bytes"
	SortNumber  Sort = "number"
	SortBoolean Sort = "boolean"
	SortFnPtr   Sort = "fnptr"
	SortRecord  Sort = "record"
)

// ValidSorts lists the accepted sorts.
var ValidSorts = map[Sort]bool{
	SortAny:     true,
	SortRuntime: true,
	SortTrivial: true,
	SortBytes:   true,
	SortNumber:  true,
	SortBoolean: true,
	SortFnPtr:   true,
	SortRecord:  true,
}

// FFIType is the foreign type of an external function parameter or result.
type FFIType string

const (
	FFIVoid    FFIType = "void"
	FFIRuntime FFIType = "runtime"
	FFIBytes   FFIType = "bytes"
	FFIBool    FFIType = "bool"
	FFIInt     FFIType = "int"
	FFIAny     FFIType = "any"
)

// ValidFFITypes lists the accepted FFI types. FFIVoid is only valid as a
// result type.
var ValidFFITypes = map[FFIType]bool{
	FFIVoid:    true,
	FFIRuntime: true,
	FFIBytes:   true,
	FFIBool:    true,
	FFIInt:     true,
	FFIAny:     true,
}

// ExternalFunctionDecl declares a function implemented outside the program.
// The engine treats it as opaque; its presence only forces the assembler to
// materialize every argument.
type ExternalFunctionDecl struct {
	Name    string
	Params  []FFIType
	Returns FFIType
}

// IsVoid reports whether the function returns nothing.
func (d *ExternalFunctionDecl) IsVoid() bool {
	return d.Returns == FFIVoid || d.Returns == ""
}

// GlobalDecl declares a program-wide mutable slot.
type GlobalDecl struct {
	Name string
	Sort Sort
}

// BasicBlock is a parameterized straight-line sequence ending in one
// terminator.
type BasicBlock struct {
	Params       []Register
	Instructions []Instruction
	End          Terminator
}

// Func is one source function.
type Func struct {
	Name       string
	ParamSorts []Sort // aligned with the entry block's parameters
	Entry      Block
	Blocks     map[Block]*BasicBlock
}

// EntryBlock returns the entry block, or nil if it is missing.
func (f *Func) EntryBlock() *BasicBlock {
	return f.Blocks[f.Entry]
}

// SortedBlocks returns the function's block identifiers in ascending order.
func (f *Func) SortedBlocks() []Block {
	return sortedKeys(f.Blocks)
}

// Program is the whole input graph.
type Program struct {
	Constants map[Constant][]byte
	Globals   map[Global]*GlobalDecl
	Externals map[ExternalFunction]*ExternalFunctionDecl
	Functions map[Function]*Func
}

// NewProgram returns an empty program.
func NewProgram() *Program {
	return &Program{
		Constants: make(map[Constant][]byte),
		Globals:   make(map[Global]*GlobalDecl),
		Externals: make(map[ExternalFunction]*ExternalFunctionDecl),
		Functions: make(map[Function]*Func),
	}
}

// Func returns the function with the given identifier.
func (p *Program) Func(f Function) (*Func, error) {
	fn, ok := p.Functions[f]
	if !ok {
		return nil, fmt.Errorf("function @%s not found", f)
	}
	return fn, nil
}

// BasicBlock returns block b of function f.
func (p *Program) BasicBlock(f Function, b Block) (*BasicBlock, error) {
	fn, err := p.Func(f)
	if err != nil {
		return nil, err
	}
	blk, ok := fn.Blocks[b]
	if !ok {
		return nil, fmt.Errorf("block $%s not found in function %s", b, fn.Name)
	}
	return blk, nil
}

// FunctionByName looks a function up by name.
func (p *Program) FunctionByName(name string) (Function, bool) {
	for _, f := range p.SortedFunctions() {
		if p.Functions[f].Name == name {
			return f, true
		}
	}
	return Function{}, false
}

// SortedFunctions returns function identifiers in ascending order.
func (p *Program) SortedFunctions() []Function {
	return sortedKeys(p.Functions)
}

// SortedExternals returns external function identifiers in ascending order.
func (p *Program) SortedExternals() []ExternalFunction {
	return sortedKeys(p.Externals)
}

// SortedConstants returns constant identifiers in ascending order.
func (p *Program) SortedConstants() []Constant {
	return sortedKeys(p.Constants)
}

// SortedGlobals returns global identifiers in ascending order.
func (p *Program) SortedGlobals() []Global {
	return sortedKeys(p.Globals)
}

func sortedKeys[K id.Kind, V any](m map[id.ID[K, id.IR]]V) []id.ID[K, id.IR] {
	keys := make([]id.ID[K, id.IR], 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, id.Compare[K, id.IR])
	return keys
}
