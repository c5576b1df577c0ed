package backend

import (
	"fmt"
	"slices"

	"github.com/NinoDS/jssat/internal/id"
)

// Identifier aliases in the backend context.
type (
	Register         = id.Register[id.Backend]
	Block            = id.Block[id.Backend]
	Function         = id.Function[id.Backend]
	ExternalFunction = id.ExternalFunction[id.Backend]
	Constant         = id.Constant[id.Backend]
	OpaqueStruct     = id.OpaqueStruct[id.Backend]
)

// TypeKind discriminates ValueType.
type TypeKind uint8

const (
	// TypeWord is an integer as wide as a pointer.
	TypeWord TypeKind = iota
	// TypeBits is an integer of a fixed bit width.
	TypeBits
	TypeOpaque
	TypePointer
)

// ValueType is a machine type.
type ValueType struct {
	Kind   TypeKind
	Bits   uint16       // TypeBits only
	Struct OpaqueStruct // TypeOpaque only
	Elem   *ValueType   // TypePointer only
}

func Word() ValueType                 { return ValueType{Kind: TypeWord} }
func Bits(n uint16) ValueType         { return ValueType{Kind: TypeBits, Bits: n} }
func Opaque(s OpaqueStruct) ValueType { return ValueType{Kind: TypeOpaque, Struct: s} }
func Pointer(elem ValueType) ValueType {
	return ValueType{Kind: TypePointer, Elem: &elem}
}

func (t ValueType) String() string {
	switch t.Kind {
	case TypeWord:
		return "word"
	case TypeBits:
		return fmt.Sprintf("i%d", t.Bits)
	case TypeOpaque:
		return "opaque#" + t.Struct.String()
	case TypePointer:
		return "*" + t.Elem.String()
	}
	return fmt.Sprintf("type(%d)", t.Kind)
}

// Equal reports structural equality.
func (t ValueType) Equal(o ValueType) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case TypeBits:
		return t.Bits == o.Bits
	case TypeOpaque:
		return t.Struct == o.Struct
	case TypePointer:
		return t.Elem.Equal(*o.Elem)
	}
	return true
}

// ReturnType is a function result: nil Value means void.
type ReturnType struct {
	Value *ValueType
}

func Void() ReturnType                { return ReturnType{} }
func Returns(t ValueType) ReturnType { return ReturnType{Value: &t} }

// IsVoid reports whether nothing is returned.
func (r ReturnType) IsVoid() bool { return r.Value == nil }

func (r ReturnType) String() string {
	if r.Value == nil {
		return "void"
	}
	return r.Value.String()
}

// Linkage is a symbol visibility hint for the code generator.
type Linkage uint8

const (
	LinkagePrivate Linkage = iota
	LinkageExternal
)

func (l Linkage) String() string {
	if l == LinkageExternal {
		return "external"
	}
	return "private"
}

// ConstantDef is a named byte payload.
type ConstantDef struct {
	Name    string
	Payload []byte
}

// OpaqueStructDef is a struct whose layout only the runtime knows.
type OpaqueStructDef struct {
	Name string
}

// External is a function implemented outside the program.
type External struct {
	Name    string
	Params  []ValueType
	Returns ReturnType
}

// Param is a typed function parameter.
type Param struct {
	Register Register
	Type     ValueType
}

// Func is a lowered function.
type Func struct {
	Name    string
	Linkage Linkage
	Returns ReturnType
	Params  []Param
	Entry   Block
	Blocks  map[Block][]Instruction
}

// SortedBlocks returns the block identifiers in ascending order.
func (f *Func) SortedBlocks() []Block {
	return sortedKeys(f.Blocks)
}

// Program is the input of native code generation.
type Program struct {
	Constants     map[Constant]*ConstantDef
	OpaqueStructs map[OpaqueStruct]*OpaqueStructDef
	Externals     map[ExternalFunction]*External
	Functions     map[Function]*Func

	// Runtime is the opaque struct behind the runtime handle.
	Runtime OpaqueStruct
}

// SortedFunctions returns the function identifiers in ascending order.
func (p *Program) SortedFunctions() []Function {
	return sortedKeys(p.Functions)
}

// FunctionByName looks a function up by its lowered name.
func (p *Program) FunctionByName(name string) (Function, bool) {
	for _, f := range p.SortedFunctions() {
		if p.Functions[f].Name == name {
			return f, true
		}
	}
	return Function{}, false
}

func sortedKeys[K id.Kind, V any](m map[id.ID[K, id.Backend]]V) []id.ID[K, id.Backend] {
	out := make([]id.ID[K, id.Backend], 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.SortFunc(out, id.Compare[K, id.Backend])
	return out
}
