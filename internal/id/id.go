package id

import (
	"cmp"
	"fmt"
)

// Context names the compiler phase that minted an identifier.
// Implementations are zero-sized marker types.
type Context interface {
	contextName() string
}

// Kind names what an identifier refers to.
// Implementations are zero-sized marker types.
type Kind interface {
	kindName() string
}

// Phase contexts.
type (
	// NoContext is used by identifiers that have no owning phase.
	NoContext struct{}
	// IR is the context of the input instruction graph.
	IR struct{}
	// Symbolic is the context of values minted during symbolic execution
	// (allocations, shapes, interned constants).
	Symbolic struct{}
	// Asm is the context of the assembled, monomorphized program.
	Asm struct{}
	// Backend is the context of the reduced backend program.
	Backend struct{}
)

func (NoContext) contextName() string { return "none" }
func (IR) contextName() string        { return "ir" }
func (Symbolic) contextName() string  { return "symbolic" }
func (Asm) contextName() string       { return "asm" }
func (Backend) contextName() string   { return "backend" }

// Identifier kinds.
type (
	RegisterKind         struct{}
	BlockKind            struct{}
	FunctionKind         struct{}
	ExternalFunctionKind struct{}
	ConstantKind         struct{}
	GlobalKind           struct{}
	AllocationKind       struct{}
	ShapeKind            struct{}
	TypeKind             struct{}
	OpaqueStructKind     struct{}
)

func (RegisterKind) kindName() string         { return "register" }
func (BlockKind) kindName() string            { return "block" }
func (FunctionKind) kindName() string         { return "function" }
func (ExternalFunctionKind) kindName() string { return "external function" }
func (ConstantKind) kindName() string         { return "constant" }
func (GlobalKind) kindName() string           { return "global" }
func (AllocationKind) kindName() string       { return "allocation" }
func (ShapeKind) kindName() string            { return "shape" }
func (TypeKind) kindName() string             { return "type" }
func (OpaqueStructKind) kindName() string     { return "opaque struct" }

// ID is an identifier of kind K minted in context C.
// The zero value is the identifier with value 0.
type ID[K Kind, C Context] struct {
	value uint32
}

// Per-kind aliases.
type (
	Register[C Context]         = ID[RegisterKind, C]
	Block[C Context]            = ID[BlockKind, C]
	Function[C Context]         = ID[FunctionKind, C]
	ExternalFunction[C Context] = ID[ExternalFunctionKind, C]
	Constant[C Context]         = ID[ConstantKind, C]
	Global[C Context]           = ID[GlobalKind, C]
	Allocation[C Context]       = ID[AllocationKind, C]
	Shape[C Context]            = ID[ShapeKind, C]
	Type[C Context]             = ID[TypeKind, C]
	OpaqueStruct[C Context]     = ID[OpaqueStructKind, C]
)

// New returns the identifier with the given numeric value.
// Prefer a Counter; New exists for loaders and tests.
func New[K Kind, C Context](value uint32) ID[K, C] {
	return ID[K, C]{value: value}
}

// Value returns the raw numeric value.
func (i ID[K, C]) Value() uint32 {
	return i.value
}

// Next returns the successor identifier without modifying i.
func (i ID[K, C]) Next() ID[K, C] {
	return ID[K, C]{value: i.value + 1}
}

// NextAndMut returns the current identifier and advances i to its successor.
func (i *ID[K, C]) NextAndMut() ID[K, C] {
	current := *i
	*i = i.Next()
	return current
}

// String renders the numeric value only; callers add sigils ("%", "$", "@").
func (i ID[K, C]) String() string {
	return fmt.Sprintf("%d", i.value)
}

// Describe renders the identifier with its kind and context, for diagnostics.
func (i ID[K, C]) Describe() string {
	var k K
	var c C
	return fmt.Sprintf("%s %d (%s)", k.kindName(), i.value, c.contextName())
}

// MapContext reinterprets the same numeric value under context To.
//
// Only valid when both phases share numbering by construction, e.g. external
// function declarations copied verbatim from the input into the output
// program. Everything else goes through retag.Map.
func MapContext[To Context, K Kind, From Context](i ID[K, From]) ID[K, To] {
	return ID[K, To]{value: i.value}
}

// Compare orders identifiers by numeric value. Used to make map iteration
// deterministic.
func Compare[K Kind, C Context](a, b ID[K, C]) int {
	return cmp.Compare(a.value, b.value)
}
