package types

import (
	"fmt"

	"github.com/NinoDS/jssat/internal/id"
	"github.com/NinoDS/jssat/internal/ir"
)

// Identifier aliases for values minted during symbolic execution.
type (
	Allocation = id.Allocation[id.Symbolic]
	ShapeID    = id.Shape[id.Symbolic]
	Constant   = id.Constant[id.Symbolic]
)

// Kind is the variant of a RegisterType.
type Kind uint8

const (
	KindAny Kind = iota
	KindTrivial
	KindBytes
	KindString // exact string constant
	KindNumber
	KindInt // exact integer
	KindBoolean
	KindBool // exact boolean
	KindFnPtr
	KindRecord
)

var kindNames = [...]string{"any", "trivial", "bytes", "string", "number", "int", "boolean", "bool", "fnptr", "record"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// RegisterType is the abstract type of one register. It is a comparable
// value; two RegisterTypes are the same type iff they are ==.
type RegisterType struct {
	kind     Kind
	item     ir.TrivialItem
	constant Constant
	integer  int64
	boolean  bool
	fn       ir.Function
	alloc    Allocation
}

// Any is the top of the lattice.
func Any() RegisterType { return RegisterType{kind: KindAny} }

// Trivial is a payload-free value.
func Trivial(item ir.TrivialItem) RegisterType { return RegisterType{kind: KindTrivial, item: item} }

// Runtime is the runtime handle.
func Runtime() RegisterType { return Trivial(ir.TrivialRuntime) }

// Bytes is a string of unknown content.
func Bytes() RegisterType { return RegisterType{kind: KindBytes} }

// String is the exact interned string c.
func String(c Constant) RegisterType { return RegisterType{kind: KindString, constant: c} }

// Number is a number of unknown value.
func Number() RegisterType { return RegisterType{kind: KindNumber} }

// Int is the exact integer v.
func Int(v int64) RegisterType { return RegisterType{kind: KindInt, integer: v} }

// Boolean is a boolean of unknown value.
func Boolean() RegisterType { return RegisterType{kind: KindBoolean} }

// Bool is the exact boolean v.
func Bool(v bool) RegisterType { return RegisterType{kind: KindBool, boolean: v} }

// FnPtr is a pointer to function f.
func FnPtr(f ir.Function) RegisterType { return RegisterType{kind: KindFnPtr, fn: f} }

// Record is the record identified by a.
func Record(a Allocation) RegisterType { return RegisterType{kind: KindRecord, alloc: a} }

// Kind returns the variant.
func (t RegisterType) Kind() Kind { return t.kind }

// Item returns the trivial item of a trivial type.
func (t RegisterType) Item() (ir.TrivialItem, bool) { return t.item, t.kind == KindTrivial }

// Constant returns the constant of an exact string.
func (t RegisterType) Constant() (Constant, bool) { return t.constant, t.kind == KindString }

// IntValue returns the value of an exact integer.
func (t RegisterType) IntValue() (int64, bool) { return t.integer, t.kind == KindInt }

// BoolValue returns the value of an exact boolean.
func (t RegisterType) BoolValue() (bool, bool) { return t.boolean, t.kind == KindBool }

// Function returns the target of a function pointer.
func (t RegisterType) Function() (ir.Function, bool) { return t.fn, t.kind == KindFnPtr }

// Allocation returns the allocation of a record.
func (t RegisterType) Allocation() (Allocation, bool) { return t.alloc, t.kind == KindRecord }

// IsRecord reports whether t is a record.
func (t RegisterType) IsRecord() bool { return t.kind == KindRecord }

// IsNumeric reports whether t is a number or an exact integer.
func (t RegisterType) IsNumeric() bool { return t.kind == KindNumber || t.kind == KindInt }

// IsBoolean reports whether t is a boolean or an exact boolean.
func (t RegisterType) IsBoolean() bool { return t.kind == KindBoolean || t.kind == KindBool }

// IsStringy reports whether t is bytes or an exact string.
func (t RegisterType) IsStringy() bool { return t.kind == KindBytes || t.kind == KindString }

// General forgets the exact value: int → number, bool → boolean,
// string → bytes. Other types are returned unchanged.
func (t RegisterType) General() RegisterType {
	switch t.kind {
	case KindInt:
		return Number()
	case KindBool:
		return Boolean()
	case KindString:
		return Bytes()
	}
	return t
}

// String renders t without consulting an arena; records and string
// constants are shown by identifier. Use TypeBag.Format for full detail.
func (t RegisterType) String() string {
	switch t.kind {
	case KindTrivial:
		return t.item.String()
	case KindString:
		return "string #" + t.constant.String()
	case KindInt:
		return fmt.Sprintf("int %d", t.integer)
	case KindBool:
		return fmt.Sprintf("bool %t", t.boolean)
	case KindFnPtr:
		return "fnptr @" + t.fn.String()
	case KindRecord:
		return "record a" + t.alloc.String()
	}
	return t.kind.String()
}

// IsSimple reports whether t is cheap enough to rebuild at its point of
// use: the runtime handle, an exact integer, an exact boolean or an exact
// string.
func IsSimple(t RegisterType) bool {
	switch t.kind {
	case KindTrivial:
		return t.item == ir.TrivialRuntime
	case KindInt, KindBool, KindString:
		return true
	}
	return false
}

// Widen joins two types on the lattice: equal types stay, exact values of
// the same kind widen to the general kind, everything else becomes Any.
func Widen(x, y RegisterType) RegisterType {
	if x == y {
		return x
	}
	gx, gy := x.General(), y.General()
	if gx == gy && (gx.kind == KindNumber || gx.kind == KindBoolean || gx.kind == KindBytes) {
		return gx
	}
	return Any()
}

// Admits reports whether a value of type t may be bound to a parameter of
// sort s.
func Admits(s ir.Sort, t RegisterType) bool {
	switch s {
	case ir.SortAny:
		return true
	case ir.SortRuntime:
		return t.kind == KindTrivial && t.item == ir.TrivialRuntime
	case ir.SortTrivial:
		return t.kind == KindTrivial
	case ir.SortBytes:
		return t.IsStringy()
	case ir.SortNumber:
		return t.IsNumeric()
	case ir.SortBoolean:
		return t.IsBoolean()
	case ir.SortFnPtr:
		return t.kind == KindFnPtr
	case ir.SortRecord:
		return t.kind == KindRecord
	}
	return false
}

// FromSort is the most general type admitted by s.
func FromSort(s ir.Sort) RegisterType {
	switch s {
	case ir.SortRuntime:
		return Runtime()
	case ir.SortBytes:
		return Bytes()
	case ir.SortNumber:
		return Number()
	case ir.SortBoolean:
		return Boolean()
	}
	return Any()
}

// FromFFI is the type of a value returned by external code.
func FromFFI(t ir.FFIType) RegisterType {
	switch t {
	case ir.FFIRuntime:
		return Runtime()
	case ir.FFIBytes:
		return Bytes()
	case ir.FFIBool:
		return Boolean()
	case ir.FFIInt:
		return Number()
	case ir.FFIVoid, "":
		return Trivial(ir.TrivialUndefined)
	}
	return Any()
}
