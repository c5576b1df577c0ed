package ir

import (
	"fmt"
	"strings"

	"github.com/NinoDS/jssat/internal/id"
	"github.com/NinoDS/jssat/internal/isa"
)

// Instruction is a non-terminating instruction.
type Instruction interface {
	isa.Instruction[id.IR]
	fmt.Stringer
	instruction()
}

// TrivialItem is a value with no payload.
type TrivialItem uint8

const (
	TrivialRuntime TrivialItem = iota
	TrivialNull
	TrivialUndefined
	TrivialEmpty
)

var trivialNames = [...]string{"runtime", "null", "undefined", "empty"}

func (t TrivialItem) String() string {
	if int(t) < len(trivialNames) {
		return trivialNames[t]
	}
	return fmt.Sprintf("trivial(%d)", uint8(t))
}

// ParseTrivialItem parses the String form of a trivial item.
func ParseTrivialItem(s string) (TrivialItem, bool) {
	for i, name := range trivialNames {
		if name == s {
			return TrivialItem(i), true
		}
	}
	return 0, false
}

// InternalSlot is a fixed, non-string record key.
type InternalSlot uint8

const (
	NoSlot InternalSlot = iota
	SlotCall
	SlotHostDefined
)

func (s InternalSlot) String() string {
	switch s {
	case SlotCall:
		return "[[Call]]"
	case SlotHostDefined:
		return "[[HostDefined]]"
	}
	return "[[?]]"
}

// ParseInternalSlot accepts "Call", "[[Call]]", "HostDefined" and
// "[[HostDefined]]".
func ParseInternalSlot(s string) (InternalSlot, bool) {
	switch strings.TrimSuffix(strings.TrimPrefix(s, "[["), "]]") {
	case "Call":
		return SlotCall, true
	case "HostDefined":
		return SlotHostDefined, true
	}
	return NoSlot, false
}

// RecordKey addresses a record property: either a register holding the
// property name or an internal slot.
type RecordKey struct {
	Prop Register
	Slot InternalSlot
}

// PropKey keys a record by the string held in r.
func PropKey(r Register) RecordKey { return RecordKey{Prop: r} }

// SlotKey keys a record by an internal slot.
func SlotKey(s InternalSlot) RecordKey { return RecordKey{Slot: s} }

// IsSlot reports whether the key is an internal slot.
func (k RecordKey) IsSlot() bool { return k.Slot != NoSlot }

func (k RecordKey) String() string {
	if k.IsSlot() {
		return k.Slot.String()
	}
	return reg(k.Prop)
}

func (k *RecordKey) used() []Register {
	if k.IsSlot() {
		return nil
	}
	return []Register{k.Prop}
}

func (k *RecordKey) usedMut() []*Register {
	if k.IsSlot() {
		return nil
	}
	return []*Register{&k.Prop}
}

// RecordKind distinguishes plain records from lists.
type RecordKind uint8

const (
	KindRecord RecordKind = iota
	KindList
)

// GCStrategy tags an allocation with its collection strategy.
type GCStrategy uint8

const (
	GCTracing GCStrategy = iota
	GCLeaking
)

func (g GCStrategy) String() string {
	if g == GCLeaking {
		return "leaking"
	}
	return "tracing"
}

// BinaryKind selects the operation of a BinaryOp.
type BinaryKind uint8

const (
	OpLessThan BinaryKind = iota
	OpEquals
	OpAdd
	OpOr
)

var binaryNames = [...]string{"lt", "eq", "add", "or"}

func (k BinaryKind) String() string {
	if int(k) < len(binaryNames) {
		return binaryNames[k]
	}
	return fmt.Sprintf("op(%d)", uint8(k))
}

// ParseBinaryKind parses the String form of a binary operation.
func ParseBinaryKind(s string) (BinaryKind, bool) {
	for i, name := range binaryNames {
		if name == s {
			return BinaryKind(i), true
		}
	}
	return 0, false
}

// NewRecord allocates an empty record or list.
type NewRecord struct {
	isa.Pure
	Result Register
	Kind   RecordKind
	GC     GCStrategy
}

// RecordGet reads a property; a missing property reads as undefined.
type RecordGet struct {
	isa.Pure
	Result Register
	Record Register
	Key    RecordKey
}

// RecordSet writes a property.
type RecordSet struct {
	isa.Impure
	Record Register
	Key    RecordKey
	Value  Register
}

// MakeTrivial produces a payload-free value.
type MakeTrivial struct {
	isa.Pure
	Result Register
	Item   TrivialItem
}

// MakeBytes produces the interned string constant.
type MakeBytes struct {
	isa.Pure
	Result   Register
	Constant Constant
}

// MakeInteger produces an integer literal.
type MakeInteger struct {
	isa.Pure
	Result Register
	Value  int64
}

// MakeBoolean produces a boolean literal.
type MakeBoolean struct {
	isa.Pure
	Result Register
	Value  bool
}

// GetFnPtr produces a pointer to a program function.
type GetFnPtr struct {
	isa.Pure
	Result   Register
	Function Function
}

// BinaryOp applies a two-operand primitive.
type BinaryOp struct {
	isa.Pure
	Result Register
	Op     BinaryKind
	Lhs    Register
	Rhs    Register
}

// Negate is boolean negation.
type Negate struct {
	isa.Pure
	Result  Register
	Operand Register
}

// CallStatic calls a program function. Result is nil when the value is
// discarded.
type CallStatic struct {
	isa.Impure
	Result   *Register
	Function Function
	Args     []Register
}

// CallExtern calls an external function.
type CallExtern struct {
	isa.Impure
	Result   *Register
	Function ExternalFunction
	Args     []Register
}

// CallVirt calls through a function pointer.
type CallVirt struct {
	isa.Impure
	Result *Register
	FnPtr  Register
	Args   []Register
}

// LoadGlobal reads a global.
type LoadGlobal struct {
	isa.Pure
	Result Register
	Global Global
}

// StoreGlobal writes a global.
type StoreGlobal struct {
	isa.Impure
	Global Global
	Value  Register
}

// RefIsEmpty tests whether a reference cell holds the empty marker.
type RefIsEmpty struct {
	isa.Pure
	Result Register
	Ref    Register
}

// RefDeref reads a reference cell that must not be empty.
type RefDeref struct {
	isa.Pure
	Result Register
	Ref    Register
}

// Comment annotates the instruction stream. It defines nothing and is
// dropped by dead-code elimination.
type Comment struct {
	isa.Pure
	Text string
}

func (*NewRecord) instruction()   {}
func (*RecordGet) instruction()   {}
func (*RecordSet) instruction()   {}
func (*MakeTrivial) instruction() {}
func (*MakeBytes) instruction()   {}
func (*MakeInteger) instruction() {}
func (*MakeBoolean) instruction() {}
func (*GetFnPtr) instruction()    {}
func (*BinaryOp) instruction()    {}
func (*Negate) instruction()      {}
func (*CallStatic) instruction()  {}
func (*CallExtern) instruction()  {}
func (*CallVirt) instruction()    {}
func (*LoadGlobal) instruction()  {}
func (*StoreGlobal) instruction() {}
func (*RefIsEmpty) instruction()  {}
func (*RefDeref) instruction()    {}
func (*Comment) instruction()     {}

// DeclaredRegister implementations.

func (i *NewRecord) DeclaredRegister() (Register, bool)   { return i.Result, true }
func (i *RecordGet) DeclaredRegister() (Register, bool)   { return i.Result, true }
func (i *RecordSet) DeclaredRegister() (Register, bool)   { return Register{}, false }
func (i *MakeTrivial) DeclaredRegister() (Register, bool) { return i.Result, true }
func (i *MakeBytes) DeclaredRegister() (Register, bool)   { return i.Result, true }
func (i *MakeInteger) DeclaredRegister() (Register, bool) { return i.Result, true }
func (i *MakeBoolean) DeclaredRegister() (Register, bool) { return i.Result, true }
func (i *GetFnPtr) DeclaredRegister() (Register, bool)    { return i.Result, true }
func (i *BinaryOp) DeclaredRegister() (Register, bool)    { return i.Result, true }
func (i *Negate) DeclaredRegister() (Register, bool)      { return i.Result, true }
func (i *CallStatic) DeclaredRegister() (Register, bool)  { return optional(i.Result) }
func (i *CallExtern) DeclaredRegister() (Register, bool)  { return optional(i.Result) }
func (i *CallVirt) DeclaredRegister() (Register, bool)    { return optional(i.Result) }
func (i *LoadGlobal) DeclaredRegister() (Register, bool)  { return i.Result, true }
func (i *StoreGlobal) DeclaredRegister() (Register, bool) { return Register{}, false }
func (i *RefIsEmpty) DeclaredRegister() (Register, bool)  { return i.Result, true }
func (i *RefDeref) DeclaredRegister() (Register, bool)    { return i.Result, true }
func (i *Comment) DeclaredRegister() (Register, bool)     { return Register{}, false }

// UsedRegisters implementations.

func (i *NewRecord) UsedRegisters() []Register { return nil }
func (i *RecordGet) UsedRegisters() []Register {
	return append([]Register{i.Record}, i.Key.used()...)
}
func (i *RecordSet) UsedRegisters() []Register {
	return append(append([]Register{i.Record}, i.Key.used()...), i.Value)
}
func (i *MakeTrivial) UsedRegisters() []Register { return nil }
func (i *MakeBytes) UsedRegisters() []Register   { return nil }
func (i *MakeInteger) UsedRegisters() []Register { return nil }
func (i *MakeBoolean) UsedRegisters() []Register { return nil }
func (i *GetFnPtr) UsedRegisters() []Register    { return nil }
func (i *BinaryOp) UsedRegisters() []Register    { return []Register{i.Lhs, i.Rhs} }
func (i *Negate) UsedRegisters() []Register      { return []Register{i.Operand} }
func (i *CallStatic) UsedRegisters() []Register  { return i.Args }
func (i *CallExtern) UsedRegisters() []Register  { return i.Args }
func (i *CallVirt) UsedRegisters() []Register {
	return append([]Register{i.FnPtr}, i.Args...)
}
func (i *LoadGlobal) UsedRegisters() []Register  { return nil }
func (i *StoreGlobal) UsedRegisters() []Register { return []Register{i.Value} }
func (i *RefIsEmpty) UsedRegisters() []Register  { return []Register{i.Ref} }
func (i *RefDeref) UsedRegisters() []Register    { return []Register{i.Ref} }
func (i *Comment) UsedRegisters() []Register     { return nil }

// UsedRegistersMut implementations.

func (i *NewRecord) UsedRegistersMut() []*Register { return nil }
func (i *RecordGet) UsedRegistersMut() []*Register {
	return append([]*Register{&i.Record}, i.Key.usedMut()...)
}
func (i *RecordSet) UsedRegistersMut() []*Register {
	return append(append([]*Register{&i.Record}, i.Key.usedMut()...), &i.Value)
}
func (i *MakeTrivial) UsedRegistersMut() []*Register { return nil }
func (i *MakeBytes) UsedRegistersMut() []*Register   { return nil }
func (i *MakeInteger) UsedRegistersMut() []*Register { return nil }
func (i *MakeBoolean) UsedRegistersMut() []*Register { return nil }
func (i *GetFnPtr) UsedRegistersMut() []*Register    { return nil }
func (i *BinaryOp) UsedRegistersMut() []*Register    { return []*Register{&i.Lhs, &i.Rhs} }
func (i *Negate) UsedRegistersMut() []*Register      { return []*Register{&i.Operand} }
func (i *CallStatic) UsedRegistersMut() []*Register  { return ptrs(i.Args) }
func (i *CallExtern) UsedRegistersMut() []*Register  { return ptrs(i.Args) }
func (i *CallVirt) UsedRegistersMut() []*Register {
	return append([]*Register{&i.FnPtr}, ptrs(i.Args)...)
}
func (i *LoadGlobal) UsedRegistersMut() []*Register  { return nil }
func (i *StoreGlobal) UsedRegistersMut() []*Register { return []*Register{&i.Value} }
func (i *RefIsEmpty) UsedRegistersMut() []*Register  { return []*Register{&i.Ref} }
func (i *RefDeref) UsedRegistersMut() []*Register    { return []*Register{&i.Ref} }
func (i *Comment) UsedRegistersMut() []*Register     { return nil }

// String implementations.

func (i *NewRecord) String() string {
	op := "record_new"
	if i.Kind == KindList {
		op = "list_new"
	}
	return fmt.Sprintf("%s = %s %s", reg(i.Result), op, i.GC)
}
func (i *RecordGet) String() string {
	return fmt.Sprintf("%s = record_get %s[%s]", reg(i.Result), reg(i.Record), i.Key)
}
func (i *RecordSet) String() string {
	return fmt.Sprintf("record_set %s[%s] = %s", reg(i.Record), i.Key, reg(i.Value))
}
func (i *MakeTrivial) String() string {
	return fmt.Sprintf("%s = make_trivial %s", reg(i.Result), i.Item)
}
func (i *MakeBytes) String() string {
	return fmt.Sprintf("%s = make_bytes #%s", reg(i.Result), i.Constant)
}
func (i *MakeInteger) String() string {
	return fmt.Sprintf("%s = make_int %d", reg(i.Result), i.Value)
}
func (i *MakeBoolean) String() string {
	return fmt.Sprintf("%s = make_bool %t", reg(i.Result), i.Value)
}
func (i *GetFnPtr) String() string {
	return fmt.Sprintf("%s = fn_ptr @%s", reg(i.Result), i.Function)
}
func (i *BinaryOp) String() string {
	return fmt.Sprintf("%s = %s %s, %s", reg(i.Result), i.Op, reg(i.Lhs), reg(i.Rhs))
}
func (i *Negate) String() string {
	return fmt.Sprintf("%s = not %s", reg(i.Result), reg(i.Operand))
}
func (i *CallStatic) String() string {
	return callString(i.Result, "call @"+i.Function.String(), i.Args)
}
func (i *CallExtern) String() string {
	return callString(i.Result, "call_extern &"+i.Function.String(), i.Args)
}
func (i *CallVirt) String() string {
	return callString(i.Result, "call_virt "+reg(i.FnPtr), i.Args)
}
func (i *LoadGlobal) String() string {
	return fmt.Sprintf("%s = load_global ^%s", reg(i.Result), i.Global)
}
func (i *StoreGlobal) String() string {
	return fmt.Sprintf("store_global ^%s = %s", i.Global, reg(i.Value))
}
func (i *RefIsEmpty) String() string {
	return fmt.Sprintf("%s = ref_is_empty %s", reg(i.Result), reg(i.Ref))
}
func (i *RefDeref) String() string {
	return fmt.Sprintf("%s = ref_deref %s", reg(i.Result), reg(i.Ref))
}
func (i *Comment) String() string {
	return "; " + i.Text
}

func reg(r Register) string {
	return "%" + r.String()
}

func regList(rs []Register) string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = reg(r)
	}
	return strings.Join(parts, ", ")
}

func callString(result *Register, head string, args []Register) string {
	s := fmt.Sprintf("%s(%s)", head, regList(args))
	if result != nil {
		return reg(*result) + " = " + s
	}
	return s
}

func optional(r *Register) (Register, bool) {
	if r == nil {
		return Register{}, false
	}
	return *r, true
}

func ptrs(rs []Register) []*Register {
	out := make([]*Register, len(rs))
	for i := range rs {
		out[i] = &rs[i]
	}
	return out
}
