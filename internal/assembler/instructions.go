package assembler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/NinoDS/jssat/internal/id"
	"github.com/NinoDS/jssat/internal/ir"
	"github.com/NinoDS/jssat/internal/isa"
)

// Instruction is an assembled, non-terminating instruction.
type Instruction interface {
	isa.Instruction[id.Asm]
	fmt.Stringer
	instruction()
}

// Terminator ends an assembled block.
type Terminator interface {
	isa.Instruction[id.Asm]
	fmt.Stringer
	terminator()
}

// RecordKey is a property name known at compile time or an internal slot.
type RecordKey struct {
	Constant Constant
	Slot     ir.InternalSlot
}

func (k RecordKey) String() string {
	if k.Slot != ir.NoSlot {
		return k.Slot.String()
	}
	return "#" + k.Constant.String()
}

// Materializing instructions rebuild a simple value at its point of use.
type (
	// GetRuntime produces the runtime handle.
	GetRuntime struct {
		isa.Pure
		Result Register
	}

	// MakeString produces a string constant.
	MakeString struct {
		isa.Pure
		Result   Register
		Constant Constant
	}

	// MakeInteger produces an integer literal.
	MakeInteger struct {
		isa.Pure
		Result Register
		Value  int64
	}

	// MakeBoolean produces a boolean literal.
	MakeBoolean struct {
		isa.Pure
		Result Register
		Value  bool
	}
)

// MakeTrivial produces null, undefined or the empty reference marker.
type MakeTrivial struct {
	isa.Pure
	Result Register
	Item   ir.TrivialItem
}

// MakeFnPtr produces a pointer to a source function. Calls through it are
// bound statically, so the pointer only travels as an opaque value.
type MakeFnPtr struct {
	isa.Pure
	Result Register
	Source ir.Function
}

// NewRecord allocates an empty record or list.
type NewRecord struct {
	isa.Pure
	Result Register
	Kind   ir.RecordKind
	GC     ir.GCStrategy
}

// RecordGet reads a property.
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

// BinaryOp applies a primitive whose result is not known statically.
type BinaryOp struct {
	isa.Pure
	Result Register
	Op     ir.BinaryKind
	Lhs    Register
	Rhs    Register
}

// Negate is boolean negation.
type Negate struct {
	isa.Pure
	Result  Register
	Operand Register
}

// Call calls a specialization. Result is nil when the callee returns
// nothing or a simple value.
type Call struct {
	isa.Impure
	Result   *Register
	Function Function
	Args     []Register
}

// CallExtern calls an external function with every argument passed.
type CallExtern struct {
	isa.Impure
	Result   *Register
	Function ExternalFunction
	Args     []Register
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

// RefIsEmpty tests a reference cell for the empty marker.
type RefIsEmpty struct {
	isa.Pure
	Result Register
	Ref    Register
}

// RefDeref reads a reference cell.
type RefDeref struct {
	isa.Pure
	Result Register
	Ref    Register
}

// BlockJump is an edge with the values of the target's kept parameters.
type BlockJump struct {
	Block Block
	Args  []Register
}

func (j *BlockJump) String() string {
	return fmt.Sprintf("$%s(%s)", j.Block, regList(j.Args))
}

// Jump transfers control unconditionally.
type Jump struct {
	isa.Impure
	Target BlockJump
}

// JumpIf branches on a boolean that is not known statically.
type JumpIf struct {
	isa.Impure
	Condition Register
	Then      BlockJump
	Else      BlockJump
}

// Return leaves the function.
type Return struct {
	isa.Impure
	Value *Register
}

// Unreachable traps. It ends blocks whose control never continues, such
// as a block that calls a function that never returns.
type Unreachable struct {
	isa.Impure
}

func (*GetRuntime) instruction()  {}
func (*MakeString) instruction()  {}
func (*MakeInteger) instruction() {}
func (*MakeBoolean) instruction() {}
func (*MakeTrivial) instruction() {}
func (*MakeFnPtr) instruction()   {}
func (*NewRecord) instruction()   {}
func (*RecordGet) instruction()   {}
func (*RecordSet) instruction()   {}
func (*BinaryOp) instruction()    {}
func (*Negate) instruction()      {}
func (*Call) instruction()        {}
func (*CallExtern) instruction()  {}
func (*LoadGlobal) instruction()  {}
func (*StoreGlobal) instruction() {}
func (*RefIsEmpty) instruction()  {}
func (*RefDeref) instruction()    {}

func (*Jump) terminator()        {}
func (*JumpIf) terminator()      {}
func (*Return) terminator()      {}
func (*Unreachable) terminator() {}

func (i *GetRuntime) DeclaredRegister() (Register, bool)  { return i.Result, true }
func (i *MakeString) DeclaredRegister() (Register, bool)  { return i.Result, true }
func (i *MakeInteger) DeclaredRegister() (Register, bool) { return i.Result, true }
func (i *MakeBoolean) DeclaredRegister() (Register, bool) { return i.Result, true }
func (i *MakeTrivial) DeclaredRegister() (Register, bool) { return i.Result, true }
func (i *MakeFnPtr) DeclaredRegister() (Register, bool)   { return i.Result, true }
func (i *NewRecord) DeclaredRegister() (Register, bool)   { return i.Result, true }
func (i *RecordGet) DeclaredRegister() (Register, bool)   { return i.Result, true }
func (i *RecordSet) DeclaredRegister() (Register, bool)   { return Register{}, false }
func (i *BinaryOp) DeclaredRegister() (Register, bool)    { return i.Result, true }
func (i *Negate) DeclaredRegister() (Register, bool)      { return i.Result, true }
func (i *Call) DeclaredRegister() (Register, bool)        { return optional(i.Result) }
func (i *CallExtern) DeclaredRegister() (Register, bool)  { return optional(i.Result) }
func (i *LoadGlobal) DeclaredRegister() (Register, bool)  { return i.Result, true }
func (i *StoreGlobal) DeclaredRegister() (Register, bool) { return Register{}, false }
func (i *RefIsEmpty) DeclaredRegister() (Register, bool)  { return i.Result, true }
func (i *RefDeref) DeclaredRegister() (Register, bool)    { return i.Result, true }
func (t *Jump) DeclaredRegister() (Register, bool)        { return Register{}, false }
func (t *JumpIf) DeclaredRegister() (Register, bool)      { return Register{}, false }
func (t *Return) DeclaredRegister() (Register, bool)      { return Register{}, false }
func (t *Unreachable) DeclaredRegister() (Register, bool) { return Register{}, false }

func (i *GetRuntime) UsedRegisters() []Register  { return nil }
func (i *MakeString) UsedRegisters() []Register  { return nil }
func (i *MakeInteger) UsedRegisters() []Register { return nil }
func (i *MakeBoolean) UsedRegisters() []Register { return nil }
func (i *MakeTrivial) UsedRegisters() []Register { return nil }
func (i *MakeFnPtr) UsedRegisters() []Register   { return nil }
func (i *NewRecord) UsedRegisters() []Register   { return nil }
func (i *RecordGet) UsedRegisters() []Register   { return []Register{i.Record} }
func (i *RecordSet) UsedRegisters() []Register   { return []Register{i.Record, i.Value} }
func (i *BinaryOp) UsedRegisters() []Register    { return []Register{i.Lhs, i.Rhs} }
func (i *Negate) UsedRegisters() []Register      { return []Register{i.Operand} }
func (i *Call) UsedRegisters() []Register        { return i.Args }
func (i *CallExtern) UsedRegisters() []Register  { return i.Args }
func (i *LoadGlobal) UsedRegisters() []Register  { return nil }
func (i *StoreGlobal) UsedRegisters() []Register { return []Register{i.Value} }
func (i *RefIsEmpty) UsedRegisters() []Register  { return []Register{i.Ref} }
func (i *RefDeref) UsedRegisters() []Register    { return []Register{i.Ref} }
func (t *Jump) UsedRegisters() []Register        { return t.Target.Args }
func (t *JumpIf) UsedRegisters() []Register {
	out := []Register{t.Condition}
	out = append(out, t.Then.Args...)
	return append(out, t.Else.Args...)
}
func (t *Return) UsedRegisters() []Register {
	if t.Value == nil {
		return nil
	}
	return []Register{*t.Value}
}
func (t *Unreachable) UsedRegisters() []Register { return nil }

func (i *GetRuntime) UsedRegistersMut() []*Register  { return nil }
func (i *MakeString) UsedRegistersMut() []*Register  { return nil }
func (i *MakeInteger) UsedRegistersMut() []*Register { return nil }
func (i *MakeBoolean) UsedRegistersMut() []*Register { return nil }
func (i *MakeTrivial) UsedRegistersMut() []*Register { return nil }
func (i *MakeFnPtr) UsedRegistersMut() []*Register   { return nil }
func (i *NewRecord) UsedRegistersMut() []*Register   { return nil }
func (i *RecordGet) UsedRegistersMut() []*Register   { return []*Register{&i.Record} }
func (i *RecordSet) UsedRegistersMut() []*Register   { return []*Register{&i.Record, &i.Value} }
func (i *BinaryOp) UsedRegistersMut() []*Register    { return []*Register{&i.Lhs, &i.Rhs} }
func (i *Negate) UsedRegistersMut() []*Register      { return []*Register{&i.Operand} }
func (i *Call) UsedRegistersMut() []*Register        { return ptrs(i.Args) }
func (i *CallExtern) UsedRegistersMut() []*Register  { return ptrs(i.Args) }
func (i *LoadGlobal) UsedRegistersMut() []*Register  { return nil }
func (i *StoreGlobal) UsedRegistersMut() []*Register { return []*Register{&i.Value} }
func (i *RefIsEmpty) UsedRegistersMut() []*Register  { return []*Register{&i.Ref} }
func (i *RefDeref) UsedRegistersMut() []*Register    { return []*Register{&i.Ref} }
func (t *Jump) UsedRegistersMut() []*Register        { return ptrs(t.Target.Args) }
func (t *JumpIf) UsedRegistersMut() []*Register {
	out := []*Register{&t.Condition}
	out = append(out, ptrs(t.Then.Args)...)
	return append(out, ptrs(t.Else.Args)...)
}
func (t *Return) UsedRegistersMut() []*Register {
	if t.Value == nil {
		return nil
	}
	return []*Register{t.Value}
}
func (t *Unreachable) UsedRegistersMut() []*Register { return nil }

func (i *GetRuntime) String() string { return reg(i.Result) + " = get_runtime" }
func (i *MakeString) String() string {
	return fmt.Sprintf("%s = make_string #%s", reg(i.Result), i.Constant)
}
func (i *MakeInteger) String() string {
	return fmt.Sprintf("%s = make_int %d", reg(i.Result), i.Value)
}
func (i *MakeBoolean) String() string {
	return fmt.Sprintf("%s = make_bool %t", reg(i.Result), i.Value)
}
func (i *MakeTrivial) String() string {
	return fmt.Sprintf("%s = make_trivial %s", reg(i.Result), i.Item)
}
func (i *MakeFnPtr) String() string {
	return fmt.Sprintf("%s = fn_ptr src@%s", reg(i.Result), i.Source)
}
func (i *NewRecord) String() string {
	op := "record_new"
	if i.Kind == ir.KindList {
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
func (i *BinaryOp) String() string {
	return fmt.Sprintf("%s = %s %s, %s", reg(i.Result), i.Op, reg(i.Lhs), reg(i.Rhs))
}
func (i *Negate) String() string {
	return fmt.Sprintf("%s = not %s", reg(i.Result), reg(i.Operand))
}
func (i *Call) String() string {
	return callString(i.Result, "call @"+i.Function.String(), i.Args)
}
func (i *CallExtern) String() string {
	return callString(i.Result, "call_extern &"+i.Function.String(), i.Args)
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

func (t *Jump) String() string { return "jump " + t.Target.String() }
func (t *JumpIf) String() string {
	return fmt.Sprintf("jump_if %s, %s, %s", reg(t.Condition), t.Then.String(), t.Else.String())
}
func (t *Return) String() string {
	if t.Value == nil {
		return "return"
	}
	return "return " + reg(*t.Value)
}
func (t *Unreachable) String() string { return "unreachable" }

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

func quote(b []byte) string {
	return strconv.Quote(string(b))
}
