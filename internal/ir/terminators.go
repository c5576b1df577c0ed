package ir

import (
	"fmt"

	"github.com/NinoDS/jssat/internal/id"
	"github.com/NinoDS/jssat/internal/isa"
)

// Terminator ends a basic block.
type Terminator interface {
	isa.Instruction[id.IR]
	fmt.Stringer
	// Successors returns the outgoing edges in declaration order.
	Successors() []*BlockJump
	terminator()
}

// BlockJump is an edge to a block together with the values bound to its
// parameters.
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

// JumpIf transfers control to Then when Condition is true, else to Else.
type JumpIf struct {
	isa.Impure
	Condition Register
	Then      BlockJump
	Else      BlockJump
}

// Return leaves the function. Value is nil for a void return.
type Return struct {
	isa.Impure
	Value *Register
}

// Unreachable marks a point control never reaches.
type Unreachable struct {
	isa.Impure
}

func (*Jump) terminator()        {}
func (*JumpIf) terminator()      {}
func (*Return) terminator()      {}
func (*Unreachable) terminator() {}

func (t *Jump) DeclaredRegister() (Register, bool)        { return Register{}, false }
func (t *JumpIf) DeclaredRegister() (Register, bool)      { return Register{}, false }
func (t *Return) DeclaredRegister() (Register, bool)      { return Register{}, false }
func (t *Unreachable) DeclaredRegister() (Register, bool) { return Register{}, false }

func (t *Jump) UsedRegisters() []Register { return t.Target.Args }
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

func (t *Jump) UsedRegistersMut() []*Register { return ptrs(t.Target.Args) }
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

func (t *Jump) Successors() []*BlockJump        { return []*BlockJump{&t.Target} }
func (t *JumpIf) Successors() []*BlockJump      { return []*BlockJump{&t.Then, &t.Else} }
func (t *Return) Successors() []*BlockJump      { return nil }
func (t *Unreachable) Successors() []*BlockJump { return nil }

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
