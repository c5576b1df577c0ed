// Package isa defines the contract every instruction kind implements and
// the generic passes built on it.
//
// The contract is deliberately small: the register an instruction defines
// (at most one, SSA), the registers it reads, mutable access to those
// registers, and purity. Dead-code elimination, bulk renaming and the
// defined-before-use check are written once against it and work for every
// phase's instruction set.
package isa

import (
	"fmt"
	"slices"

	"github.com/NinoDS/jssat/internal/id"
)

// Instruction is the contract shared by every instruction kind of a phase
// with context C. Terminators implement it too.
type Instruction[C id.Context] interface {
	// DeclaredRegister returns the register the instruction defines, if any.
	DeclaredRegister() (id.Register[C], bool)

	// UsedRegisters returns every register the instruction reads, in
	// operand order. Most instructions read at most three.
	UsedRegisters() []id.Register[C]

	// UsedRegistersMut returns pointers to the operand fields so passes
	// can rename operands without knowing the instruction kind.
	UsedRegistersMut() []*id.Register[C]

	// IsPure reports whether removing the instruction is unobservable
	// when its declared register is unused. Calls to external code,
	// record writes, returns and control flow are never pure.
	IsPure() bool
}

// Pure can be embedded by instruction kinds to get the default purity.
type Pure struct{}

// IsPure returns true.
func (Pure) IsPure() bool { return true }

// Impure can be embedded by instruction kinds with side effects.
type Impure struct{}

// IsPure returns false.
func (Impure) IsPure() bool { return false }

// EliminateDeadCode removes pure instructions whose declared register is
// never read, iterating backwards so chains of dead definitions disappear
// in one pass. live lists registers read after the instructions (typically
// the terminator's operands). The input slice is not modified.
func EliminateDeadCode[C id.Context, I Instruction[C]](insts []I, live []id.Register[C]) []I {
	needed := make(map[id.Register[C]]bool, len(live))
	for _, r := range live {
		needed[r] = true
	}

	keep := make([]bool, len(insts))
	for i := len(insts) - 1; i >= 0; i-- {
		inst := insts[i]
		decl, declares := inst.DeclaredRegister()
		if inst.IsPure() && (!declares || !needed[decl]) {
			continue
		}
		keep[i] = true
		for _, r := range inst.UsedRegisters() {
			needed[r] = true
		}
	}

	out := make([]I, 0, len(insts))
	for i, inst := range insts {
		if keep[i] {
			out = append(out, inst)
		}
	}
	return out
}

// RenameUses rewrites every operand of inst through rename.
func RenameUses[C id.Context](inst Instruction[C], rename func(id.Register[C]) id.Register[C]) {
	for _, r := range inst.UsedRegistersMut() {
		*r = rename(*r)
	}
}

// UndefinedRegisterError reports a register read before any definition in
// its block.
type UndefinedRegisterError struct {
	Index    int    // instruction index; len(instructions) for the terminator
	Register string // rendered register
}

// Error implements the error interface.
func (e *UndefinedRegisterError) Error() string {
	return fmt.Sprintf("register %%%s used at instruction %d before definition", e.Register, e.Index)
}

// RedefinedRegisterError reports a second definition of a register in one
// block.
type RedefinedRegisterError struct {
	Index    int
	Register string
}

// Error implements the error interface.
func (e *RedefinedRegisterError) Error() string {
	return fmt.Sprintf("register %%%s redefined at instruction %d", e.Register, e.Index)
}

// CheckBlock verifies that every register read by insts or by end is a
// block parameter or was declared by an earlier instruction, and that no
// register is declared twice. end may be nil.
func CheckBlock[C id.Context, I Instruction[C]](params []id.Register[C], insts []I, end Instruction[C]) error {
	defined := make(map[id.Register[C]]bool, len(params)+len(insts))
	for _, p := range params {
		defined[p] = true
	}

	check := func(idx int, inst Instruction[C]) error {
		for _, r := range inst.UsedRegisters() {
			if !defined[r] {
				return &UndefinedRegisterError{Index: idx, Register: r.String()}
			}
		}
		if decl, ok := inst.DeclaredRegister(); ok {
			if defined[decl] {
				return &RedefinedRegisterError{Index: idx, Register: decl.String()}
			}
			defined[decl] = true
		}
		return nil
	}

	for i, inst := range insts {
		if err := check(i, inst); err != nil {
			return err
		}
	}
	if end != nil {
		return check(len(insts), end)
	}
	return nil
}

// Declared returns the registers declared by insts, in order.
func Declared[C id.Context, I Instruction[C]](insts []I) []id.Register[C] {
	var out []id.Register[C]
	for _, inst := range insts {
		if r, ok := inst.DeclaredRegister(); ok {
			out = append(out, r)
		}
	}
	return out
}

// Uses counts how many times each register is read by insts.
func Uses[C id.Context, I Instruction[C]](insts []I) map[id.Register[C]]int {
	counts := make(map[id.Register[C]]int)
	for _, inst := range insts {
		for _, r := range inst.UsedRegisters() {
			counts[r]++
		}
	}
	return counts
}

// SortedRegisters returns rs sorted and deduplicated.
func SortedRegisters[C id.Context](rs []id.Register[C]) []id.Register[C] {
	out := slices.Clone(rs)
	slices.SortFunc(out, id.Compare[id.RegisterKind, C])
	return slices.Compact(out)
}
