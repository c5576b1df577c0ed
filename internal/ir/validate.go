package ir

import (
	"errors"
	"fmt"

	"github.com/NinoDS/jssat/internal/isa"
)

// ValidationError describes one structural problem in a program.
type ValidationError struct {
	Function string // function name, empty for program-level problems
	Block    string // rendered block id, empty for function-level problems
	Message  string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch {
	case e.Function != "" && e.Block != "":
		return fmt.Sprintf("%s $%s: %s", e.Function, e.Block, e.Message)
	case e.Function != "":
		return fmt.Sprintf("%s: %s", e.Function, e.Message)
	}
	return e.Message
}

// Validate checks the structural invariants the specializer relies on:
//   - declarations use known sorts and FFI types
//   - every function has an existing entry block whose parameter count
//     matches its declared sorts
//   - every block has a terminator, reads only its own parameters and
//     earlier definitions, and defines each register once
//   - jumps target blocks of the same function with matching arity
//   - calls, constants, globals and function pointers resolve
//
// All problems are reported, joined with errors.Join, in deterministic
// order.
func (p *Program) Validate() error {
	var errs []error
	add := func(fn, blk, format string, args ...any) {
		errs = append(errs, &ValidationError{Function: fn, Block: blk, Message: fmt.Sprintf(format, args...)})
	}

	for _, g := range p.SortedGlobals() {
		if decl := p.Globals[g]; !ValidSorts[decl.Sort] {
			add("", "", "global %s: unknown sort %q", decl.Name, decl.Sort)
		}
	}
	for _, e := range p.SortedExternals() {
		decl := p.Externals[e]
		for i, t := range decl.Params {
			if !ValidFFITypes[t] || t == FFIVoid {
				add("", "", "external %s: parameter %d has invalid type %q", decl.Name, i, t)
			}
		}
		if decl.Returns != "" && !ValidFFITypes[decl.Returns] {
			add("", "", "external %s: invalid return type %q", decl.Name, decl.Returns)
		}
	}

	names := make(map[string]bool)
	for _, f := range p.SortedFunctions() {
		fn := p.Functions[f]
		if names[fn.Name] {
			add(fn.Name, "", "duplicate function name")
		}
		names[fn.Name] = true

		entry := fn.EntryBlock()
		if entry == nil {
			add(fn.Name, "", "entry block $%s does not exist", fn.Entry)
			continue
		}
		if len(entry.Params) != len(fn.ParamSorts) {
			add(fn.Name, "", "entry block has %d parameters but %d sorts are declared", len(entry.Params), len(fn.ParamSorts))
		}
		for i, s := range fn.ParamSorts {
			if !ValidSorts[s] {
				add(fn.Name, "", "parameter %d: unknown sort %q", i, s)
			}
		}

		for _, b := range fn.SortedBlocks() {
			for _, msg := range p.validateBlock(fn, fn.Blocks[b]) {
				add(fn.Name, b.String(), "%s", msg)
			}
		}
	}

	return errors.Join(errs...)
}

func (p *Program) validateBlock(fn *Func, blk *BasicBlock) []string {
	var msgs []string
	if blk.End == nil {
		msgs = append(msgs, "missing terminator")
	}
	if err := isa.CheckBlock(blk.Params, blk.Instructions, blk.End); err != nil {
		msgs = append(msgs, err.Error())
	}

	for i, inst := range blk.Instructions {
		if msg := p.validateInstruction(inst); msg != "" {
			msgs = append(msgs, fmt.Sprintf("instruction %d (%s): %s", i, inst, msg))
		}
	}

	if blk.End != nil {
		for _, edge := range blk.End.Successors() {
			target, ok := fn.Blocks[edge.Block]
			if !ok {
				msgs = append(msgs, fmt.Sprintf("jump to unknown block $%s", edge.Block))
				continue
			}
			if len(target.Params) != len(edge.Args) {
				msgs = append(msgs, fmt.Sprintf("jump to $%s passes %d arguments, block takes %d",
					edge.Block, len(edge.Args), len(target.Params)))
			}
		}
	}
	return msgs
}

func (p *Program) validateInstruction(inst Instruction) string {
	switch inst := inst.(type) {
	case *MakeBytes:
		if _, ok := p.Constants[inst.Constant]; !ok {
			return fmt.Sprintf("unknown constant #%s", inst.Constant)
		}
	case *GetFnPtr:
		if _, ok := p.Functions[inst.Function]; !ok {
			return fmt.Sprintf("unknown function @%s", inst.Function)
		}
	case *CallStatic:
		callee, ok := p.Functions[inst.Function]
		if !ok {
			return fmt.Sprintf("unknown function @%s", inst.Function)
		}
		if len(callee.ParamSorts) != len(inst.Args) {
			return fmt.Sprintf("%s takes %d arguments, got %d", callee.Name, len(callee.ParamSorts), len(inst.Args))
		}
	case *CallExtern:
		decl, ok := p.Externals[inst.Function]
		if !ok {
			return fmt.Sprintf("unknown external function &%s", inst.Function)
		}
		if len(decl.Params) != len(inst.Args) {
			return fmt.Sprintf("%s takes %d arguments, got %d", decl.Name, len(decl.Params), len(inst.Args))
		}
		if inst.Result != nil && decl.IsVoid() {
			return fmt.Sprintf("%s returns void but its result is used", decl.Name)
		}
	case *LoadGlobal:
		if _, ok := p.Globals[inst.Global]; !ok {
			return fmt.Sprintf("unknown global ^%s", inst.Global)
		}
	case *StoreGlobal:
		if _, ok := p.Globals[inst.Global]; !ok {
			return fmt.Sprintf("unknown global ^%s", inst.Global)
		}
	case *BinaryOp:
		if int(inst.Op) >= len(binaryNames) {
			return fmt.Sprintf("unknown operation %d", inst.Op)
		}
	}
	return ""
}
