package backend

import (
	"fmt"
	"strings"
)

// Instruction is one lowered operation. The set is closed: LoadConstPtr,
// LoadConstLen, Call and Return.
type Instruction interface {
	fmt.Stringer
	backendInstruction()
}

// LoadConstPtr loads the address of a constant's bytes.
type LoadConstPtr struct {
	Result   Register
	Constant Constant
}

// LoadConstLen loads the byte length of a constant as a word.
type LoadConstLen struct {
	Result   Register
	Constant Constant
}

// Callee is the target of a Call: exactly one of Static and External is
// meaningful, selected by IsExternal.
type Callee struct {
	IsExternal bool
	Static     Function
	External   ExternalFunction
}

func StaticCallee(f Function) Callee            { return Callee{Static: f} }
func ExternalCallee(f ExternalFunction) Callee { return Callee{IsExternal: true, External: f} }

func (c Callee) String() string {
	if c.IsExternal {
		return "&" + c.External.String()
	}
	return "@" + c.Static.String()
}

// Call invokes a function. Result is nil for void calls.
type Call struct {
	Result *Register
	Callee Callee
	Args   []Register
}

// Return leaves the function. Value is nil for void functions.
type Return struct {
	Value *Register
}

func (*LoadConstPtr) backendInstruction() {}
func (*LoadConstLen) backendInstruction() {}
func (*Call) backendInstruction()         {}
func (*Return) backendInstruction()       {}

func (i *LoadConstPtr) String() string {
	return fmt.Sprintf("%%%s = const_ptr #%s", i.Result, i.Constant)
}

func (i *LoadConstLen) String() string {
	return fmt.Sprintf("%%%s = const_len #%s", i.Result, i.Constant)
}

func (i *Call) String() string {
	args := make([]string, len(i.Args))
	for j, a := range i.Args {
		args[j] = "%" + a.String()
	}
	s := fmt.Sprintf("call %s(%s)", i.Callee, strings.Join(args, ", "))
	if i.Result != nil {
		s = "%" + i.Result.String() + " = " + s
	}
	return s
}

func (i *Return) String() string {
	if i.Value == nil {
		return "ret"
	}
	return "ret %" + i.Value.String()
}
