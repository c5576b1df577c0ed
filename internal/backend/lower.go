package backend

import (
	"fmt"
	"log/slog"

	"github.com/NinoDS/jssat/internal/assembler"
	"github.com/NinoDS/jssat/internal/id"
	"github.com/NinoDS/jssat/internal/ir"
)

// RuntimeStructName names the opaque struct behind the runtime handle.
const RuntimeStructName = "Runtime"

// Option configures Lower.
type Option func(*lowerer)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(lw *lowerer) {
		lw.logger = l
	}
}

type lowerer struct {
	src    *assembler.Program
	out    *Program
	logger *slog.Logger
}

// Lower translates an assembled program into the backend form. It fails
// with a *NotImplementedError on the first construct that has no lowering;
// no partial program is returned.
func Lower(src *assembler.Program, opts ...Option) (*Program, error) {
	lw := &lowerer{
		src:    src,
		logger: slog.Default(),
		out: &Program{
			Constants:     make(map[Constant]*ConstantDef),
			OpaqueStructs: make(map[OpaqueStruct]*OpaqueStructDef),
			Externals:     make(map[ExternalFunction]*External),
			Functions:     make(map[Function]*Func),
		},
	}
	for _, opt := range opts {
		opt(lw)
	}

	var structs id.Counter[id.OpaqueStructKind, id.Backend]
	lw.out.Runtime = structs.Next()
	lw.out.OpaqueStructs[lw.out.Runtime] = &OpaqueStructDef{Name: RuntimeStructName}

	for c, payload := range src.Constants {
		bc := id.MapContext[id.Backend](c)
		lw.out.Constants[bc] = &ConstantDef{Name: "const_" + bc.String(), Payload: payload}
	}

	for e, decl := range src.Externals {
		ext, err := lw.external(decl)
		if err != nil {
			return nil, err
		}
		lw.out.Externals[id.MapContext[id.Backend](e)] = ext
	}

	entries := make(map[assembler.Function]bool, len(src.Entries))
	for _, f := range src.Entries {
		entries[f] = true
	}

	// Signatures first: bodies check call arity against them.
	for _, f := range src.SortedFunctions() {
		fn, err := lw.signature(src.Functions[f])
		if err != nil {
			return nil, err
		}
		if entries[f] {
			fn.Linkage = LinkageExternal
		}
		lw.out.Functions[id.MapContext[id.Backend](f)] = fn
	}

	for _, f := range src.SortedFunctions() {
		if err := lw.body(src.Functions[f], lw.out.Functions[id.MapContext[id.Backend](f)]); err != nil {
			return nil, err
		}
	}

	lw.logger.Debug("lowered program",
		"functions", len(lw.out.Functions),
		"externals", len(lw.out.Externals),
		"constants", len(lw.out.Constants),
	)
	return lw.out, nil
}

func (lw *lowerer) runtimeHandle() ValueType {
	return Pointer(Opaque(lw.out.Runtime))
}

// valueTypes returns the machine types holding one assembled value.
func (lw *lowerer) valueTypes(t assembler.ValueType) ([]ValueType, bool) {
	switch t {
	case assembler.ValRuntime:
		return []ValueType{lw.runtimeHandle()}, true
	case assembler.ValBytes:
		return []ValueType{Pointer(Bits(8)), Word()}, true
	case assembler.ValNumber:
		return []ValueType{Bits(64)}, true
	case assembler.ValBoolean:
		return []ValueType{Bits(1)}, true
	}
	return nil, false
}

func (lw *lowerer) ffiTypes(t ir.FFIType) ([]ValueType, bool) {
	switch t {
	case ir.FFIRuntime:
		return lw.valueTypes(assembler.ValRuntime)
	case ir.FFIBytes:
		return lw.valueTypes(assembler.ValBytes)
	case ir.FFIInt:
		return lw.valueTypes(assembler.ValNumber)
	case ir.FFIBool:
		return lw.valueTypes(assembler.ValBoolean)
	}
	return nil, false
}

func (lw *lowerer) external(decl *ir.ExternalFunctionDecl) (*External, error) {
	ext := &External{Name: decl.Name}
	for _, p := range decl.Params {
		ts, ok := lw.ffiTypes(p)
		if !ok {
			return nil, &NotImplementedError{Function: decl.Name, What: fmt.Sprintf("external parameter of type %s", p)}
		}
		ext.Params = append(ext.Params, ts...)
	}
	if decl.IsVoid() {
		return ext, nil
	}
	ts, ok := lw.ffiTypes(decl.Returns)
	if !ok || len(ts) != 1 {
		return nil, &NotImplementedError{Function: decl.Name, What: fmt.Sprintf("external result of type %s", decl.Returns)}
	}
	ext.Returns = Returns(ts[0])
	return ext, nil
}

func (lw *lowerer) signature(f *assembler.Func) (*Func, error) {
	fn := &Func{
		Name:  f.Name,
		Entry: id.MapContext[id.Backend](f.Entry),
		// The runtime handle.
		Params: []Param{{Type: lw.runtimeHandle()}},
	}
	for _, p := range f.Params() {
		ts, ok := lw.valueTypes(p.Type)
		if !ok {
			return nil, &NotImplementedError{Function: f.Name, What: fmt.Sprintf("parameter of type %s", p.Type)}
		}
		for _, t := range ts {
			fn.Params = append(fn.Params, Param{Type: t})
		}
	}
	if f.Returns.Kind == assembler.ReturnValue {
		ts, ok := lw.valueTypes(f.Returns.Type)
		if !ok || len(ts) != 1 {
			return nil, &NotImplementedError{Function: f.Name, What: fmt.Sprintf("result of type %s", f.Returns.Type)}
		}
		fn.Returns = Returns(ts[0])
	}
	return fn, nil
}

// fnLowerer lowers the body of one function.
type fnLowerer struct {
	lw   *lowerer
	src  *assembler.Func
	fn   *Func
	regs id.Counter[id.RegisterKind, id.Backend]

	// vals maps each assembled register to the registers holding it.
	vals  map[assembler.Register][]Register
	insts []Instruction
}

func (lw *lowerer) body(src *assembler.Func, fn *Func) error {
	fl := &fnLowerer{lw: lw, src: src, fn: fn, vals: make(map[assembler.Register][]Register)}

	if len(src.Blocks) != 1 {
		return &NotImplementedError{Function: src.Name, What: fmt.Sprintf("control flow across %d blocks", len(src.Blocks))}
	}
	entry := src.Blocks[src.Entry]
	if entry == nil {
		return fmt.Errorf("lower %s: entry block $%s missing", src.Name, src.Entry)
	}

	// Parameter registers are numbered in declaration order, runtime first.
	fn.Params[0].Register = fl.regs.Next()
	i := 1
	for _, p := range entry.Params {
		n := 1
		if p.Type == assembler.ValBytes {
			n = 2
		}
		var rs []Register
		for range n {
			fn.Params[i].Register = fl.regs.Next()
			rs = append(rs, fn.Params[i].Register)
			i++
		}
		fl.vals[p.Register] = rs
	}

	for _, inst := range entry.Instructions {
		if err := fl.instruction(inst); err != nil {
			return err
		}
	}
	if err := fl.terminator(entry.End); err != nil {
		return err
	}

	fn.Blocks = map[Block][]Instruction{fn.Entry: fl.insts}
	lw.logger.Debug("lowered function", "name", fn.Name, "params", len(fn.Params), "instructions", len(fl.insts))
	return nil
}

func (fl *fnLowerer) unsupported(what string) *NotImplementedError {
	return &NotImplementedError{Function: fl.src.Name, Block: "$" + fl.src.Entry.String(), What: what}
}

func (fl *fnLowerer) runtime() Register {
	return fl.fn.Params[0].Register
}

func (fl *fnLowerer) get(r assembler.Register) ([]Register, error) {
	rs, ok := fl.vals[r]
	if !ok {
		return nil, fmt.Errorf("lower %s: register %%%s used before it is defined", fl.src.Name, r)
	}
	return rs, nil
}

func (fl *fnLowerer) args(rs []assembler.Register) ([]Register, error) {
	var out []Register
	for _, r := range rs {
		vs, err := fl.get(r)
		if err != nil {
			return nil, err
		}
		out = append(out, vs...)
	}
	return out, nil
}

func (fl *fnLowerer) result(dst *assembler.Register, ret ReturnType, callee string) (*Register, error) {
	if dst == nil {
		return nil, nil
	}
	if ret.IsVoid() {
		return nil, fmt.Errorf("lower %s: result of void call to %s is used", fl.src.Name, callee)
	}
	r := fl.regs.Next()
	fl.vals[*dst] = []Register{r}
	return &r, nil
}

func (fl *fnLowerer) instruction(inst assembler.Instruction) error {
	switch in := inst.(type) {
	case *assembler.GetRuntime:
		fl.vals[in.Result] = []Register{fl.runtime()}
		return nil

	case *assembler.MakeString:
		c := id.MapContext[id.Backend](in.Constant)
		ptr, n := fl.regs.Next(), fl.regs.Next()
		fl.insts = append(fl.insts,
			&LoadConstPtr{Result: ptr, Constant: c},
			&LoadConstLen{Result: n, Constant: c},
		)
		fl.vals[in.Result] = []Register{ptr, n}
		return nil

	case *assembler.Call:
		f := id.MapContext[id.Backend](in.Function)
		callee, ok := fl.lw.out.Functions[f]
		if !ok {
			return fmt.Errorf("lower %s: call to unknown function @%s", fl.src.Name, f)
		}
		args, err := fl.args(in.Args)
		if err != nil {
			return err
		}
		args = append([]Register{fl.runtime()}, args...)
		if len(args) != len(callee.Params) {
			return fmt.Errorf("lower %s: %d arguments for %d parameters of %s", fl.src.Name, len(args), len(callee.Params), callee.Name)
		}
		res, err := fl.result(in.Result, callee.Returns, callee.Name)
		if err != nil {
			return err
		}
		fl.insts = append(fl.insts, &Call{Result: res, Callee: StaticCallee(f), Args: args})
		return nil

	case *assembler.CallExtern:
		e := id.MapContext[id.Backend](in.Function)
		ext, ok := fl.lw.out.Externals[e]
		if !ok {
			return fmt.Errorf("lower %s: call to unknown external &%s", fl.src.Name, e)
		}
		args, err := fl.args(in.Args)
		if err != nil {
			return err
		}
		if len(args) != len(ext.Params) {
			return fmt.Errorf("lower %s: %d arguments for %d parameters of %s", fl.src.Name, len(args), len(ext.Params), ext.Name)
		}
		res, err := fl.result(in.Result, ext.Returns, ext.Name)
		if err != nil {
			return err
		}
		fl.insts = append(fl.insts, &Call{Result: res, Callee: ExternalCallee(e), Args: args})
		return nil
	}
	return fl.unsupported(fmt.Sprintf("instruction %q", inst.String()))
}

func (fl *fnLowerer) terminator(end assembler.Terminator) error {
	ret, ok := end.(*assembler.Return)
	if !ok {
		return fl.unsupported(fmt.Sprintf("terminator %q", end.String()))
	}
	if ret.Value == nil {
		fl.insts = append(fl.insts, &Return{})
		return nil
	}
	vs, err := fl.get(*ret.Value)
	if err != nil {
		return err
	}
	if len(vs) != 1 {
		return fl.unsupported("returning a multi-register value")
	}
	fl.insts = append(fl.insts, &Return{Value: &vs[0]})
	return nil
}
