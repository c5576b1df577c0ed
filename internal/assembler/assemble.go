package assembler

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/NinoDS/jssat/internal/engine"
	"github.com/NinoDS/jssat/internal/id"
	"github.com/NinoDS/jssat/internal/ir"
)

// Option configures Assemble.
type Option func(*assembler)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *assembler) {
		a.logger = l
	}
}

type assembler struct {
	prog   *ir.Program
	eng    *engine.Engine
	logger *slog.Logger
	out    *Program

	fns       map[engine.Key]Function
	constants map[string]Constant
	constIDs  id.Counter[id.ConstantKind, id.Asm]
}

// Assemble emits one function per specialization discovered by eng, which
// must have explored prog without error.
func Assemble(prog *ir.Program, eng *engine.Engine, opts ...Option) (*Program, error) {
	a := &assembler{
		prog:   prog,
		eng:    eng,
		logger: slog.Default(),
		out: &Program{
			Constants: make(map[Constant][]byte),
			Globals:   make(map[Global]*ir.GlobalDecl),
			Externals: make(map[ExternalFunction]*ir.ExternalFunctionDecl),
			Functions: make(map[Function]*Func),
		},
		fns:       make(map[engine.Key]Function),
		constants: make(map[string]Constant),
	}
	for _, opt := range opts {
		opt(a)
	}

	// Globals and externals keep their numbering.
	for _, g := range prog.SortedGlobals() {
		a.out.Globals[id.MapContext[id.Asm](g)] = prog.Globals[g]
	}
	for _, e := range prog.SortedExternals() {
		a.out.Externals[id.MapContext[id.Asm](e)] = prog.Externals[e]
	}

	invs := eng.AllFnInvocations()
	if err := a.assignFunctionIDs(invs); err != nil {
		return nil, err
	}
	for _, inv := range invs {
		if err := a.assembleFunction(inv); err != nil {
			return nil, err
		}
	}

	for _, k := range eng.Roots() {
		f, ok := a.fns[k]
		if !ok {
			return nil, &Error{Message: fmt.Sprintf("entry specialization %s was not discovered", k)}
		}
		a.out.Entries = append(a.out.Entries, f)
	}

	a.logger.Debug("assembled program",
		"functions", len(a.out.Functions),
		"constants", len(a.out.Constants),
		"entries", len(a.out.Entries),
	)
	return a.out, nil
}

// assignFunctionIDs fills the function table before any body is emitted,
// so calls can resolve specializations that are assembled later.
func (a *assembler) assignFunctionIDs(invs []*engine.Invocation) error {
	var ids id.Counter[id.FunctionKind, id.Asm]
	ordinals := make(map[ir.Function]int)

	for _, inv := range invs {
		src, err := a.prog.Func(inv.Key.Function)
		if err != nil {
			return &Error{Message: err.Error(), Err: err}
		}
		if !inv.State.Done() {
			return &Error{
				Function: src.Name,
				Message:  fmt.Sprintf("specialization %s is %s", inv.Signature.Text, inv.State),
			}
		}

		f := ids.Next()
		n := ordinals[inv.Key.Function]
		ordinals[inv.Key.Function]++

		a.fns[inv.Key] = f
		a.out.Functions[f] = &Func{
			Name:      fmt.Sprintf("%s_%d", src.Name, n),
			Source:    inv.Key.Function,
			Signature: inv.Signature.Text,
			Returns:   returnType(inv.Outcome),
			Blocks:    make(map[Block]*BasicBlock),
		}
	}
	return nil
}

func returnType(o engine.Outcome) ReturnType {
	switch o.Kind {
	case engine.Void:
		return ReturnType{Kind: ReturnVoid}
	case engine.Value:
		return ReturnType{Kind: ReturnValue, Type: ValueTypeOf(o.Return())}
	}
	return ReturnType{Kind: ReturnNever}
}

// constant interns payload into the output constant table.
func (a *assembler) constant(payload []byte) Constant {
	if c, ok := a.constants[string(payload)]; ok {
		return c
	}
	c := a.constIDs.Next()
	a.constants[string(payload)] = c
	a.out.Constants[c] = slices.Clone(payload)
	return c
}

// callee resolves a call bound by the engine to its specialization and
// assembled identifier.
func (a *assembler) callee(key engine.Key) (*engine.Invocation, Function, error) {
	inv, ok := a.eng.Lookup(key)
	if !ok {
		return nil, Function{}, fmt.Errorf("specialization %s not found", key)
	}
	f, ok := a.fns[key]
	if !ok {
		return nil, Function{}, fmt.Errorf("specialization %s has no assembled function", key)
	}
	return inv, f, nil
}
