package engine

import (
	"bytes"
	"math"
	"strconv"

	"github.com/NinoDS/jssat/internal/ir"
	"github.com/NinoDS/jssat/internal/types"
)

// executor applies instructions of one block execution to its state.
type executor struct {
	x     *explorer
	block ir.Block
	state *types.TypeBag
	res   *BlockResult
}

func (ex *executor) fail(code ErrorCode, r ir.Register, cause error, format string, args ...any) *Error {
	return ex.x.fail(code, ex.block, "%"+r.String(), cause, format, args...)
}

func (ex *executor) get(r ir.Register) (types.RegisterType, error) {
	t, err := ex.state.Get(r)
	if err != nil {
		return types.RegisterType{}, ex.fail(ErrCodeLookupFailed, r, err, "%v", err)
	}
	return t, nil
}

func (ex *executor) types(regs []ir.Register) ([]types.RegisterType, error) {
	out := make([]types.RegisterType, len(regs))
	for i, r := range regs {
		t, err := ex.get(r)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func (ex *executor) assign(r ir.Register, t types.RegisterType) error {
	if err := ex.state.Assign(r, t); err != nil {
		return ex.fail(ErrCodeLookupFailed, r, err, "%v", err)
	}
	return nil
}

// exec applies instruction i. It returns false when control cannot
// continue past it.
func (ex *executor) exec(i int, inst ir.Instruction) (bool, error) {
	arena := ex.state.Arena()
	prog := ex.x.e.prog

	switch in := inst.(type) {
	case *ir.Comment:
		return true, nil

	case *ir.NewRecord:
		return true, ex.assign(in.Result, ex.state.NewRecord())

	case *ir.RecordGet:
		a, err := ex.record(in.Record)
		if err != nil {
			return false, err
		}
		k, err := ex.key(in.Key)
		if err != nil {
			return false, err
		}
		t, err := ex.state.GetField(a, k)
		if err != nil {
			return false, ex.fieldError(in.Result, err)
		}
		return true, ex.assign(in.Result, t)

	case *ir.RecordSet:
		a, err := ex.record(in.Record)
		if err != nil {
			return false, err
		}
		k, err := ex.key(in.Key)
		if err != nil {
			return false, err
		}
		v, err := ex.get(in.Value)
		if err != nil {
			return false, err
		}
		if err := ex.state.SetField(a, k, v); err != nil {
			return false, ex.fieldError(in.Record, err)
		}
		return true, nil

	case *ir.MakeTrivial:
		return true, ex.assign(in.Result, types.Trivial(in.Item))

	case *ir.MakeBytes:
		payload, ok := prog.Constants[in.Constant]
		if !ok {
			return false, ex.fail(ErrCodeLookupFailed, in.Result, nil, "constant #%s not found", in.Constant)
		}
		return true, ex.assign(in.Result, types.String(arena.Intern(payload)))

	case *ir.MakeInteger:
		return true, ex.assign(in.Result, types.Int(in.Value))

	case *ir.MakeBoolean:
		return true, ex.assign(in.Result, types.Bool(in.Value))

	case *ir.GetFnPtr:
		return true, ex.assign(in.Result, types.FnPtr(in.Function))

	case *ir.BinaryOp:
		l, err := ex.get(in.Lhs)
		if err != nil {
			return false, err
		}
		r, err := ex.get(in.Rhs)
		if err != nil {
			return false, err
		}
		t, ok := binary(arena, in.Op, l, r)
		if !ok {
			return false, ex.fail(ErrCodeTypeMismatch, in.Result, nil,
				"%s on %s and %s", in.Op, ex.state.Format(l), ex.state.Format(r))
		}
		return true, ex.assign(in.Result, t)

	case *ir.Negate:
		v, err := ex.get(in.Operand)
		if err != nil {
			return false, err
		}
		switch {
		case v.Kind() == types.KindBool:
			b, _ := v.BoolValue()
			return true, ex.assign(in.Result, types.Bool(!b))
		case v.IsBoolean() || v.Kind() == types.KindAny:
			return true, ex.assign(in.Result, types.Boolean())
		}
		return false, ex.fail(ErrCodeTypeMismatch, in.Result, nil, "negate on %s", ex.state.Format(v))

	case *ir.CallStatic:
		return ex.call(i, in.Function, in.Result, in.Args)

	case *ir.CallVirt:
		ptr, err := ex.get(in.FnPtr)
		if err != nil {
			return false, err
		}
		if fn, ok := ptr.Function(); ok {
			return ex.call(i, fn, in.Result, in.Args)
		}
		if ptr.Kind() == types.KindAny {
			return false, ex.fail(ErrCodeNotImplemented, in.FnPtr, nil, "call through a function pointer of unknown target")
		}
		return false, ex.fail(ErrCodeTypeMismatch, in.FnPtr, nil, "call through %s", ex.state.Format(ptr))

	case *ir.CallExtern:
		decl, ok := prog.Externals[in.Function]
		if !ok {
			return false, ex.x.fail(ErrCodeLookupFailed, ex.block, "", nil, "external function &%s not found", in.Function)
		}
		if _, err := ex.types(in.Args); err != nil {
			return false, err
		}
		if in.Result != nil {
			return true, ex.assign(*in.Result, types.FromFFI(decl.Returns))
		}
		return true, nil

	case *ir.LoadGlobal:
		decl, ok := prog.Globals[in.Global]
		if !ok {
			return false, ex.fail(ErrCodeLookupFailed, in.Result, nil, "global ^%s not found", in.Global)
		}
		return true, ex.assign(in.Result, types.FromSort(decl.Sort))

	case *ir.StoreGlobal:
		decl, ok := prog.Globals[in.Global]
		if !ok {
			return false, ex.fail(ErrCodeLookupFailed, in.Value, nil, "global ^%s not found", in.Global)
		}
		v, err := ex.get(in.Value)
		if err != nil {
			return false, err
		}
		if !types.Admits(decl.Sort, v) {
			return false, ex.fail(ErrCodeTypeMismatch, in.Value, nil,
				"global %s of sort %s cannot hold %s", decl.Name, decl.Sort, ex.state.Format(v))
		}
		return true, nil

	case *ir.RefIsEmpty:
		v, err := ex.get(in.Ref)
		if err != nil {
			return false, err
		}
		switch {
		case v == types.Trivial(ir.TrivialEmpty):
			return true, ex.assign(in.Result, types.Bool(true))
		case v.Kind() == types.KindAny:
			return true, ex.assign(in.Result, types.Boolean())
		}
		return true, ex.assign(in.Result, types.Bool(false))

	case *ir.RefDeref:
		v, err := ex.get(in.Ref)
		if err != nil {
			return false, err
		}
		if v == types.Trivial(ir.TrivialEmpty) {
			return false, ex.fail(ErrCodeTypeMismatch, in.Ref, nil, "dereference of an empty reference")
		}
		return true, ex.assign(in.Result, v)
	}
	return false, ex.x.fail(ErrCodeNotImplemented, ex.block, "", nil, "instruction %T", inst)
}

// record resolves the allocation held by r.
func (ex *executor) record(r ir.Register) (types.Allocation, error) {
	t, err := ex.get(r)
	if err != nil {
		return types.Allocation{}, err
	}
	if a, ok := t.Allocation(); ok {
		return a, nil
	}
	if t.Kind() == types.KindAny {
		return types.Allocation{}, ex.fail(ErrCodeNotImplemented, r, nil, "property access on a value of unknown type")
	}
	return types.Allocation{}, ex.fail(ErrCodeTypeMismatch, r, nil, "property access on %s", ex.state.Format(t))
}

// key resolves a record key. Property names must be known exactly;
// integers are keyed by their decimal text.
func (ex *executor) key(k ir.RecordKey) (types.ShapeKey, error) {
	if k.IsSlot() {
		return types.SlotKey(k.Slot), nil
	}
	t, err := ex.get(k.Prop)
	if err != nil {
		return types.ShapeKey{}, err
	}
	if c, ok := t.Constant(); ok {
		return types.StrKey(c), nil
	}
	if v, ok := t.IntValue(); ok {
		return types.StrKey(ex.state.Arena().Intern([]byte(strconv.FormatInt(v, 10)))), nil
	}
	switch t.Kind() {
	case types.KindAny, types.KindBytes, types.KindNumber:
		return types.ShapeKey{}, ex.fail(ErrCodeNotImplemented, k.Prop, nil,
			"property key of type %s is not known at compile time", ex.state.Format(t))
	}
	return types.ShapeKey{}, ex.fail(ErrCodeTypeMismatch, k.Prop, nil, "property key of type %s", ex.state.Format(t))
}

func (ex *executor) fieldError(r ir.Register, err error) error {
	if types.IsJoinConflict(err) {
		return ex.fail(ErrCodeJoinConflict, r, err, "%v", err)
	}
	if types.IsMissing(err) {
		return ex.fail(ErrCodeLookupFailed, r, err, "%v", err)
	}
	return ex.fail(ErrCodeTypeMismatch, r, err, "%v", err)
}

// call specializes fn for the argument types and applies its outcome: the
// result type and the final shapes of records the callee received.
func (ex *executor) call(i int, fn ir.Function, result *ir.Register, argRegs []ir.Register) (bool, error) {
	args, err := ex.types(argRegs)
	if err != nil {
		return false, err
	}
	callee, err := ex.x.e.specialize(fn, ex.state, args)
	if err != nil {
		return false, err
	}
	ex.res.Calls[i] = callee.Key

	out := callee.Outcome
	if out.Kind == Never {
		return false, nil
	}

	// Callee allocations are mapped back onto the caller's: those seen at
	// entry by structure, the formals by position.
	m := callee.Entry.MatchAllocations(callee.Args, ex.state, args)
	for j, t := range out.Finals() {
		if j >= len(args) {
			break
		}
		a, ok := t.Allocation()
		ca, cok := args[j].Allocation()
		if ok && cok {
			m[a] = ca
		}
	}
	rets, err := ex.state.Import(out.State, out.Types, m)
	if err != nil {
		return false, ex.x.fail(ErrCodeLookupFailed, ex.block, "", err, "outcome of %s: %v", callee.Signature.Text, err)
	}

	if result != nil {
		return true, ex.assign(*result, rets[0])
	}
	return true, nil
}

// binary computes the type of a primitive operation, folding exact
// operands. It reports false when the operands are not valid for op.
func binary(arena *types.Arena, op ir.BinaryKind, l, r types.RegisterType) (types.RegisterType, bool) {
	anyOperand := l.Kind() == types.KindAny || r.Kind() == types.KindAny

	switch op {
	case ir.OpLessThan:
		if x, ok := l.IntValue(); ok {
			if y, ok := r.IntValue(); ok {
				return types.Bool(x < y), true
			}
		}
		if x, ok := l.Constant(); ok {
			if y, ok := r.Constant(); ok {
				return types.Bool(bytes.Compare(arena.Payload(x), arena.Payload(y)) < 0), true
			}
		}
		if (l.IsNumeric() && r.IsNumeric()) || (l.IsStringy() && r.IsStringy()) {
			return types.Boolean(), true
		}
		if anyOperand && operable(l) && operable(r) {
			return types.Boolean(), true
		}
		return types.RegisterType{}, false

	case ir.OpEquals:
		if exact(l) && exact(r) {
			return types.Bool(l == r), true
		}
		if l.IsRecord() && r.IsRecord() && l == r {
			return types.Bool(true), true
		}
		if anyOperand || l.IsRecord() || r.IsRecord() {
			return types.Boolean(), true
		}
		if l.General().Kind() != r.General().Kind() {
			return types.Bool(false), true
		}
		return types.Boolean(), true

	case ir.OpAdd:
		if x, ok := l.IntValue(); ok {
			if y, ok := r.IntValue(); ok {
				if sum, ok := addInt(x, y); ok {
					return types.Int(sum), true
				}
				return types.Number(), true
			}
		}
		if x, ok := l.Constant(); ok {
			if y, ok := r.Constant(); ok {
				joined := append(bytes.Clone(arena.Payload(x)), arena.Payload(y)...)
				return types.String(arena.Intern(joined)), true
			}
		}
		switch {
		case l.IsNumeric() && r.IsNumeric():
			return types.Number(), true
		case l.IsStringy() && r.IsStringy():
			return types.Bytes(), true
		case anyOperand && operable(l) && operable(r):
			return types.Any(), true
		}
		return types.RegisterType{}, false

	case ir.OpOr:
		if !(l.IsBoolean() || l.Kind() == types.KindAny) || !(r.IsBoolean() || r.Kind() == types.KindAny) {
			return types.RegisterType{}, false
		}
		x, lok := l.BoolValue()
		y, rok := r.BoolValue()
		switch {
		case (lok && x) || (rok && y):
			return types.Bool(true), true
		case lok && rok:
			return types.Bool(false), true
		}
		return types.Boolean(), true
	}
	return types.RegisterType{}, false
}

// addInt adds two exact integers, failing when the sum leaves int64.
func addInt(x, y int64) (int64, bool) {
	if (y > 0 && x > math.MaxInt64-y) || (y < 0 && x < math.MinInt64-y) {
		return 0, false
	}
	return x + y, true
}

// exact reports whether t denotes a single known value.
func exact(t types.RegisterType) bool {
	switch t.Kind() {
	case types.KindInt, types.KindBool, types.KindString, types.KindTrivial, types.KindFnPtr:
		return true
	}
	return false
}

// operable reports whether t may take part in arithmetic or comparison.
func operable(t types.RegisterType) bool {
	return t.Kind() == types.KindAny || t.IsNumeric() || t.IsStringy()
}
