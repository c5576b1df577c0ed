package assembler

import (
	"fmt"
	"strconv"

	"github.com/NinoDS/jssat/internal/engine"
	"github.com/NinoDS/jssat/internal/id"
	"github.com/NinoDS/jssat/internal/ir"
	"github.com/NinoDS/jssat/internal/isa"
	"github.com/NinoDS/jssat/internal/retag"
	"github.com/NinoDS/jssat/internal/types"
)

// fnAssembler emits the body of one specialization.
type fnAssembler struct {
	a   *assembler
	inv *engine.Invocation
	src *ir.Func
	fn  *Func

	regs   *retag.Registers[id.IR, id.Asm]
	blocks *retag.Blocks[id.IR, id.Asm]
}

func (a *assembler) assembleFunction(inv *engine.Invocation) error {
	src, err := a.prog.Func(inv.Key.Function)
	if err != nil {
		return &Error{Message: err.Error(), Err: err}
	}
	fa := &fnAssembler{
		a:      a,
		inv:    inv,
		src:    src,
		fn:     a.out.Functions[a.fns[inv.Key]],
		regs:   retag.New[id.RegisterKind, id.IR, id.Asm](),
		blocks: retag.New[id.BlockKind, id.IR, id.Asm](),
	}
	if err := fa.assemble(); err != nil {
		return err
	}
	a.logger.Debug("assembled function",
		"name", fa.fn.Name,
		"signature", fa.fn.Signature,
		"blocks", len(fa.fn.Blocks),
		"returns", fa.fn.Returns.String(),
	)
	return nil
}

// assemble walks the explored blocks breadth-first from the entry block.
func (fa *fnAssembler) assemble() error {
	entry := fa.inv.Key.Entry
	fa.fn.Entry = fa.blocks.Map(entry)

	queue := []ir.Block{entry}
	seen := map[ir.Block]bool{entry: true}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]

		blk, ok := fa.src.Blocks[b]
		if !ok {
			return fa.fail(b, nil, "block not found in source")
		}
		res, ok := fa.inv.Blocks[b]
		if !ok {
			return fa.fail(b, nil, "block was never explored")
		}

		out, err := fa.block(b, blk, res)
		if err != nil {
			return err
		}
		fa.fn.Blocks[fa.blocks.Map(b)] = out

		for _, next := range res.Successors(blk.End) {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return nil
}

func (fa *fnAssembler) fail(b ir.Block, cause error, format string, args ...any) *Error {
	return &Error{
		Function: fa.fn.Name,
		Block:    "$" + b.String(),
		Message:  fmt.Sprintf(format, args...),
		Err:      cause,
	}
}

// kept reports, per parameter of an explored block, whether the parameter
// survives assembly.
func kept(res *engine.BlockResult) []bool {
	out := make([]bool, len(res.Params))
	for i, t := range res.Params {
		out[i] = !types.IsSimple(t)
	}
	return out
}

// block assembles one explored block.
func (fa *fnAssembler) block(b ir.Block, blk *ir.BasicBlock, res *engine.BlockResult) (*BasicBlock, error) {
	w := &blockWriter{
		fa:           fa,
		b:            b,
		res:          res,
		materialized: make(map[ir.Register]Register),
	}

	if len(res.Params) != len(blk.Params) {
		return nil, fa.fail(b, nil, "%d parameter types for %d parameters", len(res.Params), len(blk.Params))
	}
	var params []Param
	var paramRegs []Register
	for i, keep := range kept(res) {
		if !keep {
			continue
		}
		r := fa.regs.Map(blk.Params[i])
		params = append(params, Param{Register: r, Type: ValueTypeOf(res.Params[i])})
		paramRegs = append(paramRegs, r)
	}

	last := len(blk.Instructions) - 1
	if res.Stop >= 0 {
		last = res.Stop
	}
	for i := 0; i <= last; i++ {
		if err := w.instruction(i, blk.Instructions[i]); err != nil {
			return nil, err
		}
	}

	end, err := w.terminator(blk.End)
	if err != nil {
		return nil, err
	}

	insts := isa.EliminateDeadCode(w.insts, end.UsedRegisters())
	if err := isa.CheckBlock[id.Asm, Instruction](paramRegs, insts, end); err != nil {
		return nil, fa.fail(b, err, "assembled block is unsound: %v", err)
	}
	return &BasicBlock{Params: params, Instructions: insts, End: end}, nil
}

// blockWriter translates the instructions of one block.
type blockWriter struct {
	fa    *fnAssembler
	b     ir.Block
	res   *engine.BlockResult
	insts []Instruction

	// materialized maps simple source registers to the register holding
	// their rebuilt value in this block.
	materialized map[ir.Register]Register
}

func (w *blockWriter) emit(inst Instruction) {
	w.insts = append(w.insts, inst)
}

func (w *blockWriter) typeOf(r ir.Register) (types.RegisterType, error) {
	t, err := w.res.State.Get(r)
	if err != nil {
		return types.RegisterType{}, w.fa.fail(w.b, err, "%v", err)
	}
	return t, nil
}

func (w *blockWriter) simple(r ir.Register) (bool, error) {
	t, err := w.typeOf(r)
	if err != nil {
		return false, err
	}
	return types.IsSimple(t), nil
}

// use returns the register holding r, materializing r first when it is
// simple and has not been rebuilt in this block yet.
func (w *blockWriter) use(r ir.Register) (Register, error) {
	t, err := w.typeOf(r)
	if err != nil {
		return Register{}, err
	}
	if !types.IsSimple(t) {
		return w.fa.regs.Map(r), nil
	}
	if m, ok := w.materialized[r]; ok {
		return m, nil
	}
	dst := w.fa.regs.Map(r)
	w.materialize(dst, t)
	w.materialized[r] = dst
	return dst, nil
}

// pass returns a register holding r for an external call: simple values
// are rebuilt right before the call.
func (w *blockWriter) pass(r ir.Register) (Register, error) {
	t, err := w.typeOf(r)
	if err != nil {
		return Register{}, err
	}
	if !types.IsSimple(t) {
		return w.fa.regs.Map(r), nil
	}
	dst := w.fa.regs.Gen()
	w.materialize(dst, t)
	return dst, nil
}

func (w *blockWriter) materialize(dst Register, t types.RegisterType) {
	switch t.Kind() {
	case types.KindTrivial:
		w.emit(&GetRuntime{Result: dst})
	case types.KindInt:
		v, _ := t.IntValue()
		w.emit(&MakeInteger{Result: dst, Value: v})
	case types.KindBool:
		v, _ := t.BoolValue()
		w.emit(&MakeBoolean{Result: dst, Value: v})
	case types.KindString:
		c, _ := t.Constant()
		payload := w.res.State.Arena().Payload(c)
		w.emit(&MakeString{Result: dst, Constant: w.fa.a.constant(payload)})
	}
}

// define returns the output register for the result of a pure
// instruction, or false when the result is simple and rebuilt at its uses.
func (w *blockWriter) define(r ir.Register) (Register, bool, error) {
	simple, err := w.simple(r)
	if err != nil || simple {
		return Register{}, false, err
	}
	return w.fa.regs.Map(r), true, nil
}

func (w *blockWriter) key(k ir.RecordKey) (RecordKey, error) {
	if k.IsSlot() {
		return RecordKey{Slot: k.Slot}, nil
	}
	t, err := w.typeOf(k.Prop)
	if err != nil {
		return RecordKey{}, err
	}
	if c, ok := t.Constant(); ok {
		return RecordKey{Constant: w.fa.a.constant(w.res.State.Arena().Payload(c))}, nil
	}
	if v, ok := t.IntValue(); ok {
		return RecordKey{Constant: w.fa.a.constant([]byte(strconv.FormatInt(v, 10)))}, nil
	}
	return RecordKey{}, w.fa.fail(w.b, nil, "property key %%%s has non-constant type %s", k.Prop, t)
}

func (w *blockWriter) instruction(i int, inst ir.Instruction) error {
	switch in := inst.(type) {
	case *ir.Comment, *ir.MakeBytes, *ir.MakeInteger, *ir.MakeBoolean:
		// Literals are simple and rebuilt at their uses.
		return nil

	case *ir.MakeTrivial:
		dst, ok, err := w.define(in.Result)
		if ok {
			w.emit(&MakeTrivial{Result: dst, Item: in.Item})
		}
		return err

	case *ir.GetFnPtr:
		dst, ok, err := w.define(in.Result)
		if ok {
			w.emit(&MakeFnPtr{Result: dst, Source: in.Function})
		}
		return err

	case *ir.NewRecord:
		w.emit(&NewRecord{Result: w.fa.regs.Map(in.Result), Kind: in.Kind, GC: in.GC})
		return nil

	case *ir.RecordGet:
		dst, ok, err := w.define(in.Result)
		if err != nil || !ok {
			return err
		}
		rec, err := w.use(in.Record)
		if err != nil {
			return err
		}
		k, err := w.key(in.Key)
		if err != nil {
			return err
		}
		w.emit(&RecordGet{Result: dst, Record: rec, Key: k})
		return nil

	case *ir.RecordSet:
		rec, err := w.use(in.Record)
		if err != nil {
			return err
		}
		k, err := w.key(in.Key)
		if err != nil {
			return err
		}
		v, err := w.use(in.Value)
		if err != nil {
			return err
		}
		w.emit(&RecordSet{Record: rec, Key: k, Value: v})
		return nil

	case *ir.BinaryOp:
		dst, ok, err := w.define(in.Result)
		if err != nil || !ok {
			return err
		}
		l, err := w.use(in.Lhs)
		if err != nil {
			return err
		}
		r, err := w.use(in.Rhs)
		if err != nil {
			return err
		}
		w.emit(&BinaryOp{Result: dst, Op: in.Op, Lhs: l, Rhs: r})
		return nil

	case *ir.Negate:
		dst, ok, err := w.define(in.Result)
		if err != nil || !ok {
			return err
		}
		v, err := w.use(in.Operand)
		if err != nil {
			return err
		}
		w.emit(&Negate{Result: dst, Operand: v})
		return nil

	case *ir.CallStatic:
		return w.call(i, in.Result, in.Args)

	case *ir.CallVirt:
		return w.call(i, in.Result, in.Args)

	case *ir.CallExtern:
		return w.callExtern(in)

	case *ir.LoadGlobal:
		dst, ok, err := w.define(in.Result)
		if ok {
			w.emit(&LoadGlobal{Result: dst, Global: id.MapContext[id.Asm](in.Global)})
		}
		return err

	case *ir.StoreGlobal:
		v, err := w.use(in.Value)
		if err != nil {
			return err
		}
		w.emit(&StoreGlobal{Global: id.MapContext[id.Asm](in.Global), Value: v})
		return nil

	case *ir.RefIsEmpty:
		dst, ok, err := w.define(in.Result)
		if err != nil || !ok {
			return err
		}
		ref, err := w.use(in.Ref)
		if err != nil {
			return err
		}
		w.emit(&RefIsEmpty{Result: dst, Ref: ref})
		return nil

	case *ir.RefDeref:
		dst, ok, err := w.define(in.Result)
		if err != nil || !ok {
			return err
		}
		ref, err := w.use(in.Ref)
		if err != nil {
			return err
		}
		w.emit(&RefDeref{Result: dst, Ref: ref})
		return nil
	}
	return w.fa.fail(w.b, nil, "cannot assemble instruction %T", inst)
}

// call emits a call to the specialization the engine bound instruction i
// to. Only arguments whose callee parameter is kept are passed.
func (w *blockWriter) call(i int, result *ir.Register, args []ir.Register) error {
	key, ok := w.res.Calls[i]
	if !ok {
		return w.fa.fail(w.b, nil, "call at instruction %d was not bound to a specialization", i)
	}
	callee, f, err := w.fa.a.callee(key)
	if err != nil {
		return w.fa.fail(w.b, err, "%v", err)
	}
	entry, ok := callee.Blocks[callee.Key.Entry]
	if !ok {
		return w.fa.fail(w.b, nil, "entry block of %s was never explored", key)
	}
	keep := kept(entry)
	if len(keep) != len(args) {
		return w.fa.fail(w.b, nil, "%d arguments for %d parameters of %s", len(args), len(keep), key)
	}

	call := &Call{Function: f}
	for j, r := range args {
		if !keep[j] {
			continue
		}
		v, err := w.use(r)
		if err != nil {
			return err
		}
		call.Args = append(call.Args, v)
	}
	w.emit(call)

	if result == nil || callee.Outcome.Kind == engine.Never {
		return nil
	}
	dst, ok, err := w.define(*result)
	if err != nil || !ok {
		return err
	}
	if callee.Outcome.Kind == engine.Void {
		w.emit(&MakeTrivial{Result: dst, Item: ir.TrivialUndefined})
		return nil
	}
	call.Result = &dst
	return nil
}

func (w *blockWriter) callExtern(in *ir.CallExtern) error {
	call := &CallExtern{Function: id.MapContext[id.Asm](in.Function)}
	for _, r := range in.Args {
		v, err := w.pass(r)
		if err != nil {
			return err
		}
		call.Args = append(call.Args, v)
	}
	w.emit(call)

	if in.Result == nil {
		return nil
	}
	dst, ok, err := w.define(*in.Result)
	if err != nil || !ok {
		return err
	}
	call.Result = &dst
	return nil
}

// jump builds an edge passing the target's kept parameters.
func (w *blockWriter) jump(j ir.BlockJump) (BlockJump, error) {
	target, ok := w.fa.inv.Blocks[j.Block]
	if !ok {
		return BlockJump{}, w.fa.fail(w.b, nil, "jump target $%s was never explored", j.Block)
	}
	keep := kept(target)
	if len(keep) != len(j.Args) {
		return BlockJump{}, w.fa.fail(w.b, nil, "%d arguments for %d parameters of $%s", len(j.Args), len(keep), j.Block)
	}
	out := BlockJump{Block: w.fa.blocks.Map(j.Block)}
	for i, r := range j.Args {
		if !keep[i] {
			continue
		}
		v, err := w.use(r)
		if err != nil {
			return BlockJump{}, err
		}
		out.Args = append(out.Args, v)
	}
	return out, nil
}

func (w *blockWriter) terminator(end ir.Terminator) (Terminator, error) {
	if w.res.Stop >= 0 {
		return &Unreachable{}, nil
	}

	switch t := end.(type) {
	case *ir.Jump:
		j, err := w.jump(t.Target)
		if err != nil {
			return nil, err
		}
		return &Jump{Target: j}, nil

	case *ir.JumpIf:
		switch w.res.Exit {
		case engine.ExitThen:
			j, err := w.jump(t.Then)
			if err != nil {
				return nil, err
			}
			return &Jump{Target: j}, nil
		case engine.ExitElse:
			j, err := w.jump(t.Else)
			if err != nil {
				return nil, err
			}
			return &Jump{Target: j}, nil
		}
		cond, err := w.use(t.Condition)
		if err != nil {
			return nil, err
		}
		then, err := w.jump(t.Then)
		if err != nil {
			return nil, err
		}
		els, err := w.jump(t.Else)
		if err != nil {
			return nil, err
		}
		return &JumpIf{Condition: cond, Then: then, Else: els}, nil

	case *ir.Return:
		if w.fa.fn.Returns.Kind != ReturnValue {
			return &Return{}, nil
		}
		if t.Value == nil {
			dst := w.fa.regs.Gen()
			w.emit(&MakeTrivial{Result: dst, Item: ir.TrivialUndefined})
			return &Return{Value: &dst}, nil
		}
		v, err := w.use(*t.Value)
		if err != nil {
			return nil, err
		}
		return &Return{Value: &v}, nil

	case *ir.Unreachable:
		return &Unreachable{}, nil
	}
	return nil, w.fa.fail(w.b, nil, "cannot assemble terminator %T", end)
}
