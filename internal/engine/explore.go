package engine

import (
	"fmt"
	"slices"

	"github.com/NinoDS/jssat/internal/id"
	"github.com/NinoDS/jssat/internal/ir"
	"github.com/NinoDS/jssat/internal/types"
)

// edge is the abstract state flowing into a block: the types of its
// parameters followed by the tracked formal parameters, and the allocations
// they reach.
type edge struct {
	bag   *types.TypeBag
	types []types.RegisterType
}

// explorer runs the blocks of one specialization to a fixpoint.
//
// Every block has one entry state: the join of all edges seen so far. A
// block runs again whenever its entry state grows. Blocks are picked lowest
// identifier first so the order is independent of map iteration.
type explorer struct {
	e   *Engine
	f   *ir.Func
	inv *Invocation

	entries map[ir.Block]edge
	dirty   map[ir.Block]bool
	returns map[ir.Block]Outcome
	results map[ir.Block]*BlockResult
}

// explore runs the body of f for inv and returns the joined outcome of its
// returns. Block results are stored on inv.
func (e *Engine) explore(f *ir.Func, inv *Invocation) (Outcome, error) {
	x := &explorer{
		e:       e,
		f:       f,
		inv:     inv,
		entries: make(map[ir.Block]edge),
		dirty:   make(map[ir.Block]bool),
		returns: make(map[ir.Block]Outcome),
		results: make(map[ir.Block]*BlockResult),
	}

	start := slices.Concat(inv.Args, inv.Args)
	if err := x.propagate(f.Entry, inv.Entry, start); err != nil {
		return Outcome{}, err
	}

	for len(x.dirty) > 0 {
		b := x.next()
		delete(x.dirty, b)
		if err := x.run(b); err != nil {
			return Outcome{}, err
		}
	}

	inv.Blocks = x.results

	out := Outcome{Kind: Never}
	for _, b := range sortedBlocks(x.returns) {
		joined, err := joinOutcome(e.policy, out, x.returns[b])
		if err != nil {
			return Outcome{}, x.fail(ErrCodeJoinConflict, b, "", err, "return values disagree: %v", err)
		}
		out = joined
	}
	return out, nil
}

func (x *explorer) next() ir.Block {
	return sortedBlocks(x.dirty)[0]
}

func sortedBlocks[V any](m map[ir.Block]V) []ir.Block {
	out := make([]ir.Block, 0, len(m))
	for b := range m {
		out = append(out, b)
	}
	slices.SortFunc(out, id.Compare[id.BlockKind, id.IR])
	return out
}

// propagate joins an incoming edge into the entry state of target and
// schedules target when that state changed.
func (x *explorer) propagate(target ir.Block, from *types.TypeBag, ts []types.RegisterType) error {
	bag := from.Restrict(ts)
	cur, ok := x.entries[target]
	if !ok {
		x.entries[target] = edge{bag: bag, types: ts}
		x.dirty[target] = true
		return nil
	}
	jb, jt, err := types.Join(x.e.policy, cur.bag, cur.types, bag, ts)
	if types.IsMissing(err) {
		return x.fail(ErrCodeLookupFailed, target, "", err, "joining into block $%s: %v", target, err)
	}
	if err != nil {
		return x.fail(ErrCodeJoinConflict, target, "", err, "incoming states of block $%s disagree: %v", target, err)
	}
	if types.SameTypes(cur.bag, cur.types, jb, jt) {
		return nil
	}
	x.e.logger.Debug("block entry widened",
		"function", x.f.Name,
		"block", target.String(),
		"from", cur.bag.FormatList(cur.types),
		"to", jb.FormatList(jt),
	)
	x.entries[target] = edge{bag: jb, types: jt}
	x.dirty[target] = true
	return nil
}

// run executes block b once against its current entry state.
func (x *explorer) run(b ir.Block) error {
	blk, ok := x.f.Blocks[b]
	if !ok {
		return x.fail(ErrCodeLookupFailed, b, "", nil, "block $%s not found", b)
	}
	in := x.entries[b]
	np := len(blk.Params)
	if len(in.types) < np {
		return x.fail(ErrCodeLookupFailed, b, "", nil, "block $%s expects %d parameters, got %d", b, np, len(in.types))
	}

	state := in.bag.Fork()
	for i, p := range blk.Params {
		if err := state.Assign(p, in.types[i]); err != nil {
			return x.fail(ErrCodeLookupFailed, b, "%"+p.String(), err, "bind parameter: %v", err)
		}
	}
	tracked := slices.Clone(in.types[np:])

	res := x.results[b]
	if res == nil {
		res = &BlockResult{Block: b}
		x.results[b] = res
	}
	res.Params = slices.Clone(in.types[:np])
	res.State = state
	res.Calls = make(map[int]Key)
	res.Stop = -1
	res.Visits++
	delete(x.returns, b)

	x.e.logger.Debug("exploring block",
		"function", x.f.Name,
		"block", b.String(),
		"params", state.FormatList(res.Params),
		"visit", res.Visits,
	)

	ex := &executor{x: x, block: b, state: state, res: res}
	for i, inst := range blk.Instructions {
		if err := x.charge(b); err != nil {
			return err
		}
		cont, err := ex.exec(i, inst)
		if err != nil {
			return err
		}
		if !cont {
			res.Stop = i
			res.Exit = ExitStopped
			return nil
		}
	}
	if err := x.charge(b); err != nil {
		return err
	}
	return x.terminate(ex, blk.End, tracked)
}

// charge takes one step from the budget.
func (x *explorer) charge(b ir.Block) error {
	if err := x.e.quota.Check(); err != nil {
		be := NewBudgetError(x.f.Name, x.e.quota.Current(), x.e.quota.MaxSteps())
		be.Block = "$" + b.String()
		be.Err = err
		return be
	}
	return nil
}

func (x *explorer) terminate(ex *executor, end ir.Terminator, tracked []types.RegisterType) error {
	b, state, res := ex.block, ex.state, ex.res

	follow := func(j ir.BlockJump) error {
		args, err := ex.types(j.Args)
		if err != nil {
			return err
		}
		return x.propagate(j.Block, state, slices.Concat(args, tracked))
	}

	switch t := end.(type) {
	case *ir.Jump:
		res.Exit = ExitJump
		return follow(t.Target)

	case *ir.JumpIf:
		cond, err := ex.get(t.Condition)
		if err != nil {
			return err
		}
		if v, ok := cond.BoolValue(); ok {
			if v {
				res.Exit = ExitThen
				return follow(t.Then)
			}
			res.Exit = ExitElse
			return follow(t.Else)
		}
		if !cond.IsBoolean() && cond.Kind() != types.KindAny {
			return x.fail(ErrCodeTypeMismatch, b, "%"+t.Condition.String(), nil,
				"branch condition has type %s", state.Format(cond))
		}
		res.Exit = ExitBoth
		x.inv.State = Branching
		if err := follow(t.Then); err != nil {
			return err
		}
		return follow(t.Else)

	case *ir.Return:
		res.Exit = ExitReturn
		kind := Void
		ret := types.Trivial(ir.TrivialUndefined)
		if t.Value != nil {
			v, err := ex.get(*t.Value)
			if err != nil {
				return err
			}
			kind, ret = Value, v
		}
		ts := slices.Concat([]types.RegisterType{ret}, tracked)
		x.returns[b] = Outcome{Kind: kind, Types: ts, State: state.Restrict(ts)}
		return nil

	case *ir.Unreachable:
		res.Exit = ExitUnreachable
		return nil
	}
	return x.fail(ErrCodeNotImplemented, b, "", nil, "terminator %T", end)
}

// fail builds an Error located at block b of the current specialization.
func (x *explorer) fail(code ErrorCode, b ir.Block, reg string, cause error, format string, args ...any) *Error {
	return &Error{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Function: x.f.Name,
		Block:    "$" + b.String(),
		Register: reg,
		Details:  map[string]string{"signature": x.inv.Signature.Text},
		Err:      cause,
	}
}
