package engine

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/NinoDS/jssat/internal/ir"
	"github.com/NinoDS/jssat/internal/types"
)

// DefaultMaxSteps is the default number of instructions one Explore call
// may execute.
const DefaultMaxSteps = 100000

// DefaultMaxDepth is the default number of nested in-progress
// specializations of one function before it is reported as divergent.
const DefaultMaxDepth = 64

// Engine explores a program under abstract argument types.
//
// It owns the shape arena, the memo table and the call stack. None of them
// are synchronized: an Engine must be used from one goroutine.
//
// INVARIANTS:
//   - a Key maps to at most one Invocation
//   - every Complete, non-tentative Invocation is final
//   - a failed Explore adds no memo entries
//   - iteration over maps is always through sorted keys, so results do not
//     depend on map order
type Engine struct {
	prog   *ir.Program
	arena  *types.Arena
	logger *slog.Logger
	policy types.JoinPolicy

	maxSteps int
	maxDepth int

	memo       map[Key]*Invocation
	dependents map[Key][]Key
	roots      []Key
	stack      *CallStack
	quota      *Quota
	seq        int
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithMaxSteps sets the step budget of one Explore call.
//
// Default: 100000 steps (DefaultMaxSteps).
func WithMaxSteps(maxSteps int) Option {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithMaxDepth sets how many nested in-progress specializations of one
// function are allowed.
//
// Default: 64 (DefaultMaxDepth).
func WithMaxDepth(maxDepth int) Option {
	return func(e *Engine) {
		e.maxDepth = maxDepth
	}
}

// WithJoinPolicy selects how disagreeing paths are merged.
//
// Default: types.JoinFailFast.
func WithJoinPolicy(p types.JoinPolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine over prog. The program must have passed
// ir.Program.Validate.
func New(prog *ir.Program, opts ...Option) *Engine {
	e := &Engine{
		prog:       prog,
		arena:      types.NewArena(),
		logger:     slog.Default(),
		policy:     types.JoinFailFast,
		maxSteps:   DefaultMaxSteps,
		maxDepth:   DefaultMaxDepth,
		memo:       make(map[Key]*Invocation),
		dependents: make(map[Key][]Key),
		stack:      NewCallStack(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.quota = NewQuota(e.maxSteps)
	return e
}

// Program returns the explored program.
func (e *Engine) Program() *ir.Program { return e.prog }

// Arena returns the shape arena. Argument types passed to Explore must be
// built against it.
func (e *Engine) Arena() *types.Arena { return e.arena }

// Policy returns the join policy.
func (e *Engine) Policy() types.JoinPolicy { return e.policy }

// Steps returns the steps charged by the last Explore call.
func (e *Engine) Steps() int { return e.quota.Current() }

// Explore specializes fn for args and everything it transitively calls.
// Exploring the same function and types twice returns the memoized
// invocation.
func (e *Engine) Explore(fn ir.Function, args []types.RegisterType) (*Invocation, error) {
	f, err := e.prog.Func(fn)
	if err != nil {
		return nil, &Error{Code: ErrCodeLookupFailed, Message: err.Error(), Err: err}
	}
	if len(args) != len(f.ParamSorts) {
		return nil, &Error{
			Code:     ErrCodeTypeMismatch,
			Message:  fmt.Sprintf("%d arguments for %d parameters", len(args), len(f.ParamSorts)),
			Function: f.Name,
		}
	}
	for i, t := range args {
		if t.IsRecord() {
			return nil, &Error{
				Code:     ErrCodeNotImplemented,
				Message:  fmt.Sprintf("argument %d: records cannot be passed to an entry point", i),
				Function: f.Name,
			}
		}
	}

	e.quota.Reset()
	e.logger.Debug("explore", "function", f.Name, "args", len(args), "policy", e.policy.String())

	root := types.New(e.arena)
	mark := e.seq
	inv, err := e.specialize(fn, root, args)
	if err != nil {
		e.rollback(mark)
		return nil, err
	}
	if !slices.Contains(e.roots, inv.Key) {
		e.roots = append(e.roots, inv.Key)
	}
	e.logger.Debug("explore finished",
		"function", f.Name,
		"signature", inv.Signature.Text,
		"outcome", inv.Outcome.String(),
		"specializations", len(e.memo),
		"steps", e.quota.Current(),
	)
	return inv, nil
}

// Lookup returns the invocation memoized under key.
func (e *Engine) Lookup(key Key) (*Invocation, bool) {
	inv, ok := e.memo[key]
	return inv, ok
}

// Roots returns the keys passed through Explore, in call order.
func (e *Engine) Roots() []Key {
	return slices.Clone(e.roots)
}

// AllFnInvocations returns every discovered specialization in discovery
// order. This is the assembler's work list.
func (e *Engine) AllFnInvocations() []*Invocation {
	out := make([]*Invocation, 0, len(e.memo))
	for _, inv := range e.memo {
		out = append(out, inv)
	}
	slices.SortFunc(out, func(a, b *Invocation) int { return a.Seq - b.Seq })
	return out
}

// KeyFor derives the memoization key for calling fn with args, read
// against bag.
func (e *Engine) KeyFor(fn ir.Function, bag *types.TypeBag, args []types.RegisterType) (Key, error) {
	f, err := e.prog.Func(fn)
	if err != nil {
		return Key{}, err
	}
	return Key{Function: fn, Entry: f.Entry, Signature: bag.Signature(args).Hash}, nil
}

// specialize returns the specialization of fn for args read against
// caller. The returned invocation is Complete, or in progress when the
// call is recursive; in that case its Outcome is provisional.
func (e *Engine) specialize(fn ir.Function, caller *types.TypeBag, args []types.RegisterType) (*Invocation, error) {
	f, err := e.prog.Func(fn)
	if err != nil {
		return nil, &Error{Code: ErrCodeLookupFailed, Message: err.Error(), Err: err}
	}
	for i, t := range args {
		if i < len(f.ParamSorts) && !types.Admits(f.ParamSorts[i], t) {
			return nil, &Error{
				Code:     ErrCodeTypeMismatch,
				Message:  fmt.Sprintf("argument %d of type %s does not fit parameter sort %s", i, caller.Format(t), f.ParamSorts[i]),
				Function: f.Name,
			}
		}
	}

	sig := caller.Signature(args)
	key := Key{Function: fn, Entry: f.Entry, Signature: sig.Hash}

	if inv, ok := e.memo[key]; ok {
		if inv.State.Done() {
			e.logger.Debug("memo hit", "function", f.Name, "signature", sig.Text)
			e.stack.Inherit(inv.deps)
			return inv, nil
		}
		// Recursion at a fixed signature: hand out the provisional
		// outcome and remember who consumed it.
		e.logger.Debug("recursive call", "function", f.Name, "signature", sig.Text, "provisional", inv.Outcome.String())
		e.stack.Taint(key)
		inv.recursive = true
		return inv, nil
	}

	if e.stack.WouldDiverge(fn, e.maxDepth) {
		return nil, NewDivergentError(f.Name, append(e.stack.Signatures(fn), sig.Text))
	}

	entry := types.New(e.arena)
	formals, err := entry.Import(caller, args, nil)
	if err != nil {
		return nil, &Error{Code: ErrCodeLookupFailed, Message: "arguments: " + err.Error(), Function: f.Name, Err: err}
	}
	inv := &Invocation{
		Key:       key,
		Seq:       e.seq,
		Args:      formals,
		Entry:     entry,
		Signature: sig,
		State:     InProgress,
		Outcome:   Outcome{Kind: Never},
		deps:      make(map[Key]bool),
	}
	e.seq++
	e.memo[key] = inv

	e.stack.Push(inv)
	e.logger.Debug("specializing", "function", f.Name, "signature", sig.Text, "depth", e.stack.Depth())

	for {
		inv.recursive = false
		inv.Iterations++
		inv.State = InProgress

		out, err := e.explore(f, inv)
		if err != nil {
			e.stack.Pop()
			return nil, err
		}
		if !inv.recursive || sameOutcome(inv.Outcome, out) {
			inv.Outcome = out
			break
		}

		refined, err := joinOutcome(e.policy, inv.Outcome, out)
		if types.IsMissing(err) {
			e.stack.Pop()
			return nil, &Error{Code: ErrCodeLookupFailed, Message: err.Error(), Function: f.Name, Err: err}
		}
		if err != nil {
			e.stack.Pop()
			return nil, &Error{
				Code:     ErrCodeJoinConflict,
				Message:  "recursive return types disagree: " + err.Error(),
				Function: f.Name,
				Err:      err,
			}
		}
		e.logger.Debug("refining recursive outcome",
			"function", f.Name,
			"signature", sig.Text,
			"from", inv.Outcome.String(),
			"to", refined.String(),
			"iteration", inv.Iterations,
		)
		inv.Outcome = refined
		e.invalidate(key)
	}

	inv.deps = e.stack.Pop()
	inv.State = Complete
	for dep := range inv.deps {
		e.dependents[dep] = append(e.dependents[dep], key)
	}
	e.settle(key)
	e.stack.Inherit(inv.deps)

	e.logger.Debug("specialized",
		"function", f.Name,
		"signature", sig.Text,
		"outcome", inv.Outcome.String(),
		"blocks", len(inv.Blocks),
		"tentative", inv.Tentative(),
	)
	return inv, nil
}

// rollback forgets every specialization started at or after mark, so a
// failed Explore leaves only the entries of earlier successful calls.
func (e *Engine) rollback(mark int) {
	for k, inv := range e.memo {
		if inv.Seq >= mark {
			e.logger.Debug("discarding specialization", "key", k.String())
			delete(e.memo, k)
		}
	}
	for k, ks := range e.dependents {
		if _, ok := e.memo[k]; !ok {
			delete(e.dependents, k)
			continue
		}
		e.dependents[k] = slices.DeleteFunc(ks, func(d Key) bool {
			_, ok := e.memo[d]
			return !ok
		})
	}
	e.stack = NewCallStack()
	e.seq = mark
}

// invalidate drops every memo entry computed against the provisional
// outcome of key.
func (e *Engine) invalidate(key Key) {
	for _, k := range e.dependents[key] {
		if inv, ok := e.memo[k]; ok && inv.deps[key] {
			e.logger.Debug("invalidating specialization", "key", k.String())
			delete(e.memo, k)
		}
	}
	delete(e.dependents, key)
}

// settle drops key from the dependencies of the entries that consumed its
// provisional outcome: the value they saw equals the result. They take
// over whatever key itself still depends on.
func (e *Engine) settle(key Key) {
	inherited := e.memo[key].deps
	for _, k := range e.dependents[key] {
		inv, ok := e.memo[k]
		if !ok || !inv.deps[key] {
			continue
		}
		delete(inv.deps, key)
		for dep := range inherited {
			if !inv.deps[dep] {
				inv.deps[dep] = true
				e.dependents[dep] = append(e.dependents[dep], k)
			}
		}
	}
	delete(e.dependents, key)
}
