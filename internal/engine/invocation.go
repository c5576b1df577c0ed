package engine

import (
	"fmt"
	"slices"

	"github.com/NinoDS/jssat/internal/id"
	"github.com/NinoDS/jssat/internal/ir"
	"github.com/NinoDS/jssat/internal/types"
)

// Key is the memoization key of a specialization: the function, its entry
// block and the hash of the argument type signature. Two calls with equal
// keys share one specialization.
type Key struct {
	Function ir.Function
	Entry    ir.Block
	// Signature is types.Signature.Hash of the argument types.
	Signature string
}

func (k Key) String() string {
	sig := k.Signature
	if len(sig) > 12 {
		sig = sig[:12]
	}
	return fmt.Sprintf("@%s$%s:%s", k.Function, k.Entry, sig)
}

// State is the exploration state of a specialization.
type State uint8

const (
	Unexplored State = iota
	InProgress
	// Branching is an in-progress specialization that has explored both
	// arms of at least one conditional.
	Branching
	Complete
)

var stateNames = [...]string{"unexplored", "in_progress", "branching", "complete"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Done reports whether s is final.
func (s State) Done() bool { return s == Complete }

// OutcomeKind says how a specialization returns.
type OutcomeKind uint8

const (
	// Never means no explored path returns.
	Never OutcomeKind = iota
	Void
	Value
)

var outcomeNames = [...]string{"never", "void", "value"}

func (k OutcomeKind) String() string {
	if int(k) < len(outcomeNames) {
		return outcomeNames[k]
	}
	return fmt.Sprintf("outcome(%d)", uint8(k))
}

// Outcome is the joined result of every return of a specialization.
//
// Types holds the return type followed by the final type of each formal
// parameter; State holds the allocations they reach. The final parameter
// types carry record mutations back to the caller.
type Outcome struct {
	Kind  OutcomeKind
	Types []types.RegisterType
	State *types.TypeBag
}

// Return is the type of the returned value. A void outcome returns
// undefined.
func (o Outcome) Return() types.RegisterType {
	if len(o.Types) == 0 {
		return types.Trivial(ir.TrivialUndefined)
	}
	return o.Types[0]
}

// Finals are the final types of the formal parameters.
func (o Outcome) Finals() []types.RegisterType {
	if len(o.Types) == 0 {
		return nil
	}
	return o.Types[1:]
}

// String renders the outcome, e.g. "value bool true".
func (o Outcome) String() string {
	switch o.Kind {
	case Never:
		return "never"
	case Void:
		return "void"
	}
	return "value " + o.State.Format(o.Return())
}

func sameOutcome(a, b Outcome) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == Never {
		return true
	}
	return types.SameTypes(a.State, a.Types, b.State, b.Types)
}

func joinOutcome(policy types.JoinPolicy, a, b Outcome) (Outcome, error) {
	if a.Kind == Never {
		return b, nil
	}
	if b.Kind == Never {
		return a, nil
	}
	bag, ts, err := types.Join(policy, a.State, a.Types, b.State, b.Types)
	if err != nil {
		return Outcome{}, err
	}
	kind := Void
	if a.Kind == Value || b.Kind == Value {
		kind = Value
	}
	return Outcome{Kind: kind, Types: ts, State: bag}, nil
}

// Exit says how control left an explored block.
type Exit uint8

const (
	// ExitStopped means a call inside the block never returns.
	ExitStopped Exit = iota
	ExitJump
	ExitThen
	ExitElse
	ExitBoth
	ExitReturn
	ExitUnreachable
)

var exitNames = [...]string{"stopped", "jump", "then", "else", "both", "return", "unreachable"}

func (x Exit) String() string {
	if int(x) < len(exitNames) {
		return exitNames[x]
	}
	return fmt.Sprintf("exit(%d)", uint8(x))
}

// BlockResult is the last execution of one block within a specialization.
type BlockResult struct {
	Block ir.Block

	// Params are the joined entry types of the block parameters.
	Params []types.RegisterType

	// State holds the type of every register the block assigned,
	// parameters included, after its last instruction ran.
	State *types.TypeBag

	// Calls maps the index of each executed call instruction to the
	// specialization it was bound to.
	Calls map[int]Key

	// Stop is the index of the call after which control never continues,
	// or -1 when the terminator was reached.
	Stop int

	Exit Exit

	// Visits counts executions, fixpoint iterations included.
	Visits int
}

// Successors returns the blocks control can reach from this block, in
// terminator order.
func (r *BlockResult) Successors(end ir.Terminator) []ir.Block {
	switch t := end.(type) {
	case *ir.Jump:
		if r.Exit == ExitJump {
			return []ir.Block{t.Target.Block}
		}
	case *ir.JumpIf:
		switch r.Exit {
		case ExitThen:
			return []ir.Block{t.Then.Block}
		case ExitElse:
			return []ir.Block{t.Else.Block}
		case ExitBoth:
			return []ir.Block{t.Then.Block, t.Else.Block}
		}
	}
	return nil
}

// Invocation is one specialization: a function explored under one
// argument type signature.
type Invocation struct {
	Key Key

	// Seq orders invocations by discovery.
	Seq int

	// Args are the formal argument types, interpreted against Entry.
	Args      []types.RegisterType
	Entry     *types.TypeBag
	Signature types.Signature

	State   State
	Outcome Outcome

	// Blocks holds the explored blocks; blocks pruned on every path are
	// absent.
	Blocks map[ir.Block]*BlockResult

	// Iterations counts full explorations of the body; more than one
	// means a recursive outcome was refined.
	Iterations int

	deps      map[Key]bool
	recursive bool
}

// SortedBlocks returns the explored block identifiers in ascending order.
func (inv *Invocation) SortedBlocks() []ir.Block {
	out := make([]ir.Block, 0, len(inv.Blocks))
	for b := range inv.Blocks {
		out = append(out, b)
	}
	slices.SortFunc(out, id.Compare[id.BlockKind, id.IR])
	return out
}

// Tentative reports whether the outcome still rests on a provisional
// result of an enclosing in-progress specialization.
func (inv *Invocation) Tentative() bool {
	return len(inv.deps) > 0
}
