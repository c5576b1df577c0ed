package types

import (
	"errors"
	"fmt"
	"slices"
)

// JoinPolicy decides what happens when two paths disagree on a type.
type JoinPolicy uint8

const (
	// JoinFailFast rejects disagreeing registers with a JoinConflictError.
	// Disagreeing or one-sided record keys become conflicts that fail when
	// read.
	JoinFailFast JoinPolicy = iota

	// JoinWiden walks up the lattice; one-sided record keys become Any.
	JoinWiden
)

func (p JoinPolicy) String() string {
	if p == JoinWiden {
		return "widen"
	}
	return "fail"
}

// ParseJoinPolicy accepts "fail" and "widen".
func ParseJoinPolicy(s string) (JoinPolicy, error) {
	switch s {
	case "fail", "fail-fast", "":
		return JoinFailFast, nil
	case "widen":
		return JoinWiden, nil
	}
	return 0, fmt.Errorf("unknown join policy %q (want fail or widen)", s)
}

// Join merges two positional type lists coming from different paths.
//
// at is interpreted against bag a and bt against bag b; both lists must
// have the same length. The result is a fresh bag holding the joined
// allocations and the joined list. A record flowing in as the same
// allocation on both sides keeps its identity; two different allocations
// are merged into a fresh one, once per distinct pair, so aliasing between
// positions survives the join.
func Join(policy JoinPolicy, a *TypeBag, at []RegisterType, b *TypeBag, bt []RegisterType) (*TypeBag, []RegisterType, error) {
	if len(at) != len(bt) {
		return nil, nil, fmt.Errorf("join: %d types on one side, %d on the other", len(at), len(bt))
	}
	j := &joiner{
		policy: policy,
		a:      a,
		b:      b,
		out:    New(a.arena),
		pairs:  make(map[allocPair]Allocation),
	}

	joined := make([]RegisterType, len(at))
	for i := range at {
		t, err := j.joinType(at[i], bt[i])
		if err != nil {
			return nil, nil, &JoinConflictError{
				Where: fmt.Sprintf("position %d", i),
				Left:  a.Format(at[i]),
				Right: b.Format(bt[i]),
			}
		}
		joined[i] = t
	}

	for i := 0; i < len(j.pending); i++ {
		if err := j.joinAllocation(j.pending[i]); err != nil {
			return nil, nil, fmt.Errorf("join: %w", err)
		}
	}
	return j.out, joined, nil
}

type allocPair struct {
	x, y Allocation
}

type pendingAlloc struct {
	allocPair
	target Allocation
}

type joiner struct {
	policy  JoinPolicy
	a, b    *TypeBag
	out     *TypeBag
	pairs   map[allocPair]Allocation
	pending []pendingAlloc
}

var errConflict = errors.New("conflict")

func (j *joiner) joinType(x, y RegisterType) (RegisterType, error) {
	if x.IsRecord() && y.IsRecord() {
		return Record(j.alloc(x.alloc, y.alloc)), nil
	}
	if x == y {
		return x, nil
	}
	if j.policy == JoinFailFast {
		return RegisterType{}, errConflict
	}
	return Widen(x, y), nil
}

func (j *joiner) alloc(x, y Allocation) Allocation {
	p := allocPair{x, y}
	if target, ok := j.pairs[p]; ok {
		return target
	}
	target := x
	if x != y {
		target = j.a.arena.NewAllocation()
	}
	j.pairs[p] = target
	j.pending = append(j.pending, pendingAlloc{allocPair: p, target: target})
	return target
}

func (j *joiner) joinAllocation(p pendingAlloc) error {
	sx, err := j.a.Shape(p.x)
	if err != nil {
		return err
	}
	sy, err := j.b.Shape(p.y)
	if err != nil {
		return err
	}
	joined := j.joinShapes(sx, sy)

	if p.x == p.y {
		// Same identity on both sides: keep the left history and append
		// the joined shape when it differs from the left's current one.
		j.out.allocs[p.target] = j.a.History(p.x)
		if !sx.Equal(joined) {
			j.out.PushShape(p.target, joined)
		}
		return nil
	}
	j.out.PushShape(p.target, joined)
	return nil
}

func (j *joiner) joinShapes(sx, sy Shape) Shape {
	out := Shape{}.clone()
	keys := append(j.a.arena.SortedKeys(sx), j.a.arena.SortedKeys(sy)...)
	slices.SortFunc(keys, j.a.arena.CompareKeys)
	keys = slices.Compact(keys)

	for _, k := range keys {
		fx, okx := sx.Field(k)
		fy, oky := sy.Field(k)
		cx, conflictX := sx.Conflict(k)
		cy, conflictY := sy.Conflict(k)

		switch {
		case conflictX || conflictY:
			if j.policy == JoinWiden {
				out.fields[k] = Any()
			} else if conflictX {
				out.conflicts[k] = cx
			} else {
				out.conflicts[k] = cy
			}
		case okx && oky:
			t, err := j.joinType(fx, fy)
			if err != nil {
				out.conflicts[k] = Conflict{Left: fx, Right: fy, LeftPresent: true, RightPresent: true}
				continue
			}
			out.fields[k] = t
		default:
			if j.policy == JoinWiden {
				out.fields[k] = Any()
				continue
			}
			// Conflict sides keep their original allocations; they are
			// only ever rendered.
			out.conflicts[k] = Conflict{Left: fx, Right: fy, LeftPresent: okx, RightPresent: oky}
		}
	}
	return out
}
