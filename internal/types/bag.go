package types

import (
	"fmt"
	"slices"
	"strings"

	"github.com/NinoDS/jssat/internal/id"
	"github.com/NinoDS/jssat/internal/ir"
)

// TypeBag is the abstract state of one execution path: the type of every
// assigned register, and the shape history of every reachable allocation.
//
// A bag is treated as immutable once its path completes. Branches Fork the
// bag instead of sharing it, so a record mutation on one branch is never
// observed by a sibling.
type TypeBag struct {
	arena     *Arena
	registers map[ir.Register]RegisterType
	allocs    map[Allocation][]ShapeID
}

// New returns an empty bag over arena.
func New(arena *Arena) *TypeBag {
	return &TypeBag{
		arena:     arena,
		registers: make(map[ir.Register]RegisterType),
		allocs:    make(map[Allocation][]ShapeID),
	}
}

// Arena returns the shared arena.
func (b *TypeBag) Arena() *Arena {
	return b.arena
}

// Fork returns an independent copy. Shapes are shared; histories are
// clipped so appends on either side reallocate.
func (b *TypeBag) Fork() *TypeBag {
	out := &TypeBag{
		arena:     b.arena,
		registers: make(map[ir.Register]RegisterType, len(b.registers)),
		allocs:    make(map[Allocation][]ShapeID, len(b.allocs)),
	}
	for r, t := range b.registers {
		out.registers[r] = t
	}
	for a, h := range b.allocs {
		out.allocs[a] = slices.Clip(h)
	}
	return out
}

// Assign binds r to t. Registers are single-assignment.
func (b *TypeBag) Assign(r ir.Register, t RegisterType) error {
	if _, ok := b.registers[r]; ok {
		return fmt.Errorf("%%%s: %w", r, ErrAlreadyAssigned)
	}
	if a, ok := t.Allocation(); ok && !b.HasAllocation(a) {
		return &MissingError{What: "allocation a" + a.String()}
	}
	b.registers[r] = t
	return nil
}

// Lookup returns the type of r.
func (b *TypeBag) Lookup(r ir.Register) (RegisterType, bool) {
	t, ok := b.registers[r]
	return t, ok
}

// Get returns the type of r or a MissingError.
func (b *TypeBag) Get(r ir.Register) (RegisterType, error) {
	t, ok := b.registers[r]
	if !ok {
		return RegisterType{}, &MissingError{What: "register %" + r.String()}
	}
	return t, nil
}

// Registers returns the assigned registers in ascending order.
func (b *TypeBag) Registers() []ir.Register {
	regs := make([]ir.Register, 0, len(b.registers))
	for r := range b.registers {
		regs = append(regs, r)
	}
	slices.SortFunc(regs, id.Compare[id.RegisterKind, id.IR])
	return regs
}

// NewRecord mints an allocation with the empty shape and returns its type.
func (b *TypeBag) NewRecord() RegisterType {
	a := b.arena.NewAllocation()
	b.allocs[a] = []ShapeID{b.arena.EmptyShape()}
	return Record(a)
}

// HasAllocation reports whether the bag tracks a.
func (b *TypeBag) HasAllocation(a Allocation) bool {
	_, ok := b.allocs[a]
	return ok
}

// Allocations returns the tracked allocations in ascending order.
func (b *TypeBag) Allocations() []Allocation {
	out := make([]Allocation, 0, len(b.allocs))
	for a := range b.allocs {
		out = append(out, a)
	}
	slices.SortFunc(out, id.Compare[id.AllocationKind, id.Symbolic])
	return out
}

// History returns the shape history of a, oldest first.
func (b *TypeBag) History(a Allocation) []ShapeID {
	return slices.Clone(b.allocs[a])
}

// ShapeID returns the current shape identifier of a.
func (b *TypeBag) ShapeID(a Allocation) (ShapeID, error) {
	h, ok := b.allocs[a]
	if !ok || len(h) == 0 {
		return ShapeID{}, &MissingError{What: "allocation a" + a.String()}
	}
	return h[len(h)-1], nil
}

// Shape returns the current shape of a.
func (b *TypeBag) Shape(a Allocation) (Shape, error) {
	sid, err := b.ShapeID(a)
	if err != nil {
		return Shape{}, err
	}
	return b.arena.Shape(sid), nil
}

// PushShape appends s to the history of a, creating the history if a is
// new to this bag.
func (b *TypeBag) PushShape(a Allocation, s Shape) ShapeID {
	sid := b.arena.AddShape(s)
	b.allocs[a] = append(b.allocs[a], sid)
	return sid
}

// GetField reads key k of record a. A missing key reads as undefined; a key
// left unresolved by a fail-fast join fails with a JoinConflictError.
func (b *TypeBag) GetField(a Allocation, k ShapeKey) (RegisterType, error) {
	s, err := b.Shape(a)
	if err != nil {
		return RegisterType{}, err
	}
	if c, ok := s.Conflict(k); ok {
		return RegisterType{}, &JoinConflictError{
			Where: "record a" + a.String() + " key " + b.arena.FormatKey(k),
			Left:  b.conflictSide(c.Left, c.LeftPresent),
			Right: b.conflictSide(c.Right, c.RightPresent),
		}
	}
	if t, ok := s.Field(k); ok {
		return t, nil
	}
	return Trivial(ir.TrivialUndefined), nil
}

func (b *TypeBag) conflictSide(t RegisterType, present bool) string {
	if !present {
		return "<absent>"
	}
	return b.Format(t)
}

// SetField writes key k of record a, pushing a new shape.
func (b *TypeBag) SetField(a Allocation, k ShapeKey, t RegisterType) error {
	s, err := b.Shape(a)
	if err != nil {
		return err
	}
	if ta, ok := t.Allocation(); ok && !b.HasAllocation(ta) {
		return &MissingError{What: "allocation a" + ta.String()}
	}
	b.PushShape(a, s.With(k, t))
	return nil
}

// reachable returns the allocations reachable from ts through current
// shapes, in breadth-first discovery order.
func (b *TypeBag) reachable(ts []RegisterType) []Allocation {
	seen := make(map[Allocation]bool)
	var order []Allocation
	visit := func(t RegisterType) {
		if a, ok := t.Allocation(); ok && !seen[a] {
			seen[a] = true
			order = append(order, a)
		}
	}
	for _, t := range ts {
		visit(t)
	}
	for i := 0; i < len(order); i++ {
		s, err := b.Shape(order[i])
		if err != nil {
			continue
		}
		for _, k := range b.arena.SortedKeys(s) {
			if t, ok := s.Field(k); ok {
				visit(t)
				continue
			}
			// Conflict sides may name allocations of the bags that were
			// joined; those are only rendered.
			c, _ := s.Conflict(k)
			if c.LeftPresent && b.holds(c.Left) {
				visit(c.Left)
			}
			if c.RightPresent && b.holds(c.Right) {
				visit(c.Right)
			}
		}
	}
	return order
}

// holds reports whether t is not a record or names an allocation of b.
func (b *TypeBag) holds(t RegisterType) bool {
	a, ok := t.Allocation()
	return !ok || b.HasAllocation(a)
}

// Restrict returns a bag with no registers holding the allocations
// reachable from ts, with their full histories.
func (b *TypeBag) Restrict(ts []RegisterType) *TypeBag {
	out := New(b.arena)
	for _, a := range b.reachable(ts) {
		if h, ok := b.allocs[a]; ok {
			out.allocs[a] = slices.Clip(h)
		}
	}
	return out
}

// Extract restricts the bag to regs and the allocations they reach.
// Allocation identities are preserved, so mutations recorded against the
// extracted bag can be applied back to the original.
func (b *TypeBag) Extract(regs []ir.Register) (*TypeBag, error) {
	ts := make([]RegisterType, len(regs))
	for i, r := range regs {
		t, err := b.Get(r)
		if err != nil {
			return nil, err
		}
		ts[i] = t
	}
	out := b.Restrict(ts)
	for i, r := range regs {
		out.registers[r] = ts[i]
	}
	return out, nil
}

// Types returns the types of regs in order.
func (b *TypeBag) Types(regs []ir.Register) ([]RegisterType, error) {
	out := make([]RegisterType, len(regs))
	for i, r := range regs {
		t, err := b.Get(r)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// Import copies the allocations reachable from ts in src into b and
// returns ts translated into b's allocations.
//
// rename maps source allocations onto existing allocations of b; every
// other reachable source allocation gets a fresh identifier. For a mapped
// allocation whose translated current shape differs from its current shape
// in b, the translated shape is appended to b's history. A reachable
// allocation without a history in src is a MissingError.
func (b *TypeBag) Import(src *TypeBag, ts []RegisterType, rename map[Allocation]Allocation) ([]RegisterType, error) {
	order := src.reachable(ts)
	m := make(map[Allocation]Allocation, len(order))
	for _, a := range order {
		if target, ok := rename[a]; ok {
			m[a] = target
		} else {
			m[a] = b.arena.NewAllocation()
		}
	}

	for _, a := range order {
		s, err := src.Shape(a)
		if err != nil {
			return nil, err
		}
		translated := translateShape(s, m)
		if cur, err := b.Shape(m[a]); err == nil && cur.Equal(translated) {
			continue
		}
		b.PushShape(m[a], translated)
	}

	out := make([]RegisterType, len(ts))
	for i, t := range ts {
		out[i] = translateType(t, m)
	}
	return out, nil
}

func translateType(t RegisterType, m map[Allocation]Allocation) RegisterType {
	if a, ok := t.Allocation(); ok {
		if target, ok := m[a]; ok {
			return Record(target)
		}
	}
	return t
}

func translateShape(s Shape, m map[Allocation]Allocation) Shape {
	out := Shape{}.clone()
	for k, t := range s.fields {
		out.fields[k] = translateType(t, m)
	}
	for k, c := range s.conflicts {
		c.Left = translateType(c.Left, m)
		c.Right = translateType(c.Right, m)
		out.conflicts[k] = c
	}
	return out
}

// MatchAllocations pairs the allocations reachable from ts in b with those
// reachable from the positionally corresponding us in other, walking
// record fields present on both sides. The result maps b's allocations to
// other's.
func (b *TypeBag) MatchAllocations(ts []RegisterType, other *TypeBag, us []RegisterType) map[Allocation]Allocation {
	m := make(map[Allocation]Allocation)
	type pair struct{ x, y Allocation }
	var queue []pair
	match := func(t, u RegisterType) {
		x, ok1 := t.Allocation()
		y, ok2 := u.Allocation()
		if !ok1 || !ok2 {
			return
		}
		if _, seen := m[x]; seen {
			return
		}
		m[x] = y
		queue = append(queue, pair{x, y})
	}
	for i := 0; i < len(ts) && i < len(us); i++ {
		match(ts[i], us[i])
	}
	for i := 0; i < len(queue); i++ {
		sx, err1 := b.Shape(queue[i].x)
		sy, err2 := other.Shape(queue[i].y)
		if err1 != nil || err2 != nil {
			continue
		}
		for _, k := range b.arena.SortedKeys(sx) {
			fx, ok1 := sx.Field(k)
			fy, ok2 := sy.Field(k)
			if ok1 && ok2 {
				match(fx, fy)
			}
		}
	}
	return m
}

// IsConst reports whether t is fully known at compile time: a simple value,
// or a record whose current shape is constant.
func (b *TypeBag) IsConst(t RegisterType) bool {
	return b.isConst(t, make(map[Allocation]bool))
}

// IsConstShape reports whether the current shape of a holds only constant
// values under literal keys, with no unresolved joins.
func (b *TypeBag) IsConstShape(a Allocation) bool {
	return b.isConstShape(a, make(map[Allocation]bool))
}

func (b *TypeBag) isConst(t RegisterType, visiting map[Allocation]bool) bool {
	if IsSimple(t) {
		return true
	}
	if a, ok := t.Allocation(); ok {
		return b.isConstShape(a, visiting)
	}
	return false
}

func (b *TypeBag) isConstShape(a Allocation, visiting map[Allocation]bool) bool {
	if visiting[a] {
		return true
	}
	visiting[a] = true
	s, err := b.Shape(a)
	if err != nil || len(s.conflicts) > 0 {
		return false
	}
	for _, t := range s.fields {
		if !b.isConst(t, visiting) {
			return false
		}
	}
	return true
}

// Format renders t with string payloads and record shapes expanded.
func (b *TypeBag) Format(t RegisterType) string {
	return b.describe([]RegisterType{t})[0]
}

// FormatList renders ts as a parenthesized, comma separated list.
func (b *TypeBag) FormatList(ts []RegisterType) string {
	return "(" + strings.Join(b.describe(ts), ", ") + ")"
}

// String renders every register and allocation, for debugging.
func (b *TypeBag) String() string {
	var sb strings.Builder
	for _, r := range b.Registers() {
		fmt.Fprintf(&sb, "%%%s: %s\n", r, b.Format(b.registers[r]))
	}
	for _, a := range b.Allocations() {
		fmt.Fprintf(&sb, "a%s: %d shapes\n", a, len(b.allocs[a]))
	}
	return sb.String()
}
