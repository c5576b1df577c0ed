package types

import (
	"bytes"
	"cmp"
	"slices"
	"strconv"

	"github.com/NinoDS/jssat/internal/id"
	"github.com/NinoDS/jssat/internal/ir"
)

// ShapeKey is a record key: an interned string or an internal slot.
type ShapeKey struct {
	str  Constant
	slot ir.InternalSlot
}

// StrKey keys a record by the interned string c.
func StrKey(c Constant) ShapeKey { return ShapeKey{str: c} }

// SlotKey keys a record by an internal slot.
func SlotKey(s ir.InternalSlot) ShapeKey { return ShapeKey{slot: s} }

// Slot returns the internal slot of a slot key.
func (k ShapeKey) Slot() (ir.InternalSlot, bool) { return k.slot, k.slot != ir.NoSlot }

// Str returns the constant of a string key.
func (k ShapeKey) Str() (Constant, bool) { return k.str, k.slot == ir.NoSlot }

// Conflict records a key the two sides of a fail-fast join disagreed on.
// A side that lacked the key has its Present flag unset.
type Conflict struct {
	Left         RegisterType
	Right        RegisterType
	LeftPresent  bool
	RightPresent bool
}

// Shape is the structural type of one version of a record. Shapes are
// immutable; With returns a modified copy.
type Shape struct {
	fields    map[ShapeKey]RegisterType
	conflicts map[ShapeKey]Conflict
}

// Field returns the type stored under k.
func (s Shape) Field(k ShapeKey) (RegisterType, bool) {
	t, ok := s.fields[k]
	return t, ok
}

// Conflict returns the unresolved join recorded under k.
func (s Shape) Conflict(k ShapeKey) (Conflict, bool) {
	c, ok := s.conflicts[k]
	return c, ok
}

// Len returns the number of keys, conflicting ones included.
func (s Shape) Len() int {
	return len(s.fields) + len(s.conflicts)
}

// With returns a copy of s with k set to t.
func (s Shape) With(k ShapeKey, t RegisterType) Shape {
	out := s.clone()
	delete(out.conflicts, k)
	out.fields[k] = t
	return out
}

func (s Shape) clone() Shape {
	out := Shape{
		fields:    make(map[ShapeKey]RegisterType, len(s.fields)+1),
		conflicts: make(map[ShapeKey]Conflict, len(s.conflicts)),
	}
	for k, v := range s.fields {
		out.fields[k] = v
	}
	for k, v := range s.conflicts {
		out.conflicts[k] = v
	}
	return out
}

// Equal reports whether two shapes hold the same keys with the same types.
// Allocations are compared by identity.
func (s Shape) Equal(o Shape) bool {
	if len(s.fields) != len(o.fields) || len(s.conflicts) != len(o.conflicts) {
		return false
	}
	for k, v := range s.fields {
		if ov, ok := o.fields[k]; !ok || ov != v {
			return false
		}
	}
	for k, v := range s.conflicts {
		if ov, ok := o.conflicts[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Arena stores every shape and interned string of one engine. Shape
// identifiers index into it; entries are never modified once added.
type Arena struct {
	shapes     []Shape
	constants  [][]byte
	constIndex map[string]Constant
	allocs     id.Counter[id.AllocationKind, id.Symbolic]
}

// NewArena returns an arena whose shape 0 is the empty shape.
func NewArena() *Arena {
	a := &Arena{constIndex: make(map[string]Constant)}
	a.AddShape(Shape{})
	return a
}

// EmptyShape returns the identifier of the empty shape.
func (a *Arena) EmptyShape() ShapeID {
	return id.New[id.ShapeKind, id.Symbolic](0)
}

// AddShape stores s and returns its identifier.
func (a *Arena) AddShape(s Shape) ShapeID {
	a.shapes = append(a.shapes, s)
	return id.New[id.ShapeKind, id.Symbolic](uint32(len(a.shapes) - 1))
}

// Shape returns the shape with identifier sid.
func (a *Arena) Shape(sid ShapeID) Shape {
	return a.shapes[sid.Value()]
}

// NumShapes returns the number of stored shapes.
func (a *Arena) NumShapes() int {
	return len(a.shapes)
}

// Intern returns the constant for payload, adding it on first use.
func (a *Arena) Intern(payload []byte) Constant {
	if c, ok := a.constIndex[string(payload)]; ok {
		return c
	}
	c := id.New[id.ConstantKind, id.Symbolic](uint32(len(a.constants)))
	a.constants = append(a.constants, bytes.Clone(payload))
	a.constIndex[string(payload)] = c
	return c
}

// Payload returns the bytes of an interned constant.
func (a *Arena) Payload(c Constant) []byte {
	return a.constants[c.Value()]
}

// NumConstants returns the number of interned constants.
func (a *Arena) NumConstants() int {
	return len(a.constants)
}

// NewAllocation mints a fresh allocation identifier.
func (a *Arena) NewAllocation() Allocation {
	return a.allocs.Next()
}

// CompareKeys orders keys: internal slots first, then strings by payload.
// Ordering by payload rather than by constant id keeps the order
// independent of interning order.
func (a *Arena) CompareKeys(x, y ShapeKey) int {
	xs, xIsSlot := x.Slot()
	ys, yIsSlot := y.Slot()
	switch {
	case xIsSlot && yIsSlot:
		return cmp.Compare(xs, ys)
	case xIsSlot:
		return -1
	case yIsSlot:
		return 1
	}
	return bytes.Compare(a.Payload(x.str), a.Payload(y.str))
}

// SortedKeys returns every key of s, conflicting ones included, in
// CompareKeys order.
func (a *Arena) SortedKeys(s Shape) []ShapeKey {
	keys := make([]ShapeKey, 0, s.Len())
	for k := range s.fields {
		keys = append(keys, k)
	}
	for k := range s.conflicts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, a.CompareKeys)
	return keys
}

// FormatKey renders a key: slots as [[Name]], strings quoted.
func (a *Arena) FormatKey(k ShapeKey) string {
	if slot, ok := k.Slot(); ok {
		return slot.String()
	}
	return strconv.Quote(string(a.Payload(k.str)))
}
