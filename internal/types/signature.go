package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/NinoDS/jssat/internal/canon"
)

// Signature identifies an ordered list of types up to allocation renaming.
// Two lists with equal signatures have the same kinds, the same exact
// values, the same string payloads and isomorphic record graphs.
type Signature struct {
	// Hash is the hex SHA-256 of the canonical encoding.
	Hash string
	// Text is a human-readable rendering, e.g. (int 3, record#0{"a": bool true}).
	Text string
}

func (s Signature) String() string {
	return s.Text
}

// numbering assigns allocations dense indices in first-appearance order.
type numbering struct {
	bag   *TypeBag
	index map[Allocation]int
	order []Allocation
}

func newNumbering(b *TypeBag) *numbering {
	return &numbering{bag: b, index: make(map[Allocation]int)}
}

func (n *numbering) number(a Allocation) (int, bool) {
	if i, ok := n.index[a]; ok {
		return i, false
	}
	i := len(n.order)
	n.index[a] = i
	n.order = append(n.order, a)
	return i, true
}

func (n *numbering) keyValue(k ShapeKey) string {
	if slot, ok := k.Slot(); ok {
		return "slot:" + slot.String()
	}
	return "str:" + hex.EncodeToString(n.bag.arena.Payload(k.str))
}

func (n *numbering) typeValue(t RegisterType) canon.Array {
	switch t.kind {
	case KindTrivial:
		return canon.Array{"trivial", t.item.String()}
	case KindString:
		return canon.Array{"string", hex.EncodeToString(n.bag.arena.Payload(t.constant))}
	case KindInt:
		return canon.Array{"int", t.integer}
	case KindBool:
		return canon.Array{"bool", t.boolean}
	case KindFnPtr:
		return canon.Array{"fnptr", t.fn.Value()}
	case KindRecord:
		i, _ := n.number(t.alloc)
		return canon.Array{"record", i}
	}
	return canon.Array{t.kind.String()}
}

func (n *numbering) shapeValue(a Allocation) canon.Object {
	s, err := n.bag.Shape(a)
	if err != nil {
		return canon.Object{"missing": true}
	}
	fields := canon.Array{}
	conflicts := canon.Array{}
	for _, k := range n.bag.arena.SortedKeys(s) {
		if t, ok := s.Field(k); ok {
			fields = append(fields, canon.Array{n.keyValue(k), n.typeValue(t)})
			continue
		}
		c, _ := s.Conflict(k)
		entry := canon.Array{n.keyValue(k)}
		for _, side := range []struct {
			t       RegisterType
			present bool
		}{{c.Left, c.LeftPresent}, {c.Right, c.RightPresent}} {
			if side.present {
				entry = append(entry, n.typeValue(side.t))
			} else {
				entry = append(entry, "absent")
			}
		}
		conflicts = append(conflicts, entry)
	}
	return canon.Object{"fields": fields, "conflicts": conflicts}
}

// Signature computes the signature of ts against the bag's allocations.
func (b *TypeBag) Signature(ts []RegisterType) Signature {
	n := newNumbering(b)
	types := make(canon.Array, len(ts))
	for i, t := range ts {
		types[i] = n.typeValue(t)
	}
	shapes := canon.Array{}
	for i := 0; i < len(n.order); i++ {
		shapes = append(shapes, n.shapeValue(n.order[i]))
	}
	return Signature{
		Hash: canon.MustHash(canon.DomainSignature, canon.Object{"types": types, "shapes": shapes}),
		Text: b.FormatList(ts),
	}
}

// Equal reports whether two bags assign the same registers to types that
// are equal up to allocation renaming.
func Equal(a, b *TypeBag) bool {
	ra, rb := a.Registers(), b.Registers()
	if len(ra) != len(rb) {
		return false
	}
	for i := range ra {
		if ra[i] != rb[i] {
			return false
		}
	}
	ta, _ := a.Types(ra)
	tb, _ := b.Types(rb)
	return SameTypes(a, ta, b, tb)
}

// SameTypes reports whether ta in bag a and tb in bag b are equal up to
// allocation renaming.
func SameTypes(a *TypeBag, ta []RegisterType, b *TypeBag, tb []RegisterType) bool {
	if len(ta) != len(tb) {
		return false
	}
	return a.Signature(ta).Hash == b.Signature(tb).Hash
}

// describe renders ts sharing one allocation numbering, so aliasing shows:
// the first occurrence of a record prints its shape, later ones only #n.
func (b *TypeBag) describe(ts []RegisterType) []string {
	n := newNumbering(b)
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = n.describeType(t)
	}
	return out
}

func (n *numbering) describeType(t RegisterType) string {
	switch t.kind {
	case KindString:
		return fmt.Sprintf("string %q", n.bag.arena.Payload(t.constant))
	case KindRecord:
		i, first := n.number(t.alloc)
		if !first {
			return fmt.Sprintf("record#%d", i)
		}
		s, err := n.bag.Shape(t.alloc)
		if err != nil {
			return fmt.Sprintf("record#%d{?}", i)
		}
		parts := make([]string, 0, s.Len())
		for _, k := range n.bag.arena.SortedKeys(s) {
			key := n.bag.arena.FormatKey(k)
			if ft, ok := s.Field(k); ok {
				parts = append(parts, key+": "+n.describeType(ft))
				continue
			}
			parts = append(parts, key+": <conflict>")
		}
		return fmt.Sprintf("record#%d{%s}", i, strings.Join(parts, ", "))
	}
	return t.String()
}
