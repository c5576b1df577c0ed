// Package retag translates identifiers across a phase boundary.
//
// A Map owns a private counter in the target context. Mapping an old
// identifier is idempotent: the first call mints a fresh identifier and
// records it, later calls return the recorded one. Gen mints identifiers
// with no old counterpart, e.g. registers introduced to rematerialize an
// elided value. Because every target identifier comes from the map's own
// counter, two distinct old identifiers never share a new one.
package retag

import (
	"slices"

	"github.com/NinoDS/jssat/internal/id"
)

// Map translates identifiers of kind K from context From to context To.
//
// Single-writer: a Map is owned by one phase of one function.
type Map[K id.Kind, From, To id.Context] struct {
	table   map[id.ID[K, From]]id.ID[K, To]
	counter *id.Counter[K, To]
}

// Per-kind aliases.
type (
	Registers[From, To id.Context] = Map[id.RegisterKind, From, To]
	Blocks[From, To id.Context]    = Map[id.BlockKind, From, To]
	Functions[From, To id.Context] = Map[id.FunctionKind, From, To]
	Constants[From, To id.Context] = Map[id.ConstantKind, From, To]
)

// New creates an empty map whose first minted identifier is 0.
func New[K id.Kind, From, To id.Context]() *Map[K, From, To] {
	return &Map[K, From, To]{
		table:   make(map[id.ID[K, From]]id.ID[K, To]),
		counter: id.NewCounter[K, To](),
	}
}

// Map returns the identifier recorded for old, minting one if needed.
func (m *Map[K, From, To]) Map(old id.ID[K, From]) id.ID[K, To] {
	mapped, _ := m.MapIsNew(old)
	return mapped
}

// MapIsNew is Map, additionally reporting whether old was seen for the
// first time.
func (m *Map[K, From, To]) MapIsNew(old id.ID[K, From]) (id.ID[K, To], bool) {
	if mapped, ok := m.table[old]; ok {
		return mapped, false
	}
	mapped := m.counter.Next()
	m.table[old] = mapped
	return mapped, true
}

// Gen mints a fresh identifier that no old identifier maps to.
func (m *Map[K, From, To]) Gen() id.ID[K, To] {
	return m.counter.Next()
}

// Lookup returns the identifier recorded for old without minting.
func (m *Map[K, From, To]) Lookup(old id.ID[K, From]) (id.ID[K, To], bool) {
	mapped, ok := m.table[old]
	return mapped, ok
}

// Len returns the number of recorded translations. Gen does not count.
func (m *Map[K, From, To]) Len() int {
	return len(m.table)
}

// Olds returns the mapped old identifiers in ascending order.
func (m *Map[K, From, To]) Olds() []id.ID[K, From] {
	olds := make([]id.ID[K, From], 0, len(m.table))
	for old := range m.table {
		olds = append(olds, old)
	}
	slices.SortFunc(olds, id.Compare[K, From])
	return olds
}
