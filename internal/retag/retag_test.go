package retag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NinoDS/jssat/internal/id"
)

func reg(v uint32) id.Register[id.IR] {
	return id.New[id.RegisterKind, id.IR](v)
}

func TestMap_IsIdempotent(t *testing.T) {
	m := New[id.RegisterKind, id.IR, id.Asm]()

	first := m.Map(reg(42))
	second := m.Map(reg(42))

	assert.Equal(t, first, second)
	assert.Equal(t, 1, m.Len())
}

func TestMap_DistinctOldsGetDistinctNews(t *testing.T) {
	m := New[id.RegisterKind, id.IR, id.Asm]()

	seen := make(map[id.Register[id.Asm]]id.Register[id.IR])
	for _, v := range []uint32{9, 3, 100, 0, 7} {
		mapped := m.Map(reg(v))
		prev, dup := seen[mapped]
		require.False(t, dup, "%d and %d both mapped to %s", prev.Value(), v, mapped)
		seen[mapped] = reg(v)
	}
}

func TestMap_MintsInFirstSeenOrder(t *testing.T) {
	m := New[id.RegisterKind, id.IR, id.Asm]()

	assert.Equal(t, uint32(0), m.Map(reg(50)).Value())
	assert.Equal(t, uint32(1), m.Map(reg(10)).Value())
	assert.Equal(t, uint32(0), m.Map(reg(50)).Value())
}

func TestMap_MapIsNew(t *testing.T) {
	m := New[id.BlockKind, id.IR, id.Asm]()
	b := id.New[id.BlockKind, id.IR](2)

	_, isNew := m.MapIsNew(b)
	assert.True(t, isNew)

	_, isNew = m.MapIsNew(b)
	assert.False(t, isNew)
}

func TestMap_GenNeverCollidesWithMapped(t *testing.T) {
	m := New[id.RegisterKind, id.IR, id.Asm]()

	a := m.Map(reg(0))
	g := m.Gen()
	b := m.Map(reg(1))

	assert.NotEqual(t, a, g)
	assert.NotEqual(t, b, g)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, m.Len(), "generated identifiers are not recorded")
}

func TestMap_Lookup(t *testing.T) {
	m := New[id.RegisterKind, id.IR, id.Asm]()

	_, ok := m.Lookup(reg(1))
	assert.False(t, ok)

	mapped := m.Map(reg(1))
	got, ok := m.Lookup(reg(1))
	assert.True(t, ok)
	assert.Equal(t, mapped, got)
	assert.Equal(t, 1, m.Len(), "Lookup does not mint")
}

func TestMap_Olds_Sorted(t *testing.T) {
	m := New[id.RegisterKind, id.IR, id.Asm]()
	m.Map(reg(5))
	m.Map(reg(1))
	m.Map(reg(3))

	assert.Equal(t, []id.Register[id.IR]{reg(1), reg(3), reg(5)}, m.Olds())
}
