package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NinoDS/jssat/internal/id"
	"github.com/NinoDS/jssat/internal/ir"
)

func reg(v uint32) ir.Register { return id.New[id.RegisterKind, id.IR](v) }

func key(arena *Arena, s string) ShapeKey { return StrKey(arena.Intern([]byte(s))) }

func allocOf(t *testing.T, rt RegisterType) Allocation {
	t.Helper()
	a, ok := rt.Allocation()
	require.True(t, ok, "%s is not a record", rt)
	return a
}

// =============================================================================
// Lattice
// =============================================================================

func TestIsSimple(t *testing.T) {
	arena := NewArena()
	tests := []struct {
		typ  RegisterType
		want bool
	}{
		{Runtime(), true},
		{Int(5), true},
		{Bool(false), true},
		{String(arena.Intern([]byte("x"))), true},
		{Trivial(ir.TrivialNull), false},
		{Trivial(ir.TrivialUndefined), false},
		{Number(), false},
		{Boolean(), false},
		{Bytes(), false},
		{Any(), false},
		{FnPtr(ir.Function{}), false},
		{Record(Allocation{}), false},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, IsSimple(tt.typ))
		})
	}
}

func TestWiden(t *testing.T) {
	arena := NewArena()
	hello := String(arena.Intern([]byte("hello")))
	world := String(arena.Intern([]byte("world")))

	tests := []struct {
		name string
		x, y RegisterType
		want RegisterType
	}{
		{"equal exact", Int(1), Int(1), Int(1)},
		{"exact ints", Int(1), Int(2), Number()},
		{"int and number", Int(1), Number(), Number()},
		{"exact bools", Bool(true), Bool(false), Boolean()},
		{"exact strings", hello, world, Bytes()},
		{"string and bytes", hello, Bytes(), Bytes()},
		{"number and boolean", Number(), Boolean(), Any()},
		{"trivials", Trivial(ir.TrivialNull), Trivial(ir.TrivialUndefined), Any()},
		{"fn pointers", FnPtr(id.New[id.FunctionKind, id.IR](1)), FnPtr(id.New[id.FunctionKind, id.IR](2)), Any()},
		{"anything and any", Int(3), Any(), Any()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Widen(tt.x, tt.y))
			assert.Equal(t, tt.want, Widen(tt.y, tt.x), "widen is symmetric")
		})
	}
}

func TestGeneral(t *testing.T) {
	assert.Equal(t, Number(), Int(9).General())
	assert.Equal(t, Boolean(), Bool(true).General())
	assert.Equal(t, Bytes(), String(Constant{}).General())
	assert.Equal(t, Any(), Any().General())
}

func TestAdmits(t *testing.T) {
	assert.True(t, Admits(ir.SortAny, Int(1)))
	assert.True(t, Admits(ir.SortNumber, Int(1)))
	assert.True(t, Admits(ir.SortNumber, Number()))
	assert.False(t, Admits(ir.SortNumber, Bool(true)))
	assert.True(t, Admits(ir.SortRuntime, Runtime()))
	assert.False(t, Admits(ir.SortRuntime, Trivial(ir.TrivialNull)))
	assert.True(t, Admits(ir.SortTrivial, Trivial(ir.TrivialNull)))
	assert.False(t, Admits(ir.SortBytes, Any()))
}

func TestRegisterType_String(t *testing.T) {
	assert.Equal(t, "int -3", Int(-3).String())
	assert.Equal(t, "bool true", Bool(true).String())
	assert.Equal(t, "runtime", Runtime().String())
	assert.Equal(t, "number", Number().String())
	assert.Equal(t, "any", Any().String())
}

// =============================================================================
// Arena
// =============================================================================

func TestArena_Intern(t *testing.T) {
	arena := NewArena()
	a := arena.Intern([]byte("a"))
	b := arena.Intern([]byte("b"))

	assert.Equal(t, a, arena.Intern([]byte("a")))
	assert.NotEqual(t, a, b)
	assert.Equal(t, "b", string(arena.Payload(b)))
	assert.Equal(t, 2, arena.NumConstants())
}

func TestArena_KeyOrderIndependentOfInterning(t *testing.T) {
	arena := NewArena()
	z := key(arena, "z")
	a := key(arena, "a")
	call := SlotKey(ir.SlotCall)

	s := Shape{}.With(z, Int(1)).With(a, Int(2)).With(call, Any())
	assert.Equal(t, []ShapeKey{call, a, z}, arena.SortedKeys(s))
}

// =============================================================================
// TypeBag
// =============================================================================

func TestTypeBag_AssignIsSingleAssignment(t *testing.T) {
	b := New(NewArena())
	require.NoError(t, b.Assign(reg(1), Int(1)))

	err := b.Assign(reg(1), Int(2))
	assert.True(t, errors.Is(err, ErrAlreadyAssigned))

	got, err := b.Get(reg(1))
	require.NoError(t, err)
	assert.Equal(t, Int(1), got)
}

func TestTypeBag_GetMissing(t *testing.T) {
	b := New(NewArena())
	_, err := b.Get(reg(7))

	var missing *MissingError
	assert.ErrorAs(t, err, &missing)
}

func TestTypeBag_AssignUnknownAllocation(t *testing.T) {
	b := New(NewArena())
	err := b.Assign(reg(1), Record(id.New[id.AllocationKind, id.Symbolic](99)))
	assert.Error(t, err)
}

func TestTypeBag_FieldsAndHistory(t *testing.T) {
	arena := NewArena()
	b := New(arena)
	rec := b.NewRecord()
	a := allocOf(t, rec)
	ka, kb := key(arena, "a"), key(arena, "b")

	require.NoError(t, b.SetField(a, ka, Int(1)))
	require.NoError(t, b.SetField(a, kb, Bool(true)))
	require.NoError(t, b.SetField(a, ka, Int(3)))

	got, err := b.GetField(a, ka)
	require.NoError(t, err)
	assert.Equal(t, Int(3), got, "last write wins")

	got, err = b.GetField(a, key(arena, "missing"))
	require.NoError(t, err)
	assert.Equal(t, Trivial(ir.TrivialUndefined), got)

	history := b.History(a)
	require.Len(t, history, 4, "empty shape plus one per write")
	assert.Equal(t, arena.EmptyShape(), history[0])
	first := arena.Shape(history[1])
	_, hasB := first.Field(kb)
	assert.False(t, hasB, "earlier shapes are never modified")
}

func TestTypeBag_ForkIsolatesBranches(t *testing.T) {
	arena := NewArena()
	b := New(arena)
	rec := b.NewRecord()
	a := allocOf(t, rec)
	ka, kb := key(arena, "a"), key(arena, "b")
	require.NoError(t, b.SetField(a, ka, Int(1)))

	left := b.Fork()
	right := b.Fork()
	require.NoError(t, left.SetField(a, kb, Int(2)))
	require.NoError(t, right.SetField(a, kb, Int(5)))

	lb, err := left.GetField(a, kb)
	require.NoError(t, err)
	rb, err := right.GetField(a, kb)
	require.NoError(t, err)
	ob, err := b.GetField(a, kb)
	require.NoError(t, err)

	assert.Equal(t, Int(2), lb)
	assert.Equal(t, Int(5), rb)
	assert.Equal(t, Trivial(ir.TrivialUndefined), ob)
	assert.Len(t, b.History(a), 2)
	assert.Len(t, left.History(a), 3)
	assert.Len(t, right.History(a), 3)
}

func TestTypeBag_ExtractKeepsReachableOnly(t *testing.T) {
	arena := NewArena()
	b := New(arena)
	outer := b.NewRecord()
	inner := b.NewRecord()
	stray := b.NewRecord()
	require.NoError(t, b.SetField(allocOf(t, outer), key(arena, "in"), inner))
	require.NoError(t, b.Assign(reg(1), outer))
	require.NoError(t, b.Assign(reg(2), stray))
	require.NoError(t, b.Assign(reg(3), Int(4)))

	out, err := b.Extract([]ir.Register{reg(1), reg(3)})
	require.NoError(t, err)

	assert.Equal(t, []ir.Register{reg(1), reg(3)}, out.Registers())
	assert.True(t, out.HasAllocation(allocOf(t, outer)))
	assert.True(t, out.HasAllocation(allocOf(t, inner)))
	assert.False(t, out.HasAllocation(allocOf(t, stray)))

	_, err = b.Extract([]ir.Register{reg(9)})
	assert.Error(t, err)
}

func TestTypeBag_ImportRoundTrip(t *testing.T) {
	arena := NewArena()
	ka, kb := key(arena, "a"), key(arena, "b")

	caller := New(arena)
	rec := caller.NewRecord()
	a := allocOf(t, rec)
	require.NoError(t, caller.SetField(a, ka, Int(1)))

	// Callee receives a renamed copy of the argument.
	callee := New(arena)
	formals, err := callee.Import(caller, []RegisterType{rec}, nil)
	require.NoError(t, err)
	f := allocOf(t, formals[0])
	assert.NotEqual(t, a, f, "imported without rename gets a fresh allocation")
	assert.True(t, SameTypes(caller, []RegisterType{rec}, callee, formals))

	// The callee mutates its parameter; the caller applies the effect.
	require.NoError(t, callee.SetField(f, kb, Int(2)))
	m := callee.MatchAllocations(formals, caller, []RegisterType{rec})
	assert.Equal(t, map[Allocation]Allocation{f: a}, m)

	back, err := caller.Import(callee, formals, m)
	require.NoError(t, err)
	assert.Equal(t, []RegisterType{rec}, back)
	got, err := caller.GetField(a, kb)
	require.NoError(t, err)
	assert.Equal(t, Int(2), got)
}

func TestTypeBag_IsConst(t *testing.T) {
	arena := NewArena()
	b := New(arena)
	constRec := b.NewRecord()
	require.NoError(t, b.SetField(allocOf(t, constRec), key(arena, "a"), Int(1)))

	dynRec := b.NewRecord()
	require.NoError(t, b.SetField(allocOf(t, dynRec), key(arena, "a"), Number()))

	selfRec := b.NewRecord()
	require.NoError(t, b.SetField(allocOf(t, selfRec), key(arena, "self"), selfRec))

	assert.True(t, b.IsConst(Int(3)))
	assert.True(t, b.IsConst(constRec))
	assert.False(t, b.IsConst(dynRec))
	assert.True(t, b.IsConst(selfRec), "cycles of constant records are constant")
	assert.False(t, b.IsConst(Number()))
	assert.True(t, b.IsConstShape(allocOf(t, constRec)))
}

func TestTypeBag_Format(t *testing.T) {
	arena := NewArena()
	b := New(arena)
	rec := b.NewRecord()
	require.NoError(t, b.SetField(allocOf(t, rec), key(arena, "a"), Int(1)))
	hi := String(arena.Intern([]byte("hi")))

	assert.Equal(t, `record#0{"a": int 1}`, b.Format(rec))
	assert.Equal(t, `(string "hi", record#0{"a": int 1}, record#0)`, b.FormatList([]RegisterType{hi, rec, rec}))
}

// =============================================================================
// Signatures
// =============================================================================

func TestSignature_EqualUpToRenaming(t *testing.T) {
	arena := NewArena()
	mk := func() (*TypeBag, RegisterType) {
		b := New(arena)
		rec := b.NewRecord()
		require.NoError(t, b.SetField(allocOf(t, rec), key(arena, "a"), Int(1)))
		return b, rec
	}
	b1, r1 := mk()
	b2, r2 := mk()
	require.NotEqual(t, r1, r2)

	s1 := b1.Signature([]RegisterType{Int(3), r1})
	s2 := b2.Signature([]RegisterType{Int(3), r2})
	assert.Equal(t, s1.Hash, s2.Hash)
	assert.Equal(t, `(int 3, record#0{"a": int 1})`, s1.Text)
}

func TestSignature_Distinguishes(t *testing.T) {
	arena := NewArena()
	b := New(arena)
	r1 := b.NewRecord()
	r2 := b.NewRecord()

	tests := []struct {
		name string
		x, y []RegisterType
	}{
		{"exact values", []RegisterType{Int(3)}, []RegisterType{Int(100)}},
		{"exact vs general", []RegisterType{Int(3)}, []RegisterType{Number()}},
		{"order", []RegisterType{Int(1), Bool(true)}, []RegisterType{Bool(true), Int(1)}},
		{"aliasing", []RegisterType{r1, r1}, []RegisterType{r1, r2}},
		{"string payload", []RegisterType{String(arena.Intern([]byte("a")))}, []RegisterType{String(arena.Intern([]byte("b")))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, b.Signature(tt.x).Hash, b.Signature(tt.y).Hash)
		})
	}
}

func TestEqual(t *testing.T) {
	arena := NewArena()
	a := New(arena)
	b := New(arena)
	require.NoError(t, a.Assign(reg(1), a.NewRecord()))
	require.NoError(t, b.Assign(reg(1), b.NewRecord()))
	assert.True(t, Equal(a, b))

	require.NoError(t, a.Assign(reg(2), Int(1)))
	assert.False(t, Equal(a, b))
	require.NoError(t, b.Assign(reg(2), Int(2)))
	assert.False(t, Equal(a, b))
}

// =============================================================================
// Join
// =============================================================================

func TestJoin_Registers(t *testing.T) {
	arena := NewArena()
	l, r := New(arena), New(arena)

	_, got, err := Join(JoinFailFast, l, []RegisterType{Int(1), Bool(true)}, r, []RegisterType{Int(1), Bool(true)})
	require.NoError(t, err)
	assert.Equal(t, []RegisterType{Int(1), Bool(true)}, got, "agreeing sides join to themselves")

	_, _, err = Join(JoinFailFast, l, []RegisterType{Int(1)}, r, []RegisterType{Int(2)})
	require.Error(t, err)
	assert.True(t, IsJoinConflict(err))
	assert.Contains(t, err.Error(), "cannot join int 1 with int 2 at position 0")

	_, got, err = Join(JoinWiden, l, []RegisterType{Int(1)}, r, []RegisterType{Int(2)})
	require.NoError(t, err)
	assert.Equal(t, []RegisterType{Number()}, got)

	_, _, err = Join(JoinWiden, l, []RegisterType{Int(1)}, r, nil)
	assert.Error(t, err)
}

// conditionalRecord builds {a: 1} and forks it, adding b: 2 on the right.
func conditionalRecord(t *testing.T) (arena *Arena, left, right *TypeBag, rec RegisterType) {
	t.Helper()
	arena = NewArena()
	base := New(arena)
	rec = base.NewRecord()
	require.NoError(t, base.SetField(allocOf(t, rec), key(arena, "a"), Int(1)))
	left = base.Fork()
	right = base.Fork()
	require.NoError(t, right.SetField(allocOf(t, rec), key(arena, "b"), Int(2)))
	return arena, left, right, rec
}

func TestJoin_OneSidedKey_FailFast(t *testing.T) {
	arena, left, right, rec := conditionalRecord(t)

	out, got, err := Join(JoinFailFast, left, []RegisterType{rec}, right, []RegisterType{rec})
	require.NoError(t, err, "the join itself succeeds; the conflict is deferred")
	assert.Equal(t, rec, got[0], "same allocation keeps its identity")

	a := allocOf(t, rec)
	va, err := out.GetField(a, key(arena, "a"))
	require.NoError(t, err)
	assert.Equal(t, Int(1), va)

	_, err = out.GetField(a, key(arena, "b"))
	require.Error(t, err)
	assert.True(t, IsJoinConflict(err))
	assert.Contains(t, err.Error(), "<absent>")
}

func TestJoin_MissingAllocation(t *testing.T) {
	arena := NewArena()
	left := New(arena)
	right := New(arena)
	stray := Record(arena.NewAllocation())

	_, _, err := Join(JoinWiden, left, []RegisterType{stray}, right, []RegisterType{right.NewRecord()})
	require.Error(t, err)
	assert.True(t, IsMissing(err))
	assert.False(t, IsJoinConflict(err))
}

func TestTypeBag_ImportMissingAllocation(t *testing.T) {
	arena := NewArena()
	src := New(arena)
	stray := Record(arena.NewAllocation())

	_, err := New(arena).Import(src, []RegisterType{Int(1), stray}, nil)
	require.Error(t, err)
	assert.True(t, IsMissing(err))
}

func TestTypeBag_ImportSkipsConflictSides(t *testing.T) {
	arena := NewArena()
	base := New(arena)
	rec := base.NewRecord()

	left := base.Fork()
	inner := left.NewRecord()
	require.NoError(t, left.SetField(allocOf(t, rec), key(arena, "b"), inner))
	right := base.Fork()

	joined, ts, err := Join(JoinFailFast, left, []RegisterType{rec}, right, []RegisterType{rec})
	require.NoError(t, err)
	assert.False(t, joined.HasAllocation(allocOf(t, inner)))

	formals, err := New(arena).Import(joined, ts, nil)
	require.NoError(t, err)
	require.Len(t, formals, 1)
	assert.True(t, formals[0].IsRecord())
}

func TestJoin_OneSidedKey_Widen(t *testing.T) {
	arena, left, right, rec := conditionalRecord(t)

	out, got, err := Join(JoinWiden, left, []RegisterType{rec}, right, []RegisterType{rec})
	require.NoError(t, err)

	vb, err := out.GetField(allocOf(t, got[0]), key(arena, "b"))
	require.NoError(t, err)
	assert.Equal(t, Any(), vb)
}

func TestJoin_DistinctAllocationsMerge(t *testing.T) {
	arena := NewArena()
	l, r := New(arena), New(arena)
	lr, rr := l.NewRecord(), r.NewRecord()
	require.NoError(t, l.SetField(allocOf(t, lr), key(arena, "x"), Int(1)))
	require.NoError(t, r.SetField(allocOf(t, rr), key(arena, "x"), Int(2)))

	out, got, err := Join(JoinWiden, l, []RegisterType{lr, lr}, r, []RegisterType{rr, rr})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, got[0], got[1], "aliasing is preserved")
	assert.NotEqual(t, lr, got[0])
	assert.NotEqual(t, rr, got[0])
	x, err := out.GetField(allocOf(t, got[0]), key(arena, "x"))
	require.NoError(t, err)
	assert.Equal(t, Number(), x)
}

func TestJoin_FieldDisagreement_FailFastDefers(t *testing.T) {
	arena := NewArena()
	l, r := New(arena), New(arena)
	lr, rr := l.NewRecord(), r.NewRecord()
	require.NoError(t, l.SetField(allocOf(t, lr), key(arena, "x"), Int(1)))
	require.NoError(t, r.SetField(allocOf(t, rr), key(arena, "x"), Int(2)))

	out, got, err := Join(JoinFailFast, l, []RegisterType{lr}, r, []RegisterType{rr})
	require.NoError(t, err)

	_, err = out.GetField(allocOf(t, got[0]), key(arena, "x"))
	assert.True(t, IsJoinConflict(err))
	assert.False(t, out.IsConst(got[0]), "unresolved shapes are never constant")
}

func TestParseJoinPolicy(t *testing.T) {
	p, err := ParseJoinPolicy("widen")
	require.NoError(t, err)
	assert.Equal(t, JoinWiden, p)

	p, err = ParseJoinPolicy("fail")
	require.NoError(t, err)
	assert.Equal(t, JoinFailFast, p)
	assert.Equal(t, "fail", p.String())

	_, err = ParseJoinPolicy("maybe")
	assert.Error(t, err)
}

// =============================================================================
// Parse
// =============================================================================

func TestParse(t *testing.T) {
	arena := NewArena()
	tests := []struct {
		in   string
		want RegisterType
	}{
		{"any", Any()},
		{"runtime", Runtime()},
		{"null", Trivial(ir.TrivialNull)},
		{"bytes", Bytes()},
		{"number", Number()},
		{"boolean", Boolean()},
		{"int 3", Int(3)},
		{" int -12 ", Int(-12)},
		{"bool false", Bool(false)},
		{`string "a b"`, String(arena.Intern([]byte("a b")))},
		{"string hello", String(arena.Intern([]byte("hello")))},
		{"fnptr @2", FnPtr(id.New[id.FunctionKind, id.IR](2))},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(arena, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "float", "int x", "bool maybe", "number 3", `string "unterminated`} {
		_, err := Parse(arena, bad)
		assert.Error(t, err, bad)
	}

	list, err := ParseList(arena, []string{"int 1", "any"})
	require.NoError(t, err)
	assert.Equal(t, []RegisterType{Int(1), Any()}, list)
}
