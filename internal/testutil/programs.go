// Package testutil provides small, validated programs shared by the tests
// of the engine, assembler, backend and harness.
//
// Every fixture is built fresh on each call, so tests may explore or
// assemble them without interfering with one another.
package testutil

import (
	"fmt"

	"github.com/NinoDS/jssat/internal/ir"
)

// Fixture is a validated program together with the function tests explore
// first.
type Fixture struct {
	Name    string
	Program *ir.Program
	Entry   ir.Function
}

// Func returns the identifier of the function called name. It panics when
// the fixture has no such function.
func (f Fixture) Func(name string) ir.Function {
	fn, ok := f.Program.FunctionByName(name)
	if !ok {
		panic(fmt.Sprintf("fixture %s has no function %q", f.Name, name))
	}
	return fn
}

func finish(name string, b *ir.Builder, entry ir.Function) Fixture {
	prog, err := b.Finish()
	if err != nil {
		panic(fmt.Sprintf("fixture %s: %v", name, err))
	}
	return Fixture{Name: name, Program: prog, Entry: entry}
}

// LessThanTen is
//
//	lt10(x: number) { return x < 10 }
func LessThanTen() Fixture {
	b := ir.NewBuilder()
	return finish("lt10", b, lessThanTen(b))
}

func lessThanTen(b *ir.Builder) ir.Function {
	f := b.Function("lt10", ir.SortNumber)
	entry := f.Entry()
	ten := entry.MakeInteger(10)
	entry.Return(entry.LessThan(f.Params()[0], ten))
	return f.ID()
}

// CallsLessThanTen is
//
//	lt10(x: number) { return x < 10 }
//	main() { a = lt10(3); b = lt10(3); c = lt10(100); return a or c }
//
// The two lt10(3) calls share one specialization.
func CallsLessThanTen() Fixture {
	b := ir.NewBuilder()
	lt := lessThanTen(b)

	main := b.Function("main")
	entry := main.Entry()
	three := entry.MakeInteger(3)
	a := entry.Call(lt, three)
	three2 := entry.MakeInteger(3)
	entry.Call(lt, three2)
	hundred := entry.MakeInteger(100)
	c := entry.Call(lt, hundred)
	entry.Return(entry.Or(a, c))
	return finish("calls_lt10", b, main.ID())
}

// ConditionalRecord is
//
//	main(c: boolean) {
//	  r = {a: 1}
//	  if (c) r.b = 2
//	  return r.b
//	}
//
// Reading r.b after the join conflicts under the fail-fast policy and is
// any under widening.
func ConditionalRecord() Fixture {
	b := ir.NewBuilder()
	main := b.Function("main", ir.SortBoolean)
	entry := main.Entry()
	then := main.NewBlock()
	els := main.NewBlock()
	join := main.NewBlock()

	r := entry.NewRecord()
	ka := entry.MakeString("a")
	one := entry.MakeInteger(1)
	entry.RecordSet(r, ir.PropKey(ka), one)
	entry.JumpIf(main.Params()[0], then, []ir.Register{r}, els, []ir.Register{r})

	r1 := then.Param()
	kb := then.MakeString("b")
	two := then.MakeInteger(2)
	then.RecordSet(r1, ir.PropKey(kb), two)
	then.Jump(join, r1)

	r2 := els.Param()
	els.Jump(join, r2)

	r3 := join.Param()
	kb3 := join.MakeString("b")
	join.Return(join.RecordGet(r3, ir.PropKey(kb3)))
	return finish("conditional_record", b, main.ID())
}

// SumTo is
//
//	sum(n: number) { if (n < 1) return 0; return n + sum(n + -1) }
func SumTo() Fixture {
	b := ir.NewBuilder()
	f := b.Function("sum", ir.SortNumber)
	entry := f.Entry()
	base := f.NewBlock()
	step := f.NewBlock()

	one := entry.MakeInteger(1)
	c := entry.LessThan(f.Params()[0], one)
	entry.JumpIf(c, base, nil, step, []ir.Register{f.Params()[0]})

	base.Return(base.MakeInteger(0))

	n := step.Param()
	m1 := step.MakeInteger(-1)
	rest := step.Call(f.ID(), step.Add(n, m1))
	step.Return(step.Add(n, rest))
	return finish("sum", b, f.ID())
}

// EvenOdd is a pair of mutually recursive functions:
//
//	isEven(n: number) { if (n < 1) return true;  return isOdd(n + -1) }
//	isOdd(n: number)  { if (n < 1) return false; return isEven(n + -1) }
func EvenOdd() Fixture {
	b := ir.NewBuilder()
	even := b.Function("isEven", ir.SortNumber)
	odd := b.Function("isOdd", ir.SortNumber)
	parity(even, odd.ID(), true)
	parity(odd, even.ID(), false)
	return finish("even_odd", b, even.ID())
}

func parity(f *ir.FunctionBuilder, other ir.Function, base bool) {
	entry := f.Entry()
	done := f.NewBlock()
	recurse := f.NewBlock()

	one := entry.MakeInteger(1)
	c := entry.LessThan(f.Params()[0], one)
	entry.JumpIf(c, done, nil, recurse, []ir.Register{f.Params()[0]})

	done.Return(done.MakeBoolean(base))

	n := recurse.Param()
	m1 := recurse.MakeInteger(-1)
	recurse.Return(recurse.Call(other, recurse.Add(n, m1)))
}

// CountLoop is
//
//	count() { i = 0; while (i < 10) i = i + 1; return i }
//
// Under the fail-fast policy the loop header sees int 0 and int 1 and
// conflicts; widening settles on number.
func CountLoop() Fixture {
	b := ir.NewBuilder()
	f := b.Function("count")
	entry := f.Entry()
	header := f.NewBlock()
	body := f.NewBlock()
	exit := f.NewBlock()

	entry.Jump(header, entry.MakeInteger(0))

	i := header.Param()
	ten := header.MakeInteger(10)
	header.JumpIf(header.LessThan(i, ten), body, []ir.Register{i}, exit, []ir.Register{i})

	bi := body.Param()
	body.Jump(header, body.Add(bi, body.MakeInteger(1)))

	exit.Return(exit.Param())
	return finish("count", b, f.ID())
}

// MutateThroughCall is
//
//	setB(r: record) { r.b = 2 }
//	main() { r = {}; setB(r); return r.b }
func MutateThroughCall() Fixture {
	b := ir.NewBuilder()
	set := b.Function("setB", ir.SortRecord)
	se := set.Entry()
	kb := se.MakeString("b")
	se.RecordSet(set.Params()[0], ir.PropKey(kb), se.MakeInteger(2))
	se.ReturnVoid()

	main := b.Function("main")
	me := main.Entry()
	r := me.NewRecord()
	me.CallVoid(set.ID(), r)
	kb2 := me.MakeString("b")
	me.Return(me.RecordGet(r, ir.PropKey(kb2)))
	return finish("mutate_through_call", b, main.ID())
}

// ReturnRecord is
//
//	mk() { r = {a: 1}; return r }
//	main() { return mk().a }
func ReturnRecord() Fixture {
	b := ir.NewBuilder()
	mk := b.Function("mk")
	ke := mk.Entry()
	r := ke.NewRecord()
	ke.RecordSet(r, ir.PropKey(ke.MakeString("a")), ke.MakeInteger(1))
	ke.Return(r)

	main := b.Function("main")
	me := main.Entry()
	got := me.Call(mk.ID())
	me.Return(me.RecordGet(got, ir.PropKey(me.MakeString("a"))))
	return finish("return_record", b, main.ID())
}

// Virtual is
//
//	lt10(x: number) { return x < 10 }
//	main(x: number) { p = &lt10; return p(x) }
func Virtual() Fixture {
	b := ir.NewBuilder()
	lt := lessThanTen(b)
	main := b.Function("main", ir.SortNumber)
	me := main.Entry()
	p := me.FnPtr(lt)
	me.Return(me.CallVirt(p, main.Params()[0]))
	return finish("virtual", b, main.ID())
}

// Greet is
//
//	extern print(runtime, bytes) -> void
//	greet(rt: runtime) { print(rt, "hello") }
//	main(rt: runtime) { greet(rt); return }
//
// Every value is simple, so the assembled program keeps only the runtime
// parameter and string constants.
func Greet() Fixture {
	b := ir.NewBuilder()
	printFn := b.External("print", []ir.FFIType{ir.FFIRuntime, ir.FFIBytes}, ir.FFIVoid)

	greet := b.Function("greet", ir.SortRuntime)
	ge := greet.Entry()
	ge.CallExternVoid(printFn, greet.Params()[0], ge.MakeString("hello"))
	ge.ReturnVoid()

	main := b.Function("main", ir.SortRuntime)
	me := main.Entry()
	me.CallVoid(greet.ID(), main.Params()[0])
	me.ReturnVoid()
	return finish("greet", b, main.ID())
}

// Concat is
//
//	concat(a: bytes, b: bytes) { return a + b }
func Concat() Fixture {
	b := ir.NewBuilder()
	f := b.Function("concat", ir.SortBytes, ir.SortBytes)
	entry := f.Entry()
	entry.Return(entry.Add(f.Params()[0], f.Params()[1]))
	return finish("concat", b, f.ID())
}

// All returns every fixture, in a fixed order.
func All() []Fixture {
	return []Fixture{
		LessThanTen(),
		CallsLessThanTen(),
		ConditionalRecord(),
		SumTo(),
		EvenOdd(),
		CountLoop(),
		MutateThroughCall(),
		ReturnRecord(),
		Virtual(),
		Greet(),
		Concat(),
	}
}
