package ir

import (
	"slices"
	"strings"

	"github.com/NinoDS/jssat/internal/id"
)

// Cycle is a set of mutually recursive functions, listed along one call
// path that returns to its first function.
type Cycle struct {
	Path []string
}

// String renders the path as "a → b → a".
func (c Cycle) String() string {
	return strings.Join(c.Path, " → ")
}

// CallGraph maps every function to the functions it may call: static call
// targets and functions whose pointer it takes. Successors are sorted and
// unique.
func (p *Program) CallGraph() map[Function][]Function {
	graph := make(map[Function][]Function, len(p.Functions))
	for _, f := range p.SortedFunctions() {
		seen := make(map[Function]bool)
		var out []Function
		add := func(g Function) {
			if !seen[g] {
				seen[g] = true
				out = append(out, g)
			}
		}
		fn := p.Functions[f]
		for _, b := range fn.SortedBlocks() {
			for _, inst := range fn.Blocks[b].Instructions {
				switch i := inst.(type) {
				case *CallStatic:
					add(i.Function)
				case *GetFnPtr:
					add(i.Function)
				}
			}
		}
		slices.SortFunc(out, id.Compare[id.FunctionKind, id.IR])
		graph[f] = out
	}
	return graph
}

// RecursiveCycles finds the recursive functions of the program: every
// strongly connected component of the call graph with more than one
// function, and every function that calls itself.
//
// Recursion is legal; the engine resolves type-stable recursion to a
// fixpoint and reports divergent recursion. The cycles are informational.
// The result is deterministic: components are ordered by their lowest
// function identifier and each path starts there.
func (p *Program) RecursiveCycles() []Cycle {
	graph := p.CallGraph()
	sccs := stronglyConnected(p.SortedFunctions(), graph)

	var paths [][]Function
	for _, scc := range sccs {
		if len(scc) == 1 && !slices.Contains(graph[scc[0]], scc[0]) {
			continue
		}
		slices.SortFunc(scc, id.Compare[id.FunctionKind, id.IR])
		paths = append(paths, cyclePath(scc, graph))
	}
	slices.SortFunc(paths, func(a, b []Function) int {
		return id.Compare(a[0], b[0])
	})

	cycles := make([]Cycle, len(paths))
	for i, path := range paths {
		names := make([]string, len(path))
		for j, f := range path {
			names[j] = p.Functions[f].Name
		}
		cycles[i] = Cycle{Path: names}
	}
	return cycles
}

// stronglyConnected is Tarjan's algorithm over nodes in the given order.
func stronglyConnected(nodes []Function, graph map[Function][]Function) [][]Function {
	var (
		index   int
		stack   []Function
		indices = make(map[Function]int)
		lowlink = make(map[Function]int)
		onStack = make(map[Function]bool)
		sccs    [][]Function
	)

	var connect func(Function)
	connect = func(v Function) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				connect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []Function
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			connect(n)
		}
	}
	return sccs
}

// cyclePath returns the shortest call path from the first member of scc
// back to itself, staying inside scc. scc must be sorted.
func cyclePath(scc []Function, graph map[Function][]Function) []Function {
	start := scc[0]
	members := make(map[Function]bool, len(scc))
	for _, f := range scc {
		members[f] = true
	}

	parent := map[Function]Function{}
	queue := []Function{start}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, w := range graph[u] {
			if w == start {
				path := []Function{start}
				for n := u; n != start; n = parent[n] {
					path = append(path, n)
				}
				slices.Reverse(path[1:])
				return append(path, start)
			}
			if _, seen := parent[w]; !seen && members[w] {
				parent[w] = u
				queue = append(queue, w)
			}
		}
	}
	return []Function{start, start}
}
