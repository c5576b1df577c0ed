package engine

import "github.com/NinoDS/jssat/internal/ir"

// CallStack tracks the specializations currently being explored, outermost
// first.
//
// It is the engine's cycle detector. A request for a key that is already
// on the stack is recursion: the caller gets the callee's provisional
// outcome instead of re-expanding it, and every frame above the callee is
// marked as depending on that provisional value. A function that appears
// too many times with distinct signatures is divergent.
//
// Two checks guard termination:
//   - Recursion at a fixed signature: resolved by reusing the in-progress
//     entry and iterating its outcome to a fixpoint.
//   - Growing signatures (f(1) -> f(2) -> f(3) ...): caught by the depth
//     limit in WouldDiverge.
type CallStack struct {
	frames []*frame
}

type frame struct {
	inv *Invocation

	// deps holds the in-progress keys whose provisional outcome this
	// frame consumed, directly or through a callee.
	deps map[Key]bool
}

// NewCallStack creates an empty stack.
func NewCallStack() *CallStack {
	return &CallStack{}
}

// Push adds inv as the innermost frame.
func (c *CallStack) Push(inv *Invocation) {
	c.frames = append(c.frames, &frame{inv: inv, deps: make(map[Key]bool)})
}

// Pop removes the innermost frame and returns the keys it depends on,
// excluding its own.
func (c *CallStack) Pop() map[Key]bool {
	f := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	delete(f.deps, f.inv.Key)
	return f.deps
}

// Depth returns the number of frames.
func (c *CallStack) Depth() int {
	return len(c.frames)
}

// Index returns the position of key on the stack, or -1.
func (c *CallStack) Index(key Key) int {
	for i, f := range c.frames {
		if f.inv.Key == key {
			return i
		}
	}
	return -1
}

// Contains reports whether key is on the stack.
func (c *CallStack) Contains(key Key) bool {
	return c.Index(key) >= 0
}

// Taint marks every frame above the frame of key as depending on it.
func (c *CallStack) Taint(key Key) {
	i := c.Index(key)
	if i < 0 {
		return
	}
	for _, f := range c.frames[i+1:] {
		f.deps[key] = true
	}
}

// Inherit taints the stack for every key in deps that is still on it, so
// frames using a tentative result depend on what that result depends on.
func (c *CallStack) Inherit(deps map[Key]bool) {
	for k := range deps {
		c.Taint(k)
	}
}

// Signatures returns the signature texts of every frame specializing fn,
// outermost first.
func (c *CallStack) Signatures(fn ir.Function) []string {
	var out []string
	for _, f := range c.frames {
		if f.inv.Key.Function == fn {
			out = append(out, f.inv.Signature.Text)
		}
	}
	return out
}

// WouldDiverge reports whether pushing another specialization of fn would
// exceed maxDepth frames of that function.
func (c *CallStack) WouldDiverge(fn ir.Function, maxDepth int) bool {
	n := 0
	for _, f := range c.frames {
		if f.inv.Key.Function == fn {
			n++
		}
	}
	return n >= maxDepth
}
